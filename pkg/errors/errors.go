package errors

import (
	"errors"
	"net/http"
)

// ── 错误分类 ──
// 业务错误通过 fmt.Errorf("%w: ...", Kind) 包装分类，Handler 层据此映射 HTTP 状态码

var (
	// ErrValidation 参数缺失或格式错误
	ErrValidation = errors.New("参数校验失败")
	// ErrUnauthorized 凭据或 Token 无效
	ErrUnauthorized = errors.New("未认证")
	// ErrForbidden 身份有效但角色不满足
	ErrForbidden = errors.New("无权限访问")
	// ErrNotFound 资源不存在
	ErrNotFound = errors.New("资源不存在")
	// ErrConflict 资源冲突（邮箱重复、申请重复）
	ErrConflict = errors.New("资源冲突")
)

// HTTPStatus 根据错误分类返回 HTTP 状态码，未分类错误一律 500
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
