package service

import (
	"fmt"

	apperrors "regdesk/pkg/errors"
)

// ── 业务错误 ──
// 均包装 pkg/errors 中的分类，Handler 层据此映射状态码

var (
	ErrInvalidCredentials   = fmt.Errorf("%w: 邮箱或密码错误", apperrors.ErrUnauthorized)
	ErrTokenInvalid         = fmt.Errorf("%w: 登录状态已失效，请重新登录", apperrors.ErrUnauthorized)
	ErrUserNotFound         = fmt.Errorf("%w: 用户不存在", apperrors.ErrNotFound)
	ErrForbidden            = fmt.Errorf("%w: 仅管理员或工作人员可操作", apperrors.ErrForbidden)
	ErrAlreadyAuthenticated = fmt.Errorf("%w: 已登录用户不能提交注册申请", apperrors.ErrValidation)
	ErrEmailRegistered      = fmt.Errorf("%w: 该邮箱已注册", apperrors.ErrConflict)
	ErrRequestDuplicate     = fmt.Errorf("%w: 该邮箱已有待审批的申请", apperrors.ErrConflict)
	ErrRequestBusy          = fmt.Errorf("%w: 该申请正在被处理，请稍后重试", apperrors.ErrConflict)
	ErrRequestNotFound      = fmt.Errorf("%w: 申请不存在", apperrors.ErrNotFound)
)

// ValidationError 字段校验失败
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Reason
}

// Unwrap 归类为 ErrValidation
func (e *ValidationError) Unwrap() error {
	return apperrors.ErrValidation
}

func invalidField(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
