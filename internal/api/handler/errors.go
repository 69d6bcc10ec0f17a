package handler

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"regdesk/internal/api/middleware"
	"regdesk/internal/service"
	"regdesk/pkg/response"
)

// handleServiceError 将 Service 层错误映射为 HTTP 响应
// 未识别的错误一律 500，细节只进入日志（通过 c.Error 交给 Logger 中间件）
func handleServiceError(c *gin.Context, err error) {
	var ve *service.ValidationError

	switch {
	case errors.As(err, &ve):
		response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", ve.Error())
	case errors.Is(err, service.ErrAlreadyAuthenticated):
		response.BadRequest(c, 30004, "已登录用户不能提交注册申请")
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(c, 11001, "邮箱或密码错误")
	case errors.Is(err, service.ErrTokenInvalid):
		response.Unauthorized(c, 11002, "登录状态已失效，请重新登录")
	case errors.Is(err, service.ErrForbidden):
		response.Forbidden(c, 10003, "无权限访问")
	case errors.Is(err, service.ErrRequestNotFound):
		response.NotFound(c, 30001, "申请不存在或已处理")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 11003, "用户不存在")
	case errors.Is(err, service.ErrEmailRegistered):
		response.Conflict(c, 30002, "该邮箱已注册")
	case errors.Is(err, service.ErrRequestDuplicate):
		response.Conflict(c, 30003, "该邮箱已有待审批的申请")
	case errors.Is(err, service.ErrRequestBusy):
		response.Conflict(c, 30005, "该申请正在被处理，请稍后重试")
	default:
		_ = c.Error(err)
		response.InternalError(c)
	}
}

func init() {
	// 校验错误使用 JSON 字段名，避免向调用方暴露 Go 结构体名
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

// handleBindError 请求体绑定失败：超限返回 413，其余 400
func handleBindError(c *gin.Context, err error) {
	if middleware.IsBodyTooLarge(err) {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
		return
	}
	response.ErrorWithDetails(c, http.StatusBadRequest, 10001, "参数校验失败", bindErrorDetails(err))
}

// bindErrorDetails 形如 "email: required; role: oneof"；非校验错误（JSON 语法、类型不符）不回显原文
func bindErrorDetails(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "请求体格式错误"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+": "+fe.Tag())
	}
	return strings.Join(parts, "; ")
}
