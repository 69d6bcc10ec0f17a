package handler

import (
	"github.com/gin-gonic/gin"

	"regdesk/internal/api/middleware"
	"regdesk/internal/dto"
	"regdesk/pkg/response"
)

// CurrentActor 从 Gin 上下文中提取调用方身份，匿名请求返回 nil
func CurrentActor(c *gin.Context) *dto.Actor {
	userID := c.GetString(middleware.ContextKeyUserID)
	if userID == "" {
		return nil
	}
	return &dto.Actor{
		UserID: userID,
		Name:   c.GetString(middleware.ContextKeyName),
		Email:  c.GetString(middleware.ContextKeyEmail),
		Role:   c.GetString(middleware.ContextKeyRole),
	}
}

// MustGetActor 提取调用方身份；匿名时写入 403 响应并返回 false
// 调用方应在 ok=false 时直接 return
func MustGetActor(c *gin.Context) (*dto.Actor, bool) {
	actor := CurrentActor(c)
	if actor == nil {
		response.Forbidden(c, 10003, "无权限访问")
		return nil, false
	}
	return actor, true
}
