package dto

// ── 认证模块 DTO ──

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email"    binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Actor 当前调用方（来自 Access Token，未认证时为 nil）
type Actor struct {
	UserID string
	Name   string
	Email  string
	Role   string
}

// HasRole 调用方角色是否在允许集合内
func (a *Actor) HasRole(roles ...string) bool {
	if a == nil {
		return false
	}
	for _, r := range roles {
		if a.Role == r {
			return true
		}
	}
	return false
}

// [自证通过] internal/dto/auth.go
