package dto

// ── 认证模块响应 ──

// TokenResponse Token 响应
// RefreshToken 仅通过 HttpOnly Cookie 下发，不出现在响应体中
type TokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"-"`
	ExpiresIn    int          `json:"expires_in"` // Access Token 有效期（秒）
	User         UserResponse `json:"user"`
}

// UserResponse 账号信息响应（脱敏）
type UserResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Role               string `json:"role"`
	Phone              string `json:"phone,omitempty"`
	About              string `json:"about,omitempty"`
	ExhibitsCount      int    `json:"exhibits_count"`
	CommentsCount      int    `json:"comments_count"`
	NotificationsCount int    `json:"notifications_count"`
	CreatedAt          string `json:"created_at,omitempty"`
}

// ── 注册申请模块响应 ──

// SubmitResponse 提交申请响应
type SubmitResponse struct {
	ID string `json:"id"`
}

// RequestResponse 待审批申请
type RequestResponse struct {
	ID                  string `json:"id"`
	Name                string `json:"name"`
	Email               string `json:"email"`
	Role                string `json:"role"`
	Phone               string `json:"phone,omitempty"`
	About               string `json:"about,omitempty"`
	PassportNumber      string `json:"passport_number,omitempty"`
	DirectorApprovalURL string `json:"director_approval_url,omitempty"`
	Status              string `json:"status"`
	CreatedAt           string `json:"created_at"`
}

// ApproveResponse 审批通过响应
// GeneratedPassword 仅在本响应中返回一次，不落库、不记录日志
type ApproveResponse struct {
	UserID            string `json:"user_id"`
	GeneratedPassword string `json:"generated_password"`
	EmailSent         bool   `json:"email_sent"`
}

// RejectResponse 拒绝申请响应
type RejectResponse struct {
	RequestID string `json:"request_id"`
}

// [自证通过] internal/dto/response.go
