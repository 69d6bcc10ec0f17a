package dto

// ── 注册申请模块 DTO ──

// SubmitRequest 提交注册申请
// 邮箱格式（需先去除首尾空格）与角色相关的条件必填（researcher 需护照号与主管审批链接）在 Service 层校验
type SubmitRequest struct {
	Name                string `json:"name"                  binding:"required,max=100"`
	Email               string `json:"email"                 binding:"required,max=255"`
	Role                string `json:"role"                  binding:"required,oneof=user staff admin researcher"`
	Phone               string `json:"phone"                 binding:"omitempty,max=20"`
	About               string `json:"about"                 binding:"omitempty,max=2000"`
	PassportNumber      string `json:"passport_number"       binding:"omitempty,max=50"`
	DirectorApprovalURL string `json:"director_approval_url" binding:"omitempty,max=2048"`
}
