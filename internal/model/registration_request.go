package model

// RequestStatus 注册申请状态
type RequestStatus string

const (
	// RequestStatusPending 待审批
	RequestStatusPending RequestStatus = "pending"
	// RequestStatusApproved 已通过（记录随即删除，仅作为状态机终态）
	RequestStatusApproved RequestStatus = "approved"
	// RequestStatusRejected 已拒绝（记录随即删除，仅作为状态机终态）
	RequestStatusRejected RequestStatus = "rejected"
)

// RegistrationRequest 注册申请表，对应 registration_requests
// 同一邮箱最多一条 pending 记录（部分唯一索引 uk_requests_pending_email）
type RegistrationRequest struct {
	RequestID           string        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"request_id"`
	Name                string        `gorm:"type:varchar(100);not null"                     json:"name"`
	Email               string        `gorm:"type:varchar(255);not null"                     json:"email"`
	Role                string        `gorm:"type:varchar(20);not null"                      json:"role"`
	Phone               *string       `gorm:"type:varchar(20)"                               json:"phone,omitempty"`
	About               *string       `gorm:"type:text"                                      json:"about,omitempty"`
	PassportNumber      *string       `gorm:"type:varchar(50)"                               json:"passport_number,omitempty"`
	DirectorApprovalURL *string       `gorm:"type:varchar(2048)"                             json:"director_approval_url,omitempty"`
	Status              RequestStatus `gorm:"type:varchar(20);not null;default:'pending'"    json:"status"`
	BaseModel
}

// TableName 指定表名
func (RegistrationRequest) TableName() string { return "registration_requests" }
