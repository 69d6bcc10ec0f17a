package model

// 角色
const (
	RoleUser       = "user"
	RoleStaff      = "staff"
	RoleAdmin      = "admin"
	RoleResearcher = "researcher"
)

// ValidRole 判断角色是否合法
func ValidRole(role string) bool {
	switch role {
	case RoleUser, RoleStaff, RoleAdmin, RoleResearcher:
		return true
	}
	return false
}

// ReviewerRoles 可审批注册申请的角色
var ReviewerRoles = []string{RoleAdmin, RoleStaff}

// AllRoles 全部角色
var AllRoles = []string{RoleAdmin, RoleStaff, RoleResearcher, RoleUser}
