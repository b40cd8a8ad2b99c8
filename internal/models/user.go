package models

// UserRole represents the roles carried by access tokens.
type UserRole string

const (
	RoleSuperAdmin UserRole = "SUPERADMIN"
	RoleAdmin      UserRole = "ADMIN"
	RoleTeacher    UserRole = "TEACHER"
	RoleStudent    UserRole = "STUDENT"
	RoleTutor      UserRole = "TUTOR"
)

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
