package domain

// Actor identifies who performed a mutating operation. It is built from the
// JWT claims by the auth middleware and passed explicitly into every service
// call that writes; there is no ambient "current user" state anywhere.
type Actor struct {
	UserID   uint   `json:"user_id"`
	UserName string `json:"user_name"`
	Role     string `json:"role"`
}

// Staff roles
const (
	RoleAdmin   = "ADMIN"
	RoleStaff   = "STAFF"
	RoleTeacher = "TEACHER"
)
