package service

// Role is the kind of user behind a request.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// Caller is the authenticated identity every service operation receives
// explicitly. The zero value is an anonymous caller and is always rejected.
type Caller struct {
	UserID int
	Role   Role
}

func (c Caller) require(role Role) error {
	if c.UserID <= 0 {
		return ErrIdentityRequired
	}
	if c.Role != role {
		return ErrRoleNotAllowed
	}
	return nil
}
