package entity

import "time"

// User roles
const (
	RoleUser     = "user"
	RoleApprover = "approver"
	RoleAdmin    = "admin"
)

// IsValidRole checks if a role is valid
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleApprover, RoleAdmin:
		return true
	}
	return false
}

// User is a directory entry keyed by lower-cased email.
type User struct {
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	Department *string   `json:"department,omitempty"`
	Role       string    `json:"role"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CanApprove reports whether the user may be named on a routing rule
func (u *User) CanApprove() bool {
	return u.Role == RoleApprover || u.Role == RoleAdmin
}
