package domain

import "time"

const (
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Operator is an API user. Operators may submit loan transactions; viewers
// may only read.
type Operator struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ValidRole reports whether role is a known operator role.
func ValidRole(role string) bool {
	return role == RoleOperator || role == RoleViewer
}
