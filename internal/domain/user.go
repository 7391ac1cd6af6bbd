package domain

import "time"

// Role is the community role chosen at sign-up.
type Role string

const (
	RoleDesigner Role = "designer"
	RoleBuyer    Role = "buyer"
	RoleCustomer Role = "customer"
)

// Roles lists every valid role in display order.
var Roles = []Role{RoleDesigner, RoleBuyer, RoleCustomer}

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleDesigner, RoleBuyer, RoleCustomer:
		return true
	}
	return false
}

// User is a platform account as stored in the users table.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      Role       `json:"role"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// AuthResponse pairs a bearer token with the authenticated user.
type AuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}
