package domain

import "time"

// Role enumerates the closed set of account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// ParseRole validates a raw role value.
func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleUser, RoleAgent, RoleAdmin:
		return Role(raw), true
	}
	return "", false
}

// IsStaff reports whether the role carries agent-level privileges.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// User is the domain model for every account: requesters, agents and admins.
type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
