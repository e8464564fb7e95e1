package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents a staff role on the registration desk.
type Role string

const (
	RoleSuperuser    Role = "superuser"
	RoleRegLead      Role = "reglead"
	RoleRegRAF       Role = "regraf"
	RoleRegistration Role = "registration"
	RoleStaff        Role = "staff"
)

// Privileged reports whether the role may override private check-ins.
func (r Role) Privileged() bool {
	return r == RoleSuperuser || r == RoleRegLead
}

// User represents a staff account.
type User struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// Actor returns the acting identity for service calls.
func (u *User) Actor() Actor {
	return Actor{UserID: u.ID, Username: u.Email, Role: u.Role}
}
