package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents user role in the platform.
type Role string

const (
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// UserProfile is the identity registry entry for an authenticated subject.
type UserProfile struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CanPublish reports whether the role streams media. Managers only watch.
func (r Role) CanPublish() bool {
	return r != RoleManager
}

// DisplayName returns Name, falling back to Email.
func (u *UserProfile) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return "Unknown"
}
