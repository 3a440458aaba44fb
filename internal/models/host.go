package models

import (
	"time"

	"github.com/google/uuid"
)

// Role represents an account role on the platform.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleHost  Role = "host"
)

// Host is a platform account that can own and control weddings.
type Host struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FullName     string    `json:"full_name"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HostPublic is Host without sensitive fields for API responses.
type HostPublic struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ToPublic converts Host to HostPublic.
func (h *Host) ToPublic() HostPublic {
	return HostPublic{
		ID:        h.ID,
		Email:     h.Email,
		FullName:  h.FullName,
		Role:      h.Role,
		CreatedAt: h.CreatedAt,
	}
}
