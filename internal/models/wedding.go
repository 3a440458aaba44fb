package models

import (
	"time"

	"github.com/google/uuid"
)

// CameraStatusActive is the canonical status literal for an active camera.
const CameraStatusActive = "active"

// Wedding represents one wedding event on the platform.
type Wedding struct {
	ID            uuid.UUID `json:"id"`
	HostID        uuid.UUID `json:"host_id"`
	Title         string    `json:"title"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	MultiCamera   bool      `json:"multi_camera"`
	ActiveCamera  string    `json:"active_camera,omitempty"`
	CameraSources []string  `json:"camera_sources,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
