package composition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ProcessHandle describes a running composer process. Handles live in redis
// rather than an in-process map so every controller instance sees them.
type ProcessHandle struct {
	WeddingID  uuid.UUID `json:"wedding_id"`
	JobID      uuid.UUID `json:"job_id"`
	PID        int       `json:"pid"`
	OutputPath string    `json:"output_path"`
	Sources    []string  `json:"sources"`
	Status     string    `json:"status"` // canonical: "active"
	StartedAt  time.Time `json:"started_at"`
}

// Registry stores composer process handles keyed by wedding.
type Registry struct {
	rdb *redis.Client
}

// NewRegistry creates a redis-backed process handle registry.
func NewRegistry(rdb *redis.Client) *Registry {
	return &Registry{rdb: rdb}
}

// Key returns the registry key for a wedding's composer handle.
func Key(weddingID uuid.UUID) string {
	return "composition:wedding:" + weddingID.String()
}

// Save stores the handle for a wedding.
func (r *Registry) Save(ctx context.Context, handle *ProcessHandle) error {
	raw, err := json.Marshal(handle)
	if err != nil {
		return fmt.Errorf("marshal handle: %w", err)
	}
	if err := r.rdb.Set(ctx, Key(handle.WeddingID), raw, 0).Err(); err != nil {
		return fmt.Errorf("save handle: %w", err)
	}
	return nil
}

// Get returns the handle for a wedding, or nil when none is registered.
func (r *Registry) Get(ctx context.Context, weddingID uuid.UUID) (*ProcessHandle, error) {
	raw, err := r.rdb.Get(ctx, Key(weddingID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var handle ProcessHandle
	if err := json.Unmarshal([]byte(raw), &handle); err != nil {
		return nil, fmt.Errorf("unmarshal handle: %w", err)
	}
	return &handle, nil
}

// Delete removes the handle for a wedding.
func (r *Registry) Delete(ctx context.Context, weddingID uuid.UUID) error {
	return r.rdb.Del(ctx, Key(weddingID)).Err()
}
