package models

import (
	"time"

	"github.com/google/uuid"
)

// Recording job lifecycle.
const (
	JobStatusStarting  = "starting"
	JobStatusRecording = "recording"
	JobStatusStopping  = "stopping"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// Record types. Composed jobs additionally track an external composer process.
const (
	RecordTypeComposed   = "composed"
	RecordTypeIndividual = "individual"
)

// RecordingJob is one recording of a wedding stream. A single job spans any
// number of pause/resume cycles within one live session; at most one job per
// wedding may be active (starting/recording/stopping) at a time.
type RecordingJob struct {
	ID                 uuid.UUID  `json:"id"`
	WeddingID          uuid.UUID  `json:"wedding_id"`
	RecordingSessionID uuid.UUID  `json:"recording_session_id"`
	Status             string     `json:"status"`
	Quality            string     `json:"quality"`
	RecordType         string     `json:"record_type"`
	ProcessKey         string     `json:"process_key,omitempty"` // composition handle key (composed only)
	StartedAt          *time.Time `json:"started_at,omitempty"`
	CompletedAt        *time.Time `json:"completed_at,omitempty"`
	DurationSeconds    int        `json:"duration_seconds"`
	OutputPath         string     `json:"output_path,omitempty"`
	StorageKey         string     `json:"storage_key,omitempty"`
	StorageURL         string     `json:"storage_url,omitempty"`
	ErrorMessage       string     `json:"error_message,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// IsActive reports whether the job is still in flight.
func (j *RecordingJob) IsActive() bool {
	switch j.Status {
	case JobStatusStarting, JobStatusRecording, JobStatusStopping:
		return true
	}
	return false
}
