package models

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is the live session lifecycle state.
type SessionStatus string

const (
	SessionIdle    SessionStatus = "idle"
	SessionWaiting SessionStatus = "waiting"
	SessionLive    SessionStatus = "live"
	SessionPaused  SessionStatus = "paused"
	SessionEnded   SessionStatus = "ended"
)

// SessionTransitions is the full table of allowed status transitions.
// Ended is absorbing: it has no successors.
var SessionTransitions = map[SessionStatus][]SessionStatus{
	SessionIdle:    {SessionWaiting},
	SessionWaiting: {SessionLive},
	SessionLive:    {SessionPaused, SessionEnded},
	SessionPaused:  {SessionLive, SessionEnded},
	SessionEnded:   {},
}

// CanTransition reports whether from -> to is an allowed session transition.
func CanTransition(from, to SessionStatus) bool {
	for _, next := range SessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Valid reports whether s is a known session status.
func (s SessionStatus) Valid() bool {
	_, ok := SessionTransitions[s]
	return ok
}

// StatusChange is one entry in the session status history.
type StatusChange struct {
	Status      SessionStatus `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	Reason      string        `json:"reason"`
	TriggeredBy string        `json:"triggered_by"`
}

// LiveSession is the permanent record of one wedding's streaming lifecycle.
// One row per wedding; once ended no field ever changes again.
type LiveSession struct {
	ID                 uuid.UUID      `json:"id"`
	WeddingID          uuid.UUID      `json:"wedding_id"`
	Status             SessionStatus  `json:"status"`
	StreamStartedAt    *time.Time     `json:"stream_started_at,omitempty"`
	StreamPausedAt     *time.Time     `json:"stream_paused_at,omitempty"`
	StreamResumedAt    *time.Time     `json:"stream_resumed_at,omitempty"`
	StreamEndedAt      *time.Time     `json:"stream_ended_at,omitempty"`
	PauseCount         int            `json:"pause_count"`
	TotalPauseDuration int            `json:"total_pause_duration"` // seconds
	RecordingSessionID uuid.UUID      `json:"recording_session_id"`
	StatusHistory      []StatusChange `json:"status_history"`
	CanGoLive          bool           `json:"can_go_live"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// ElapsedLiveSeconds returns how long the stream has actually been live,
// excluding accumulated pause time. While paused the ongoing pause is also
// excluded; once ended the closed interval is used.
func (s *LiveSession) ElapsedLiveSeconds(now time.Time) int {
	if s.StreamStartedAt == nil {
		return 0
	}
	end := now
	if s.StreamEndedAt != nil {
		end = *s.StreamEndedAt
	}
	elapsed := int(end.Sub(*s.StreamStartedAt).Seconds()) - s.TotalPauseDuration
	if s.Status == SessionPaused && s.StreamPausedAt != nil {
		elapsed -= int(end.Sub(*s.StreamPausedAt).Seconds())
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}
