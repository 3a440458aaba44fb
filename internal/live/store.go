package live

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vowcast/backend/internal/models"
)

// TransitionUpdate carries the field mutations applied atomically with a
// compare-and-set status write. Unset pointer fields are left untouched.
type TransitionUpdate struct {
	StartedAt          *time.Time
	PausedAt           *time.Time
	ClearPausedAt      bool
	ResumedAt          *time.Time
	EndedAt            *time.Time
	PauseCountDelta    int
	PauseDurationDelta int
	CanGoLive          *bool
	History            models.StatusChange
}

// Store is the persistence abstraction for live sessions. The pgx Repository
// is the production implementation; tests use an in-memory fake.
type Store interface {
	// GetByWedding returns the wedding's session, or nil when none exists.
	GetByWedding(ctx context.Context, weddingID uuid.UUID) (*models.LiveSession, error)
	// Create inserts a new session in waiting status. Returns ErrConflict if
	// a session for the wedding already exists.
	Create(ctx context.Context, weddingID, recordingSessionID uuid.UUID, entry models.StatusChange) (*models.LiveSession, error)
	// CompareAndTransition applies the transition only if the session status
	// still equals from, appending the history entry in the same write.
	// Returns false when the conditional write matched no row.
	CompareAndTransition(ctx context.Context, weddingID uuid.UUID, from, to models.SessionStatus, upd TransitionUpdate) (bool, error)
}

// Repository handles live_sessions persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a live sessions repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const sessionColumns = `id, wedding_id, status, stream_started_at, stream_paused_at, stream_resumed_at, stream_ended_at,
		pause_count, total_pause_duration, recording_session_id, status_history, can_go_live, created_at, updated_at`

func scanSession(row pgx.Row) (*models.LiveSession, error) {
	var s models.LiveSession
	err := row.Scan(&s.ID, &s.WeddingID, &s.Status, &s.StreamStartedAt, &s.StreamPausedAt, &s.StreamResumedAt, &s.StreamEndedAt,
		&s.PauseCount, &s.TotalPauseDuration, &s.RecordingSessionID, &s.StatusHistory, &s.CanGoLive, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByWedding returns the live session for a wedding, or nil if none exists.
func (r *Repository) GetByWedding(ctx context.Context, weddingID uuid.UUID) (*models.LiveSession, error) {
	q := `SELECT ` + sessionColumns + ` FROM live_sessions WHERE wedding_id = $1`
	s, err := scanSession(r.pool.QueryRow(ctx, q, weddingID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return s, nil
}

// Create inserts a new session in waiting status with its first history entry.
// The unique wedding_id constraint makes concurrent go-live requests race to
// a single row; the loser gets ErrConflict.
func (r *Repository) Create(ctx context.Context, weddingID, recordingSessionID uuid.UUID, entry models.StatusChange) (*models.LiveSession, error) {
	history, err := json.Marshal([]models.StatusChange{entry})
	if err != nil {
		return nil, fmt.Errorf("marshal history: %w", err)
	}
	q := `INSERT INTO live_sessions (id, wedding_id, status, recording_session_id, status_history, can_go_live)
		VALUES (gen_random_uuid(), $1, $2, $3, $4::jsonb, TRUE)
		ON CONFLICT (wedding_id) DO NOTHING
		RETURNING ` + sessionColumns
	s, err := scanSession(r.pool.QueryRow(ctx, q, weddingID, models.SessionWaiting, recordingSessionID, history))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrConflict
		}
		return nil, err
	}
	return s, nil
}

// CompareAndTransition applies a transition conditioned on the current status
// still being from. Field mutations and the history append happen in the same
// UPDATE, so a history entry is never observed without its state change.
func (r *Repository) CompareAndTransition(ctx context.Context, weddingID uuid.UUID, from, to models.SessionStatus, upd TransitionUpdate) (bool, error) {
	history, err := json.Marshal([]models.StatusChange{upd.History})
	if err != nil {
		return false, fmt.Errorf("marshal history: %w", err)
	}
	set := []string{"status = $3", "status_history = status_history || $4::jsonb", "updated_at = NOW()"}
	args := []interface{}{weddingID, from, to, history}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if upd.StartedAt != nil {
		set = append(set, "stream_started_at = "+next(*upd.StartedAt))
	}
	if upd.PausedAt != nil {
		set = append(set, "stream_paused_at = "+next(*upd.PausedAt))
	} else if upd.ClearPausedAt {
		set = append(set, "stream_paused_at = NULL")
	}
	if upd.ResumedAt != nil {
		set = append(set, "stream_resumed_at = "+next(*upd.ResumedAt))
	}
	if upd.EndedAt != nil {
		set = append(set, "stream_ended_at = "+next(*upd.EndedAt))
	}
	if upd.PauseCountDelta != 0 {
		set = append(set, "pause_count = pause_count + "+next(upd.PauseCountDelta))
	}
	if upd.PauseDurationDelta != 0 {
		set = append(set, "total_pause_duration = total_pause_duration + "+next(upd.PauseDurationDelta))
	}
	if upd.CanGoLive != nil {
		set = append(set, "can_go_live = "+next(*upd.CanGoLive))
	}
	q := fmt.Sprintf(`UPDATE live_sessions SET %s WHERE wedding_id = $1 AND status = $2`, strings.Join(set, ", "))
	tag, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
