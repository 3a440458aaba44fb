package recording

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vowcast/backend/internal/models"
)

// ErrNoActiveJob is returned when a wedding has no in-flight recording job.
var ErrNoActiveJob = errors.New("no active recording job")

// Store is the persistence abstraction for recording jobs.
type Store interface {
	Create(ctx context.Context, job *models.RecordingJob) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.RecordingJob, error)
	GetActiveByWedding(ctx context.Context, weddingID uuid.UUID) (*models.RecordingJob, error)
	GetLatestBySession(ctx context.Context, recordingSessionID uuid.UUID) (*models.RecordingJob, error)
	GetLatestByWedding(ctx context.Context, weddingID uuid.UUID) (*models.RecordingJob, error)
	MarkRecording(ctx context.Context, id uuid.UUID, startedAt time.Time, processKey string) error
	MarkStopping(ctx context.Context, id uuid.UUID) error
	Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, durationSeconds int) error
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error
	UpdateStorageResult(ctx context.Context, id uuid.UUID, storageURL, storageKey string) error
	UpdateProcessKey(ctx context.Context, id uuid.UUID, processKey string) error
}

// Repository handles recording_jobs persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recording jobs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const jobColumns = `id, wedding_id, recording_session_id, status, quality, record_type, COALESCE(process_key,''),
		started_at, completed_at, duration_seconds, COALESCE(output_path,''), COALESCE(storage_key,''), COALESCE(storage_url,''), COALESCE(error_message,''),
		created_at, updated_at`

func scanJob(row pgx.Row) (*models.RecordingJob, error) {
	var j models.RecordingJob
	err := row.Scan(&j.ID, &j.WeddingID, &j.RecordingSessionID, &j.Status, &j.Quality, &j.RecordType, &j.ProcessKey,
		&j.StartedAt, &j.CompletedAt, &j.DurationSeconds, &j.OutputPath, &j.StorageKey, &j.StorageURL, &j.ErrorMessage,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// Create inserts a new recording job. The partial unique index on active jobs
// makes concurrent starts race to a single row; the loser gets ErrNoActiveJob
// semantics via the nil return and should re-read the active job.
func (r *Repository) Create(ctx context.Context, job *models.RecordingJob) error {
	q := `INSERT INTO recording_jobs (id, wedding_id, recording_session_id, status, quality, record_type, output_path)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, NULLIF($6,''))
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, job.WeddingID, job.RecordingSessionID, job.Status, job.Quality, job.RecordType, job.OutputPath).
		Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

// GetByID returns a recording job by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.RecordingJob, error) {
	q := `SELECT ` + jobColumns + ` FROM recording_jobs WHERE id = $1`
	return scanJob(r.pool.QueryRow(ctx, q, id))
}

// GetActiveByWedding returns the wedding's in-flight job (starting/recording/stopping), or nil.
func (r *Repository) GetActiveByWedding(ctx context.Context, weddingID uuid.UUID) (*models.RecordingJob, error) {
	q := `SELECT ` + jobColumns + ` FROM recording_jobs
		WHERE wedding_id = $1 AND status IN ($2, $3, $4)
		ORDER BY created_at DESC LIMIT 1`
	j, err := scanJob(r.pool.QueryRow(ctx, q, weddingID, models.JobStatusStarting, models.JobStatusRecording, models.JobStatusStopping))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return j, nil
}

// GetLatestBySession returns the most recent job for a recording session, or nil.
func (r *Repository) GetLatestBySession(ctx context.Context, recordingSessionID uuid.UUID) (*models.RecordingJob, error) {
	q := `SELECT ` + jobColumns + ` FROM recording_jobs
		WHERE recording_session_id = $1 ORDER BY created_at DESC LIMIT 1`
	j, err := scanJob(r.pool.QueryRow(ctx, q, recordingSessionID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return j, nil
}

// GetLatestByWedding returns the most recent job for a wedding, or nil.
func (r *Repository) GetLatestByWedding(ctx context.Context, weddingID uuid.UUID) (*models.RecordingJob, error) {
	q := `SELECT ` + jobColumns + ` FROM recording_jobs
		WHERE wedding_id = $1 ORDER BY created_at DESC LIMIT 1`
	j, err := scanJob(r.pool.QueryRow(ctx, q, weddingID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return j, nil
}

// MarkRecording moves a job to recording with its start time and optional process key.
func (r *Repository) MarkRecording(ctx context.Context, id uuid.UUID, startedAt time.Time, processKey string) error {
	const q = `UPDATE recording_jobs SET status = $1, started_at = $2, process_key = NULLIF($3,''), updated_at = NOW() WHERE id = $4`
	_, err := r.pool.Exec(ctx, q, models.JobStatusRecording, startedAt, processKey, id)
	return err
}

// MarkStopping moves a job to stopping.
func (r *Repository) MarkStopping(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE recording_jobs SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, models.JobStatusStopping, id)
	return err
}

// Complete moves a job to completed with its duration.
func (r *Repository) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, durationSeconds int) error {
	const q = `UPDATE recording_jobs SET status = $1, completed_at = $2, duration_seconds = $3, updated_at = NOW() WHERE id = $4`
	_, err := r.pool.Exec(ctx, q, models.JobStatusCompleted, completedAt, durationSeconds, id)
	return err
}

// MarkFailed moves a job to failed with the first error encountered.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	const q = `UPDATE recording_jobs SET status = $1, error_message = $2, updated_at = NOW() WHERE id = $3`
	_, err := r.pool.Exec(ctx, q, models.JobStatusFailed, errMsg, id)
	return err
}

// UpdateStorageResult records the durable locator after upload and marks the job completed.
func (r *Repository) UpdateStorageResult(ctx context.Context, id uuid.UUID, storageURL, storageKey string) error {
	const q = `UPDATE recording_jobs SET storage_url = $1, storage_key = $2, status = $3, updated_at = NOW() WHERE id = $4`
	_, err := r.pool.Exec(ctx, q, storageURL, storageKey, models.JobStatusCompleted, id)
	return err
}

// UpdateProcessKey replaces the composition process key (e.g. after a manual recover).
func (r *Repository) UpdateProcessKey(ctx context.Context, id uuid.UUID, processKey string) error {
	const q = `UPDATE recording_jobs SET process_key = NULLIF($1,''), updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, processKey, id)
	return err
}
