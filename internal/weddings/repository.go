package weddings

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vowcast/backend/internal/models"
)

// Repository handles wedding persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a weddings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const weddingColumns = `id, host_id, title, scheduled_at, multi_camera, COALESCE(active_camera,''), COALESCE(camera_sources,'{}'), created_at, updated_at`

func scanWedding(row pgx.Row) (*models.Wedding, error) {
	var w models.Wedding
	err := row.Scan(&w.ID, &w.HostID, &w.Title, &w.ScheduledAt, &w.MultiCamera, &w.ActiveCamera, &w.CameraSources, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// Create inserts a new wedding.
func (r *Repository) Create(ctx context.Context, w *models.Wedding) error {
	const q = `INSERT INTO weddings (host_id, title, scheduled_at, multi_camera, active_camera, camera_sources)
		VALUES ($1, $2, $3, $4, NULLIF($5,''), $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, w.HostID, w.Title, w.ScheduledAt, w.MultiCamera, w.ActiveCamera, w.CameraSources).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

// GetByID returns a wedding by ID, or nil when it does not exist.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error) {
	q := `SELECT ` + weddingColumns + ` FROM weddings WHERE id = $1`
	w, err := scanWedding(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

// ListByHost returns the host's weddings, newest first.
func (r *Repository) ListByHost(ctx context.Context, hostID uuid.UUID) ([]models.Wedding, error) {
	q := `SELECT ` + weddingColumns + ` FROM weddings WHERE host_id = $1 ORDER BY scheduled_at DESC`
	rows, err := r.pool.Query(ctx, q, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []models.Wedding
	for rows.Next() {
		var w models.Wedding
		if err := rows.Scan(&w.ID, &w.HostID, &w.Title, &w.ScheduledAt, &w.MultiCamera, &w.ActiveCamera, &w.CameraSources, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// SetActiveCamera switches the wedding's active camera source.
func (r *Repository) SetActiveCamera(ctx context.Context, id uuid.UUID, source string) error {
	const q = `UPDATE weddings SET active_camera = NULLIF($1,''), updated_at = NOW() WHERE id = $2`
	_, err := r.pool.Exec(ctx, q, source, id)
	return err
}

// IsHostAuthorized reports whether the actor owns the wedding or is an admin.
func (r *Repository) IsHostAuthorized(ctx context.Context, weddingID, actorID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (
			SELECT 1 FROM weddings w WHERE w.id = $1 AND w.host_id = $2
		) OR EXISTS (
			SELECT 1 FROM hosts h WHERE h.id = $2 AND h.role = 'admin'
		)`
	var ok bool
	if err := r.pool.QueryRow(ctx, q, weddingID, actorID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}
