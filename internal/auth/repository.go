package auth

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vowcast/backend/internal/models"
)

// Repository handles host account persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a host by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Host, error) {
	const q = `SELECT id, email, password_hash, full_name, role, created_at, updated_at
		FROM hosts WHERE id = $1`
	var h models.Host
	err := r.pool.QueryRow(ctx, q, id).Scan(&h.ID, &h.Email, &h.PasswordHash, &h.FullName, &h.Role, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// GetByEmail returns a host by email.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.Host, error) {
	const q = `SELECT id, email, password_hash, full_name, role, created_at, updated_at
		FROM hosts WHERE email = $1`
	var h models.Host
	err := r.pool.QueryRow(ctx, q, email).Scan(&h.ID, &h.Email, &h.PasswordHash, &h.FullName, &h.Role, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

// Create inserts a new host account.
func (r *Repository) Create(ctx context.Context, email, passwordHash, fullName string, role models.Role) (*models.Host, error) {
	const q = `INSERT INTO hosts (email, password_hash, full_name, role)
		VALUES ($1, $2, $3, $4)
		RETURNING id, email, password_hash, full_name, role, created_at, updated_at`
	var h models.Host
	err := r.pool.QueryRow(ctx, q, email, passwordHash, fullName, string(role)).
		Scan(&h.ID, &h.Email, &h.PasswordHash, &h.FullName, &h.Role, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}
