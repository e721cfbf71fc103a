package shifts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bodycam/backend/internal/apperrors"
	"github.com/bodycam/backend/internal/models"
)

// Repository reads shifts. Shifts are owned by the manager app; this service never writes them.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a shifts repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetActive returns the shift if it exists and is active, or apperrors.ErrSessionNotFound.
func (r *Repository) GetActive(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	const q = `SELECT id, manager_id, status, started_at, ended_at FROM shifts WHERE id = $1 AND status = $2`
	var s models.Shift
	err := r.pool.QueryRow(ctx, q, id, models.ShiftStatusActive).Scan(&s.ID, &s.ManagerID, &s.Status, &s.StartedAt, &s.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get active shift: %w", err)
	}
	return &s, nil
}

// GetByID returns a shift in any status, or apperrors.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	const q = `SELECT id, manager_id, status, started_at, ended_at FROM shifts WHERE id = $1`
	var s models.Shift
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.ManagerID, &s.Status, &s.StartedAt, &s.EndedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get shift: %w", err)
	}
	return &s, nil
}
