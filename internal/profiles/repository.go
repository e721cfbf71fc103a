package profiles

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

// Repository reads user profiles (caller roles) from the identity registry.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a profiles repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns the profile for a subject, or apperrors.ErrProfileNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error) {
	const q = `SELECT id, COALESCE(email,''), COALESCE(name,''), role, created_at FROM users WHERE id = $1`
	var u models.UserProfile
	var role string
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Email, &u.Name, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrProfileNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	u.Role = models.Role(role)
	return &u, nil
}
