package recordings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bodycam/backend/internal/apperrors"
	"github.com/bodycam/backend/internal/models"
)

// Finalization is a terminal transition for one capture job.
type Finalization struct {
	JobID           string
	Status          string
	StorageLocation string
	EndedAt         time.Time
}

// Repository handles recording persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a recordings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const recordingColumns = `id, shift_id, employee_id, egress_id, status, segment_count, COALESCE(storage_url,''), started_at, ended_at`

func scanRecording(row pgx.Row) (*models.Recording, error) {
	var rec models.Recording
	err := row.Scan(&rec.ID, &rec.ShiftID, &rec.EmployeeID, &rec.JobID, &rec.Status, &rec.SegmentCount, &rec.StorageLocation, &rec.StartedAt, &rec.EndedAt)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Create inserts a recording in the recording state. An existing row with the same job id
// is left untouched and loaded into rec; created reports which case happened.
func (r *Repository) Create(ctx context.Context, rec *models.Recording) (created bool, err error) {
	const q = `INSERT INTO recordings (shift_id, employee_id, egress_id, status, started_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (egress_id) DO NOTHING
		RETURNING id`
	err = r.pool.QueryRow(ctx, q, rec.ShiftID, rec.EmployeeID, rec.JobID, models.RecordingStatusRecording, rec.StartedAt).Scan(&rec.ID)
	if err == nil {
		rec.Status = models.RecordingStatusRecording
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("insert recording: %w", err)
	}
	existing, err := r.GetByJobID(ctx, rec.JobID)
	if err != nil {
		return false, err
	}
	*rec = *existing
	return false, nil
}

// GetByJobID returns the recording for a provider egress id, or apperrors.ErrNotFound.
func (r *Repository) GetByJobID(ctx context.Context, jobID string) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE egress_id = $1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, jobID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get recording by job id: %w", err)
	}
	return rec, nil
}

// GetByID returns a recording by ID, or apperrors.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings WHERE id = $1`
	rec, err := scanRecording(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// finalizeSQL guards the terminal transition with the current status so that only one
// finalizer's write lands.
const finalizeSQL = `UPDATE recordings
	SET status = $2, storage_url = NULLIF($3, ''), ended_at = $4
	WHERE egress_id = $1 AND status = $5`

// Finalize moves the recording to a terminal status if and only if it is still recording.
func (r *Repository) Finalize(ctx context.Context, f Finalization) (bool, error) {
	tag, err := r.pool.Exec(ctx, finalizeSQL, f.JobID, f.Status, f.StorageLocation, f.EndedAt, models.RecordingStatusRecording)
	if err != nil {
		return false, fmt.Errorf("finalize recording: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateSegmentCount raises segment_count for a recording that is still running.
func (r *Repository) UpdateSegmentCount(ctx context.Context, jobID string, count int) (bool, error) {
	const q = `UPDATE recordings SET segment_count = GREATEST(segment_count, $2)
		WHERE egress_id = $1 AND status = $3`
	tag, err := r.pool.Exec(ctx, q, jobID, count, models.RecordingStatusRecording)
	if err != nil {
		return false, fmt.Errorf("update segment count: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ListByShift returns a shift's recordings, oldest first. employeeID narrows the list when set.
func (r *Repository) ListByShift(ctx context.Context, shiftID uuid.UUID, employeeID *uuid.UUID) ([]models.Recording, error) {
	q := `SELECT ` + recordingColumns + ` FROM recordings
		WHERE shift_id = $1 AND ($2::uuid IS NULL OR employee_id = $2)
		ORDER BY started_at`
	rows, err := r.pool.Query(ctx, q, shiftID, employeeID)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()
	list := []models.Recording{}
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *rec)
	}
	return list, rows.Err()
}
