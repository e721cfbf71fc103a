package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordingStatus represents recording lifecycle.
const (
	RecordingStatusRecording = "recording"
	RecordingStatusCompleted = "completed"
	RecordingStatusFailed    = "failed"
)

// Recording is one egress (capture job) of an employee's stream during a shift.
// JobID is the provider egress id and the idempotency key for every terminal write.
type Recording struct {
	ID              uuid.UUID  `json:"id"`
	ShiftID         uuid.UUID  `json:"shift_id"`
	EmployeeID      uuid.UUID  `json:"employee_id"`
	JobID           string     `json:"job_id"`
	Status          string     `json:"status"`
	SegmentCount    int        `json:"segment_count"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	StorageLocation string     `json:"storage_location,omitempty"`
}

// IsTerminal reports whether the recording has left the recording state.
func (r *Recording) IsTerminal() bool {
	return r.Status == RecordingStatusCompleted || r.Status == RecordingStatusFailed
}
