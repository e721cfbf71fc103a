package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	ShiftStatusActive = "active"
	ShiftStatusEnded  = "ended"
)

// Shift is a supervision period opened by a manager. Read-only for this service.
type Shift struct {
	ID        uuid.UUID  `json:"id"`
	ManagerID uuid.UUID  `json:"manager_id"`
	Status    string     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// SessionName returns the provider room name for the shift (1:1 mapping).
func (s *Shift) SessionName() string {
	return SessionName(s.ID)
}

// SessionName returns "shift-<id>".
func SessionName(shiftID uuid.UUID) string {
	return "shift-" + shiftID.String()
}
