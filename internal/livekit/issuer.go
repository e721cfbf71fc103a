package livekit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bodycam/backend/internal/apperrors"
	"github.com/bodycam/backend/internal/auth"
	"github.com/bodycam/backend/internal/models"
)

// ShiftReader looks up active shifts.
type ShiftReader interface {
	GetActive(ctx context.Context, id uuid.UUID) (*models.Shift, error)
}

// ProfileReader looks up caller roles.
type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
}

// Issuer mints per-caller room capabilities for a shift's session.
type Issuer struct {
	shifts   ShiftReader
	profiles ProfileReader
	signer   *Signer
	ttl      time.Duration
	logger   *zap.Logger
}

// NewIssuer creates a token issuer. A nil signer makes every issuance fail with
// apperrors.ErrMisconfigured.
func NewIssuer(shifts ShiftReader, profiles ProfileReader, signer *Signer, ttl time.Duration, logger *zap.Logger) *Issuer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &Issuer{shifts: shifts, profiles: profiles, signer: signer, ttl: ttl, logger: logger}
}

// IssueToken returns a capability to join the shift's session. Managers subscribe only;
// everyone else may publish. Nothing is written.
func (i *Issuer) IssueToken(ctx context.Context, caller *auth.Identity, shiftID uuid.UUID) (*CapabilityToken, error) {
	if caller == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	if i.signer == nil {
		return nil, fmt.Errorf("%w: livekit credentials missing", apperrors.ErrMisconfigured)
	}
	shift, err := i.shifts.GetActive(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	profile, err := i.profiles.GetByID(ctx, caller.SubjectID)
	if err != nil {
		return nil, err
	}
	token, err := i.signer.ParticipantToken(
		caller.SubjectID.String(),
		profile.DisplayName(),
		shift.SessionName(),
		profile.Role.CanPublish(),
		i.ttl,
	)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	i.logger.Info("capability issued",
		zap.String("shift_id", shift.ID.String()),
		zap.String("subject_id", caller.SubjectID.String()),
		zap.String("role", string(profile.Role)),
		zap.Bool("can_publish", token.CanPublish),
	)
	return token, nil
}
