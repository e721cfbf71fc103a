package recordings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lkproto "github.com/livekit/protocol/livekit"
	"go.uber.org/zap"

	"github.com/bodycam/backend/internal/apperrors"
	"github.com/bodycam/backend/internal/auth"
	"github.com/bodycam/backend/internal/events"
	"github.com/bodycam/backend/internal/livekit"
	"github.com/bodycam/backend/internal/metrics"
	"github.com/bodycam/backend/internal/models"
	"github.com/bodycam/backend/pkg/queue"
	"github.com/bodycam/backend/pkg/storage"
)

// Store is the Recording Registry.
type Store interface {
	Create(ctx context.Context, rec *models.Recording) (bool, error)
	GetByJobID(ctx context.Context, jobID string) (*models.Recording, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Recording, error)
	Finalize(ctx context.Context, f Finalization) (bool, error)
	UpdateSegmentCount(ctx context.Context, jobID string, count int) (bool, error)
	ListByShift(ctx context.Context, shiftID uuid.UUID, employeeID *uuid.UUID) ([]models.Recording, error)
}

// ShiftReader is the Shift Registry.
type ShiftReader interface {
	GetActive(ctx context.Context, id uuid.UUID) (*models.Shift, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Shift, error)
}

// ProfileReader is the identity registry.
type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UserProfile, error)
}

// CaptureProvider starts and stops capture jobs.
type CaptureProvider interface {
	StartSegmentedEgress(ctx context.Context, req livekit.SegmentedEgressRequest) (*lkproto.EgressInfo, error)
	StopEgress(ctx context.Context, egressID string) (*lkproto.EgressInfo, error)
}

// Retrier hands failed registry writes to the reconciliation worker.
type Retrier interface {
	EnqueueFinalize(ctx context.Context, payload queue.FinalizePayload) error
	EnqueueRegister(ctx context.Context, payload queue.RegisterPayload) error
}

// Notifier broadcasts lifecycle changes to shift subscribers.
type Notifier interface {
	Publish(ctx context.Context, shiftID uuid.UUID, event string, data any) error
}

// Presigner produces time-limited download links.
type Presigner interface {
	GeneratePresignedDownloadURL(ctx context.Context, key string, expires time.Duration) (string, error)
	PresignExpire() time.Duration
}

// CaptureConfig holds capture output settings.
type CaptureConfig struct {
	Layout          string
	SegmentDuration time.Duration
	Storage         storage.Credentials
}

// CaptureResult is returned by StartCapture.
type CaptureResult struct {
	JobID       string    `json:"job_id"`
	RecordingID uuid.UUID `json:"recording_id"`
}

// FinalizeRequest asks for a terminal transition of one capture job. ReportedLocation is
// the provider's output location, if it reported one.
type FinalizeRequest struct {
	JobID            string
	Status           string
	ReportedLocation string
	Source           string
	EndedAt          time.Time
}

// Service coordinates the recording lifecycle: start, stop, and provider callbacks.
type Service struct {
	store     Store
	shifts    ShiftReader
	profiles  ProfileReader
	provider  CaptureProvider
	locator   *storage.Locator
	cfg       CaptureConfig
	retrier   Retrier
	notifier  Notifier
	presigner Presigner
	metrics   *metrics.Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewService creates the lifecycle service. A nil provider makes starts fail with
// apperrors.ErrMisconfigured.
func NewService(store Store, shifts ShiftReader, profiles ProfileReader, provider CaptureProvider, locator *storage.Locator, cfg CaptureConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Layout == "" {
		cfg.Layout = "grid"
	}
	return &Service{
		store:    store,
		shifts:   shifts,
		profiles: profiles,
		provider: provider,
		locator:  locator,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// SetRetrier enables out-of-band reconciliation of failed registry writes.
func (s *Service) SetRetrier(r Retrier) { s.retrier = r }

// SetNotifier enables lifecycle notifications.
func (s *Service) SetNotifier(n Notifier) { s.notifier = n }

// SetPresigner enables presigned download links.
func (s *Service) SetPresigner(p Presigner) { s.presigner = p }

// SetMetrics enables lifecycle counters.
func (s *Service) SetMetrics(m *metrics.Metrics) { s.metrics = m }

// StartCapture starts recording the caller's stream in an active shift and registers the
// recording. The caller must have a profile, since the row references it. No row is
// written unless the provider accepted the job.
func (s *Service) StartCapture(ctx context.Context, caller *auth.Identity, shiftID uuid.UUID) (*CaptureResult, error) {
	if caller == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	if s.provider == nil {
		return nil, fmt.Errorf("%w: capture provider missing", apperrors.ErrMisconfigured)
	}
	shift, err := s.shifts.GetActive(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if _, err := s.profiles.GetByID(ctx, caller.SubjectID); err != nil {
		return nil, err
	}
	shiftKey, employeeKey := shift.ID.String(), caller.SubjectID.String()

	info, err := s.provider.StartSegmentedEgress(ctx, livekit.SegmentedEgressRequest{
		RoomName:        shift.SessionName(),
		FilenamePrefix:  storage.ChunkFilenamePrefix(shiftKey, employeeKey),
		PlaylistName:    storage.PlaylistKey(shiftKey, employeeKey),
		Layout:          s.cfg.Layout,
		SegmentDuration: s.cfg.SegmentDuration,
		Storage:         s.cfg.Storage,
	})
	if err != nil {
		s.metrics.CaptureStart(metrics.OutcomeFailure)
		s.logger.Warn("capture start failed",
			zap.String("shift_id", shiftKey),
			zap.String("employee_id", employeeKey),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCaptureStartFailed, err)
	}
	s.metrics.CaptureStart(metrics.OutcomeSuccess)

	rec := &models.Recording{
		ShiftID:    shift.ID,
		EmployeeID: caller.SubjectID,
		JobID:      info.GetEgressId(),
		Status:     models.RecordingStatusRecording,
		StartedAt:  s.now(),
	}
	if _, err := s.store.Create(ctx, rec); err != nil {
		s.metrics.Registration(metrics.OutcomeFailure)
		s.logger.Error("capture running but recording not registered",
			zap.String("job_id", rec.JobID),
			zap.String("shift_id", shiftKey),
			zap.String("employee_id", employeeKey),
			zap.Error(err),
		)
		s.enqueueRegister(ctx, rec)
		return nil, fmt.Errorf("%w: job %s: %v", apperrors.ErrRecordingRegistrationFailed, rec.JobID, err)
	}
	s.metrics.Registration(metrics.OutcomeSuccess)
	s.logger.Info("capture started",
		zap.String("job_id", rec.JobID),
		zap.String("recording_id", rec.ID.String()),
		zap.String("shift_id", shiftKey),
		zap.String("employee_id", employeeKey),
	)
	s.notify(ctx, rec.ShiftID, events.EventRecordingStarted, rec)
	return &CaptureResult{JobID: rec.JobID, RecordingID: rec.ID}, nil
}

// StopCapture asks the provider to stop a job and then finalizes the recording as
// completed if nothing has finalized it yet. Provider and registry failures are logged,
// never returned.
func (s *Service) StopCapture(ctx context.Context, caller *auth.Identity, jobID string) error {
	if caller == nil {
		return apperrors.ErrUnauthenticated
	}
	if jobID == "" {
		return apperrors.ErrInvalidJobID
	}
	var reported string
	if s.provider == nil {
		s.logger.Warn("capture stop skipped: provider not configured", zap.String("job_id", jobID))
	} else if info, err := s.provider.StopEgress(ctx, jobID); err != nil {
		s.logger.Warn("capture stop failed",
			zap.String("job_id", jobID),
			zap.Error(fmt.Errorf("%w: %v", apperrors.ErrStopFailed, err)),
		)
	} else {
		reported = livekit.PlaylistLocation(info)
	}

	_, err := s.Finalize(ctx, FinalizeRequest{
		JobID:            jobID,
		Status:           models.RecordingStatusCompleted,
		ReportedLocation: reported,
		Source:           metrics.SourceStop,
		EndedAt:          s.now(),
	})
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		s.logger.Warn("stop for unknown job", zap.String("job_id", jobID))
	case err != nil:
		s.logger.Warn("fallback finalize failed", zap.String("job_id", jobID), zap.Error(err))
	}
	return nil
}

// Finalize applies a terminal transition. It reports whether this call won; a recording
// that is already terminal is left as is. apperrors.ErrNotFound means no row exists yet.
func (s *Service) Finalize(ctx context.Context, req FinalizeRequest) (bool, error) {
	rec, err := s.store.GetByJobID(ctx, req.JobID)
	if err != nil {
		return false, err
	}
	if rec.IsTerminal() {
		s.metrics.Finalization(req.Source, metrics.OutcomeNoop)
		return false, nil
	}
	f := Finalization{JobID: req.JobID, Status: req.Status, EndedAt: req.EndedAt}
	if f.EndedAt.IsZero() {
		f.EndedAt = s.now()
	}
	if f.Status == models.RecordingStatusCompleted {
		f.StorageLocation = s.location(rec, req.ReportedLocation)
	}
	changed, err := s.store.Finalize(ctx, f)
	if err != nil {
		s.metrics.Finalization(req.Source, metrics.OutcomeFailure)
		return false, err
	}
	if !changed {
		s.metrics.Finalization(req.Source, metrics.OutcomeNoop)
		s.logger.Debug("recording already finalized", zap.String("job_id", req.JobID), zap.String("source", req.Source))
		return false, nil
	}
	s.metrics.Finalization(req.Source, f.Status)
	s.logger.Info("recording finalized",
		zap.String("job_id", req.JobID),
		zap.String("status", f.Status),
		zap.String("source", req.Source),
		zap.String("storage_location", f.StorageLocation),
	)
	rec.Status, rec.StorageLocation, rec.EndedAt = f.Status, f.StorageLocation, &f.EndedAt
	event := events.EventRecordingCompleted
	if f.Status == models.RecordingStatusFailed {
		event = events.EventRecordingFailed
	}
	s.notify(ctx, rec.ShiftID, event, rec)
	return true, nil
}

// location prefers the provider-reported output and falls back to the path convention.
func (s *Service) location(rec *models.Recording, reported string) string {
	if loc := s.locator.ResolveLocation(reported); loc != "" {
		return loc
	}
	return s.locator.PlaylistURL(rec.ShiftID.String(), rec.EmployeeID.String())
}

// Reconcile applies a verified provider callback. Registry failures are handed to the
// worker; only an error from the retry path itself is returned.
func (s *Service) Reconcile(ctx context.Context, ev *lkproto.WebhookEvent) error {
	s.metrics.WebhookEvent(ev.GetEvent())
	info := ev.GetEgressInfo()
	jobID := info.GetEgressId()
	switch ev.GetEvent() {
	case livekit.EventEgressStarted:
		s.logger.Debug("egress started", zap.String("job_id", jobID))
		return nil
	case livekit.EventEgressUpdated:
		count := livekit.SegmentCount(info)
		if jobID == "" || count <= 0 {
			return nil
		}
		if _, err := s.store.UpdateSegmentCount(ctx, jobID, int(count)); err != nil {
			s.logger.Warn("segment count update failed", zap.String("job_id", jobID), zap.Error(err))
		}
		return nil
	case livekit.EventEgressEnded:
	default:
		s.logger.Debug("ignoring provider event", zap.String("event", ev.GetEvent()))
		return nil
	}

	if jobID == "" {
		s.logger.Warn("egress_ended without egress id dropped", zap.String("event_id", ev.GetId()))
		return nil
	}
	req := FinalizeRequest{
		JobID:            jobID,
		Status:           models.RecordingStatusCompleted,
		ReportedLocation: livekit.PlaylistLocation(info),
		Source:           metrics.SourceWebhook,
		EndedAt:          s.now(),
	}
	if livekit.EgressFailed(info) {
		req.Status = models.RecordingStatusFailed
		s.logger.Warn("egress ended with failure",
			zap.String("job_id", jobID),
			zap.String("provider_status", info.GetStatus().String()),
			zap.String("provider_error", info.GetError()),
		)
	}
	if _, err := s.Finalize(ctx, req); err != nil {
		s.logger.Error("webhook finalize failed, queued for retry", zap.String("job_id", jobID), zap.Error(err))
		return s.enqueueFinalize(ctx, req)
	}
	return nil
}

// Register inserts the row for a job whose registration failed at start. Existing rows
// are left alone.
func (s *Service) Register(ctx context.Context, p queue.RegisterPayload) error {
	rec := &models.Recording{
		ShiftID:    p.ShiftID,
		EmployeeID: p.EmployeeID,
		JobID:      p.JobID,
		Status:     models.RecordingStatusRecording,
		StartedAt:  p.StartedAt,
	}
	created, err := s.store.Create(ctx, rec)
	if err != nil {
		s.metrics.Registration(metrics.OutcomeRetrying)
		return err
	}
	if created {
		s.metrics.Registration(metrics.OutcomeSuccess)
		s.logger.Info("recording registered late", zap.String("job_id", rec.JobID), zap.String("recording_id", rec.ID.String()))
		s.notify(ctx, rec.ShiftID, events.EventRecordingStarted, rec)
	}
	return nil
}

// ListRecordings returns a shift's recordings. The shift's manager sees every employee;
// anyone else sees only their own rows.
func (s *Service) ListRecordings(ctx context.Context, caller *auth.Identity, shiftID uuid.UUID, employeeID *uuid.UUID) ([]models.Recording, error) {
	if caller == nil {
		return nil, apperrors.ErrUnauthenticated
	}
	shift, err := s.shifts.GetByID(ctx, shiftID)
	if err != nil {
		return nil, err
	}
	if shift.ManagerID != caller.SubjectID {
		if employeeID != nil && *employeeID != caller.SubjectID {
			return nil, apperrors.ErrForbidden
		}
		self := caller.SubjectID
		employeeID = &self
	}
	return s.store.ListByShift(ctx, shiftID, employeeID)
}

// DownloadURL returns a time-limited link to a completed recording's manifest.
func (s *Service) DownloadURL(ctx context.Context, caller *auth.Identity, recordingID uuid.UUID) (string, time.Duration, error) {
	if caller == nil {
		return "", 0, apperrors.ErrUnauthenticated
	}
	rec, err := s.store.GetByID(ctx, recordingID)
	if err != nil {
		return "", 0, err
	}
	if rec.EmployeeID != caller.SubjectID {
		shift, err := s.shifts.GetByID(ctx, rec.ShiftID)
		if err != nil {
			return "", 0, err
		}
		if shift.ManagerID != caller.SubjectID {
			return "", 0, apperrors.ErrForbidden
		}
	}
	if rec.Status != models.RecordingStatusCompleted || rec.StorageLocation == "" {
		return "", 0, fmt.Errorf("%w: recording is %s", apperrors.ErrNotFound, rec.Status)
	}
	key, ours := s.locator.KeyFromLocation(rec.StorageLocation)
	if !ours || s.presigner == nil {
		return rec.StorageLocation, 0, nil
	}
	expires := s.presigner.PresignExpire()
	u, err := s.presigner.GeneratePresignedDownloadURL(ctx, key, expires)
	if err != nil {
		return "", 0, err
	}
	return u, expires, nil
}

func (s *Service) enqueueRegister(ctx context.Context, rec *models.Recording) {
	if s.retrier == nil {
		return
	}
	err := s.retrier.EnqueueRegister(ctx, queue.RegisterPayload{
		JobID:      rec.JobID,
		ShiftID:    rec.ShiftID,
		EmployeeID: rec.EmployeeID,
		StartedAt:  rec.StartedAt,
	})
	if err != nil {
		s.logger.Error("enqueue register failed", zap.String("job_id", rec.JobID), zap.Error(err))
		return
	}
	s.metrics.Registration(metrics.OutcomeRetrying)
}

func (s *Service) enqueueFinalize(ctx context.Context, req FinalizeRequest) error {
	if s.retrier == nil {
		return nil
	}
	err := s.retrier.EnqueueFinalize(ctx, queue.FinalizePayload{
		JobID:           req.JobID,
		Status:          req.Status,
		StorageLocation: req.ReportedLocation,
		Source:          req.Source,
		EndedAt:         req.EndedAt,
	})
	if err != nil {
		return fmt.Errorf("enqueue finalize %s: %w", req.JobID, err)
	}
	s.metrics.Finalization(req.Source, metrics.OutcomeRetrying)
	return nil
}

func (s *Service) notify(ctx context.Context, shiftID uuid.UUID, event string, rec *models.Recording) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, shiftID, event, rec); err != nil {
		s.logger.Debug("lifecycle notification failed", zap.String("event", event), zap.Error(err))
	}
}
