package recordings

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	lkproto "github.com/livekit/protocol/livekit"

	"github.com/bodycam/backend/internal/apperrors"
	"github.com/bodycam/backend/internal/livekit"
	"github.com/bodycam/backend/internal/models"
	"github.com/bodycam/backend/pkg/queue"
)

var errRegistryDown = errors.New("registry unavailable")

// memStore is an in-memory Store with the same conditional-update semantics as Repository.
type memStore struct {
	mu          sync.Mutex
	rows        map[string]*models.Recording
	failCreate  bool
	failFinal   bool
	finalWrites int
}

func newMemStore() *memStore {
	return &memStore{rows: map[string]*models.Recording{}}
}

func (m *memStore) Create(_ context.Context, rec *models.Recording) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failCreate {
		return false, errRegistryDown
	}
	if existing, ok := m.rows[rec.JobID]; ok {
		*rec = *existing
		return false, nil
	}
	rec.ID = uuid.New()
	rec.Status = models.RecordingStatusRecording
	cp := *rec
	m.rows[rec.JobID] = &cp
	return true, nil
}

func (m *memStore) GetByJobID(_ context.Context, jobID string) (*models.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[jobID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id {
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *memStore) Finalize(_ context.Context, f Finalization) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFinal {
		return false, errRegistryDown
	}
	r, ok := m.rows[f.JobID]
	if !ok || r.Status != models.RecordingStatusRecording {
		return false, nil
	}
	m.finalWrites++
	ended := f.EndedAt
	r.Status, r.StorageLocation, r.EndedAt = f.Status, f.StorageLocation, &ended
	return true, nil
}

func (m *memStore) UpdateSegmentCount(_ context.Context, jobID string, count int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[jobID]
	if !ok || r.Status != models.RecordingStatusRecording {
		return false, nil
	}
	if count > r.SegmentCount {
		r.SegmentCount = count
	}
	return true, nil
}

func (m *memStore) ListByShift(_ context.Context, shiftID uuid.UUID, employeeID *uuid.UUID) ([]models.Recording, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []models.Recording{}
	for _, r := range m.rows {
		if r.ShiftID == shiftID && (employeeID == nil || r.EmployeeID == *employeeID) {
			list = append(list, *r)
		}
	}
	return list, nil
}

func (m *memStore) row(jobID string) models.Recording {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[jobID]
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memShifts map[uuid.UUID]*models.Shift

func (f memShifts) GetActive(ctx context.Context, id uuid.UUID) (*models.Shift, error) {
	s, err := f.GetByID(ctx, id)
	if err != nil || s.Status != models.ShiftStatusActive {
		return nil, apperrors.ErrSessionNotFound
	}
	return s, nil
}

func (f memShifts) GetByID(_ context.Context, id uuid.UUID) (*models.Shift, error) {
	s, ok := f[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return s, nil
}

type memProfiles map[uuid.UUID]*models.UserProfile

func (f memProfiles) GetByID(_ context.Context, id uuid.UUID) (*models.UserProfile, error) {
	u, ok := f[id]
	if !ok {
		return nil, apperrors.ErrProfileNotFound
	}
	return u, nil
}

type fakeProvider struct {
	mu       sync.Mutex
	startErr error
	stopErr  error
	stopInfo *lkproto.EgressInfo
	nextID   int
	starts   []livekit.SegmentedEgressRequest
	stops    []string
}

func (p *fakeProvider) StartSegmentedEgress(_ context.Context, req livekit.SegmentedEgressRequest) (*lkproto.EgressInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.starts = append(p.starts, req)
	if p.startErr != nil {
		return nil, p.startErr
	}
	p.nextID++
	return &lkproto.EgressInfo{EgressId: fmt.Sprintf("EG_%d", p.nextID), Status: lkproto.EgressStatus_EGRESS_STARTING}, nil
}

func (p *fakeProvider) StopEgress(_ context.Context, egressID string) (*lkproto.EgressInfo, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops = append(p.stops, egressID)
	if p.stopErr != nil {
		return nil, p.stopErr
	}
	if p.stopInfo != nil {
		return p.stopInfo, nil
	}
	return &lkproto.EgressInfo{EgressId: egressID, Status: lkproto.EgressStatus_EGRESS_ENDING}, nil
}

type fakeRetrier struct {
	mu       sync.Mutex
	finalize []queue.FinalizePayload
	register []queue.RegisterPayload
	fail     bool
}

func (r *fakeRetrier) EnqueueFinalize(_ context.Context, p queue.FinalizePayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("redis down")
	}
	r.finalize = append(r.finalize, p)
	return nil
}

func (r *fakeRetrier) EnqueueRegister(_ context.Context, p queue.RegisterPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("redis down")
	}
	r.register = append(r.register, p)
	return nil
}

type published struct {
	shiftID uuid.UUID
	event   string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []published
}

func (n *fakeNotifier) Publish(_ context.Context, shiftID uuid.UUID, event string, _ any) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, published{shiftID: shiftID, event: event})
	return nil
}

func (n *fakeNotifier) events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.sent))
	for _, p := range n.sent {
		out = append(out, p.event)
	}
	return out
}

type fakePresigner struct{}

func (fakePresigner) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + key + "?sig=1", nil
}

func (fakePresigner) PresignExpire() time.Duration { return 15 * time.Minute }
