package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bodycam/backend/internal/apperrors"
	"github.com/bodycam/backend/internal/metrics"
	"github.com/bodycam/backend/internal/recordings"
	"github.com/bodycam/backend/pkg/queue"
)

// Reconciler applies queued registry writes.
type Reconciler interface {
	Finalize(ctx context.Context, req recordings.FinalizeRequest) (bool, error)
	Register(ctx context.Context, p queue.RegisterPayload) error
}

// JobQueue is the subset of queue.Queue the worker consumes.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ReconcileProcessor replays recording writes that failed on the request path: rows that
// were never registered after a capture started, and terminal updates from callbacks.
type ReconcileProcessor struct {
	reconciler Reconciler
	queue      JobQueue
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewReconcileProcessor creates a reconciliation processor.
func NewReconcileProcessor(reconciler Reconciler, q JobQueue, logger *zap.Logger) *ReconcileProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReconcileProcessor{reconciler: reconciler, queue: q, retryDelay: queue.RetryBackoff, logger: logger}
}

// Process executes one job.
func (p *ReconcileProcessor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeRegister:
		var payload queue.RegisterPayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		if err := p.reconciler.Register(ctx, payload); err != nil {
			return fmt.Errorf("register %s: %w", payload.JobID, err)
		}
		return nil
	case queue.JobTypeFinalize:
		var payload queue.FinalizePayload
		if err := job.Decode(&payload); err != nil {
			return err
		}
		changed, err := p.reconciler.Finalize(ctx, recordings.FinalizeRequest{
			JobID:            payload.JobID,
			Status:           payload.Status,
			ReportedLocation: payload.StorageLocation,
			Source:           metrics.SourceWorker,
			EndedAt:          payload.EndedAt,
		})
		if err != nil {
			return fmt.Errorf("finalize %s: %w", payload.JobID, err)
		}
		p.logger.Info("queued finalize applied", zap.String("job_id", payload.JobID), zap.Bool("changed", changed))
		return nil
	default:
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
}

// Run starts the worker loop: dequeue, process, retry on error. It returns when ctx is done.
func (p *ReconcileProcessor) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			p.logger.Info("reconcile worker stopping")
			return
		}

		job, _, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Warn("dequeue error", zap.Error(err))
				p.sleep(ctx)
			}
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			level := p.logger.Error
			if errors.Is(err, apperrors.ErrNotFound) {
				level = p.logger.Warn
			}
			level("job failed", zap.String("id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *ReconcileProcessor) sleep(ctx context.Context) {
	t := time.NewTimer(p.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
