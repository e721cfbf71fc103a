package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueReconcile is the Redis list key for recording reconciliation jobs.
	QueueReconcile = "worker:reconcile"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// MaxRetries is the number of times to retry a job before moving to DLQ.
	MaxRetries = 5
	// RetryBackoff is the delay between retries.
	RetryBackoff = 10 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	// JobTypeFinalize replays a terminal registry write that failed during a webhook.
	JobTypeFinalize JobType = "recording_finalize"
	// JobTypeRegister inserts a recording row for an egress that started but was not recorded.
	JobTypeRegister JobType = "recording_register"
)

// FinalizePayload is the payload for finalize jobs.
type FinalizePayload struct {
	JobID           string    `json:"job_id"`
	Status          string    `json:"status"`
	StorageLocation string    `json:"storage_location,omitempty"`
	Source          string    `json:"source"`
	EndedAt         time.Time `json:"ended_at"`
}

// RegisterPayload is the payload for register jobs.
type RegisterPayload struct {
	JobID      string    `json:"job_id"`
	ShiftID    uuid.UUID `json:"shift_id"`
	EmployeeID uuid.UUID `json:"employee_id"`
	StartedAt  time.Time `json:"started_at"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewJob wraps payload in a fresh envelope.
func NewJob(t JobType, payload any) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Job{
		ID:        uuid.New().String(),
		Type:      t,
		Payload:   body,
		CreatedAt: time.Now(),
	}, nil
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", j.Type, err)
	}
	return nil
}

// Exhausted reports whether the job has used up its retries.
func (j *Job) Exhausted() bool {
	return j.Attempt >= MaxRetries
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client *redis.Client
	logger *zap.Logger
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: client, logger: logger}
}

// EnqueueFinalize enqueues a finalize job.
func (q *Queue) EnqueueFinalize(ctx context.Context, payload FinalizePayload) error {
	job, err := NewJob(JobTypeFinalize, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueReconcile, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued finalize job", zap.String("id", job.ID), zap.String("job_id", payload.JobID))
	return nil
}

// EnqueueRegister enqueues a register job.
func (q *Queue) EnqueueRegister(ctx context.Context, payload RegisterPayload) error {
	job, err := NewJob(JobTypeRegister, payload)
	if err != nil {
		return err
	}
	if err := q.push(ctx, QueueReconcile, job); err != nil {
		return err
	}
	q.logger.Debug("enqueued register job", zap.String("id", job.ID), zap.String("job_id", payload.JobID))
	return nil
}

func (q *Queue) push(ctx context.Context, key string, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	return nil
}

// Dequeue blocks until a job is available or ctx is done. Returns job and key (queue name).
// A nil job with a nil error means the entry was unreadable and has been dropped.
func (q *Queue) Dequeue(ctx context.Context) (*Job, string, error) {
	result, err := q.client.BLPop(ctx, 0, QueueReconcile).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, "", nil
		}
		return nil, "", err
	}
	if len(result) < 2 {
		return nil, "", nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, "", nil
	}
	return &job, result[0], nil
}

// Retry re-enqueues a job with incremented attempt. If attempt >= MaxRetries, pushes to DLQ instead.
func (q *Queue) Retry(ctx context.Context, job *Job) error {
	job.Attempt++
	if job.Exhausted() {
		if err := q.push(ctx, QueueDLQ, job); err != nil {
			q.logger.Error("dlq push failed", zap.Error(err), zap.String("id", job.ID))
			return err
		}
		q.logger.Warn("job moved to DLQ", zap.String("id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt))
		return nil
	}
	if err := q.push(ctx, QueueReconcile, job); err != nil {
		return err
	}
	q.logger.Info("job retried", zap.String("id", job.ID), zap.Int("attempt", job.Attempt))
	return nil
}
