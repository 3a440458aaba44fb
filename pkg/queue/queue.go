package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueFinalize is the Redis list key for recording finalization jobs.
	QueueFinalize = "worker:finalize"
	// QueueDLQ holds jobs whose finalization failed; there is no automatic
	// retry, failed jobs wait here for operator inspection.
	QueueDLQ = "worker:finalize:dlq"
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypeFinalizeRecording JobType = "finalize_recording"
)

// FinalizeRecordingPayload is the payload for finalization jobs, enqueued
// exactly once when a live session ends.
type FinalizeRecordingPayload struct {
	WeddingID          uuid.UUID `json:"wedding_id"`
	LiveSessionID      uuid.UUID `json:"live_session_id"`
	RecordingSessionID uuid.UUID `json:"recording_session_id"`
	EndedBy            string    `json:"ended_by"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// Queue enqueues and dequeues jobs via Redis. The list is durable: jobs
// enqueued before a process restart are picked up by the next worker.
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

// EnqueueFinalize enqueues a recording finalization job.
func (q *Queue) EnqueueFinalize(ctx context.Context, payload FinalizeRecordingPayload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	job := Job{
		ID:        uuid.New().String(),
		Type:      JobTypeFinalizeRecording,
		Payload:   body,
		CreatedAt: time.Now(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueFinalize, raw).Err(); err != nil {
		return fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued finalize job",
		zap.String("job_id", job.ID),
		zap.String("wedding_id", payload.WeddingID.String()))
	return nil
}

// Dequeue blocks until a job is available or ctx is done.
func (q *Queue) Dequeue(ctx context.Context) (*Job, error) {
	result, err := q.client.BLPop(ctx, 0, QueueFinalize).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		return nil, nil
	}
	return &job, nil
}

// Deadletter moves a failed job to the DLQ. Finalization is never retried
// automatically; the DLQ exists so operators can see and replay failures.
func (q *Queue) Deadletter(ctx context.Context, job *Job, reason string) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
		return err
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.String("reason", reason))
	return nil
}
