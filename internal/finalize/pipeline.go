package finalize

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowcast/backend/internal/models"
	"github.com/vowcast/backend/internal/recording"
	"github.com/vowcast/backend/pkg/queue"
)

// Transcoder encodes a raw recording artifact into its distributable form.
type Transcoder interface {
	Encode(ctx context.Context, inputPath string, weddingID uuid.UUID) (string, error)
}

// Storage uploads finished recordings to durable object storage.
type Storage interface {
	UploadRecording(ctx context.Context, weddingID, recordingID uuid.UUID, body io.Reader, size int64) (url, key string, err error)
}

// Recorder stops the in-flight recording job for a wedding.
type Recorder interface {
	Stop(ctx context.Context, weddingID uuid.UUID, stoppedBy string) (*models.RecordingJob, error)
}

// JobQueue is the durable queue the pipeline consumes from.
type JobQueue interface {
	Dequeue(ctx context.Context) (*queue.Job, error)
	Deadletter(ctx context.Context, job *queue.Job, reason string) error
}

// Processor runs the detached finalization pipeline: stop recording, locate
// the artifact, transcode, upload, persist the durable locator. A failed step
// marks the job failed with the first error and deadletters the queue entry;
// there is no automatic retry.
type Processor struct {
	queue JobQueue
	rec   Recorder
	jobs  recording.Store
	trans Transcoder
	store Storage
	log   *zap.Logger
}

// NewProcessor creates a finalization processor.
func NewProcessor(q JobQueue, rec Recorder, jobs recording.Store, trans Transcoder, store Storage, log *zap.Logger) *Processor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Processor{queue: q, rec: rec, jobs: jobs, trans: trans, store: store, log: log}
}

// Run consumes finalization jobs until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) {
	p.log.Info("finalize worker started")
	for {
		select {
		case <-ctx.Done():
			p.log.Info("finalize worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("dequeue failed", zap.Error(err))
			time.Sleep(2 * time.Second)
			continue
		}
		if job == nil {
			continue
		}
		p.handle(ctx, job)
	}
}

func (p *Processor) handle(ctx context.Context, job *queue.Job) {
	if job.Type != queue.JobTypeFinalizeRecording {
		p.log.Warn("unknown job type", zap.String("type", string(job.Type)), zap.String("job_id", job.ID))
		_ = p.queue.Deadletter(ctx, job, "unknown job type")
		return
	}
	var payload queue.FinalizeRecordingPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		p.log.Warn("invalid finalize payload", zap.Error(err), zap.String("job_id", job.ID))
		_ = p.queue.Deadletter(ctx, job, "invalid payload")
		return
	}
	if err := p.Process(ctx, payload); err != nil {
		p.log.Error("finalization failed",
			zap.Error(err),
			zap.String("wedding_id", payload.WeddingID.String()),
			zap.String("recording_session_id", payload.RecordingSessionID.String()))
		_ = p.queue.Deadletter(ctx, job, err.Error())
	}
}

// Process finalizes one recording session. Idempotent: re-running against a
// session whose job already carries a storage URL is a no-op.
func (p *Processor) Process(ctx context.Context, payload queue.FinalizeRecordingPayload) error {
	job, err := p.stopOrLookup(ctx, payload)
	if err != nil {
		return err
	}
	if job == nil {
		// Recording never started for this session (e.g. a failed composition
		// launch left no active job). Nothing to finalize.
		p.log.Info("no recording job for session, skipping finalization",
			zap.String("recording_session_id", payload.RecordingSessionID.String()))
		return nil
	}
	if job.StorageURL != "" {
		return nil
	}
	if job.Status == models.JobStatusFailed {
		p.log.Info("recording job already failed, skipping finalization",
			zap.String("job_id", job.ID.String()))
		return nil
	}

	if _, err := os.Stat(job.OutputPath); err != nil {
		return p.fail(ctx, job.ID, fmt.Errorf("locate artifact %s: %w", job.OutputPath, err))
	}

	encodedPath, err := p.trans.Encode(ctx, job.OutputPath, payload.WeddingID)
	if err != nil {
		return p.fail(ctx, job.ID, fmt.Errorf("transcode: %w", err))
	}

	f, err := os.Open(encodedPath)
	if err != nil {
		return p.fail(ctx, job.ID, fmt.Errorf("open encoded artifact: %w", err))
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return p.fail(ctx, job.ID, fmt.Errorf("stat encoded artifact: %w", err))
	}

	url, key, err := p.store.UploadRecording(ctx, payload.WeddingID, payload.RecordingSessionID, f, info.Size())
	if err != nil {
		return p.fail(ctx, job.ID, fmt.Errorf("upload recording: %w", err))
	}

	if err := p.jobs.UpdateStorageResult(ctx, job.ID, url, key); err != nil {
		return fmt.Errorf("persist storage result: %w", err)
	}
	p.log.Info("recording finalized",
		zap.String("wedding_id", payload.WeddingID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("storage_key", key),
		zap.Int64("bytes", info.Size()))
	return nil
}

// stopOrLookup stops the active recording job, or falls back to the session's
// latest job when recording has already been stopped.
func (p *Processor) stopOrLookup(ctx context.Context, payload queue.FinalizeRecordingPayload) (*models.RecordingJob, error) {
	job, err := p.rec.Stop(ctx, payload.WeddingID, payload.EndedBy)
	if err == nil {
		return job, nil
	}
	if err != recording.ErrNoActiveJob {
		return nil, fmt.Errorf("stop recording: %w", err)
	}
	return p.jobs.GetLatestBySession(ctx, payload.RecordingSessionID)
}

// fail records the first error on the job and surfaces it for deadlettering.
func (p *Processor) fail(ctx context.Context, jobID uuid.UUID, cause error) error {
	if err := p.jobs.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		p.log.Error("mark job failed", zap.Error(err), zap.String("job_id", jobID.String()))
	}
	return cause
}
