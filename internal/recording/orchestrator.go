package recording

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowcast/backend/internal/models"
)

// Composer manages the external multi-camera composition process for a wedding.
type Composer interface {
	Start(ctx context.Context, weddingID, jobID uuid.UUID, sources []string, outputPath string) (processKey string, err error)
	Stop(ctx context.Context, weddingID uuid.UUID) error
}

// CameraDirectory supplies camera sources for composed recordings.
type CameraDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error)
}

// Orchestrator starts and stops recording jobs. Start is idempotent per
// wedding, and a composition launch failure marks the job failed without
// surfacing an error: recording is best-effort, streaming is not.
type Orchestrator struct {
	store     Store
	weddings  CameraDirectory
	composer  Composer
	outputDir string
	now       func() time.Time
	log       *zap.Logger
}

// NewOrchestrator creates a recording orchestrator.
func NewOrchestrator(store Store, weddings CameraDirectory, composer Composer, outputDir string, log *zap.Logger) *Orchestrator {
	if outputDir == "" {
		outputDir = os.TempDir()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		store:     store,
		weddings:  weddings,
		composer:  composer,
		outputDir: outputDir,
		now:       time.Now,
		log:       log,
	}
}

// OutputPath returns the raw artifact path for a recording session. The path
// is derived from the recording session ID so it is stable across pause and
// resume cycles.
func (o *Orchestrator) OutputPath(recordingSessionID uuid.UUID) string {
	return filepath.Join(o.outputDir, "recordings", recordingSessionID.String()+".mp4")
}

// Start begins recording for a wedding. If a job is already active it is
// returned unchanged, so resuming from a pause reuses the same continuous
// recording.
func (o *Orchestrator) Start(ctx context.Context, weddingID, recordingSessionID uuid.UUID, quality string, composed bool) (*models.RecordingJob, error) {
	active, err := o.store.GetActiveByWedding(ctx, weddingID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return active, nil
	}

	recordType := models.RecordTypeIndividual
	if composed {
		recordType = models.RecordTypeComposed
	}
	job := &models.RecordingJob{
		WeddingID:          weddingID,
		RecordingSessionID: recordingSessionID,
		Status:             models.JobStatusStarting,
		Quality:            quality,
		RecordType:         recordType,
		OutputPath:         o.OutputPath(recordingSessionID),
	}
	_ = os.MkdirAll(filepath.Dir(job.OutputPath), 0750)
	if err := o.store.Create(ctx, job); err != nil {
		// Lost the active-job race: someone else created it first.
		if existing, getErr := o.store.GetActiveByWedding(ctx, weddingID); getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, err
	}

	processKey := ""
	if composed {
		processKey, err = o.launchComposition(ctx, weddingID, job)
		if err != nil {
			if markErr := o.store.MarkFailed(ctx, job.ID, err.Error()); markErr != nil {
				o.log.Error("mark recording failed", zap.Error(markErr), zap.String("job_id", job.ID.String()))
			}
			job.Status = models.JobStatusFailed
			job.ErrorMessage = err.Error()
			o.log.Error("composition launch failed",
				zap.Error(err), zap.String("wedding_id", weddingID.String()), zap.String("job_id", job.ID.String()))
			return job, nil
		}
	}

	startedAt := o.now()
	if err := o.store.MarkRecording(ctx, job.ID, startedAt, processKey); err != nil {
		return nil, err
	}
	job.Status = models.JobStatusRecording
	job.StartedAt = &startedAt
	job.ProcessKey = processKey
	o.log.Info("recording job started",
		zap.String("wedding_id", weddingID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("record_type", recordType))
	return job, nil
}

// Stop finishes the wedding's active recording job, computing its duration
// from the job timestamps. Fails with ErrNoActiveJob when nothing is recording.
func (o *Orchestrator) Stop(ctx context.Context, weddingID uuid.UUID, stoppedBy string) (*models.RecordingJob, error) {
	job, err := o.store.GetActiveByWedding(ctx, weddingID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrNoActiveJob
	}
	if err := o.store.MarkStopping(ctx, job.ID); err != nil {
		return nil, err
	}
	if job.RecordType == models.RecordTypeComposed {
		if err := o.composer.Stop(ctx, weddingID); err != nil {
			o.log.Warn("composition stop failed",
				zap.Error(err), zap.String("wedding_id", weddingID.String()), zap.String("job_id", job.ID.String()))
		}
	}

	completedAt := o.now()
	duration := 0
	if job.StartedAt != nil {
		duration = int(completedAt.Sub(*job.StartedAt).Seconds())
	}
	if err := o.store.Complete(ctx, job.ID, completedAt, duration); err != nil {
		return nil, err
	}
	job.Status = models.JobStatusCompleted
	job.CompletedAt = &completedAt
	job.DurationSeconds = duration
	o.log.Info("recording job stopped",
		zap.String("wedding_id", weddingID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("stopped_by", stoppedBy),
		zap.Int("duration_seconds", duration))
	return job, nil
}

func (o *Orchestrator) launchComposition(ctx context.Context, weddingID uuid.UUID, job *models.RecordingJob) (string, error) {
	sources := []string{}
	wedding, err := o.weddings.GetByID(ctx, weddingID)
	if err == nil && wedding != nil {
		sources = wedding.CameraSources
		if len(sources) == 0 && wedding.ActiveCamera != "" {
			sources = []string{wedding.ActiveCamera}
		}
	}
	return o.composer.Start(ctx, weddingID, job.ID, sources, job.OutputPath)
}
