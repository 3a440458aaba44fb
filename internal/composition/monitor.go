package composition

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowcast/backend/internal/models"
	"github.com/vowcast/backend/internal/recording"
)

// Lifecycle is the managed composer surface the monitor drives. Satisfied by
// Manager; faked in tests.
type Lifecycle interface {
	Start(ctx context.Context, weddingID, jobID uuid.UUID, sources []string, outputPath string) (string, error)
	Stop(ctx context.Context, weddingID uuid.UUID) error
	Health(ctx context.Context, weddingID uuid.UUID) (*HealthReport, error)
}

// WeddingDirectory supplies the wedding's current camera configuration.
type WeddingDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error)
}

// HealthMonitor observes and recovers the composer process. There is no
// automatic supervision loop: recovery is operator-triggered.
type HealthMonitor struct {
	composer Lifecycle
	weddings WeddingDirectory
	jobs     recording.Store
	log      *zap.Logger
}

// NewHealthMonitor creates a composition health monitor.
func NewHealthMonitor(composer Lifecycle, weddings WeddingDirectory, jobs recording.Store, log *zap.Logger) *HealthMonitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &HealthMonitor{composer: composer, weddings: weddings, jobs: jobs, log: log}
}

// Health reports whether the wedding's composer is alive and producing output.
func (m *HealthMonitor) Health(ctx context.Context, weddingID uuid.UUID) (*HealthReport, error) {
	return m.composer.Health(ctx, weddingID)
}

// Recover re-launches composition for the wedding using its current active
// camera, attaching the new process to the active recording job.
func (m *HealthMonitor) Recover(ctx context.Context, weddingID uuid.UUID) (*HealthReport, error) {
	job, err := m.jobs.GetActiveByWedding(ctx, weddingID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, recording.ErrNoActiveJob
	}

	wedding, err := m.weddings.GetByID(ctx, weddingID)
	if err != nil {
		return nil, err
	}
	sources := wedding.CameraSources
	if wedding.ActiveCamera != "" {
		sources = []string{wedding.ActiveCamera}
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("wedding %s has no camera sources", weddingID)
	}

	// Best effort: the old process may already be gone.
	if err := m.composer.Stop(ctx, weddingID); err != nil && err != ErrNoProcess {
		m.log.Warn("stop stale composer failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
	}

	processKey, err := m.composer.Start(ctx, weddingID, job.ID, sources, job.OutputPath)
	if err != nil {
		return nil, fmt.Errorf("relaunch composer: %w", err)
	}
	if err := m.jobs.UpdateProcessKey(ctx, job.ID, processKey); err != nil {
		m.log.Error("update process key failed", zap.Error(err), zap.String("job_id", job.ID.String()))
	}
	m.log.Info("composer recovered",
		zap.String("wedding_id", weddingID.String()),
		zap.String("job_id", job.ID.String()))
	return m.composer.Health(ctx, weddingID)
}
