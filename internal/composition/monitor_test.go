package composition

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vowcast/backend/internal/models"
	"github.com/vowcast/backend/internal/recording"
)

type fakeLifecycle struct {
	startCalls  int
	stopCalls   int
	lastSources []string
	health      *HealthReport
}

func (f *fakeLifecycle) Start(ctx context.Context, weddingID, jobID uuid.UUID, sources []string, outputPath string) (string, error) {
	f.startCalls++
	f.lastSources = sources
	return Key(weddingID), nil
}

func (f *fakeLifecycle) Stop(ctx context.Context, weddingID uuid.UUID) error {
	f.stopCalls++
	return ErrNoProcess
}

func (f *fakeLifecycle) Health(ctx context.Context, weddingID uuid.UUID) (*HealthReport, error) {
	if f.health != nil {
		return f.health, nil
	}
	return &HealthReport{WeddingID: weddingID, Status: "inactive"}, nil
}

type fakeWeddingDir struct {
	wedding *models.Wedding
}

func (f *fakeWeddingDir) GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error) {
	return f.wedding, nil
}

type fakeJobs struct {
	active     *models.RecordingJob
	processKey string
}

func (f *fakeJobs) Create(ctx context.Context, job *models.RecordingJob) error { return nil }
func (f *fakeJobs) GetByID(ctx context.Context, id uuid.UUID) (*models.RecordingJob, error) {
	return nil, errors.New("unused")
}
func (f *fakeJobs) GetActiveByWedding(ctx context.Context, weddingID uuid.UUID) (*models.RecordingJob, error) {
	return f.active, nil
}
func (f *fakeJobs) GetLatestBySession(ctx context.Context, recordingSessionID uuid.UUID) (*models.RecordingJob, error) {
	return nil, nil
}
func (f *fakeJobs) GetLatestByWedding(ctx context.Context, weddingID uuid.UUID) (*models.RecordingJob, error) {
	return nil, nil
}
func (f *fakeJobs) MarkRecording(ctx context.Context, id uuid.UUID, startedAt time.Time, processKey string) error {
	return nil
}
func (f *fakeJobs) MarkStopping(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeJobs) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, durationSeconds int) error {
	return nil
}
func (f *fakeJobs) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error { return nil }
func (f *fakeJobs) UpdateStorageResult(ctx context.Context, id uuid.UUID, storageURL, storageKey string) error {
	return nil
}
func (f *fakeJobs) UpdateProcessKey(ctx context.Context, id uuid.UUID, processKey string) error {
	f.processKey = processKey
	return nil
}

func TestRecoverWithoutActiveJob(t *testing.T) {
	m := NewHealthMonitor(&fakeLifecycle{}, &fakeWeddingDir{}, &fakeJobs{}, nil)
	_, err := m.Recover(context.Background(), uuid.New())
	assert.ErrorIs(t, err, recording.ErrNoActiveJob)
}

func TestRecoverRelaunchesWithActiveCamera(t *testing.T) {
	weddingID := uuid.New()
	lc := &fakeLifecycle{}
	jobs := &fakeJobs{active: &models.RecordingJob{ID: uuid.New(), WeddingID: weddingID, Status: models.JobStatusRecording, OutputPath: "/tmp/out.mp4"}}
	dir := &fakeWeddingDir{wedding: &models.Wedding{
		ID:            weddingID,
		ActiveCamera:  "rtmp://cam/2",
		CameraSources: []string{"rtmp://cam/1", "rtmp://cam/2"},
	}}
	m := NewHealthMonitor(lc, dir, jobs, nil)

	_, err := m.Recover(context.Background(), weddingID)
	require.NoError(t, err)
	assert.Equal(t, 1, lc.startCalls)
	assert.Equal(t, []string{"rtmp://cam/2"}, lc.lastSources, "active camera wins over the full source list")
	assert.Equal(t, Key(weddingID), jobs.processKey)
}

func TestRecoverFallsBackToAllSources(t *testing.T) {
	weddingID := uuid.New()
	lc := &fakeLifecycle{}
	jobs := &fakeJobs{active: &models.RecordingJob{ID: uuid.New(), WeddingID: weddingID, Status: models.JobStatusRecording}}
	dir := &fakeWeddingDir{wedding: &models.Wedding{ID: weddingID, CameraSources: []string{"rtmp://cam/1", "rtmp://cam/2"}}}
	m := NewHealthMonitor(lc, dir, jobs, nil)

	_, err := m.Recover(context.Background(), weddingID)
	require.NoError(t, err)
	assert.Equal(t, []string{"rtmp://cam/1", "rtmp://cam/2"}, lc.lastSources)
}

func TestRecoverNoSources(t *testing.T) {
	weddingID := uuid.New()
	jobs := &fakeJobs{active: &models.RecordingJob{ID: uuid.New(), WeddingID: weddingID, Status: models.JobStatusRecording}}
	m := NewHealthMonitor(&fakeLifecycle{}, &fakeWeddingDir{wedding: &models.Wedding{ID: weddingID}}, jobs, nil)

	_, err := m.Recover(context.Background(), weddingID)
	assert.Error(t, err)
}
