package finalize

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vowcast/backend/internal/models"
	"github.com/vowcast/backend/internal/recording"
	"github.com/vowcast/backend/pkg/queue"
)

type stubRecorder struct {
	job     *models.RecordingJob
	stopErr error
}

func (s *stubRecorder) Stop(ctx context.Context, weddingID uuid.UUID, stoppedBy string) (*models.RecordingJob, error) {
	if s.stopErr != nil {
		return nil, s.stopErr
	}
	return s.job, nil
}

type stubJobs struct {
	latest  *models.RecordingJob
	failed  map[uuid.UUID]string
	results map[uuid.UUID][2]string
}

func newStubJobs() *stubJobs {
	return &stubJobs{failed: map[uuid.UUID]string{}, results: map[uuid.UUID][2]string{}}
}

func (s *stubJobs) Create(ctx context.Context, job *models.RecordingJob) error { return nil }
func (s *stubJobs) GetByID(ctx context.Context, id uuid.UUID) (*models.RecordingJob, error) {
	return nil, errors.New("unused")
}
func (s *stubJobs) GetActiveByWedding(ctx context.Context, weddingID uuid.UUID) (*models.RecordingJob, error) {
	return nil, nil
}
func (s *stubJobs) GetLatestBySession(ctx context.Context, recordingSessionID uuid.UUID) (*models.RecordingJob, error) {
	return s.latest, nil
}
func (s *stubJobs) GetLatestByWedding(ctx context.Context, weddingID uuid.UUID) (*models.RecordingJob, error) {
	return s.latest, nil
}
func (s *stubJobs) MarkRecording(ctx context.Context, id uuid.UUID, startedAt time.Time, processKey string) error {
	return nil
}
func (s *stubJobs) MarkStopping(ctx context.Context, id uuid.UUID) error { return nil }
func (s *stubJobs) Complete(ctx context.Context, id uuid.UUID, completedAt time.Time, durationSeconds int) error {
	return nil
}
func (s *stubJobs) MarkFailed(ctx context.Context, id uuid.UUID, errMsg string) error {
	s.failed[id] = errMsg
	return nil
}
func (s *stubJobs) UpdateStorageResult(ctx context.Context, id uuid.UUID, storageURL, storageKey string) error {
	s.results[id] = [2]string{storageURL, storageKey}
	return nil
}
func (s *stubJobs) UpdateProcessKey(ctx context.Context, id uuid.UUID, processKey string) error {
	return nil
}

type stubTranscoder struct {
	out string
	err error
}

func (s *stubTranscoder) Encode(ctx context.Context, inputPath string, weddingID uuid.UUID) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.out, nil
}

type stubStorage struct {
	uploads int
	err     error
}

func (s *stubStorage) UploadRecording(ctx context.Context, weddingID, recordingID uuid.UUID, body io.Reader, size int64) (string, string, error) {
	if s.err != nil {
		return "", "", s.err
	}
	s.uploads++
	key := "recordings/" + weddingID.String() + "/" + recordingID.String() + ".mp4"
	return "https://bucket.s3.amazonaws.com/" + key, key, nil
}

type stubQueue struct {
	dlq []string
}

func (s *stubQueue) Dequeue(ctx context.Context) (*queue.Job, error) { return nil, nil }
func (s *stubQueue) Deadletter(ctx context.Context, job *queue.Job, reason string) error {
	s.dlq = append(s.dlq, reason)
	return nil
}

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("mp4 bytes"), 0600))
	return p
}

func testPayload() queue.FinalizeRecordingPayload {
	return queue.FinalizeRecordingPayload{
		WeddingID:          uuid.New(),
		LiveSessionID:      uuid.New(),
		RecordingSessionID: uuid.New(),
		EndedBy:            uuid.New().String(),
	}
}

func TestProcessHappyPath(t *testing.T) {
	dir := t.TempDir()
	raw := writeArtifact(t, dir, "raw.mp4")
	encoded := writeArtifact(t, dir, "raw-final.mp4")

	job := &models.RecordingJob{ID: uuid.New(), Status: models.JobStatusCompleted, OutputPath: raw}
	jobs := newStubJobs()
	storage := &stubStorage{}
	p := NewProcessor(&stubQueue{}, &stubRecorder{job: job}, jobs, &stubTranscoder{out: encoded}, storage, nil)

	err := p.Process(context.Background(), testPayload())
	require.NoError(t, err)
	assert.Equal(t, 1, storage.uploads)
	result, ok := jobs.results[job.ID]
	require.True(t, ok)
	assert.Contains(t, result[1], ".mp4")
}

func TestProcessAlreadyFinalized(t *testing.T) {
	job := &models.RecordingJob{ID: uuid.New(), Status: models.JobStatusCompleted, StorageURL: "https://done"}
	storage := &stubStorage{}
	p := NewProcessor(&stubQueue{}, &stubRecorder{job: job}, newStubJobs(), &stubTranscoder{}, storage, nil)

	require.NoError(t, p.Process(context.Background(), testPayload()))
	assert.Equal(t, 0, storage.uploads)
}

func TestProcessNoJobForSession(t *testing.T) {
	p := NewProcessor(&stubQueue{}, &stubRecorder{stopErr: recording.ErrNoActiveJob}, newStubJobs(), &stubTranscoder{}, &stubStorage{}, nil)
	require.NoError(t, p.Process(context.Background(), testPayload()))
}

func TestProcessStoppedFallsBackToLatestJob(t *testing.T) {
	dir := t.TempDir()
	raw := writeArtifact(t, dir, "raw.mp4")
	encoded := writeArtifact(t, dir, "raw-final.mp4")

	jobs := newStubJobs()
	jobs.latest = &models.RecordingJob{ID: uuid.New(), Status: models.JobStatusCompleted, OutputPath: raw}
	storage := &stubStorage{}
	p := NewProcessor(&stubQueue{}, &stubRecorder{stopErr: recording.ErrNoActiveJob}, jobs, &stubTranscoder{out: encoded}, storage, nil)

	require.NoError(t, p.Process(context.Background(), testPayload()))
	assert.Equal(t, 1, storage.uploads)
}

func TestProcessMissingArtifactFails(t *testing.T) {
	job := &models.RecordingJob{ID: uuid.New(), Status: models.JobStatusCompleted, OutputPath: "/nonexistent/raw.mp4"}
	jobs := newStubJobs()
	p := NewProcessor(&stubQueue{}, &stubRecorder{job: job}, jobs, &stubTranscoder{}, &stubStorage{}, nil)

	err := p.Process(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, jobs.failed[job.ID], "locate artifact")
}

func TestProcessTranscodeFailure(t *testing.T) {
	dir := t.TempDir()
	raw := writeArtifact(t, dir, "raw.mp4")
	job := &models.RecordingJob{ID: uuid.New(), Status: models.JobStatusCompleted, OutputPath: raw}
	jobs := newStubJobs()
	p := NewProcessor(&stubQueue{}, &stubRecorder{job: job}, jobs, &stubTranscoder{err: errors.New("encode boom")}, &stubStorage{}, nil)

	err := p.Process(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, jobs.failed[job.ID], "encode boom")
}

func TestProcessUploadFailure(t *testing.T) {
	dir := t.TempDir()
	raw := writeArtifact(t, dir, "raw.mp4")
	encoded := writeArtifact(t, dir, "raw-final.mp4")
	job := &models.RecordingJob{ID: uuid.New(), Status: models.JobStatusCompleted, OutputPath: raw}
	jobs := newStubJobs()
	p := NewProcessor(&stubQueue{}, &stubRecorder{job: job}, jobs, &stubTranscoder{out: encoded}, &stubStorage{err: errors.New("s3 down")}, nil)

	err := p.Process(context.Background(), testPayload())
	require.Error(t, err)
	assert.Contains(t, jobs.failed[job.ID], "s3 down")
}

func TestHandleDeadlettersFailedJobs(t *testing.T) {
	q := &stubQueue{}
	job := &models.RecordingJob{ID: uuid.New(), Status: models.JobStatusCompleted, OutputPath: "/nonexistent/raw.mp4"}
	p := NewProcessor(q, &stubRecorder{job: job}, newStubJobs(), &stubTranscoder{}, &stubStorage{}, nil)

	payload := testPayload()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	p.handle(context.Background(), &queue.Job{
		ID:      uuid.New().String(),
		Type:    queue.JobTypeFinalizeRecording,
		Payload: raw,
	})
	require.Len(t, q.dlq, 1)
	assert.Contains(t, q.dlq[0], "locate artifact")
}

func TestHandleUnknownJobType(t *testing.T) {
	q := &stubQueue{}
	p := NewProcessor(q, &stubRecorder{}, newStubJobs(), &stubTranscoder{}, &stubStorage{}, nil)
	p.handle(context.Background(), &queue.Job{ID: "x", Type: "bogus"})
	assert.Equal(t, []string{"unknown job type"}, q.dlq)
}
