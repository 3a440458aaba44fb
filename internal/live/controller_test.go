package live

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vowcast/backend/internal/models"
	"github.com/vowcast/backend/pkg/queue"
)

type fakeStore struct {
	sess *models.LiveSession
	// casFailures makes the next N conditional writes lose without applying.
	casFailures int
	casAttempts int
}

func (f *fakeStore) GetByWedding(ctx context.Context, weddingID uuid.UUID) (*models.LiveSession, error) {
	if f.sess == nil {
		return nil, nil
	}
	cp := *f.sess
	return &cp, nil
}

func (f *fakeStore) Create(ctx context.Context, weddingID, recordingSessionID uuid.UUID, entry models.StatusChange) (*models.LiveSession, error) {
	if f.sess != nil {
		return nil, ErrConflict
	}
	f.sess = &models.LiveSession{
		ID:                 uuid.New(),
		WeddingID:          weddingID,
		Status:             models.SessionWaiting,
		RecordingSessionID: recordingSessionID,
		StatusHistory:      []models.StatusChange{entry},
		CanGoLive:          true,
		CreatedAt:          entry.Timestamp,
		UpdatedAt:          entry.Timestamp,
	}
	cp := *f.sess
	return &cp, nil
}

func (f *fakeStore) CompareAndTransition(ctx context.Context, weddingID uuid.UUID, from, to models.SessionStatus, upd TransitionUpdate) (bool, error) {
	f.casAttempts++
	if f.casFailures > 0 {
		f.casFailures--
		return false, nil
	}
	if f.sess == nil || f.sess.Status != from {
		return false, nil
	}
	f.sess.Status = to
	f.sess.StatusHistory = append(f.sess.StatusHistory, upd.History)
	if upd.StartedAt != nil {
		f.sess.StreamStartedAt = upd.StartedAt
	}
	if upd.PausedAt != nil {
		f.sess.StreamPausedAt = upd.PausedAt
	} else if upd.ClearPausedAt {
		f.sess.StreamPausedAt = nil
	}
	if upd.ResumedAt != nil {
		f.sess.StreamResumedAt = upd.ResumedAt
	}
	if upd.EndedAt != nil {
		f.sess.StreamEndedAt = upd.EndedAt
	}
	f.sess.PauseCount += upd.PauseCountDelta
	f.sess.TotalPauseDuration += upd.PauseDurationDelta
	if upd.CanGoLive != nil {
		f.sess.CanGoLive = *upd.CanGoLive
	}
	return true, nil
}

type fakeWeddings struct {
	wedding    *models.Wedding
	authorized bool
}

func (f *fakeWeddings) GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error) {
	return f.wedding, nil
}

func (f *fakeWeddings) IsHostAuthorized(ctx context.Context, weddingID, actorID uuid.UUID) (bool, error) {
	return f.authorized, nil
}

type fakeIngress struct {
	keys map[string]uuid.UUID
}

func (f *fakeIngress) IssueCredentials(ctx context.Context, weddingID uuid.UUID) (*IngressCredentials, error) {
	key := uuid.New().String()
	if f.keys == nil {
		f.keys = map[string]uuid.UUID{}
	}
	f.keys[key] = weddingID
	return &IngressCredentials{IngestURL: "rtmp://ingest.test/live", StreamKey: key}, nil
}

func (f *fakeIngress) ResolveStreamKey(ctx context.Context, streamKey string) (uuid.UUID, error) {
	id, ok := f.keys[streamKey]
	if !ok {
		return uuid.Nil, ErrNotFound
	}
	return id, nil
}

type fakeRecorder struct {
	startCalls int
	stopCalls  int
	startErr   error
}

func (f *fakeRecorder) Start(ctx context.Context, weddingID, recordingSessionID uuid.UUID, quality string, composed bool) (*models.RecordingJob, error) {
	f.startCalls++
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &models.RecordingJob{ID: uuid.New(), WeddingID: weddingID, RecordingSessionID: recordingSessionID, Status: models.JobStatusRecording}, nil
}

func (f *fakeRecorder) Stop(ctx context.Context, weddingID uuid.UUID, stoppedBy string) (*models.RecordingJob, error) {
	f.stopCalls++
	return &models.RecordingJob{ID: uuid.New(), WeddingID: weddingID, Status: models.JobStatusCompleted}, nil
}

type fakeFinalizer struct {
	payloads []queue.FinalizeRecordingPayload
}

func (f *fakeFinalizer) EnqueueFinalize(ctx context.Context, payload queue.FinalizeRecordingPayload) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

type harness struct {
	store    *fakeStore
	weddings *fakeWeddings
	ingress  *fakeIngress
	recorder *fakeRecorder
	final    *fakeFinalizer
	ctrl     *Controller
	clock    time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		store:    &fakeStore{},
		weddings: &fakeWeddings{authorized: true, wedding: &models.Wedding{ID: uuid.New(), MultiCamera: false}},
		ingress:  &fakeIngress{},
		recorder: &fakeRecorder{},
		final:    &fakeFinalizer{},
		clock:    time.Date(2026, 6, 20, 15, 0, 0, 0, time.UTC),
	}
	h.ctrl = NewController(h.store, h.weddings, h.ingress, h.recorder, h.final, "1080p", nil)
	h.ctrl.now = func() time.Time { return h.clock }
	return h
}

func (h *harness) advance(d time.Duration) { h.clock = h.clock.Add(d) }

func TestFullLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	weddingID := h.weddings.wedding.ID
	actor := uuid.New()

	sess, creds, err := h.ctrl.GoLive(ctx, weddingID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionWaiting, sess.Status)
	assert.NotEmpty(t, creds.StreamKey)
	recSession := sess.RecordingSessionID
	assert.NotEqual(t, uuid.Nil, recSession)

	sess, err = h.ctrl.HandleIngressStart(ctx, creds.StreamKey)
	require.NoError(t, err)
	assert.Equal(t, models.SessionLive, sess.Status)
	assert.NotNil(t, sess.StreamStartedAt)
	assert.Equal(t, 1, h.recorder.startCalls)

	h.advance(10 * time.Minute)
	sess, err = h.ctrl.Pause(ctx, weddingID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionPaused, sess.Status)
	assert.Equal(t, 1, sess.PauseCount)

	h.advance(2 * time.Minute)
	sess, err = h.ctrl.Resume(ctx, weddingID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionLive, sess.Status)
	assert.Equal(t, 120, sess.TotalPauseDuration)
	assert.Nil(t, sess.StreamPausedAt)
	// Resume never allocates a new recording session.
	assert.Equal(t, recSession, sess.RecordingSessionID)
	assert.Equal(t, 1, h.recorder.startCalls)

	h.advance(5 * time.Minute)
	sess, err = h.ctrl.EndLive(ctx, weddingID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, sess.Status)
	assert.False(t, sess.CanGoLive)
	require.Len(t, h.final.payloads, 1)
	assert.Equal(t, recSession, h.final.payloads[0].RecordingSessionID)

	// History carries every transition in order.
	var statuses []models.SessionStatus
	for _, e := range sess.StatusHistory {
		statuses = append(statuses, e.Status)
	}
	assert.Equal(t, []models.SessionStatus{
		models.SessionWaiting, models.SessionLive, models.SessionPaused, models.SessionLive, models.SessionEnded,
	}, statuses)
}

func TestGoLiveUnauthorized(t *testing.T) {
	h := newHarness(t)
	h.weddings.authorized = false
	_, _, err := h.ctrl.GoLive(context.Background(), h.weddings.wedding.ID, uuid.New())
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestGoLiveWhileActive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	weddingID := h.weddings.wedding.ID
	actor := uuid.New()

	_, _, err := h.ctrl.GoLive(ctx, weddingID, actor)
	require.NoError(t, err)

	_, _, err = h.ctrl.GoLive(ctx, weddingID, actor)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestGoLiveAfterEnded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	weddingID := h.weddings.wedding.ID
	actor := uuid.New()

	_, creds, err := h.ctrl.GoLive(ctx, weddingID, actor)
	require.NoError(t, err)
	_, err = h.ctrl.HandleIngressStart(ctx, creds.StreamKey)
	require.NoError(t, err)
	_, err = h.ctrl.EndLive(ctx, weddingID, actor)
	require.NoError(t, err)

	_, _, err = h.ctrl.GoLive(ctx, weddingID, actor)
	assert.ErrorIs(t, err, ErrAlreadyEnded)
}

func TestIngressStopAfterEndedIsNoOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	weddingID := h.weddings.wedding.ID
	actor := uuid.New()

	_, creds, err := h.ctrl.GoLive(ctx, weddingID, actor)
	require.NoError(t, err)
	_, err = h.ctrl.HandleIngressStart(ctx, creds.StreamKey)
	require.NoError(t, err)
	ended, err := h.ctrl.EndLive(ctx, weddingID, actor)
	require.NoError(t, err)

	attempts := h.store.casAttempts
	sess, err := h.ctrl.HandleIngressStop(ctx, creds.StreamKey)
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, sess.Status)
	assert.Equal(t, attempts, h.store.casAttempts, "ended session must see zero writes")
	assert.Equal(t, len(ended.StatusHistory), len(sess.StatusHistory))
}

func TestIngressStartResumesPausedSession(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	weddingID := h.weddings.wedding.ID
	actor := uuid.New()

	_, creds, err := h.ctrl.GoLive(ctx, weddingID, actor)
	require.NoError(t, err)
	_, err = h.ctrl.HandleIngressStart(ctx, creds.StreamKey)
	require.NoError(t, err)

	h.advance(time.Minute)
	_, err = h.ctrl.HandleIngressStop(ctx, creds.StreamKey)
	require.NoError(t, err)

	h.advance(30 * time.Second)
	sess, err := h.ctrl.HandleIngressStart(ctx, creds.StreamKey)
	require.NoError(t, err)
	assert.Equal(t, models.SessionLive, sess.Status)
	assert.Equal(t, 30, sess.TotalPauseDuration)
	// A reconnect resume must not spawn a second recording.
	assert.Equal(t, 1, h.recorder.startCalls)
}

func TestPauseFromWaitingRejected(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	weddingID := h.weddings.wedding.ID
	actor := uuid.New()

	_, _, err := h.ctrl.GoLive(ctx, weddingID, actor)
	require.NoError(t, err)

	_, err = h.ctrl.Pause(ctx, weddingID, actor)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestCASRetriesOnceThenConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	weddingID := h.weddings.wedding.ID
	actor := uuid.New()

	_, creds, err := h.ctrl.GoLive(ctx, weddingID, actor)
	require.NoError(t, err)
	_, err = h.ctrl.HandleIngressStart(ctx, creds.StreamKey)
	require.NoError(t, err)

	before := h.store.casAttempts

	// One lost write, second attempt succeeds.
	h.store.casFailures = 1
	_, err = h.ctrl.Pause(ctx, weddingID, actor)
	require.NoError(t, err)
	assert.Equal(t, before+2, h.store.casAttempts)

	_, err = h.ctrl.Resume(ctx, weddingID, actor)
	require.NoError(t, err)

	// Both attempts lost: conflict surfaces.
	h.store.casFailures = 2
	_, err = h.ctrl.Pause(ctx, weddingID, actor)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestRecordingFailureNeverBlocksGoingLive(t *testing.T) {
	h := newHarness(t)
	h.recorder.startErr = assert.AnError
	ctx := context.Background()
	weddingID := h.weddings.wedding.ID

	_, creds, err := h.ctrl.GoLive(ctx, weddingID, uuid.New())
	require.NoError(t, err)

	sess, err := h.ctrl.HandleIngressStart(ctx, creds.StreamKey)
	require.NoError(t, err)
	assert.Equal(t, models.SessionLive, sess.Status)
}

func TestEndFromPausedFoldsOngoingPause(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	weddingID := h.weddings.wedding.ID
	actor := uuid.New()

	_, creds, err := h.ctrl.GoLive(ctx, weddingID, actor)
	require.NoError(t, err)
	_, err = h.ctrl.HandleIngressStart(ctx, creds.StreamKey)
	require.NoError(t, err)

	h.advance(time.Minute)
	_, err = h.ctrl.Pause(ctx, weddingID, actor)
	require.NoError(t, err)

	h.advance(45 * time.Second)
	sess, err := h.ctrl.EndLive(ctx, weddingID, actor)
	require.NoError(t, err)
	assert.Equal(t, models.SessionEnded, sess.Status)
	assert.Equal(t, 45, sess.TotalPauseDuration)
	assert.Nil(t, sess.StreamPausedAt)
}

func TestStatusIdleWhenNoSession(t *testing.T) {
	h := newHarness(t)
	sess, err := h.ctrl.Status(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestUnknownStreamKey(t *testing.T) {
	h := newHarness(t)
	_, err := h.ctrl.HandleIngressStart(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = h.ctrl.HandleIngressStop(context.Background(), "bogus")
	assert.ErrorIs(t, err, ErrNotFound)
}
