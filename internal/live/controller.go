package live

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowcast/backend/internal/models"
	"github.com/vowcast/backend/pkg/queue"
)

// Transition reasons recorded in the status history.
const (
	ReasonGoLive       = "go_live_requested"
	ReasonIngressStart = "ingress_start"
	ReasonIngressStop  = "ingress_stop"
	ReasonHostPause    = "host_pause"
	ReasonHostResume   = "host_resume"
	ReasonHostEnd      = "host_end"
)

// TriggeredByIngress marks history entries caused by ingest signals rather than a host action.
const TriggeredByIngress = "ingress"

// IngressCredentials are the opaque ingest details handed to the host on go-live.
type IngressCredentials struct {
	IngestURL string `json:"ingest_url"`
	StreamKey string `json:"stream_key"`
}

// IngressProvider issues ingest credentials and resolves stream keys back to weddings.
type IngressProvider interface {
	IssueCredentials(ctx context.Context, weddingID uuid.UUID) (*IngressCredentials, error)
	ResolveStreamKey(ctx context.Context, streamKey string) (uuid.UUID, error)
}

// WeddingDirectory supplies wedding lookups and host authorization (the authorization gate).
type WeddingDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Wedding, error)
	IsHostAuthorized(ctx context.Context, weddingID, actorID uuid.UUID) (bool, error)
}

// Recorder starts and stops recording jobs. Start must be idempotent and must
// never fail the caller because of a subprocess launch problem.
type Recorder interface {
	Start(ctx context.Context, weddingID, recordingSessionID uuid.UUID, quality string, composed bool) (*models.RecordingJob, error)
	Stop(ctx context.Context, weddingID uuid.UUID, stoppedBy string) (*models.RecordingJob, error)
}

// Finalizer schedules the detached finalization pipeline.
type Finalizer interface {
	EnqueueFinalize(ctx context.Context, payload queue.FinalizeRecordingPayload) error
}

// Controller owns the live session state machine. Every transition is a
// compare-and-set on the current status: the write only lands if the
// predecessor status still holds. A lost conditional write is retried once,
// then fails with ErrConflict.
type Controller struct {
	store    Store
	weddings WeddingDirectory
	ingress  IngressProvider
	recorder Recorder
	final    Finalizer
	quality  string
	now      func() time.Time
	log      *zap.Logger
}

// NewController creates a live session controller.
func NewController(store Store, weddings WeddingDirectory, ingress IngressProvider, recorder Recorder, final Finalizer, defaultQuality string, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{
		store:    store,
		weddings: weddings,
		ingress:  ingress,
		recorder: recorder,
		final:    final,
		quality:  defaultQuality,
		now:      time.Now,
		log:      log,
	}
}

// GoLive creates the wedding's live session in waiting status and returns
// ingest credentials. Fails with ErrAlreadyEnded once the wedding's session
// has ended, and with ErrInvalidState while a session is active.
func (c *Controller) GoLive(ctx context.Context, weddingID, actorID uuid.UUID) (*models.LiveSession, *IngressCredentials, error) {
	if err := c.authorize(ctx, weddingID, actorID); err != nil {
		return nil, nil, err
	}
	sess, err := c.store.GetByWedding(ctx, weddingID)
	if err != nil {
		return nil, nil, err
	}
	if sess != nil {
		if !sess.CanGoLive || sess.Status == models.SessionEnded {
			return nil, nil, ErrAlreadyEnded
		}
		return nil, nil, ErrInvalidState
	}

	now := c.now()
	entry := models.StatusChange{
		Status:      models.SessionWaiting,
		Timestamp:   now,
		Reason:      ReasonGoLive,
		TriggeredBy: actorID.String(),
	}
	sess, err = c.store.Create(ctx, weddingID, uuid.New(), entry)
	if err != nil {
		return nil, nil, err
	}

	creds, err := c.ingress.IssueCredentials(ctx, weddingID)
	if err != nil {
		return nil, nil, fmt.Errorf("issue ingress credentials: %w", err)
	}
	c.log.Info("session waiting for ingest",
		zap.String("wedding_id", weddingID.String()),
		zap.String("recording_session_id", sess.RecordingSessionID.String()))
	return sess, creds, nil
}

// HandleIngressStart processes a stream-started ingest signal. Trust is
// anchored in the stream key; there is no actor authorization. From waiting
// the session goes live and recording starts; from paused it resumes,
// folding the elapsed pause into total_pause_duration.
func (c *Controller) HandleIngressStart(ctx context.Context, streamKey string) (*models.LiveSession, error) {
	weddingID, err := c.ingress.ResolveStreamKey(ctx, streamKey)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown stream key", ErrNotFound)
	}

	var startedFromWaiting bool
	sess, err := c.apply(ctx, weddingID, models.SessionLive, func(cur *models.LiveSession, now time.Time) TransitionUpdate {
		upd := TransitionUpdate{
			History: models.StatusChange{
				Status:      models.SessionLive,
				Timestamp:   now,
				Reason:      ReasonIngressStart,
				TriggeredBy: TriggeredByIngress,
			},
		}
		if cur.Status == models.SessionWaiting {
			startedFromWaiting = true
			upd.StartedAt = &now
		} else {
			startedFromWaiting = false
			upd.ResumedAt = &now
			upd.ClearPausedAt = true
			upd.PauseDurationDelta = pauseElapsed(cur, now)
		}
		return upd
	})
	if err != nil {
		return nil, err
	}

	if startedFromWaiting {
		c.startRecording(ctx, weddingID, sess.RecordingSessionID)
	}
	return sess, nil
}

// HandleIngressStop processes a stream-stopped ingest signal. It only pauses
// a live session and never ends one; a stop signal arriving after the host
// has ended the session is a no-op returning the current (ended) state.
func (c *Controller) HandleIngressStop(ctx context.Context, streamKey string) (*models.LiveSession, error) {
	weddingID, err := c.ingress.ResolveStreamKey(ctx, streamKey)
	if err != nil {
		return nil, fmt.Errorf("%w: unknown stream key", ErrNotFound)
	}
	sess, err := c.store.GetByWedding(ctx, weddingID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNotFound
	}
	if sess.Status == models.SessionEnded {
		return sess, nil
	}
	sess, err = c.apply(ctx, weddingID, models.SessionPaused, func(cur *models.LiveSession, now time.Time) TransitionUpdate {
		return TransitionUpdate{
			PausedAt:        &now,
			PauseCountDelta: 1,
			History: models.StatusChange{
				Status:      models.SessionPaused,
				Timestamp:   now,
				Reason:      ReasonIngressStop,
				TriggeredBy: TriggeredByIngress,
			},
		}
	})
	if errors.Is(err, ErrAlreadyEnded) {
		// Host ended the session while the stop signal was in flight; the
		// ended record must not be resurrected or altered.
		return c.store.GetByWedding(ctx, weddingID)
	}
	return sess, err
}

// Pause applies a host-requested live -> paused transition.
func (c *Controller) Pause(ctx context.Context, weddingID, actorID uuid.UUID) (*models.LiveSession, error) {
	if err := c.authorize(ctx, weddingID, actorID); err != nil {
		return nil, err
	}
	return c.apply(ctx, weddingID, models.SessionPaused, func(cur *models.LiveSession, now time.Time) TransitionUpdate {
		return TransitionUpdate{
			PausedAt:        &now,
			PauseCountDelta: 1,
			History: models.StatusChange{
				Status:      models.SessionPaused,
				Timestamp:   now,
				Reason:      ReasonHostPause,
				TriggeredBy: actorID.String(),
			},
		}
	})
}

// Resume applies a host-requested paused -> live transition, folding the
// elapsed pause time into total_pause_duration. The recording session is
// untouched: one continuous recording spans all pause/resume cycles.
func (c *Controller) Resume(ctx context.Context, weddingID, actorID uuid.UUID) (*models.LiveSession, error) {
	if err := c.authorize(ctx, weddingID, actorID); err != nil {
		return nil, err
	}
	return c.apply(ctx, weddingID, models.SessionLive, func(cur *models.LiveSession, now time.Time) TransitionUpdate {
		return TransitionUpdate{
			ResumedAt:          &now,
			ClearPausedAt:      true,
			PauseDurationDelta: pauseElapsed(cur, now),
			History: models.StatusChange{
				Status:      models.SessionLive,
				Timestamp:   now,
				Reason:      ReasonHostResume,
				TriggeredBy: actorID.String(),
			},
		}
	})
}

// EndLive applies the terminal transition and schedules finalization as a
// detached job. It returns as soon as the state is ended; finalization
// success or failure never reaches this caller.
func (c *Controller) EndLive(ctx context.Context, weddingID, actorID uuid.UUID) (*models.LiveSession, error) {
	if err := c.authorize(ctx, weddingID, actorID); err != nil {
		return nil, err
	}
	noMore := false
	sess, err := c.apply(ctx, weddingID, models.SessionEnded, func(cur *models.LiveSession, now time.Time) TransitionUpdate {
		upd := TransitionUpdate{
			EndedAt:   &now,
			CanGoLive: &noMore,
			History: models.StatusChange{
				Status:      models.SessionEnded,
				Timestamp:   now,
				Reason:      ReasonHostEnd,
				TriggeredBy: actorID.String(),
			},
		}
		if cur.Status == models.SessionPaused {
			upd.ClearPausedAt = true
			upd.PauseDurationDelta = pauseElapsed(cur, now)
		}
		return upd
	})
	if err != nil {
		return nil, err
	}

	payload := queue.FinalizeRecordingPayload{
		WeddingID:          weddingID,
		LiveSessionID:      sess.ID,
		RecordingSessionID: sess.RecordingSessionID,
		EndedBy:            actorID.String(),
	}
	if err := c.final.EnqueueFinalize(ctx, payload); err != nil {
		// Ending always succeeds from the caller's perspective; a lost
		// finalization job is visible via the recording job query.
		c.log.Error("enqueue finalize failed",
			zap.Error(err), zap.String("wedding_id", weddingID.String()))
	}
	c.log.Info("session ended",
		zap.String("wedding_id", weddingID.String()),
		zap.String("ended_by", actorID.String()))
	return sess, nil
}

// Status returns the wedding's session, or nil when it has never gone live (idle).
func (c *Controller) Status(ctx context.Context, weddingID uuid.UUID) (*models.LiveSession, error) {
	return c.store.GetByWedding(ctx, weddingID)
}

// apply runs one read-validate-write cycle for a transition to the given
// status, retrying the compare-and-set once before giving up with ErrConflict.
func (c *Controller) apply(ctx context.Context, weddingID uuid.UUID, to models.SessionStatus, build func(cur *models.LiveSession, now time.Time) TransitionUpdate) (*models.LiveSession, error) {
	for attempt := 0; attempt < 2; attempt++ {
		sess, err := c.store.GetByWedding(ctx, weddingID)
		if err != nil {
			return nil, err
		}
		if sess == nil {
			return nil, ErrNotFound
		}
		if sess.Status == models.SessionEnded {
			return nil, ErrAlreadyEnded
		}
		if !models.CanTransition(sess.Status, to) {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sess.Status, to)
		}
		now := c.now()
		ok, err := c.store.CompareAndTransition(ctx, weddingID, sess.Status, to, build(sess, now))
		if err != nil {
			return nil, err
		}
		if ok {
			return c.store.GetByWedding(ctx, weddingID)
		}
	}
	return nil, ErrConflict
}

// startRecording fires the recording orchestrator for a fresh live session.
// Recording is best-effort: any failure is logged and swallowed so it can
// never prevent the stream from going live.
func (c *Controller) startRecording(ctx context.Context, weddingID, recordingSessionID uuid.UUID) {
	composed := false
	wedding, err := c.weddings.GetByID(ctx, weddingID)
	if err != nil {
		c.log.Warn("load wedding for recording failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
	} else if wedding != nil {
		composed = wedding.MultiCamera
	}
	job, err := c.recorder.Start(ctx, weddingID, recordingSessionID, c.quality, composed)
	if err != nil {
		c.log.Error("start recording failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
		return
	}
	c.log.Info("recording started",
		zap.String("wedding_id", weddingID.String()),
		zap.String("job_id", job.ID.String()),
		zap.String("job_status", job.Status))
}

func (c *Controller) authorize(ctx context.Context, weddingID, actorID uuid.UUID) error {
	ok, err := c.weddings.IsHostAuthorized(ctx, weddingID, actorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrUnauthorized
	}
	return nil
}

// pauseElapsed returns the whole seconds spent in the current pause.
func pauseElapsed(sess *models.LiveSession, now time.Time) int {
	if sess.StreamPausedAt == nil {
		return 0
	}
	d := int(now.Sub(*sess.StreamPausedAt).Seconds())
	if d < 0 {
		return 0
	}
	return d
}
