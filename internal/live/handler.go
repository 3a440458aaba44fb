package live

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowcast/backend/internal/middleware"
	"github.com/vowcast/backend/internal/models"
	"github.com/vowcast/backend/pkg/response"
)

// Handler handles live session HTTP endpoints.
type Handler struct {
	controller *Controller
	logger     *zap.Logger
}

// NewHandler creates a live session handler.
func NewHandler(controller *Controller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{controller: controller, logger: logger}
}

// GoLive handles POST /weddings/:id/live/go-live.
func (h *Handler) GoLive(c *gin.Context) {
	weddingID, actorID, ok := h.params(c)
	if !ok {
		return
	}
	sess, creds, err := h.controller.GoLive(c.Request.Context(), weddingID, actorID)
	if err != nil {
		h.respondErr(c, "go live", weddingID, err)
		return
	}
	response.Created(c, gin.H{"session": sess, "ingress": creds})
}

// Pause handles POST /weddings/:id/live/pause.
func (h *Handler) Pause(c *gin.Context) {
	weddingID, actorID, ok := h.params(c)
	if !ok {
		return
	}
	sess, err := h.controller.Pause(c.Request.Context(), weddingID, actorID)
	if err != nil {
		h.respondErr(c, "pause", weddingID, err)
		return
	}
	response.OK(c, sess)
}

// Resume handles POST /weddings/:id/live/resume.
func (h *Handler) Resume(c *gin.Context) {
	weddingID, actorID, ok := h.params(c)
	if !ok {
		return
	}
	sess, err := h.controller.Resume(c.Request.Context(), weddingID, actorID)
	if err != nil {
		h.respondErr(c, "resume", weddingID, err)
		return
	}
	response.OK(c, sess)
}

// EndLive handles POST /weddings/:id/live/end. Responds as soon as the state
// is ended; finalization runs detached.
func (h *Handler) EndLive(c *gin.Context) {
	weddingID, actorID, ok := h.params(c)
	if !ok {
		return
	}
	sess, err := h.controller.EndLive(c.Request.Context(), weddingID, actorID)
	if err != nil {
		h.respondErr(c, "end live", weddingID, err)
		return
	}
	response.OK(c, sess)
}

// Status handles GET /weddings/:id/live/status.
func (h *Handler) Status(c *gin.Context) {
	weddingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid wedding id")
		return
	}
	sess, err := h.controller.Status(c.Request.Context(), weddingID)
	if err != nil {
		h.logger.Error("session status failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
		response.Internal(c, "failed to load session status")
		return
	}
	if sess == nil {
		response.OK(c, gin.H{
			"wedding_id":      weddingID,
			"status":          models.SessionIdle,
			"can_go_live":     true,
			"elapsed_seconds": 0,
		})
		return
	}
	response.OK(c, gin.H{
		"wedding_id":      weddingID,
		"status":          sess.Status,
		"can_go_live":     sess.CanGoLive,
		"elapsed_seconds": sess.ElapsedLiveSeconds(time.Now()),
		"session":         sess,
	})
}

func (h *Handler) params(c *gin.Context) (weddingID, actorID uuid.UUID, ok bool) {
	weddingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid wedding id")
		return uuid.Nil, uuid.Nil, false
	}
	actorID = c.MustGet(middleware.ContextHostID).(uuid.UUID)
	return weddingID, actorID, true
}

func (h *Handler) respondErr(c *gin.Context, op string, weddingID uuid.UUID, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		response.Forbidden(c, "not authorized to control this wedding's session")
	case errors.Is(err, ErrAlreadyEnded):
		response.Gone(c, "live session already ended")
	case errors.Is(err, ErrInvalidState):
		response.Conflict(c, "an active live session already exists")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "live session not found")
	default:
		h.logger.Error(op+" failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
		response.Internal(c, "failed to "+op)
	}
}
