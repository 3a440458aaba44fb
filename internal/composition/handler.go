package composition

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowcast/backend/internal/middleware"
	"github.com/vowcast/backend/internal/recording"
	"github.com/vowcast/backend/pkg/response"
)

// Gate checks whether an actor may operate a wedding's composer.
type Gate interface {
	IsHostAuthorized(ctx context.Context, weddingID, actorID uuid.UUID) (bool, error)
}

// Handler handles composition health and recovery endpoints.
type Handler struct {
	monitor *HealthMonitor
	gate    Gate
	logger  *zap.Logger
}

// NewHandler creates a composition handler.
func NewHandler(monitor *HealthMonitor, gate Gate, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{monitor: monitor, gate: gate, logger: logger}
}

// Health handles GET /weddings/:id/composition/health.
func (h *Handler) Health(c *gin.Context) {
	weddingID, ok := h.authorized(c)
	if !ok {
		return
	}
	report, err := h.monitor.Health(c.Request.Context(), weddingID)
	if err != nil {
		h.logger.Error("composition health failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
		response.Internal(c, "failed to check composition health")
		return
	}
	response.OK(c, report)
}

// Recover handles POST /weddings/:id/composition/recover.
func (h *Handler) Recover(c *gin.Context) {
	weddingID, ok := h.authorized(c)
	if !ok {
		return
	}
	report, err := h.monitor.Recover(c.Request.Context(), weddingID)
	if err != nil {
		if errors.Is(err, recording.ErrNoActiveJob) {
			response.Conflict(c, "no active recording job to attach composition to")
			return
		}
		h.logger.Error("composition recover failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
		response.Internal(c, "failed to recover composition")
		return
	}
	response.OK(c, report)
}

func (h *Handler) authorized(c *gin.Context) (uuid.UUID, bool) {
	weddingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid wedding id")
		return uuid.Nil, false
	}
	actorID := c.MustGet(middleware.ContextHostID).(uuid.UUID)
	ok, err := h.gate.IsHostAuthorized(c.Request.Context(), weddingID, actorID)
	if err != nil || !ok {
		response.Forbidden(c, "not authorized to operate this wedding's composition")
		return uuid.Nil, false
	}
	return weddingID, true
}
