package live

import (
	"crypto/subtle"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/vowcast/backend/pkg/response"
)

// IngressEventPayload is the body sent by the ingest provider for
// stream.started / stream.stopped events.
type IngressEventPayload struct {
	StreamKey string `json:"stream_key" binding:"required"`
}

// WebhookHandler handles ingest-signal webhooks from the stream provider.
// There is no actor authorization here: trust is anchored in the stream key
// (plus an optional shared webhook secret).
type WebhookHandler struct {
	controller *Controller
	secret     string
	logger     *zap.Logger
}

// NewWebhookHandler creates an ingest webhook handler.
func NewWebhookHandler(controller *Controller, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{controller: controller, secret: secret, logger: logger}
}

// StreamStarted handles POST /webhooks/ingress/started.
func (h *WebhookHandler) StreamStarted(c *gin.Context) {
	var body IngressEventPayload
	if !h.accept(c, &body) {
		return
	}
	sess, err := h.controller.HandleIngressStart(c.Request.Context(), body.StreamKey)
	if err != nil {
		h.respondErr(c, "ingress start", err)
		return
	}
	h.logger.Info("ingress start processed",
		zap.String("wedding_id", sess.WeddingID.String()),
		zap.String("status", string(sess.Status)))
	response.OK(c, gin.H{"status": sess.Status})
}

// StreamStopped handles POST /webhooks/ingress/stopped. Stops only pause; a
// stop arriving after the host ended the session is acknowledged without any
// state change.
func (h *WebhookHandler) StreamStopped(c *gin.Context) {
	var body IngressEventPayload
	if !h.accept(c, &body) {
		return
	}
	sess, err := h.controller.HandleIngressStop(c.Request.Context(), body.StreamKey)
	if err != nil {
		h.respondErr(c, "ingress stop", err)
		return
	}
	response.OK(c, gin.H{"status": sess.Status})
}

func (h *WebhookHandler) accept(c *gin.Context, body *IngressEventPayload) bool {
	if h.secret != "" {
		got := c.GetHeader("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			response.Unauthorized(c, "invalid webhook secret")
			return false
		}
	}
	if err := c.ShouldBindJSON(body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return false
	}
	return true
}

func (h *WebhookHandler) respondErr(c *gin.Context, op string, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "unknown stream key")
	case errors.Is(err, ErrInvalidTransition), errors.Is(err, ErrConflict):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrAlreadyEnded):
		response.Gone(c, "live session already ended")
	default:
		h.logger.Error(op+" failed", zap.Error(err))
		response.Internal(c, "failed to process ingest signal")
	}
}
