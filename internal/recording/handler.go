package recording

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowcast/backend/internal/middleware"
	"github.com/vowcast/backend/internal/models"
	"github.com/vowcast/backend/pkg/response"
	"github.com/vowcast/backend/pkg/storage"
)

// Gate checks whether an actor may access a wedding's recordings.
type Gate interface {
	IsHostAuthorized(ctx context.Context, weddingID, actorID uuid.UUID) (bool, error)
}

// Handler handles recording job HTTP endpoints. The job query is the
// observation point for finalization outcomes: a failed finalization is only
// visible here, never to the end-live caller.
type Handler struct {
	store  Store
	gate   Gate
	s3     *storage.S3
	logger *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(store Store, gate Gate, s3 *storage.S3, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, gate: gate, s3: s3, logger: logger}
}

// GetByWedding handles GET /weddings/:id/recording. Returns the latest
// recording job for the wedding, including a failed finalization's
// error_message.
func (h *Handler) GetByWedding(c *gin.Context) {
	weddingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid wedding id")
		return
	}
	actorID := c.MustGet(middleware.ContextHostID).(uuid.UUID)
	ok, err := h.gate.IsHostAuthorized(c.Request.Context(), weddingID, actorID)
	if err != nil || !ok {
		response.Forbidden(c, "not authorized to view this wedding's recordings")
		return
	}
	job, err := h.store.GetLatestByWedding(c.Request.Context(), weddingID)
	if err != nil {
		h.logger.Error("load recording job failed", zap.Error(err), zap.String("wedding_id", weddingID.String()))
		response.Internal(c, "failed to load recording job")
		return
	}
	if job == nil {
		response.NotFound(c, "no recording for this wedding")
		return
	}
	response.OK(c, job)
}

// DownloadURL handles GET /recordings/:id/download-url. Returns a presigned
// URL for a finalized recording.
func (h *Handler) DownloadURL(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid recording id")
		return
	}
	actorID := c.MustGet(middleware.ContextHostID).(uuid.UUID)

	job, err := h.store.GetByID(c.Request.Context(), jobID)
	if err != nil {
		response.NotFound(c, "recording not found")
		return
	}
	ok, err := h.gate.IsHostAuthorized(c.Request.Context(), job.WeddingID, actorID)
	if err != nil || !ok {
		response.Forbidden(c, "not authorized to download this recording")
		return
	}
	if job.Status != models.JobStatusCompleted || job.StorageKey == "" {
		response.BadRequest(c, "recording not ready for download")
		return
	}
	if h.s3 == nil {
		response.Internal(c, "storage not configured")
		return
	}
	expire := h.s3.PresignExpire()
	url, err := h.s3.GeneratePresignedDownloadURL(c.Request.Context(), job.StorageKey, expire)
	if err != nil {
		h.logger.Error("presign recording download failed", zap.Error(err), zap.String("recording_id", jobID.String()))
		response.Internal(c, "failed to generate download URL")
		return
	}
	response.OK(c, gin.H{"download_url": url, "expires_in": int(expire.Seconds())})
}
