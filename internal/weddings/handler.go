package weddings

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vowcast/backend/internal/middleware"
	"github.com/vowcast/backend/internal/models"
	"github.com/vowcast/backend/pkg/response"
)

// CreateRequest is the body for POST /weddings.
type CreateRequest struct {
	Title         string    `json:"title" binding:"required"`
	ScheduledAt   time.Time `json:"scheduled_at" binding:"required"`
	MultiCamera   bool      `json:"multi_camera"`
	ActiveCamera  string    `json:"active_camera"`
	CameraSources []string  `json:"camera_sources"`
}

// SetCameraRequest is the body for PATCH /weddings/:id/camera.
type SetCameraRequest struct {
	Source string `json:"source" binding:"required"`
}

// Handler handles wedding HTTP endpoints.
type Handler struct {
	repo   *Repository
	logger *zap.Logger
}

// NewHandler creates a weddings handler.
func NewHandler(repo *Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, logger: logger}
}

// Create handles POST /weddings.
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	hostID := c.MustGet(middleware.ContextHostID).(uuid.UUID)
	w := &models.Wedding{
		HostID:        hostID,
		Title:         req.Title,
		ScheduledAt:   req.ScheduledAt,
		MultiCamera:   req.MultiCamera,
		ActiveCamera:  req.ActiveCamera,
		CameraSources: req.CameraSources,
	}
	if err := h.repo.Create(c.Request.Context(), w); err != nil {
		h.logger.Error("create wedding failed", zap.Error(err))
		response.Internal(c, "failed to create wedding")
		return
	}
	response.Created(c, w)
}

// Get handles GET /weddings/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid wedding id")
		return
	}
	w, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("get wedding failed", zap.Error(err), zap.String("wedding_id", id.String()))
		response.Internal(c, "failed to load wedding")
		return
	}
	if w == nil {
		response.NotFound(c, "wedding not found")
		return
	}
	response.OK(c, w)
}

// List handles GET /weddings for the authenticated host.
func (h *Handler) List(c *gin.Context) {
	hostID := c.MustGet(middleware.ContextHostID).(uuid.UUID)
	list, err := h.repo.ListByHost(c.Request.Context(), hostID)
	if err != nil {
		h.logger.Error("list weddings failed", zap.Error(err))
		response.Internal(c, "failed to list weddings")
		return
	}
	response.OK(c, list)
}

// SetCamera handles PATCH /weddings/:id/camera.
func (h *Handler) SetCamera(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid wedding id")
		return
	}
	var req SetCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	actorID := c.MustGet(middleware.ContextHostID).(uuid.UUID)
	ok, err := h.repo.IsHostAuthorized(c.Request.Context(), id, actorID)
	if err != nil {
		response.Internal(c, "failed to authorize")
		return
	}
	if !ok {
		response.Forbidden(c, "not authorized for this wedding")
		return
	}
	if err := h.repo.SetActiveCamera(c.Request.Context(), id, req.Source); err != nil {
		h.logger.Error("set active camera failed", zap.Error(err), zap.String("wedding_id", id.String()))
		response.Internal(c, "failed to switch camera")
		return
	}
	w, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil || w == nil {
		response.Internal(c, "failed to load wedding")
		return
	}
	response.OK(c, w)
}
