package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"careops/internal/auth"
	"careops/internal/automation"
	"careops/internal/calendar"
	"careops/internal/models"
	"careops/internal/notify"
	"careops/internal/scheduler"
	"careops/internal/secrets"
	"careops/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Deps are the collaborators the HTTP layer needs
type Deps struct {
	DB        *gorm.DB
	Store     store.Store
	Access    Access
	Engine    *automation.Engine
	Notifiers automation.NotifierSource
	Scheduler *scheduler.Scheduler
	Issuer    *auth.Issuer
	Box       *secrets.Box
	Calendar  *calendar.Client
	Telegram  *notify.TelegramBot
	Log       zerolog.Logger

	TelegramWebhookSecret string
	// AdminEmails are the operators allowed to run background jobs
	AdminEmails []string
}

// Handler serves the REST API
type Handler struct {
	Deps
}

// New creates a handler. When Access is nil workspace access is
// checked against the database.
func New(d Deps) *Handler {
	if d.Access == nil {
		d.Access = NewDBAccess(d.DB)
	}
	return &Handler{Deps: d}
}

// handleError provides a consistent way to handle and log errors
func (h *Handler) handleError(c *gin.Context, status int, message string, err error) {
	ev := h.Log.Warn()
	if status >= http.StatusInternalServerError {
		ev = h.Log.Error()
	}
	ev.Err(err).Str("path", c.FullPath()).Int("status", status).Msg(message)
	c.JSON(status, gin.H{"error": message})
}

// storeError maps store errors onto HTTP statuses
func (h *Handler) storeError(c *gin.Context, what string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": what + " not found"})
	case errors.Is(err, gorm.ErrDuplicatedKey):
		c.JSON(http.StatusConflict, gin.H{"error": what + " already exists"})
	default:
		h.handleError(c, http.StatusInternalServerError, "Failed to load "+what, err)
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid input: %s", err.Error())})
}

// HealthHandler is a simple health check endpoint
func (h *Handler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// uuidParam parses a path parameter, writing a 400 when it is malformed
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", name)})
		return uuid.Nil, false
	}
	return id, true
}

// LogActivity records an entry in the workspace activity log
func (h *Handler) LogActivity(c *gin.Context, workspaceID uuid.UUID, action, entityType string, entityID uuid.UUID, meta map[string]interface{}) {
	if h.DB == nil {
		return
	}
	entry := models.ActivityLog{
		WorkspaceID: workspaceID,
		Action:      action,
		EntityType:  entityType,
		EntityID:    &entityID,
		Metadata:    datatypes.JSONMap(meta),
	}
	if uid, ok := auth.UserID(c); ok {
		entry.UserID = &uid
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&entry).Error; err != nil {
		h.Log.Warn().Err(err).Str("action", action).Msg("failed to log activity")
	}
}
