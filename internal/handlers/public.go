package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"careops/internal/models"
	"careops/internal/notify"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// publicWorkspace loads an active workspace by :slug
func (h *Handler) publicWorkspace(c *gin.Context) (*models.Workspace, bool) {
	var ws models.Workspace
	err := h.DB.WithContext(c.Request.Context()).
		Where("slug = ? AND is_active = true", strings.ToLower(c.Param("slug"))).
		First(&ws).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
		} else {
			h.handleError(c, http.StatusInternalServerError, "Failed to load workspace", err)
		}
		return nil, false
	}
	return &ws, true
}

// GetPublicWorkspace returns a workspace's public profile
func (h *Handler) GetPublicWorkspace(c *gin.Context) {
	ws, ok := h.publicWorkspace(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"slug":          ws.Slug,
		"business_name": ws.BusinessName,
		"address":       ws.Address,
		"city":          ws.City,
		"timezone":      ws.Timezone,
		"contact_email": ws.ContactEmail,
		"contact_phone": ws.ContactPhone,
	})
}

// ListPublicServices returns the active services of a workspace
func (h *Handler) ListPublicServices(c *gin.Context) {
	ws, ok := h.publicWorkspace(c)
	if !ok {
		return
	}
	services, err := h.services(c, ws.ID.String(), true)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch services", err)
		return
	}
	c.JSON(http.StatusOK, services)
}

// CreatePublicBooking lets a visitor book a service
func (h *Handler) CreatePublicBooking(c *gin.Context) {
	ws, ok := h.publicWorkspace(c)
	if !ok {
		return
	}
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.createBooking(c.Request.Context(), ws, req, "booking")
	if err != nil {
		h.bookingError(c, err)
		return
	}
	h.LogActivity(c, ws.ID, "booking_created", "booking", res.Booking.ID, map[string]interface{}{"source": "public"})
	c.JSON(http.StatusCreated, gin.H{
		"booking_id":   res.Booking.ID,
		"scheduled_at": res.Booking.ScheduledAt,
		"end_time":     res.Booking.EndTime,
		"status":       res.Booking.Status,
	})
}

// recordInbound files a visitor's message in the contact's conversation
func (h *Handler) recordInbound(ctx context.Context, workspaceID, contactID uuid.UUID, text string) {
	conv := h.openConversation(ctx, workspaceID, contactID)
	text = strings.TrimSpace(text)
	if conv == nil || text == "" {
		return
	}
	msg := &models.Message{
		ConversationID: conv.ID,
		SenderType:     models.SenderContact,
		Content:        text,
		Channel:        string(notify.ChannelEmail),
	}
	if _, err := h.Store.AddMessage(ctx, msg); err != nil {
		h.Log.Error().Err(err).Str("conversation_id", conv.ID.String()).Msg("failed to store contact message")
	}
}

// bookableService reports whether visitors may see the service's availability
func bookableService(ws *models.Workspace, st *models.ServiceType) bool {
	return ws.IsActive && st.IsActive && st.WorkspaceID == ws.ID
}

// GetPublicAvailability returns the weekly slots of an active service
func (h *Handler) GetPublicAvailability(c *gin.Context) {
	ws, ok := h.publicWorkspace(c)
	if !ok {
		return
	}
	serviceID, ok := uuidParam(c, "service_id")
	if !ok {
		return
	}
	var st models.ServiceType
	err := h.DB.WithContext(c.Request.Context()).
		Preload("AvailabilitySlots", func(db *gorm.DB) *gorm.DB { return db.Order("day_of_week, start_time") }).
		Where("id = ?", serviceID).
		First(&st).Error
	if err == nil && !bookableService(ws, &st) {
		err = gorm.ErrRecordNotFound
	}
	if err != nil {
		h.storeError(c, "Service", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"service_id":   st.ID,
		"name":         st.Name,
		"duration":     st.DurationMinutes,
		"location":     st.Location,
		"availability": st.AvailabilitySlots,
	})
}

// SubmitPublicContact records a lead from the public contact form and
// sends the welcome message
func (h *Handler) SubmitPublicContact(c *gin.Context) {
	ws, ok := h.publicWorkspace(c)
	if !ok {
		return
	}
	var req models.PublicContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	welcome := ""
	if formSlug := c.Query("form"); formSlug != "" {
		var form models.ContactForm
		if err := h.DB.WithContext(c.Request.Context()).
			Where("workspace_id = ? AND slug = ?", ws.ID, formSlug).
			First(&form).Error; err == nil {
			welcome = form.WelcomeMessage
		}
	}

	contact, created, err := findOrCreateContact(h.DB.WithContext(c.Request.Context()), models.Contact{
		WorkspaceID: ws.ID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Source:      "contact_form",
	})
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to save contact", err)
		return
	}
	if created {
		h.LogActivity(c, ws.ID, "contact_created", "contact", contact.ID, map[string]interface{}{"source": contact.Source})
	}
	h.recordInbound(c.Request.Context(), ws.ID, contact.ID, req.Message)
	h.notifyContact(c.Request.Context(), ws, contact, notify.Welcome(ws, contact, welcome), "welcome")
	c.JSON(http.StatusCreated, gin.H{"ok": true})
}
