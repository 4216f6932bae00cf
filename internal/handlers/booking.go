package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"careops/internal/calendar"
	"careops/internal/models"
	"careops/internal/notify"
	"careops/internal/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var (
	errServiceUnavailable = errors.New("service not found or inactive")
	errBookingInPast      = errors.New("booking must be in the future")
)

type bookingResult struct {
	Booking      models.Booking `json:"booking"`
	Notification *notify.Result `json:"notification,omitempty"`
}

// createBooking stores a booking together with its contact and pending
// intake forms, then sends the confirmation and syncs the calendar.
// Neither follow-up can fail the booking.
func (h *Handler) createBooking(ctx context.Context, ws *models.Workspace, req models.CreateBookingRequest, source string) (*bookingResult, error) {
	if !req.ScheduledAt.After(time.Now()) {
		return nil, errBookingInPast
	}

	var (
		booking    models.Booking
		contact    *models.Contact
		service    models.ServiceType
		newContact bool
	)
	err := h.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND workspace_id = ? AND is_active = true", req.ServiceTypeID, ws.ID).
			First(&service).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return errServiceUnavailable
			}
			return err
		}

		var err error
		contact, newContact, err = findOrCreateContact(tx, models.Contact{
			WorkspaceID: ws.ID,
			Name:        req.ContactName,
			Email:       req.ContactEmail,
			Phone:       req.ContactPhone,
			Source:      source,
		})
		if err != nil {
			return err
		}

		booking = models.Booking{
			WorkspaceID:   ws.ID,
			ContactID:     &contact.ID,
			ServiceTypeID: &service.ID,
			ScheduledAt:   req.ScheduledAt.UTC(),
			EndTime:       req.ScheduledAt.UTC().Add(time.Duration(service.DurationMinutes) * time.Minute),
			Status:        models.BookingPending,
			Location:      service.Location,
			Notes:         req.Notes,
		}
		if err := tx.Create(&booking).Error; err != nil {
			return err
		}

		var forms []models.PostBookingForm
		if err := tx.Where("workspace_id = ? AND service_type_id = ?", ws.ID, service.ID).Find(&forms).Error; err != nil {
			return err
		}
		for _, f := range forms {
			sub := models.FormSubmission{FormID: f.ID, BookingID: booking.ID, ContactID: &contact.ID}
			if err := tx.Create(&sub).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if newContact {
		h.openConversation(ctx, ws.ID, contact.ID)
	}
	out := &bookingResult{Booking: booking}
	out.Notification = h.notifyContact(ctx, ws, contact, notify.BookingConfirmation(ws, contact, &service, &booking), "booking_confirmation")
	h.syncCalendar(ctx, ws, &booking, &service, contact)

	out.Booking.Contact = contact
	out.Booking.ServiceType = &service
	return out, nil
}

// syncCalendar pushes the booking to the workspace's Google Calendar
// when one is connected
func (h *Handler) syncCalendar(ctx context.Context, ws *models.Workspace, b *models.Booking, st *models.ServiceType, contact *models.Contact) {
	if h.Calendar == nil {
		return
	}
	integrations, err := h.Store.ActiveIntegrations(ctx, ws.ID)
	if err != nil {
		h.Log.Warn().Err(err).Msg("failed to load integrations for calendar sync")
		return
	}
	for _, in := range integrations {
		if in.Type != models.IntegrationCalendar || in.Provider != "google" {
			continue
		}
		eventID, err := h.Calendar.CreateEvent(ctx, in, ws, b, st, contact)
		if err != nil {
			if !errors.Is(err, calendar.ErrNotConfigured) {
				h.Log.Warn().Err(err).Str("booking_id", b.ID.String()).Msg("calendar sync failed")
			}
			return
		}
		if err := h.DB.WithContext(ctx).Model(b).Update("google_calendar_event_id", eventID).Error; err != nil {
			h.Log.Warn().Err(err).Msg("failed to store calendar event id")
		}
		return
	}
}

func (h *Handler) bookingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errServiceUnavailable):
		c.JSON(http.StatusNotFound, gin.H{"error": "Service not found"})
	case errors.Is(err, errBookingInPast):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Booking must be in the future"})
	default:
		h.handleError(c, http.StatusInternalServerError, "Failed to create booking", err)
	}
}

// CreateBooking books a service on behalf of a contact
func (h *Handler) CreateBooking(c *gin.Context) {
	m := membership(c)
	var req models.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	res, err := h.createBooking(c.Request.Context(), &m.Workspace, req, "manual")
	if err != nil {
		h.bookingError(c, err)
		return
	}
	h.LogActivity(c, m.Workspace.ID, "booking_created", "booking", res.Booking.ID, nil)
	c.JSON(http.StatusCreated, res)
}

// ListBookings returns bookings, optionally filtered by status and date
func (h *Handler) ListBookings(c *gin.Context) {
	m := membership(c)
	q := h.DB.WithContext(c.Request.Context()).
		Preload("Contact").Preload("ServiceType").
		Where("workspace_id = ?", m.Workspace.ID)

	if status := c.Query("status"); status != "" {
		if !models.ValidBookingStatus(models.BookingStatus(status)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		q = q.Where("status = ?", status)
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse(time.RFC3339, from)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from"})
			return
		}
		q = q.Where("scheduled_at >= ?", t)
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse(time.RFC3339, to)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to"})
			return
		}
		q = q.Where("scheduled_at < ?", t)
	}

	var bookings []models.Booking
	if err := q.Order("scheduled_at").Limit(500).Find(&bookings).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch bookings", err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// UpdateBooking patches status, time, location or notes. The reminder
// flag is left alone, so a rescheduled booking is not reminded again.
func (h *Handler) UpdateBooking(c *gin.Context) {
	m := membership(c)
	bookingID, ok := uuidParam(c, "booking_id")
	if !ok {
		return
	}
	var req models.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	b, err := h.Store.Booking(c.Request.Context(), bookingID)
	if err != nil || b.WorkspaceID != m.Workspace.ID {
		if err == nil {
			err = store.ErrNotFound
		}
		h.storeError(c, "Booking", err)
		return
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.Status != nil {
		if !models.ValidBookingStatus(*req.Status) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		updates["status"] = *req.Status
	}
	if req.ScheduledAt != nil && !req.ScheduledAt.Equal(b.ScheduledAt) {
		dur := b.EndTime.Sub(b.ScheduledAt)
		updates["scheduled_at"] = req.ScheduledAt.UTC()
		updates["end_time"] = req.ScheduledAt.UTC().Add(dur)
	}
	if req.Location != nil {
		updates["location"] = *req.Location
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if err := h.DB.WithContext(c.Request.Context()).Model(b).Updates(updates).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to update booking", err)
		return
	}
	h.LogActivity(c, m.Workspace.ID, "booking_updated", "booking", b.ID, map[string]interface{}{"status": b.Status})
	c.JSON(http.StatusOK, b)
}
