package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"careops/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateForm adds an intake form that is sent after a service is booked
func (h *Handler) CreateForm(c *gin.Context) {
	m := membership(c)
	var req models.CreatePostBookingFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	var st models.ServiceType
	if err := h.DB.WithContext(c.Request.Context()).
		Where("id = ? AND workspace_id = ?", req.ServiceTypeID, m.Workspace.ID).
		First(&st).Error; err != nil {
		h.storeError(c, "Service", err)
		return
	}

	form := models.PostBookingForm{
		WorkspaceID:   m.Workspace.ID,
		ServiceTypeID: st.ID,
		Name:          req.Name,
		Description:   req.Description,
		Fields:        req.Fields,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&form).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to create form", err)
		return
	}
	c.JSON(http.StatusCreated, form)
}

// ListForms returns the workspace's intake forms
func (h *Handler) ListForms(c *gin.Context) {
	m := membership(c)
	var forms []models.PostBookingForm
	if err := h.DB.WithContext(c.Request.Context()).
		Where("workspace_id = ?", m.Workspace.ID).
		Order("created_at DESC").
		Find(&forms).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch forms", err)
		return
	}
	c.JSON(http.StatusOK, forms)
}

// ListSubmissions returns the workspace's form submissions
func (h *Handler) ListSubmissions(c *gin.Context) {
	m := membership(c)
	q := h.DB.WithContext(c.Request.Context()).
		Preload("Form").
		Joins("JOIN bookings ON bookings.id = form_submissions.booking_id").
		Where("bookings.workspace_id = ?", m.Workspace.ID)
	if status := c.Query("status"); status != "" {
		q = q.Where("form_submissions.status = ?", status)
	}
	var subs []models.FormSubmission
	if err := q.Order("form_submissions.created_at DESC").Limit(500).Find(&subs).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch submissions", err)
		return
	}
	c.JSON(http.StatusOK, subs)
}

// workspaceSubmission loads a submission, checking it belongs to the
// workspace through its booking
func (h *Handler) workspaceSubmission(ctx context.Context, workspaceID, id uuid.UUID) (*models.FormSubmission, error) {
	var sub models.FormSubmission
	q := h.DB.WithContext(ctx).Preload("Form").
		Joins("JOIN bookings ON bookings.id = form_submissions.booking_id").
		Where("form_submissions.id = ?", id)
	if workspaceID != uuid.Nil {
		q = q.Where("bookings.workspace_id = ?", workspaceID)
	}
	if err := q.First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

// applySubmission stores answers and status. Completing a submission
// records when it was submitted and stops further reminders.
func (h *Handler) applySubmission(ctx context.Context, sub *models.FormSubmission, status *models.SubmissionStatus, data datatypes.JSON) error {
	updates := map[string]interface{}{}
	if len(data) > 0 {
		updates["data"] = data
	}
	if status != nil {
		updates["status"] = *status
		if *status == models.SubmissionCompleted && sub.SubmittedAt == nil {
			updates["submitted_at"] = time.Now()
		}
	}
	if len(updates) == 0 {
		return nil
	}
	return h.DB.WithContext(ctx).Model(sub).Updates(updates).Error
}

// UpdateSubmission patches a submission's status or answers
func (h *Handler) UpdateSubmission(c *gin.Context) {
	m := membership(c)
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}
	var req models.UpdateSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	sub, err := h.workspaceSubmission(c.Request.Context(), m.Workspace.ID, id)
	if err != nil {
		h.storeError(c, "Submission", err)
		return
	}
	if err := h.applySubmission(c.Request.Context(), sub, req.Status, req.Data); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to update submission", err)
		return
	}
	h.LogActivity(c, m.Workspace.ID, "submission_updated", "form_submission", sub.ID, map[string]interface{}{"status": sub.Status})
	c.JSON(http.StatusOK, sub)
}

// GetPublicSubmission returns a form for the contact to fill in
func (h *Handler) GetPublicSubmission(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}
	sub, err := h.workspaceSubmission(c.Request.Context(), uuid.Nil, id)
	if err != nil {
		h.storeError(c, "Form", err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// SubmitPublicForm records a contact's answers and completes the submission
func (h *Handler) SubmitPublicForm(c *gin.Context) {
	id, ok := uuidParam(c, "submission_id")
	if !ok {
		return
	}
	var req struct {
		Data datatypes.JSON `json:"data" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	sub, err := h.workspaceSubmission(c.Request.Context(), uuid.Nil, id)
	if err != nil {
		h.storeError(c, "Form", err)
		return
	}
	if sub.Status == models.SubmissionCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "Form already submitted"})
		return
	}
	completed := models.SubmissionCompleted
	if err := h.applySubmission(c.Request.Context(), sub, &completed, req.Data); err != nil {
		if errors.Is(err, gorm.ErrInvalidData) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid form data"})
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to submit form", err)
		return
	}
	c.JSON(http.StatusOK, sub)
}
