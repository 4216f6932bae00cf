package handlers

import (
	"net/http"

	"careops/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateService adds a bookable service
func (h *Handler) CreateService(c *gin.Context) {
	m := membership(c)
	var req models.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	st := models.ServiceType{
		WorkspaceID:     m.Workspace.ID,
		Name:            req.Name,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		Location:        req.Location,
		Color:           req.Color,
		IsActive:        true,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&st).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to create service", err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

// ListServices returns the workspace's services with their availability
func (h *Handler) ListServices(c *gin.Context) {
	m := membership(c)
	services, err := h.services(c, m.Workspace.ID.String(), false)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch services", err)
		return
	}
	c.JSON(http.StatusOK, services)
}

func (h *Handler) services(c *gin.Context, workspaceID string, activeOnly bool) ([]models.ServiceType, error) {
	q := h.DB.WithContext(c.Request.Context()).
		Preload("AvailabilitySlots").
		Where("workspace_id = ?", workspaceID)
	if activeOnly {
		q = q.Where("is_active = true")
	}
	var services []models.ServiceType
	err := q.Order("name").Find(&services).Error
	return services, err
}

// CreateAvailability adds a weekly slot to a service
func (h *Handler) CreateAvailability(c *gin.Context) {
	m := membership(c)
	serviceID, ok := uuidParam(c, "service_id")
	if !ok {
		return
	}
	var req models.CreateAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.EndTime <= req.StartTime {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end_time must be after start_time"})
		return
	}

	var st models.ServiceType
	if err := h.DB.WithContext(c.Request.Context()).
		Where("id = ? AND workspace_id = ?", serviceID, m.Workspace.ID).
		First(&st).Error; err != nil {
		h.storeError(c, "Service", err)
		return
	}

	slot := models.AvailabilitySlot{
		ServiceTypeID: st.ID,
		DayOfWeek:     req.DayOfWeek,
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&slot).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to create availability", err)
		return
	}
	c.JSON(http.StatusCreated, slot)
}

// ListAvailability returns a service's weekly slots
func (h *Handler) ListAvailability(c *gin.Context) {
	m := membership(c)
	serviceID, ok := uuidParam(c, "service_id")
	if !ok {
		return
	}
	var slots []models.AvailabilitySlot
	err := h.DB.WithContext(c.Request.Context()).
		Joins("JOIN service_types ON service_types.id = availability_slots.service_type_id").
		Where("availability_slots.service_type_id = ? AND service_types.workspace_id = ?", serviceID, m.Workspace.ID).
		Order("day_of_week, start_time").
		Find(&slots).Error
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch availability", err)
		return
	}
	c.JSON(http.StatusOK, slots)
}
