package handlers

import (
	"errors"
	"net/http"
	"time"

	"careops/internal/automation"
	"careops/internal/models"
	"careops/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// CreateInventoryItem adds a tracked consumable
func (h *Handler) CreateInventoryItem(c *gin.Context) {
	m := membership(c)
	var req models.CreateInventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	item := models.InventoryItem{
		WorkspaceID:       m.Workspace.ID,
		Name:              req.Name,
		Description:       req.Description,
		Quantity:          req.Quantity,
		LowStockThreshold: 10,
		Unit:              req.Unit,
		VendorEmail:       req.VendorEmail,
		LinkedServiceIDs:  datatypes.NewJSONSlice(req.LinkedServiceIDs),
	}
	if req.LowStockThreshold != nil {
		item.LowStockThreshold = *req.LowStockThreshold
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&item).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to create inventory item", err)
		return
	}
	h.LogActivity(c, m.Workspace.ID, "inventory_item_created", "inventory_item", item.ID, nil)

	out := h.checkStock(c, item)
	c.JSON(http.StatusCreated, gin.H{"item": item, "low_stock": out})
}

// ListInventory returns the workspace's items
func (h *Handler) ListInventory(c *gin.Context) {
	m := membership(c)
	q := h.DB.WithContext(c.Request.Context()).Where("workspace_id = ?", m.Workspace.ID)
	if c.Query("low_stock") == "true" {
		q = q.Where("quantity <= low_stock_threshold")
	}
	var items []models.InventoryItem
	if err := q.Order("name").Find(&items).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch inventory", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// workspaceItem loads an item and checks it belongs to the workspace
func (h *Handler) workspaceItem(c *gin.Context, workspaceID uuid.UUID) (*models.InventoryItem, bool) {
	itemID, ok := uuidParam(c, "item_id")
	if !ok {
		return nil, false
	}
	item, err := h.Store.InventoryItem(c.Request.Context(), itemID)
	if err == nil && item.WorkspaceID != workspaceID {
		err = store.ErrNotFound
	}
	if err != nil {
		h.storeError(c, "Inventory item", err)
		return nil, false
	}
	return item, true
}

// UpdateInventoryItem patches an item and re-applies the low-stock rule
func (h *Handler) UpdateInventoryItem(c *gin.Context) {
	m := membership(c)
	item, ok := h.workspaceItem(c, m.Workspace.ID)
	if !ok {
		return
	}
	var req models.UpdateInventoryItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updates := map[string]interface{}{"updated_at": time.Now()}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Quantity != nil {
		updates["quantity"] = *req.Quantity
	}
	if req.LowStockThreshold != nil {
		updates["low_stock_threshold"] = *req.LowStockThreshold
	}
	if req.Unit != nil {
		updates["unit"] = *req.Unit
	}
	if req.VendorEmail != nil {
		updates["vendor_email"] = *req.VendorEmail
	}
	if req.LinkedServiceIDs != nil {
		updates["linked_service_ids"] = datatypes.NewJSONSlice(req.LinkedServiceIDs)
	}

	if err := h.DB.WithContext(c.Request.Context()).Model(item).Updates(updates).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to update inventory item", err)
		return
	}

	var out *automation.AlertOutcome
	if req.Quantity != nil || req.LowStockThreshold != nil {
		out = h.checkStock(c, *item)
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "low_stock": out})
}

// RecordUsage deducts stock and raises a low-stock alert when the item
// drops to its threshold. A failed alert or vendor notification does
// not undo the usage.
func (h *Handler) RecordUsage(c *gin.Context) {
	m := membership(c)
	item, ok := h.workspaceItem(c, m.Workspace.ID)
	if !ok {
		return
	}
	var req models.RecordUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	usage := &models.InventoryUsage{
		ItemID:       item.ID,
		BookingID:    req.BookingID,
		QuantityUsed: req.QuantityUsed,
		Notes:        req.Notes,
	}
	updated, err := h.Store.RecordUsage(c.Request.Context(), usage)
	if err != nil {
		var short *store.InsufficientStockError
		switch {
		case errors.As(err, &short):
			c.JSON(http.StatusConflict, gin.H{
				"error":     "Insufficient stock",
				"available": short.Available,
			})
		default:
			h.storeError(c, "Inventory item", err)
		}
		return
	}

	h.LogActivity(c, m.Workspace.ID, "usage_recorded", "inventory_item", updated.ID, map[string]interface{}{
		"quantity_used": usage.QuantityUsed,
		"remaining":     updated.Quantity,
	})
	out := h.checkStock(c, *updated)
	c.JSON(http.StatusCreated, gin.H{"usage": usage, "item": updated, "low_stock": out})
}

// checkStock runs the inline low-stock check, logging rather than
// failing the request on error
func (h *Handler) checkStock(c *gin.Context, item models.InventoryItem) *automation.AlertOutcome {
	if h.Engine == nil {
		return nil
	}
	out, err := h.Engine.CheckItem(c.Request.Context(), item)
	if err != nil {
		h.Log.Error().Err(err).Str("item_id", item.ID.String()).Msg("inline low stock check failed")
		return nil
	}
	if !out.LowStock {
		return nil
	}
	return &out
}

// ListAlerts returns the workspace's alerts, unread only when ?unread=true
func (h *Handler) ListAlerts(c *gin.Context) {
	m := membership(c)
	alerts, err := h.Store.Alerts(c.Request.Context(), m.Workspace.ID, c.Query("unread") == "true")
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch alerts", err)
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	c.JSON(http.StatusOK, alerts)
}

// MarkAlertRead dismisses an alert; the condition may raise a new one
func (h *Handler) MarkAlertRead(c *gin.Context) {
	m := membership(c)
	alertID, ok := uuidParam(c, "alert_id")
	if !ok {
		return
	}
	if err := h.Store.MarkAlertRead(c.Request.Context(), m.Workspace.ID, alertID); err != nil {
		h.storeError(c, "Alert", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": alertID, "is_read": true})
}

// DashboardStats summarises today's activity for the workspace
func (h *Handler) DashboardStats(c *gin.Context) {
	m := membership(c)
	ctx := c.Request.Context()
	loc := m.Workspace.Location()
	now := time.Now().In(loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var stats models.DashboardStats
	db := h.DB.WithContext(ctx)
	wsID := m.Workspace.ID
	counts := []func() error{
		func() error {
			return db.Model(&models.Booking{}).
				Where("workspace_id = ? AND scheduled_at >= ? AND scheduled_at < ?", wsID, dayStart, dayEnd).
				Count(&stats.TotalBookingsToday).Error
		},
		func() error {
			return db.Model(&models.Booking{}).
				Where("workspace_id = ? AND scheduled_at >= ? AND status = ?", wsID, now, models.BookingPending).
				Count(&stats.UpcomingBookings).Error
		},
		func() error {
			return db.Model(&models.Contact{}).
				Where("workspace_id = ? AND created_at >= ?", wsID, now.AddDate(0, 0, -7)).
				Count(&stats.NewLeads).Error
		},
		func() error {
			return db.Model(&models.FormSubmission{}).
				Joins("JOIN bookings ON bookings.id = form_submissions.booking_id").
				Where("bookings.workspace_id = ? AND form_submissions.status = ?", wsID, models.SubmissionPending).
				Count(&stats.PendingForms).Error
		},
		func() error {
			return db.Model(&models.InventoryItem{}).
				Where("workspace_id = ? AND quantity <= low_stock_threshold", wsID).
				Count(&stats.LowStockItems).Error
		},
		func() error {
			return db.Model(&models.Alert{}).
				Where("workspace_id = ? AND is_read = false", wsID).
				Count(&stats.UnreadAlerts).Error
		},
	}
	for _, count := range counts {
		if err := count(); err != nil {
			h.handleError(c, http.StatusInternalServerError, "Failed to compute dashboard stats", err)
			return
		}
	}
	c.JSON(http.StatusOK, stats)
}
