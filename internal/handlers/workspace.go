package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"careops/internal/auth"
	"careops/internal/calendar"
	"careops/internal/models"
	"careops/internal/notify"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CreateWorkspace creates a workspace owned by the caller
func (h *Handler) CreateWorkspace(c *gin.Context) {
	uid, _ := auth.UserID(c)
	var req models.CreateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if req.Timezone != "" {
		if _, err := time.LoadLocation(req.Timezone); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown timezone"})
			return
		}
	}

	ws := models.Workspace{
		Slug:         strings.ToLower(strings.TrimSpace(req.Slug)),
		OwnerID:      uid,
		BusinessName: req.BusinessName,
		Address:      req.Address,
		City:         req.City,
		State:        req.State,
		Zip:          req.Zip,
		Country:      req.Country,
		Timezone:     req.Timezone,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&ws).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "Slug is already taken"})
			return
		}
		h.handleError(c, http.StatusInternalServerError, "Failed to create workspace", err)
		return
	}

	h.LogActivity(c, ws.ID, "workspace_created", "workspace", ws.ID, nil)
	c.JSON(http.StatusCreated, ws)
}

// ListWorkspaces returns the workspaces the caller owns or works in
func (h *Handler) ListWorkspaces(c *gin.Context) {
	uid, _ := auth.UserID(c)
	var workspaces []models.Workspace
	err := h.DB.WithContext(c.Request.Context()).
		Where("owner_id = ? OR id IN (?)", uid,
			h.DB.Model(&models.WorkspaceMember{}).Select("workspace_id").Where("user_id = ?", uid)).
		Order("created_at DESC").
		Find(&workspaces).Error
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch workspaces", err)
		return
	}
	c.JSON(http.StatusOK, workspaces)
}

// GetWorkspace returns the workspace and the caller's membership
func (h *Handler) GetWorkspace(c *gin.Context) {
	m := membership(c)
	c.JSON(http.StatusOK, gin.H{
		"workspace":   m.Workspace,
		"is_owner":    m.Owner,
		"permissions": m.Permissions,
	})
}

// UpdateWorkspace patches the workspace profile
func (h *Handler) UpdateWorkspace(c *gin.Context) {
	m := membership(c)
	var req models.UpdateWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	updates := map[string]interface{}{}
	setIf := func(col string, v *string) {
		if v != nil {
			updates[col] = *v
		}
	}
	setIf("business_name", req.BusinessName)
	setIf("address", req.Address)
	setIf("city", req.City)
	setIf("state", req.State)
	setIf("zip", req.Zip)
	setIf("country", req.Country)
	setIf("contact_email", req.ContactEmail)
	setIf("contact_phone", req.ContactPhone)
	if req.Timezone != nil {
		if _, err := time.LoadLocation(*req.Timezone); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown timezone"})
			return
		}
		updates["timezone"] = *req.Timezone
	}
	if len(updates) == 0 {
		c.JSON(http.StatusOK, m.Workspace)
		return
	}
	updates["updated_at"] = time.Now()

	ws := m.Workspace
	if err := h.DB.WithContext(c.Request.Context()).Model(&ws).Updates(updates).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to update workspace", err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// ActivateWorkspace turns the workspace live once it can take bookings
// and reach its contacts
func (h *Handler) ActivateWorkspace(c *gin.Context) {
	m := membership(c)
	ctx := c.Request.Context()

	var services int64
	if err := h.DB.WithContext(ctx).Model(&models.ServiceType{}).
		Where("workspace_id = ? AND is_active = true", m.Workspace.ID).
		Count(&services).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to check services", err)
		return
	}
	if services == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "At least one active service is required"})
		return
	}
	desc := h.Notifiers.For(ctx, m.Workspace.ID).Describe()
	if !desc.Configured {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Connect an email or Telegram channel first"})
		return
	}

	ws := m.Workspace
	if err := h.DB.WithContext(ctx).Model(&ws).
		Updates(map[string]interface{}{"is_active": true, "updated_at": time.Now()}).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to activate workspace", err)
		return
	}
	h.LogActivity(c, ws.ID, "workspace_activated", "workspace", ws.ID, map[string]interface{}{"channel": desc.Channel})
	c.JSON(http.StatusOK, ws)
}

// UpdateOnboardingStep records the caller's progress through setup
func (h *Handler) UpdateOnboardingStep(c *gin.Context) {
	m := membership(c)
	var req struct {
		Step int `json:"step" binding:"required,min=1,max=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	ws := m.Workspace
	if err := h.DB.WithContext(c.Request.Context()).Model(&ws).
		Updates(map[string]interface{}{"onboarding_step": req.Step, "updated_at": time.Now()}).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to update onboarding step", err)
		return
	}
	c.JSON(http.StatusOK, ws)
}

// InviteStaff creates a staff account with a temporary password and
// adds it to the workspace
func (h *Handler) InviteStaff(c *gin.Context) {
	m := membership(c)
	var req models.InviteStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	perms := models.DefaultStaffPermissions
	if req.Permissions != nil {
		perms = *req.Permissions
	}

	tempPassword, err := auth.GenerateRandomString(12)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to generate password", err)
		return
	}
	hash, err := auth.HashPassword(tempPassword)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to process password", err)
		return
	}

	var member models.WorkspaceMember
	err = h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var user models.User
		email := strings.ToLower(strings.TrimSpace(req.Email))
		err := tx.Where("email = ?", email).First(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			user = models.User{Email: email, PasswordHash: hash, FullName: req.FullName, Role: models.RoleStaff}
			err = tx.Create(&user).Error
		} else {
			tempPassword = ""
		}
		if err != nil {
			return err
		}
		if user.ID == m.Workspace.OwnerID {
			return errors.New("owner cannot be invited as staff")
		}

		member = models.WorkspaceMember{
			WorkspaceID: m.Workspace.ID,
			UserID:      user.ID,
			Permissions: datatypes.NewJSONType(perms),
			User:        user,
		}
		return tx.Omit("User").Create(&member).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			c.JSON(http.StatusConflict, gin.H{"error": "User is already a member"})
			return
		}
		h.handleError(c, http.StatusBadRequest, "Failed to invite staff", err)
		return
	}

	h.LogActivity(c, m.Workspace.ID, "staff_invited", "workspace_member", member.ID, map[string]interface{}{"email": member.User.Email})
	resp := gin.H{"member": member}
	if tempPassword != "" {
		resp["temporary_password"] = tempPassword
	}
	c.JSON(http.StatusCreated, resp)
}

// ListStaff returns the workspace's staff members
func (h *Handler) ListStaff(c *gin.Context) {
	m := membership(c)
	var members []models.WorkspaceMember
	if err := h.DB.WithContext(c.Request.Context()).Preload("User").
		Where("workspace_id = ?", m.Workspace.ID).
		Order("created_at").
		Find(&members).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch staff", err)
		return
	}
	c.JSON(http.StatusOK, members)
}

// UpdateStaffPermissions replaces a staff member's permissions
func (h *Handler) UpdateStaffPermissions(c *gin.Context) {
	m := membership(c)
	memberID, ok := uuidParam(c, "member_id")
	if !ok {
		return
	}
	var perms models.Permissions
	if err := c.ShouldBindJSON(&perms); err != nil {
		bindError(c, err)
		return
	}

	res := h.DB.WithContext(c.Request.Context()).Model(&models.WorkspaceMember{}).
		Where("id = ? AND workspace_id = ?", memberID, m.Workspace.ID).
		Update("permissions", datatypes.NewJSONType(perms))
	if res.Error != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to update permissions", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Staff member not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": memberID, "permissions": perms})
}

// RemoveStaff removes a member from the workspace
func (h *Handler) RemoveStaff(c *gin.Context) {
	m := membership(c)
	memberID, ok := uuidParam(c, "member_id")
	if !ok {
		return
	}
	res := h.DB.WithContext(c.Request.Context()).
		Where("id = ? AND workspace_id = ?", memberID, m.Workspace.ID).
		Delete(&models.WorkspaceMember{})
	if res.Error != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to remove staff member", res.Error)
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Staff member not found"})
		return
	}
	h.LogActivity(c, m.Workspace.ID, "staff_removed", "workspace_member", memberID, nil)
	c.Status(http.StatusNoContent)
}

// secretKeys are integration config values sealed before storage
var secretKeys = map[string]bool{
	notify.KeySendGridAPIKey: true,
	calendar.KeyRefreshToken: true,
}

// CreateIntegration connects a provider, replacing any active
// integration of the same type
func (h *Handler) CreateIntegration(c *gin.Context) {
	m := membership(c)
	var req models.CreateIntegrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	cfg := datatypes.JSONMap{}
	for k, v := range req.Config {
		if secretKeys[k] {
			sealed, err := h.Box.Seal(v)
			if err != nil {
				h.handleError(c, http.StatusInternalServerError, "Secret storage is not configured", err)
				return
			}
			v = sealed
		}
		cfg[k] = v
	}

	in := models.Integration{
		WorkspaceID: m.Workspace.ID,
		Type:        req.Type,
		Provider:    strings.ToLower(req.Provider),
		Config:      cfg,
		IsActive:    true,
	}
	if err := h.saveIntegration(c, &in); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to save integration", err)
		return
	}
	h.LogActivity(c, m.Workspace.ID, "integration_connected", "integration", in.ID, map[string]interface{}{"type": in.Type, "provider": in.Provider})
	c.JSON(http.StatusCreated, in)
}

// saveIntegration deactivates the previous integration of the same type
// and stores the new one
func (h *Handler) saveIntegration(c *gin.Context, in *models.Integration) error {
	return h.DB.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Integration{}).
			Where("workspace_id = ? AND type = ? AND is_active = true", in.WorkspaceID, in.Type).
			Update("is_active", false).Error; err != nil {
			return err
		}
		return tx.Create(in).Error
	})
}

// ListIntegrations returns the workspace's integrations without secrets
func (h *Handler) ListIntegrations(c *gin.Context) {
	m := membership(c)
	var list []models.Integration
	if err := h.DB.WithContext(c.Request.Context()).
		Where("workspace_id = ?", m.Workspace.ID).
		Order("created_at DESC").
		Find(&list).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch integrations", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// ConfigureTelegram stores the admin chat that receives the workspace's
// Telegram notifications
func (h *Handler) ConfigureTelegram(c *gin.Context) {
	m := membership(c)
	var req models.ConfigureTelegramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	chatID := strings.TrimSpace(req.ChatID)
	if _, err := strconv.ParseInt(chatID, 10, 64); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid Telegram chat id"})
		return
	}

	in := models.Integration{
		WorkspaceID: m.Workspace.ID,
		Type:        models.IntegrationSMS,
		Provider:    "telegram",
		Config:      datatypes.JSONMap{notify.KeyTelegramChatID: chatID},
		IsActive:    true,
	}
	if err := h.saveIntegration(c, &in); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to save Telegram settings", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"integration": in, "bot_available": h.Telegram != nil})
}

// GoogleConnect returns the consent URL for calendar sync
func (h *Handler) GoogleConnect(c *gin.Context) {
	m := membership(c)
	if h.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar is not configured"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": h.Calendar.AuthURL(m.Workspace.ID.String())})
}

// GoogleCallback exchanges the consent code and stores the calendar
// integration
func (h *Handler) GoogleCallback(c *gin.Context) {
	m := membership(c)
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	if h.Calendar == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Calendar is not configured"})
		return
	}

	cfg, err := h.Calendar.Exchange(c.Request.Context(), req.Code)
	if err != nil {
		h.handleError(c, http.StatusBadGateway, "Failed to connect Google Calendar", err)
		return
	}
	in := models.Integration{
		WorkspaceID: m.Workspace.ID,
		Type:        models.IntegrationCalendar,
		Provider:    "google",
		Config:      datatypes.JSONMap(cfg),
		IsActive:    true,
	}
	if err := h.saveIntegration(c, &in); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to save calendar integration", err)
		return
	}
	h.LogActivity(c, m.Workspace.ID, "integration_connected", "integration", in.ID, map[string]interface{}{"type": in.Type, "provider": in.Provider})
	c.JSON(http.StatusCreated, in)
}
