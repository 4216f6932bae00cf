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
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// notifyContact delivers msg to a contact on the workspace's channel.
// It returns nil when the contact cannot be reached there.
func (h *Handler) notifyContact(ctx context.Context, ws *models.Workspace, contact *models.Contact, msg notify.Message, kind string) *notify.Result {
	n := h.Notifiers.For(ctx, ws.ID)
	to, ok := n.ResolveRecipient(notify.ContactTarget(contact))
	if !ok {
		h.Log.Debug().Str("kind", kind).Str("contact_id", contact.ID.String()).Msg("contact not reachable")
		return nil
	}
	res := n.Send(ctx, to, msg)
	if !res.OK() {
		h.Log.Warn().Str("kind", kind).Str("reason", res.Reason).Msg("notification not delivered")
	}
	return &res
}

// openConversation makes sure the contact has an inbox thread. A failure
// is logged and does not fail the request that created the contact.
func (h *Handler) openConversation(ctx context.Context, workspaceID, contactID uuid.UUID) *models.Conversation {
	conv, err := h.Store.EnsureConversation(ctx, workspaceID, contactID)
	if err != nil {
		h.Log.Error().Err(err).Str("contact_id", contactID.String()).Msg("failed to open conversation")
		return nil
	}
	return conv
}

// findOrCreateContact returns the workspace contact with the given
// email, creating it when there is none
func findOrCreateContact(tx *gorm.DB, c models.Contact) (*models.Contact, bool, error) {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Email != "" {
		var existing models.Contact
		err := tx.Where("workspace_id = ? AND email = ?", c.WorkspaceID, c.Email).First(&existing).Error
		if err == nil {
			return &existing, false, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, err
		}
	}
	if err := tx.Create(&c).Error; err != nil {
		return nil, false, err
	}
	return &c, true, nil
}

// CreateContact adds a contact, returning the existing one when the
// email is already known
func (h *Handler) CreateContact(c *gin.Context) {
	m := membership(c)
	var req models.CreateContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	contact, created, err := findOrCreateContact(h.DB.WithContext(c.Request.Context()), models.Contact{
		WorkspaceID: m.Workspace.ID,
		Name:        req.Name,
		Email:       req.Email,
		Phone:       req.Phone,
		Source:      req.Source,
		Metadata:    datatypes.JSONMap(req.Metadata),
	})
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to create contact", err)
		return
	}
	if !created {
		c.JSON(http.StatusOK, contact)
		return
	}

	h.LogActivity(c, m.Workspace.ID, "contact_created", "contact", contact.ID, map[string]interface{}{"source": contact.Source})
	h.openConversation(c.Request.Context(), m.Workspace.ID, contact.ID)
	h.notifyContact(c.Request.Context(), &m.Workspace, contact, notify.Welcome(&m.Workspace, contact, ""), "welcome")
	c.JSON(http.StatusCreated, contact)
}

// ListContacts returns the workspace's contacts, newest first
func (h *Handler) ListContacts(c *gin.Context) {
	m := membership(c)
	q := h.DB.WithContext(c.Request.Context()).Where("workspace_id = ?", m.Workspace.ID)
	if search := strings.TrimSpace(c.Query("q")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}
	var contacts []models.Contact
	if err := q.Order("created_at DESC").Limit(500).Find(&contacts).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch contacts", err)
		return
	}
	c.JSON(http.StatusOK, contacts)
}

// CreateContactForm creates a public lead capture form
func (h *Handler) CreateContactForm(c *gin.Context) {
	m := membership(c)
	var req models.CreateContactFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	form := models.ContactForm{
		WorkspaceID:    m.Workspace.ID,
		Name:           req.Name,
		Slug:           strings.ToLower(strings.TrimSpace(req.Slug)),
		Fields:         req.Fields,
		WelcomeMessage: req.WelcomeMessage,
	}
	if err := h.DB.WithContext(c.Request.Context()).Create(&form).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to create contact form", err)
		return
	}
	c.JSON(http.StatusCreated, form)
}

// ListContactForms returns the workspace's contact forms
func (h *Handler) ListContactForms(c *gin.Context) {
	m := membership(c)
	var forms []models.ContactForm
	if err := h.DB.WithContext(c.Request.Context()).
		Where("workspace_id = ?", m.Workspace.ID).
		Order("created_at DESC").
		Find(&forms).Error; err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to fetch contact forms", err)
		return
	}
	c.JSON(http.StatusOK, forms)
}
