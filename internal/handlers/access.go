package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"careops/internal/auth"
	"careops/internal/models"
	"careops/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var errNoAccess = errors.New("no access to workspace")

// Section names a permission-gated part of the dashboard
type Section string

const (
	SectionAny       Section = ""
	SectionOwner     Section = "owner"
	SectionInbox     Section = "inbox"
	SectionBookings  Section = "bookings"
	SectionForms     Section = "forms"
	SectionInventory Section = "inventory"
)

// Membership is the caller's relationship to a workspace
type Membership struct {
	Workspace   models.Workspace
	Owner       bool
	Permissions models.Permissions
}

// Can reports whether the member may use a section
func (m Membership) Can(s Section) bool {
	if m.Owner {
		return true
	}
	switch s {
	case SectionAny:
		return true
	case SectionInbox:
		return m.Permissions.Inbox
	case SectionBookings:
		return m.Permissions.Bookings
	case SectionForms:
		return m.Permissions.Forms
	case SectionInventory:
		return m.Permissions.Inventory
	}
	return false
}

// Access resolves a user's membership of a workspace
type Access interface {
	Membership(ctx context.Context, userID, workspaceID uuid.UUID) (*Membership, error)
}

type dbAccess struct {
	db *gorm.DB
}

// NewDBAccess checks ownership and staff membership in Postgres
func NewDBAccess(db *gorm.DB) Access {
	return dbAccess{db: db}
}

func (a dbAccess) Membership(ctx context.Context, userID, workspaceID uuid.UUID) (*Membership, error) {
	var ws models.Workspace
	if err := a.db.WithContext(ctx).Where("id = ?", workspaceID).First(&ws).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if ws.OwnerID == userID {
		return &Membership{Workspace: ws, Owner: true}, nil
	}

	var member models.WorkspaceMember
	err := a.db.WithContext(ctx).Where("workspace_id = ? AND user_id = ?", workspaceID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errNoAccess
	}
	if err != nil {
		return nil, err
	}
	return &Membership{Workspace: ws, Permissions: member.Permissions.Data()}, nil
}

const ctxMembership = "membership"

// platformAdmin allows only operators listed in ADMIN_EMAILS. Workspace
// owners are not operators: every self-registered user owns a workspace.
func (h *Handler) platformAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.TrimSpace(auth.Email(c))
		for _, admin := range h.AdminEmails {
			if email != "" && strings.EqualFold(email, strings.TrimSpace(admin)) {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{"error": "Operator access required"})
		c.Abort()
	}
}

// workspaceAccess loads :workspace_id and rejects callers who may not
// use the given section
func (h *Handler) workspaceAccess(section Section) gin.HandlerFunc {
	return func(c *gin.Context) {
		wsID, ok := uuidParam(c, "workspace_id")
		if !ok {
			c.Abort()
			return
		}
		uid, ok := auth.UserID(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		m, err := h.Access.Membership(c.Request.Context(), uid, wsID)
		switch {
		case errors.Is(err, store.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Workspace not found"})
			return
		case errors.Is(err, errNoAccess):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not a member of this workspace"})
			return
		case err != nil:
			h.handleError(c, http.StatusInternalServerError, "Failed to check workspace access", err)
			c.Abort()
			return
		}
		if !m.Can(section) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Not authorized for " + string(section)})
			return
		}

		c.Set(ctxMembership, m)
		c.Next()
	}
}

// membership returns the value stored by workspaceAccess
func membership(c *gin.Context) *Membership {
	m, _ := c.MustGet(ctxMembership).(*Membership)
	return m
}
