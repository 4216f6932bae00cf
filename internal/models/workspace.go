package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Workspace is a tenant: one business and everything it owns
type Workspace struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Slug           string    `gorm:"uniqueIndex;size:100;not null" json:"slug"`
	OwnerID        uuid.UUID `gorm:"type:uuid;not null;index" json:"owner_id"`
	BusinessName   string    `gorm:"size:255;not null" json:"business_name"`
	Address        string    `gorm:"type:text" json:"address"`
	City           string    `gorm:"size:100" json:"city"`
	State          string    `gorm:"size:100" json:"state"`
	Zip            string    `gorm:"size:20" json:"zip"`
	Country        string    `gorm:"size:100" json:"country"`
	Timezone       string    `gorm:"size:100;default:UTC" json:"timezone"`
	ContactEmail   string    `gorm:"size:255" json:"contact_email"`
	ContactPhone   string    `gorm:"size:50" json:"contact_phone"`
	IsActive       bool      `gorm:"not null;default:false" json:"is_active"`
	OnboardingStep int       `gorm:"not null;default:1" json:"onboarding_step"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`

	Owner User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns the ID and timestamps
func (w *Workspace) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	now := time.Now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	if w.UpdatedAt.IsZero() {
		w.UpdatedAt = now
	}
	if w.Timezone == "" {
		w.Timezone = "UTC"
	}
	return nil
}

// Location returns the workspace timezone, falling back to UTC
func (w Workspace) Location() *time.Location {
	if w.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(w.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// TableName specifies the table name for the Workspace model
func (Workspace) TableName() string {
	return "workspaces"
}

// IntegrationType is the kind of external service a workspace connects
type IntegrationType string

const (
	IntegrationEmail    IntegrationType = "email"
	IntegrationSMS      IntegrationType = "sms"
	IntegrationCalendar IntegrationType = "calendar"
	IntegrationStorage  IntegrationType = "storage"
)

// Integration holds per-workspace provider configuration.
// Secret values inside Config are sealed with the secrets box.
type Integration struct {
	ID           uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Type         IntegrationType   `gorm:"size:50;not null;check:type IN ('email','sms','calendar','storage')" json:"type"`
	Provider     string            `gorm:"size:50" json:"provider"`
	Config       datatypes.JSONMap `gorm:"not null" json:"-"`
	IsActive     bool              `gorm:"not null;default:true" json:"is_active"`
	LastSyncedAt *time.Time        `json:"last_synced_at"`
	CreatedAt    time.Time         `gorm:"not null" json:"created_at"`
}

// BeforeCreate assigns the ID and creation time
func (i *Integration) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now()
	}
	return nil
}

// ConfigString reads a string value from the integration config
func (i Integration) ConfigString(key string) string {
	v, _ := i.Config[key].(string)
	return v
}

// TableName specifies the table name for the Integration model
func (Integration) TableName() string {
	return "integrations"
}

// CreateWorkspaceRequest represents the data needed to create a workspace
type CreateWorkspaceRequest struct {
	Slug         string `json:"slug" binding:"required,min=3,max=100"`
	BusinessName string `json:"business_name" binding:"required"`
	Address      string `json:"address"`
	City         string `json:"city"`
	State        string `json:"state"`
	Zip          string `json:"zip"`
	Country      string `json:"country"`
	Timezone     string `json:"timezone"`
	ContactEmail string `json:"contact_email" binding:"omitempty,email"`
	ContactPhone string `json:"contact_phone"`
}

// UpdateWorkspaceRequest lists the workspace fields that can be patched
type UpdateWorkspaceRequest struct {
	BusinessName *string `json:"business_name"`
	Address      *string `json:"address"`
	City         *string `json:"city"`
	State        *string `json:"state"`
	Zip          *string `json:"zip"`
	Country      *string `json:"country"`
	Timezone     *string `json:"timezone"`
	ContactEmail *string `json:"contact_email" binding:"omitempty,email"`
	ContactPhone *string `json:"contact_phone"`
}

// CreateIntegrationRequest represents the data needed to connect a provider
type CreateIntegrationRequest struct {
	Type     IntegrationType   `json:"type" binding:"required,oneof=email sms calendar storage"`
	Provider string            `json:"provider" binding:"required"`
	Config   map[string]string `json:"config" binding:"required"`
}

// ConfigureTelegramRequest sets the workspace admin chat for Telegram alerts
type ConfigureTelegramRequest struct {
	ChatID string `json:"telegram_chat_id" binding:"required"`
}
