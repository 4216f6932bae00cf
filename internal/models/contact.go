package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Contact represents a lead or customer of a workspace
type Contact struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID         `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name        string            `gorm:"size:255;not null" json:"name"`
	Email       string            `gorm:"size:255;index" json:"email"`
	Phone       string            `gorm:"size:50" json:"phone"`
	Source      string            `gorm:"size:100;default:manual" json:"source"` // contact_form, booking, manual
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `gorm:"not null;index" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

// BeforeCreate assigns the ID and timestamps
func (c *Contact) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	now := time.Now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = now
	}
	if c.Source == "" {
		c.Source = "manual"
	}
	return nil
}

// TableName specifies the table name for the Contact model
func (Contact) TableName() string {
	return "contacts"
}

// ContactForm is a public lead capture form
type ContactForm struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name           string         `gorm:"size:255;not null" json:"name"`
	Slug           string         `gorm:"size:100;not null" json:"slug"`
	Fields         datatypes.JSON `json:"fields"`
	WelcomeMessage string         `gorm:"type:text" json:"welcome_message"`
	CreatedAt      time.Time      `gorm:"not null" json:"created_at"`
}

// BeforeCreate assigns the ID and creation time
func (f *ContactForm) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the ContactForm model
func (ContactForm) TableName() string {
	return "contact_forms"
}

// CreateContactRequest represents the data needed to create a contact
type CreateContactRequest struct {
	Name     string         `json:"name" binding:"required"`
	Email    string         `json:"email" binding:"omitempty,email"`
	Phone    string         `json:"phone"`
	Source   string         `json:"source"`
	Metadata map[string]any `json:"metadata"`
}

// CreateContactFormRequest represents the data needed to create a contact form
type CreateContactFormRequest struct {
	Name           string         `json:"name" binding:"required"`
	Slug           string         `json:"slug" binding:"required"`
	Fields         datatypes.JSON `json:"fields"`
	WelcomeMessage string         `json:"welcome_message"`
}

// PublicContactRequest is submitted by visitors through the public contact form
type PublicContactRequest struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}
