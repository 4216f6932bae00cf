package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SubmissionStatus is the state of a post-booking form submission
type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionOverdue   SubmissionStatus = "overdue"
)

// PostBookingForm is an intake form sent to contacts after they book a service
type PostBookingForm struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID   uuid.UUID      `gorm:"type:uuid;not null;index" json:"workspace_id"`
	ServiceTypeID uuid.UUID      `gorm:"type:uuid;not null;index" json:"service_type_id"`
	Name          string         `gorm:"size:255;not null" json:"name"`
	Description   string         `gorm:"type:text" json:"description"`
	Fields        datatypes.JSON `json:"fields"`
	CreatedAt     time.Time      `gorm:"not null" json:"created_at"`
}

// BeforeCreate assigns the ID and creation time
func (f *PostBookingForm) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the PostBookingForm model
func (PostBookingForm) TableName() string {
	return "post_booking_forms"
}

// FormSubmission tracks a contact's answers to a post-booking form.
// ReminderSentAt rate-limits reminders to one per 24 hours.
type FormSubmission struct {
	ID             uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	FormID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"form_id"`
	BookingID      uuid.UUID        `gorm:"type:uuid;not null;index" json:"booking_id"`
	ContactID      *uuid.UUID       `gorm:"type:uuid" json:"contact_id"`
	Data           datatypes.JSON   `gorm:"not null" json:"data"`
	Status         SubmissionStatus `gorm:"size:50;not null;default:pending;index;check:status IN ('pending','completed','overdue')" json:"status"`
	SubmittedAt    *time.Time       `json:"submitted_at"`
	ReminderSentAt *time.Time       `json:"reminder_sent_at"`
	CreatedAt      time.Time        `gorm:"not null" json:"created_at"`

	Form    *PostBookingForm `gorm:"foreignKey:FormID;constraint:OnDelete:CASCADE" json:"form,omitempty"`
	Booking *Booking         `gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns the ID, creation time and empty answers
func (s *FormSubmission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	if len(s.Data) == 0 {
		s.Data = datatypes.JSON("{}")
	}
	if s.Status == "" {
		s.Status = SubmissionPending
	}
	return nil
}

// TableName specifies the table name for the FormSubmission model
func (FormSubmission) TableName() string {
	return "form_submissions"
}

// CreatePostBookingFormRequest represents the data needed to create a post-booking form
type CreatePostBookingFormRequest struct {
	ServiceTypeID uuid.UUID      `json:"service_type_id" binding:"required"`
	Name          string         `json:"name" binding:"required"`
	Description   string         `json:"description"`
	Fields        datatypes.JSON `json:"fields"`
}

// UpdateSubmissionRequest lists the submission fields that can be patched
type UpdateSubmissionRequest struct {
	Status *SubmissionStatus `json:"status" binding:"omitempty,oneof=pending completed overdue"`
	Data   datatypes.JSON    `json:"data"`
}
