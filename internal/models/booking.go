package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingStatus is the lifecycle state of a booking
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingNoShow    BookingStatus = "no_show"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is an appointment between a workspace and a contact.
// ReminderSent only ever moves from false to true.
type Booking struct {
	ID                    uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID           uuid.UUID     `gorm:"type:uuid;not null;index" json:"workspace_id"`
	ContactID             *uuid.UUID    `gorm:"type:uuid;index" json:"contact_id"`
	ServiceTypeID         *uuid.UUID    `gorm:"type:uuid" json:"service_type_id"`
	ScheduledAt           time.Time     `gorm:"not null;index" json:"scheduled_at"`
	EndTime               time.Time     `gorm:"not null" json:"end_time"`
	Status                BookingStatus `gorm:"size:50;not null;default:pending;check:status IN ('pending','confirmed','completed','no_show','cancelled')" json:"status"`
	Location              string        `gorm:"type:text" json:"location"`
	Notes                 string        `gorm:"type:text" json:"notes"`
	GoogleCalendarEventID string        `gorm:"size:255" json:"google_calendar_event_id,omitempty"`
	ReminderSent          bool          `gorm:"not null;default:false" json:"reminder_sent"`
	CreatedAt             time.Time     `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time     `gorm:"not null" json:"updated_at"`

	Contact     *Contact     `gorm:"foreignKey:ContactID;constraint:OnDelete:SET NULL" json:"contact,omitempty"`
	ServiceType *ServiceType `gorm:"foreignKey:ServiceTypeID;constraint:OnDelete:SET NULL" json:"service_type,omitempty"`
}

// BeforeCreate assigns the ID and timestamps
func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	if b.UpdatedAt.IsZero() {
		b.UpdatedAt = now
	}
	if b.Status == "" {
		b.Status = BookingPending
	}
	return nil
}

// TableName specifies the table name for the Booking model
func (Booking) TableName() string {
	return "bookings"
}

// ValidBookingStatus reports whether s is a known booking status
func ValidBookingStatus(s BookingStatus) bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingNoShow, BookingCancelled:
		return true
	}
	return false
}

// CreateBookingRequest represents the data needed to create a booking
type CreateBookingRequest struct {
	ServiceTypeID uuid.UUID `json:"service_type_id" binding:"required"`
	ScheduledAt   time.Time `json:"scheduled_at" binding:"required"`
	ContactName   string    `json:"contact_name" binding:"required"`
	ContactEmail  string    `json:"contact_email" binding:"required,email"`
	ContactPhone  string    `json:"contact_phone"`
	Notes         string    `json:"notes"`
}

// UpdateBookingRequest lists the booking fields that can be patched
type UpdateBookingRequest struct {
	Status      *BookingStatus `json:"status"`
	ScheduledAt *time.Time     `json:"scheduled_at"`
	Location    *string        `json:"location"`
	Notes       *string        `json:"notes"`
}
