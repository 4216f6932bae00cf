package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ServiceType is a bookable service offered by a workspace
type ServiceType struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID     uuid.UUID `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	Description     string    `gorm:"type:text" json:"description"`
	DurationMinutes int       `gorm:"not null" json:"duration_minutes"`
	Location        string    `gorm:"type:text" json:"location"`
	Color           string    `gorm:"size:7;default:#3B82F6" json:"color"`
	IsActive        bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt       time.Time `gorm:"not null" json:"created_at"`

	AvailabilitySlots []AvailabilitySlot `gorm:"foreignKey:ServiceTypeID;constraint:OnDelete:CASCADE" json:"availability_slots,omitempty"`
}

// BeforeCreate assigns the ID and creation time
func (s *ServiceType) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the ServiceType model
func (ServiceType) TableName() string {
	return "service_types"
}

// AvailabilitySlot is a weekly opening window for a service
type AvailabilitySlot struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ServiceTypeID uuid.UUID `gorm:"type:uuid;not null;index" json:"service_type_id"`
	DayOfWeek     int       `gorm:"not null;check:day_of_week >= 0 AND day_of_week <= 6" json:"day_of_week"` // 0=Sunday
	StartTime     string    `gorm:"size:5;not null" json:"start_time"`                                       // HH:MM
	EndTime       string    `gorm:"size:5;not null" json:"end_time"`
	CreatedAt     time.Time `gorm:"not null" json:"created_at"`
}

// BeforeCreate assigns the ID and creation time
func (a *AvailabilitySlot) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the AvailabilitySlot model
func (AvailabilitySlot) TableName() string {
	return "availability_slots"
}

// CreateServiceRequest represents the data needed to create a service type
type CreateServiceRequest struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=5,max=1440"`
	Location        string `json:"location"`
	Color           string `json:"color" binding:"omitempty,hexcolor"`
}

// CreateAvailabilityRequest represents the data needed to add an availability slot
type CreateAvailabilityRequest struct {
	DayOfWeek int    `json:"day_of_week" binding:"min=0,max=6"`
	StartTime string `json:"start_time" binding:"required,datetime=15:04"`
	EndTime   string `json:"end_time" binding:"required,datetime=15:04"`
}
