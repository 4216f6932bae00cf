package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AlertType tags what raised an alert
type AlertType string

const (
	AlertLowStock AlertType = "low_stock"
)

// AlertPriority orders alerts on the dashboard
type AlertPriority string

const (
	PriorityLow    AlertPriority = "low"
	PriorityMedium AlertPriority = "medium"
	PriorityHigh   AlertPriority = "high"
)

// Alert is a dashboard notice for a workspace.
// Link doubles as the dedup key: at most one unread alert exists
// per (workspace, type, link), enforced by idx_alerts_unread_dedup.
type Alert struct {
	ID          uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID     `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Type        AlertType     `gorm:"size:50;not null" json:"type"`
	Priority    AlertPriority `gorm:"size:20;not null;default:medium;check:priority IN ('low','medium','high')" json:"priority"`
	Title       string        `gorm:"size:255;not null" json:"title"`
	Message     string        `gorm:"type:text;not null" json:"message"`
	Link        string        `gorm:"size:500" json:"link"`
	IsRead      bool          `gorm:"not null;default:false;index" json:"is_read"`
	CreatedAt   time.Time     `gorm:"not null;index" json:"created_at"`
}

// BeforeCreate assigns the ID and creation time
func (a *Alert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	if a.Priority == "" {
		a.Priority = PriorityMedium
	}
	return nil
}

// TableName specifies the table name for the Alert model
func (Alert) TableName() string {
	return "alerts"
}

// ActivityLog represents an entry in the workspace's audit history
type ActivityLog struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID         `gorm:"type:uuid;not null;index" json:"workspace_id"`
	UserID      *uuid.UUID        `gorm:"type:uuid" json:"user_id"`
	Action      string            `gorm:"size:100;not null" json:"action"` // booking_created, usage_recorded, ...
	EntityType  string            `gorm:"size:50" json:"entity_type"`
	EntityID    *uuid.UUID        `gorm:"type:uuid" json:"entity_id"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `gorm:"not null;index" json:"created_at"`
}

// BeforeCreate assigns the ID and creation time
func (a *ActivityLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the ActivityLog model
func (ActivityLog) TableName() string {
	return "activity_log"
}

// DashboardStats is the summary shown on the workspace dashboard
type DashboardStats struct {
	TotalBookingsToday int64 `json:"total_bookings_today"`
	UpcomingBookings   int64 `json:"upcoming_bookings"`
	NewLeads           int64 `json:"new_leads"`
	PendingForms       int64 `json:"pending_forms"`
	LowStockItems      int64 `json:"low_stock_items"`
	UnreadAlerts       int64 `json:"unread_alerts"`
}
