package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// InventoryItem is a consumable tracked by a workspace
type InventoryItem struct {
	ID                uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID       uuid.UUID                   `gorm:"type:uuid;not null;index" json:"workspace_id"`
	Name              string                      `gorm:"size:255;not null" json:"name"`
	Description       string                      `gorm:"type:text" json:"description"`
	Quantity          int                         `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
	LowStockThreshold int                         `gorm:"not null;default:10" json:"low_stock_threshold"`
	Unit              string                      `gorm:"size:50;default:pieces" json:"unit"`
	VendorEmail       string                      `gorm:"size:255" json:"vendor_email"`
	LinkedServiceIDs  datatypes.JSONSlice[string] `json:"linked_service_ids"`
	CreatedAt         time.Time                   `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time                   `gorm:"not null" json:"updated_at"`
}

// BeforeCreate assigns the ID and timestamps
func (i *InventoryItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	now := time.Now()
	if i.CreatedAt.IsZero() {
		i.CreatedAt = now
	}
	if i.UpdatedAt.IsZero() {
		i.UpdatedAt = now
	}
	if i.Unit == "" {
		i.Unit = "pieces"
	}
	return nil
}

// IsLowStock reports whether the item is at or below its threshold
func (i InventoryItem) IsLowStock() bool {
	return i.Quantity <= i.LowStockThreshold
}

// TableName specifies the table name for the InventoryItem model
func (InventoryItem) TableName() string {
	return "inventory_items"
}

// InventoryUsage records stock consumed, optionally against a booking
type InventoryUsage struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ItemID       uuid.UUID  `gorm:"type:uuid;not null;index" json:"item_id"`
	BookingID    *uuid.UUID `gorm:"type:uuid" json:"booking_id"`
	QuantityUsed int        `gorm:"not null" json:"quantity_used"`
	Notes        string     `gorm:"type:text" json:"notes"`
	UsedAt       time.Time  `gorm:"not null" json:"used_at"`

	Item *InventoryItem `gorm:"foreignKey:ItemID;constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns the ID and usage time
func (u *InventoryUsage) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.UsedAt.IsZero() {
		u.UsedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the InventoryUsage model
func (InventoryUsage) TableName() string {
	return "inventory_usage"
}

// CreateInventoryItemRequest represents the data needed to create an inventory item
type CreateInventoryItemRequest struct {
	Name              string   `json:"name" binding:"required"`
	Description       string   `json:"description"`
	Quantity          int      `json:"quantity" binding:"min=0"`
	LowStockThreshold *int     `json:"low_stock_threshold" binding:"omitempty,min=0"`
	Unit              string   `json:"unit"`
	VendorEmail       string   `json:"vendor_email" binding:"omitempty,email"`
	LinkedServiceIDs  []string `json:"linked_service_ids"`
}

// UpdateInventoryItemRequest lists the item fields that can be patched
type UpdateInventoryItemRequest struct {
	Name              *string  `json:"name"`
	Description       *string  `json:"description"`
	Quantity          *int     `json:"quantity" binding:"omitempty,min=0"`
	LowStockThreshold *int     `json:"low_stock_threshold" binding:"omitempty,min=0"`
	Unit              *string  `json:"unit"`
	VendorEmail       *string  `json:"vendor_email" binding:"omitempty,email"`
	LinkedServiceIDs  []string `json:"linked_service_ids"`
}

// RecordUsageRequest represents stock consumed from an item
type RecordUsageRequest struct {
	QuantityUsed int        `json:"quantity_used" binding:"required,min=1"`
	BookingID    *uuid.UUID `json:"booking_id"`
	Notes        string     `json:"notes"`
}
