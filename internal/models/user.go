package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Role is the platform-level role of a user
type Role string

const (
	RoleOwner Role = "owner"
	RoleStaff Role = "staff"
)

// User represents a business owner or a staff member
type User struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	FullName     string    `gorm:"size:255" json:"full_name"`
	Role         Role      `gorm:"size:50;not null;check:role IN ('owner','staff')" json:"role"`
	IsVerified   bool      `gorm:"not null;default:false" json:"is_verified"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

// BeforeCreate assigns the ID and timestamps
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}
	return nil
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

// Permissions controls which dashboard sections a staff member can use
type Permissions struct {
	Inbox     bool `json:"inbox"`
	Bookings  bool `json:"bookings"`
	Forms     bool `json:"forms"`
	Inventory bool `json:"inventory"`
}

// DefaultStaffPermissions are granted to newly invited staff
var DefaultStaffPermissions = Permissions{Inbox: true, Bookings: true, Forms: true, Inventory: false}

// WorkspaceMember links a staff user to a workspace
type WorkspaceMember struct {
	ID          uuid.UUID                       `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID uuid.UUID                       `gorm:"type:uuid;not null;uniqueIndex:idx_member_workspace_user" json:"workspace_id"`
	UserID      uuid.UUID                       `gorm:"type:uuid;not null;uniqueIndex:idx_member_workspace_user" json:"user_id"`
	Permissions datatypes.JSONType[Permissions] `json:"permissions"`
	CreatedAt   time.Time                       `gorm:"not null" json:"created_at"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// BeforeCreate assigns the ID and creation time
func (m *WorkspaceMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	return nil
}

// TableName specifies the table name for the WorkspaceMember model
func (WorkspaceMember) TableName() string {
	return "workspace_members"
}

// RegisterRequest represents the data needed to create an owner account
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name" binding:"required"`
}

// LoginRequest represents the data needed for login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// InviteStaffRequest represents the data needed to add a staff member
type InviteStaffRequest struct {
	Email       string       `json:"email" binding:"required,email"`
	FullName    string       `json:"full_name" binding:"required"`
	Permissions *Permissions `json:"permissions"`
}
