package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ConversationStatus tracks whether a thread still needs attention
type ConversationStatus string

const (
	ConversationOpen   ConversationStatus = "open"
	ConversationClosed ConversationStatus = "closed"
)

// SenderType identifies who wrote a message
type SenderType string

const (
	SenderContact    SenderType = "contact"
	SenderStaff      SenderType = "staff"
	SenderAutomation SenderType = "automation"
)

// Conversation is the inbox thread between a workspace and one contact
type Conversation struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	WorkspaceID      uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_contact" json:"workspace_id"`
	ContactID        uuid.UUID          `gorm:"type:uuid;not null;uniqueIndex:idx_conversations_contact" json:"contact_id"`
	Status           ConversationStatus `gorm:"size:20;not null;default:open;check:status IN ('open','closed')" json:"status"`
	LastMessageAt    *time.Time         `gorm:"index" json:"last_message_at"`
	AssignedTo       *uuid.UUID         `gorm:"type:uuid" json:"assigned_to"`
	AutomationPaused bool               `gorm:"not null;default:false" json:"automation_paused"`
	CreatedAt        time.Time          `gorm:"not null" json:"created_at"`

	// Relationships
	Contact *Contact `gorm:"foreignKey:ContactID" json:"contact,omitempty"`
}

// BeforeCreate assigns the ID and creation time
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	if c.Status == "" {
		c.Status = ConversationOpen
	}
	return nil
}

// TableName specifies the table name for the Conversation model
func (Conversation) TableName() string {
	return "conversations"
}

// Message is a single entry of a conversation
type Message struct {
	ID             uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID         `gorm:"type:uuid;not null;index:idx_messages_conversation_sent" json:"conversation_id"`
	SenderType     SenderType        `gorm:"size:20;not null;check:sender_type IN ('contact','staff','automation')" json:"sender_type"`
	SenderID       *uuid.UUID        `gorm:"type:uuid" json:"sender_id"`
	Content        string            `gorm:"type:text;not null" json:"content"`
	Channel        string            `gorm:"size:50;not null;default:internal" json:"channel"` // email, telegram, log, internal
	IsAutomated    bool              `gorm:"not null;default:false" json:"is_automated"`
	Delivery       string            `gorm:"size:50" json:"delivery,omitempty"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	SentAt         time.Time         `gorm:"not null;index:idx_messages_conversation_sent" json:"sent_at"`
	CreatedAt      time.Time         `gorm:"not null" json:"created_at"`
}

// BeforeCreate hook is called before creating a new message
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now := time.Now()
	if m.SentAt.IsZero() {
		m.SentAt = now
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.Channel == "" {
		m.Channel = "internal"
	}
	return nil
}

// TableName specifies the table name for the Message model
func (Message) TableName() string {
	return "messages"
}

// SendMessageRequest represents the data needed to send a message
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=1000"`
}

// UpdateConversationRequest changes the state of a thread
type UpdateConversationRequest struct {
	Status           *ConversationStatus `json:"status" binding:"omitempty,oneof=open closed"`
	AutomationPaused *bool               `json:"automation_paused"`
}
