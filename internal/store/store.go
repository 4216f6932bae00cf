// Package store is the persistence boundary used by the automation
// engines and the inventory/alert handlers.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"careops/internal/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// InsufficientStockError reports the quantity seen while the item row was locked
type InsufficientStockError struct {
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock: %d available, %d requested", e.Available, e.Requested)
}

// Is matches ErrInsufficientStock
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Query fragments used by the sweep scans. The gorm logger drops
// statements containing them so periodic jobs do not flood the SQL log.
const (
	dueBookingsClause   = "reminder_sent = false AND status = ?"
	staleFormsClause    = "reminder_sent_at IS NULL OR reminder_sent_at < ?"
	lowStockItemsClause = "quantity <= low_stock_threshold"
)

// AlertDedupIndexSQL keeps at most one unread alert per workspace, type
// and link. It is the final arbiter when two alert writers race.
const AlertDedupIndexSQL = `CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_unread_dedup
	ON alerts (workspace_id, type, link) WHERE is_read = false`

// SweepQueryPatterns lists the SQL fragments of the sweep scans
var SweepQueryPatterns = []string{"reminder_sent = false", "reminder_sent_at IS NULL", lowStockItemsClause}

// Store is everything the engines need from the database
type Store interface {
	// DueBookings returns pending, unreminded bookings scheduled in [from, to)
	DueBookings(ctx context.Context, from, to time.Time) ([]models.Booking, error)
	// PendingSubmissions returns pending submissions never reminded or
	// last reminded before staleBefore
	PendingSubmissions(ctx context.Context, staleBefore time.Time) ([]models.FormSubmission, error)
	// LowStockItems returns items whose quantity is at or below their threshold
	LowStockItems(ctx context.Context) ([]models.InventoryItem, error)

	Booking(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Submission(ctx context.Context, id uuid.UUID) (*models.FormSubmission, error)
	Contact(ctx context.Context, id uuid.UUID) (*models.Contact, error)
	ServiceType(ctx context.Context, id uuid.UUID) (*models.ServiceType, error)
	Form(ctx context.Context, id uuid.UUID) (*models.PostBookingForm, error)
	Workspace(ctx context.Context, id uuid.UUID) (*models.Workspace, error)
	InventoryItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error)
	ActiveIntegrations(ctx context.Context, workspaceID uuid.UUID) ([]models.Integration, error)

	// MarkBookingReminded flips reminder_sent to true. It reports false
	// when the flag was already set.
	MarkBookingReminded(ctx context.Context, id uuid.UUID) (bool, error)
	// MarkSubmissionReminded stamps reminder_sent_at when the submission
	// is still pending and still stale relative to staleBefore.
	MarkSubmissionReminded(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) (bool, error)
	// CreateUnreadAlert inserts the alert unless an unread alert with the
	// same workspace, type and link already exists.
	CreateUnreadAlert(ctx context.Context, alert *models.Alert) (bool, error)
	MarkAlertRead(ctx context.Context, workspaceID, alertID uuid.UUID) error
	Alerts(ctx context.Context, workspaceID uuid.UUID, unreadOnly bool) ([]models.Alert, error)

	// RecordUsage decrements the item's stock and stores the usage row
	// atomically, returning the updated item. An overdraw fails with an
	// *InsufficientStockError.
	RecordUsage(ctx context.Context, usage *models.InventoryUsage) (*models.InventoryItem, error)

	Inbox
}

// Inbox stores conversations and their messages
type Inbox interface {
	// EnsureConversation returns the contact's conversation, creating it on first use
	EnsureConversation(ctx context.Context, workspaceID, contactID uuid.UUID) (*models.Conversation, error)
	Conversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	// Conversations lists a workspace's threads, most recent activity first.
	// An empty status matches every thread.
	Conversations(ctx context.Context, workspaceID uuid.UUID, status models.ConversationStatus) ([]models.Conversation, error)
	// Messages returns up to limit messages sent before the given time,
	// newest first. A zero before means no bound.
	Messages(ctx context.Context, conversationID uuid.UUID, limit int, before time.Time) ([]models.Message, error)
	// AddMessage appends msg and moves last_message_at forward. A staff
	// message reopens the thread and pauses its automation.
	AddMessage(ctx context.Context, msg *models.Message) (*models.Conversation, error)
	UpdateConversation(ctx context.Context, workspaceID, id uuid.UUID, req models.UpdateConversationRequest) (*models.Conversation, error)
}
