package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"careops/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStore implements Store on top of Postgres through GORM
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened database handle
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) DueBookings(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.db.WithContext(ctx).
		Where("scheduled_at >= ? AND scheduled_at < ?", from, to).
		Where(dueBookingsClause, models.BookingPending).
		Order("scheduled_at").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan due bookings: %w", err)
	}
	return bookings, nil
}

func (s *GormStore) PendingSubmissions(ctx context.Context, staleBefore time.Time) ([]models.FormSubmission, error) {
	var subs []models.FormSubmission
	err := s.db.WithContext(ctx).
		Where("status = ?", models.SubmissionPending).
		Where(staleFormsClause, staleBefore).
		Order("created_at").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to scan pending submissions: %w", err)
	}
	return subs, nil
}

func (s *GormStore) LowStockItems(ctx context.Context) ([]models.InventoryItem, error) {
	var items []models.InventoryItem
	if err := s.db.WithContext(ctx).Where(lowStockItemsClause).Order("workspace_id, name").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to scan low stock items: %w", err)
	}
	return items, nil
}

// first loads a single row by primary key into dest
func (s *GormStore) first(ctx context.Context, dest interface{}, id uuid.UUID) error {
	err := s.db.WithContext(ctx).Where("id = ?", id).First(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) Booking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var b models.Booking
	if err := s.first(ctx, &b, id); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *GormStore) Submission(ctx context.Context, id uuid.UUID) (*models.FormSubmission, error) {
	var sub models.FormSubmission
	if err := s.first(ctx, &sub, id); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (s *GormStore) Contact(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	var c models.Contact
	if err := s.first(ctx, &c, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormStore) ServiceType(ctx context.Context, id uuid.UUID) (*models.ServiceType, error) {
	var st models.ServiceType
	if err := s.first(ctx, &st, id); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *GormStore) Form(ctx context.Context, id uuid.UUID) (*models.PostBookingForm, error) {
	var f models.PostBookingForm
	if err := s.first(ctx, &f, id); err != nil {
		return nil, err
	}
	return &f, nil
}

func (s *GormStore) Workspace(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	var w models.Workspace
	if err := s.first(ctx, &w, id); err != nil {
		return nil, err
	}
	return &w, nil
}

func (s *GormStore) InventoryItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	var item models.InventoryItem
	if err := s.first(ctx, &item, id); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *GormStore) ActiveIntegrations(ctx context.Context, workspaceID uuid.UUID) ([]models.Integration, error) {
	var integrations []models.Integration
	err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND is_active = ?", workspaceID, true).
		Order("created_at").
		Find(&integrations).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load integrations: %w", err)
	}
	return integrations, nil
}

func (s *GormStore) MarkBookingReminded(ctx context.Context, id uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Booking{}).
		Where("id = ? AND reminder_sent = ?", id, false).
		Updates(map[string]interface{}{"reminder_sent": true, "updated_at": time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark booking %s reminded: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) MarkSubmissionReminded(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.FormSubmission{}).
		Where("id = ? AND status = ?", id, models.SubmissionPending).
		Where(staleFormsClause, staleBefore).
		Update("reminder_sent_at", at)
	if res.Error != nil {
		return false, fmt.Errorf("failed to mark submission %s reminded: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) CreateUnreadAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Alert{}).
			Where("workspace_id = ? AND type = ? AND link = ? AND is_read = ?", alert.WorkspaceID, alert.Type, alert.Link, false).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return nil
		}
		if err := tx.Create(alert).Error; err != nil {
			return err
		}
		created = true
		return nil
	})
	return alertCreated(created, err)
}

// alertCreated maps the outcome of the alert insert. A duplicate key means
// a concurrent writer won the race on idx_alerts_unread_dedup.
func alertCreated(created bool, err error) (bool, error) {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to create alert: %w", err)
	}
	return created, nil
}

func (s *GormStore) MarkAlertRead(ctx context.Context, workspaceID, alertID uuid.UUID) error {
	res := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ? AND workspace_id = ?", alertID, workspaceID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("failed to mark alert read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) Alerts(ctx context.Context, workspaceID uuid.UUID, unreadOnly bool) ([]models.Alert, error) {
	query := s.db.WithContext(ctx).Where("workspace_id = ?", workspaceID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}
	var alerts []models.Alert
	if err := query.Order("created_at DESC").Limit(100).Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

func (s *GormStore) RecordUsage(ctx context.Context, usage *models.InventoryUsage) (*models.InventoryItem, error) {
	var item models.InventoryItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", usage.ItemID).
			First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if usage.QuantityUsed > item.Quantity {
			return &InsufficientStockError{Available: item.Quantity, Requested: usage.QuantityUsed}
		}

		item.Quantity -= usage.QuantityUsed
		item.UpdatedAt = time.Now()
		if err := tx.Model(&item).Updates(map[string]interface{}{
			"quantity":   item.Quantity,
			"updated_at": item.UpdatedAt,
		}).Error; err != nil {
			return err
		}
		return tx.Create(usage).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInsufficientStock) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to record usage: %w", err)
	}
	return &item, nil
}

func (s *GormStore) EnsureConversation(ctx context.Context, workspaceID, contactID uuid.UUID) (*models.Conversation, error) {
	conv := models.Conversation{WorkspaceID: workspaceID, ContactID: contactID}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&conv).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	// The insert is a no-op when the contact already has a thread
	var existing models.Conversation
	if err := s.db.WithContext(ctx).
		Where("workspace_id = ? AND contact_id = ?", workspaceID, contactID).
		First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &existing, nil
}

func (s *GormStore) Conversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	var c models.Conversation
	if err := s.first(ctx, &c, id); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormStore) Conversations(ctx context.Context, workspaceID uuid.UUID, status models.ConversationStatus) ([]models.Conversation, error) {
	query := s.db.WithContext(ctx).Preload("Contact").Where("workspace_id = ?", workspaceID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	var convs []models.Conversation
	if err := query.Order("COALESCE(last_message_at, created_at) DESC").Limit(100).Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	return convs, nil
}

func (s *GormStore) Messages(ctx context.Context, conversationID uuid.UUID, limit int, before time.Time) ([]models.Message, error) {
	query := s.db.WithContext(ctx).Where("conversation_id = ?", conversationID)
	if !before.IsZero() {
		query = query.Where("sent_at < ?", before)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var msgs []models.Message
	if err := query.Order("sent_at DESC").Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return msgs, nil
}

func (s *GormStore) AddMessage(ctx context.Context, msg *models.Message) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", msg.ConversationID).
			First(&conv).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if conv.LastMessageAt == nil || msg.SentAt.After(*conv.LastMessageAt) {
			at := msg.SentAt
			conv.LastMessageAt = &at
			updates["last_message_at"] = at
		}
		if msg.SenderType == models.SenderStaff {
			conv.AutomationPaused = true
			conv.Status = models.ConversationOpen
			updates["automation_paused"] = true
			updates["status"] = models.ConversationOpen
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&conv).Updates(updates).Error
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to add message: %w", err)
	}
	return &conv, nil
}

func (s *GormStore) UpdateConversation(ctx context.Context, workspaceID, id uuid.UUID, req models.UpdateConversationRequest) (*models.Conversation, error) {
	updates := map[string]interface{}{}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.AutomationPaused != nil {
		updates["automation_paused"] = *req.AutomationPaused
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Conversation{}).
			Where("id = ? AND workspace_id = ?", id, workspaceID).
			Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("failed to update conversation: %w", res.Error)
		}
	}
	conv, err := s.Conversation(ctx, id)
	if err != nil {
		return nil, err
	}
	if conv.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}
	return conv, nil
}
