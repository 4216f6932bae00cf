package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"careops/internal/models"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newSQLiteStore opens a private in-memory database with the tables the
// conditional writes touch
func newSQLiteStore(t *testing.T) (*GormStore, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	// Every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.Contact{},
		&models.Booking{},
		&models.FormSubmission{},
		&models.Alert{},
		&models.Conversation{},
		&models.Message{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.Exec(AlertDedupIndexSQL).Error; err != nil {
		t.Fatalf("dedup index: %v", err)
	}
	return NewGormStore(db), db
}

func TestGormStoreMarkBookingRemindedOnce(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	b := models.Booking{WorkspaceID: uuid.New(), ScheduledAt: at, EndTime: at.Add(time.Hour)}
	if err := db.Create(&b).Error; err != nil {
		t.Fatal(err)
	}

	ok, err := s.MarkBookingReminded(ctx, b.ID)
	if err != nil || !ok {
		t.Fatalf("first mark = %v, %v; want true, nil", ok, err)
	}
	ok, err = s.MarkBookingReminded(ctx, b.ID)
	if err != nil || ok {
		t.Fatalf("second mark = %v, %v; want false, nil", ok, err)
	}
	got, err := s.Booking(ctx, b.ID)
	if err != nil || !got.ReminderSent {
		t.Fatalf("booking = %+v, %v", got, err)
	}
}

func TestGormStoreMarkSubmissionRespectsStaleness(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	staleBefore := now.Add(-24 * time.Hour)
	recent := now.Add(-time.Hour)
	old := now.Add(-48 * time.Hour)

	put := func(sub models.FormSubmission) models.FormSubmission {
		t.Helper()
		sub.FormID, sub.BookingID = uuid.New(), uuid.New()
		if err := db.Create(&sub).Error; err != nil {
			t.Fatal(err)
		}
		return sub
	}
	never := put(models.FormSubmission{})
	stale := put(models.FormSubmission{ReminderSentAt: &old})
	fresh := put(models.FormSubmission{ReminderSentAt: &recent})
	done := put(models.FormSubmission{Status: models.SubmissionCompleted})

	tests := []struct {
		name string
		id   uuid.UUID
		want bool
	}{
		{"never reminded", never.ID, true},
		{"reminded long ago", stale.ID, true},
		{"reminded recently", fresh.ID, false},
		{"completed", done.ID, false},
		{"never reminded, second run", never.ID, false},
	}
	for _, tt := range tests {
		ok, err := s.MarkSubmissionReminded(ctx, tt.id, now, staleBefore)
		if err != nil || ok != tt.want {
			t.Errorf("%s: mark = %v, %v; want %v", tt.name, ok, err, tt.want)
		}
	}
}

func TestGormStoreAlertDedup(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	wsID := uuid.New()
	newAlert := func() *models.Alert {
		return &models.Alert{WorkspaceID: wsID, Type: models.AlertLowStock, Title: "Low", Message: "low", Link: "/inventory/1"}
	}

	first := newAlert()
	created, err := s.CreateUnreadAlert(ctx, first)
	if err != nil || !created {
		t.Fatalf("first alert = %v, %v", created, err)
	}
	if created, err := s.CreateUnreadAlert(ctx, newAlert()); err != nil || created {
		t.Fatalf("duplicate alert = %v, %v; want false, nil", created, err)
	}

	// A writer that skipped the count is stopped by the partial index
	err = db.Create(newAlert()).Error
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		t.Fatalf("raw duplicate insert = %v, want ErrDuplicatedKey", err)
	}
	if created, err := alertCreated(false, err); err != nil || created {
		t.Fatalf("alertCreated(duplicate) = %v, %v", created, err)
	}

	if err := s.MarkAlertRead(ctx, wsID, first.ID); err != nil {
		t.Fatal(err)
	}
	if created, err := s.CreateUnreadAlert(ctx, newAlert()); err != nil || !created {
		t.Fatalf("alert after read = %v, %v; want true, nil", created, err)
	}
}

func TestAlertCreatedMapsDuplicateKey(t *testing.T) {
	boom := errors.New("connection reset")
	tests := []struct {
		name    string
		created bool
		err     error
		want    bool
		wantErr bool
	}{
		{"inserted", true, nil, true, false},
		{"counted existing", false, nil, false, false},
		{"lost race", false, gorm.ErrDuplicatedKey, false, false},
		{"lost race wrapped", false, fmt.Errorf("commit: %w", gorm.ErrDuplicatedKey), false, false},
		{"database error", false, boom, false, true},
	}
	for _, tt := range tests {
		got, err := alertCreated(tt.created, tt.err)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("%s: alertCreated = %v, %v", tt.name, got, err)
		}
		if tt.wantErr && !errors.Is(err, boom) {
			t.Errorf("%s: error %v does not wrap the cause", tt.name, err)
		}
	}
}

func TestGormStoreConversationLifecycle(t *testing.T) {
	s, db := newSQLiteStore(t)
	ctx := context.Background()
	contact := models.Contact{WorkspaceID: uuid.New(), Name: "Pat", Email: "pat@example.com"}
	if err := db.Create(&contact).Error; err != nil {
		t.Fatal(err)
	}

	conv, err := s.EnsureConversation(ctx, contact.WorkspaceID, contact.ID)
	if err != nil {
		t.Fatal(err)
	}
	again, err := s.EnsureConversation(ctx, contact.WorkspaceID, contact.ID)
	if err != nil || again.ID != conv.ID {
		t.Fatalf("second EnsureConversation = %+v, %v; want %s", again, err, conv.ID)
	}

	sent := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	updated, err := s.AddMessage(ctx, &models.Message{ConversationID: conv.ID, SenderType: models.SenderStaff, Content: "hello", SentAt: sent})
	if err != nil {
		t.Fatal(err)
	}
	if !updated.AutomationPaused || updated.LastMessageAt == nil || !updated.LastMessageAt.Equal(sent) {
		t.Fatalf("conversation after staff reply = %+v", updated)
	}
	if _, err := s.AddMessage(ctx, &models.Message{ConversationID: uuid.New(), SenderType: models.SenderContact, Content: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("message to unknown conversation = %v, want ErrNotFound", err)
	}

	convs, err := s.Conversations(ctx, contact.WorkspaceID, models.ConversationOpen)
	if err != nil || len(convs) != 1 || convs[0].Contact == nil || convs[0].Contact.Email != "pat@example.com" {
		t.Fatalf("conversations = %+v, %v", convs, err)
	}
}
