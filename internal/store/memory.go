package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"careops/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local demos
type MemoryStore struct {
	mu           sync.Mutex
	bookings     map[uuid.UUID]models.Booking
	submissions  map[uuid.UUID]models.FormSubmission
	contacts     map[uuid.UUID]models.Contact
	services     map[uuid.UUID]models.ServiceType
	forms        map[uuid.UUID]models.PostBookingForm
	workspaces   map[uuid.UUID]models.Workspace
	items        map[uuid.UUID]models.InventoryItem
	integrations map[uuid.UUID]models.Integration
	alerts       map[uuid.UUID]models.Alert
	usage        []models.InventoryUsage
	convs        map[uuid.UUID]models.Conversation
	messages     []models.Message
}

// NewMemoryStore returns an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bookings:     make(map[uuid.UUID]models.Booking),
		submissions:  make(map[uuid.UUID]models.FormSubmission),
		contacts:     make(map[uuid.UUID]models.Contact),
		services:     make(map[uuid.UUID]models.ServiceType),
		forms:        make(map[uuid.UUID]models.PostBookingForm),
		workspaces:   make(map[uuid.UUID]models.Workspace),
		items:        make(map[uuid.UUID]models.InventoryItem),
		integrations: make(map[uuid.UUID]models.Integration),
		alerts:       make(map[uuid.UUID]models.Alert),
		convs:        make(map[uuid.UUID]models.Conversation),
	}
}

func newID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

func (m *MemoryStore) PutBooking(b models.Booking) models.Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	b.ID = newID(b.ID)
	if b.Status == "" {
		b.Status = models.BookingPending
	}
	m.bookings[b.ID] = b
	return b
}

func (m *MemoryStore) PutSubmission(s models.FormSubmission) models.FormSubmission {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.ID = newID(s.ID)
	if s.Status == "" {
		s.Status = models.SubmissionPending
	}
	m.submissions[s.ID] = s
	return s
}

func (m *MemoryStore) PutContact(c models.Contact) models.Contact {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = newID(c.ID)
	m.contacts[c.ID] = c
	return c
}

func (m *MemoryStore) PutServiceType(st models.ServiceType) models.ServiceType {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.ID = newID(st.ID)
	m.services[st.ID] = st
	return st
}

func (m *MemoryStore) PutForm(f models.PostBookingForm) models.PostBookingForm {
	m.mu.Lock()
	defer m.mu.Unlock()
	f.ID = newID(f.ID)
	m.forms[f.ID] = f
	return f
}

func (m *MemoryStore) PutWorkspace(w models.Workspace) models.Workspace {
	m.mu.Lock()
	defer m.mu.Unlock()
	w.ID = newID(w.ID)
	m.workspaces[w.ID] = w
	return w
}

func (m *MemoryStore) PutItem(item models.InventoryItem) models.InventoryItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	item.ID = newID(item.ID)
	m.items[item.ID] = item
	return item
}

func (m *MemoryStore) PutIntegration(i models.Integration) models.Integration {
	m.mu.Lock()
	defer m.mu.Unlock()
	i.ID = newID(i.ID)
	m.integrations[i.ID] = i
	return i
}

func (m *MemoryStore) DueBookings(ctx context.Context, from, to time.Time) ([]models.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Booking
	for _, b := range m.bookings {
		if b.ReminderSent || b.Status != models.BookingPending {
			continue
		}
		if !b.ScheduledAt.Before(from) && b.ScheduledAt.Before(to) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (m *MemoryStore) PendingSubmissions(ctx context.Context, staleBefore time.Time) ([]models.FormSubmission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.FormSubmission
	for _, s := range m.submissions {
		if submissionDue(s, staleBefore) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func submissionDue(s models.FormSubmission, staleBefore time.Time) bool {
	if s.Status != models.SubmissionPending {
		return false
	}
	return s.ReminderSentAt == nil || s.ReminderSentAt.Before(staleBefore)
}

func (m *MemoryStore) LowStockItems(ctx context.Context) ([]models.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.InventoryItem
	for _, item := range m.items {
		if item.IsLowStock() {
			out = append(out, item)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// lookup returns a copy of the value stored under id
func lookup[T any](mu *sync.Mutex, rows map[uuid.UUID]T, id uuid.UUID) (*T, error) {
	mu.Lock()
	defer mu.Unlock()
	v, ok := rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &v, nil
}

func (m *MemoryStore) Booking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	return lookup(&m.mu, m.bookings, id)
}

func (m *MemoryStore) Submission(ctx context.Context, id uuid.UUID) (*models.FormSubmission, error) {
	return lookup(&m.mu, m.submissions, id)
}

func (m *MemoryStore) Contact(ctx context.Context, id uuid.UUID) (*models.Contact, error) {
	return lookup(&m.mu, m.contacts, id)
}

func (m *MemoryStore) ServiceType(ctx context.Context, id uuid.UUID) (*models.ServiceType, error) {
	return lookup(&m.mu, m.services, id)
}

func (m *MemoryStore) Form(ctx context.Context, id uuid.UUID) (*models.PostBookingForm, error) {
	return lookup(&m.mu, m.forms, id)
}

func (m *MemoryStore) Workspace(ctx context.Context, id uuid.UUID) (*models.Workspace, error) {
	return lookup(&m.mu, m.workspaces, id)
}

func (m *MemoryStore) InventoryItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	return lookup(&m.mu, m.items, id)
}

func (m *MemoryStore) ActiveIntegrations(ctx context.Context, workspaceID uuid.UUID) ([]models.Integration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Integration
	for _, i := range m.integrations {
		if i.WorkspaceID == workspaceID && i.IsActive {
			out = append(out, i)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].CreatedAt.Before(out[b].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) MarkBookingReminded(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.ReminderSent {
		return false, nil
	}
	b.ReminderSent = true
	m.bookings[id] = b
	return true, nil
}

func (m *MemoryStore) MarkSubmissionReminded(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.submissions[id]
	if !ok || !submissionDue(s, staleBefore) {
		return false, nil
	}
	s.ReminderSentAt = &at
	m.submissions[id] = s
	return true, nil
}

func (m *MemoryStore) CreateUnreadAlert(ctx context.Context, alert *models.Alert) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.alerts {
		if !a.IsRead && a.WorkspaceID == alert.WorkspaceID && a.Type == alert.Type && a.Link == alert.Link {
			return false, nil
		}
	}
	alert.ID = newID(alert.ID)
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now()
	}
	if alert.Priority == "" {
		alert.Priority = models.PriorityMedium
	}
	m.alerts[alert.ID] = *alert
	return true, nil
}

func (m *MemoryStore) MarkAlertRead(ctx context.Context, workspaceID, alertID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.alerts[alertID]
	if !ok || a.WorkspaceID != workspaceID {
		return ErrNotFound
	}
	a.IsRead = true
	m.alerts[alertID] = a
	return nil
}

func (m *MemoryStore) Alerts(ctx context.Context, workspaceID uuid.UUID, unreadOnly bool) ([]models.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Alert
	for _, a := range m.alerts {
		if a.WorkspaceID != workspaceID || (unreadOnly && a.IsRead) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) RecordUsage(ctx context.Context, usage *models.InventoryUsage) (*models.InventoryItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[usage.ItemID]
	if !ok {
		return nil, ErrNotFound
	}
	if usage.QuantityUsed > item.Quantity {
		return nil, &InsufficientStockError{Available: item.Quantity, Requested: usage.QuantityUsed}
	}
	item.Quantity -= usage.QuantityUsed
	m.items[item.ID] = item

	usage.ID = newID(usage.ID)
	if usage.UsedAt.IsZero() {
		usage.UsedAt = time.Now()
	}
	m.usage = append(m.usage, *usage)
	return &item, nil
}

// Usage returns the recorded usage rows in insertion order
func (m *MemoryStore) Usage() []models.InventoryUsage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.InventoryUsage(nil), m.usage...)
}

func (m *MemoryStore) EnsureConversation(ctx context.Context, workspaceID, contactID uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.convs {
		if c.WorkspaceID == workspaceID && c.ContactID == contactID {
			return &c, nil
		}
	}
	c := models.Conversation{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		ContactID:   contactID,
		Status:      models.ConversationOpen,
		CreatedAt:   time.Now(),
	}
	m.convs[c.ID] = c
	return &c, nil
}

func (m *MemoryStore) Conversation(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return lookup(&m.mu, m.convs, id)
}

func (m *MemoryStore) Conversations(ctx context.Context, workspaceID uuid.UUID, status models.ConversationStatus) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Conversation
	for _, c := range m.convs {
		if c.WorkspaceID != workspaceID || (status != "" && c.Status != status) {
			continue
		}
		if contact, ok := m.contacts[c.ContactID]; ok {
			c.Contact = &contact
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return lastActivity(out[i]).After(lastActivity(out[j])) })
	return out, nil
}

func lastActivity(c models.Conversation) time.Time {
	if c.LastMessageAt != nil {
		return *c.LastMessageAt
	}
	return c.CreatedAt
}

func (m *MemoryStore) Messages(ctx context.Context, conversationID uuid.UUID, limit int, before time.Time) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ConversationID != conversationID || (!before.IsZero() && !msg.SentAt.Before(before)) {
			continue
		}
		out = append(out, msg)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SentAt.After(out[j].SentAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) AddMessage(ctx context.Context, msg *models.Message) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[msg.ConversationID]
	if !ok {
		return nil, ErrNotFound
	}
	msg.ID = newID(msg.ID)
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = msg.SentAt
	}
	if msg.Channel == "" {
		msg.Channel = "internal"
	}
	m.messages = append(m.messages, *msg)

	if c.LastMessageAt == nil || msg.SentAt.After(*c.LastMessageAt) {
		at := msg.SentAt
		c.LastMessageAt = &at
	}
	if msg.SenderType == models.SenderStaff {
		c.AutomationPaused = true
		c.Status = models.ConversationOpen
	}
	m.convs[c.ID] = c
	return &c, nil
}

func (m *MemoryStore) UpdateConversation(ctx context.Context, workspaceID, id uuid.UUID, req models.UpdateConversationRequest) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok || c.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}
	if req.Status != nil {
		c.Status = *req.Status
	}
	if req.AutomationPaused != nil {
		c.AutomationPaused = *req.AutomationPaused
	}
	m.convs[id] = c
	return &c, nil
}
