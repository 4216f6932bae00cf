package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"careops/internal/auth"
	"careops/internal/automation"
	"careops/internal/clock"
	"careops/internal/models"
	"careops/internal/notify"
	"careops/internal/scheduler"
	"careops/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeAccess grants the configured membership to one user
type fakeAccess struct {
	userID uuid.UUID
	m      Membership
}

func (a fakeAccess) Membership(ctx context.Context, userID, workspaceID uuid.UUID) (*Membership, error) {
	if workspaceID != a.m.Workspace.ID {
		return nil, store.ErrNotFound
	}
	if userID != a.userID {
		return nil, errNoAccess
	}
	m := a.m
	return &m, nil
}

type staticSource struct{ n notify.Notifier }

func (s staticSource) For(ctx context.Context, workspaceID uuid.UUID) notify.Notifier { return s.n }

type testServer struct {
	router *gin.Engine
	h      *Handler
	store  *store.MemoryStore
	sched  *scheduler.Scheduler
	issuer *auth.Issuer
	ws     models.Workspace
	token  string
	userID uuid.UUID
}

func newTestServer(t *testing.T, owner bool, perms models.Permissions) *testServer {
	t.Helper()
	log := zerolog.New(io.Discard)
	clk := clock.NewFake(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	st := store.NewMemoryStore()
	ws := st.PutWorkspace(models.Workspace{BusinessName: "Bright Smile Dental", Slug: "bright-smile"})

	issuer, err := auth.NewIssuer("test-secret", time.Hour, nil)
	if err != nil {
		t.Fatal(err)
	}
	userID := uuid.New()
	role := models.RoleStaff
	if owner {
		role = models.RoleOwner
	}
	token, err := issuer.Generate(userID, "owner@example.com", string(role))
	if err != nil {
		t.Fatal(err)
	}

	notifiers := staticSource{notify.NewFallback("no transport configured", log)}
	engine := automation.NewEngine(st, notifiers, clk, log, automation.Options{})
	sched := scheduler.New(log, scheduler.Options{})
	t.Cleanup(func() { sched.Stop(context.Background()) })

	h := New(Deps{
		Store:                 st,
		Access:                fakeAccess{userID: userID, m: Membership{Workspace: ws, Owner: owner, Permissions: perms}},
		Engine:                engine,
		Notifiers:             notifiers,
		Scheduler:             sched,
		Issuer:                issuer,
		Log:                   log,
		TelegramWebhookSecret: "hook-secret",
		AdminEmails:           []string{"ops@example.com"},
	})
	router := gin.New()
	h.RegisterRoutes(router)
	return &testServer{router: router, h: h, store: st, sched: sched, issuer: issuer, ws: ws, token: token, userID: userID}
}

// signInAs replaces the caller's token with one for email
func (s *testServer) signInAs(t *testing.T, email string, role models.Role) {
	t.Helper()
	token, err := s.issuer.Generate(s.userID, email, string(role))
	if err != nil {
		t.Fatal(err)
	}
	s.token = token
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) wsPath(p string) string {
	return "/workspaces/" + s.ws.ID.String() + p
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

type usageResponse struct {
	Item     models.InventoryItem     `json:"item"`
	LowStock *automation.AlertOutcome `json:"low_stock"`
}

func TestRecordUsageRaisesOneAlert(t *testing.T) {
	s := newTestServer(t, true, models.Permissions{})
	item := s.store.PutItem(models.InventoryItem{WorkspaceID: s.ws.ID, Name: "Gloves", Quantity: 12, LowStockThreshold: 10})
	path := s.wsPath("/inventory/" + item.ID.String() + "/usage")

	w := s.do(t, http.MethodPost, path, gin.H{"quantity_used": 1})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var first usageResponse
	decode(t, w, &first)
	if first.Item.Quantity != 11 || first.LowStock != nil {
		t.Fatalf("above threshold: item = %+v, low_stock = %+v", first.Item, first.LowStock)
	}

	w = s.do(t, http.MethodPost, path, gin.H{"quantity_used": 3})
	var second usageResponse
	decode(t, w, &second)
	if second.Item.Quantity != 8 || second.LowStock == nil || !second.LowStock.Created {
		t.Fatalf("crossing threshold: item = %+v, low_stock = %+v", second.Item, second.LowStock)
	}

	w = s.do(t, http.MethodPost, path, gin.H{"quantity_used": 1})
	var third usageResponse
	decode(t, w, &third)
	if third.LowStock == nil || third.LowStock.Created {
		t.Fatalf("already alerted: low_stock = %+v", third.LowStock)
	}

	w = s.do(t, http.MethodGet, s.wsPath("/alerts?unread=true"), nil)
	var alerts []models.Alert
	decode(t, w, &alerts)
	if len(alerts) != 1 || alerts[0].Link != automation.LowStockKey(item.ID) {
		t.Fatalf("alerts = %+v", alerts)
	}
	if got := len(s.store.Usage()); got != 3 {
		t.Fatalf("usage rows = %d, want 3", got)
	}
}

func TestRecordUsageRejectsOverdraw(t *testing.T) {
	s := newTestServer(t, true, models.Permissions{})
	item := s.store.PutItem(models.InventoryItem{WorkspaceID: s.ws.ID, Name: "Masks", Quantity: 2, LowStockThreshold: 1})

	w := s.do(t, http.MethodPost, s.wsPath("/inventory/"+item.ID.String()+"/usage"), gin.H{"quantity_used": 5})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	got, _ := s.store.InventoryItem(context.Background(), item.ID)
	if got.Quantity != 2 {
		t.Fatalf("quantity = %d, want unchanged 2", got.Quantity)
	}
	if len(s.store.Usage()) != 0 {
		t.Fatal("usage recorded for rejected request")
	}
	var body struct {
		Available int `json:"available"`
	}
	decode(t, w, &body)
	if body.Available != 2 {
		t.Fatalf("available = %d, want 2", body.Available)
	}
}

// staleItemStore serves an outdated quantity from the unlocked read, as
// when another request spends stock between the lookup and the usage
type staleItemStore struct {
	*store.MemoryStore
	stale int
}

func (s staleItemStore) InventoryItem(ctx context.Context, id uuid.UUID) (*models.InventoryItem, error) {
	item, err := s.MemoryStore.InventoryItem(ctx, id)
	if err != nil {
		return nil, err
	}
	item.Quantity = s.stale
	return item, nil
}

func TestRecordUsageConflictReportsLockedQuantity(t *testing.T) {
	s := newTestServer(t, true, models.Permissions{})
	item := s.store.PutItem(models.InventoryItem{WorkspaceID: s.ws.ID, Name: "Masks", Quantity: 3, LowStockThreshold: 1})
	s.h.Store = staleItemStore{MemoryStore: s.store, stale: 40}

	w := s.do(t, http.MethodPost, s.wsPath("/inventory/"+item.ID.String()+"/usage"), gin.H{"quantity_used": 10})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 (%s)", w.Code, w.Body)
	}
	var body struct {
		Available int `json:"available"`
	}
	decode(t, w, &body)
	if body.Available != 3 {
		t.Fatalf("available = %d, want the locked quantity 3", body.Available)
	}
}

func TestRecordUsageValidation(t *testing.T) {
	s := newTestServer(t, true, models.Permissions{})
	other := s.store.PutItem(models.InventoryItem{WorkspaceID: uuid.New(), Name: "Foreign", Quantity: 5})
	mine := s.store.PutItem(models.InventoryItem{WorkspaceID: s.ws.ID, Name: "Gauze", Quantity: 5})

	tests := []struct {
		name string
		path string
		body interface{}
		want int
	}{
		{"other workspace item", "/inventory/" + other.ID.String() + "/usage", gin.H{"quantity_used": 1}, http.StatusNotFound},
		{"unknown item", "/inventory/" + uuid.NewString() + "/usage", gin.H{"quantity_used": 1}, http.StatusNotFound},
		{"malformed id", "/inventory/nope/usage", gin.H{"quantity_used": 1}, http.StatusBadRequest},
		{"zero quantity", "/inventory/" + mine.ID.String() + "/usage", gin.H{"quantity_used": 0}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := s.do(t, http.MethodPost, s.wsPath(tt.path), tt.body); w.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.want, w.Body)
			}
		})
	}
}

func TestWorkspaceAccess(t *testing.T) {
	staff := newTestServer(t, false, models.Permissions{Inbox: true})

	if w := staff.do(t, http.MethodGet, staff.wsPath("/alerts"), nil); w.Code != http.StatusOK {
		t.Fatalf("member alerts: status = %d", w.Code)
	}
	if w := staff.do(t, http.MethodPost, staff.wsPath("/inventory/"+uuid.NewString()+"/usage"), gin.H{"quantity_used": 1}); w.Code != http.StatusForbidden {
		t.Fatalf("staff without inventory: status = %d, want 403", w.Code)
	}
	if w := staff.do(t, http.MethodGet, staff.wsPath("/notifications/status"), nil); w.Code != http.StatusForbidden {
		t.Fatalf("owner-only route: status = %d, want 403", w.Code)
	}
	if w := staff.do(t, http.MethodGet, "/workspaces/"+uuid.NewString()+"/alerts", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown workspace: status = %d, want 404", w.Code)
	}

	staff.token = ""
	if w := staff.do(t, http.MethodGet, staff.wsPath("/alerts"), nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d, want 401", w.Code)
	}
}

func TestMarkAlertRead(t *testing.T) {
	s := newTestServer(t, true, models.Permissions{})
	alert := &models.Alert{WorkspaceID: s.ws.ID, Type: models.AlertLowStock, Title: "Low", Message: "low", Link: "/x"}
	if _, err := s.store.CreateUnreadAlert(context.Background(), alert); err != nil {
		t.Fatal(err)
	}

	if w := s.do(t, http.MethodPost, s.wsPath("/alerts/"+alert.ID.String()+"/read"), nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body)
	}
	var unread []models.Alert
	decode(t, s.do(t, http.MethodGet, s.wsPath("/alerts?unread=true"), nil), &unread)
	if len(unread) != 0 {
		t.Fatalf("unread = %+v", unread)
	}
	if w := s.do(t, http.MethodPost, s.wsPath("/alerts/"+uuid.NewString()+"/read"), nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown alert: status = %d, want 404", w.Code)
	}
}

func TestNotificationStatusReportsDemoMode(t *testing.T) {
	s := newTestServer(t, true, models.Permissions{})
	var desc notify.Description
	decode(t, s.do(t, http.MethodGet, s.wsPath("/notifications/status"), nil), &desc)
	if !desc.Demo || desc.Channel != notify.ChannelLog {
		t.Fatalf("description = %+v", desc)
	}
}

func TestJobsAdmin(t *testing.T) {
	s := newTestServer(t, true, models.Permissions{})
	runs := 0
	err := s.sched.Start(scheduler.Job{Name: "inventory_checks", Spec: "@every 1h", Run: func(ctx context.Context) error {
		runs++
		return nil
	}})
	if err != nil {
		t.Fatal(err)
	}

	// Self-registered workspace owners are not operators
	if w := s.do(t, http.MethodGet, "/jobs", nil); w.Code != http.StatusForbidden {
		t.Fatalf("owner list: status = %d, want 403", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/jobs/inventory_checks/run", nil); w.Code != http.StatusForbidden || runs != 0 {
		t.Fatalf("owner run: status = %d, runs = %d", w.Code, runs)
	}

	s.signInAs(t, "Ops@Example.com", models.RoleStaff)
	var jobs []scheduler.Info
	decode(t, s.do(t, http.MethodGet, "/jobs", nil), &jobs)
	if len(jobs) != 1 || jobs[0].Name != "inventory_checks" {
		t.Fatalf("jobs = %+v", jobs)
	}
	if w := s.do(t, http.MethodPost, "/jobs/inventory_checks/run", nil); w.Code != http.StatusOK || runs != 1 {
		t.Fatalf("run: status = %d, runs = %d", w.Code, runs)
	}
	if w := s.do(t, http.MethodPost, "/jobs/nope/run", nil); w.Code != http.StatusNotFound {
		t.Fatalf("unknown job: status = %d, want 404", w.Code)
	}

	s.token = ""
	if w := s.do(t, http.MethodGet, "/jobs", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status = %d, want 401", w.Code)
	}
}

func TestTelegramWebhookSecret(t *testing.T) {
	s := newTestServer(t, true, models.Permissions{})
	update := []byte(`{"update_id":1,"message":{"message_id":1,"text":"/start","chat":{"id":123456789,"type":"private"}}}`)

	post := func(secret string) int {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/telegram", bytes.NewReader(update))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Telegram-Bot-Api-Secret-Token", secret)
		w := httptest.NewRecorder()
		s.router.ServeHTTP(w, req)
		return w.Code
	}
	if code := post("wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: status = %d", code)
	}
	if code := post("hook-secret"); code != http.StatusOK {
		t.Fatalf("valid secret: status = %d", code)
	}
}

func TestMembershipCan(t *testing.T) {
	staff := Membership{Permissions: models.Permissions{Bookings: true}}
	tests := []struct {
		section Section
		want    bool
	}{
		{SectionAny, true},
		{SectionBookings, true},
		{SectionInventory, false},
		{SectionOwner, false},
	}
	for _, tt := range tests {
		if got := staff.Can(tt.section); got != tt.want {
			t.Errorf("Can(%q) = %v, want %v", tt.section, got, tt.want)
		}
	}
	if !(Membership{Owner: true}).Can(SectionOwner) {
		t.Error("owner denied owner section")
	}
}
