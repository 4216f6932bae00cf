package automation

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"careops/internal/clock"
	"careops/internal/models"
	"careops/internal/notify"
	"careops/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// recorder is a Notifier that records sends and fails for chosen addresses
type recorder struct {
	mu     sync.Mutex
	sent   []notify.Recipient
	failOn map[string]bool
	demo   bool
}

func (r *recorder) Channel() notify.Channel { return notify.ChannelEmail }

func (r *recorder) ResolveRecipient(t notify.Target) (notify.Recipient, bool) {
	if t.Email == "" {
		return notify.Recipient{}, false
	}
	return notify.Recipient{Channel: notify.ChannelEmail, Name: t.Name, Address: t.Email}, true
}

func (r *recorder) Send(ctx context.Context, to notify.Recipient, msg notify.Message) notify.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[to.Address] {
		return notify.Result{Status: notify.StatusFailed, Reason: "smtp down"}
	}
	r.sent = append(r.sent, to)
	if r.demo {
		return notify.Result{Status: notify.StatusSimulated, Demo: true}
	}
	return notify.Result{Status: notify.StatusSent}
}

func (r *recorder) Describe() notify.Description {
	return notify.Description{Channel: notify.ChannelEmail}
}

func (r *recorder) count(addr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sent {
		if s.Address == addr {
			n++
		}
	}
	return n
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type staticSource struct{ n notify.Notifier }

func (s staticSource) For(ctx context.Context, workspaceID uuid.UUID) notify.Notifier { return s.n }

type fixture struct {
	store *store.MemoryStore
	clock *clock.Fake
	rec   *recorder
	eng   *Engine
	ws    models.Workspace
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemoryStore()
	clk := clock.NewFake(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC))
	rec := &recorder{failOn: map[string]bool{}}
	ws := st.PutWorkspace(models.Workspace{BusinessName: "Bright Smile Dental", Timezone: "UTC"})
	eng := NewEngine(st, staticSource{rec}, clk, zerolog.New(io.Discard), Options{FrontendURL: "https://app.example.com/"})
	return &fixture{store: st, clock: clk, rec: rec, eng: eng, ws: ws}
}

func (f *fixture) contact(email string) *uuid.UUID {
	c := f.store.PutContact(models.Contact{WorkspaceID: f.ws.ID, Name: "Pat", Email: email})
	return &c.ID
}

func (f *fixture) booking(email string, in time.Duration) models.Booking {
	return f.store.PutBooking(models.Booking{
		WorkspaceID: f.ws.ID,
		ContactID:   f.contact(email),
		ScheduledAt: f.clock.Now().Add(in),
	})
}

func TestBookingReminderSentAtMostOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.booking("pat@example.com", 30*time.Hour)

	report, err := f.eng.RunBookingReminders(ctx)
	if err != nil {
		t.Fatalf("first sweep: %v", err)
	}
	if report.Sent != 1 || f.rec.count("pat@example.com") != 1 {
		t.Fatalf("first sweep report = %+v, sends = %d", report, f.rec.total())
	}
	got, _ := f.store.Booking(ctx, b.ID)
	if !got.ReminderSent {
		t.Fatal("reminder_sent not set")
	}

	if _, err := f.eng.RunBookingReminders(ctx); err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n := f.rec.count("pat@example.com"); n != 1 {
		t.Fatalf("sends after second sweep = %d, want 1", n)
	}
}

func TestBookingReminderWindow(t *testing.T) {
	f := newFixture(t)
	f.booking("edge-start@example.com", 24*time.Hour)
	f.booking("edge-end@example.com", 48*time.Hour)
	f.booking("soon@example.com", 2*time.Hour)
	cancelled := f.booking("cancelled@example.com", 30*time.Hour)
	cancelled.Status = models.BookingCancelled
	f.store.PutBooking(cancelled)

	if _, err := f.eng.RunBookingReminders(context.Background()); err != nil {
		t.Fatal(err)
	}
	if f.rec.count("edge-start@example.com") != 1 {
		t.Fatal("booking exactly 24h ahead was not reminded")
	}
	for _, addr := range []string{"edge-end@example.com", "soon@example.com", "cancelled@example.com"} {
		if f.rec.count(addr) != 0 {
			t.Fatalf("%s was reminded", addr)
		}
	}
}

func TestBookingReminderFailureIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.booking("broken@example.com", 25*time.Hour)
	second := f.booking("ok@example.com", 26*time.Hour)
	f.rec.failOn["broken@example.com"] = true

	report, err := f.eng.RunBookingReminders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 || report.Sent != 1 {
		t.Fatalf("report = %+v", report)
	}
	if b, _ := f.store.Booking(ctx, first.ID); b.ReminderSent {
		t.Fatal("failed booking was marked reminded")
	}
	if b, _ := f.store.Booking(ctx, second.ID); !b.ReminderSent {
		t.Fatal("successful booking was not marked reminded")
	}

	// The failed one is retried by the next sweep
	delete(f.rec.failOn, "broken@example.com")
	f.eng.RunBookingReminders(ctx)
	if b, _ := f.store.Booking(ctx, first.ID); !b.ReminderSent {
		t.Fatal("failed booking not retried")
	}
}

func TestBookingReminderUnreachableContactIsSkipped(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.booking("", 30*time.Hour)
	noContact := f.store.PutBooking(models.Booking{WorkspaceID: f.ws.ID, ScheduledAt: f.clock.Now().Add(30 * time.Hour)})

	report, err := f.eng.RunBookingReminders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Skipped != 2 || report.Failed != 0 {
		t.Fatalf("report = %+v", report)
	}
	for _, id := range []uuid.UUID{b.ID, noContact.ID} {
		if got, _ := f.store.Booking(ctx, id); got.ReminderSent {
			t.Fatalf("skipped booking %s was marked", id)
		}
	}
}

func TestDemoSendsCountAsDelivered(t *testing.T) {
	f := newFixture(t)
	f.rec.demo = true
	b := f.booking("pat@example.com", 30*time.Hour)

	report, _ := f.eng.RunBookingReminders(context.Background())
	if report.Sent != 1 || report.Demo != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got, _ := f.store.Booking(context.Background(), b.ID); !got.ReminderSent {
		t.Fatal("demo send did not mark the booking")
	}
}

func (f *fixture) submission(email string) models.FormSubmission {
	b := f.booking(email, -time.Hour)
	form := f.store.PutForm(models.PostBookingForm{WorkspaceID: f.ws.ID, Name: "Patient intake"})
	return f.store.PutSubmission(models.FormSubmission{FormID: form.ID, BookingID: b.ID})
}

func TestFormReminderRateLimited(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submission("pat@example.com")

	f.eng.RunFormReminders(ctx)
	if n := f.rec.count("pat@example.com"); n != 1 {
		t.Fatalf("sends after first sweep = %d", n)
	}
	got, _ := f.store.Submission(ctx, sub.ID)
	if got.ReminderSentAt == nil || !got.ReminderSentAt.Equal(f.clock.Now()) {
		t.Fatalf("reminder_sent_at = %v, want %v", got.ReminderSentAt, f.clock.Now())
	}

	f.clock.Advance(23 * time.Hour)
	f.eng.RunFormReminders(ctx)
	if n := f.rec.count("pat@example.com"); n != 1 {
		t.Fatalf("sends within 24h = %d, want 1", n)
	}

	f.clock.Advance(2 * time.Hour)
	f.eng.RunFormReminders(ctx)
	if n := f.rec.count("pat@example.com"); n != 2 {
		t.Fatalf("sends after 24h = %d, want 2", n)
	}
}

func TestFormReminderSkipsOrphansAndCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	orphan := f.store.PutSubmission(models.FormSubmission{FormID: uuid.New(), BookingID: uuid.New()})
	done := f.submission("done@example.com")
	done.Status = models.SubmissionCompleted
	f.store.PutSubmission(done)

	report, err := f.eng.RunFormReminders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Scanned != 1 || report.Skipped != 1 || report.Failed != 0 || f.rec.total() != 0 {
		t.Fatalf("report = %+v, sends = %d", report, f.rec.total())
	}
	if got, _ := f.store.Submission(ctx, orphan.ID); got.ReminderSentAt != nil {
		t.Fatal("orphaned submission was marked")
	}
}

func TestFormReminderFailureLeavesSubmissionEligible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submission("broken@example.com")
	f.rec.failOn["broken@example.com"] = true

	report, _ := f.eng.RunFormReminders(ctx)
	if report.Failed != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got, _ := f.store.Submission(ctx, sub.ID); got.ReminderSentAt != nil {
		t.Fatal("failed reminder stamped reminder_sent_at")
	}
}

// racingStore stamps the submission on behalf of another sweep right
// before the engine's own conditional mark
type racingStore struct {
	*store.MemoryStore
}

func (r racingStore) MarkSubmissionReminded(ctx context.Context, id uuid.UUID, at, staleBefore time.Time) (bool, error) {
	if _, err := r.MemoryStore.MarkSubmissionReminded(ctx, id, at, staleBefore); err != nil {
		return false, err
	}
	return r.MemoryStore.MarkSubmissionReminded(ctx, id, at, staleBefore)
}

func TestFormReminderLogsConcurrentMark(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.submission("pat@example.com")

	var logs bytes.Buffer
	eng := NewEngine(racingStore{f.store}, staticSource{f.rec}, f.clock, zerolog.New(&logs), Options{})
	report, err := eng.RunFormReminders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Sent != 1 || f.rec.count("pat@example.com") != 1 {
		t.Fatalf("report = %+v, sends = %d", report, f.rec.total())
	}
	if !strings.Contains(logs.String(), "marked reminded by a concurrent run") {
		t.Fatalf("lost mark not logged: %s", logs.String())
	}
	if got, _ := f.store.Submission(ctx, sub.ID); got.ReminderSentAt == nil {
		t.Fatal("submission not stamped")
	}
}

func (f *fixture) item(qty, threshold int, vendor string) models.InventoryItem {
	return f.store.PutItem(models.InventoryItem{
		WorkspaceID:       f.ws.ID,
		Name:              "Nitrile gloves",
		Quantity:          qty,
		LowStockThreshold: threshold,
		Unit:              "boxes",
		VendorEmail:       vendor,
	})
}

func unreadAlerts(t *testing.T, f *fixture) []models.Alert {
	t.Helper()
	alerts, err := f.store.Alerts(context.Background(), f.ws.ID, true)
	if err != nil {
		t.Fatal(err)
	}
	return alerts
}

func TestLowStockDedup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	item := f.item(5, 10, "")
	f.item(50, 10, "")

	report, _ := f.eng.CheckLowStockItems(ctx)
	if report.Scanned != 1 || report.Alerts != 1 {
		t.Fatalf("first sweep report = %+v", report)
	}
	alerts := unreadAlerts(t, f)
	if len(alerts) != 1 {
		t.Fatalf("unread alerts = %d, want 1", len(alerts))
	}
	a := alerts[0]
	if a.Link != LowStockKey(item.ID) || a.Priority != models.PriorityHigh || a.Type != models.AlertLowStock {
		t.Fatalf("alert = %+v", a)
	}

	report, _ = f.eng.CheckLowStockItems(ctx)
	if report.Alerts != 0 || report.Skipped != 1 || len(unreadAlerts(t, f)) != 1 {
		t.Fatalf("second sweep created a duplicate: %+v", report)
	}

	if err := f.store.MarkAlertRead(ctx, f.ws.ID, a.ID); err != nil {
		t.Fatal(err)
	}
	f.eng.CheckLowStockItems(ctx)
	if n := len(unreadAlerts(t, f)); n != 1 {
		t.Fatalf("unread alerts after read + sweep = %d, want 1", n)
	}
}

func TestLowStockNotifiesVendorOnlyOnNewAlert(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.item(2, 10, "vendor@example.com")

	f.eng.CheckLowStockItems(ctx)
	f.eng.CheckLowStockItems(ctx)
	if n := f.rec.count("vendor@example.com"); n != 1 {
		t.Fatalf("vendor notifications = %d, want 1", n)
	}
}

func TestLowStockAlertSurvivesFailedNotification(t *testing.T) {
	f := newFixture(t)
	item := f.item(1, 10, "vendor@example.com")
	f.rec.failOn["vendor@example.com"] = true

	out, err := f.eng.CheckItem(context.Background(), item)
	if err != nil {
		t.Fatal(err)
	}
	if !out.Created || out.Notification == nil || out.Notification.OK() {
		t.Fatalf("outcome = %+v", out)
	}
	if n := len(unreadAlerts(t, f)); n != 1 {
		t.Fatalf("unread alerts = %d, want 1", n)
	}
}

func TestUsageThenSweepRaisesSingleAlert(t *testing.T) {
	for _, sweepFirst := range []bool{false, true} {
		f := newFixture(t)
		ctx := context.Background()
		item := f.item(8, 5, "")

		updated, err := f.store.RecordUsage(ctx, &models.InventoryUsage{ItemID: item.ID, QuantityUsed: 3})
		if err != nil {
			t.Fatal(err)
		}
		if updated.Quantity != 5 {
			t.Fatalf("quantity = %d, want 5", updated.Quantity)
		}

		if sweepFirst {
			f.eng.CheckLowStockItems(ctx)
			f.eng.CheckItem(ctx, *updated)
		} else {
			f.eng.CheckItem(ctx, *updated)
			f.eng.CheckLowStockItems(ctx)
		}
		if n := len(unreadAlerts(t, f)); n != 1 {
			t.Fatalf("sweepFirst=%v: unread alerts = %d, want 1", sweepFirst, n)
		}
	}
}

func TestConcurrentInlineChecksRaiseSingleAlert(t *testing.T) {
	f := newFixture(t)
	item := f.item(3, 5, "")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.eng.CheckItem(context.Background(), item)
		}()
	}
	wg.Wait()
	if n := len(unreadAlerts(t, f)); n != 1 {
		t.Fatalf("unread alerts = %d, want 1", n)
	}
}

func TestCheckItemAboveThreshold(t *testing.T) {
	f := newFixture(t)
	out, err := f.eng.CheckItem(context.Background(), f.item(11, 10, "vendor@example.com"))
	if err != nil || out.LowStock || out.Created {
		t.Fatalf("outcome = %+v, %v", out, err)
	}
}

func TestJobsUseDefaultSchedules(t *testing.T) {
	f := newFixture(t)
	jobs := f.eng.Jobs(Schedules{FormReminders: "30 9 * * *"})
	want := map[string]string{
		JobBookingReminders: "0 10 * * *",
		JobFormReminders:    "30 9 * * *",
		JobInventoryChecks:  "0 */6 * * *",
	}
	if len(jobs) != 3 {
		t.Fatalf("jobs = %d", len(jobs))
	}
	for _, j := range jobs {
		if want[j.Name] != j.Spec {
			t.Fatalf("job %s spec = %q, want %q", j.Name, j.Spec, want[j.Name])
		}
		if err := j.Run(context.Background()); err != nil {
			t.Fatalf("job %s: %v", j.Name, err)
		}
	}
}
