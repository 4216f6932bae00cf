package automation

import (
	"context"

	"careops/internal/scheduler"
)

// Job names
const (
	JobBookingReminders = "booking_reminders"
	JobFormReminders    = "form_reminders"
	JobInventoryChecks  = "inventory_checks"
)

// Schedules holds the cron spec of each job
type Schedules struct {
	BookingReminders string
	FormReminders    string
	InventoryChecks  string
}

// DefaultSchedules runs booking reminders at 10:00, form reminders at
// 14:00 and inventory checks every six hours
var DefaultSchedules = Schedules{
	BookingReminders: "0 10 * * *",
	FormReminders:    "0 14 * * *",
	InventoryChecks:  "0 */6 * * *",
}

// Jobs returns the engine's sweeps as scheduler jobs
func (e *Engine) Jobs(s Schedules) []scheduler.Job {
	return []scheduler.Job{
		{Name: JobBookingReminders, Spec: or(s.BookingReminders, DefaultSchedules.BookingReminders), Run: func(ctx context.Context) error {
			_, err := e.RunBookingReminders(ctx)
			return err
		}},
		{Name: JobFormReminders, Spec: or(s.FormReminders, DefaultSchedules.FormReminders), Run: func(ctx context.Context) error {
			_, err := e.RunFormReminders(ctx)
			return err
		}},
		{Name: JobInventoryChecks, Spec: or(s.InventoryChecks, DefaultSchedules.InventoryChecks), Run: func(ctx context.Context) error {
			_, err := e.CheckLowStockItems(ctx)
			return err
		}},
	}
}

func or(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
