package automation

import (
	"context"
	"fmt"
	"time"

	"careops/internal/models"
	"careops/internal/notify"

	"github.com/rs/zerolog"
)

// RunBookingReminders reminds contacts of pending bookings that start
// between 24 and 48 hours from now. Each booking is reminded at most
// once; a failed send leaves it eligible for the next sweep.
func (e *Engine) RunBookingReminders(ctx context.Context) (Report, error) {
	ctx, span, report := e.startSweep(ctx, JobBookingReminders)
	now := report.Started
	from, to := now.Add(ReminderLead), now.Add(ReminderLead+ReminderWindow)

	bookings, err := e.store.DueBookings(ctx, from, to)
	if err != nil {
		e.finishSweep(span, report, err)
		return *report, err
	}
	report.Scanned = len(bookings)

	for _, b := range bookings {
		if ctx.Err() != nil {
			break
		}
		log := e.log.With().Str("booking_id", b.ID.String()).Logger()
		o, demo := e.remindBooking(ctx, b, log)
		report.add(o)
		if demo {
			report.Demo++
		}
	}

	e.finishSweep(span, report, ctx.Err())
	return *report, ctx.Err()
}

func (e *Engine) remindBooking(ctx context.Context, b models.Booking, log zerolog.Logger) (outcome, bool) {
	// Another run may have reminded it since the scan
	fresh, err := e.store.Booking(ctx, b.ID)
	if err != nil {
		if missing(err) {
			return outcomeSkipped, false
		}
		log.Error().Err(err).Msg("failed to reload booking")
		return outcomeFailed, false
	}
	if fresh.ReminderSent || fresh.Status != models.BookingPending {
		return outcomeSkipped, false
	}
	if fresh.ContactID == nil {
		log.Debug().Msg("booking has no contact, skipping reminder")
		return outcomeSkipped, false
	}

	contact, err := e.store.Contact(ctx, *fresh.ContactID)
	if err != nil {
		if missing(err) {
			return outcomeSkipped, false
		}
		log.Error().Err(err).Msg("failed to load contact")
		return outcomeFailed, false
	}
	ws, err := e.store.Workspace(ctx, fresh.WorkspaceID)
	if err != nil {
		if missing(err) {
			return outcomeSkipped, false
		}
		log.Error().Err(err).Msg("failed to load workspace")
		return outcomeFailed, false
	}
	var service *models.ServiceType
	if fresh.ServiceTypeID != nil {
		if service, err = e.store.ServiceType(ctx, *fresh.ServiceTypeID); err != nil && !missing(err) {
			log.Warn().Err(err).Msg("failed to load service type")
		}
	}

	n := e.notifiers.For(ctx, ws.ID)
	to, ok := n.ResolveRecipient(notify.ContactTarget(contact))
	if !ok {
		log.Debug().Str("channel", string(n.Channel())).Msg("contact not reachable, skipping reminder")
		return outcomeSkipped, false
	}

	res := e.send(ctx, n, to, notify.BookingReminder(ws, contact, service, fresh), "booking_reminder")
	if !res.OK() {
		log.Warn().Str("reason", res.Reason).Msg("booking reminder not delivered")
		return outcomeFailed, false
	}

	marked, err := e.store.MarkBookingReminded(ctx, fresh.ID)
	if err != nil {
		log.Error().Err(err).Msg("reminder sent but booking could not be marked")
		return outcomeFailed, res.Demo
	}
	if !marked {
		log.Warn().Msg("booking was marked reminded by a concurrent run")
	}
	log.Info().Str("channel", string(n.Channel())).Bool("demo", res.Demo).Msg("booking reminder sent")
	return outcomeSent, res.Demo
}

// RunFormReminders nudges contacts with pending intake forms. A
// submission is reminded at most once per 24 hours for as long as it
// stays pending.
func (e *Engine) RunFormReminders(ctx context.Context) (Report, error) {
	ctx, span, report := e.startSweep(ctx, JobFormReminders)
	now := report.Started

	subs, err := e.store.PendingSubmissions(ctx, now.Add(-FormReminderInterval))
	if err != nil {
		e.finishSweep(span, report, err)
		return *report, err
	}
	report.Scanned = len(subs)

	for _, sub := range subs {
		if ctx.Err() != nil {
			break
		}
		log := e.log.With().Str("submission_id", sub.ID.String()).Logger()
		o, demo := e.remindSubmission(ctx, sub, now, log)
		report.add(o)
		if demo {
			report.Demo++
		}
	}

	e.finishSweep(span, report, ctx.Err())
	return *report, ctx.Err()
}

func (e *Engine) remindSubmission(ctx context.Context, sub models.FormSubmission, now time.Time, log zerolog.Logger) (outcome, bool) {
	staleBefore := now.Add(-FormReminderInterval)

	fresh, err := e.store.Submission(ctx, sub.ID)
	if err != nil {
		if missing(err) {
			return outcomeSkipped, false
		}
		log.Error().Err(err).Msg("failed to reload submission")
		return outcomeFailed, false
	}
	if fresh.Status != models.SubmissionPending ||
		(fresh.ReminderSentAt != nil && !fresh.ReminderSentAt.Before(staleBefore)) {
		return outcomeSkipped, false
	}

	booking, err := e.store.Booking(ctx, fresh.BookingID)
	if err != nil {
		if missing(err) {
			log.Debug().Msg("submission has no booking, skipping")
			return outcomeSkipped, false
		}
		log.Error().Err(err).Msg("failed to load booking")
		return outcomeFailed, false
	}

	contactID := fresh.ContactID
	if contactID == nil {
		contactID = booking.ContactID
	}
	if contactID == nil {
		return outcomeSkipped, false
	}
	contact, err := e.store.Contact(ctx, *contactID)
	if err != nil {
		if missing(err) {
			return outcomeSkipped, false
		}
		log.Error().Err(err).Msg("failed to load contact")
		return outcomeFailed, false
	}
	ws, err := e.store.Workspace(ctx, booking.WorkspaceID)
	if err != nil {
		if missing(err) {
			return outcomeSkipped, false
		}
		log.Error().Err(err).Msg("failed to load workspace")
		return outcomeFailed, false
	}
	form, err := e.store.Form(ctx, fresh.FormID)
	if err != nil && !missing(err) {
		log.Warn().Err(err).Msg("failed to load form")
	}

	n := e.notifiers.For(ctx, ws.ID)
	to, ok := n.ResolveRecipient(notify.ContactTarget(contact))
	if !ok {
		log.Debug().Str("channel", string(n.Channel())).Msg("contact not reachable, skipping form reminder")
		return outcomeSkipped, false
	}

	res := e.send(ctx, n, to, notify.FormReminder(ws, contact, form, e.formURL(fresh)), "form_reminder")
	if !res.OK() {
		log.Warn().Str("reason", res.Reason).Msg("form reminder not delivered")
		return outcomeFailed, false
	}

	marked, err := e.store.MarkSubmissionReminded(ctx, fresh.ID, now, staleBefore)
	if err != nil {
		log.Error().Err(err).Msg("form reminder sent but submission could not be marked")
		return outcomeFailed, res.Demo
	}
	if !marked {
		log.Warn().Msg("submission was marked reminded by a concurrent run")
	}
	log.Info().Str("channel", string(n.Channel())).Bool("demo", res.Demo).Msg("form reminder sent")
	return outcomeSent, res.Demo
}

func (e *Engine) formURL(sub *models.FormSubmission) string {
	return fmt.Sprintf("%s/forms/%s", e.frontendURL, sub.ID)
}
