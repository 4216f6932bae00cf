// Package automation holds the background sweeps: booking reminders,
// form reminders and low-stock alerts. The same Engine serves the
// scheduler and the request handlers that trigger checks inline.
package automation

import (
	"context"
	"errors"
	"strings"
	"time"

	"careops/internal/clock"
	"careops/internal/notify"
	"careops/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ReminderLead is how far ahead the booking reminder window opens
	ReminderLead = 24 * time.Hour
	// ReminderWindow is the width of the booking reminder window
	ReminderWindow = 24 * time.Hour
	// FormReminderInterval is the minimum gap between two form reminders
	FormReminderInterval = 24 * time.Hour
)

// NotifierSource resolves the notifier for a workspace
type NotifierSource interface {
	For(ctx context.Context, workspaceID uuid.UUID) notify.Notifier
}

// Options tunes an Engine
type Options struct {
	// FrontendURL is used to build links in form reminders
	FrontendURL string
}

// Engine runs reminder and alert sweeps against a Store
type Engine struct {
	store       store.Store
	notifiers   NotifierSource
	clock       clock.Clock
	log         zerolog.Logger
	tracer      trace.Tracer
	frontendURL string
}

// NewEngine creates an engine. A nil clock means the system clock.
func NewEngine(st store.Store, notifiers NotifierSource, clk clock.Clock, log zerolog.Logger, opts Options) *Engine {
	if clk == nil {
		clk = clock.System{}
	}
	return &Engine{
		store:       st,
		notifiers:   notifiers,
		clock:       clk,
		log:         log,
		tracer:      otel.Tracer("careops/automation"),
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
	}
}

// Report summarizes one sweep
type Report struct {
	Job      string        `json:"job"`
	Scanned  int           `json:"scanned"`
	Sent     int           `json:"sent"`
	Alerts   int           `json:"alerts_created"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Demo     int           `json:"demo_sends"`
	Started  time.Time     `json:"started_at"`
	Duration time.Duration `json:"duration"`
}

// outcome is the per-item result inside a sweep
type outcome int

const (
	outcomeSent outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (r *Report) add(o outcome) {
	switch o {
	case outcomeSent:
		r.Sent++
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
	}
}

func (r Report) log(l zerolog.Logger) {
	ev := l.Info()
	if r.Failed > 0 {
		ev = l.Warn()
	}
	ev.Str("job", r.Job).
		Int("scanned", r.Scanned).
		Int("sent", r.Sent).
		Int("alerts", r.Alerts).
		Int("skipped", r.Skipped).
		Int("failed", r.Failed).
		Int("demo", r.Demo).
		Dur("duration", r.Duration).
		Msg("sweep finished")
}

// startSweep opens the sweep span and report
func (e *Engine) startSweep(ctx context.Context, job string) (context.Context, trace.Span, *Report) {
	ctx, span := e.tracer.Start(ctx, "automation."+job)
	return ctx, span, &Report{Job: job, Started: e.clock.Now()}
}

func (e *Engine) finishSweep(span trace.Span, r *Report, err error) {
	r.Duration = e.clock.Now().Sub(r.Started)
	span.SetAttributes(
		attribute.Int("sweep.scanned", r.Scanned),
		attribute.Int("sweep.sent", r.Sent),
		attribute.Int("sweep.failed", r.Failed),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
	r.log(e.log)
}

// send delivers one message and records it on a child span
func (e *Engine) send(ctx context.Context, n notify.Notifier, to notify.Recipient, msg notify.Message, kind string) notify.Result {
	ctx, span := e.tracer.Start(ctx, "notify.send", trace.WithAttributes(
		attribute.String("notify.kind", kind),
		attribute.String("notify.channel", string(n.Channel())),
	))
	defer span.End()

	res := n.Send(ctx, to, msg)
	span.SetAttributes(attribute.String("notify.status", string(res.Status)), attribute.Bool("notify.demo", res.Demo))
	if !res.OK() {
		span.SetStatus(codes.Error, res.Reason)
	}
	return res
}

// missing reports whether err means the related row is gone
func missing(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
