package scheduler

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler() *Scheduler {
	return New(zerolog.New(io.Discard), Options{JobTimeout: time.Second})
}

func noop(context.Context) error { return nil }

func testJobs() []Job {
	return []Job{
		{Name: "booking_reminders", Spec: "0 10 * * *", Run: noop},
		{Name: "form_reminders", Spec: "0 14 * * *", Run: noop},
		{Name: "inventory_checks", Spec: "0 */6 * * *", Run: noop},
	}
}

func TestStartTwiceRegistersEachJobOnce(t *testing.T) {
	s := newTestScheduler()
	defer s.Stop(context.Background())

	if err := s.Start(testJobs()...); err != nil {
		t.Fatalf("first Start: %v", err)
	}
	if err := s.Start(testJobs()...); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if n := s.Entries(); n != 3 {
		t.Fatalf("cron entries = %d, want 3", n)
	}

	jobs := s.Jobs()
	if len(jobs) != 3 {
		t.Fatalf("jobs = %d, want 3", len(jobs))
	}
	if jobs[0].Name != "booking_reminders" || jobs[0].Next.IsZero() {
		t.Fatalf("first job = %+v", jobs[0])
	}
}

func TestStopIsIdempotent(t *testing.T) {
	s := newTestScheduler()
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop before Start: %v", err)
	}
	if err := s.Start(testJobs()...); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if err := s.Stop(context.Background()); err != nil {
			t.Fatalf("Stop #%d: %v", i+1, err)
		}
	}
}

func TestRestartKeepsOneEntryPerJob(t *testing.T) {
	s := newTestScheduler()
	s.Start(testJobs()...)
	s.Stop(context.Background())
	if err := s.Start(testJobs()...); err != nil {
		t.Fatal(err)
	}
	defer s.Stop(context.Background())
	if n := s.Entries(); n != 3 {
		t.Fatalf("cron entries after restart = %d, want 3", n)
	}
}

func TestStartRejectsInvalidSpec(t *testing.T) {
	s := newTestScheduler()
	err := s.Start(Job{Name: "bad", Spec: "every tuesday", Run: noop})
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("Start with invalid spec = %v", err)
	}
	if n := s.Entries(); n != 0 {
		t.Fatalf("entries after rejected Start = %d", n)
	}
}

func TestRunNowUnknownJob(t *testing.T) {
	s := newTestScheduler()
	if err := s.RunNow(context.Background(), "missing"); !errors.Is(err, ErrUnknownJob) {
		t.Fatalf("RunNow = %v, want ErrUnknownJob", err)
	}
}

func TestRunNowRecoversPanics(t *testing.T) {
	s := newTestScheduler()
	calls := 0
	s.Start(Job{Name: "flaky", Spec: "@daily", Run: func(context.Context) error {
		calls++
		if calls == 1 {
			panic("boom")
		}
		return nil
	}})
	defer s.Stop(context.Background())

	err := s.RunNow(context.Background(), "flaky")
	if err == nil || !strings.Contains(err.Error(), "panicked") {
		t.Fatalf("first run = %v, want panic error", err)
	}
	if got := s.Jobs()[0].LastError; !strings.Contains(got, "boom") {
		t.Fatalf("LastError = %q", got)
	}
	if err := s.RunNow(context.Background(), "flaky"); err != nil {
		t.Fatalf("second run = %v", err)
	}
	if got := s.Jobs()[0].LastError; got != "" {
		t.Fatalf("LastError after success = %q", got)
	}
}

func TestScheduledPanicKeepsCronRunning(t *testing.T) {
	s := newTestScheduler()
	var calls atomic.Int32
	err := s.Start(Job{Name: "flaky", Spec: "* * * * * *", Run: func(context.Context) error {
		if calls.Add(1) == 1 {
			panic("boom")
		}
		return nil
	}})
	if err != nil {
		t.Fatal(err)
	}
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3500 * time.Millisecond)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if n := calls.Load(); n < 2 {
		t.Fatalf("cron fired %d times after a panic, want at least 2", n)
	}
}

func TestRunNowSkipsOverlappingRun(t *testing.T) {
	s := newTestScheduler()
	started := make(chan struct{})
	release := make(chan struct{})
	s.Start(Job{Name: "slow", Spec: "@hourly", Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}})
	defer s.Stop(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.RunNow(context.Background(), "slow") }()
	<-started

	if err := s.RunNow(context.Background(), "slow"); !errors.Is(err, ErrJobRunning) {
		t.Fatalf("overlapping RunNow = %v, want ErrJobRunning", err)
	}
	if !s.Jobs()[0].Running {
		t.Fatal("job not reported as running")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first run = %v", err)
	}
}

func TestRunNowAppliesTimeout(t *testing.T) {
	s := New(zerolog.New(io.Discard), Options{JobTimeout: 20 * time.Millisecond})
	s.Start(Job{Name: "wait", Spec: "@daily", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	defer s.Stop(context.Background())

	if err := s.RunNow(context.Background(), "wait"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RunNow = %v, want deadline exceeded", err)
	}
}
