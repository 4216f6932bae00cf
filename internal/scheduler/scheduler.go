// Package scheduler runs named background jobs on cron schedules.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"careops/internal/logging"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

var (
	ErrUnknownJob = errors.New("unknown job")
	ErrJobRunning = errors.New("job is already running")
)

// Job is a named unit of scheduled work
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Info describes a registered job
type Info struct {
	Name         string        `json:"name"`
	Spec         string        `json:"spec"`
	Next         time.Time     `json:"next_run"`
	Prev         time.Time     `json:"prev_run,omitempty"`
	Running      bool          `json:"running"`
	LastError    string        `json:"last_error,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
}

// Options configures a Scheduler
type Options struct {
	Location   *time.Location
	JobTimeout time.Duration
}

type entry struct {
	job     Job
	id      cron.EntryID
	running atomic.Bool

	lastErr      string
	lastDuration time.Duration
}

// Scheduler owns one cron instance. Start and Stop may each be called
// any number of times.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	parser  cron.Parser
	entries map[string]*entry
	log     zerolog.Logger
	timeout time.Duration
	started bool

	runCtx    context.Context
	runCancel context.CancelFunc
}

// New creates a stopped scheduler
func New(log zerolog.Logger, opts Options) *Scheduler {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	timeout := opts.JobTimeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	// SecondOptional allows both 5-field and 6-field (with seconds) cron specs.
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	cronLog := logging.Cron(log)

	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithParser(parser),
			cron.WithLogger(cronLog),
			cron.WithChain(cron.Recover(cronLog)),
		),
		parser:  parser,
		entries: make(map[string]*entry),
		log:     log,
		timeout: timeout,
	}
}

// Start registers jobs, replacing any job already registered under the
// same name, and starts the cron loop if it is not running
func (s *Scheduler) Start(jobs ...Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range jobs {
		if _, err := s.parser.Parse(job.Spec); err != nil {
			return fmt.Errorf("invalid schedule %q for job %s: %w", job.Spec, job.Name, err)
		}
	}

	for _, job := range jobs {
		e, ok := s.entries[job.Name]
		if ok {
			s.cron.Remove(e.id)
		} else {
			e = &entry{}
			s.entries[job.Name] = e
		}
		e.job = job

		name := job.Name
		id, err := s.cron.AddFunc(job.Spec, func() {
			s.mu.Lock()
			ctx := s.runCtx
			s.mu.Unlock()
			if ctx == nil {
				return
			}
			if err := s.run(ctx, name, "schedule"); err != nil && !errors.Is(err, ErrJobRunning) {
				s.log.Error().Err(err).Str("job", name).Msg("scheduled job failed")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.Name, err)
		}
		e.id = id
	}

	if !s.started {
		s.runCtx, s.runCancel = context.WithCancel(context.Background())
		s.cron.Start()
		s.started = true
		s.log.Info().Int("jobs", len(s.entries)).Str("tz", s.cron.Location().String()).Msg("scheduler started")
	}
	return nil
}

// Stop halts the cron loop and waits for running jobs until ctx is done.
// Jobs still running when ctx expires are cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.runCancel
	s.runCtx, s.runCancel = nil, nil
	stopped := s.cron.Stop()
	s.mu.Unlock()

	defer cancel()
	select {
	case <-stopped.Done():
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.log.Warn().Msg("scheduler stop timed out, cancelling running jobs")
		return ctx.Err()
	}
}

// RunNow runs a job synchronously outside its schedule. It refuses to
// start a second concurrent run of the same job.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	return s.run(ctx, name, "manual")
}

func (s *Scheduler) run(ctx context.Context, name, trigger string) (err error) {
	s.mu.Lock()
	e, ok := s.entries[name]
	var job Job
	if ok {
		job = e.job
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	if !e.running.CompareAndSwap(false, true) {
		s.log.Warn().Str("job", name).Str("trigger", trigger).Msg("previous run still in progress, skipping")
		return ErrJobRunning
	}
	defer e.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	log := s.log.With().Str("job", name).Str("trigger", trigger).Logger()
	start := time.Now()
	log.Debug().Msg("job started")

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", name, r)
			log.Error().Str("stack", string(debug.Stack())).Interface("panic", r).Msg("job panicked")
		}
		s.mu.Lock()
		e.lastDuration = time.Since(start)
		e.lastErr = ""
		if err != nil {
			e.lastErr = err.Error()
		}
		s.mu.Unlock()
		log.Debug().Dur("took", time.Since(start)).Msg("job finished")
	}()

	return job.Run(ctx)
}

// Jobs lists registered jobs sorted by name
func (s *Scheduler) Jobs() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Info, 0, len(s.entries))
	for name, e := range s.entries {
		ce := s.cron.Entry(e.id)
		out = append(out, Info{
			Name:         name,
			Spec:         e.job.Spec,
			Next:         ce.Next,
			Prev:         ce.Prev,
			Running:      e.running.Load(),
			LastError:    e.lastErr,
			LastDuration: e.lastDuration,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Entries reports how many cron entries are registered
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}
