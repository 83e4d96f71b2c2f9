// Package scheduler fires the sync engine on a cron schedule and on
// explicit manual triggers. Both paths share the engine's single-flight
// guard.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/podlens/podlens/internal/ingest"
	"github.com/podlens/podlens/internal/notify"
	"github.com/robfig/cron/v3"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler drives periodic and on-demand sync passes.
type Scheduler struct {
	engine    *ingest.Engine
	sched     cron.Schedule
	tables    []string
	notifiers []notify.Notifier
	startup   bool
	out       io.Writer
	manual    chan struct{}
}

// Opts holds parameters for creating a Scheduler.
type Opts struct {
	Engine *ingest.Engine
	// Schedule is a 5-field cron expression.
	Schedule string
	// Tables restricts scheduled passes; empty means all tables.
	Tables    []string
	Notifiers []notify.Notifier
	// StartupSync runs one pass before the first scheduled fire.
	StartupSync bool
	Out         io.Writer
}

// New creates a Scheduler.
func New(opts Opts) (*Scheduler, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("scheduler: engine is required")
	}
	sched, err := cronParser.Parse(opts.Schedule)
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse schedule %q: %w", opts.Schedule, err)
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Scheduler{
		engine:    opts.Engine,
		sched:     sched,
		tables:    opts.Tables,
		notifiers: opts.Notifiers,
		startup:   opts.StartupSync,
		out:       opts.Out,
		manual:    make(chan struct{}, 1),
	}, nil
}

// Trigger requests an out-of-band pass. Returns false when a manual request
// is already queued.
func (s *Scheduler) Trigger() bool {
	select {
	case s.manual <- struct{}{}:
		return true
	default:
		return false
	}
}

// Run loops until ctx is cancelled, firing passes on schedule and on
// manual triggers.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.startup {
		s.fire(ctx, ingest.TriggerStartup)
	}

	for {
		next := s.sched.Next(time.Now())
		timer := time.NewTimer(time.Until(next))
		fmt.Fprintf(s.out, "next scheduled sync at %s\n", next.Format(time.RFC3339))

		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
			s.fire(ctx, ingest.TriggerSchedule)
		case <-s.manual:
			timer.Stop()
			s.fire(ctx, ingest.TriggerManual)
		}
	}
}

// fire runs one pass and broadcasts its digest. A pass already in flight is
// skipped, not queued.
func (s *Scheduler) fire(ctx context.Context, trigger ingest.Trigger) {
	res, err := s.engine.Run(ctx, s.tables, trigger)
	if err != nil {
		if errors.Is(err, ingest.ErrSyncInFlight) {
			log.Printf("scheduler: %s sync skipped, pass in flight", trigger)
			return
		}
		log.Printf("scheduler: %s sync: %v", trigger, err)
		return
	}
	notify.Broadcast(ctx, s.notifiers, res)
}
