// Package ingest implements the warehouse-to-store reconciliation engine.
// Each pass fetches full snapshots, upserts them by natural key, and
// regenerates the derived daily rollups. Running a pass twice against an
// unchanged snapshot leaves the store identical.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/podlens/podlens/internal/timetrack"
	"github.com/podlens/podlens/internal/warehouse"
	"gorm.io/gorm"
)

// Trigger identifies what started a sync pass.
type Trigger string

const (
	TriggerStartup  Trigger = "startup"
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
)

// Synced table names, in dependency order: contributors before tasks
// (current-user references), tasks before reviews (task references).
const (
	TableContributors = "contributors"
	TableTasks        = "tasks"
	TableReviews      = "reviews"
	TableTimeEntries  = "time_entries"
	TableWorkItems    = "work_items"
)

// ErrSyncInFlight is returned when a pass is requested while one is running.
var ErrSyncInFlight = errors.New("ingest: sync already in flight")

// ErrUnknownTable is returned for a table name the engine does not sync.
var ErrUnknownTable = errors.New("ingest: unknown table")

// AllTables returns the synced tables in dependency order.
func AllTables() []string {
	return []string{TableContributors, TableTasks, TableReviews, TableTimeEntries, TableWorkItems}
}

// Source abstracts the warehouse reader, enabling test doubles.
type Source interface {
	Tasks(ctx context.Context, p warehouse.Params) ([]warehouse.TaskRow, error)
	Contributors(ctx context.Context) ([]warehouse.ContributorRow, error)
	Reviews(ctx context.Context, p warehouse.Params) ([]warehouse.ReviewRow, error)
	TimeEntries(ctx context.Context, p warehouse.Params) ([]warehouse.TimeEntryRow, error)
	WorkItems(ctx context.Context, p warehouse.Params) ([]warehouse.WorkItemRow, error)
}

// TimeTracker is the optional direct time-tracking source. Entries from it
// are tagged distinctly from warehouse-sourced hours.
type TimeTracker interface {
	DailyHours(ctx context.Context, from, to time.Time) ([]timetrack.Entry, error)
}

// Statuses for per-table outcomes.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// TableResult is the outcome of one table's sync.
type TableResult struct {
	Table      string `json:"table"`
	Status     string `json:"status"`
	RowsSynced int    `json:"rows_synced"`
	Error      string `json:"error,omitempty"`
}

// Result summarizes one full pass. Per-table failures are carried here,
// never raised as errors from Run.
type Result struct {
	Trigger    Trigger       `json:"trigger"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Tables     []TableResult `json:"tables"`
}

// OK reports whether every table synced successfully.
func (r Result) OK() bool {
	for _, t := range r.Tables {
		if t.Status != StatusSuccess {
			return false
		}
	}
	return len(r.Tables) > 0
}

// Engine orchestrates reconciliation passes. Only one pass runs at a time.
type Engine struct {
	db      *gorm.DB
	src     Source
	tracker TimeTracker
	window  time.Duration
	retry   time.Duration
	out     io.Writer

	mu      sync.Mutex
	running bool

	hookMu sync.Mutex
	hooks  []func(Result)
}

// Opts holds parameters for creating an Engine.
type Opts struct {
	DB      *gorm.DB
	Source  Source
	Tracker TimeTracker // optional
	// Window bounds the derived-stats recompute and time-entry fetch range.
	// Default: 45 days.
	Window time.Duration
	// RetryDelay is the pause before the single transient-error retry.
	RetryDelay time.Duration
	Out        io.Writer
}

// New creates a sync Engine.
func New(opts Opts) (*Engine, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("ingest: db is required")
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("ingest: source is required")
	}
	if opts.Window <= 0 {
		opts.Window = 45 * 24 * time.Hour
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 5 * time.Second
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Engine{
		db:      opts.DB,
		src:     opts.Source,
		tracker: opts.Tracker,
		window:  opts.Window,
		retry:   opts.RetryDelay,
		out:     opts.Out,
	}, nil
}

// OnComplete registers a hook invoked after every finished pass, successful
// or not. Hooks run on the syncing goroutine.
func (e *Engine) OnComplete(fn func(Result)) {
	e.hookMu.Lock()
	defer e.hookMu.Unlock()
	e.hooks = append(e.hooks, fn)
}

// Running reports whether a pass is currently in flight.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) acquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
}

// Run executes one reconciliation pass over the requested tables (nil or
// empty means all), then regenerates the daily rollups if any raw table
// changed. A second Run while one is in flight returns ErrSyncInFlight.
// Cancellation is coarse: remaining tables are skipped, the in-progress
// table finishes.
func (e *Engine) Run(ctx context.Context, tables []string, trigger Trigger) (Result, error) {
	if len(tables) == 0 {
		tables = AllTables()
	}
	for _, t := range tables {
		if !knownTable(t) {
			return Result{}, fmt.Errorf("%w: %s", ErrUnknownTable, t)
		}
	}
	if !e.acquire() {
		return Result{}, ErrSyncInFlight
	}
	defer e.release()

	res := Result{Trigger: trigger, StartedAt: time.Now()}
	cancelled := false
	rawSynced := false
	for _, table := range tables {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			res.Tables = append(res.Tables, TableResult{Table: table, Status: StatusSkipped, Error: "sync cancelled"})
			continue
		}
		tr := e.syncTable(ctx, table, trigger)
		if tr.Status == StatusSuccess && table != TableTimeEntries {
			rawSynced = true
		}
		res.Tables = append(res.Tables, tr)
		fmt.Fprintf(e.out, "sync %s: %s (%d rows)\n", table, tr.Status, tr.RowsSynced)
	}

	if rawSynced && !cancelled {
		tr := e.recomputeStats(ctx, trigger)
		res.Tables = append(res.Tables, tr)
		fmt.Fprintf(e.out, "sync daily_stats: %s (%d rows)\n", tr.Status, tr.RowsSynced)
	}

	res.FinishedAt = time.Now()

	e.hookMu.Lock()
	hooks := make([]func(Result), len(e.hooks))
	copy(hooks, e.hooks)
	e.hookMu.Unlock()
	for _, fn := range hooks {
		fn(res)
	}
	return res, nil
}

func knownTable(name string) bool {
	for _, t := range AllTables() {
		if t == name {
			return true
		}
	}
	return false
}

// syncTable runs one table's snapshot fetch and transactional upsert,
// recording a SyncRun row either way.
func (e *Engine) syncTable(ctx context.Context, table string, trigger Trigger) TableResult {
	runID, logErr := e.startRun(table, trigger)
	if logErr != nil {
		return TableResult{Table: table, Status: StatusFailed, Error: logErr.Error()}
	}

	rows, err := e.loadTable(ctx, table)
	if err != nil {
		e.finishRun(runID, 0, err)
		return TableResult{Table: table, Status: StatusFailed, Error: err.Error()}
	}

	e.finishRun(runID, rows, nil)
	return TableResult{Table: table, Status: StatusSuccess, RowsSynced: rows}
}

// loadTable fetches the snapshot (with a single retry on transient network
// errors) and upserts it inside one transaction.
func (e *Engine) loadTable(ctx context.Context, table string) (int, error) {
	now := time.Now()
	params := warehouse.Params{From: now.Add(-e.window), To: now}

	switch table {
	case TableContributors:
		rows, err := fetchRetry(e, func() ([]warehouse.ContributorRow, error) { return e.src.Contributors(ctx) })
		if err != nil {
			return 0, err
		}
		return e.upsertContributors(rows)
	case TableTasks:
		rows, err := fetchRetry(e, func() ([]warehouse.TaskRow, error) { return e.src.Tasks(ctx, params) })
		if err != nil {
			return 0, err
		}
		return e.upsertTasks(rows)
	case TableReviews:
		rows, err := fetchRetry(e, func() ([]warehouse.ReviewRow, error) { return e.src.Reviews(ctx, params) })
		if err != nil {
			return 0, err
		}
		return e.upsertReviews(rows)
	case TableTimeEntries:
		rows, err := fetchRetry(e, func() ([]warehouse.TimeEntryRow, error) { return e.src.TimeEntries(ctx, params) })
		if err != nil {
			return 0, err
		}
		// Both sources are fetched before anything is written, so a tracker
		// failure leaves the table untouched rather than half-updated.
		var tracked []timetrack.Entry
		if e.tracker != nil {
			tracked, err = e.tracker.DailyHours(ctx, params.From, params.To)
			if err != nil {
				return 0, fmt.Errorf("ingest: time tracker: %w", err)
			}
		}
		return e.upsertTimeEntries(rows, tracked)
	case TableWorkItems:
		rows, err := fetchRetry(e, func() ([]warehouse.WorkItemRow, error) { return e.src.WorkItems(ctx, params) })
		if err != nil {
			return 0, err
		}
		return e.upsertWorkItems(rows)
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownTable, table)
}

// fetchRetry retries a snapshot read once when the failure is a transient
// network error. Query errors are not retried.
func fetchRetry[T any](e *Engine, fn func() ([]T, error)) ([]T, error) {
	rows, err := fn()
	if err == nil {
		return rows, nil
	}
	if !warehouse.IsTransient(err) {
		return nil, err
	}
	time.Sleep(e.retry)
	return fn()
}
