// Package scheduler drives periodic syncs per source. A fixed-interval poll
// loop selects due schedules inside the daily sync window and launches them
// against the manager, bounded by a task semaphore. Failed runs back off
// along a capped delay ladder before returning to the normal cadence.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
	pkgsync "github.com/lifelog-labs/lifelog-sync-server/internal/sync"
)

const (
	// defaultPollInterval is the scheduler tick when not configured
	defaultPollInterval = 30 * time.Second

	// defaultMaxConcurrentTasks bounds concurrently launched scheduled runs
	defaultMaxConcurrentTasks = 2

	// defaultMaxRetries caps backoff ladder steps before falling back to the
	// normal cadence
	defaultMaxRetries = 3
)

// defaultRetryDelays is the backoff ladder when not configured
var defaultRetryDelays = []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}

// Callback is invoked after a scheduled run completes
type Callback func(result pkgsync.Result)

// Entry is a point-in-time snapshot of one schedule
type Entry struct {
	SourceName string     `json:"sourceName"`
	Schedule   Schedule   `json:"schedule"`
	Enabled    bool       `json:"enabled"`
	NextRun    *time.Time `json:"nextRun,omitempty"`
	LastRun    *time.Time `json:"lastRun,omitempty"`
	RetryCount int        `json:"retryCount"`
	Running    bool       `json:"running"`
}

// Scheduler manages background sync scheduling and execution across sources
type Scheduler interface {
	// Start begins the scheduling loop. Blocks until the context is
	// cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop cancels the loop and every tracked running task, then awaits
	// them. After Stop returns no task is still running.
	Stop() error

	// AddSchedule adds or replaces the schedule for a source
	AddSchedule(sourceName string, schedule Schedule) error

	// RemoveSchedule removes a source's schedule, cancelling any running task
	RemoveSchedule(sourceName string) error

	// EnableSchedule re-enables a source's schedule and recomputes its next run
	EnableSchedule(sourceName string) error

	// DisableSchedule disables a source's schedule, cancelling any running task
	DisableSchedule(sourceName string) error

	// Schedules returns a snapshot of all schedules, sorted by source name
	Schedules() []Entry
}

// entry is the scheduler-owned state for one source
type entry struct {
	schedule   Schedule
	enabled    bool
	nextRun    *time.Time
	lastRun    *time.Time
	retryCount int
}

// task tracks one in-flight scheduled run
type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// defaultScheduler is the default implementation of Scheduler
type defaultScheduler struct {
	manager pkgsync.Manager
	config  *config.Config

	pollInterval time.Duration
	window       *config.WindowConfig
	retryDelays  []time.Duration
	maxRetries   int

	sem *semaphore.Weighted

	mu      sync.Mutex
	entries map[string]*entry
	running map[string]*task

	// Lifecycle management; cancelFunc is guarded by mu since Start and
	// Stop run on different goroutines
	cancelFunc context.CancelFunc
	done       chan struct{}
	tasks      sync.WaitGroup

	onSuccess Callback
	onFailure Callback
	now       func() time.Time
}

var _ Scheduler = (*defaultScheduler)(nil)

// Option is a function that configures the scheduler
type Option func(*defaultScheduler)

// WithSuccessCallback sets the callback fired after successful runs
func WithSuccessCallback(cb Callback) Option {
	return func(s *defaultScheduler) {
		s.onSuccess = cb
	}
}

// WithFailureCallback sets the callback fired after failed runs
func WithFailureCallback(cb Callback) Option {
	return func(s *defaultScheduler) {
		s.onFailure = cb
	}
}

// WithClock injects the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(s *defaultScheduler) {
		s.now = now
	}
}

// New creates a scheduler with injected dependencies
func New(manager pkgsync.Manager, cfg *config.Config, opts ...Option) Scheduler {
	schedCfg := cfg.Scheduler

	pollInterval := defaultPollInterval
	if schedCfg.PollInterval != "" {
		// Validated at config load
		if parsed, err := time.ParseDuration(schedCfg.PollInterval); err == nil {
			pollInterval = parsed
		}
	}

	maxTasks := schedCfg.MaxConcurrentTasks
	if maxTasks <= 0 {
		maxTasks = defaultMaxConcurrentTasks
	}

	retryDelays := make([]time.Duration, 0, len(schedCfg.RetryDelays))
	for _, raw := range schedCfg.RetryDelays {
		if parsed, err := time.ParseDuration(raw); err == nil {
			retryDelays = append(retryDelays, parsed)
		}
	}
	if len(retryDelays) == 0 {
		retryDelays = defaultRetryDelays
	}

	maxRetries := schedCfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	s := &defaultScheduler{
		manager:      manager,
		config:       cfg,
		pollInterval: pollInterval,
		window:       schedCfg.Window,
		retryDelays:  retryDelays,
		maxRetries:   maxRetries,
		sem:          semaphore.NewWeighted(int64(maxTasks)),
		entries:      make(map[string]*entry),
		running:      make(map[string]*task),
		done:         make(chan struct{}),
		now:          time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start begins the scheduling loop
func (s *defaultScheduler) Start(ctx context.Context) error {
	loopCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancelFunc = cancel
	s.mu.Unlock()
	defer func() {
		close(s.done)
		slog.Info("Scheduler shut down")
	}()

	s.seedDefaults()

	slog.Info("Starting scheduler",
		"poll_interval", s.pollInterval,
		"schedules", len(s.entries))

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(loopCtx)
		case <-loopCtx.Done():
			slog.Info("Scheduler stopping")
			// Running tasks share loopCtx, so they are already cancelled
			s.tasks.Wait()
			return nil
		}
	}
}

// Stop cancels the loop and every tracked running task, then awaits them
func (s *defaultScheduler) Stop() error {
	s.mu.Lock()
	cancel := s.cancelFunc
	s.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping scheduler")
		cancel()
		<-s.done
	}
	return nil
}

// seedDefaults creates schedules from configuration for registered sources.
// Explicitly configured schedules win; enabled sources with a syncInterval
// and no explicit schedule get an interval schedule.
func (s *defaultScheduler) seedDefaults() {
	registered := make(map[string]bool)
	for _, status := range s.manager.StatusAll() {
		registered[status.Name] = true
	}

	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for name, sc := range s.config.Scheduler.Schedules {
		if !registered[name] {
			slog.Warn("Skipping schedule for unregistered source", "source", name)
			continue
		}
		schedule := scheduleFromConfig(sc)
		s.entries[name] = &entry{
			schedule: schedule,
			enabled:  true,
			nextRun:  nextRunTime(now, schedule),
		}
	}

	for i := range s.config.Sources {
		src := &s.config.Sources[i]
		if !src.Enabled || src.SyncInterval == "" || !registered[src.Name] {
			continue
		}
		if _, exists := s.entries[src.Name]; exists {
			continue
		}
		interval, err := time.ParseDuration(src.SyncInterval)
		if err != nil || interval <= 0 {
			continue
		}
		schedule := Schedule{Kind: config.ScheduleKindInterval, Interval: interval}
		s.entries[src.Name] = &entry{
			schedule: schedule,
			enabled:  true,
			nextRun:  nextRunTime(now, schedule),
		}
	}
}

// tick runs one scheduling pass: reap, window check, select due, launch
func (s *defaultScheduler) tick(ctx context.Context) {
	now := s.now()

	if !inWindow(now, s.window) {
		slog.Debug("Outside sync window, skipping tick", "hour", now.Hour())
		return
	}

	for _, name := range s.dueSources(now) {
		// Remaining task-slot budget; undersubscription is fine, the next
		// tick picks the source up again
		if !s.sem.TryAcquire(1) {
			break
		}
		s.launch(ctx, name)
	}
}

// dueSources selects schedules that are enabled, due, and not already running
func (s *defaultScheduler) dueSources(now time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []string
	for name, e := range s.entries {
		if !e.enabled || e.nextRun == nil || e.nextRun.After(now) {
			continue
		}
		if _, isRunning := s.running[name]; isRunning {
			continue
		}
		due = append(due, name)
	}
	sort.Strings(due)
	return due
}

// launch starts one scheduled run. The semaphore slot is already held and is
// released when the run completes.
func (s *defaultScheduler) launch(ctx context.Context, sourceName string) {
	runCtx, cancel := context.WithCancel(ctx)
	t := &task{cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.running[sourceName] = t
	s.mu.Unlock()

	slog.Info("Launching scheduled sync", "source", sourceName)

	s.tasks.Add(1)
	go func() {
		defer s.tasks.Done()
		defer s.sem.Release(1)
		defer cancel()
		defer close(t.done)

		// The manager converts every failure mode into a failed result, so
		// nothing escapes the scheduling loop.
		result := s.manager.SyncSource(runCtx, sourceName, pkgsync.Options{})
		s.complete(sourceName, t, result)
	}()
}

// complete reaps the task and applies the retry policy to the schedule
func (s *defaultScheduler) complete(sourceName string, t *task, result pkgsync.Result) {
	now := s.now()

	s.mu.Lock()
	if s.running[sourceName] == t {
		delete(s.running, sourceName)
	}

	if e, ok := s.entries[sourceName]; ok {
		e.lastRun = &now
		if result.Success {
			e.retryCount = 0
			e.nextRun = nextRunTime(now, e.schedule)
		} else {
			e.retryCount++
			if e.retryCount < s.maxRetries {
				// Capped ladder, not unbounded exponential growth
				step := e.retryCount - 1
				if step >= len(s.retryDelays) {
					step = len(s.retryDelays) - 1
				}
				retryAt := now.Add(s.retryDelays[step])
				e.nextRun = &retryAt
				slog.Warn("Scheduled sync failed, retrying",
					"source", sourceName,
					"attempt", e.retryCount,
					"next_run", retryAt)
			} else {
				slog.Error("Scheduled sync failed after max retries, returning to normal cadence",
					"source", sourceName,
					"retries", e.retryCount)
				e.retryCount = 0
				e.nextRun = nextRunTime(now, e.schedule)
			}
		}
	}
	s.mu.Unlock()

	if result.Success {
		if s.onSuccess != nil {
			s.onSuccess(result)
		}
	} else if s.onFailure != nil {
		s.onFailure(result)
	}
}

// AddSchedule adds or replaces the schedule for a source
func (s *defaultScheduler) AddSchedule(sourceName string, schedule Schedule) error {
	if err := schedule.Validate(); err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", sourceName, err)
	}
	if _, err := s.manager.Status(sourceName); err != nil {
		return fmt.Errorf("cannot schedule %s: %w", sourceName, err)
	}

	now := s.now()
	s.mu.Lock()
	s.entries[sourceName] = &entry{
		schedule: schedule,
		enabled:  true,
		nextRun:  nextRunTime(now, schedule),
	}
	s.mu.Unlock()

	slog.Info("Schedule added", "source", sourceName, "kind", schedule.Kind)
	return nil
}

// RemoveSchedule removes a source's schedule, cancelling any running task
func (s *defaultScheduler) RemoveSchedule(sourceName string) error {
	s.mu.Lock()
	_, ok := s.entries[sourceName]
	delete(s.entries, sourceName)
	t := s.running[sourceName]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("no schedule for source: %s", sourceName)
	}
	if t != nil {
		t.cancel()
	}

	slog.Info("Schedule removed", "source", sourceName)
	return nil
}

// EnableSchedule re-enables a source's schedule and recomputes its next run
func (s *defaultScheduler) EnableSchedule(sourceName string) error {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[sourceName]
	if !ok {
		return fmt.Errorf("no schedule for source: %s", sourceName)
	}
	e.enabled = true
	e.retryCount = 0
	e.nextRun = nextRunTime(now, e.schedule)
	return nil
}

// DisableSchedule disables a source's schedule, cancelling any running task
func (s *defaultScheduler) DisableSchedule(sourceName string) error {
	s.mu.Lock()
	e, ok := s.entries[sourceName]
	if ok {
		e.enabled = false
	}
	t := s.running[sourceName]
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("no schedule for source: %s", sourceName)
	}
	if t != nil {
		t.cancel()
	}
	return nil
}

// Schedules returns a snapshot of all schedules, sorted by source name
func (s *defaultScheduler) Schedules() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.entries))
	for name, e := range s.entries {
		snapshot := Entry{
			SourceName: name,
			Schedule:   e.schedule,
			Enabled:    e.enabled,
			RetryCount: e.retryCount,
		}
		if e.nextRun != nil {
			next := *e.nextRun
			snapshot.NextRun = &next
		}
		if e.lastRun != nil {
			last := *e.lastRun
			snapshot.LastRun = &last
		}
		_, snapshot.Running = s.running[name]
		entries = append(entries, snapshot)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].SourceName < entries[j].SourceName })
	return entries
}
