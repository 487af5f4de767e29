// Package sync orchestrates single and bulk source syncs under bounded
// concurrency.
//
// Ordering guarantees: a per-source lock ensures at most one in-flight sync
// per source even when manual and scheduled triggers race; the SyncAll
// semaphore is only a throughput throttle across different sources. Both
// hold simultaneously.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/lifelog-labs/lifelog-sync-server/internal/bridge"
	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
	"github.com/lifelog-labs/lifelog-sync-server/internal/journal"
	"github.com/lifelog-labs/lifelog-sync-server/internal/sources"
	"github.com/lifelog-labs/lifelog-sync-server/internal/telemetry"
)

const (
	// defaultMaxConcurrentSyncs bounds SyncAll when not configured
	defaultMaxConcurrentSyncs = 3

	// defaultCleanupInterval rate-limits history cleanup runs
	defaultCleanupInterval = time.Hour

	// defaultRetentionDays is the history retention for sources without one
	defaultRetentionDays = 30

	// healthCheckConcurrency bounds parallel connection tests
	healthCheckConcurrency = 4

	// recentResultsLimit is how many results Status merges per source
	recentResultsLimit = 5
)

// ErrSourceNotFound indicates no source is registered under the given name
var ErrSourceNotFound = errors.New("source not registered")

// ErrSourceExists indicates a source is already registered under the name
var ErrSourceExists = errors.New("source already registered")

// ErrInvalidConfig indicates a source configuration failed validation
var ErrInvalidConfig = errors.New("invalid source configuration")

// Result is the outcome of one sync attempt
type Result struct {
	SourceName    string        `json:"sourceName"`
	Success       bool          `json:"success"`
	RecordsSynced int           `json:"recordsSynced"`
	EntriesStored int           `json:"entriesStored"`
	Duration      time.Duration `json:"duration"`
	ErrorMessage  string        `json:"errorMessage,omitempty"`

	// RateLimited tags results short-circuited by the source's request
	// budget. Expected condition, not counted as a failure.
	RateLimited bool `json:"rateLimited,omitempty"`

	StartedAt time.Time `json:"startedAt"`
}

// Options control one sync invocation
type Options struct {
	// Start and End bound the fetched range; nil selects the source default
	Start *time.Time
	End   *time.Time

	// Force syncs a disabled source anyway
	Force bool
}

// SourceStatus merges health info, configuration, and recent results
type SourceStatus struct {
	Name          string                  `json:"name"`
	Type          string                  `json:"type"`
	Enabled       bool                    `json:"enabled"`
	DataTypes     []string                `json:"dataTypes"`
	LastSync      *time.Time              `json:"lastSync,omitempty"`
	Metrics       sources.MetricsSnapshot `json:"metrics"`
	RecentResults []Result                `json:"recentResults,omitempty"`
}

// Totals are manager-wide aggregate counters
type Totals struct {
	TotalSyncs       int `json:"totalSyncs"`
	SuccessfulSyncs  int `json:"successfulSyncs"`
	FailedSyncs      int `json:"failedSyncs"`
	RateLimitedSyncs int `json:"rateLimitedSyncs"`
	RecordsSynced    int `json:"recordsSynced"`
	EntriesStored    int `json:"entriesStored"`
}

// Manager owns registered sources and runs syncs against them
type Manager interface {
	// Register constructs the source from its configuration and adds it.
	// Validation errors abort registration. An authentication failure for an
	// enabled source is logged but the source is registered anyway, so
	// misconfigured sources stay visible for diagnosis.
	Register(ctx context.Context, cfg *config.SourceConfig) error

	// Unregister cancels any in-flight sync for the source and removes it
	Unregister(name string) error

	// SyncSource runs one sync for the named source. Failures of any kind
	// are converted into a failed Result; nothing escapes.
	SyncSource(ctx context.Context, name string, opts Options) Result

	// SyncAll syncs every enabled source, bounded by the concurrency limit
	SyncAll(ctx context.Context, opts Options) []Result

	// Status returns the merged status for one source
	Status(name string) (*SourceStatus, error)

	// StatusAll returns the merged status for every registered source
	StatusAll() []SourceStatus

	// Totals returns manager-wide aggregate counters
	Totals() Totals

	// HealthCheck tests connectivity for every enabled source. One source's
	// failure never aborts checking the others.
	HealthCheck(ctx context.Context) map[string]error

	// CleanupHistory prunes results beyond each source's retention window,
	// rate-limited to once per cleanup interval. Returns how many results
	// were removed.
	CleanupHistory() int
}

// registeredSource is a source plus the manager-owned state around it
type registeredSource struct {
	source   sources.Source
	cfg      *config.SourceConfig
	lastSync *time.Time
	cancel   context.CancelFunc
}

// defaultManager is the default implementation of Manager
type defaultManager struct {
	registry *sources.Registry
	bridge   *bridge.Bridge
	store    journal.Store

	mu      sync.RWMutex
	sources map[string]*registeredSource
	totals  Totals

	locks   *keyedMutex
	sem     *semaphore.Weighted
	history *history

	cleanupInterval time.Duration
	lastCleanup     time.Time

	metrics *telemetry.SyncMetrics
	now     func() time.Time
}

var _ Manager = (*defaultManager)(nil)

// Option configures the manager
type Option func(*defaultManager)

// WithMetrics sets the sync metrics recorder
func WithMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(m *defaultManager) {
		m.metrics = metrics
	}
}

// WithClock injects the time source, used by tests
func WithClock(now func() time.Time) Option {
	return func(m *defaultManager) {
		m.now = now
	}
}

// NewManager creates a manager wired to the given registry, bridge, and store
func NewManager(
	registry *sources.Registry,
	recordBridge *bridge.Bridge,
	store journal.Store,
	cfg config.SyncConfig,
	opts ...Option,
) Manager {
	maxConcurrent := cfg.MaxConcurrentSyncs
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrentSyncs
	}

	cleanupInterval := defaultCleanupInterval
	if cfg.CleanupInterval != "" {
		// Validated at config load
		if parsed, err := time.ParseDuration(cfg.CleanupInterval); err == nil {
			cleanupInterval = parsed
		}
	}

	m := &defaultManager{
		registry:        registry,
		bridge:          recordBridge,
		store:           store,
		sources:         make(map[string]*registeredSource),
		locks:           newKeyedMutex(),
		sem:             semaphore.NewWeighted(int64(maxConcurrent)),
		history:         newHistory(cfg.HistoryLimit),
		cleanupInterval: cleanupInterval,
		now:             time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Register constructs and adds a source
func (m *defaultManager) Register(ctx context.Context, cfg *config.SourceConfig) error {
	if cfg == nil {
		return fmt.Errorf("source configuration cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w for %s: %w", ErrInvalidConfig, cfg.Name, err)
	}

	src, err := m.registry.Create(cfg)
	if err != nil {
		return fmt.Errorf("failed to create source %s: %w", cfg.Name, err)
	}

	m.mu.Lock()
	if _, exists := m.sources[cfg.Name]; exists {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSourceExists, cfg.Name)
	}
	m.sources[cfg.Name] = &registeredSource{source: src, cfg: cfg}
	m.mu.Unlock()

	if cfg.Enabled {
		// Soft-fail: a failed initial authentication keeps the source
		// registered so its status stays visible, and the scheduler's
		// cadence becomes the retry mechanism.
		if err := src.Authenticate(ctx); err != nil {
			slog.Warn("Initial authentication failed, source registered anyway",
				"source", cfg.Name,
				"error", err)
		}
	}

	slog.Info("Source registered", "source", cfg.Name, "type", cfg.Type, "enabled", cfg.Enabled)
	return nil
}

// Unregister cancels any in-flight sync for the source and removes it
func (m *defaultManager) Unregister(name string) error {
	m.mu.Lock()
	reg, ok := m.sources[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}
	cancel := reg.cancel
	delete(m.sources, name)
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	slog.Info("Source unregistered", "source", name)
	return nil
}

// SyncSource runs one sync for the named source
func (m *defaultManager) SyncSource(ctx context.Context, name string, opts Options) Result {
	started := m.now()

	m.mu.RLock()
	reg, ok := m.sources[name]
	m.mu.RUnlock()

	if !ok {
		return m.finish(ctx, Result{
			SourceName:   name,
			StartedAt:    started,
			ErrorMessage: fmt.Sprintf("source not registered: %s", name),
		})
	}

	if !reg.cfg.Enabled && !opts.Force {
		return m.finish(ctx, Result{
			SourceName:   name,
			StartedAt:    started,
			ErrorMessage: "source is disabled",
		})
	}

	// Serialize syncs per source; different sources proceed in parallel
	unlock := m.locks.Lock(name)
	defer unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	m.mu.Lock()
	reg.cancel = cancel
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		reg.cancel = nil
		m.mu.Unlock()
	}()

	result := m.runSync(runCtx, reg, opts, started)
	return m.finish(ctx, result)
}

// runSync executes the sync and converts every failure mode, panics
// included, into a failed Result
func (m *defaultManager) runSync(
	ctx context.Context, reg *registeredSource, opts Options, started time.Time,
) (result Result) {
	name := reg.source.Name()
	result = Result{SourceName: name, StartedAt: started}

	defer func() {
		result.Duration = m.now().Sub(started)
		if r := recover(); r != nil {
			slog.Error("Recovered panic during sync", "source", name, "panic", r)
			result.Success = false
			result.ErrorMessage = fmt.Sprintf("panic during sync: %v", r)
		}
	}()

	// Ensure authenticated, with one re-auth attempt
	if reg.source.Metrics().Status != sources.StatusActive {
		if err := reg.source.Authenticate(ctx); err != nil {
			if errors.Is(err, sources.ErrRateLimited) {
				result.RateLimited = true
				result.ErrorMessage = "rate limit exceeded"
			} else {
				result.ErrorMessage = err.Error()
			}
			return result
		}
	}

	records, err := reg.source.SyncData(ctx, opts.Start, opts.End)
	if err != nil {
		if errors.Is(err, sources.ErrRateLimited) {
			result.RateLimited = true
			result.ErrorMessage = "rate limit exceeded"
		} else {
			result.ErrorMessage = err.Error()
		}
		return result
	}

	// Convert and store. Per-record failures are logged and skipped; they
	// never fail the batch.
	stored := 0
	for _, record := range records {
		entry, err := m.bridge.Convert(record)
		if err != nil {
			slog.Warn("Failed to convert record",
				"source", name,
				"record", record.SourceID,
				"error", err)
			continue
		}
		if entry == nil {
			continue
		}

		inserted, err := m.store.Put(ctx, entry)
		if err != nil {
			slog.Warn("Failed to store entry",
				"source", name,
				"record", record.SourceID,
				"error", err)
			continue
		}
		if inserted {
			stored++
		}
	}

	now := m.now()
	m.mu.Lock()
	reg.lastSync = &now
	m.mu.Unlock()

	result.Success = true
	result.RecordsSynced = len(records)
	result.EntriesStored = stored
	return result
}

// finish records the result in history, aggregates, and telemetry
func (m *defaultManager) finish(ctx context.Context, result Result) Result {
	if result.Duration == 0 {
		result.Duration = m.now().Sub(result.StartedAt)
	}

	m.history.Append(result)

	m.mu.Lock()
	m.totals.TotalSyncs++
	switch {
	case result.Success:
		m.totals.SuccessfulSyncs++
		m.totals.RecordsSynced += result.RecordsSynced
		m.totals.EntriesStored += result.EntriesStored
	case result.RateLimited:
		// Expected condition, not a fault
		m.totals.RateLimitedSyncs++
	default:
		m.totals.FailedSyncs++
	}
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.RecordSyncDuration(ctx, result.SourceName, result.Duration, result.Success)
		if result.Success {
			m.metrics.RecordRecordsSynced(ctx, result.SourceName, int64(result.RecordsSynced))
		}
	}

	if result.Success {
		slog.Info("Sync completed",
			"source", result.SourceName,
			"records", result.RecordsSynced,
			"stored", result.EntriesStored,
			"duration", result.Duration)
	} else {
		slog.Warn("Sync failed",
			"source", result.SourceName,
			"rate_limited", result.RateLimited,
			"error", result.ErrorMessage)
	}

	return result
}

// SyncAll syncs every enabled source concurrently, bounded by the semaphore
func (m *defaultManager) SyncAll(ctx context.Context, opts Options) []Result {
	m.mu.RLock()
	names := make([]string, 0, len(m.sources))
	for name, reg := range m.sources {
		if reg.cfg.Enabled || opts.Force {
			names = append(names, name)
		}
	}
	m.mu.RUnlock()
	sort.Strings(names)

	results := make([]Result, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			if err := m.sem.Acquire(ctx, 1); err != nil {
				results[i] = m.finish(ctx, Result{
					SourceName:   name,
					StartedAt:    m.now(),
					ErrorMessage: fmt.Sprintf("sync cancelled: %v", err),
				})
				return
			}
			defer m.sem.Release(1)

			results[i] = m.SyncSource(ctx, name, opts)
		}(i, name)
	}
	wg.Wait()

	return results
}

// Status returns the merged status for one source
func (m *defaultManager) Status(name string) (*SourceStatus, error) {
	m.mu.RLock()
	reg, ok := m.sources[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, name)
	}

	status := m.statusFor(reg)
	return &status, nil
}

// StatusAll returns the merged status for every registered source, sorted by name
func (m *defaultManager) StatusAll() []SourceStatus {
	m.mu.RLock()
	regs := make([]*registeredSource, 0, len(m.sources))
	for _, reg := range m.sources {
		regs = append(regs, reg)
	}
	m.mu.RUnlock()

	statuses := make([]SourceStatus, 0, len(regs))
	for _, reg := range regs {
		statuses = append(statuses, m.statusFor(reg))
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

func (m *defaultManager) statusFor(reg *registeredSource) SourceStatus {
	m.mu.RLock()
	var lastSync *time.Time
	if reg.lastSync != nil {
		t := *reg.lastSync
		lastSync = &t
	}
	m.mu.RUnlock()

	snapshot := reg.source.Metrics()
	if m.metrics != nil {
		m.metrics.RecordHealthScore(context.Background(), reg.cfg.Name, int64(snapshot.HealthScore))
	}

	return SourceStatus{
		Name:          reg.cfg.Name,
		Type:          reg.cfg.Type,
		Enabled:       reg.cfg.Enabled,
		DataTypes:     reg.source.AvailableDataTypes(),
		LastSync:      lastSync,
		Metrics:       snapshot,
		RecentResults: m.history.LastFor(reg.cfg.Name, recentResultsLimit),
	}
}

// Totals returns manager-wide aggregate counters
func (m *defaultManager) Totals() Totals {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.totals
}

// HealthCheck tests connectivity for every enabled source
func (m *defaultManager) HealthCheck(ctx context.Context) map[string]error {
	m.mu.RLock()
	regs := make(map[string]sources.Source, len(m.sources))
	for name, reg := range m.sources {
		if reg.cfg.Enabled {
			regs[name] = reg.source
		}
	}
	m.mu.RUnlock()

	results := make(map[string]error, len(regs))
	var resultsMu sync.Mutex

	g := &errgroup.Group{}
	g.SetLimit(healthCheckConcurrency)
	for name, src := range regs {
		g.Go(func() error {
			err := testConnectionSafe(ctx, src)

			resultsMu.Lock()
			results[name] = err
			resultsMu.Unlock()
			return nil
		})
	}
	// Goroutines never return errors; failures land in the results map
	_ = g.Wait()

	return results
}

// testConnectionSafe shields the health check from panicking sources
func testConnectionSafe(ctx context.Context, src sources.Source) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during connection test: %v", r)
		}
	}()
	return src.TestConnection(ctx)
}

// CleanupHistory prunes results beyond each source's retention window
func (m *defaultManager) CleanupHistory() int {
	now := m.now()

	m.mu.Lock()
	if now.Sub(m.lastCleanup) < m.cleanupInterval {
		m.mu.Unlock()
		return 0
	}
	m.lastCleanup = now

	retention := make(map[string]int, len(m.sources))
	for name, reg := range m.sources {
		retention[name] = reg.cfg.RetentionDays
	}
	m.mu.Unlock()

	removed := m.history.Prune(func(sourceName string) time.Time {
		days := retention[sourceName]
		if days <= 0 {
			days = defaultRetentionDays
		}
		return now.AddDate(0, 0, -days)
	})

	if removed > 0 {
		slog.Info("Pruned sync history", "removed", removed)
	}
	return removed
}
