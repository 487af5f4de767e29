package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/lifelog-labs/lifelog-sync-server/internal/bridge"
	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
	"github.com/lifelog-labs/lifelog-sync-server/internal/journal"
	"github.com/lifelog-labs/lifelog-sync-server/internal/sources"
	"github.com/lifelog-labs/lifelog-sync-server/internal/sources/mocks"
)

// testSource is a scriptable Source for manager tests
type testSource struct {
	name         string
	status       sources.Status
	syncFunc     func(ctx context.Context, start, end *time.Time) ([]sources.IntegrationRecord, error)
	testConnFunc func(ctx context.Context) error
}

var _ sources.Source = (*testSource)(nil)

func (s *testSource) Name() string                       { return s.name }
func (*testSource) Authenticate(context.Context) error   { return nil }
func (*testSource) CheckRateLimit() bool                 { return true }
func (*testSource) AvailableDataTypes() []string         { return []string{sources.DataTypeSteps} }

func (s *testSource) TestConnection(ctx context.Context) error {
	if s.testConnFunc != nil {
		return s.testConnFunc(ctx)
	}
	return nil
}

func (s *testSource) Metrics() sources.MetricsSnapshot {
	status := s.status
	if status == "" {
		status = sources.StatusActive
	}
	return sources.MetricsSnapshot{Status: status}
}

func (s *testSource) SyncData(ctx context.Context, start, end *time.Time) ([]sources.IntegrationRecord, error) {
	if s.syncFunc != nil {
		return s.syncFunc(ctx, start, end)
	}
	return nil, nil
}

// testFactory builds a testSource per configured name
func testFactory(build func(name string) *testSource) sources.Factory {
	return func(cfg *config.SourceConfig) (sources.Source, error) {
		return build(cfg.Name), nil
	}
}

func sourceCfg(name string) *config.SourceConfig {
	return &config.SourceConfig{
		Name:     name,
		Type:     config.SourceTypeFitness,
		Enabled:  true,
		Endpoint: "https://api.example.com",
	}
}

func stepRecords(sourceName string, ids ...string) []sources.IntegrationRecord {
	records := make([]sources.IntegrationRecord, 0, len(ids))
	for _, id := range ids {
		records = append(records, sources.IntegrationRecord{
			SourceName: sourceName,
			SourceID:   id,
			DataType:   sources.DataTypeSteps,
			Timestamp:  time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC),
			RawPayload: map[string]any{"steps": 100.0},
		})
	}
	return records
}

func newTestManager(t *testing.T, factory sources.Factory, syncCfg config.SyncConfig, opts ...Option) (Manager, *journal.MemoryStore) {
	t.Helper()

	registry := sources.NewRegistry()
	registry.Register(config.SourceTypeFitness, factory)
	store := journal.NewMemoryStore()
	return NewManager(registry, bridge.New(), store, syncCfg, opts...), store
}

func TestRegisterInvalidConfigAborts(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{name: name}
	}), config.SyncConfig{})

	cfg := sourceCfg("broken")
	cfg.Endpoint = ""
	err := m.Register(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	result := m.SyncSource(context.Background(), "broken", Options{})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "not registered")
}

func TestRegisterDuplicateRejected(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{name: name}
	}), config.SyncConfig{})

	ctx := context.Background()
	require.NoError(t, m.Register(ctx, sourceCfg("tracker")))

	err := m.Register(ctx, sourceCfg("tracker"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceExists)
}

func TestRegisterAuthFailureIsSoft(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	src.EXPECT().Authenticate(gomock.Any()).Return(errors.New("bad credentials"))
	src.EXPECT().Metrics().Return(sources.MetricsSnapshot{Status: sources.StatusError}).AnyTimes()
	src.EXPECT().AvailableDataTypes().Return([]string{sources.DataTypeSteps}).AnyTimes()

	m, _ := newTestManager(t, func(*config.SourceConfig) (sources.Source, error) {
		return src, nil
	}, config.SyncConfig{})

	// Failed initial authentication must not abort registration
	require.NoError(t, m.Register(context.Background(), sourceCfg("tracker")))

	status, err := m.Status("tracker")
	require.NoError(t, err)
	assert.Equal(t, sources.StatusError, status.Metrics.Status)
}

func TestSyncSourceStoresEntries(t *testing.T) {
	t.Parallel()

	m, store := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{
			name: name,
			syncFunc: func(context.Context, *time.Time, *time.Time) ([]sources.IntegrationRecord, error) {
				// One duplicate id inside the batch
				return stepRecords("tracker", "a", "b", "a"), nil
			},
		}
	}), config.SyncConfig{})

	ctx := context.Background()
	require.NoError(t, m.Register(ctx, sourceCfg("tracker")))

	result := m.SyncSource(ctx, "tracker", Options{})
	assert.True(t, result.Success)
	assert.Equal(t, 3, result.RecordsSynced)
	assert.Equal(t, 2, result.EntriesStored)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// A second sync of the same records stores nothing new
	result = m.SyncSource(ctx, "tracker", Options{})
	assert.True(t, result.Success)
	assert.Equal(t, 0, result.EntriesStored)

	status, err := m.Status("tracker")
	require.NoError(t, err)
	assert.Len(t, status.RecentResults, 2)
	require.NotNil(t, status.LastSync)
}

func TestSyncSourceRateLimited(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{
			name: name,
			syncFunc: func(context.Context, *time.Time, *time.Time) ([]sources.IntegrationRecord, error) {
				return nil, sources.ErrRateLimited
			},
		}
	}), config.SyncConfig{})

	ctx := context.Background()
	require.NoError(t, m.Register(ctx, sourceCfg("tracker")))

	result := m.SyncSource(ctx, "tracker", Options{})
	assert.False(t, result.Success)
	assert.True(t, result.RateLimited)

	// Expected condition: counted separately from failures
	totals := m.Totals()
	assert.Equal(t, 1, totals.RateLimitedSyncs)
	assert.Equal(t, 0, totals.FailedSyncs)
}

func TestSyncSourceRateLimitedDuringReauth(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	src := mocks.NewMockSource(ctrl)
	// Once at registration, once when the sync re-authenticates
	src.EXPECT().Authenticate(gomock.Any()).Return(sources.ErrRateLimited).Times(2)
	src.EXPECT().Metrics().Return(sources.MetricsSnapshot{Status: sources.StatusError}).AnyTimes()
	src.EXPECT().Name().Return("tracker").AnyTimes()

	m, _ := newTestManager(t, func(*config.SourceConfig) (sources.Source, error) {
		return src, nil
	}, config.SyncConfig{})

	ctx := context.Background()
	require.NoError(t, m.Register(ctx, sourceCfg("tracker")))

	result := m.SyncSource(ctx, "tracker", Options{})
	assert.False(t, result.Success)
	assert.True(t, result.RateLimited)
	assert.Equal(t, "rate limit exceeded", result.ErrorMessage)

	totals := m.Totals()
	assert.Equal(t, 1, totals.RateLimitedSyncs)
	assert.Equal(t, 0, totals.FailedSyncs)
}

func TestSyncSourceRecoversPanic(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{
			name: name,
			syncFunc: func(context.Context, *time.Time, *time.Time) ([]sources.IntegrationRecord, error) {
				panic("vendor client exploded")
			},
		}
	}), config.SyncConfig{})

	ctx := context.Background()
	require.NoError(t, m.Register(ctx, sourceCfg("tracker")))

	result := m.SyncSource(ctx, "tracker", Options{})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "panic during sync")
	assert.Equal(t, 1, m.Totals().FailedSyncs)
}

func TestSyncSourceDisabled(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{name: name}
	}), config.SyncConfig{})

	ctx := context.Background()
	cfg := sourceCfg("tracker")
	cfg.Enabled = false
	require.NoError(t, m.Register(ctx, cfg))

	result := m.SyncSource(ctx, "tracker", Options{})
	assert.False(t, result.Success)
	assert.Contains(t, result.ErrorMessage, "disabled")

	// Force overrides
	result = m.SyncSource(ctx, "tracker", Options{Force: true})
	assert.True(t, result.Success)
}

func TestSyncSourceSerializedPerSource(t *testing.T) {
	t.Parallel()

	var inFlight, maxInFlight atomic.Int32

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{
			name: name,
			syncFunc: func(context.Context, *time.Time, *time.Time) ([]sources.IntegrationRecord, error) {
				current := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					observed := maxInFlight.Load()
					if current <= observed || maxInFlight.CompareAndSwap(observed, current) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				return nil, nil
			},
		}
	}), config.SyncConfig{})

	ctx := context.Background()
	require.NoError(t, m.Register(ctx, sourceCfg("tracker")))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.SyncSource(ctx, "tracker", Options{})
		}()
	}
	wg.Wait()

	// Two concurrent syncs of one source never overlap
	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, 8, m.Totals().TotalSyncs)
}

func TestSyncAllBoundedConcurrency(t *testing.T) {
	t.Parallel()

	const maxConcurrent = 2

	var inFlight, maxInFlight atomic.Int32

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{
			name: name,
			syncFunc: func(context.Context, *time.Time, *time.Time) ([]sources.IntegrationRecord, error) {
				current := inFlight.Add(1)
				defer inFlight.Add(-1)
				for {
					observed := maxInFlight.Load()
					if current <= observed || maxInFlight.CompareAndSwap(observed, current) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				return nil, nil
			},
		}
	}), config.SyncConfig{MaxConcurrentSyncs: maxConcurrent})

	ctx := context.Background()
	for i := 0; i < 6; i++ {
		require.NoError(t, m.Register(ctx, sourceCfg(fmt.Sprintf("s%d", i))))
	}

	results := m.SyncAll(ctx, Options{})
	require.Len(t, results, 6)
	for _, result := range results {
		assert.True(t, result.Success)
	}
	assert.LessOrEqual(t, maxInFlight.Load(), int32(maxConcurrent))

	// Results come back sorted by source name
	assert.Equal(t, "s0", results[0].SourceName)
	assert.Equal(t, "s5", results[5].SourceName)
}

func TestSyncAllSkipsDisabled(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{name: name}
	}), config.SyncConfig{})

	ctx := context.Background()
	require.NoError(t, m.Register(ctx, sourceCfg("enabled")))

	disabled := sourceCfg("disabled")
	disabled.Enabled = false
	require.NoError(t, m.Register(ctx, disabled))

	results := m.SyncAll(ctx, Options{})
	require.Len(t, results, 1)
	assert.Equal(t, "enabled", results[0].SourceName)

	// Force pulls disabled sources in too
	results = m.SyncAll(ctx, Options{Force: true})
	assert.Len(t, results, 2)
}

func TestUnregisterCancelsInFlightSync(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{
			name: name,
			syncFunc: func(ctx context.Context, _, _ *time.Time) ([]sources.IntegrationRecord, error) {
				close(started)
				<-ctx.Done()
				return nil, ctx.Err()
			},
		}
	}), config.SyncConfig{})

	ctx := context.Background()
	require.NoError(t, m.Register(ctx, sourceCfg("tracker")))

	resultCh := make(chan Result, 1)
	go func() {
		resultCh <- m.SyncSource(ctx, "tracker", Options{})
	}()

	<-started
	require.NoError(t, m.Unregister("tracker"))

	select {
	case result := <-resultCh:
		assert.False(t, result.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("sync did not return after unregister")
	}

	_, err := m.Status("tracker")
	assert.ErrorIs(t, err, ErrSourceNotFound)
}

func TestHealthCheckIsolatesFailures(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		src := &testSource{name: name}
		switch name {
		case "failing":
			src.testConnFunc = func(context.Context) error { return errors.New("unreachable") }
		case "panicking":
			src.testConnFunc = func(context.Context) error { panic("boom") }
		}
		return src
	}), config.SyncConfig{})

	ctx := context.Background()
	for _, name := range []string{"healthy", "failing", "panicking"} {
		require.NoError(t, m.Register(ctx, sourceCfg(name)))
	}

	results := m.HealthCheck(ctx)
	require.Len(t, results, 3)
	assert.NoError(t, results["healthy"])
	assert.ErrorContains(t, results["failing"], "unreachable")
	assert.ErrorContains(t, results["panicking"], "panic during connection test")
}

func TestCleanupHistory(t *testing.T) {
	t.Parallel()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{name: name}
	}), config.SyncConfig{}, WithClock(func() time.Time { return current }))

	ctx := context.Background()
	require.NoError(t, m.Register(ctx, sourceCfg("tracker")))

	result := m.SyncSource(ctx, "tracker", Options{})
	require.True(t, result.Success)

	// Past the default retention window the result is pruned
	current = current.AddDate(0, 0, 40)
	assert.Equal(t, 1, m.CleanupHistory())

	// Immediately after, cleanup is rate-limited
	result = m.SyncSource(ctx, "tracker", Options{})
	require.True(t, result.Success)
	current = current.AddDate(0, 0, 40)
	removed := m.CleanupHistory()
	assert.Equal(t, 1, removed)
	assert.Equal(t, 0, m.CleanupHistory())
}

func TestStatusAllSorted(t *testing.T) {
	t.Parallel()

	m, _ := newTestManager(t, testFactory(func(name string) *testSource {
		return &testSource{name: name}
	}), config.SyncConfig{})

	ctx := context.Background()
	for _, name := range []string{"zulu", "alpha", "mike"} {
		require.NoError(t, m.Register(ctx, sourceCfg(name)))
	}

	statuses := m.StatusAll()
	require.Len(t, statuses, 3)
	assert.Equal(t, "alpha", statuses[0].Name)
	assert.Equal(t, "mike", statuses[1].Name)
	assert.Equal(t, "zulu", statuses[2].Name)
}
