package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest builds each Store implementation against a fresh backend
func storeUnderTest(t *testing.T, name string) Store {
	t.Helper()

	switch name {
	case "sqlite":
		store, err := OpenSQLite(filepath.Join(t.TempDir(), "journal.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	case "memory":
		store := NewMemoryStore()
		t.Cleanup(func() { _ = store.Close() })
		return store
	default:
		t.Fatalf("unknown store: %s", name)
		return nil
	}
}

func sampleEntry(sourceName, externalID string, ts time.Time) *Entry {
	steps := 8200.0
	return &Entry{
		Category:     CategoryActivity,
		Kind:         "steps",
		Title:        "Steps: 8200",
		Timestamp:    ts,
		NumericValue: &steps,
		Unit:         "steps",
		Tags:         []string{sourceName, "external", "auto-recorded"},
		ExternalID:   externalID,
		SourceName:   sourceName,
	}
}

func TestStorePutGet(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{"sqlite", "memory"} {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			store := storeUnderTest(t, backend)
			ctx := context.Background()
			ts := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

			inserted, err := store.Put(ctx, sampleEntry("tracker", "act-1", ts))
			require.NoError(t, err)
			assert.True(t, inserted)

			got, err := store.Get(ctx, "tracker", "act-1")
			require.NoError(t, err)
			assert.Equal(t, "Steps: 8200", got.Title)
			assert.Equal(t, CategoryActivity, got.Category)
			require.NotNil(t, got.NumericValue)
			assert.InDelta(t, 8200.0, *got.NumericValue, 0.001)
			assert.Equal(t, []string{"tracker", "external", "auto-recorded"}, got.Tags)
			assert.True(t, got.Timestamp.Equal(ts))
		})
	}
}

func TestStoreDeduplicates(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{"sqlite", "memory"} {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			store := storeUnderTest(t, backend)
			ctx := context.Background()
			ts := time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)

			inserted, err := store.Put(ctx, sampleEntry("tracker", "act-1", ts))
			require.NoError(t, err)
			assert.True(t, inserted)

			// Same (source name, external id) again: kept once, original wins
			dup := sampleEntry("tracker", "act-1", ts)
			dup.Title = "Replacement that must not land"
			inserted, err = store.Put(ctx, dup)
			require.NoError(t, err)
			assert.False(t, inserted)

			count, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)

			got, err := store.Get(ctx, "tracker", "act-1")
			require.NoError(t, err)
			assert.Equal(t, "Steps: 8200", got.Title)

			// Same external id under a different source is a distinct entry
			inserted, err = store.Put(ctx, sampleEntry("other", "act-1", ts))
			require.NoError(t, err)
			assert.True(t, inserted)
		})
	}
}

func TestStoreGetMissing(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{"sqlite", "memory"} {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			store := storeUnderTest(t, backend)
			_, err := store.Get(context.Background(), "tracker", "nope")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreRejectsIncompleteEntries(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{"sqlite", "memory"} {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			store := storeUnderTest(t, backend)
			ctx := context.Background()

			_, err := store.Put(ctx, nil)
			require.Error(t, err)

			_, err = store.Put(ctx, &Entry{SourceName: "tracker"})
			require.Error(t, err)
		})
	}
}

func TestStorePrune(t *testing.T) {
	t.Parallel()

	for _, backend := range []string{"sqlite", "memory"} {
		t.Run(backend, func(t *testing.T) {
			t.Parallel()

			store := storeUnderTest(t, backend)
			ctx := context.Background()

			old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			recent := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)

			for i, ts := range []time.Time{old, old.Add(time.Hour), recent} {
				_, err := store.Put(ctx, sampleEntry("tracker", string(rune('a'+i)), ts))
				require.NoError(t, err)
			}

			removed, err := store.Prune(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
			require.NoError(t, err)
			assert.Equal(t, 2, removed)

			count, err := store.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}
