package sync

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryBounded(t *testing.T) {
	t.Parallel()

	h := newHistory(5)
	for i := 0; i < 8; i++ {
		h.Append(Result{SourceName: fmt.Sprintf("s%d", i)})
	}

	last := h.Last(0)
	require.Len(t, last, 5)
	assert.Equal(t, "s3", last[0].SourceName)
	assert.Equal(t, "s7", last[4].SourceName)
}

func TestHistoryLast(t *testing.T) {
	t.Parallel()

	h := newHistory(10)
	for i := 0; i < 4; i++ {
		h.Append(Result{SourceName: fmt.Sprintf("s%d", i)})
	}

	last := h.Last(2)
	require.Len(t, last, 2)
	assert.Equal(t, "s2", last[0].SourceName)
	assert.Equal(t, "s3", last[1].SourceName)

	// Requesting more than stored returns everything
	assert.Len(t, h.Last(100), 4)
}

func TestHistoryLastFor(t *testing.T) {
	t.Parallel()

	h := newHistory(10)
	h.Append(Result{SourceName: "a", RecordsSynced: 1})
	h.Append(Result{SourceName: "b", RecordsSynced: 2})
	h.Append(Result{SourceName: "a", RecordsSynced: 3})
	h.Append(Result{SourceName: "a", RecordsSynced: 4})

	results := h.LastFor("a", 2)
	require.Len(t, results, 2)
	// Newest last
	assert.Equal(t, 3, results[0].RecordsSynced)
	assert.Equal(t, 4, results[1].RecordsSynced)

	assert.Empty(t, h.LastFor("missing", 5))
}

func TestHistoryPrune(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	h := newHistory(10)
	h.Append(Result{SourceName: "a", StartedAt: now.AddDate(0, 0, -40)})
	h.Append(Result{SourceName: "a", StartedAt: now.AddDate(0, 0, -10)})
	h.Append(Result{SourceName: "b", StartedAt: now.AddDate(0, 0, -40)})

	// Source b retains longer than source a
	removed := h.Prune(func(sourceName string) time.Time {
		if sourceName == "b" {
			return now.AddDate(0, 0, -60)
		}
		return now.AddDate(0, 0, -30)
	})

	assert.Equal(t, 1, removed)
	assert.Len(t, h.LastFor("a", 0), 1)
	assert.Len(t, h.LastFor("b", 0), 1)
}

func TestHistoryDefaultLimit(t *testing.T) {
	t.Parallel()

	h := newHistory(0)
	for i := 0; i < defaultHistoryLimit+20; i++ {
		h.Append(Result{SourceName: "a"})
	}
	assert.Len(t, h.Last(0), defaultHistoryLimit)
}
