package sync

import (
	"sync"
	"time"
)

// defaultHistoryLimit bounds retained results when no limit is configured
const defaultHistoryLimit = 100

// history is a bounded, append-only list of sync results. Exclusively owned
// by the manager.
type history struct {
	mu      sync.Mutex
	results []Result
	limit   int
}

func newHistory(limit int) *history {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	return &history{
		limit: limit,
	}
}

// Append adds a result, evicting the oldest when over the limit
func (h *history) Append(result Result) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.results = append(h.results, result)
	if len(h.results) > h.limit {
		h.results = h.results[len(h.results)-h.limit:]
	}
}

// Last returns up to n most recent results, newest last
func (h *history) Last(n int) []Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > len(h.results) {
		n = len(h.results)
	}
	out := make([]Result, n)
	copy(out, h.results[len(h.results)-n:])
	return out
}

// LastFor returns up to n most recent results for one source, newest last
func (h *history) LastFor(sourceName string, n int) []Result {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []Result
	for i := len(h.results) - 1; i >= 0 && (n <= 0 || len(out) < n); i-- {
		if h.results[i].SourceName == sourceName {
			out = append(out, h.results[i])
		}
	}

	// Reverse to newest-last
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Prune removes results older than the per-source cutoff and returns how many
// were removed
func (h *history) Prune(cutoffFor func(sourceName string) time.Time) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	kept := h.results[:0]
	removed := 0
	for _, result := range h.results {
		if result.StartedAt.Before(cutoffFor(result.SourceName)) {
			removed++
			continue
		}
		kept = append(kept, result)
	}
	h.results = kept
	return removed
}
