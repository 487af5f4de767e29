package sources

import (
	"sync"
	"time"
)

// maxRecentErrors bounds the per-source error ring
const maxRecentErrors = 10

// ErrorRecord is one captured source error
type ErrorRecord struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// MetricsSnapshot is a point-in-time copy of a source's metrics
type MetricsSnapshot struct {
	Status        Status        `json:"status"`
	TotalSyncs    int           `json:"totalSyncs"`
	TotalRecords  int           `json:"totalRecords"`
	SyncsToday    int           `json:"syncsToday"`
	RecordsToday  int           `json:"recordsToday"`
	RequestsToday int           `json:"requestsToday"`
	RecentErrors  []ErrorRecord `json:"recentErrors,omitempty"`
	HealthScore   int           `json:"healthScore"`
	UptimePercent float64       `json:"uptimePercent"`
	LastSync      *time.Time    `json:"lastSync,omitempty"`
	LastError     *time.Time    `json:"lastError,omitempty"`
}

// sourceMetrics tracks health and rate-limit state for one source.
// Mutated only by the owning source.
type sourceMetrics struct {
	mu sync.Mutex

	status Status

	totalSyncs      int
	successfulSyncs int
	totalRecords    int

	// Daily counters, reset when counterDate changes
	counterDate   string
	syncsToday    int
	recordsToday  int
	requestsToday int

	// Fixed-capacity ring of recent errors, oldest evicted first
	errorRing  [maxRecentErrors]ErrorRecord
	errorNext  int
	errorCount int

	lastSync  *time.Time
	lastError *time.Time

	now func() time.Time
}

func newSourceMetrics(now func() time.Time) *sourceMetrics {
	if now == nil {
		now = time.Now
	}
	return &sourceMetrics{
		status: StatusDisabled,
		now:    now,
	}
}

// rollover resets daily counters when the date has changed since the last
// update. Callers must hold mu. Detection happens at mutation/read time, so
// an idle period spanning midnight resets on the first touch after it.
func (m *sourceMetrics) rollover() {
	today := m.now().Format(time.DateOnly)
	if m.counterDate != today {
		m.counterDate = today
		m.syncsToday = 0
		m.recordsToday = 0
		m.requestsToday = 0
	}
}

// SetStatus updates the source status
func (m *sourceMetrics) SetStatus(status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// AllowRequest checks the request budget and, when allowed, counts the request
func (m *sourceMetrics) AllowRequest(maxRequests int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollover()
	if maxRequests > 0 && m.requestsToday >= maxRequests {
		return false
	}
	m.requestsToday++
	return true
}

// RecordSync records one completed sync attempt
func (m *sourceMetrics) RecordSync(records int, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollover()
	m.totalSyncs++
	m.syncsToday++
	if success {
		m.successfulSyncs++
		m.totalRecords += records
		m.recordsToday += records
		now := m.now()
		m.lastSync = &now
		m.status = StatusActive
	}
}

// RecordError captures an error in the bounded ring and flips status to error
func (m *sourceMetrics) RecordError(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.errorRing[m.errorNext] = ErrorRecord{Time: now, Message: message}
	m.errorNext = (m.errorNext + 1) % maxRecentErrors
	if m.errorCount < maxRecentErrors {
		m.errorCount++
	}
	m.lastError = &now
	m.status = StatusError
}

// Snapshot returns a copy of the current metrics
func (m *sourceMetrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.rollover()

	snap := MetricsSnapshot{
		Status:        m.status,
		TotalSyncs:    m.totalSyncs,
		TotalRecords:  m.totalRecords,
		SyncsToday:    m.syncsToday,
		RecordsToday:  m.recordsToday,
		RequestsToday: m.requestsToday,
		HealthScore:   m.healthScoreLocked(),
		UptimePercent: m.uptimeLocked(),
	}
	if m.lastSync != nil {
		t := *m.lastSync
		snap.LastSync = &t
	}
	if m.lastError != nil {
		t := *m.lastError
		snap.LastError = &t
	}

	// Oldest first
	if m.errorCount > 0 {
		snap.RecentErrors = make([]ErrorRecord, 0, m.errorCount)
		start := m.errorNext - m.errorCount
		if start < 0 {
			start += maxRecentErrors
		}
		for i := 0; i < m.errorCount; i++ {
			snap.RecentErrors = append(snap.RecentErrors, m.errorRing[(start+i)%maxRecentErrors])
		}
	}

	return snap
}

// healthScoreLocked computes a 0..100 score from sync success ratio and
// recent-error pressure. Callers must hold mu.
func (m *sourceMetrics) healthScoreLocked() int {
	if m.status == StatusDisabled {
		return 0
	}
	if m.totalSyncs == 0 {
		// No attempts yet: healthy unless errors already recorded
		if m.errorCount == 0 {
			return 100
		}
		return 50
	}

	score := int(float64(m.successfulSyncs) / float64(m.totalSyncs) * 100)

	// Recent errors drag the score down even when the long-run ratio is good
	score -= m.errorCount * 3
	if score < 0 {
		score = 0
	}
	return score
}

// uptimeLocked computes the success percentage over all sync attempts.
// Callers must hold mu.
func (m *sourceMetrics) uptimeLocked() float64 {
	if m.totalSyncs == 0 {
		return 100.0
	}
	return float64(m.successfulSyncs) / float64(m.totalSyncs) * 100
}
