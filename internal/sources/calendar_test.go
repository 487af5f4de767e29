package sources

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
)

func calendarConfig() *config.SourceConfig {
	return &config.SourceConfig{
		Name:     "work-cal",
		Type:     config.SourceTypeCalendar,
		Enabled:  true,
		Endpoint: "https://calendar.example.com",
		Auth:     &config.AuthConfig{AccessToken: "token"},
	}
}

func TestCalendarSyncData(t *testing.T) {
	t.Parallel()

	events := `[
		{
			"id": "evt-1",
			"summary": "Morning run",
			"start": "2026-03-09T06:30:00Z",
			"end": "2026-03-09T07:15:00Z",
			"location": "Park"
		},
		{"id": "evt-2", "summary": "No start time"},
		{"id": "evt-3", "summary": "All day", "start": "2026-03-10T00:00:00Z", "all_day": true}
	]`

	client := &fakeClient{
		handler: func(_ int, url, _ string) ([]byte, error) {
			require.Contains(t, url, "/v1/events?")
			require.Contains(t, url, "from=")
			require.Contains(t, url, "to=")
			return []byte(events), nil
		},
	}

	src := newCalendarSourceWithClient(calendarConfig(), client)

	records, err := src.SyncData(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, "work-cal", first.SourceName)
	assert.Equal(t, "evt-1", first.SourceID)
	assert.Equal(t, DataTypeEvent, first.DataType)
	assert.Equal(t, time.Date(2026, 3, 9, 6, 30, 0, 0, time.UTC), first.Timestamp)
	assert.Equal(t, "Morning run", first.ProcessedPayload["summary"])
	assert.Equal(t, "Park", first.ProcessedPayload["location"])
	assert.InDelta(t, 45.0, first.ProcessedPayload["duration_minutes"].(float64), 0.001)
	assert.InDelta(t, 1.0, first.ConfidenceScore, 0.001)

	// No end time means no duration
	_, hasDuration := records[1].ProcessedPayload["duration_minutes"]
	assert.False(t, hasDuration)

	snap := src.Metrics()
	assert.Equal(t, 1, snap.TotalSyncs)
	assert.Equal(t, 2, snap.TotalRecords)
}

func TestCalendarAvailableDataTypes(t *testing.T) {
	t.Parallel()

	src := newCalendarSourceWithClient(calendarConfig(), &fakeClient{})
	assert.Equal(t, []string{DataTypeEvent}, src.AvailableDataTypes())
}

func TestNewCalendarSourceRejectsWrongType(t *testing.T) {
	t.Parallel()

	_, err := NewCalendarSource(&config.SourceConfig{Name: "x", Type: config.SourceTypeFile})
	require.Error(t, err)
}
