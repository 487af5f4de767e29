package sources

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
)

func TestNewFitnessSourceRejectsWrongType(t *testing.T) {
	t.Parallel()

	_, err := NewFitnessSource(&config.SourceConfig{Name: "x", Type: config.SourceTypeCalendar})
	require.Error(t, err)
}

func TestFitnessSyncData(t *testing.T) {
	t.Parallel()

	activities := `[
		{"id": "act-1", "type": "steps", "timestamp": "2026-03-09T08:00:00Z", "steps": 9500},
		{"id": "act-2", "type": "weight", "timestamp": "2026-03-09T07:00:00Z", "weight_kg": 72.4, "manual": true},
		{"type": "sleep", "timestamp": "2026-03-09T06:00:00Z"},
		{"id": "act-4", "type": "workout", "timestamp": "not-a-time"}
	]`

	client := &fakeClient{
		handler: func(_ int, url, _ string) ([]byte, error) {
			require.Contains(t, url, "/v1/activities?")
			require.Contains(t, url, "start=")
			require.Contains(t, url, "end=")
			return []byte(activities), nil
		},
	}

	src := newFitnessSourceWithClient(fitnessConfig(&config.AuthConfig{AccessToken: "token"}), client)

	records, err := src.SyncData(context.Background(), nil, nil)
	require.NoError(t, err)

	// Malformed items are skipped, not fatal
	require.Len(t, records, 2)

	assert.Equal(t, "tracker", records[0].SourceName)
	assert.Equal(t, "act-1", records[0].SourceID)
	assert.Equal(t, DataTypeSteps, records[0].DataType)
	assert.Equal(t, QualityTierDevice, records[0].QualityTier)
	assert.InDelta(t, 0.95, records[0].ConfidenceScore, 0.001)
	assert.Equal(t, float64(9500), records[0].ProcessedPayload["steps"])

	// Manual entries are trusted less
	assert.Equal(t, QualityTierManual, records[1].QualityTier)
	assert.InDelta(t, 0.6, records[1].ConfidenceScore, 0.001)

	snap := src.Metrics()
	assert.Equal(t, 1, snap.TotalSyncs)
	assert.Equal(t, 2, snap.TotalRecords)
	assert.Empty(t, snap.RecentErrors)
}

func TestFitnessSyncDataRateLimited(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		handler: func(_ int, _, _ string) ([]byte, error) {
			return []byte(`[]`), nil
		},
	}

	cfg := fitnessConfig(&config.AuthConfig{AccessToken: "token"})
	cfg.RateLimit = &config.RateLimitConfig{MaxRequests: 1}
	src := newFitnessSourceWithClient(cfg, client)

	_, err := src.SyncData(context.Background(), nil, nil)
	require.NoError(t, err)

	_, err = src.SyncData(context.Background(), nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)

	// Expected condition: no error recorded, sync counters untouched
	snap := src.Metrics()
	assert.Equal(t, 1, snap.TotalSyncs)
	assert.Empty(t, snap.RecentErrors)
}

func TestFitnessSyncDataMalformedResponse(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		handler: func(_ int, _, _ string) ([]byte, error) {
			return []byte(`not json`), nil
		},
	}

	src := newFitnessSourceWithClient(fitnessConfig(&config.AuthConfig{AccessToken: "token"}), client)

	_, err := src.SyncData(context.Background(), nil, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "failed to parse response"))

	snap := src.Metrics()
	assert.Equal(t, 1, snap.TotalSyncs)
	assert.Equal(t, StatusError, snap.Status)
	require.Len(t, snap.RecentErrors, 1)
}

func TestFitnessAvailableDataTypes(t *testing.T) {
	t.Parallel()

	src := newFitnessSourceWithClient(fitnessConfig(nil), &fakeClient{})
	assert.Equal(t, []string{DataTypeSteps, DataTypeSleep, DataTypeWeight, DataTypeHeartRate, DataTypeWorkout},
		src.AvailableDataTypes())
}
