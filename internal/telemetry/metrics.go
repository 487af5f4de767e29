package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SyncMetricsMeterName is the name used for the sync metrics meter
const SyncMetricsMeterName = "github.com/lifelog-labs/lifelog-sync-server/internal/sync"

// SyncMetrics holds the OpenTelemetry instruments for sync operation metrics
type SyncMetrics struct {
	syncDuration  metric.Float64Histogram
	recordsSynced metric.Int64Counter
	healthScore   metric.Int64Gauge
}

// NewSyncMetrics creates a new SyncMetrics instance with the given meter
// provider. If provider is nil, it returns nil (no-op metrics).
func NewSyncMetrics(provider metric.MeterProvider) (*SyncMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(SyncMetricsMeterName)

	syncDuration, err := meter.Float64Histogram(
		"lifelog_sync_duration_seconds",
		metric.WithDescription("Duration of sync operations in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300),
	)
	if err != nil {
		return nil, err
	}

	recordsSynced, err := meter.Int64Counter(
		"lifelog_sync_records_total",
		metric.WithDescription("Number of records fetched by sync operations"),
		metric.WithUnit("{record}"),
	)
	if err != nil {
		return nil, err
	}

	healthScore, err := meter.Int64Gauge(
		"lifelog_source_health_score",
		metric.WithDescription("Current health score per source (0-100)"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return nil, err
	}

	return &SyncMetrics{
		syncDuration:  syncDuration,
		recordsSynced: recordsSynced,
		healthScore:   healthScore,
	}, nil
}

// RecordSyncDuration records the duration of a sync operation for a source
func (m *SyncMetrics) RecordSyncDuration(ctx context.Context, sourceName string, duration time.Duration, success bool) {
	if m == nil || m.syncDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("source", sourceName),
		attribute.Bool("success", success),
	}

	m.syncDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRecordsSynced records how many records a sync operation fetched
func (m *SyncMetrics) RecordRecordsSynced(ctx context.Context, sourceName string, count int64) {
	if m == nil || m.recordsSynced == nil {
		return
	}

	m.recordsSynced.Add(ctx, count, metric.WithAttributes(
		attribute.String("source", sourceName),
	))
}

// RecordHealthScore records the current health score for a source
func (m *SyncMetrics) RecordHealthScore(ctx context.Context, sourceName string, score int64) {
	if m == nil || m.healthScore == nil {
		return
	}

	m.healthScore.Record(ctx, score, metric.WithAttributes(
		attribute.String("source", sourceName),
	))
}
