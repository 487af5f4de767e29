// Package sources defines the integration-source contract and the built-in
// vendor source implementations.
//
// A Source owns its credentials, rate-limit counters, and health metrics.
// The sync manager orchestrates sources but never reaches into their state.
package sources

import (
	"context"
	"errors"
	"time"

	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
)

// ErrRateLimited indicates the source's request budget is exhausted. It is an
// expected condition, not a fault: callers surface it as a tagged result and
// must not count it as an error.
var ErrRateLimited = errors.New("rate limit exceeded")

// ErrUnknownSource indicates no factory is registered for a source type
var ErrUnknownSource = errors.New("unknown source type")

// Data types produced by the built-in sources
const (
	DataTypeSteps     = "steps"
	DataTypeSleep     = "sleep"
	DataTypeWeight    = "weight"
	DataTypeHeartRate = "heart_rate"
	DataTypeWorkout   = "workout"
	DataTypeEvent     = "event"
)

// Quality tiers assigned to integration records
const (
	QualityTierDevice = "device"
	QualityTierManual = "manual"
)

// Status represents the health state of a source
type Status string

const (
	// StatusActive means the source is authenticated and syncing normally
	StatusActive Status = "active"

	// StatusError means the last authenticate or sync attempt failed
	StatusError Status = "error"

	// StatusDisabled means the source is registered but not participating in syncs
	StatusDisabled Status = "disabled"
)

// IntegrationRecord is one raw unit of data fetched from a source before
// normalization. Immutable once produced.
type IntegrationRecord struct {
	// SourceName identifies the producing source
	SourceName string `json:"sourceName"`

	// SourceID is the vendor-assigned unique id for this record
	SourceID string `json:"sourceId"`

	// DataType is one of the DataType constants
	DataType string `json:"dataType"`

	Timestamp time.Time `json:"timestamp"`

	// RawPayload is the vendor payload as fetched
	RawPayload map[string]any `json:"rawPayload"`

	// ProcessedPayload holds normalized fields extracted by the source
	ProcessedPayload map[string]any `json:"processedPayload,omitempty"`

	// ConfidenceScore is in [0, 1]
	ConfidenceScore float64 `json:"confidenceScore"`

	// QualityTier is one of the QualityTier constants
	QualityTier string `json:"qualityTier"`
}

// Authenticator is the authentication capability of a source
type Authenticator interface {
	// Authenticate establishes or refreshes the source's credentials.
	// A failure is recorded in the source's metrics and flips its status to
	// error; implementations never panic.
	Authenticate(ctx context.Context) error
}

// RateLimited is the request-budget capability of a source
type RateLimited interface {
	// CheckRateLimit reports whether the source may issue another request.
	// Daily counters roll over when the date changes.
	CheckRateLimit() bool
}

// Syncer is the data-fetch capability of a source
type Syncer interface {
	// SyncData fetches records in the given range. Nil bounds select the
	// source's default range. Malformed items are logged and skipped; they
	// never abort the whole call.
	SyncData(ctx context.Context, start, end *time.Time) ([]IntegrationRecord, error)
}

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks -source=types.go Source

// Source is one pluggable vendor integration
type Source interface {
	Authenticator
	RateLimited
	Syncer

	// Name returns the configured source name
	Name() string

	// TestConnection verifies the source endpoint is reachable
	TestConnection(ctx context.Context) error

	// AvailableDataTypes lists the data types this source can produce
	AvailableDataTypes() []string

	// Metrics returns a point-in-time snapshot of the source's health metrics
	Metrics() MetricsSnapshot
}

// Factory constructs a Source from its configuration
type Factory func(cfg *config.SourceConfig) (Source, error)
