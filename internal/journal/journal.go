// Package journal defines the canonical entry model produced by conversion
// pipelines and the deduplicating store that persists it.
package journal

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates no entry exists for the given key
var ErrNotFound = errors.New("journal entry not found")

// Categories assigned by conversion pipelines
const (
	CategoryActivity = "activity"
	CategoryHealth   = "health"
	CategoryEvent    = "event"
	CategoryGeneral  = "general"
)

// Entry is the normalized record produced by a conversion pipeline.
// Entries are immutable once produced.
type Entry struct {
	// Category is the top-level bucket (activity, health, event, general)
	Category string `json:"category"`

	// Kind is the finer-grained type within the category (steps, sleep, meeting, ...)
	Kind string `json:"kind"`

	Title     string    `json:"title"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`

	// NumericValue is the headline measurement, if any
	NumericValue *float64 `json:"numericValue,omitempty"`

	// Unit qualifies NumericValue (steps, min, km, kg, ...)
	Unit string `json:"unit,omitempty"`

	Tags []string `json:"tags,omitempty"`

	// ExternalID and SourceName identify the originating vendor record.
	// The pair is unique within the store.
	ExternalID string `json:"externalId"`
	SourceName string `json:"sourceName"`
}

// Store persists canonical entries, deduplicating on (source name, external id)
type Store interface {
	// Put stores an entry. Returns false when an entry with the same
	// (source name, external id) already exists; the stored entry is kept.
	Put(ctx context.Context, entry *Entry) (bool, error)

	// Get returns the entry for the given (source name, external id)
	Get(ctx context.Context, sourceName, externalID string) (*Entry, error)

	// Count returns the total number of stored entries
	Count(ctx context.Context) (int, error)

	// Prune removes entries older than the cutoff and returns how many were removed
	Prune(ctx context.Context, cutoff time.Time) (int, error)

	// Close releases store resources
	Close() error
}
