// Package bridge maps raw vendor records to canonical journal entries.
//
// Conversion is a strategy dispatch: one pipeline per source name plus a
// generic fallback, so records from unmapped sources degrade gracefully
// instead of being dropped.
package bridge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/lifelog-labs/lifelog-sync-server/internal/journal"
	"github.com/lifelog-labs/lifelog-sync-server/internal/sources"
)

// Pipeline converts one raw record into a canonical entry.
// A nil entry with a nil error means "no mapping, drop silently".
// Conversion must be pure: converting the same record twice yields
// field-identical entries.
type Pipeline interface {
	Convert(record sources.IntegrationRecord) (*journal.Entry, error)
}

// Bridge dispatches records to pipelines by source name
type Bridge struct {
	mu        sync.RWMutex
	pipelines map[string]Pipeline
	fallback  Pipeline
}

// New creates a bridge with the generic fallback pipeline
func New() *Bridge {
	return &Bridge{
		pipelines: make(map[string]Pipeline),
		fallback:  &DefaultPipeline{},
	}
}

// Register maps a source name to a pipeline, replacing any existing mapping
func (b *Bridge) Register(sourceName string, pipeline Pipeline) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pipelines[sourceName] = pipeline
}

// Convert dispatches the record to its source's pipeline, falling back to the
// default pipeline for unmapped sources. Unmapped sources are never an error.
func (b *Bridge) Convert(record sources.IntegrationRecord) (*journal.Entry, error) {
	b.mu.RLock()
	pipeline, ok := b.pipelines[record.SourceName]
	b.mu.RUnlock()

	if !ok {
		pipeline = b.fallback
	}

	return pipeline.Convert(record)
}

// DefaultPipeline is the generic fallback conversion. It extracts a title and
// content from common payload fields and buckets everything under the general
// category.
type DefaultPipeline struct{}

var _ Pipeline = (*DefaultPipeline)(nil)

// maxDescriptionTitle bounds titles derived from descriptions
const maxDescriptionTitle = 50

// Convert maps a record using generic payload fields
func (*DefaultPipeline) Convert(record sources.IntegrationRecord) (*journal.Entry, error) {
	payload := record.ProcessedPayload
	if payload == nil {
		payload = record.RawPayload
	}

	title := titleFrom(payload, record)
	content, _ := stringFrom(payload, "content")
	if content == "" {
		content, _ = stringFrom(payload, "description")
	}

	return &journal.Entry{
		Category:   journal.CategoryGeneral,
		Kind:       record.DataType,
		Title:      title,
		Content:    content,
		Timestamp:  record.Timestamp,
		Tags:       []string{record.SourceName, "external", "auto-recorded"},
		ExternalID: record.SourceID,
		SourceName: record.SourceName,
	}, nil
}

// titleFrom selects a title from the payload: title, then summary, then the
// first 50 characters of the description
func titleFrom(payload map[string]any, record sources.IntegrationRecord) string {
	if title, ok := stringFrom(payload, "title"); ok && title != "" {
		return title
	}
	if summary, ok := stringFrom(payload, "summary"); ok && summary != "" {
		return summary
	}
	if desc, ok := stringFrom(payload, "description"); ok && desc != "" {
		if len(desc) > maxDescriptionTitle {
			return desc[:maxDescriptionTitle]
		}
		return desc
	}
	return fmt.Sprintf("%s from %s", record.DataType, record.SourceName)
}

// stringFrom reads a string field from a payload map
func stringFrom(payload map[string]any, key string) (string, bool) {
	if payload == nil {
		return "", false
	}
	v, ok := payload[key].(string)
	return v, ok
}

// numberFrom reads a numeric field from a payload map. JSON decoding yields
// float64 for all numbers; integers stored programmatically are handled too.
func numberFrom(payload map[string]any, key string) (float64, bool) {
	if payload == nil {
		return 0, false
	}
	switch v := payload[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// containsKeyword reports whether the text contains any of the keywords,
// case-insensitively
func containsKeyword(text string, keywords []string) bool {
	lowered := strings.ToLower(text)
	for _, keyword := range keywords {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}
