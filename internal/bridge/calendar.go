package bridge

import (
	"github.com/lifelog-labs/lifelog-sync-server/internal/journal"
	"github.com/lifelog-labs/lifelog-sync-server/internal/sources"
)

// eventCategoryKeywords buckets events by title keywords, checked in order.
// The first matching row wins; unmatched events stay in the event category.
var eventCategoryKeywords = []struct {
	category string
	keywords []string
}{
	{journal.CategoryActivity, []string{"gym", "run", "ride", "workout", "training", "yoga", "swim", "hike"}},
	{journal.CategoryHealth, []string{"doctor", "dentist", "therapy", "checkup", "vaccination"}},
}

// CalendarPipeline converts calendar events into journal entries
type CalendarPipeline struct{}

var _ Pipeline = (*CalendarPipeline)(nil)

// NewCalendarPipeline creates a calendar conversion pipeline
func NewCalendarPipeline() *CalendarPipeline {
	return &CalendarPipeline{}
}

// Convert maps a calendar event. Non-event records reaching this pipeline are
// dropped silently.
func (*CalendarPipeline) Convert(record sources.IntegrationRecord) (*journal.Entry, error) {
	if record.DataType != sources.DataTypeEvent {
		return nil, nil
	}

	payload := record.ProcessedPayload
	if payload == nil {
		payload = record.RawPayload
	}

	title, _ := stringFrom(payload, "summary")
	if title == "" {
		title, _ = stringFrom(payload, "title")
	}
	if title == "" {
		title = "Untitled event"
	}

	content, _ := stringFrom(payload, "description")
	if location, ok := stringFrom(payload, "location"); ok && location != "" {
		if content != "" {
			content += "\n"
		}
		content += "Location: " + location
	}

	category := journal.CategoryEvent
	for _, row := range eventCategoryKeywords {
		if containsKeyword(title, row.keywords) {
			category = row.category
			break
		}
	}

	entry := &journal.Entry{
		Category:   category,
		Kind:       sources.DataTypeEvent,
		Title:      title,
		Content:    content,
		Timestamp:  record.Timestamp,
		Tags:       []string{record.SourceName, "external", "calendar"},
		ExternalID: record.SourceID,
		SourceName: record.SourceName,
	}

	if minutes, ok := numberFrom(payload, "duration_minutes"); ok {
		entry.NumericValue = &minutes
		entry.Unit = "min"
	}

	return entry, nil
}
