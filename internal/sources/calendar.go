package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
	"github.com/lifelog-labs/lifelog-sync-server/internal/httpclient"
)

// calendarProbePath is the endpoint used to verify credentials
const calendarProbePath = "/v1/calendars"

// CalendarSource pulls events from a calendar service API
type CalendarSource struct {
	*baseSource
}

var _ Source = (*CalendarSource)(nil)

// NewCalendarSource creates a calendar source from its configuration
func NewCalendarSource(cfg *config.SourceConfig) (Source, error) {
	if cfg.Type != config.SourceTypeCalendar {
		return nil, fmt.Errorf("invalid source type: expected %s, got %s", config.SourceTypeCalendar, cfg.Type)
	}
	return &CalendarSource{
		baseSource: newBaseSource(cfg, nil),
	}, nil
}

// newCalendarSourceWithClient is used by tests to inject an HTTP client
func newCalendarSourceWithClient(cfg *config.SourceConfig, client httpclient.Client) *CalendarSource {
	return &CalendarSource{
		baseSource: newBaseSource(cfg, client),
	}
}

// Authenticate verifies credentials against the calendars endpoint
func (s *CalendarSource) Authenticate(ctx context.Context) error {
	return s.authenticate(ctx, calendarProbePath)
}

// TestConnection verifies the calendar API is reachable
func (s *CalendarSource) TestConnection(ctx context.Context) error {
	return s.probe(ctx, calendarProbePath)
}

// AvailableDataTypes lists the data types this source can produce
func (*CalendarSource) AvailableDataTypes() []string {
	return []string{DataTypeEvent}
}

// SyncData fetches events in the given range. Malformed events are logged
// and skipped.
func (s *CalendarSource) SyncData(ctx context.Context, start, end *time.Time) ([]IntegrationRecord, error) {
	from, to := syncRange(s.now, start, end)

	query := url.Values{}
	query.Set("from", from.UTC().Format(time.RFC3339))
	query.Set("to", to.UTC().Format(time.RFC3339))

	var events []map[string]any
	if err := s.getJSON(ctx, s.cfg.Endpoint+"/v1/events?"+query.Encode(), &events); err != nil {
		s.finishSync(0, err)
		return nil, err
	}

	records := make([]IntegrationRecord, 0, len(events))
	for i, event := range events {
		record, err := s.parseEvent(event)
		if err != nil {
			slog.Warn("Skipping malformed calendar event",
				"source", s.cfg.Name,
				"index", i,
				"error", err)
			continue
		}
		records = append(records, record)
	}

	s.finishSync(len(records), nil)
	return records, nil
}

// parseEvent converts one vendor event into an IntegrationRecord
func (s *CalendarSource) parseEvent(event map[string]any) (IntegrationRecord, error) {
	id, ok := event["id"].(string)
	if !ok || id == "" {
		return IntegrationRecord{}, fmt.Errorf("missing id")
	}

	startRaw, ok := event["start"].(string)
	if !ok {
		return IntegrationRecord{}, fmt.Errorf("missing start time")
	}
	startTime, err := time.Parse(time.RFC3339, startRaw)
	if err != nil {
		return IntegrationRecord{}, fmt.Errorf("invalid start time %q: %w", startRaw, err)
	}

	processed := map[string]any{}
	for _, key := range []string{"summary", "title", "description", "location", "calendar", "all_day"} {
		if v, ok := event[key]; ok {
			processed[key] = v
		}
	}

	// Event duration, when the end time parses
	if endRaw, ok := event["end"].(string); ok {
		if endTime, err := time.Parse(time.RFC3339, endRaw); err == nil && endTime.After(startTime) {
			processed["duration_minutes"] = endTime.Sub(startTime).Minutes()
		}
	}

	return IntegrationRecord{
		SourceName:       s.cfg.Name,
		SourceID:         id,
		DataType:         DataTypeEvent,
		Timestamp:        startTime,
		RawPayload:       event,
		ProcessedPayload: processed,
		ConfidenceScore:  1.0,
		QualityTier:      QualityTierDevice,
	}, nil
}
