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

// fitnessProbePath is the endpoint used to verify credentials
const fitnessProbePath = "/v1/profile"

// FitnessSource pulls activity and health measurements from a tracker API.
// The API exposes a single activities feed with typed items.
type FitnessSource struct {
	*baseSource
}

var _ Source = (*FitnessSource)(nil)

// NewFitnessSource creates a fitness source from its configuration
func NewFitnessSource(cfg *config.SourceConfig) (Source, error) {
	if cfg.Type != config.SourceTypeFitness {
		return nil, fmt.Errorf("invalid source type: expected %s, got %s", config.SourceTypeFitness, cfg.Type)
	}
	return &FitnessSource{
		baseSource: newBaseSource(cfg, nil),
	}, nil
}

// newFitnessSourceWithClient is used by tests to inject an HTTP client
func newFitnessSourceWithClient(cfg *config.SourceConfig, client httpclient.Client) *FitnessSource {
	return &FitnessSource{
		baseSource: newBaseSource(cfg, client),
	}
}

// Authenticate verifies credentials against the profile endpoint
func (s *FitnessSource) Authenticate(ctx context.Context) error {
	return s.authenticate(ctx, fitnessProbePath)
}

// TestConnection verifies the tracker API is reachable
func (s *FitnessSource) TestConnection(ctx context.Context) error {
	return s.probe(ctx, fitnessProbePath)
}

// AvailableDataTypes lists the data types this source can produce
func (*FitnessSource) AvailableDataTypes() []string {
	return []string{DataTypeSteps, DataTypeSleep, DataTypeWeight, DataTypeHeartRate, DataTypeWorkout}
}

// SyncData fetches activity items in the given range. Malformed items are
// logged and skipped.
func (s *FitnessSource) SyncData(ctx context.Context, start, end *time.Time) ([]IntegrationRecord, error) {
	from, to := syncRange(s.now, start, end)

	query := url.Values{}
	query.Set("start", from.UTC().Format(time.RFC3339))
	query.Set("end", to.UTC().Format(time.RFC3339))

	var items []map[string]any
	if err := s.getJSON(ctx, s.cfg.Endpoint+"/v1/activities?"+query.Encode(), &items); err != nil {
		s.finishSync(0, err)
		return nil, err
	}

	records := make([]IntegrationRecord, 0, len(items))
	for i, item := range items {
		record, err := s.parseItem(item)
		if err != nil {
			slog.Warn("Skipping malformed activity item",
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

// parseItem converts one vendor activity item into an IntegrationRecord
func (s *FitnessSource) parseItem(item map[string]any) (IntegrationRecord, error) {
	id, ok := item["id"].(string)
	if !ok || id == "" {
		return IntegrationRecord{}, fmt.Errorf("missing id")
	}

	dataType, ok := item["type"].(string)
	if !ok || dataType == "" {
		return IntegrationRecord{}, fmt.Errorf("missing type")
	}

	tsRaw, ok := item["timestamp"].(string)
	if !ok {
		return IntegrationRecord{}, fmt.Errorf("missing timestamp")
	}
	timestamp, err := time.Parse(time.RFC3339, tsRaw)
	if err != nil {
		return IntegrationRecord{}, fmt.Errorf("invalid timestamp %q: %w", tsRaw, err)
	}

	// Device-reported measurements are trusted more than manual entries
	confidence := 0.95
	tier := QualityTierDevice
	if manual, _ := item["manual"].(bool); manual {
		confidence = 0.6
		tier = QualityTierManual
	}

	processed := map[string]any{}
	for _, key := range []string{"steps", "duration_seconds", "distance_meters", "weight_kg", "heart_rate_bpm", "calories", "title"} {
		if v, ok := item[key]; ok {
			processed[key] = v
		}
	}

	return IntegrationRecord{
		SourceName:       s.cfg.Name,
		SourceID:         id,
		DataType:         dataType,
		Timestamp:        timestamp,
		RawPayload:       item,
		ProcessedPayload: processed,
		ConfidenceScore:  confidence,
		QualityTier:      tier,
	}, nil
}
