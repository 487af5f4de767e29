package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/lifelog-labs/lifelog-sync-server/internal/config"
)

// FileSource imports records from a local JSON export. It needs no
// authentication and gives tests and offline imports a network-free source.
type FileSource struct {
	cfg     *config.SourceConfig
	metrics *sourceMetrics
	now     func() time.Time
}

var _ Source = (*FileSource)(nil)

// fileExport is the on-disk export format
type fileExport struct {
	Records []fileRecord `json:"records"`
}

// fileRecord is one exported record
type fileRecord struct {
	ID        string         `json:"id"`
	DataType  string         `json:"dataType"`
	Timestamp string         `json:"timestamp"`
	Manual    bool           `json:"manual,omitempty"`
	Payload   map[string]any `json:"payload"`
}

// NewFileSource creates a file source from its configuration
func NewFileSource(cfg *config.SourceConfig) (Source, error) {
	if cfg.Type != config.SourceTypeFile {
		return nil, fmt.Errorf("invalid source type: expected %s, got %s", config.SourceTypeFile, cfg.Type)
	}
	return &FileSource{
		cfg:     cfg,
		metrics: newSourceMetrics(time.Now),
		now:     time.Now,
	}, nil
}

// Name returns the configured source name
func (s *FileSource) Name() string {
	return s.cfg.Name
}

// Authenticate is a no-op for file sources
func (s *FileSource) Authenticate(_ context.Context) error {
	s.metrics.SetStatus(StatusActive)
	return nil
}

// TestConnection verifies the export file exists
func (s *FileSource) TestConnection(_ context.Context) error {
	if _, err := os.Stat(s.cfg.Path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("export file not found: %s", s.cfg.Path)
		}
		return fmt.Errorf("failed to stat export file %s: %w", s.cfg.Path, err)
	}
	return nil
}

// CheckRateLimit always allows file reads but still counts them, so status
// output stays meaningful
func (s *FileSource) CheckRateLimit() bool {
	return s.metrics.AllowRequest(0)
}

// AvailableDataTypes lists the data types this source can produce
func (*FileSource) AvailableDataTypes() []string {
	return []string{DataTypeSteps, DataTypeSleep, DataTypeWeight, DataTypeHeartRate, DataTypeWorkout, DataTypeEvent}
}

// Metrics returns a point-in-time snapshot of the source's health metrics
func (s *FileSource) Metrics() MetricsSnapshot {
	return s.metrics.Snapshot()
}

// SyncData reads records from the export file, filtered to the given range.
// Malformed records are logged and skipped.
func (s *FileSource) SyncData(_ context.Context, start, end *time.Time) ([]IntegrationRecord, error) {
	s.CheckRateLimit()

	//nolint:gosec // File path comes from user configuration, this is expected behavior
	data, err := os.ReadFile(s.cfg.Path)
	if err != nil {
		readErr := fmt.Errorf("failed to read export file %s: %w", s.cfg.Path, err)
		if os.IsNotExist(err) {
			readErr = fmt.Errorf("export file not found: %s", s.cfg.Path)
		}
		s.metrics.RecordSync(0, false)
		s.metrics.RecordError(readErr.Error())
		return nil, readErr
	}

	var export fileExport
	if err := json.Unmarshal(data, &export); err != nil {
		parseErr := fmt.Errorf("failed to parse export file %s: %w", s.cfg.Path, err)
		s.metrics.RecordSync(0, false)
		s.metrics.RecordError(parseErr.Error())
		return nil, parseErr
	}

	records := make([]IntegrationRecord, 0, len(export.Records))
	for i, raw := range export.Records {
		record, err := s.parseRecord(raw)
		if err != nil {
			slog.Warn("Skipping malformed export record",
				"source", s.cfg.Name,
				"index", i,
				"error", err)
			continue
		}

		if start != nil && record.Timestamp.Before(*start) {
			continue
		}
		if end != nil && record.Timestamp.After(*end) {
			continue
		}
		records = append(records, record)
	}

	s.metrics.RecordSync(len(records), true)
	return records, nil
}

// parseRecord converts one exported record into an IntegrationRecord
func (s *FileSource) parseRecord(raw fileRecord) (IntegrationRecord, error) {
	if raw.ID == "" {
		return IntegrationRecord{}, fmt.Errorf("missing id")
	}
	if raw.DataType == "" {
		return IntegrationRecord{}, fmt.Errorf("missing dataType")
	}

	timestamp, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return IntegrationRecord{}, fmt.Errorf("invalid timestamp %q: %w", raw.Timestamp, err)
	}

	confidence := 0.95
	tier := QualityTierDevice
	if raw.Manual {
		confidence = 0.6
		tier = QualityTierManual
	}

	payload := raw.Payload
	if payload == nil {
		payload = map[string]any{}
	}

	return IntegrationRecord{
		SourceName:       s.cfg.Name,
		SourceID:         raw.ID,
		DataType:         raw.DataType,
		Timestamp:        timestamp,
		RawPayload:       payload,
		ProcessedPayload: payload,
		ConfidenceScore:  confidence,
		QualityTier:      tier,
	}, nil
}
