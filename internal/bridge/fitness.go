package bridge

import (
	"fmt"

	"github.com/lifelog-labs/lifelog-sync-server/internal/journal"
	"github.com/lifelog-labs/lifelog-sync-server/internal/sources"
)

// measurement describes how one payload field becomes a canonical value.
// Conversions are table-driven so new measurements are one row, not a branch.
type measurement struct {
	payloadKey string
	// factor converts the vendor unit to the canonical unit
	factor float64
	unit   string
	label  string
}

// fitnessMeasurements maps data types to their measurement rules
var fitnessMeasurements = map[string]measurement{
	sources.DataTypeSteps:     {payloadKey: "steps", factor: 1, unit: "steps", label: "Steps"},
	sources.DataTypeSleep:     {payloadKey: "duration_seconds", factor: 1.0 / 60, unit: "min", label: "Sleep"},
	sources.DataTypeWeight:    {payloadKey: "weight_kg", factor: 1, unit: "kg", label: "Weight"},
	sources.DataTypeHeartRate: {payloadKey: "heart_rate_bpm", factor: 1, unit: "bpm", label: "Resting heart rate"},
}

// workoutMeasurements are the candidate headline values for workout records,
// in priority order: the first one present in the payload wins.
var workoutMeasurements = []measurement{
	{payloadKey: "steps", factor: 1, unit: "steps", label: "Workout"},
	{payloadKey: "duration_seconds", factor: 1.0 / 60, unit: "min", label: "Workout"},
	{payloadKey: "distance_meters", factor: 1.0 / 1000, unit: "km", label: "Workout"},
	{payloadKey: "weight_kg", factor: 1, unit: "kg", label: "Workout"},
}

// fitnessCategories buckets data types. Activity covers movement, health
// covers body measurements.
var fitnessCategories = map[string]string{
	sources.DataTypeSteps:     journal.CategoryActivity,
	sources.DataTypeWorkout:   journal.CategoryActivity,
	sources.DataTypeSleep:     journal.CategoryHealth,
	sources.DataTypeWeight:    journal.CategoryHealth,
	sources.DataTypeHeartRate: journal.CategoryHealth,
}

// FitnessPipeline converts tracker records into activity/health entries
type FitnessPipeline struct{}

var _ Pipeline = (*FitnessPipeline)(nil)

// NewFitnessPipeline creates a fitness conversion pipeline
func NewFitnessPipeline() *FitnessPipeline {
	return &FitnessPipeline{}
}

// Convert maps a tracker record. Records with a data type this pipeline does
// not know are dropped silently.
func (*FitnessPipeline) Convert(record sources.IntegrationRecord) (*journal.Entry, error) {
	category, known := fitnessCategories[record.DataType]
	if !known {
		// No mapping for this data type
		return nil, nil
	}

	payload := record.ProcessedPayload
	if payload == nil {
		payload = record.RawPayload
	}

	value, unit, label := headlineValue(record.DataType, payload)

	title, _ := stringFrom(payload, "title")
	if title == "" {
		if value != nil {
			title = fmt.Sprintf("%s: %s %s", label, formatValue(*value), unit)
		} else {
			title = label
		}
	}

	entry := &journal.Entry{
		Category:     category,
		Kind:         record.DataType,
		Title:        title,
		Timestamp:    record.Timestamp,
		NumericValue: value,
		Unit:         unit,
		Tags:         []string{record.SourceName, "external", category},
		ExternalID:   record.SourceID,
		SourceName:   record.SourceName,
	}

	return entry, nil
}

// headlineValue selects the canonical numeric value for a record
func headlineValue(dataType string, payload map[string]any) (*float64, string, string) {
	if m, ok := fitnessMeasurements[dataType]; ok {
		if raw, ok := numberFrom(payload, m.payloadKey); ok {
			v := raw * m.factor
			return &v, m.unit, m.label
		}
		return nil, m.unit, m.label
	}

	// Workouts carry several candidate values; take the highest-priority one
	for _, m := range workoutMeasurements {
		if raw, ok := numberFrom(payload, m.payloadKey); ok {
			v := raw * m.factor
			return &v, m.unit, m.label
		}
	}
	return nil, "", "Workout"
}

// formatValue renders a numeric value without a trailing ".0" for integers
func formatValue(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.1f", v)
}
