// Package quality validates raw readings and scores their trustworthiness.
package quality

import (
	"math"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// Scoring penalties. A reading starts at 100 and loses points per band.
const (
	maxScore = 100

	voltageNominalLow  = 115.0
	voltageNominalHigh = 125.0
	voltageWideLow     = 110.0
	voltageWideHigh    = 130.0

	frequencyNominalLow  = 59.9
	frequencyNominalHigh = 60.1
	frequencyWideLow     = 59.8
	frequencyWideHigh    = 60.2

	powerFactorGood = 0.8
	powerFactorFair = 0.7
)

// Anomaly flag limits, independent of the quality score.
const (
	voltageAnomalyLow    = 100.0
	voltageAnomalyHigh   = 140.0
	frequencyAnomalyLow  = 59.0
	frequencyAnomalyHigh = 61.0
	powerFactorAnomaly   = 0.5
	highPowerWatts       = 10000.0
)

// Validate rejects malformed readings before they reach the queue or the
// store. Degraded electrical values are NOT rejected here; they only lower
// the quality score.
func Validate(raw *models.RawReading) error {
	if raw.MeterID == "" {
		return &models.ValidationError{Field: "meterId", Reason: "is required"}
	}
	if raw.Timestamp.IsZero() {
		return &models.ValidationError{Field: "timestamp", Reason: "is required"}
	}
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"power", raw.Power},
		{"voltage", raw.Voltage},
		{"current", raw.Current},
		{"frequency", raw.Frequency},
		{"powerFactor", raw.PowerFactor},
		{"consumptionDelta", raw.Consumption},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &models.ValidationError{Field: f.name, Reason: "is not a finite number"}
		}
		if f.value < 0 {
			return &models.ValidationError{Field: f.name, Reason: "must not be negative"}
		}
	}
	if raw.PowerFactor > 1 {
		return &models.ValidationError{Field: "powerFactor", Reason: "must not exceed 1"}
	}
	return nil
}

// Score computes the quality score for a reading. The score starts at 100;
// each electrical parameter outside its nominal band costs points.
func Score(raw *models.RawReading) int {
	score := maxScore

	switch {
	case raw.Voltage < voltageWideLow || raw.Voltage > voltageWideHigh:
		score -= 20
	case raw.Voltage < voltageNominalLow || raw.Voltage > voltageNominalHigh:
		score -= 10
	}

	switch {
	case raw.Frequency < frequencyWideLow || raw.Frequency > frequencyWideHigh:
		score -= 20
	case raw.Frequency < frequencyNominalLow || raw.Frequency > frequencyNominalHigh:
		score -= 10
	}

	switch {
	case raw.PowerFactor < powerFactorFair:
		score -= 20
	case raw.PowerFactor < powerFactorGood:
		score -= 10
	}

	return score
}

// Categorize maps a quality score to its category.
func Categorize(score int) models.QualityCategory {
	switch {
	case score >= 90:
		return models.QualityExcellent
	case score >= 75:
		return models.QualityGood
	case score >= 60:
		return models.QualityFair
	default:
		return models.QualityPoor
	}
}

// Tags returns the anomaly tags for a reading. Tags are non-exclusive and do
// not affect the quality score.
func Tags(raw *models.RawReading) []string {
	var tags []string
	if raw.Voltage < voltageAnomalyLow || raw.Voltage > voltageAnomalyHigh {
		tags = append(tags, models.TagVoltageOutOfRange)
	}
	if raw.Frequency < frequencyAnomalyLow || raw.Frequency > frequencyAnomalyHigh {
		tags = append(tags, models.TagFrequencyAnomaly)
	}
	if raw.PowerFactor < powerFactorAnomaly {
		tags = append(tags, models.TagPoorPowerFactor)
	}
	if raw.Power > highPowerWatts {
		tags = append(tags, models.TagHighPowerConsumption)
	}
	return tags
}

// Assess validates and scores a raw reading and, when valid, returns the
// accepted immutable Reading with its identity, category and anomaly tags. A
// degraded reading is still accepted; downstream consumers weight it by its
// category.
func Assess(raw *models.RawReading) (*models.Reading, error) {
	if err := Validate(raw); err != nil {
		return nil, err
	}
	return &models.Reading{
		ID:          models.ReadingID(raw.MeterID, raw.DeviceID, raw.Timestamp),
		MeterID:     raw.MeterID,
		DeviceID:    raw.DeviceID,
		Timestamp:   raw.Timestamp.UTC(),
		Power:       raw.Power,
		Voltage:     raw.Voltage,
		Current:     raw.Current,
		Frequency:   raw.Frequency,
		PowerFactor: raw.PowerFactor,
		Consumption: raw.Consumption,
		Quality:     Categorize(Score(raw)),
		AnomalyTags: Tags(raw),
	}, nil
}
