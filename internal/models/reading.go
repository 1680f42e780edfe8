// Package models defines data structures and domain types.
package models

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// QualityCategory is the heuristic trustworthiness rating of a reading.
type QualityCategory string

const (
	// QualityExcellent indicates a quality score of 90 or above.
	QualityExcellent QualityCategory = "excellent"
	// QualityGood indicates a quality score of 75 or above.
	QualityGood QualityCategory = "good"
	// QualityFair indicates a quality score of 60 or above.
	QualityFair QualityCategory = "fair"
	// QualityPoor indicates a quality score below 60.
	QualityPoor QualityCategory = "poor"
)

// Anomaly tags attached to readings by the quality scorer. Tags are
// non-exclusive and independent of the quality score.
const (
	TagVoltageOutOfRange    = "voltage_out_of_range"
	TagFrequencyAnomaly     = "frequency_anomaly"
	TagPoorPowerFactor      = "poor_power_factor"
	TagHighPowerConsumption = "high_power_consumption"
)

// RawReading is the ingestion input: one sample as emitted by a device or
// meter, before validation and quality scoring.
type RawReading struct {
	Timestamp   time.Time `json:"timestamp"`
	Power       float64   `json:"power"`
	Voltage     float64   `json:"voltage"`
	Current     float64   `json:"current"`
	Frequency   float64   `json:"frequency"`
	PowerFactor float64   `json:"powerFactor"`
	Consumption float64   `json:"consumptionDelta"`
	DeviceID    string    `json:"deviceId,omitempty"`
	MeterID     string    `json:"meterId"`
}

// Reading is one accepted sample. Immutable once accepted; appended to the
// telemetry store and only ever removed by retention pruning.
type Reading struct {
	ID          string          `json:"id"`
	MeterID     string          `json:"meterId"`
	DeviceID    string          `json:"deviceId,omitempty"`
	Timestamp   time.Time       `json:"timestamp"`
	Power       float64         `json:"power"`
	Voltage     float64         `json:"voltage"`
	Current     float64         `json:"current"`
	Frequency   float64         `json:"frequency"`
	PowerFactor float64         `json:"powerFactor"`
	Consumption float64         `json:"consumptionDelta"`
	Quality     QualityCategory `json:"quality"`
	AnomalyTags []string        `json:"anomalyTags,omitempty"`
}

// ReadingID derives the deterministic identity of a reading from its meter,
// device and timestamp. Replayed queue entries map to the same identity, so
// the store can deduplicate on retry.
func ReadingID(meterID, deviceID string, ts time.Time) string {
	data := fmt.Sprintf("%s:%s:%d", meterID, deviceID, ts.UnixNano())
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("rdg_%x", hash[:12])
}

// ValidationError describes a malformed reading rejected before it reaches
// the queue or the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid reading: %s %s", e.Field, e.Reason)
}
