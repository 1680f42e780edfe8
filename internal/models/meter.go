package models

import "time"

// DeviceType classifies a registered appliance or sensor.
type DeviceType string

const (
	DeviceHVAC        DeviceType = "hvac"
	DeviceLighting    DeviceType = "lighting"
	DeviceAppliance   DeviceType = "appliance"
	DeviceWaterHeater DeviceType = "water_heater"
	DeviceEVCharger   DeviceType = "ev_charger"
	DeviceSolar       DeviceType = "solar"
	DeviceOther       DeviceType = "other"
)

// DeviceStatistics is the incrementally maintained rolling aggregate for one
// device. It is a cache derived from the readings table and can be rebuilt.
type DeviceStatistics struct {
	TotalConsumed  float64 `json:"totalConsumed"`
	AveragePower   float64 `json:"averagePower"`
	PeakPower      float64 `json:"peakPower"`
	OperatingHours float64 `json:"operatingHours"`
	SampleCount    int64   `json:"sampleCount"`
}

// Device is a registered appliance or sensor monitored through a meter.
type Device struct {
	ID           string           `json:"id"`
	MeterID      string           `json:"meterId"`
	Name         string           `json:"name"`
	Type         DeviceType       `json:"type"`
	Room         string           `json:"room"`
	RatedPower   float64          `json:"ratedPower"`
	Active       bool             `json:"active"`
	Online       bool             `json:"online"`
	EnergySaving bool             `json:"energySaving"`
	Efficiency   float64          `json:"efficiency"`
	Statistics   DeviceStatistics `json:"statistics"`
}

// MeterConfig holds per-meter sampling and alerting configuration.
type MeterConfig struct {
	UpdateInterval time.Duration   `json:"updateInterval"`
	BatchSize      int             `json:"batchSize"`
	Thresholds     AlertThresholds `json:"alertThresholds"`
}

// AlertThresholds are the per-meter trigger levels checked on every accepted
// reading.
type AlertThresholds struct {
	HighUsage   float64 `json:"highUsage"`
	LowVoltage  float64 `json:"lowVoltage"`
	HighVoltage float64 `json:"highVoltage"`
	PowerFactor float64 `json:"powerFactor"`
}

// MeterStatus tracks connectivity and recent errors for a meter.
type MeterStatus struct {
	Online      bool      `json:"online"`
	LastReading time.Time `json:"lastReading"`
	Errors      []string  `json:"errors,omitempty"`
}

// MeterStatistics is the incrementally maintained rolling aggregate for one
// meter. Like DeviceStatistics it is rebuildable from stored readings.
type MeterStatistics struct {
	TotalConsumption  float64   `json:"totalConsumption"`
	AverageDailyUsage float64   `json:"averageDailyUsage"`
	PeakUsage         float64   `json:"peakUsage"`
	CostToDate        float64   `json:"costToDate"`
	SampleCount       int64     `json:"sampleCount"`
	FirstSample       time.Time `json:"firstSample"`
}

// Meter is the aggregation point for one or more devices.
type Meter struct {
	ID         string          `json:"id"`
	Owner      string          `json:"owner"`
	Config     MeterConfig     `json:"config"`
	Status     MeterStatus     `json:"status"`
	Statistics MeterStatistics `json:"statistics"`
}

// MeterReading is the query output summarizing a meter's current state.
type MeterReading struct {
	MeterID           string             `json:"meterId"`
	TotalConsumption  float64            `json:"totalConsumption"`
	CurrentPower      float64            `json:"currentPower"`
	PerDeviceReadings map[string]float64 `json:"perDeviceReadings,omitempty"`
	Quality           QualityCategory    `json:"quality"`
	Timestamp         time.Time          `json:"timestamp"`
}
