package models

import "time"

// Metric names the series a trend, benchmark or forecast is derived from.
type Metric string

const (
	MetricConsumption Metric = "consumption"
	MetricCost        Metric = "cost"
	MetricEfficiency  Metric = "efficiency"
)

// PatternType classifies a recurring time-of-day consumption regime.
type PatternType string

const (
	PatternPeak     PatternType = "peak"
	PatternValley   PatternType = "valley"
	PatternSteady   PatternType = "steady"
	PatternVariable PatternType = "variable"
)

// ConsumptionPattern is a derived time-of-day consumption regime.
type ConsumptionPattern struct {
	Name        string      `json:"name"`
	Type        PatternType `json:"type"`
	StartHour   int         `json:"startHour"`
	EndHour     int         `json:"endHour"`
	AverageKWh  float64     `json:"averageConsumption"`
	Confidence  float64     `json:"confidence"`
	Seasonality string      `json:"seasonality,omitempty"`
}

// TrendDirection is the direction of change of a metric over a window.
type TrendDirection string

const (
	TrendIncreasing TrendDirection = "increasing"
	TrendDecreasing TrendDirection = "decreasing"
	TrendStable     TrendDirection = "stable"
)

// TrendSignificance grades how meaningful a trend's magnitude is for its
// metric.
type TrendSignificance string

const (
	SignificanceLow      TrendSignificance = "low"
	SignificanceModerate TrendSignificance = "moderate"
	SignificanceHigh     TrendSignificance = "high"
	SignificanceCritical TrendSignificance = "critical"
)

// EnergyTrend is the derived directional change of a metric.
type EnergyTrend struct {
	Metric       Metric            `json:"metric"`
	Direction    TrendDirection    `json:"direction"`
	Magnitude    float64           `json:"magnitude"`
	Significance TrendSignificance `json:"significance"`
	Factors      []string          `json:"factors,omitempty"`
}

// BenchmarkRanking grades a user's aggregate against a reference value.
type BenchmarkRanking string

const (
	RankExcellent    BenchmarkRanking = "excellent"
	RankGood         BenchmarkRanking = "good"
	RankAverage      BenchmarkRanking = "average"
	RankBelowAverage BenchmarkRanking = "below_average"
	RankPoor         BenchmarkRanking = "poor"
)

// BenchmarkComparison ranks a user's aggregate against one reference
// population value.
type BenchmarkComparison struct {
	Category    Metric           `json:"category"`
	Reference   string           `json:"reference"`
	UserValue   float64          `json:"userValue"`
	RefValue    float64          `json:"referenceValue"`
	Percentile  float64          `json:"percentile"`
	Ranking     BenchmarkRanking `json:"ranking"`
	Improvement float64          `json:"improvementOpportunity"`
}

// InsightCategory classifies a surfaced insight.
type InsightCategory string

const (
	InsightAnomaly      InsightCategory = "anomaly"
	InsightTrend        InsightCategory = "trend"
	InsightOptimization InsightCategory = "optimization"
	InsightPrediction   InsightCategory = "prediction"
)

// InsightSeverity is the alert level attached to an insight.
type InsightSeverity string

const (
	SeverityInfo     InsightSeverity = "info"
	SeverityMedium   InsightSeverity = "medium"
	SeverityHigh     InsightSeverity = "high"
	SeverityWarning  InsightSeverity = "warning"
	SeverityCritical InsightSeverity = "critical"
)

// Insight is an anomaly, trend, optimization or prediction surfaced to
// downstream consumers. Triggering values are attached for auditability.
type Insight struct {
	ID              string            `json:"id"`
	MeterID         string            `json:"meterId"`
	Category        InsightCategory   `json:"category"`
	Severity        InsightSeverity   `json:"severity"`
	Confidence      float64           `json:"confidence"`
	Description     string            `json:"description"`
	Recommendations []string          `json:"recommendations,omitempty"`
	Values          map[string]float64 `json:"values,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// EnergyDataPoint is one bucket of derived time-series data served to
// analytics consumers.
type EnergyDataPoint struct {
	Timestamp       time.Time          `json:"timestamp"`
	Consumption     float64            `json:"consumption"`
	Cost            float64            `json:"cost"`
	PowerDemand     float64            `json:"powerDemand"`
	Efficiency      float64            `json:"efficiency"`
	CarbonFootprint float64            `json:"carbonFootprint"`
	DeviceBreakdown map[string]float64 `json:"deviceBreakdown,omitempty"`
}
