package analytics

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// Forecast confidence is a fixed heuristic per metric, not statistically
// derived.
var forecastConfidence = map[models.Metric]float64{
	models.MetricConsumption: 78,
	models.MetricCost:        75,
	models.MetricEfficiency:  82,
}

// warningExcess is the fraction above baseline at which a projection
// escalates from info to warning.
const warningExcess = 0.15

// DefaultHorizonDays is the monthly projection horizon.
const DefaultHorizonDays = 30

// Forecast extrapolates the current trend of a metric forward: the trend's
// signed magnitude is applied to the recent per-bucket average and scaled to
// the horizon. A projection more than 15% above baseline carries a warning
// severity.
func Forecast(meterID string, trend *models.EnergyTrend, recentAvg float64, horizonDays int, now time.Time) *models.Insight {
	if trend == nil || recentAvg <= 0 || horizonDays <= 0 {
		return nil
	}

	signed := trend.Magnitude
	switch trend.Direction {
	case models.TrendDecreasing:
		signed = -signed
	case models.TrendStable:
		signed = 0
	}

	baseline := recentAvg * float64(horizonDays)
	projection := recentAvg * (1 + signed/100) * float64(horizonDays)

	severity := models.SeverityInfo
	if projection > baseline*(1+warningExcess) {
		severity = models.SeverityWarning
	}

	confidence, ok := forecastConfidence[trend.Metric]
	if !ok {
		confidence = forecastConfidence[models.MetricConsumption]
	}

	return &models.Insight{
		ID:         uuid.NewString(),
		MeterID:    meterID,
		Category:   models.InsightPrediction,
		Severity:   severity,
		Confidence: confidence,
		Description: fmt.Sprintf("%d-day %s projection: %.2f (baseline %.2f, trend %s %.1f%%)",
			horizonDays, trend.Metric, projection, baseline, trend.Direction, trend.Magnitude),
		Values: map[string]float64{
			"projection": projection,
			"baseline":   baseline,
			"dailyAvg":   recentAvg,
		},
		CreatedAt: now,
	}
}
