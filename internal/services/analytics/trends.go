package analytics

import (
	"fmt"
	"math"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// stableBand is the percentage change below which a trend reads as stable.
const stableBand = 2.0

// significanceBands maps each metric to its moderate and high thresholds.
// The bands are metric-specific: a 12% cost change matters more than a 12%
// consumption change.
var significanceBands = map[models.Metric]struct{ moderate, high float64 }{
	models.MetricConsumption: {moderate: 5, high: 15},
	models.MetricCost:        {moderate: 10, high: 20},
	models.MetricEfficiency:  {moderate: 3, high: 10},
}

// AnalyzeTrend derives the directional change of a metric over an ordered
// series. The series is split at its midpoint; the percentage change between
// the two halves' means gives direction and magnitude. Fewer than two points
// (or a zero first-half mean) yields no trend.
func AnalyzeTrend(metric models.Metric, values []float64) *models.EnergyTrend {
	if len(values) < 2 {
		return nil
	}

	mid := len(values) / 2
	firstAvg := mean(values[:mid])
	secondAvg := mean(values[mid:])
	if firstAvg == 0 {
		return nil
	}

	change := (secondAvg - firstAvg) / firstAvg * 100
	magnitude := math.Abs(change)

	trend := &models.EnergyTrend{
		Metric:    metric,
		Magnitude: magnitude,
		Factors: []string{
			fmt.Sprintf("first-half mean %.2f", firstAvg),
			fmt.Sprintf("second-half mean %.2f", secondAvg),
		},
	}

	switch {
	case magnitude < stableBand:
		trend.Direction = models.TrendStable
	case change > 0:
		trend.Direction = models.TrendIncreasing
	default:
		trend.Direction = models.TrendDecreasing
	}

	trend.Significance = significanceFor(metric, magnitude)
	return trend
}

func significanceFor(metric models.Metric, magnitude float64) models.TrendSignificance {
	bands, ok := significanceBands[metric]
	if !ok {
		bands = significanceBands[models.MetricConsumption]
	}
	switch {
	case magnitude > bands.high:
		return models.SignificanceHigh
	case magnitude > bands.moderate:
		return models.SignificanceModerate
	default:
		return models.SignificanceLow
	}
}
