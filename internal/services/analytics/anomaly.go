package analytics

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

const (
	// A window maximum above twice the window average reads as a spike.
	spikeFactor = 2.0
	// Window average efficiency below this level reads as a drop.
	efficiencyFloor = 60.0

	spikeConfidence      = 85
	efficiencyConfidence = 90
)

// DetectAnomalies inspects the recent data point window for statistically
// unusual behavior and returns one Insight per flagged condition, with the
// triggering values attached for auditability.
func DetectAnomalies(meterID string, points []models.EnergyDataPoint, now time.Time) []models.Insight {
	if len(points) == 0 {
		return nil
	}

	var insights []models.Insight

	consumption := ConsumptionSeries(points)
	avg := mean(consumption)
	max := consumption[0]
	for _, v := range consumption[1:] {
		if v > max {
			max = v
		}
	}

	if avg > 0 && max > spikeFactor*avg {
		insights = append(insights, models.Insight{
			ID:          uuid.NewString(),
			MeterID:     meterID,
			Category:    models.InsightAnomaly,
			Severity:    models.SeverityMedium,
			Confidence:  spikeConfidence,
			Description: fmt.Sprintf("Consumption spike: peak of %.2f kWh is more than double the window average of %.2f kWh", max, avg),
			Recommendations: []string{
				"Check for appliances left running at full load",
				"Review the hours around the spike for unusual activity",
			},
			Values: map[string]float64{
				"max":     max,
				"average": avg,
			},
			CreatedAt: now,
		})
	}

	avgEfficiency := mean(EfficiencySeries(points))
	if avgEfficiency < efficiencyFloor {
		insights = append(insights, models.Insight{
			ID:          uuid.NewString(),
			MeterID:     meterID,
			Category:    models.InsightAnomaly,
			Severity:    models.SeverityHigh,
			Confidence:  efficiencyConfidence,
			Description: fmt.Sprintf("Efficiency drop: window average of %.1f is below the %.0f threshold", avgEfficiency, efficiencyFloor),
			Recommendations: []string{
				"Inspect motor-driven appliances for degraded power factor",
				"Consider power factor correction for large inductive loads",
			},
			Values: map[string]float64{
				"averageEfficiency": avgEfficiency,
				"threshold":         efficiencyFloor,
			},
			CreatedAt: now,
		})
	}

	return insights
}
