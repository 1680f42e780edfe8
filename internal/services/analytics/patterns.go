package analytics

import (
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// namedRange is a fixed time-of-day range evaluated against the hourly
// consumption buckets. Confidence values are heuristic constants tuned on
// observed household load shapes, not derived statistics.
type namedRange struct {
	name       string
	startHour  int
	endHour    int // inclusive; may wrap past midnight
	confidence float64
}

var patternRanges = []namedRange{
	{name: "Morning Ramp", startHour: 6, endHour: 9, confidence: 85},
	{name: "Midday Base", startHour: 10, endHour: 17, confidence: 75},
	{name: "Evening Peak", startHour: 18, endHour: 22, confidence: 90},
	{name: "Night Valley", startHour: 23, endHour: 5, confidence: 88},
}

// Classification bands relative to the overall hourly mean.
const (
	peakRatio   = 1.3
	valleyRatio = 0.7
	// A range whose hourly means spread wider than its own average is
	// labeled variable rather than peak/valley/steady.
	variableSpreadRatio = 1.0
)

// DetectPatterns mines a window of readings for recurring time-of-day
// consumption regimes. It groups consumption by hour of day, then evaluates
// each named range against the hourly means. Patterns are recomputed in full
// on every analytics cycle.
func DetectPatterns(readings []models.Reading) []models.ConsumptionPattern {
	if len(readings) == 0 {
		return nil
	}

	var hourTotals, hourCounts [24]float64
	for i := range readings {
		h := readings[i].Timestamp.UTC().Hour()
		hourTotals[h] += readings[i].Consumption
		hourCounts[h]++
	}

	var hourMeans [24]float64
	var overallSum float64
	observed := 0
	for h := 0; h < 24; h++ {
		if hourCounts[h] > 0 {
			hourMeans[h] = hourTotals[h] / hourCounts[h]
			overallSum += hourMeans[h]
			observed++
		}
	}
	if observed == 0 {
		return nil
	}
	overallMean := overallSum / float64(observed)

	var patterns []models.ConsumptionPattern
	for _, nr := range patternRanges {
		avg, minMean, maxMean, hours := rangeStats(&hourMeans, &hourCounts, nr.startHour, nr.endHour)
		if hours == 0 {
			continue
		}

		patterns = append(patterns, models.ConsumptionPattern{
			Name:       nr.name,
			Type:       classifyRange(avg, minMean, maxMean, overallMean),
			StartHour:  nr.startHour,
			EndHour:    nr.endHour,
			AverageKWh: avg,
			Confidence: nr.confidence,
		})
	}
	return patterns
}

// rangeStats walks the hours of a (possibly midnight-wrapping) range and
// aggregates the observed hourly means.
func rangeStats(means *[24]float64, counts *[24]float64, start, end int) (avg, minMean, maxMean float64, observed int) {
	h := start
	for {
		if counts[h] > 0 {
			m := means[h]
			if observed == 0 || m < minMean {
				minMean = m
			}
			if observed == 0 || m > maxMean {
				maxMean = m
			}
			avg += m
			observed++
		}
		if h == end {
			break
		}
		h = (h + 1) % 24
	}
	if observed > 0 {
		avg /= float64(observed)
	}
	return avg, minMean, maxMean, observed
}

func classifyRange(avg, minMean, maxMean, overallMean float64) models.PatternType {
	if avg > 0 && (maxMean-minMean) > avg*variableSpreadRatio {
		return models.PatternVariable
	}
	if overallMean <= 0 {
		return models.PatternSteady
	}
	ratio := avg / overallMean
	switch {
	case ratio > peakRatio:
		return models.PatternPeak
	case ratio < valleyRatio:
		return models.PatternValley
	default:
		return models.PatternSteady
	}
}
