package analytics

import (
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/config"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// benchmarkTier maps a user/reference ratio band to a percentile and
// ranking. The thresholds are hand-tuned heuristics carried over as-is; no
// statistical distribution of the reference population exists to derive
// them from.
type benchmarkTier struct {
	maxRatio   float64
	percentile float64
	ranking    models.BenchmarkRanking
}

// Tiers for metrics where lower is better (consumption, cost). Evaluated in
// order; the first band the ratio fits wins.
var lowerIsBetterTiers = []benchmarkTier{
	{maxRatio: 0.8, percentile: 90, ranking: models.RankExcellent},
	{maxRatio: 0.9, percentile: 80, ranking: models.RankGood},
	{maxRatio: 1.05, percentile: 70, ranking: models.RankAverage},
	{maxRatio: 1.2, percentile: 40, ranking: models.RankBelowAverage},
}

// Tiers for metrics where higher is better (efficiency); the comparison
// direction is inverted.
type invertedTier struct {
	minRatio   float64
	percentile float64
	ranking    models.BenchmarkRanking
}

var higherIsBetterTiers = []invertedTier{
	{minRatio: 1.2, percentile: 90, ranking: models.RankExcellent},
	{minRatio: 1.1, percentile: 80, ranking: models.RankGood},
	{minRatio: 0.95, percentile: 70, ranking: models.RankAverage},
	{minRatio: 0.8, percentile: 40, ranking: models.RankBelowAverage},
}

const worstPercentile = 20

// Compare ranks a user's aggregate value against each reference population
// value for a category. References with a non-positive value are skipped.
func Compare(category models.Metric, userValue float64, ref *config.BenchmarkReference) []models.BenchmarkComparison {
	if ref == nil || userValue < 0 {
		return nil
	}

	references := []struct {
		name  string
		value float64
	}{
		{"peer", ref.Peer},
		{"regional", ref.Regional},
		{"national", ref.National},
	}

	var comparisons []models.BenchmarkComparison
	for _, r := range references {
		if r.value <= 0 {
			continue
		}
		ratio := userValue / r.value
		percentile, ranking := rank(ratio, ref.LowerIsBetter)
		comparisons = append(comparisons, models.BenchmarkComparison{
			Category:    category,
			Reference:   r.name,
			UserValue:   userValue,
			RefValue:    r.value,
			Percentile:  percentile,
			Ranking:     ranking,
			Improvement: improvement(userValue, ref.Target, ref.LowerIsBetter),
		})
	}
	return comparisons
}

func rank(ratio float64, lowerIsBetter bool) (float64, models.BenchmarkRanking) {
	if lowerIsBetter {
		for _, tier := range lowerIsBetterTiers {
			if ratio <= tier.maxRatio {
				return tier.percentile, tier.ranking
			}
		}
		return worstPercentile, models.RankPoor
	}
	for _, tier := range higherIsBetterTiers {
		if ratio >= tier.minRatio {
			return tier.percentile, tier.ranking
		}
	}
	return worstPercentile, models.RankPoor
}

// improvement is the percentage gap between the user value and the fixed
// target for the category, clamped at zero once the target is met.
func improvement(userValue, target float64, lowerIsBetter bool) float64 {
	if target <= 0 {
		return 0
	}
	if lowerIsBetter {
		if userValue <= target {
			return 0
		}
		return (userValue - target) / target * 100
	}
	if userValue >= target {
		return 0
	}
	return (target - userValue) / target * 100
}
