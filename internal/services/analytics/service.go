package analytics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/config"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/db"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/logger"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// ErrCycleInFlight is returned when a recompute is requested while the
// previous cycle is still running.
var ErrCycleInFlight = errors.New("analytics cycle already in flight")

const (
	// analysisWindow is the recent window every detector runs over.
	analysisWindow = 7 * 24 * time.Hour
	// bucketSize groups readings into hourly data points.
	bucketSize = time.Hour
)

// Service recomputes all derived artifacts for every meter. Artifacts are
// cache, not source of truth; each cycle replaces them wholesale.
type Service struct {
	mu   sync.Mutex
	busy bool

	db   *db.DB
	refs *config.References
	now  func() time.Time
}

// New creates an analytics service over the given store and reference data.
func New(database *db.DB, refs *config.References) *Service {
	return &Service{
		db:   database,
		refs: refs,
		now:  time.Now,
	}
}

// Recompute runs one analytics cycle over every registered meter and
// returns the insights produced. Overlapping invocations are rejected with
// ErrCycleInFlight so a slow cycle cannot race a later one.
func (s *Service) Recompute(ctx context.Context) ([]models.Insight, error) {
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return nil, ErrCycleInFlight
	}
	s.busy = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}()

	meterIDs, err := s.db.ListMeterIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list meters for analytics: %w", err)
	}

	var insights []models.Insight
	for _, meterID := range meterIDs {
		meterInsights, err := s.recomputeMeter(ctx, meterID)
		if err != nil {
			// One meter's failure doesn't stop the cycle for the rest.
			logger.Error("analytics cycle failed for meter", "meter", meterID, "error", err)
			continue
		}
		insights = append(insights, meterInsights...)
	}
	return insights, nil
}

func (s *Service) recomputeMeter(ctx context.Context, meterID string) ([]models.Insight, error) {
	now := s.now().UTC()
	readings, err := s.db.ReadingsBetween(ctx, meterID, now.Add(-analysisWindow), now)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, nil
	}

	points := BuildDataPoints(readings, s.refs.Tariff, bucketSize)

	patterns := DetectPatterns(readings)
	if err := s.db.ReplacePatterns(ctx, meterID, patterns); err != nil {
		return nil, err
	}

	trendByMetric := map[models.Metric]*models.EnergyTrend{
		models.MetricConsumption: AnalyzeTrend(models.MetricConsumption, ConsumptionSeries(points)),
		models.MetricCost:        AnalyzeTrend(models.MetricCost, CostSeries(points)),
		models.MetricEfficiency:  AnalyzeTrend(models.MetricEfficiency, EfficiencySeries(points)),
	}
	var trends []models.EnergyTrend
	for _, t := range trendByMetric {
		if t != nil {
			trends = append(trends, *t)
		}
	}
	if err := s.db.ReplaceTrends(ctx, meterID, trends); err != nil {
		return nil, err
	}

	if err := s.db.ReplaceBenchmarks(ctx, meterID, s.benchmarks(readings, points)); err != nil {
		return nil, err
	}

	insights := DetectAnomalies(meterID, points, now)

	dailyConsumption := totalConsumption(readings) / (analysisWindow.Hours() / 24)
	if f := Forecast(meterID, trendByMetric[models.MetricConsumption], dailyConsumption, DefaultHorizonDays, now); f != nil {
		insights = append(insights, *f)
	}
	if f := Forecast(meterID, trendByMetric[models.MetricCost], dailyConsumption*s.refs.Tariff.RatePerKWh, DefaultHorizonDays, now); f != nil {
		insights = append(insights, *f)
	}

	for i := range insights {
		if err := s.db.InsertInsight(ctx, &insights[i]); err != nil {
			return nil, err
		}
	}
	return insights, nil
}

// benchmarks ranks the meter's monthly-scale aggregates against the
// reference population values.
func (s *Service) benchmarks(readings []models.Reading, points []models.EnergyDataPoint) []models.BenchmarkComparison {
	windowDays := analysisWindow.Hours() / 24
	monthlyConsumption := totalConsumption(readings) / windowDays * DefaultHorizonDays
	monthlyCost := monthlyConsumption * s.refs.Tariff.RatePerKWh
	avgEfficiency := mean(EfficiencySeries(points))

	var comparisons []models.BenchmarkComparison
	comparisons = append(comparisons,
		Compare(models.MetricConsumption, monthlyConsumption, s.refs.Benchmark("consumption"))...)
	comparisons = append(comparisons,
		Compare(models.MetricCost, monthlyCost, s.refs.Benchmark("cost"))...)
	comparisons = append(comparisons,
		Compare(models.MetricEfficiency, avgEfficiency, s.refs.Benchmark("efficiency"))...)
	return comparisons
}

func totalConsumption(readings []models.Reading) float64 {
	var sum float64
	for i := range readings {
		sum += readings[i].Consumption
	}
	return sum
}
