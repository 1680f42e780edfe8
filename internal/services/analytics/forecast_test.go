package analytics

import (
	"testing"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

func TestForecast_IncreasingTrendWarns(t *testing.T) {
	now := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	trend := &models.EnergyTrend{
		Metric:    models.MetricConsumption,
		Direction: models.TrendIncreasing,
		Magnitude: 20,
	}

	f := Forecast("mtr_test", trend, 10, 30, now)
	if f == nil {
		t.Fatal("expected a forecast")
	}
	if f.Category != models.InsightPrediction {
		t.Errorf("category = %s, want prediction", f.Category)
	}
	// 10 * 1.2 * 30 = 360, more than 15% over the 300 baseline.
	approx(t, "projection", f.Values["projection"], 360)
	approx(t, "baseline", f.Values["baseline"], 300)
	if f.Severity != models.SeverityWarning {
		t.Errorf("severity = %s, want warning", f.Severity)
	}
	if f.Confidence != 78 {
		t.Errorf("confidence = %v, want 78", f.Confidence)
	}
	if !f.CreatedAt.Equal(now) {
		t.Errorf("createdAt = %v, want %v", f.CreatedAt, now)
	}
}

func TestForecast_StableTrendIsInfo(t *testing.T) {
	trend := &models.EnergyTrend{
		Metric:    models.MetricCost,
		Direction: models.TrendStable,
		Magnitude: 1.5,
	}

	f := Forecast("mtr_test", trend, 2, 30, time.Now().UTC())
	if f == nil {
		t.Fatal("expected a forecast")
	}
	approx(t, "projection", f.Values["projection"], 60)
	approx(t, "baseline", f.Values["baseline"], 60)
	if f.Severity != models.SeverityInfo {
		t.Errorf("severity = %s, want info", f.Severity)
	}
	if f.Confidence != 75 {
		t.Errorf("confidence = %v, want 75", f.Confidence)
	}
}

func TestForecast_DecreasingTrendProjectsDown(t *testing.T) {
	trend := &models.EnergyTrend{
		Metric:    models.MetricConsumption,
		Direction: models.TrendDecreasing,
		Magnitude: 10,
	}

	f := Forecast("mtr_test", trend, 10, 30, time.Now().UTC())
	if f == nil {
		t.Fatal("expected a forecast")
	}
	approx(t, "projection", f.Values["projection"], 270)
	if f.Severity != models.SeverityInfo {
		t.Errorf("severity = %s, want info", f.Severity)
	}
}

func TestForecast_NoInput(t *testing.T) {
	trend := &models.EnergyTrend{Metric: models.MetricConsumption, Direction: models.TrendIncreasing, Magnitude: 5}
	now := time.Now().UTC()

	if f := Forecast("mtr_test", nil, 10, 30, now); f != nil {
		t.Error("expected nil without a trend")
	}
	if f := Forecast("mtr_test", trend, 0, 30, now); f != nil {
		t.Error("expected nil without a recent average")
	}
	if f := Forecast("mtr_test", trend, 10, 0, now); f != nil {
		t.Error("expected nil without a horizon")
	}
}
