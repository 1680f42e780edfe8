// Package analytics derives patterns, trends, benchmarks, anomalies and
// forecasts from the stored telemetry window. Everything here is recomputed
// from scratch each cycle; the statistics service is the only incrementally
// maintained aggregate.
package analytics

import (
	"sort"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/config"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// BuildDataPoints groups readings into fixed time buckets and derives one
// EnergyDataPoint per bucket: summed consumption, tariffed cost, mean power
// demand, mean efficiency (power factor on a 0-100 scale), carbon footprint
// and per-device consumption breakdown.
func BuildDataPoints(readings []models.Reading, tariff config.Tariff, bucket time.Duration) []models.EnergyDataPoint {
	if len(readings) == 0 {
		return nil
	}

	type acc struct {
		consumption float64
		powerSum    float64
		pfSum       float64
		count       int
		devices     map[string]float64
	}
	buckets := make(map[time.Time]*acc)

	for i := range readings {
		r := &readings[i]
		key := r.Timestamp.UTC().Truncate(bucket)
		a, ok := buckets[key]
		if !ok {
			a = &acc{devices: make(map[string]float64)}
			buckets[key] = a
		}
		a.consumption += r.Consumption
		a.powerSum += r.Power
		a.pfSum += r.PowerFactor
		a.count++
		if r.DeviceID != "" {
			a.devices[r.DeviceID] += r.Consumption
		}
	}

	points := make([]models.EnergyDataPoint, 0, len(buckets))
	for ts, a := range buckets {
		n := float64(a.count)
		point := models.EnergyDataPoint{
			Timestamp:       ts,
			Consumption:     a.consumption,
			Cost:            a.consumption * tariff.RatePerKWh,
			PowerDemand:     a.powerSum / n,
			Efficiency:      a.pfSum / n * 100,
			CarbonFootprint: a.consumption * tariff.CarbonKgPerKWh,
		}
		if len(a.devices) > 0 {
			point.DeviceBreakdown = a.devices
		}
		points = append(points, point)
	}

	sort.Slice(points, func(i, j int) bool {
		return points[i].Timestamp.Before(points[j].Timestamp)
	})
	return points
}

// ConsumptionSeries extracts the consumption values of a data point window.
func ConsumptionSeries(points []models.EnergyDataPoint) []float64 {
	out := make([]float64, len(points))
	for i := range points {
		out[i] = points[i].Consumption
	}
	return out
}

// CostSeries extracts the cost values of a data point window.
func CostSeries(points []models.EnergyDataPoint) []float64 {
	out := make([]float64, len(points))
	for i := range points {
		out[i] = points[i].Cost
	}
	return out
}

// EfficiencySeries extracts the efficiency values of a data point window.
func EfficiencySeries(points []models.EnergyDataPoint) []float64 {
	out := make([]float64, len(points))
	for i := range points {
		out[i] = points[i].Efficiency
	}
	return out
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
