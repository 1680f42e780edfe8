// Package stats maintains the rolling per-meter and per-device aggregates.
// Unlike the analytics artifacts these are updated incrementally on every
// accepted reading; Rebuild recovers them from the readings table when the
// incremental path has drifted or been lost.
package stats

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/config"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/db"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// Service applies accepted readings to the stored statistics. Updates are
// serialized; the read-modify-write against the store is not atomic on its
// own.
type Service struct {
	mu     sync.Mutex
	db     *db.DB
	tariff config.Tariff
}

// New creates a statistics service pricing consumption at the given tariff.
func New(database *db.DB, tariff config.Tariff) *Service {
	return &Service{db: database, tariff: tariff}
}

// OnReading folds one accepted reading into the meter's statistics and, when
// the reading carries a device, the device's statistics. An unknown meter or
// device is created on first sight so telemetry from unregistered hardware
// is not dropped.
func (s *Service) OnReading(ctx context.Context, r *models.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.applyToMeter(ctx, r); err != nil {
		return err
	}
	if r.DeviceID != "" {
		return s.applyToDevice(ctx, r)
	}
	return nil
}

func (s *Service) applyToMeter(ctx context.Context, r *models.Reading) error {
	meter, err := s.db.GetMeter(ctx, r.MeterID)
	if errors.Is(err, db.ErrNotFound) {
		meter = &models.Meter{ID: r.MeterID}
		if err := s.db.UpsertMeter(ctx, meter); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	st := meter.Statistics
	if st.FirstSample.IsZero() {
		st.FirstSample = r.Timestamp
	}
	st.TotalConsumption += r.Consumption
	st.CostToDate += r.Consumption * s.tariff.RatePerKWh
	st.SampleCount++
	if r.Power > st.PeakUsage {
		st.PeakUsage = r.Power
	}
	st.AverageDailyUsage = st.TotalConsumption / spanDays(st.FirstSample, r.Timestamp)

	return s.db.UpdateMeterStatistics(ctx, r.MeterID, &st)
}

func (s *Service) applyToDevice(ctx context.Context, r *models.Reading) error {
	device, err := s.db.GetDevice(ctx, r.DeviceID)
	if errors.Is(err, db.ErrNotFound) {
		device = &models.Device{ID: r.DeviceID, MeterID: r.MeterID, Type: models.DeviceOther, Active: true}
		if err := s.db.UpsertDevice(ctx, device); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	st := device.Statistics
	st.TotalConsumed += r.Consumption
	// Moving average over the sample count.
	st.AveragePower = (st.AveragePower*float64(st.SampleCount) + r.Power) / float64(st.SampleCount+1)
	st.SampleCount++
	if r.Power > st.PeakPower {
		st.PeakPower = r.Power
	}
	if r.Power > 0 {
		// kWh over kW gives the hours the device must have been running.
		st.OperatingHours += r.Consumption / (r.Power / 1000)
	}

	return s.db.UpdateDeviceStatistics(ctx, r.DeviceID, &st)
}

// Rebuild recomputes a meter's statistics from every stored reading and
// writes the result back. It returns the rebuilt aggregate.
func (s *Service) Rebuild(ctx context.Context, meterID string) (*models.MeterStatistics, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	readings, err := s.db.ReadingsBetween(ctx, meterID, time.Unix(0, 0), time.Now().UTC().Add(time.Hour))
	if err != nil {
		return nil, err
	}

	var st models.MeterStatistics
	for i := range readings {
		r := &readings[i]
		if st.FirstSample.IsZero() {
			st.FirstSample = r.Timestamp
		}
		st.TotalConsumption += r.Consumption
		st.CostToDate += r.Consumption * s.tariff.RatePerKWh
		st.SampleCount++
		if r.Power > st.PeakUsage {
			st.PeakUsage = r.Power
		}
	}
	if st.SampleCount > 0 {
		last := readings[len(readings)-1].Timestamp
		st.AverageDailyUsage = st.TotalConsumption / spanDays(st.FirstSample, last)
	}

	if err := s.db.UpdateMeterStatistics(ctx, meterID, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// spanDays is the elapsed time between two samples in days, floored at one
// so short histories read as a daily figure rather than exploding.
func spanDays(first, last time.Time) float64 {
	days := last.Sub(first).Hours() / 24
	if days < 1 {
		return 1
	}
	return days
}
