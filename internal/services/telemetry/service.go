// Package telemetry runs the ingestion pipeline: validate and score a raw
// reading, route it through the offline sync layer, fold it into the rolling
// statistics, evaluate alert rules and track meter liveness. It also drives
// the per-meter monitoring loops that poll simulated hardware.
package telemetry

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/db"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/logger"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/metrics"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/quality"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/offline"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/registry"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/rules"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/stats"
)

// Sink receives pipeline notifications. Implementations must not block; the
// manager fans these out to subscribers.
type Sink interface {
	ReadingAccepted(r *models.Reading)
	RuleViolated(meterID string, violations []rules.Violation)
}

// Service is the ingestion pipeline.
type Service struct {
	db       *db.DB
	offline  *offline.Service
	stats    *stats.Service
	registry *registry.Service
	defaults models.AlertThresholds
	sink     Sink

	mu       sync.Mutex
	monitors map[string]chan struct{}
	wg       sync.WaitGroup
}

// New creates the ingestion pipeline. The registry and sink are optional;
// without a registry every meter uses the default thresholds.
func New(database *db.DB, off *offline.Service, st *stats.Service, reg *registry.Service, defaults models.AlertThresholds) *Service {
	return &Service{
		db:       database,
		offline:  off,
		stats:    st,
		registry: reg,
		defaults: defaults,
		monitors: make(map[string]chan struct{}),
	}
}

// SetSink attaches the notification sink. Must be called before ingestion
// starts.
func (s *Service) SetSink(sink Sink) {
	s.sink = sink
}

// Ingest runs one raw reading through the full pipeline and returns the
// accepted reading. Validation failures reject the reading; everything after
// acceptance is best-effort and logged rather than failed, so a statistics
// or status write cannot lose an already-routed reading.
func (s *Service) Ingest(ctx context.Context, raw *models.RawReading) (*models.Reading, error) {
	reading, err := quality.Assess(raw)
	if err != nil {
		metrics.ReadingsRejected.Inc()
		logger.Debug("reading rejected", "meter", raw.MeterID, "error", err)
		return nil, err
	}
	metrics.ReadingsAccepted.Inc()

	stored, err := s.offline.Submit(ctx, reading)
	if err != nil {
		return nil, err
	}

	if err := s.stats.OnReading(ctx, reading); err != nil {
		logger.Warn("failed to update statistics", "meter", reading.MeterID, "error", err)
	}

	violations := rules.Evaluate(s.thresholdsFor(reading.MeterID), reading)
	s.recordStatus(ctx, reading, stored, violations)

	if s.sink != nil {
		s.sink.ReadingAccepted(reading)
		if len(violations) > 0 {
			s.sink.RuleViolated(reading.MeterID, violations)
		}
	}
	return reading, nil
}

func (s *Service) thresholdsFor(meterID string) []rules.Condition {
	if s.registry != nil {
		if m := s.registry.Meter(meterID); m != nil {
			t := m.Config.Thresholds
			if t != (models.AlertThresholds{}) {
				return rules.FromThresholds(t)
			}
		}
	}
	return rules.FromThresholds(s.defaults)
}

func (s *Service) recordStatus(ctx context.Context, r *models.Reading, stored bool, violations []rules.Violation) {
	status := models.MeterStatus{
		Online:      stored,
		LastReading: r.Timestamp,
	}
	for _, v := range violations {
		status.Errors = append(status.Errors, v.String())
	}
	if err := s.db.SetMeterStatus(ctx, r.MeterID, &status); err != nil {
		logger.Warn("failed to update meter status", "meter", r.MeterID, "error", err)
	}
}

// StartMonitoring begins a polling loop for one meter, ingesting a simulated
// reading every interval. Starting an already-monitored meter is a no-op.
func (s *Service) StartMonitoring(meterID string, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, running := s.monitors[meterID]; running {
		return
	}

	stopCh := make(chan struct{})
	s.monitors[meterID] = stopCh
	s.wg.Add(1)
	go s.monitorLoop(meterID, interval, stopCh)
	logger.Info("monitoring started", "meter", meterID, "interval", interval)
}

// StopMonitoring stops the polling loop for one meter.
func (s *Service) StopMonitoring(meterID string) {
	s.mu.Lock()
	stopCh, running := s.monitors[meterID]
	if running {
		delete(s.monitors, meterID)
	}
	s.mu.Unlock()
	if running {
		close(stopCh)
		logger.Info("monitoring stopped", "meter", meterID)
	}
}

// Monitoring reports whether a polling loop is running for the meter.
func (s *Service) Monitoring(meterID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, running := s.monitors[meterID]
	return running
}

// StopAll stops every polling loop and waits for them to exit.
func (s *Service) StopAll() {
	s.mu.Lock()
	for meterID, stopCh := range s.monitors {
		close(stopCh)
		delete(s.monitors, meterID)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Service) monitorLoop(meterID string, interval time.Duration, stopCh chan struct{}) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			raw := simulateReading(meterID, interval)
			if _, err := s.Ingest(context.Background(), raw); err != nil {
				logger.Warn("monitor ingest failed", "meter", meterID, "error", err)
			}
		}
	}
}

// simulateReading produces one plausible household sample: nominal mains
// values with small jitter, consumption derived from the simulated power
// over the sampling interval.
func simulateReading(meterID string, interval time.Duration) *models.RawReading {
	power := 800 + rand.Float64()*2400
	voltage := 120 + (rand.Float64()-0.5)*4
	frequency := 60 + (rand.Float64()-0.5)*0.1
	powerFactor := 0.85 + rand.Float64()*0.12

	return &models.RawReading{
		Timestamp:   time.Now().UTC(),
		Power:       power,
		Voltage:     voltage,
		Current:     power / voltage,
		Frequency:   frequency,
		PowerFactor: powerFactor,
		Consumption: power / 1000 * interval.Hours(),
		MeterID:     meterID,
	}
}
