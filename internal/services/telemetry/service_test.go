package telemetry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/config"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/db"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/offline"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/rules"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/stats"
)

type captureSink struct {
	mu         sync.Mutex
	readings   []*models.Reading
	violations map[string][]rules.Violation
}

func newCaptureSink() *captureSink {
	return &captureSink{violations: make(map[string][]rules.Violation)}
}

func (c *captureSink) ReadingAccepted(r *models.Reading) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readings = append(c.readings, r)
}

func (c *captureSink) RuleViolated(meterID string, violations []rules.Violation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.violations[meterID] = append(c.violations[meterID], violations...)
}

func newTestPipeline(t *testing.T) (*Service, *offline.Service, *db.DB, *captureSink) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	off := offline.New(database, 50, time.Minute, true)
	st := stats.New(database, config.Tariff{RatePerKWh: 0.12, CarbonKgPerKWh: 0.42})
	defaults := models.AlertThresholds{HighUsage: 5000, LowVoltage: 110, HighVoltage: 130, PowerFactor: 0.8}

	svc := New(database, off, st, nil, defaults)
	sink := newCaptureSink()
	svc.SetSink(sink)
	return svc, off, database, sink
}

func nominalRaw(meterID string) *models.RawReading {
	return &models.RawReading{
		Timestamp:   time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC),
		Power:       1200,
		Voltage:     120,
		Current:     10,
		Frequency:   60,
		PowerFactor: 0.92,
		Consumption: 0.02,
		MeterID:     meterID,
	}
}

func TestIngest_AcceptsAndStores(t *testing.T) {
	svc, _, database, sink := newTestPipeline(t)
	ctx := context.Background()

	reading, err := svc.Ingest(ctx, nominalRaw("mtr_home"))
	if err != nil {
		t.Fatalf("ingest failed: %v", err)
	}
	if reading.Quality != models.QualityExcellent {
		t.Errorf("quality = %s, want excellent", reading.Quality)
	}
	if reading.ID == "" {
		t.Error("reading has no identity")
	}

	count, err := database.ReadingCount(ctx, "mtr_home")
	if err != nil {
		t.Fatalf("failed to count readings: %v", err)
	}
	if count != 1 {
		t.Errorf("store holds %d readings, want 1", count)
	}

	meter, err := database.GetMeter(ctx, "mtr_home")
	if err != nil {
		t.Fatalf("failed to load meter: %v", err)
	}
	if !meter.Status.Online {
		t.Error("meter should be online after a stored reading")
	}
	if !meter.Status.LastReading.Equal(reading.Timestamp) {
		t.Errorf("lastReading = %v, want %v", meter.Status.LastReading, reading.Timestamp)
	}
	if meter.Statistics.SampleCount != 1 {
		t.Errorf("statistics not updated: %+v", meter.Statistics)
	}

	if len(sink.readings) != 1 {
		t.Errorf("sink saw %d readings, want 1", len(sink.readings))
	}
}

func TestIngest_RejectsInvalid(t *testing.T) {
	svc, _, database, sink := newTestPipeline(t)
	ctx := context.Background()

	raw := nominalRaw("")
	if _, err := svc.Ingest(ctx, raw); err == nil {
		t.Fatal("expected validation error for missing meter")
	}

	count, err := database.ReadingCount(ctx, "")
	if err != nil {
		t.Fatalf("failed to count readings: %v", err)
	}
	if count != 0 {
		t.Errorf("rejected reading reached the store")
	}
	if len(sink.readings) != 0 {
		t.Error("rejected reading reached the sink")
	}
}

func TestIngest_QueuesWhileOffline(t *testing.T) {
	svc, off, database, _ := newTestPipeline(t)
	ctx := context.Background()
	off.SetOnline(false)

	if _, err := svc.Ingest(ctx, nominalRaw("mtr_home")); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if n, _ := database.QueueLength(ctx); n != 1 {
		t.Errorf("queue holds %d entries, want 1", n)
	}
	meter, err := database.GetMeter(ctx, "mtr_home")
	if err != nil {
		t.Fatalf("failed to load meter: %v", err)
	}
	if meter.Status.Online {
		t.Error("meter should read offline while readings queue")
	}
}

func TestIngest_EvaluatesRules(t *testing.T) {
	svc, _, database, sink := newTestPipeline(t)
	ctx := context.Background()

	raw := nominalRaw("mtr_home")
	raw.Power = 6000

	if _, err := svc.Ingest(ctx, raw); err != nil {
		t.Fatalf("ingest failed: %v", err)
	}

	if len(sink.violations["mtr_home"]) != 1 {
		t.Fatalf("sink saw %d violations, want 1", len(sink.violations["mtr_home"]))
	}
	if sink.violations["mtr_home"][0].Condition.Name != "high usage" {
		t.Errorf("violation = %+v", sink.violations["mtr_home"][0])
	}

	meter, err := database.GetMeter(ctx, "mtr_home")
	if err != nil {
		t.Fatalf("failed to load meter: %v", err)
	}
	if len(meter.Status.Errors) != 1 {
		t.Errorf("meter status errors = %v, want 1 entry", meter.Status.Errors)
	}
}

func TestIngest_ReplayIsIdempotent(t *testing.T) {
	svc, _, database, _ := newTestPipeline(t)
	ctx := context.Background()

	raw := nominalRaw("mtr_home")
	for i := 0; i < 3; i++ {
		if _, err := svc.Ingest(ctx, raw); err != nil {
			t.Fatalf("ingest %d failed: %v", i, err)
		}
	}

	count, err := database.ReadingCount(ctx, "mtr_home")
	if err != nil {
		t.Fatalf("failed to count readings: %v", err)
	}
	if count != 1 {
		t.Errorf("store holds %d readings after replay, want 1", count)
	}
}

func TestMonitoring_StartStop(t *testing.T) {
	svc, _, database, _ := newTestPipeline(t)

	svc.StartMonitoring("mtr_home", 10*time.Millisecond)
	// Starting again must not spawn a second loop.
	svc.StartMonitoring("mtr_home", 10*time.Millisecond)
	if !svc.Monitoring("mtr_home") {
		t.Error("expected monitoring to be active")
	}

	time.Sleep(60 * time.Millisecond)
	svc.StopAll()

	if svc.Monitoring("mtr_home") {
		t.Error("expected monitoring to be stopped")
	}

	count, err := database.ReadingCount(context.Background(), "mtr_home")
	if err != nil {
		t.Fatalf("failed to count readings: %v", err)
	}
	if count == 0 {
		t.Error("monitor produced no readings")
	}

	svc.StopMonitoring("mtr_home") // stopping a stopped meter is a no-op
}
