package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	tmpDir := t.TempDir()
	database, err := New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	return database
}

func testReading(meterID string, ts time.Time) *models.Reading {
	return &models.Reading{
		ID:          models.ReadingID(meterID, "dev-1", ts),
		MeterID:     meterID,
		DeviceID:    "dev-1",
		Timestamp:   ts,
		Power:       1200,
		Voltage:     120,
		Current:     10,
		Frequency:   60,
		PowerFactor: 0.92,
		Consumption: 0.02,
		Quality:     models.QualityExcellent,
	}
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	database, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	defer database.Close()

	if database.Path() != dbPath {
		t.Errorf("Expected path %s, got %s", dbPath, database.Path())
	}

	// Verify file exists
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	database, err := New(dbPath)
	if err != nil {
		t.Fatalf("Failed to create database with nested path: %v", err)
	}
	defer database.Close()

	if _, err := os.Stat(filepath.Dir(dbPath)); os.IsNotExist(err) {
		t.Error("Nested directories were not created")
	}
}

func TestSchema_TablesExist(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()

	tables := []string{
		"meters",
		"devices",
		"readings",
		"offline_queue",
		"patterns",
		"trends",
		"benchmarks",
		"insights",
	}

	for _, table := range tables {
		var name string
		err := database.QueryRowContext(context.Background(),
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("Table %s does not exist: %v", table, err)
		}
	}
}

func TestInsertReading_Idempotent(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()
	ctx := context.Background()

	r := testReading("mtr-1", time.Now().UTC())

	inserted, err := database.InsertReading(ctx, r)
	if err != nil {
		t.Fatalf("Failed to insert reading: %v", err)
	}
	if !inserted {
		t.Error("Expected first insert to report inserted")
	}

	inserted, err = database.InsertReading(ctx, r)
	if err != nil {
		t.Fatalf("Failed to re-insert reading: %v", err)
	}
	if inserted {
		t.Error("Expected duplicate insert to be ignored")
	}

	count, err := database.ReadingCount(ctx, "mtr-1")
	if err != nil {
		t.Fatalf("Failed to count readings: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected 1 reading after duplicate insert, got %d", count)
	}
}

func TestRecentReadings_OrderAndLimit(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := testReading("mtr-1", base.Add(time.Duration(i)*time.Minute))
		if _, err := database.InsertReading(ctx, r); err != nil {
			t.Fatalf("Failed to insert reading %d: %v", i, err)
		}
	}

	readings, err := database.RecentReadings(ctx, "mtr-1", 3)
	if err != nil {
		t.Fatalf("Failed to query recent readings: %v", err)
	}
	if len(readings) != 3 {
		t.Fatalf("Expected 3 readings, got %d", len(readings))
	}
	// Most recent 3, returned oldest first
	if !readings[0].Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Expected oldest of recent window at +2m, got %v", readings[0].Timestamp)
	}
	if !readings[2].Timestamp.Equal(base.Add(4 * time.Minute)) {
		t.Errorf("Expected newest at +4m, got %v", readings[2].Timestamp)
	}
}

func TestLatestReading(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()
	ctx := context.Background()

	if _, err := database.LatestReading(ctx, "mtr-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound for meter without readings, got %v", err)
	}

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if _, err := database.InsertReading(ctx, testReading("mtr-1", base.Add(time.Duration(i)*time.Minute))); err != nil {
			t.Fatalf("Failed to insert reading %d: %v", i, err)
		}
	}

	latest, err := database.LatestReading(ctx, "mtr-1")
	if err != nil {
		t.Fatalf("Failed to load latest reading: %v", err)
	}
	if !latest.Timestamp.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("Expected latest at +2m, got %v", latest.Timestamp)
	}
}

func TestReadingsBetween(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		r := testReading("mtr-1", base.Add(time.Duration(i)*time.Hour))
		if _, err := database.InsertReading(ctx, r); err != nil {
			t.Fatalf("Failed to insert reading %d: %v", i, err)
		}
	}

	readings, err := database.ReadingsBetween(ctx, "mtr-1", base.Add(2*time.Hour), base.Add(5*time.Hour))
	if err != nil {
		t.Fatalf("Failed to query range: %v", err)
	}
	if len(readings) != 4 {
		t.Fatalf("Expected 4 readings in range, got %d", len(readings))
	}
	for i := 1; i < len(readings); i++ {
		if readings[i].Timestamp.Before(readings[i-1].Timestamp) {
			t.Error("Expected ascending timestamp order")
		}
	}
}

func TestPruneReadings(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()
	ctx := context.Background()

	now := time.Now().UTC()
	old := testReading("mtr-1", now.AddDate(0, 0, -100))
	recent := testReading("mtr-1", now)
	if _, err := database.InsertReading(ctx, old); err != nil {
		t.Fatalf("Failed to insert old reading: %v", err)
	}
	if _, err := database.InsertReading(ctx, recent); err != nil {
		t.Fatalf("Failed to insert recent reading: %v", err)
	}

	pruned, err := database.PruneReadings(ctx, now.AddDate(0, 0, -90))
	if err != nil {
		t.Fatalf("Failed to prune: %v", err)
	}
	if pruned != 1 {
		t.Errorf("Expected 1 pruned reading, got %d", pruned)
	}

	count, _ := database.ReadingCount(ctx, "mtr-1")
	if count != 1 {
		t.Errorf("Expected 1 remaining reading, got %d", count)
	}
}

func TestMeterRoundTrip(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()
	ctx := context.Background()

	m := &models.Meter{
		ID:    "mtr-1",
		Owner: "usr-1",
		Config: models.MeterConfig{
			UpdateInterval: 30 * time.Second,
			BatchSize:      25,
		},
		Status: models.MeterStatus{Online: true},
	}
	if err := database.UpsertMeter(ctx, m); err != nil {
		t.Fatalf("Failed to upsert meter: %v", err)
	}

	loaded, err := database.GetMeter(ctx, "mtr-1")
	if err != nil {
		t.Fatalf("Failed to load meter: %v", err)
	}
	if loaded.Owner != "usr-1" || loaded.Config.BatchSize != 25 {
		t.Errorf("Unexpected meter: %+v", loaded)
	}
	if loaded.Config.UpdateInterval != 30*time.Second {
		t.Errorf("Expected 30s interval, got %v", loaded.Config.UpdateInterval)
	}

	stats := &models.MeterStatistics{
		TotalConsumption: 12.5,
		PeakUsage:        3.1,
		CostToDate:       1.5,
		SampleCount:      10,
		FirstSample:      time.Now().UTC().Add(-time.Hour),
	}
	if err := database.UpdateMeterStatistics(ctx, "mtr-1", stats); err != nil {
		t.Fatalf("Failed to update statistics: %v", err)
	}

	loaded, _ = database.GetMeter(ctx, "mtr-1")
	if loaded.Statistics.TotalConsumption != 12.5 {
		t.Errorf("Expected total 12.5, got %v", loaded.Statistics.TotalConsumption)
	}
}

func TestGetMeter_NotFound(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()

	if _, err := database.GetMeter(context.Background(), "missing"); err == nil {
		t.Fatal("Expected error for missing meter")
	}
}

func TestDeviceRoundTrip(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()
	ctx := context.Background()

	d := &models.Device{
		ID:         "dev-1",
		MeterID:    "mtr-1",
		Name:       "Heat Pump",
		Type:       models.DeviceHVAC,
		Room:       "basement",
		RatedPower: 3500,
		Active:     true,
		Efficiency: 82,
	}
	if err := database.UpsertDevice(ctx, d); err != nil {
		t.Fatalf("Failed to upsert device: %v", err)
	}

	loaded, err := database.GetDevice(ctx, "dev-1")
	if err != nil {
		t.Fatalf("Failed to load device: %v", err)
	}
	if loaded.Name != "Heat Pump" || loaded.Type != models.DeviceHVAC {
		t.Errorf("Unexpected device: %+v", loaded)
	}

	devices, err := database.DevicesForMeter(ctx, "mtr-1")
	if err != nil {
		t.Fatalf("Failed to list devices: %v", err)
	}
	if len(devices) != 1 {
		t.Errorf("Expected 1 device, got %d", len(devices))
	}
}

func TestMeterStatus_Errors(t *testing.T) {
	database := newTestDB(t)
	defer database.Close()
	ctx := context.Background()

	if err := database.UpsertMeter(ctx, &models.Meter{ID: "mtr-1"}); err != nil {
		t.Fatalf("Failed to upsert meter: %v", err)
	}

	status := &models.MeterStatus{
		Online:      false,
		LastReading: time.Now().UTC(),
		Errors:      []string{"high usage threshold exceeded"},
	}
	if err := database.SetMeterStatus(ctx, "mtr-1", status); err != nil {
		t.Fatalf("Failed to set status: %v", err)
	}

	loaded, _ := database.GetMeter(ctx, "mtr-1")
	if loaded.Status.Online {
		t.Error("Expected meter offline")
	}
	if len(loaded.Status.Errors) != 1 {
		t.Errorf("Expected 1 error, got %v", loaded.Status.Errors)
	}
}
