package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("DATABASE_PATH", filepath.Join(tmpDir, "telemetry.db"))

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.UpdateInterval != 60*time.Second {
		t.Errorf("Expected default update interval 60s, got %v", cfg.UpdateInterval)
	}
	if cfg.SyncInterval != 30*time.Second {
		t.Errorf("Expected default sync interval 30s, got %v", cfg.SyncInterval)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("Expected default batch size 50, got %d", cfg.BatchSize)
	}
	if cfg.DataRetentionDays != 90 {
		t.Errorf("Expected default retention 90 days, got %d", cfg.DataRetentionDays)
	}
	if !cfg.EnableAutoSync || !cfg.EnableOfflineStorage {
		t.Error("Expected auto sync and offline storage enabled by default")
	}
	if cfg.Thresholds.LowVoltage != 110 || cfg.Thresholds.HighVoltage != 130 {
		t.Errorf("Unexpected default voltage thresholds: %+v", cfg.Thresholds)
	}
}

func TestLoad_Overrides(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("DATABASE_PATH", filepath.Join(tmpDir, "telemetry.db"))
	t.Setenv("UPDATE_INTERVAL", "5s")
	t.Setenv("BATCH_SIZE", "25")
	t.Setenv("ENABLE_AUTO_SYNC", "false")
	t.Setenv("KAFKA_BROKERS", "a:9092,b:9092")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.UpdateInterval != 5*time.Second {
		t.Errorf("Expected 5s update interval, got %v", cfg.UpdateInterval)
	}
	if cfg.BatchSize != 25 {
		t.Errorf("Expected batch size 25, got %d", cfg.BatchSize)
	}
	if cfg.EnableAutoSync {
		t.Error("Expected auto sync disabled")
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "b:9092" {
		t.Errorf("Unexpected brokers: %v", cfg.Kafka.Brokers)
	}
}

func TestLoad_RejectsInvalidBatchSize(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("DATABASE_PATH", filepath.Join(tmpDir, "telemetry.db"))
	t.Setenv("BATCH_SIZE", "0")

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for zero batch size")
	}
}

func TestGetEnvDuration_PlainSeconds(t *testing.T) {
	t.Setenv("TEST_DURATION", "45")
	if d := getEnvDuration("TEST_DURATION", time.Second); d != 45*time.Second {
		t.Errorf("Expected 45s, got %v", d)
	}
}

func TestLoadReferences_Defaults(t *testing.T) {
	refs, err := LoadReferences("")
	if err != nil {
		t.Fatalf("Failed to load default references: %v", err)
	}
	if refs.Tariff.RatePerKWh <= 0 {
		t.Error("Expected positive default tariff rate")
	}
	if b := refs.Benchmark("consumption"); b == nil || !b.LowerIsBetter {
		t.Errorf("Expected lower-is-better consumption benchmark, got %+v", b)
	}
	if b := refs.Benchmark("efficiency"); b == nil || b.LowerIsBetter {
		t.Errorf("Expected higher-is-better efficiency benchmark, got %+v", b)
	}
}

func TestLoadReferences_File(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "references.yaml")
	content := `
tariff:
  rate_per_kwh: 0.2
  carbon_kg_per_kwh: 0.5
benchmarks:
  - category: consumption
    peer: 400
    regional: 420
    national: 440
    target: 320
    lower_is_better: true
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write references file: %v", err)
	}

	refs, err := LoadReferences(path)
	if err != nil {
		t.Fatalf("Failed to load references: %v", err)
	}
	if refs.Tariff.RatePerKWh != 0.2 {
		t.Errorf("Expected tariff 0.2, got %v", refs.Tariff.RatePerKWh)
	}
	if b := refs.Benchmark("consumption"); b == nil || b.Peer != 400 {
		t.Errorf("Unexpected consumption benchmark: %+v", b)
	}
}

func TestLoadReferences_RejectsBadValues(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "references.yaml")
	content := `
benchmarks:
  - category: consumption
    peer: 0
    regional: 420
    national: 440
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write references file: %v", err)
	}

	if _, err := LoadReferences(path); err == nil {
		t.Fatal("Expected error for non-positive reference value")
	}
}
