// Package config contains everything related to configuration
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// Config holds the application configuration.
type Config struct {
	DatabasePath   string
	RegistryPath   string
	ReferencesPath string
	HTTPAddr       string

	// Sampling cadence for meters that don't override it.
	UpdateInterval time.Duration
	// Offline queue flush cadence.
	SyncInterval time.Duration
	// Derived-artifact recomputation cadence.
	AnalyticsInterval time.Duration

	BatchSize            int
	EnableAutoSync       bool
	EnableOfflineStorage bool
	DataRetentionDays    int

	Thresholds models.AlertThresholds

	Kafka  KafkaConfig
	Influx InfluxConfig
}

// KafkaConfig holds the optional Kafka ingestion settings.
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
	GroupID string
}

// InfluxConfig holds the optional derived-data export settings.
type InfluxConfig struct {
	Enabled bool
	URL     string
	Token   string
	Org     string
	Bucket  string
}

// Default values
const (
	defaultUpdateInterval    = 60 * time.Second
	defaultSyncInterval      = 30 * time.Second
	defaultAnalyticsInterval = time.Hour
	defaultBatchSize         = 50
	defaultRetentionDays     = 90
)

// Load reads configuration from .env files and environment variables.
func Load() (*Config, error) {
	for _, path := range getEnvPaths() {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			break
		}
	}

	cfg := &Config{
		DatabasePath:   getEnvString("DATABASE_PATH", getDefaultDatabasePath()),
		RegistryPath:   getEnvString("REGISTRY_PATH", getDefaultRegistryPath()),
		ReferencesPath: getEnvString("REFERENCES_PATH", ""),
		HTTPAddr:       getEnvString("HTTP_ADDR", ":8087"),

		UpdateInterval:    getEnvDuration("UPDATE_INTERVAL", defaultUpdateInterval),
		SyncInterval:      getEnvDuration("SYNC_INTERVAL", defaultSyncInterval),
		AnalyticsInterval: getEnvDuration("ANALYTICS_INTERVAL", defaultAnalyticsInterval),

		BatchSize:            getEnvInt("BATCH_SIZE", defaultBatchSize),
		EnableAutoSync:       getEnvBool("ENABLE_AUTO_SYNC", true),
		EnableOfflineStorage: getEnvBool("ENABLE_OFFLINE_STORAGE", true),
		DataRetentionDays:    getEnvInt("DATA_RETENTION_DAYS", defaultRetentionDays),

		Thresholds: models.AlertThresholds{
			HighUsage:   getEnvFloat("ALERT_HIGH_USAGE_W", 5000),
			LowVoltage:  getEnvFloat("ALERT_LOW_VOLTAGE", 110),
			HighVoltage: getEnvFloat("ALERT_HIGH_VOLTAGE", 130),
			PowerFactor: getEnvFloat("ALERT_POWER_FACTOR", 0.8),
		},

		Kafka: KafkaConfig{
			Enabled: getEnvBool("KAFKA_ENABLED", false),
			Brokers: getEnvStringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnvString("KAFKA_TOPIC", "energy-readings"),
			GroupID: getEnvString("KAFKA_GROUP_ID", "ecoq-telemetry"),
		},
		Influx: InfluxConfig{
			Enabled: getEnvBool("INFLUX_ENABLED", false),
			URL:     getEnvString("INFLUX_URL", "http://localhost:8086"),
			Token:   getEnvString("INFLUX_TOKEN", ""),
			Org:     getEnvString("INFLUX_ORG", "ecoq"),
			Bucket:  getEnvString("INFLUX_BUCKET", "energy"),
		},
	}

	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	if cfg.DataRetentionDays <= 0 {
		return nil, fmt.Errorf("DATA_RETENTION_DAYS must be positive, got %d", cfg.DataRetentionDays)
	}

	// Ensure database directory exists
	if err := ensureDir(filepath.Dir(cfg.DatabasePath)); err != nil {
		return nil, err
	}

	return cfg, nil
}

// getEnvPaths returns a list of paths to check for .env files.
func getEnvPaths() []string {
	var paths []string

	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".env"))
	}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths,
			filepath.Join(home, ".config", "ecoq", ".env"),
			filepath.Join(home, ".ecoq", ".env"),
		)
	}

	return paths
}

// getDefaultDatabasePath returns the default path for the SQLite database.
func getDefaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "telemetry.db"
	}
	return filepath.Join(home, ".config", "ecoq", "telemetry.db")
}

// getDefaultRegistryPath returns the default path for the meter registry file.
func getDefaultRegistryPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "meters.json"
	}
	return filepath.Join(home, ".config", "ecoq", "meters.json")
}

// getEnvString retrieves a string environment variable or returns the default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt retrieves an integer environment variable or returns the default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

// getEnvFloat retrieves a float environment variable or returns the default.
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable or returns the default.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns the default.
// Accepts values like "30s", "1m", "500ms".
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		// Try parsing as seconds if no unit specified
		if secs, err := strconv.Atoi(value); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultValue
}

// getEnvStringSlice retrieves a comma-separated environment variable.
func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

// ensureDir creates a directory and all parent directories if they don't exist.
func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0o750)
}
