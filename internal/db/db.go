// Package db manages the sqlite telemetry store
package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Import modernc.org/sqlite as a blank import to register the driver
	_ "modernc.org/sqlite"
)

// DB wraps the SQL database connection with telemetry-specific methods.
type DB struct {
	*sql.DB
	path string
}

// New creates a new database connection and initializes the schema.
func New(path string) (*DB, error) {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.PingContext(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{
		DB:   sqlDB,
		path: path,
	}

	if err := db.configure(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to configure database: %w", err)
	}

	if err := db.createSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// configure sets up database pragmas for optimal performance.
func (db *DB) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000", // 64MB cache
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func (db *DB) createSchema() error {
	if err := db.createMetersTable(); err != nil {
		return err
	}
	if err := db.createDevicesTable(); err != nil {
		return err
	}
	if err := db.createReadingsTable(); err != nil {
		return err
	}
	if err := db.createOfflineQueueTable(); err != nil {
		return err
	}
	return db.createArtifactTables()
}

func (db *DB) createMetersTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS meters (
		id TEXT PRIMARY KEY,
		owner TEXT NOT NULL DEFAULT '',
		update_interval_ms INTEGER DEFAULT 60000,
		batch_size INTEGER DEFAULT 50,
		online INTEGER DEFAULT 1,
		last_reading DATETIME,
		errors TEXT DEFAULT '[]',
		total_consumption REAL DEFAULT 0,
		avg_daily_usage REAL DEFAULT 0,
		peak_usage REAL DEFAULT 0,
		cost_to_date REAL DEFAULT 0,
		sample_count INTEGER DEFAULT 0,
		first_sample DATETIME
	);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

func (db *DB) createDevicesTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS devices (
		id TEXT PRIMARY KEY,
		meter_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		type TEXT NOT NULL DEFAULT 'other',
		room TEXT DEFAULT '',
		rated_power REAL DEFAULT 0,
		active INTEGER DEFAULT 1,
		online INTEGER DEFAULT 1,
		energy_saving INTEGER DEFAULT 0,
		efficiency REAL DEFAULT 0,
		total_consumed REAL DEFAULT 0,
		avg_power REAL DEFAULT 0,
		peak_power REAL DEFAULT 0,
		operating_hours REAL DEFAULT 0,
		sample_count INTEGER DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_devices_meter ON devices(meter_id);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

func (db *DB) createReadingsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS readings (
		id TEXT PRIMARY KEY,
		meter_id TEXT NOT NULL,
		device_id TEXT DEFAULT '',
		ts DATETIME NOT NULL,
		power REAL DEFAULT 0,
		voltage REAL DEFAULT 0,
		current REAL DEFAULT 0,
		frequency REAL DEFAULT 0,
		power_factor REAL DEFAULT 0,
		consumption REAL DEFAULT 0,
		quality TEXT NOT NULL DEFAULT 'excellent',
		anomaly_tags TEXT DEFAULT '[]',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_readings_meter_ts ON readings(meter_id, ts);
	CREATE INDEX IF NOT EXISTS idx_readings_device_ts ON readings(device_id, ts);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

func (db *DB) createOfflineQueueTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS offline_queue (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		reading TEXT NOT NULL,
		queued_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

// Artifact tables cache derived analytics. They are rebuildable and not
// authoritative; each analytics cycle replaces a meter's rows wholesale.
func (db *DB) createArtifactTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS patterns (
		meter_id TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		start_hour INTEGER NOT NULL,
		end_hour INTEGER NOT NULL,
		avg_kwh REAL DEFAULT 0,
		confidence REAL DEFAULT 0,
		seasonality TEXT DEFAULT '',
		computed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (meter_id, name)
	);
	CREATE TABLE IF NOT EXISTS trends (
		meter_id TEXT NOT NULL,
		metric TEXT NOT NULL,
		direction TEXT NOT NULL,
		magnitude REAL DEFAULT 0,
		significance TEXT NOT NULL,
		factors TEXT DEFAULT '[]',
		computed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (meter_id, metric)
	);
	CREATE TABLE IF NOT EXISTS benchmarks (
		meter_id TEXT NOT NULL,
		category TEXT NOT NULL,
		reference TEXT NOT NULL,
		user_value REAL DEFAULT 0,
		ref_value REAL DEFAULT 0,
		percentile REAL DEFAULT 0,
		ranking TEXT NOT NULL,
		improvement REAL DEFAULT 0,
		computed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (meter_id, category, reference)
	);
	CREATE TABLE IF NOT EXISTS insights (
		id TEXT PRIMARY KEY,
		meter_id TEXT NOT NULL,
		category TEXT NOT NULL,
		severity TEXT NOT NULL,
		confidence REAL DEFAULT 0,
		description TEXT NOT NULL,
		recommendations TEXT DEFAULT '[]',
		trigger_values TEXT DEFAULT '{}',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_insights_meter ON insights(meter_id, created_at);
	`
	_, err := db.ExecContext(context.Background(), query)
	return err
}

// Close closes the database connection gracefully.
func (db *DB) Close() error {
	// Checkpoint WAL before closing
	_, _ = db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return db.DB.Close()
}

// Vacuum performs database maintenance to reclaim space.
func (db *DB) Vacuum() error {
	_, err := db.ExecContext(context.Background(), "VACUUM")
	return err
}
