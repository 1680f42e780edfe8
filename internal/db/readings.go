package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// sqliteTimeFormat is fixed-width UTC so stored timestamps compare
// lexicographically in range queries.
const sqliteTimeFormat = "2006-01-02 15:04:05.000000000"

var timeFormats = []string{
	sqliteTimeFormat,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeFormat)
}

func parseTimeString(s string) (time.Time, bool) {
	for _, format := range timeFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// InsertReading appends one reading. The insert is idempotent on the
// reading's identity: a replayed reading reports inserted=false and leaves
// the stored row untouched.
func (db *DB) InsertReading(ctx context.Context, r *models.Reading) (bool, error) {
	res, err := insertReadingStmt(ctx, db.DB, r)
	if err != nil {
		return false, fmt.Errorf("failed to insert reading: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertReadingStmt(ctx context.Context, e execer, r *models.Reading) (sql.Result, error) {
	tags, err := json.Marshal(r.AnomalyTags)
	if err != nil {
		return nil, err
	}
	if r.AnomalyTags == nil {
		tags = []byte("[]")
	}
	query := `
		INSERT OR IGNORE INTO readings
			(id, meter_id, device_id, ts, power, voltage, current, frequency, power_factor, consumption, quality, anomaly_tags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	return e.ExecContext(ctx, query,
		r.ID, r.MeterID, r.DeviceID, formatTime(r.Timestamp),
		r.Power, r.Voltage, r.Current, r.Frequency, r.PowerFactor,
		r.Consumption, string(r.Quality), string(tags),
	)
}

func scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		var ts string
		var tags string
		err := rows.Scan(
			&r.ID, &r.MeterID, &r.DeviceID, &ts,
			&r.Power, &r.Voltage, &r.Current, &r.Frequency, &r.PowerFactor,
			&r.Consumption, &r.Quality, &tags,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		if t, ok := parseTimeString(ts); ok {
			r.Timestamp = t
		}
		if tags != "" && tags != "[]" {
			if err := json.Unmarshal([]byte(tags), &r.AnomalyTags); err != nil {
				return nil, fmt.Errorf("failed to decode anomaly tags: %w", err)
			}
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

const readingColumns = `id, meter_id, device_id, ts, power, voltage, current, frequency, power_factor, consumption, quality, anomaly_tags`

// RecentReadings returns the most recent n readings for a meter, oldest
// first.
func (db *DB) RecentReadings(ctx context.Context, meterID string, n int) ([]models.Reading, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM (
			SELECT %s FROM readings WHERE meter_id = ? ORDER BY ts DESC LIMIT ?
		) ORDER BY ts ASC
	`, readingColumns, readingColumns)

	rows, err := db.QueryContext(ctx, query, meterID, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanReadings(rows)
}

// ReadingsBetween returns a meter's readings in [start, end], ordered by
// timestamp ascending.
func (db *DB) ReadingsBetween(ctx context.Context, meterID string, start, end time.Time) ([]models.Reading, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM readings
		WHERE meter_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, readingColumns)

	rows, err := db.QueryContext(ctx, query, meterID, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query readings between: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanReadings(rows)
}

// DeviceReadingsBetween returns a device's readings in [start, end], ordered
// by timestamp ascending.
func (db *DB) DeviceReadingsBetween(ctx context.Context, deviceID string, start, end time.Time) ([]models.Reading, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM readings
		WHERE device_id = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, readingColumns)

	rows, err := db.QueryContext(ctx, query, deviceID, formatTime(start), formatTime(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query device readings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return scanReadings(rows)
}

// LatestReading returns the newest reading for a meter. A meter with no
// stored readings yields ErrNotFound.
func (db *DB) LatestReading(ctx context.Context, meterID string) (*models.Reading, error) {
	readings, err := db.RecentReadings(ctx, meterID, 1)
	if err != nil {
		return nil, err
	}
	if len(readings) == 0 {
		return nil, fmt.Errorf("meter %s has no readings: %w", meterID, ErrNotFound)
	}
	return &readings[0], nil
}

// ReadingCount returns the number of stored readings for a meter.
func (db *DB) ReadingCount(ctx context.Context, meterID string) (int64, error) {
	var n int64
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM readings WHERE meter_id = ?", meterID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count readings: %w", err)
	}
	return n, nil
}

// PruneReadings deletes readings older than the cutoff and reports how many
// rows were removed. Retention is the only path that removes readings.
func (db *DB) PruneReadings(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := db.ExecContext(ctx,
		"DELETE FROM readings WHERE ts < ?", formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to prune readings: %w", err)
	}
	return res.RowsAffected()
}
