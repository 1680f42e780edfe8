package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// ErrNotFound is returned when a meter or device does not exist.
var ErrNotFound = errors.New("not found")

// UpsertMeter creates or updates a meter row, preserving accumulated
// statistics on update.
func (db *DB) UpsertMeter(ctx context.Context, m *models.Meter) error {
	query := `
		INSERT INTO meters (id, owner, update_interval_ms, batch_size, online)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			update_interval_ms = excluded.update_interval_ms,
			batch_size = excluded.batch_size
	`
	_, err := db.ExecContext(ctx, query,
		m.ID, m.Owner, m.Config.UpdateInterval.Milliseconds(), m.Config.BatchSize,
		boolToInt(m.Status.Online))
	if err != nil {
		return fmt.Errorf("failed to upsert meter: %w", err)
	}
	return nil
}

// GetMeter loads one meter with its statistics and status.
func (db *DB) GetMeter(ctx context.Context, id string) (*models.Meter, error) {
	query := `
		SELECT id, owner, update_interval_ms, batch_size, online, last_reading, errors,
			total_consumption, avg_daily_usage, peak_usage, cost_to_date, sample_count, first_sample
		FROM meters WHERE id = ?
	`
	var m models.Meter
	var intervalMS int64
	var online int
	var lastReading, firstSample, errorsJSON sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&m.ID, &m.Owner, &intervalMS, &m.Config.BatchSize, &online,
		&lastReading, &errorsJSON,
		&m.Statistics.TotalConsumption, &m.Statistics.AverageDailyUsage,
		&m.Statistics.PeakUsage, &m.Statistics.CostToDate,
		&m.Statistics.SampleCount, &firstSample,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("meter %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meter: %w", err)
	}

	m.Config.UpdateInterval = time.Duration(intervalMS) * time.Millisecond
	m.Status.Online = online != 0
	if lastReading.Valid {
		if t, ok := parseTimeString(lastReading.String); ok {
			m.Status.LastReading = t
		}
	}
	if firstSample.Valid {
		if t, ok := parseTimeString(firstSample.String); ok {
			m.Statistics.FirstSample = t
		}
	}
	if errorsJSON.Valid && errorsJSON.String != "" && errorsJSON.String != "[]" {
		if err := json.Unmarshal([]byte(errorsJSON.String), &m.Status.Errors); err != nil {
			return nil, fmt.Errorf("failed to decode meter errors: %w", err)
		}
	}
	return &m, nil
}

// ListMeterIDs returns the ids of all registered meters.
func (db *DB) ListMeterIDs(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, "SELECT id FROM meters ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list meters: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateMeterStatistics writes a meter's rolling statistics.
func (db *DB) UpdateMeterStatistics(ctx context.Context, id string, s *models.MeterStatistics) error {
	query := `
		UPDATE meters SET
			total_consumption = ?, avg_daily_usage = ?, peak_usage = ?,
			cost_to_date = ?, sample_count = ?, first_sample = ?
		WHERE id = ?
	`
	firstSample := ""
	if !s.FirstSample.IsZero() {
		firstSample = formatTime(s.FirstSample)
	}
	res, err := db.ExecContext(ctx, query,
		s.TotalConsumption, s.AverageDailyUsage, s.PeakUsage,
		s.CostToDate, s.SampleCount, firstSample, id)
	if err != nil {
		return fmt.Errorf("failed to update meter statistics: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("meter %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetMeterStatus updates a meter's connectivity status and error list.
func (db *DB) SetMeterStatus(ctx context.Context, id string, status *models.MeterStatus) error {
	errorsJSON, err := json.Marshal(status.Errors)
	if err != nil {
		return err
	}
	if status.Errors == nil {
		errorsJSON = []byte("[]")
	}
	lastReading := ""
	if !status.LastReading.IsZero() {
		lastReading = formatTime(status.LastReading)
	}
	_, err = db.ExecContext(ctx,
		"UPDATE meters SET online = ?, last_reading = ?, errors = ? WHERE id = ?",
		boolToInt(status.Online), lastReading, string(errorsJSON), id)
	if err != nil {
		return fmt.Errorf("failed to set meter status: %w", err)
	}
	return nil
}

// UpsertDevice creates or updates a device row, preserving accumulated
// statistics on update.
func (db *DB) UpsertDevice(ctx context.Context, d *models.Device) error {
	query := `
		INSERT INTO devices (id, meter_id, name, type, room, rated_power, active, online, energy_saving, efficiency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			meter_id = excluded.meter_id,
			name = excluded.name,
			type = excluded.type,
			room = excluded.room,
			rated_power = excluded.rated_power,
			active = excluded.active,
			energy_saving = excluded.energy_saving,
			efficiency = excluded.efficiency
	`
	_, err := db.ExecContext(ctx, query,
		d.ID, d.MeterID, d.Name, string(d.Type), d.Room, d.RatedPower,
		boolToInt(d.Active), boolToInt(d.Online), boolToInt(d.EnergySaving), d.Efficiency)
	if err != nil {
		return fmt.Errorf("failed to upsert device: %w", err)
	}
	return nil
}

// GetDevice loads one device with its statistics.
func (db *DB) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	query := `
		SELECT id, meter_id, name, type, room, rated_power, active, online, energy_saving, efficiency,
			total_consumed, avg_power, peak_power, operating_hours, sample_count
		FROM devices WHERE id = ?
	`
	var d models.Device
	var active, online, energySaving int
	err := db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.MeterID, &d.Name, &d.Type, &d.Room, &d.RatedPower,
		&active, &online, &energySaving, &d.Efficiency,
		&d.Statistics.TotalConsumed, &d.Statistics.AveragePower,
		&d.Statistics.PeakPower, &d.Statistics.OperatingHours,
		&d.Statistics.SampleCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load device: %w", err)
	}
	d.Active = active != 0
	d.Online = online != 0
	d.EnergySaving = energySaving != 0
	return &d, nil
}

// DevicesForMeter returns all devices registered under a meter.
func (db *DB) DevicesForMeter(ctx context.Context, meterID string) ([]models.Device, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT id FROM devices WHERE meter_id = ? ORDER BY id", meterID)
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	devices := make([]models.Device, 0, len(ids))
	for _, id := range ids {
		d, err := db.GetDevice(ctx, id)
		if err != nil {
			return nil, err
		}
		devices = append(devices, *d)
	}
	return devices, nil
}

// UpdateDeviceStatistics writes a device's rolling statistics.
func (db *DB) UpdateDeviceStatistics(ctx context.Context, id string, s *models.DeviceStatistics) error {
	query := `
		UPDATE devices SET
			total_consumed = ?, avg_power = ?, peak_power = ?, operating_hours = ?, sample_count = ?
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query,
		s.TotalConsumed, s.AveragePower, s.PeakPower, s.OperatingHours, s.SampleCount, id)
	if err != nil {
		return fmt.Errorf("failed to update device statistics: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("device %s: %w", id, ErrNotFound)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
