package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// ReplacePatterns swaps a meter's cached consumption patterns for the ones
// from the latest analytics cycle.
func (db *DB) ReplacePatterns(ctx context.Context, meterID string, patterns []models.ConsumptionPattern) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin pattern replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM patterns WHERE meter_id = ?", meterID); err != nil {
		return fmt.Errorf("failed to clear patterns: %w", err)
	}
	for _, p := range patterns {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO patterns (meter_id, name, type, start_hour, end_hour, avg_kwh, confidence, seasonality)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			meterID, p.Name, string(p.Type), p.StartHour, p.EndHour, p.AverageKWh, p.Confidence, p.Seasonality)
		if err != nil {
			return fmt.Errorf("failed to insert pattern: %w", err)
		}
	}
	return tx.Commit()
}

// GetPatterns returns a meter's cached consumption patterns.
func (db *DB) GetPatterns(ctx context.Context, meterID string) ([]models.ConsumptionPattern, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT name, type, start_hour, end_hour, avg_kwh, confidence, seasonality
		FROM patterns WHERE meter_id = ? ORDER BY start_hour`, meterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []models.ConsumptionPattern
	for rows.Next() {
		var p models.ConsumptionPattern
		if err := rows.Scan(&p.Name, &p.Type, &p.StartHour, &p.EndHour, &p.AverageKWh, &p.Confidence, &p.Seasonality); err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

// ReplaceTrends swaps a meter's cached trends.
func (db *DB) ReplaceTrends(ctx context.Context, meterID string, trends []models.EnergyTrend) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin trend replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM trends WHERE meter_id = ?", meterID); err != nil {
		return fmt.Errorf("failed to clear trends: %w", err)
	}
	for _, t := range trends {
		factors, err := json.Marshal(t.Factors)
		if err != nil {
			return err
		}
		if t.Factors == nil {
			factors = []byte("[]")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO trends (meter_id, metric, direction, magnitude, significance, factors)
			VALUES (?, ?, ?, ?, ?, ?)`,
			meterID, string(t.Metric), string(t.Direction), t.Magnitude, string(t.Significance), string(factors))
		if err != nil {
			return fmt.Errorf("failed to insert trend: %w", err)
		}
	}
	return tx.Commit()
}

// GetTrends returns a meter's cached trends.
func (db *DB) GetTrends(ctx context.Context, meterID string) ([]models.EnergyTrend, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT metric, direction, magnitude, significance, factors
		FROM trends WHERE meter_id = ? ORDER BY metric`, meterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trends: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var trends []models.EnergyTrend
	for rows.Next() {
		var t models.EnergyTrend
		var factors string
		if err := rows.Scan(&t.Metric, &t.Direction, &t.Magnitude, &t.Significance, &factors); err != nil {
			return nil, fmt.Errorf("failed to scan trend: %w", err)
		}
		if factors != "" && factors != "[]" {
			if err := json.Unmarshal([]byte(factors), &t.Factors); err != nil {
				return nil, fmt.Errorf("failed to decode trend factors: %w", err)
			}
		}
		trends = append(trends, t)
	}
	return trends, rows.Err()
}

// ReplaceBenchmarks swaps a meter's cached benchmark comparisons.
func (db *DB) ReplaceBenchmarks(ctx context.Context, meterID string, comparisons []models.BenchmarkComparison) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin benchmark replace: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM benchmarks WHERE meter_id = ?", meterID); err != nil {
		return fmt.Errorf("failed to clear benchmarks: %w", err)
	}
	for _, b := range comparisons {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO benchmarks (meter_id, category, reference, user_value, ref_value, percentile, ranking, improvement)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			meterID, string(b.Category), b.Reference, b.UserValue, b.RefValue, b.Percentile, string(b.Ranking), b.Improvement)
		if err != nil {
			return fmt.Errorf("failed to insert benchmark: %w", err)
		}
	}
	return tx.Commit()
}

// GetBenchmarks returns a meter's cached benchmark comparisons.
func (db *DB) GetBenchmarks(ctx context.Context, meterID string) ([]models.BenchmarkComparison, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT category, reference, user_value, ref_value, percentile, ranking, improvement
		FROM benchmarks WHERE meter_id = ? ORDER BY category, reference`, meterID)
	if err != nil {
		return nil, fmt.Errorf("failed to query benchmarks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comparisons []models.BenchmarkComparison
	for rows.Next() {
		var b models.BenchmarkComparison
		if err := rows.Scan(&b.Category, &b.Reference, &b.UserValue, &b.RefValue, &b.Percentile, &b.Ranking, &b.Improvement); err != nil {
			return nil, fmt.Errorf("failed to scan benchmark: %w", err)
		}
		comparisons = append(comparisons, b)
	}
	return comparisons, rows.Err()
}

// InsertInsight stores one derived insight.
func (db *DB) InsertInsight(ctx context.Context, in *models.Insight) error {
	recs, err := json.Marshal(in.Recommendations)
	if err != nil {
		return err
	}
	if in.Recommendations == nil {
		recs = []byte("[]")
	}
	values, err := json.Marshal(in.Values)
	if err != nil {
		return err
	}
	if in.Values == nil {
		values = []byte("{}")
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR IGNORE INTO insights (id, meter_id, category, severity, confidence, description, recommendations, trigger_values, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.MeterID, string(in.Category), string(in.Severity), in.Confidence,
		in.Description, string(recs), string(values), formatTime(in.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

// RecentInsights returns a meter's newest insights, most recent first.
func (db *DB) RecentInsights(ctx context.Context, meterID string, limit int) ([]models.Insight, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, meter_id, category, severity, confidence, description, recommendations, trigger_values, created_at
		FROM insights WHERE meter_id = ? ORDER BY created_at DESC LIMIT ?`, meterID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var insights []models.Insight
	for rows.Next() {
		var in models.Insight
		var recs, values, createdAt string
		if err := rows.Scan(&in.ID, &in.MeterID, &in.Category, &in.Severity, &in.Confidence,
			&in.Description, &recs, &values, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		if recs != "" && recs != "[]" {
			if err := json.Unmarshal([]byte(recs), &in.Recommendations); err != nil {
				return nil, fmt.Errorf("failed to decode recommendations: %w", err)
			}
		}
		if values != "" && values != "{}" {
			if err := json.Unmarshal([]byte(values), &in.Values); err != nil {
				return nil, fmt.Errorf("failed to decode trigger values: %w", err)
			}
		}
		if t, ok := parseTimeString(createdAt); ok {
			in.CreatedAt = t
		}
		insights = append(insights, in)
	}
	return insights, rows.Err()
}

// PruneInsights deletes insights older than the cutoff.
func (db *DB) PruneInsights(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, "DELETE FROM insights WHERE created_at < ?", formatTime(olderThan))
	if err != nil {
		return 0, fmt.Errorf("failed to prune insights: %w", err)
	}
	return res.RowsAffected()
}
