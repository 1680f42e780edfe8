package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// QueueEntry is one reading awaiting persistence. Entries keep their arrival
// order via the autoincrement sequence and are removed only after a
// successful batch commit.
type QueueEntry struct {
	Seq      int64
	Reading  models.Reading
	QueuedAt time.Time
}

// Enqueue appends a reading to the offline queue.
func (db *DB) Enqueue(ctx context.Context, r *models.Reading) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode queued reading: %w", err)
	}
	_, err = db.ExecContext(ctx,
		"INSERT INTO offline_queue (reading, queued_at) VALUES (?, ?)",
		string(payload), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to enqueue reading: %w", err)
	}
	return nil
}

// QueueLength returns the number of entries waiting in the offline queue.
func (db *DB) QueueLength(ctx context.Context) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM offline_queue").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue entries: %w", err)
	}
	return n, nil
}

// PeekBatch returns up to n of the oldest queue entries without removing
// them, in arrival order.
func (db *DB) PeekBatch(ctx context.Context, n int) ([]QueueEntry, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT seq, reading, queued_at FROM offline_queue ORDER BY seq ASC LIMIT ?", n)
	if err != nil {
		return nil, fmt.Errorf("failed to peek queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []QueueEntry
	for rows.Next() {
		var e QueueEntry
		var payload, queuedAt string
		if err := rows.Scan(&e.Seq, &payload, &queuedAt); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		if err := json.Unmarshal([]byte(payload), &e.Reading); err != nil {
			return nil, fmt.Errorf("failed to decode queued reading: %w", err)
		}
		if t, ok := parseTimeString(queuedAt); ok {
			e.QueuedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CommitBatch persists the given queue entries' readings and removes exactly
// those entries, all in one transaction. On any failure the transaction
// rolls back and the queue is left untouched. Inserts go through the
// idempotent reading key, so a retried batch cannot double-count.
func (db *DB) CommitBatch(ctx context.Context, entries []QueueEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin batch commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for i := range entries {
		res, err := insertReadingStmt(ctx, tx, &entries[i].Reading)
		if err != nil {
			return 0, fmt.Errorf("failed to commit queued reading: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n > 0 {
			inserted++
		}
	}

	for i := range entries {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM offline_queue WHERE seq = ?", entries[i].Seq); err != nil {
			return 0, fmt.Errorf("failed to remove queue entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return inserted, nil
}
