package offline

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/db"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

func newTestService(t *testing.T, batchSize int) (*Service, *db.DB) {
	t.Helper()
	database, err := db.New(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return New(database, batchSize, time.Minute, true), database
}

func testReading(n int) *models.Reading {
	ts := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC).Add(time.Duration(n) * time.Minute)
	return &models.Reading{
		ID:          models.ReadingID("mtr_test", "", ts),
		MeterID:     "mtr_test",
		Timestamp:   ts,
		Power:       1200,
		Voltage:     120,
		Current:     10,
		Frequency:   60,
		PowerFactor: 0.9,
		Consumption: 0.02,
		Quality:     models.QualityExcellent,
	}
}

func TestSubmit_OnlineStoresDirectly(t *testing.T) {
	svc, database := newTestService(t, 50)
	ctx := context.Background()

	stored, err := svc.Submit(ctx, testReading(0))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !stored {
		t.Error("expected direct store while online")
	}

	count, err := database.ReadingCount(ctx, "mtr_test")
	if err != nil {
		t.Fatalf("failed to count readings: %v", err)
	}
	if count != 1 {
		t.Errorf("store holds %d readings, want 1", count)
	}
	if n, _ := database.QueueLength(ctx); n != 0 {
		t.Errorf("queue holds %d entries, want 0", n)
	}
}

func TestSubmit_OfflineQueues(t *testing.T) {
	svc, database := newTestService(t, 50)
	ctx := context.Background()
	svc.SetOnline(false)

	stored, err := svc.Submit(ctx, testReading(0))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if stored {
		t.Error("expected queueing while offline")
	}

	if n, _ := database.QueueLength(ctx); n != 1 {
		t.Errorf("queue holds %d entries, want 1", n)
	}
	count, err := database.ReadingCount(ctx, "mtr_test")
	if err != nil {
		t.Fatalf("failed to count readings: %v", err)
	}
	if count != 0 {
		t.Errorf("store holds %d readings, want 0", count)
	}
}

func TestFlush_OneBatchPerCycle(t *testing.T) {
	svc, database := newTestService(t, 50)
	ctx := context.Background()
	svc.SetOnline(false)

	for i := 0; i < 120; i++ {
		if _, err := svc.Submit(ctx, testReading(i)); err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}

	svc.mu.Lock()
	svc.online = true
	svc.mu.Unlock()

	// 120 queued entries drain one batch per flush: 120 -> 70 -> 20 -> 0.
	for i, want := range []struct{ flushed, remaining int }{
		{50, 70},
		{50, 20},
		{20, 0},
	} {
		flushed, err := svc.Flush(ctx)
		if err != nil {
			t.Fatalf("flush %d failed: %v", i+1, err)
		}
		if flushed != want.flushed {
			t.Errorf("flush %d committed %d readings, want %d", i+1, flushed, want.flushed)
		}
		if n, _ := database.QueueLength(ctx); n != want.remaining {
			t.Errorf("queue holds %d entries after flush %d, want %d", n, i+1, want.remaining)
		}
	}

	count, err := database.ReadingCount(ctx, "mtr_test")
	if err != nil {
		t.Fatalf("failed to count readings: %v", err)
	}
	if count != 120 {
		t.Errorf("store holds %d readings, want 120", count)
	}
}

func TestSetOnline_TriggersFlush(t *testing.T) {
	svc, database := newTestService(t, 50)
	ctx := context.Background()
	svc.SetOnline(false)

	for i := 0; i < 10; i++ {
		if _, err := svc.Submit(ctx, testReading(i)); err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}

	svc.SetOnline(true)

	deadline := time.Now().Add(2 * time.Second)
	for {
		n, err := database.QueueLength(ctx)
		if err != nil {
			t.Fatalf("failed to count queue: %v", err)
		}
		if n == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("queue still holds %d entries after reconnect", n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFlush_FailedBatchLeavesQueueUntouched(t *testing.T) {
	svc, database := newTestService(t, 50)
	ctx := context.Background()
	svc.SetOnline(false)

	for i := 0; i < 50; i++ {
		if _, err := svc.Submit(ctx, testReading(i)); err != nil {
			t.Fatalf("submit %d failed: %v", i, err)
		}
	}

	// Sabotage the store so the batch insert fails mid-transaction.
	if _, err := database.ExecContext(ctx, "DROP TABLE readings"); err != nil {
		t.Fatalf("failed to drop readings table: %v", err)
	}

	svc.mu.Lock()
	svc.online = true
	svc.mu.Unlock()

	if _, err := svc.Flush(ctx); err == nil {
		t.Fatal("expected flush to fail")
	}
	if n, _ := database.QueueLength(ctx); n != 50 {
		t.Errorf("queue holds %d entries after failed flush, want 50", n)
	}
}

func TestFlush_ReplayedEntriesDoNotDoubleCount(t *testing.T) {
	svc, database := newTestService(t, 50)
	ctx := context.Background()
	svc.SetOnline(false)

	// The same reading queued twice maps to one deterministic identity.
	r := testReading(0)
	if _, err := svc.Submit(ctx, r); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := svc.Submit(ctx, r); err != nil {
		t.Fatalf("resubmit failed: %v", err)
	}

	svc.mu.Lock()
	svc.online = true
	svc.mu.Unlock()

	total, err := svc.Flush(ctx)
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if total != 1 {
		t.Errorf("flush inserted %d readings, want 1", total)
	}
	count, err := database.ReadingCount(ctx, "mtr_test")
	if err != nil {
		t.Fatalf("failed to count readings: %v", err)
	}
	if count != 1 {
		t.Errorf("store holds %d readings, want 1", count)
	}
}

func TestSubmit_BufferingDisabled(t *testing.T) {
	database, err := db.New(filepath.Join(t.TempDir(), "telemetry.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	svc := New(database, 50, time.Minute, false)
	ctx := context.Background()

	// Online submissions still go straight to the store.
	stored, err := svc.Submit(ctx, testReading(0))
	if err != nil || !stored {
		t.Fatalf("online submit = (%v, %v), want stored", stored, err)
	}

	svc.SetOnline(false)
	stored, err = svc.Submit(ctx, testReading(1))
	if stored {
		t.Error("offline submit must not report stored")
	}
	if !errors.Is(err, ErrBufferingDisabled) {
		t.Errorf("offline submit error = %v, want ErrBufferingDisabled", err)
	}
	if n, _ := database.QueueLength(ctx); n != 0 {
		t.Errorf("queue holds %d entries with buffering disabled, want 0", n)
	}
}

func TestStartStop(t *testing.T) {
	svc, _ := newTestService(t, 50)
	svc.interval = 10 * time.Millisecond
	svc.Start()
	time.Sleep(30 * time.Millisecond)
	svc.Stop()
	// Stop again is a no-op.
	svc.Stop()
}
