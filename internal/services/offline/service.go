// Package offline routes accepted readings to the telemetry store or, when
// connectivity to the store is lost, into a durable FIFO queue that is
// flushed in atomic batches once the store is reachable again.
package offline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/db"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/logger"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/metrics"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
)

// ErrBufferingDisabled is returned when a reading cannot reach the store and
// offline buffering has been turned off, so the reading is dropped rather
// than queued.
var ErrBufferingDisabled = errors.New("offline buffering disabled, reading not queued")

// Service is the offline sync state machine. It starts online; SetOnline
// flips connectivity state, and every offline->online transition triggers an
// immediate flush. A background ticker retries flushes while online so a
// queue left over from a crash still drains.
type Service struct {
	db        *db.DB
	batchSize int
	interval  time.Duration
	buffering bool

	mu       sync.Mutex
	online   bool
	flushing bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates an offline sync service flushing up to batchSize entries per
// transaction, retrying every interval while online. With buffering disabled
// readings that cannot reach the store are rejected instead of queued.
func New(database *db.DB, batchSize int, interval time.Duration, buffering bool) *Service {
	return &Service{
		db:        database,
		batchSize: batchSize,
		interval:  interval,
		buffering: buffering,
		online:    true,
	}
}

// Start launches the periodic flush loop.
func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopCh != nil {
		return
	}
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	go s.loop(s.stopCh, s.doneCh)
}

// Stop terminates the flush loop and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	stopCh, doneCh := s.stopCh, s.doneCh
	s.stopCh, s.doneCh = nil, nil
	s.mu.Unlock()
	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (s *Service) loop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			if !s.Online() {
				continue
			}
			if _, err := s.Flush(context.Background()); err != nil {
				logger.Warn("periodic queue flush failed", "error", err)
			}
		}
	}
}

// Online reports the current connectivity state.
func (s *Service) Online() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.online
}

// SetOnline updates the connectivity state. Coming back online kicks off an
// immediate flush in the background.
func (s *Service) SetOnline(online bool) {
	s.mu.Lock()
	wasOnline := s.online
	s.online = online
	s.mu.Unlock()

	if online && !wasOnline {
		go func() {
			if n, err := s.Flush(context.Background()); err != nil {
				logger.Warn("reconnect flush failed", "error", err)
			} else if n > 0 {
				logger.Info("offline queue drained after reconnect", "readings", n)
			}
		}()
	}
}

// Submit routes one accepted reading: straight into the store while online,
// into the durable queue while offline. A store write failure while online
// also falls back to the queue so the reading is not lost. Both fallbacks
// fail with ErrBufferingDisabled when buffering is turned off.
func (s *Service) Submit(ctx context.Context, r *models.Reading) (stored bool, err error) {
	if !s.Online() {
		return false, s.enqueue(ctx, r)
	}

	if _, err := s.db.InsertReading(ctx, r); err != nil {
		logger.Warn("store write failed, queueing reading", "meter", r.MeterID, "error", err)
		if qerr := s.enqueue(ctx, r); qerr != nil {
			return false, fmt.Errorf("store write and queue fallback both failed: %w", qerr)
		}
		return false, nil
	}
	return true, nil
}

func (s *Service) enqueue(ctx context.Context, r *models.Reading) error {
	if !s.buffering {
		return ErrBufferingDisabled
	}
	if err := s.db.Enqueue(ctx, r); err != nil {
		return err
	}
	metrics.ReadingsQueued.Inc()
	s.updateQueueDepth(ctx)
	return nil
}

// Flush commits one batch of at most batchSize queue entries in a single
// transaction. A queue deeper than one batch takes repeated flush cycles to
// drain; the periodic ticker and the reconnect trigger provide those. A
// failed batch leaves the queue untouched. Concurrent flushes collapse into
// one; the second caller returns immediately.
func (s *Service) Flush(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.flushing {
		s.mu.Unlock()
		return 0, nil
	}
	s.flushing = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.flushing = false
		s.mu.Unlock()
	}()

	entries, err := s.db.PeekBatch(ctx, s.batchSize)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}

	inserted, err := s.db.CommitBatch(ctx, entries)
	if err != nil {
		return 0, fmt.Errorf("queue flush aborted: %w", err)
	}
	metrics.SyncBatches.Inc()
	metrics.SyncedReadings.Add(float64(inserted))
	logger.Debug("queue batch committed", "entries", len(entries), "inserted", inserted)

	s.updateQueueDepth(ctx)
	return inserted, nil
}

// QueueLength reports the number of readings waiting in the queue.
func (s *Service) QueueLength(ctx context.Context) (int, error) {
	return s.db.QueueLength(ctx)
}

func (s *Service) updateQueueDepth(ctx context.Context) {
	if n, err := s.db.QueueLength(ctx); err == nil {
		metrics.QueueDepth.Set(float64(n))
	}
}
