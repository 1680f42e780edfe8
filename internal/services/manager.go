// Package services provides service orchestration for the telemetry core.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/config"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/db"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/logger"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/metrics"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/models"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/analytics"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/offline"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/registry"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/rules"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/stats"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services/telemetry"
)

type (
	// ReadingAcceptedEvent is emitted for every reading that clears the
	// pipeline.
	ReadingAcceptedEvent struct {
		Reading *models.Reading
	}

	// RuleViolationEvent is emitted when alert conditions trip on a reading.
	RuleViolationEvent struct {
		MeterID    string
		Violations []rules.Violation
	}

	// InsightsEvent is emitted after an analytics cycle that produced
	// insights.
	InsightsEvent struct {
		Insights []models.Insight
	}

	// SyncEvent is emitted after an offline queue flush.
	SyncEvent struct {
		Flushed int
	}

	// ConnectivityEvent is emitted when the store connectivity state flips.
	ConnectivityEvent struct {
		Online bool
	}

	// RegistryChangedEvent is emitted when the registry file is reloaded.
	RegistryChangedEvent struct {
		Meters int
	}

	// ErrorEvent is emitted when an error occurs in any service.
	ErrorEvent struct {
		Service string
		Error   error
	}
)

// ServiceEvent is the interface implemented by all service events.
type ServiceEvent interface {
	isServiceEvent()
}

func (ReadingAcceptedEvent) isServiceEvent() {}
func (RuleViolationEvent) isServiceEvent()   {}
func (InsightsEvent) isServiceEvent()        {}
func (SyncEvent) isServiceEvent()            {}
func (ConnectivityEvent) isServiceEvent()    {}
func (RegistryChangedEvent) isServiceEvent() {}
func (ErrorEvent) isServiceEvent()           {}

// Manager orchestrates services and event routing.
type Manager struct {
	mu          sync.RWMutex
	cfg         *config.Config
	refs        *config.References
	database    *db.DB
	registry    *registry.Service
	offline     *offline.Service
	stats       *stats.Service
	telemetry   *telemetry.Service
	analytics   *analytics.Service
	eventChan   chan ServiceEvent
	stopChan    chan struct{}
	subscribers []chan<- ServiceEvent
	started     bool
	closed      bool
}

// NewManager wires the full service graph.
func NewManager(cfg *config.Config) (*Manager, error) {
	m := &Manager{
		cfg:       cfg,
		eventChan: make(chan ServiceEvent, 100),
		stopChan:  make(chan struct{}),
	}

	var err error
	m.database, err = db.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	refs, err := config.LoadReferences(cfg.ReferencesPath)
	if err != nil {
		_ = m.database.Close()
		return nil, err
	}
	m.refs = refs

	m.registry, err = registry.New(cfg.RegistryPath, m.database)
	if err != nil {
		_ = m.database.Close()
		return nil, err
	}

	m.offline = offline.New(m.database, cfg.BatchSize, cfg.SyncInterval, cfg.EnableOfflineStorage)
	m.stats = stats.New(m.database, refs.Tariff)
	m.telemetry = telemetry.New(m.database, m.offline, m.stats, m.registry, cfg.Thresholds)
	m.telemetry.SetSink(m)
	m.analytics = analytics.New(m.database, refs)

	go m.routeEvents()

	return m, nil
}

// Start launches the background loops: the queue flush ticker, the analytics
// and retention timers, and one monitoring loop per registered meter.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	if m.cfg.EnableAutoSync {
		m.offline.Start()
	}

	for _, meter := range m.registry.Meters() {
		m.startMonitor(meter)
	}

	go m.analyticsLoop()
}

func (m *Manager) startMonitor(meter models.Meter) {
	interval := meter.Config.UpdateInterval
	if interval <= 0 {
		interval = m.cfg.UpdateInterval
	}
	m.telemetry.StartMonitoring(meter.ID, interval)
}

// routeEvents routes events from individual services to subscribers.
func (m *Manager) routeEvents() {
	for {
		select {
		case event := <-m.registry.Events():
			m.handleRegistryEvent(event)

		case <-m.stopChan:
			return
		}
	}
}

func (m *Manager) handleRegistryEvent(event registry.Event) {
	switch event.Type {
	case registry.EventLoaded, registry.EventChanged:
		m.mu.RLock()
		started := m.started
		m.mu.RUnlock()
		if started {
			// New meters begin monitoring; already-running loops are no-ops.
			for _, meter := range m.registry.Meters() {
				m.startMonitor(meter)
			}
		}
		m.broadcast(RegistryChangedEvent{Meters: m.registry.Count()})

	case registry.EventError:
		m.broadcast(ErrorEvent{Service: "registry", Error: event.Error})
	}
}

func (m *Manager) analyticsLoop() {
	analyticsTicker := time.NewTicker(m.cfg.AnalyticsInterval)
	defer analyticsTicker.Stop()
	retentionTicker := time.NewTicker(24 * time.Hour)
	defer retentionTicker.Stop()

	for {
		select {
		case <-analyticsTicker.C:
			m.RunAnalytics(context.Background())

		case <-retentionTicker.C:
			m.pruneRetention(context.Background())

		case <-m.stopChan:
			return
		}
	}
}

// RunAnalytics triggers one analytics cycle and broadcasts any insights.
func (m *Manager) RunAnalytics(ctx context.Context) {
	start := time.Now()
	insights, err := m.analytics.Recompute(ctx)
	if err != nil {
		if err != analytics.ErrCycleInFlight {
			logger.Error("analytics cycle failed", "error", err)
			m.broadcast(ErrorEvent{Service: "analytics", Error: err})
		}
		return
	}
	metrics.AnalyticsCycleDuration.Observe(time.Since(start).Seconds())
	metrics.InsightsGenerated.Add(float64(len(insights)))

	if len(insights) > 0 {
		m.broadcast(InsightsEvent{Insights: insights})
	}
}

func (m *Manager) pruneRetention(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -m.cfg.DataRetentionDays)
	pruned, err := m.database.PruneReadings(ctx, cutoff)
	if err != nil {
		logger.Error("retention pruning failed", "error", err)
		return
	}
	if _, err := m.database.PruneInsights(ctx, cutoff); err != nil {
		logger.Error("insight pruning failed", "error", err)
	}
	if pruned > 0 {
		logger.Info("retention pruning complete", "readings", pruned, "cutoff", cutoff)
	}
}

// SetOnline flips store connectivity. Coming back online drains the queue;
// the resulting flush is reported through a SyncEvent.
func (m *Manager) SetOnline(online bool) {
	wasOnline := m.offline.Online()
	m.offline.SetOnline(online)
	if online != wasOnline {
		m.broadcast(ConnectivityEvent{Online: online})
	}
}

// Sync forces an immediate queue flush and reports the result.
func (m *Manager) Sync(ctx context.Context) (int, error) {
	flushed, err := m.offline.Flush(ctx)
	if err != nil {
		m.broadcast(ErrorEvent{Service: "offline", Error: err})
		return flushed, err
	}
	if flushed > 0 {
		m.broadcast(SyncEvent{Flushed: flushed})
	}
	return flushed, nil
}

// ReadingAccepted implements telemetry.Sink.
func (m *Manager) ReadingAccepted(r *models.Reading) {
	m.broadcast(ReadingAcceptedEvent{Reading: r})
}

// RuleViolated implements telemetry.Sink.
func (m *Manager) RuleViolated(meterID string, violations []rules.Violation) {
	m.broadcast(RuleViolationEvent{MeterID: meterID, Violations: violations})
}

// broadcast sends an event to the main channel and then to every subscriber
// in subscription order. Subscriber delivery blocks, so a slow subscriber
// delays later ones but no event is ever dropped. A subscriber whose channel
// was closed underneath us is removed instead of taking the broadcaster down.
func (m *Manager) broadcast(event ServiceEvent) {
	select {
	case m.eventChan <- event:
	default:
	}

	m.mu.RLock()
	subs := make([]chan<- ServiceEvent, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.RUnlock()

	for _, sub := range subs {
		if !deliver(sub, event) {
			m.removeSubscriber(sub)
		}
	}
}

func deliver(sub chan<- ServiceEvent, event ServiceEvent) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("removing dead event subscriber", "panic", r)
			ok = false
		}
	}()
	sub <- event
	return true
}

func (m *Manager) removeSubscriber(ch chan<- ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			return
		}
	}
}

// Events returns the manager's main event channel.
func (m *Manager) Events() <-chan ServiceEvent {
	return m.eventChan
}

// Subscribe creates a channel for receiving service events.
func (m *Manager) Subscribe() chan ServiceEvent {
	ch := make(chan ServiceEvent, 50)

	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()

	return ch
}

// Unsubscribe removes a subscriber channel.
func (m *Manager) Unsubscribe(ch chan ServiceEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, sub := range m.subscribers {
		if sub == ch {
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			close(ch)
			break
		}
	}
}

// Telemetry returns the ingestion pipeline.
func (m *Manager) Telemetry() *telemetry.Service {
	return m.telemetry
}

// Registry returns the registry service.
func (m *Manager) Registry() *registry.Service {
	return m.registry
}

// Offline returns the offline sync service.
func (m *Manager) Offline() *offline.Service {
	return m.offline
}

// Stats returns the statistics service.
func (m *Manager) Stats() *stats.Service {
	return m.stats
}

// Analytics returns the analytics service.
func (m *Manager) Analytics() *analytics.Service {
	return m.analytics
}

// References returns the tariff and benchmark reference data.
func (m *Manager) References() *config.References {
	return m.refs
}

// Database returns the database instance for direct access.
func (m *Manager) Database() *db.DB {
	return m.database
}

// Close shuts down monitoring, background loops and all services. Closing
// an already-closed manager is a no-op.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	close(m.stopChan)

	m.telemetry.StopAll()
	m.offline.Stop()

	m.mu.Lock()
	for _, sub := range m.subscribers {
		close(sub)
	}
	m.subscribers = nil
	m.mu.Unlock()

	var errs []error

	if err := m.registry.Close(); err != nil {
		errs = append(errs, err)
	}

	if m.database != nil {
		if err := m.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
