package session

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/flowforge/kernel/infrastructure/metrics"
	"github.com/flowforge/kernel/kernel/hooks"
)

// MetricsStorage is where the collector's bounded retention window is kept.
// Hooks instrumented by Collector.Wrap record into it; CleanupOldMetrics
// enforces the retention window.
type MetricsStorage interface {
	RecordLifecycle(eventType string, sessionID string, at time.Time)
	RecordOperation(sessionID, operation string, at time.Time)
	CleanupOldMetrics(before time.Time) int
}

// memoryMetricsStorage is the default in-process MetricsStorage.
type memoryMetricsStorage struct {
	mu      sync.Mutex
	entries []metricEntry
}

type metricEntry struct {
	kind      string
	sessionID string
	operation string
	at        time.Time
}

func NewMemoryMetricsStorage() MetricsStorage {
	return &memoryMetricsStorage{}
}

func (s *memoryMetricsStorage) RecordLifecycle(eventType, sessionID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, metricEntry{kind: "lifecycle:" + eventType, sessionID: sessionID, at: at})
}

func (s *memoryMetricsStorage) RecordOperation(sessionID, operation string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, metricEntry{kind: "operation", sessionID: sessionID, operation: operation, at: at})
}

func (s *memoryMetricsStorage) CleanupOldMetrics(before time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if e.at.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed
}

// Collector is the C13 metrics collector. It is not itself registered as a
// hook: Wrap instruments an existing hook, which keeps its own metadata and
// priority.
type Collector struct {
	storage     MetricsStorage
	privacyMode bool
	retention   time.Duration
	svc         *metrics.Metrics

	lifecycleTotal *prometheus.CounterVec
	operationTotal *prometheus.CounterVec
	durationGauge  *prometheus.GaugeVec
	resourceGauge  *prometheus.GaugeVec
}

// NewCollector registers the session_* Prometheus series on registerer. svc
// may be nil; when set, every session hook point the collector observes is
// also folded into the shared hook_executions_total/hook_execution_duration
// series so session activity shows up alongside every other hook point's.
func NewCollector(registerer prometheus.Registerer, storage MetricsStorage, privacyMode bool, retention time.Duration, svc *metrics.Metrics) *Collector {
	c := &Collector{
		storage:     storage,
		privacyMode: privacyMode,
		retention:   retention,
		svc:         svc,
		lifecycleTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_lifecycle_total",
			Help: "Session lifecycle events by type.",
		}, []string{"event_type", "session_id"}),
		operationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "session_operation_total",
			Help: "Session operations by type.",
		}, []string{"session_id", "operation"}),
		durationGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "session_duration_seconds",
			Help: "Duration of a completed session.",
		}, []string{"session_id"}),
		resourceGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "session_resource",
			Help: "Session resource usage by metric type (e.g. state_size_bytes).",
		}, []string{"session_id", "metric_type"}),
	}
	if registerer != nil {
		registerer.MustRegister(c.lifecycleTotal, c.operationTotal, c.durationGauge, c.resourceGauge)
	}
	return c
}

func (c *Collector) sessionLabel(sessionID string) string {
	if c.privacyMode {
		return HashSessionID(sessionID)
	}
	return sessionID
}

// RecordLifecycle registers a session_lifecycle{event_type, session_id}
// counter increment.
func (c *Collector) RecordLifecycle(eventType, sessionID string) {
	label := c.sessionLabel(sessionID)
	c.lifecycleTotal.WithLabelValues(eventType, label).Inc()
	c.storage.RecordLifecycle(eventType, label, time.Now())
}

// RecordOperation registers a session_operation{session_id, operation}
// counter increment.
func (c *Collector) RecordOperation(sessionID, operation string) {
	label := c.sessionLabel(sessionID)
	c.operationTotal.WithLabelValues(label, operation).Inc()
	c.storage.RecordOperation(label, operation, time.Now())
}

// RecordDuration sets the session_duration gauge for sessionID.
func (c *Collector) RecordDuration(sessionID string, duration time.Duration) {
	c.durationGauge.WithLabelValues(c.sessionLabel(sessionID)).Set(duration.Seconds())
}

// RecordResource sets the session_resource gauge for sessionID/metricType,
// e.g. ("state_size_bytes", 4096).
func (c *Collector) RecordResource(sessionID, metricType string, value float64) {
	c.resourceGauge.WithLabelValues(c.sessionLabel(sessionID), metricType).Set(value)
}

// Wrap instruments hook so every invocation records a session_lifecycle_total
// entry (keyed by hook.Metadata.Name) and, when the collector was built with
// a non-nil svc, a matching hook_executions_total/hook_execution_duration
// observation under service name serviceName. sessionID is read from
// ctx.Data["session_id"] at invocation time, falling back to "unknown" so an
// early hook that hasn't stamped it yet still gets a series.
func (c *Collector) Wrap(serviceName string, hook hooks.Hook) hooks.Hook {
	wrapped := hook
	inner := hook.Run
	wrapped.Run = func(ctx *hooks.Context) (hooks.Result, error) {
		start := time.Now()
		result, err := inner(ctx)
		duration := time.Since(start)

		sessionID, _ := ctx.Data["session_id"].(string)
		if sessionID == "" {
			sessionID = "unknown"
		}
		c.RecordLifecycle(hook.Metadata.Name, sessionID)

		if c.svc != nil {
			status := "success"
			if err != nil {
				status = "error"
			}
			c.svc.RecordHookExecution(serviceName, string(ctx.Point), hook.Metadata.Name, status, duration)
		}
		return result, err
	}
	return wrapped
}

// CleanupOldMetrics drops entries older than now-retention.
func (c *Collector) CleanupOldMetrics(now time.Time) int {
	if c.retention <= 0 {
		return 0
	}
	return c.storage.CleanupOldMetrics(now.Add(-c.retention))
}
