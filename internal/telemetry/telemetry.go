// Package telemetry exposes sync metrics to a local Prometheus registry.
// Nothing is pushed anywhere; metrics are only readable through the daemon's
// /metrics endpoint.
package telemetry

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDead    = "dead"
	ResultSkipped = "skipped"
)

// Metrics holds the sync collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry prometheus.Gatherer

	PushOperations  *prometheus.CounterVec
	PulledRecords   *prometheus.CounterVec
	Cycles          *prometheus.CounterVec
	CycleDuration   *prometheus.HistogramVec
	QueueDepth      prometheus.Gauge
	DeadOperations  prometheus.Gauge
	Conflicts       *prometheus.CounterVec
	SkippedRows     *prometheus.CounterVec
	Triggers        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors on reg under namespace. A nil reg gets a
// private registry.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: reg,

		PushOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_push_operations_total",
				Help:      "Queued operations sent to the remote store",
			},
			[]string{"entity", "action", "result"},
		),
		PulledRecords: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_pulled_records_total",
				Help:      "Remote records hydrated into the local store",
			},
			[]string{"entity"},
		),
		Cycles: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_cycles_total",
				Help:      "Push and pull cycles by outcome",
			},
			[]string{"kind", "result"},
		),
		CycleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_cycle_duration_seconds",
				Help:      "Duration of push and pull cycles in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_queue_pending",
			Help:      "Operations waiting in the pending queue",
		}),
		DeadOperations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sync_queue_dead",
			Help:      "Operations parked after exhausting retries",
		}),
		Conflicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_conflicts_total",
				Help:      "Pulled records shadowed by a pending local edit",
			},
			[]string{"resolution", "winner"},
		),
		SkippedRows: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_skipped_rows_total",
				Help:      "Remote rows left out of a pull because they could not be translated",
			},
			[]string{"entity"},
		),
		Triggers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_triggers_total",
				Help:      "Sync triggers received by reason",
			},
			[]string{"reason"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of local daemon HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}

	reg.MustRegister(
		m.PushOperations,
		m.PulledRecords,
		m.Cycles,
		m.CycleDuration,
		m.QueueDepth,
		m.DeadOperations,
		m.Conflicts,
		m.SkippedRows,
		m.Triggers,
		m.RequestDuration,
	)
	return m
}

// RecordPush counts one dispatched queue row.
func (m *Metrics) RecordPush(entity, action, result string) {
	if m == nil {
		return
	}
	m.PushOperations.With(prometheus.Labels{
		"entity": entity,
		"action": action,
		"result": result,
	}).Inc()
}

// RecordPull counts hydrated records of one entity.
func (m *Metrics) RecordPull(entity string, n int) {
	if m == nil {
		return
	}
	m.PulledRecords.WithLabelValues(entity).Add(float64(n))
}

// TrackCycle returns a func that records the cycle outcome and duration.
func (m *Metrics) TrackCycle(kind string) func(err error) {
	start := time.Now()
	return func(err error) {
		if m == nil {
			return
		}
		result := ResultSuccess
		if err != nil {
			result = ResultFailure
		}
		m.Cycles.WithLabelValues(kind, result).Inc()
		m.CycleDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}
}

// SetQueue publishes the queue gauges.
func (m *Metrics) SetQueue(pending, dead int) {
	if m == nil {
		return
	}
	m.QueueDepth.Set(float64(pending))
	m.DeadOperations.Set(float64(dead))
}

// RecordConflict counts one resolved hydration conflict.
func (m *Metrics) RecordConflict(resolution, winner string) {
	if m == nil {
		return
	}
	m.Conflicts.WithLabelValues(resolution, winner).Inc()
}

// RecordSkippedRow counts one remote row dropped during a fetch.
func (m *Metrics) RecordSkippedRow(entity string) {
	if m == nil {
		return
	}
	m.SkippedRows.WithLabelValues(entity).Inc()
}

// RecordTrigger counts one sync trigger.
func (m *Metrics) RecordTrigger(reason string) {
	if m == nil {
		return
	}
	m.Triggers.WithLabelValues(reason).Inc()
}

// Middleware tracks request metrics
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if m == nil {
				return err
			}
			m.RequestDuration.With(prometheus.Labels{
				"method": c.Request().Method,
				"path":   c.Path(),
				"status": strconv.Itoa(c.Response().Status),
			}).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

// Handler returns the /metrics handler for this registry.
func (m *Metrics) Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
