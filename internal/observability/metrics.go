package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yungbote/codeflow-backend/internal/platform/envutil"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
)

// Metrics holds every collector. All methods are safe on a nil receiver so
// callers never need to check whether metrics are enabled.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	eventsIngested *prometheus.CounterVec
	workerCycles   prometheus.Counter
	workerEvents   *prometheus.CounterVec
	workerDuration prometheus.Histogram
	staleReleased  prometheus.Counter
	sequencer      *prometheus.CounterVec
	eventsByStatus *prometheus.GaugeVec
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

func Current() *Metrics {
	return instance
}

// Init builds the process-wide Metrics once. It returns nil when
// METRICS_ENABLED is off.
func Init(log *logger.Logger) *Metrics {
	if !Enabled() {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics()
		if log != nil {
			log.Info("prometheus metrics enabled")
		}
	})
	return instance
}

// NewMetrics registers a fresh set of collectors on a private registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		apiRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeflow_api_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codeflow_api_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "codeflow_api_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		eventsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeflow_events_ingested_total",
			Help: "Learning events accepted by ingestion, by result (created|duplicate).",
		}, []string{"result"}),
		workerCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeflow_worker_cycles_total",
			Help: "Worker poll cycles run.",
		}),
		workerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeflow_worker_events_total",
			Help: "Claimed events by outcome (completed|partial|retry).",
		}, []string{"outcome"}),
		workerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "codeflow_worker_event_duration_seconds",
			Help:    "Time from claim to completion or release.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		staleReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "codeflow_worker_stale_claims_released_total",
			Help: "Claims returned to unclaimed after exceeding the stale timeout.",
		}),
		sequencer: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "codeflow_sequencer_decisions_total",
			Help: "Next-problem decisions by candidate tier (none when nothing matched).",
		}, []string{"tier"}),
		eventsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "codeflow_learning_events",
			Help: "Learning events by bkt status, sampled each worker cycle.",
		}, []string{"bkt_status"}),
	}
	reg.MustRegister(
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.eventsIngested, m.workerCycles, m.workerEvents, m.workerDuration,
		m.staleReleased, m.sequencer, m.eventsByStatus,
	)
	return m
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncEventIngested(result string) {
	if m == nil {
		return
	}
	m.eventsIngested.WithLabelValues(result).Inc()
}

func (m *Metrics) IncWorkerCycle() {
	if m == nil {
		return
	}
	m.workerCycles.Inc()
}

func (m *Metrics) ObserveWorkerEvent(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.workerEvents.WithLabelValues(outcome).Inc()
	m.workerDuration.Observe(dur.Seconds())
}

func (m *Metrics) AddStaleReleased(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.staleReleased.Add(float64(n))
}

func (m *Metrics) IncSequencerDecision(tier string) {
	if m == nil {
		return
	}
	if tier == "" {
		tier = "none"
	}
	m.sequencer.WithLabelValues(tier).Inc()
}

func (m *Metrics) SetEventsByStatus(counts map[string]int64) {
	if m == nil {
		return
	}
	for status, n := range counts {
		m.eventsByStatus.WithLabelValues(status).Set(float64(n))
	}
}
