// Package metrics exposes Prometheus collectors for queues and the gateway.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "backbone"

// Job outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeMalformed = "malformed"
)

// Broadcast outcomes.
const (
	BroadcastReplicated = "replicated"
	BroadcastLocalOnly  = "local_only"
)

type Metrics struct {
	registry *prometheus.Registry

	jobsEnqueued  *prometheus.CounterVec
	enqueueErrors *prometheus.CounterVec
	jobsProcessed *prometheus.CounterVec
	jobsInFlight  *prometheus.GaugeVec
	jobDuration   *prometheus.HistogramVec
	connections   prometheus.Gauge
	broadcasts    *prometheus.CounterVec
	remoteEvents  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		jobsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_enqueued_total",
			Help:      "Jobs acknowledged by the broker.",
		}, []string{"queue", "job"}),
		enqueueErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enqueue_errors_total",
			Help:      "Enqueue calls that failed at the broker.",
		}, []string{"queue", "job"}),
		jobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Jobs dispatched to a worker, by outcome.",
		}, []string{"queue", "job", "outcome"}),
		jobsInFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Worker invocations currently running.",
		}, []string{"queue", "job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Worker invocation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue", "job"}),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_connections",
			Help:      "Open client connections on this process.",
		}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_broadcasts_total",
			Help:      "Broadcasts issued on this process, by replication outcome.",
		}, []string{"outcome"}),
		remoteEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_remote_events_total",
			Help:      "Broadcasts received from peer processes.",
		}),
	}

	m.registry.MustRegister(
		m.jobsEnqueued,
		m.enqueueErrors,
		m.jobsProcessed,
		m.jobsInFlight,
		m.jobDuration,
		m.connections,
		m.broadcasts,
		m.remoteEvents,
		prometheus.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) JobEnqueued(queue, job string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.enqueueErrors.WithLabelValues(queue, job).Inc()
		return
	}
	m.jobsEnqueued.WithLabelValues(queue, job).Inc()
}

// JobStarted marks an invocation as running and returns the function that
// records its outcome.
func (m *Metrics) JobStarted(queue, job string) func(outcome string) {
	if m == nil {
		return func(string) {}
	}
	start := time.Now()
	m.jobsInFlight.WithLabelValues(queue, job).Inc()
	return func(outcome string) {
		m.jobsInFlight.WithLabelValues(queue, job).Dec()
		m.jobDuration.WithLabelValues(queue, job).Observe(time.Since(start).Seconds())
		m.jobsProcessed.WithLabelValues(queue, job, outcome).Inc()
	}
}

func (m *Metrics) JobMalformed(queue, job string) {
	if m == nil {
		return
	}
	m.jobsProcessed.WithLabelValues(queue, job, OutcomeMalformed).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) Broadcast(outcome string) {
	if m != nil {
		m.broadcasts.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) RemoteEvent() {
	if m != nil {
		m.remoteEvents.Inc()
	}
}
