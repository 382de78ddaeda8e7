// Package metrics exposes scheduler state through Prometheus collectors held
// in a private registry. Every method is safe on a nil *Metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fluxgrid"

// Allocation results.
const (
	ResultOK           = "ok"
	ResultInsufficient = "insufficient"
	ResultInvalid      = "invalid"
)

// Deregistration causes.
const (
	CauseExpired  = "expired"
	CauseExplicit = "explicit"
)

// Metrics holds the scheduler collectors.
type Metrics struct {
	registry *prometheus.Registry

	Workers         prometheus.Gauge
	Cores           prometheus.Gauge
	Queue           *prometheus.GaugeVec
	Heartbeats      prometheus.Counter
	Allocations     *prometheus.CounterVec
	Deregistrations *prometheus.CounterVec
	Migrated        prometheus.Counter
	Cancelled       prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Workers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "workers",
			Help: "Registered workers.",
		}),
		Cores: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "cores",
			Help: "Cores offered by registered workers.",
		}),
		Queue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "worker_tasks",
			Help: "Tasks held per worker and queue, as of the last heartbeat.",
		}, []string{"worker", "queue"}),
		Heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "heartbeats_total",
			Help: "Accepted heartbeats.",
		}),
		Allocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "allocations_total",
			Help: "Allocation requests by result.",
		}, []string{"result"}),
		Deregistrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "deregistrations_total",
			Help: "Worker deregistrations by cause.",
		}, []string{"cause"}),
		Migrated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "migrated_tasks_total",
			Help: "Tasks moved off a dead worker.",
		}),
		Cancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "cancelled_jobs_total",
			Help: "Jobs cancelled for lack of capacity during recovery.",
		}),
	}
	m.registry.MustRegister(m.Workers, m.Cores, m.Queue, m.Heartbeats,
		m.Allocations, m.Deregistrations, m.Migrated, m.Cancelled)
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WorkerRegistered accounts for a new worker.
func (m *Metrics) WorkerRegistered(cores int) {
	if m == nil {
		return
	}
	m.Workers.Inc()
	m.Cores.Add(float64(cores))
}

// WorkerDeregistered accounts for a removed worker.
func (m *Metrics) WorkerDeregistered(workerID string, cores int, cause string) {
	if m == nil {
		return
	}
	m.Workers.Dec()
	m.Cores.Sub(float64(cores))
	m.Deregistrations.WithLabelValues(cause).Inc()
	m.Queue.DeleteLabelValues(workerID, "active")
	m.Queue.DeleteLabelValues(workerID, "pending")
}

// Heartbeat records the queue sizes reported after a heartbeat.
func (m *Metrics) Heartbeat(workerID string, active, pending int) {
	if m == nil {
		return
	}
	m.Heartbeats.Inc()
	m.Queue.WithLabelValues(workerID, "active").Set(float64(active))
	m.Queue.WithLabelValues(workerID, "pending").Set(float64(pending))
}

// Allocation counts an allocation request.
func (m *Metrics) Allocation(result string) {
	if m == nil {
		return
	}
	m.Allocations.WithLabelValues(result).Inc()
}

// Recovered counts the outcome of a deregistration.
func (m *Metrics) Recovered(migrated, cancelled int) {
	if m == nil {
		return
	}
	m.Migrated.Add(float64(migrated))
	m.Cancelled.Add(float64(cancelled))
}
