// Package metrics provides Prometheus-based metrics collection for the
// posture scanner. Collectors live on a private registry so embedding
// applications can expose them through their own handler without clashing
// with the default registry.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all posture metrics
	namespace = "posture"

	// Subsystems
	subsystemScan    = "scan"
	subsystemProbe   = "probe"
	subsystemKB      = "kb"
	subsystemWorkers = "workers"
)

// PrometheusMetrics holds all Prometheus metric collectors.
type PrometheusMetrics struct {
	// Scan metrics
	scansTotal   *prometheus.CounterVec
	scanDuration *prometheus.HistogramVec
	activeScans  prometheus.Gauge

	// Probe metrics
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec

	// Knowledge-base metrics
	kbLookups *prometheus.CounterVec

	// Worker pool metrics
	jobsTotal      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	workerPoolSize prometheus.Gauge

	registry *prometheus.Registry
}

// NewPrometheusMetrics creates a new metrics instance with all collectors
// registered on a fresh private registry.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{registry: registry}

	pm.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of posture scans by OS family and status",
		},
		[]string{"family", "status"},
	)

	pm.scanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Duration of posture scans in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0},
		},
		[]string{"family"},
	)

	pm.activeScans = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "active",
			Help:      "Number of currently active posture scans",
		},
	)

	pm.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Total number of remote probes by probe name and status",
		},
		[]string{"probe", "status"},
	)

	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of individual remote probes in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		},
		[]string{"probe"},
	)

	pm.kbLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemKB,
			Name:      "lookups_total",
			Help:      "Total number of knowledge-base lookups by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	pm.jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "jobs_total",
			Help:      "Total number of worker jobs by type and status",
		},
		[]string{"job_type", "status"},
	)

	pm.jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "job_duration_seconds",
			Help:      "Duration of worker jobs in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0},
		},
		[]string{"job_type"},
	)

	pm.workerPoolSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemWorkers,
			Name:      "pool_size",
			Help:      "Configured number of scan workers",
		},
	)

	registry.MustRegister(
		pm.scansTotal,
		pm.scanDuration,
		pm.activeScans,
		pm.probesTotal,
		pm.probeDuration,
		pm.kbLookups,
		pm.jobsTotal,
		pm.jobDuration,
		pm.workerPoolSize,
	)

	// Standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// Registry returns the private Prometheus registry for exposure by the
// embedding application.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// IncrementScansTotal increments the scan counter.
func (pm *PrometheusMetrics) IncrementScansTotal(family, status string) {
	pm.scansTotal.WithLabelValues(family, status).Inc()
}

// RecordScanDuration records the duration of a completed scan.
func (pm *PrometheusMetrics) RecordScanDuration(family string, duration time.Duration) {
	pm.scanDuration.WithLabelValues(family).Observe(duration.Seconds())
}

// IncrementActiveScans increments the active scan gauge.
func (pm *PrometheusMetrics) IncrementActiveScans() {
	pm.activeScans.Inc()
}

// DecrementActiveScans decrements the active scan gauge.
func (pm *PrometheusMetrics) DecrementActiveScans() {
	pm.activeScans.Dec()
}

// IncrementProbesTotal increments the probe counter.
func (pm *PrometheusMetrics) IncrementProbesTotal(probe, status string) {
	pm.probesTotal.WithLabelValues(probe, status).Inc()
}

// RecordProbeDuration records the duration of a single probe.
func (pm *PrometheusMetrics) RecordProbeDuration(probe string, duration time.Duration) {
	pm.probeDuration.WithLabelValues(probe).Observe(duration.Seconds())
}

// IncrementKBLookups increments the knowledge-base lookup counter.
func (pm *PrometheusMetrics) IncrementKBLookups(kind string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	pm.kbLookups.WithLabelValues(kind, outcome).Inc()
}

// IncrementJobsTotal increments the worker job counter.
func (pm *PrometheusMetrics) IncrementJobsTotal(jobType, status string) {
	pm.jobsTotal.WithLabelValues(jobType, status).Inc()
}

// RecordJobDuration records the duration of a completed worker job.
func (pm *PrometheusMetrics) RecordJobDuration(jobType string, duration time.Duration) {
	pm.jobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
}

// SetWorkerPoolSize sets the configured worker count gauge.
func (pm *PrometheusMetrics) SetWorkerPoolSize(size int) {
	pm.workerPoolSize.Set(float64(size))
}

var (
	globalMetrics *PrometheusMetrics
	globalOnce    sync.Once
)

// GetGlobalMetrics returns the global metrics instance, creating it on
// first use.
func GetGlobalMetrics() *PrometheusMetrics {
	globalOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
