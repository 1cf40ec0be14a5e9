package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProcessesTotal counts managed processes by state.
	ProcessesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kestrel_processes_total",
			Help: "Total number of managed processes by state",
		},
		[]string{"state"},
	)

	RestartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrel_restarts_total",
			Help: "Total number of process restarts by name and reason",
		},
		[]string{"name", "reason"},
	)

	RestartsExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrel_restarts_exhausted_total",
			Help: "Total number of processes that hit their max-restarts ceiling",
		},
		[]string{"name"},
	)

	SpawnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kestrel_spawn_duration_seconds",
			Help:    "Time from fork to the process entering the online state",
			Buckets: prometheus.DefBuckets,
		},
	)

	HealthProbeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kestrel_health_probe_duration_seconds",
			Help:    "Time taken for a single health probe to complete",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	HealthProbesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kestrel_health_probes_total",
			Help: "Total number of health probes by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	PortsAllocated = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "kestrel_ports_allocated",
			Help: "Total number of ports currently reserved by the port pool",
		},
	)

	ProcessCPUPercent = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kestrel_process_cpu_percent",
			Help: "Last-sampled CPU usage percentage per process instance",
		},
		[]string{"name", "instance"},
	)

	ProcessMemoryBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kestrel_process_memory_bytes",
			Help: "Last-sampled resident memory in bytes per process instance",
		},
		[]string{"name", "instance"},
	)

	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kestrel_reconciliation_duration_seconds",
			Help:    "Time taken for a background monitoring sweep",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "kestrel_reconciliation_cycles_total",
			Help: "Total number of background monitoring sweeps completed",
		},
	)
)

func init() {
	prometheus.MustRegister(
		ProcessesTotal,
		RestartsTotal,
		RestartsExhaustedTotal,
		SpawnDuration,
		HealthProbeDuration,
		HealthProbesTotal,
		PortsAllocated,
		ProcessCPUPercent,
		ProcessMemoryBytes,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
