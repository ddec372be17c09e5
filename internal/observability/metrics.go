package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "solaris",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests against the monitor API.",
		},
		[]string{"app", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "solaris",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"app", "method", "path", "status"},
	)
	simSteps = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solaris",
			Subsystem: "sim",
			Name:      "steps_total",
			Help:      "Simulation steps completed.",
		},
	)
	unitFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solaris",
			Subsystem: "farm",
			Name:      "unit_failures_total",
			Help:      "Externally observed unit failures flagged for replacement.",
		},
	)
	unitReplacements = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "solaris",
			Subsystem: "farm",
			Name:      "unit_replacements_total",
			Help:      "Unit slot swaps performed by replacement sweeps.",
		},
	)
	idSpaceReserved = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solaris",
			Subsystem: "ident",
			Name:      "id_space_reserved",
			Help:      "Ids currently reserved in the allocator.",
		},
	)
	farmOutput = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solaris",
			Subsystem: "farm",
			Name:      "output_watts",
			Help:      "Summed realized farm output for the latest step.",
		},
	)
	farmHealthAvg = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solaris",
			Subsystem: "farm",
			Name:      "health_avg",
			Help:      "Mean member health for the latest step.",
		},
	)
	farmCleanlinessAvg = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "solaris",
			Subsystem: "farm",
			Name:      "cleanliness_avg",
			Help:      "Mean member cleanliness for the latest step.",
		},
	)
	soilingMagnitude = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "solaris",
			Subsystem: "farm",
			Name:      "soiling_magnitude",
			Help:      "Per-hour farm-wide soiling draw magnitudes.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 10),
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			simSteps, unitFailures, unitReplacements,
			idSpaceReserved, farmOutput, farmHealthAvg, farmCleanlinessAvg,
			soilingMagnitude,
		)
	})
}

func RecordHTTPRequest(app, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(app, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(app, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordStep(outputWatts, healthAvg, cleanlinessAvg float64) {
	RegisterMetrics()
	simSteps.Inc()
	farmOutput.Set(outputWatts)
	farmHealthAvg.Set(healthAvg)
	farmCleanlinessAvg.Set(cleanlinessAvg)
}

func RecordFailureObserved() {
	RegisterMetrics()
	unitFailures.Inc()
}

func RecordReplacements(count int) {
	RegisterMetrics()
	unitReplacements.Add(float64(count))
}

func RecordIDSpaceReserved(reserved int) {
	RegisterMetrics()
	idSpaceReserved.Set(float64(reserved))
}

func RecordSoilingMagnitude(magnitude float64) {
	RegisterMetrics()
	soilingMagnitude.Observe(magnitude)
}
