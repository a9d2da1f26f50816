package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

// LedgerMetrics tracks sequencer activity.
type LedgerMetrics struct {
	mutations *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	height    prometheus.Gauge
	defaults  prometheus.Counter
}

// MirrorMetrics tracks the asynchronous persistence mirror.
type MirrorMetrics struct {
	applied *prometheus.CounterVec
	dropped prometheus.Counter
	depth   prometheus.Gauge
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics

	mirrorMetricsOnce sync.Once
	mirrorRegistry    *MirrorMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sente",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module, method and outcome.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sente",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method and rejection reason.",
			}, []string{"module", "method", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sente",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sente",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by the rate limiter.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a JSON-RPC call. reason is empty on success.
func (m *moduleMetrics) Observe(module, method, reason string, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if reason != "" {
		outcome = "error"
		m.errors.WithLabelValues(module, method, reason).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit".
func (m *moduleMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}

// Ledger returns the singleton sequencer metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sente",
				Subsystem: "ledger",
				Name:      "mutations_total",
				Help:      "Count of ledger mutations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "sente",
				Subsystem: "ledger",
				Name:      "mutation_duration_seconds",
				Help:      "Time spent applying and committing a ledger mutation.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "sente",
				Subsystem: "ledger",
				Name:      "height",
				Help:      "Number of committed ledger mutations.",
			}),
			defaults: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "sente",
				Subsystem: "ledger",
				Name:      "loan_defaults_total",
				Help:      "Count of loans transitioned to the defaulted state.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.mutations,
			ledgerRegistry.latency,
			ledgerRegistry.height,
			ledgerRegistry.defaults,
		)
	})
	return ledgerRegistry
}

// ObserveMutation records one sequencer mutation. outcome is "committed",
// "rejected" or a failure label.
func (m *LedgerMetrics) ObserveMutation(operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(duration.Seconds())
}

// SetHeight publishes the committed height.
func (m *LedgerMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}

// RecordDefault increments the default counter.
func (m *LedgerMetrics) RecordDefault() {
	if m == nil {
		return
	}
	m.defaults.Inc()
}

// Mirror returns the singleton mirror metrics registry.
func Mirror() *MirrorMetrics {
	mirrorMetricsOnce.Do(func() {
		mirrorRegistry = &MirrorMetrics{
			applied: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "sente",
				Subsystem: "mirror",
				Name:      "records_total",
				Help:      "Committed event records applied to the mirror segmented by outcome.",
			}, []string{"outcome"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "sente",
				Subsystem: "mirror",
				Name:      "dropped_total",
				Help:      "Records dropped because the mirror queue was full.",
			}),
			depth: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "sente",
				Subsystem: "mirror",
				Name:      "queue_depth",
				Help:      "Records waiting to be applied to the mirror.",
			}),
		}
		prometheus.MustRegister(mirrorRegistry.applied, mirrorRegistry.dropped, mirrorRegistry.depth)
	})
	return mirrorRegistry
}

// RecordApplied counts one applied record; err marks a failed apply.
func (m *MirrorMetrics) RecordApplied(err error) {
	if m == nil {
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = "error"
	}
	m.applied.WithLabelValues(outcome).Inc()
}

// RecordDropped counts a record that could not be queued.
func (m *MirrorMetrics) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// SetDepth publishes the current queue depth.
func (m *MirrorMetrics) SetDepth(depth int) {
	if m == nil {
		return
	}
	m.depth.Set(float64(depth))
}
