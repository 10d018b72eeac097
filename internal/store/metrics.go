package store

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "healthlog"
	subsystem = "store"
)

// metrics holds storage engine metrics.
type metrics struct {
	attempts *prometheus.CounterVec
	retries  *prometheus.CounterVec
	failures *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newMetrics() *metrics {
	return &metrics{
		attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "attempts_total",
				Help:      "Total number of storage operation attempts.",
			},
			[]string{"op"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "retries_total",
				Help:      "Total number of storage operation retries.",
			},
			[]string{"op"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "failures_total",
				Help:      "Total number of storage operations that failed after all attempts.",
			},
			[]string{"op", "kind"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "transaction_duration_seconds",
				Help:      "Transaction duration, including commit.",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"mode", "result"},
		),
	}
}

// Describe implements [prometheus.Collector].
func (m *metrics) Describe(ch chan<- *prometheus.Desc) {
	m.attempts.Describe(ch)
	m.retries.Describe(ch)
	m.failures.Describe(ch)
	m.duration.Describe(ch)
}

// Collect implements [prometheus.Collector].
func (m *metrics) Collect(ch chan<- prometheus.Metric) {
	m.attempts.Collect(ch)
	m.retries.Collect(ch)
	m.failures.Collect(ch)
	m.duration.Collect(ch)
}

// check interfaces
var (
	_ prometheus.Collector = (*metrics)(nil)
)
