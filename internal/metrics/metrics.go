// Package metrics exposes Prometheus collectors for leaderboard operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricComputationsTotal   = "leaderboard_computations_total"
	MetricComputationDuration = "leaderboard_computation_duration_seconds"
	MetricEntries             = "leaderboard_entries"
	MetricDataUnavailable     = "leaderboard_data_unavailable_total"
	MetricAttemptsRecorded    = "leaderboard_attempts_recorded_total"
	MetricSubscribers         = "leaderboard_subscribers"
)

// Metrics implements app.Observer. Collectors are not registered until
// Register is called.
type Metrics struct {
	computations    prometheus.Counter
	duration        prometheus.Histogram
	entries         prometheus.Gauge
	dataUnavailable *prometheus.CounterVec
	attempts        prometheus.Counter
	subscribers     prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		computations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricComputationsTotal,
			Help: "Total number of leaderboard computations",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricComputationDuration,
			Help:    "Time spent fetching inputs and ranking users",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
		entries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricEntries,
			Help: "Number of ranked users in the most recent leaderboard",
		}),
		dataUnavailable: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricDataUnavailable,
			Help: "Upstream fetch failures by source",
		}, []string{"source"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricAttemptsRecorded,
			Help: "Total number of attempt records saved",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricSubscribers,
			Help: "Number of live leaderboard subscribers",
		}),
	}
}

// Register registers all collectors with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		m.computations,
		m.duration,
		m.entries,
		m.dataUnavailable,
		m.attempts,
		m.subscribers,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) LeaderboardComputed(d time.Duration, entries int) {
	m.computations.Inc()
	m.duration.Observe(d.Seconds())
	m.entries.Set(float64(entries))
}

func (m *Metrics) DataUnavailable(source string) {
	m.dataUnavailable.WithLabelValues(source).Inc()
}

func (m *Metrics) AttemptRecorded() {
	m.attempts.Inc()
}

func (m *Metrics) SubscribersChanged(n int) {
	m.subscribers.Set(float64(n))
}
