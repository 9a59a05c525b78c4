// Package metrics exposes Prometheus counters for the expiration sweeper.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Runs          *prometheus.CounterVec
	AlertsExpired prometheus.Counter
	LocksExpired  prometheus.Counter
	SweepDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_sweeper_runs_total",
			Help: "Sweep rounds by outcome (swept, skipped, failed).",
		}, []string{"outcome"}),
		AlertsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "keystone_sweeper_alerts_expired_total",
			Help: "Pending alerts expired by the sweeper.",
		}),
		LocksExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "keystone_sweeper_locks_expired_total",
			Help: "Action locks expired by the sweeper.",
		}),
		SweepDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "keystone_sweeper_duration_seconds",
			Help:    "Wall time of a single sweep round.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncRun(outcome string) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
}

func (m *Metrics) AddAlertsExpired(n int) {
	if m == nil {
		return
	}
	m.AlertsExpired.Add(float64(n))
}

func (m *Metrics) AddLocksExpired(n int) {
	if m == nil {
		return
	}
	m.LocksExpired.Add(float64(n))
}

func (m *Metrics) ObserveSweep(seconds float64) {
	if m == nil {
		return
	}
	m.SweepDuration.Observe(seconds)
}
