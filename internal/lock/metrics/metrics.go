package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for lock creation and release.
type Metrics struct {
	Created  *prometheus.CounterVec
	Released *prometheus.CounterVec
}

// New creates and registers all lock metrics.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_locks_created_total",
			Help: "Total locks created, by lock type",
		}, []string{"lock_type"}),
		Released: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_locks_released_total",
			Help: "Total locks released, by release cause",
		}, []string{"cause"}),
	}
}

func (m *Metrics) IncCreated(lockType string) {
	if m == nil {
		return
	}
	m.Created.WithLabelValues(lockType).Inc()
}

func (m *Metrics) IncReleased(cause string) {
	if m == nil {
		return
	}
	m.Released.WithLabelValues(cause).Inc()
}
