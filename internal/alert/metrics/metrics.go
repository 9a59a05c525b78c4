package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the alert lifecycle.
type Metrics struct {
	Created  *prometheus.CounterVec
	Resolved *prometheus.CounterVec
}

// New creates and registers all alert metrics.
func New() *Metrics {
	return &Metrics{
		Created: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_alerts_created_total",
			Help: "Total alerts created, by severity",
		}, []string{"severity"}),
		Resolved: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "keystone_alerts_resolved_total",
			Help: "Total alerts resolved, by terminal status",
		}, []string{"status"}),
	}
}

func (m *Metrics) IncCreated(severity string) {
	if m == nil {
		return
	}
	m.Created.WithLabelValues(severity).Inc()
}

func (m *Metrics) IncResolved(status string) {
	if m == nil {
		return
	}
	m.Resolved.WithLabelValues(status).Inc()
}
