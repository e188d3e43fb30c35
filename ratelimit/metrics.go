package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the limiter's Prometheus instruments.
type Metrics struct {
	Granted     *prometheus.CounterVec
	Rejected    *prometheus.CounterVec
	QueueDepth  prometheus.Gauge
	HourlyUsage prometheus.Gauge
}

// NewMetrics creates the limiter metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		Granted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vigil",
				Subsystem: "ratelimit",
				Name:      "granted_total",
				Help:      "Permissions granted, by how the grant happened",
			},
			[]string{"mode"}, // immediate or queued
		),
		Rejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vigil",
				Subsystem: "ratelimit",
				Name:      "rejected_total",
				Help:      "Permissions rejected, by reason",
			},
			[]string{"reason"}, // queue_full, timeout, canceled
		),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vigil",
			Subsystem: "ratelimit",
			Name:      "queue_depth",
			Help:      "Requests currently waiting for a permission slot",
		}),
		HourlyUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vigil",
			Subsystem: "ratelimit",
			Name:      "hourly_usage_ratio",
			Help:      "Fraction of the hourly request budget consumed",
		}),
	}
}

// Register registers every instrument with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.Granted,
		m.Rejected,
		m.QueueDepth,
		m.HourlyUsage,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
