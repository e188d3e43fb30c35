package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine's Prometheus instruments.
type Metrics struct {
	ValidationsTotal *prometheus.CounterVec
	RuleDuration     *prometheus.HistogramVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	RegisteredRules  prometheus.Gauge
}

// NewMetrics creates the engine metric set.
func NewMetrics() *Metrics {
	return &Metrics{
		ValidationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "vigil",
				Subsystem: "engine",
				Name:      "validations_total",
				Help:      "Total entity validations by entity type and outcome",
			},
			[]string{"entity_type", "outcome"},
		),
		RuleDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "vigil",
				Subsystem: "engine",
				Name:      "rule_duration_seconds",
				Help:      "Per-rule execution time",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"rule"},
		),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "engine",
			Name:      "cache_hits_total",
			Help:      "Validation cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vigil",
			Subsystem: "engine",
			Name:      "cache_misses_total",
			Help:      "Validation cache misses",
		}),
		RegisteredRules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vigil",
			Subsystem: "engine",
			Name:      "registered_rules",
			Help:      "Number of registered rules across all entity types",
		}),
	}
}

// Register registers every instrument with the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.ValidationsTotal,
		m.RuleDuration,
		m.CacheHits,
		m.CacheMisses,
		m.RegisteredRules,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
