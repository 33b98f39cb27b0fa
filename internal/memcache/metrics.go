package memcache

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts cache traffic per tier.
type Metrics struct {
	Hits      *prometheus.CounterVec // label "tier": memory or disk
	Misses    prometheus.Counter
	Corrupted prometheus.Counter
	Writes    *prometheus.CounterVec // label "status": success or error
}

// NewMetrics creates the cache metrics and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Hits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibe_ensembl_cache_hits_total",
				Help: "Cache lookups served without computing, by tier",
			},
			[]string{"tier"},
		),
		Misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibe_ensembl_cache_misses_total",
			Help: "Cache lookups that invoked the compute function",
		}),
		Corrupted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vibe_ensembl_cache_corrupted_total",
			Help: "On-disk artifacts that could not be decoded",
		}),
		Writes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vibe_ensembl_cache_writes_total",
				Help: "On-disk artifact writes by status",
			},
			[]string{"status"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.Hits, m.Misses, m.Corrupted, m.Writes} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register cache metrics: %w", err)
		}
	}
	return m, nil
}
