package analytics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics observes result cache effectiveness.
type CacheMetrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
	loads  *prometheus.HistogramVec
}

// NewCacheMetrics registers the result cache collectors on reg. Collectors that
// are already registered are reused.
func NewCacheMetrics(reg prometheus.Registerer) (*CacheMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &CacheMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profitboard_cache_hits_total",
			Help: "Number of result cache hits per operation.",
		}, []string{"op"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "profitboard_cache_miss_total",
			Help: "Number of result cache misses per operation.",
		}, []string{"op"}),
		loads: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "profitboard_cache_load_duration_seconds",
			Help:    "Time spent computing results on cache misses.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}

	if err := reg.Register(m.hits); err != nil {
		existing, err := reuseCounter(err)
		if err != nil {
			return nil, err
		}
		m.hits = existing
	}
	if err := reg.Register(m.misses); err != nil {
		existing, err := reuseCounter(err)
		if err != nil {
			return nil, err
		}
		m.misses = existing
	}
	if err := reg.Register(m.loads); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		hist, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, err
		}
		m.loads = hist
	}
	return m, nil
}

func reuseCounter(err error) (*prometheus.CounterVec, error) {
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return nil, err
	}
	counter, ok := already.ExistingCollector.(*prometheus.CounterVec)
	if !ok {
		return nil, err
	}
	return counter, nil
}

func (m *CacheMetrics) hit(op string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(op).Inc()
}

func (m *CacheMetrics) miss(op string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(op).Inc()
}

func (m *CacheMetrics) observeLoad(op string, d time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(op).Observe(d.Seconds())
}
