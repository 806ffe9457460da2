// Package metrics exposes pool observability through Prometheus. It offers
// a PoolCollector that scrapes a pool's diagnostic counters on collection,
// plus pre-registered benchmark metrics for the stress tooling.
//
// Example:
//
//	p := pool.New[Session](nil, logger)
//	prometheus.MustRegister(metrics.NewPoolCollector("sessions", p.Stats))
//
// Collection reads the pool's lock-free counters; scraping never blocks pool
// operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/RainBoltz/ton/pkg/pool"
)

// PoolCollector implements prometheus.Collector over a pool's Stats
// snapshot. One collector is created per pool and labeled with its name.
type PoolCollector struct {
	stats func() pool.Stats

	slots    *prometheus.Desc
	chunks   *prometheus.Desc
	live     *prometheus.Desc
	created  *prometheus.Desc
	recycled *prometheus.Desc
}

// NewPoolCollector creates a collector for one pool. stats is typically the
// pool's Stats method.
func NewPoolCollector(name string, stats func() pool.Stats) *PoolCollector {
	labels := prometheus.Labels{"pool": name}
	return &PoolCollector{
		stats: stats,
		slots: prometheus.NewDesc(
			"pool_slots_allocated",
			"Total slots allocated, in chunk multiples",
			nil, labels,
		),
		chunks: prometheus.NewDesc(
			"pool_chunks",
			"Number of chunks backing the arena",
			nil, labels,
		),
		live: prometheus.NewDesc(
			"pool_live_elements",
			"Elements currently bound to an owning handle",
			nil, labels,
		),
		created: prometheus.NewDesc(
			"pool_elements_created_total",
			"Total element constructions",
			nil, labels,
		),
		recycled: prometheus.NewDesc(
			"pool_elements_recycled_total",
			"Total element retirements",
			nil, labels,
		),
	}
}

// Describe implements prometheus.Collector
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.slots
	ch <- c.chunks
	ch <- c.live
	ch <- c.created
	ch <- c.recycled
}

// Collect implements prometheus.Collector
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	st := c.stats()
	ch <- prometheus.MustNewConstMetric(c.slots, prometheus.GaugeValue, float64(st.Slots))
	ch <- prometheus.MustNewConstMetric(c.chunks, prometheus.GaugeValue, float64(st.Chunks))
	ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(st.Live))
	ch <- prometheus.MustNewConstMetric(c.created, prometheus.CounterValue, float64(st.Created))
	ch <- prometheus.MustNewConstMetric(c.recycled, prometheus.CounterValue, float64(st.Recycled))
}

var (
	// BenchCycles counts create/retire cycles completed by the stress driver.
	// Labels: worker (goroutine id), status (ok/stale)
	BenchCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "poolbench_cycles_total",
			Help: "Total create/retire cycles executed",
		},
		[]string{"worker", "status"},
	)

	// BenchCycleLatency tracks the distribution of single-cycle latencies in
	// nanoseconds. Buckets are tuned for sub-microsecond pool operations.
	BenchCycleLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "poolbench_cycle_latency_nanoseconds",
			Help: "Create/retire cycle latency in nanoseconds",
			Buckets: []float64{
				50,    // 50ns - free-list fast path
				100,   // 100ns
				500,   // 500ns
				1000,  // 1μs - contended CAS retries
				10000, // 10μs - chunk allocation slow path
				1e5,   // 100μs
				1e6,   // 1ms
			},
		},
	)
)

// Timer provides a simple timing mechanism for measuring operation durations.
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
func NewTimer(name string) *Timer {
	return &Timer{start: time.Now(), name: name}
}

// Stop returns the elapsed time since the timer was created.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}

// Name returns the timer's identifier.
func (t *Timer) Name() string {
	return t.name
}
