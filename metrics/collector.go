// Package metrics exports lifo pool statistics to Prometheus.
//
// The Collector reads each registered pool's Stats snapshot at scrape time,
// so no background polling is needed and values are never stale.
package metrics

import (
	"errors"
	"fmt"
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/tahsin716/lifo"
)

// StatsProvider is satisfied by *lifo.Pool.
type StatsProvider interface {
	Name() string
	Stats() lifo.Stats
}

// Collector is a prometheus.Collector over a set of pools.
type Collector struct {
	mu    sync.RWMutex
	pools map[string]StatsProvider

	workers        *prom.Desc
	idleWorkers    *prom.Desc
	coreWorkers    *prom.Desc
	maxWorkers     *prom.Desc
	queuedTasks    *prom.Desc
	queueSizeLimit *prom.Desc
	shutdown       *prom.Desc

	submitted      *prom.Desc
	accepted       *prom.Desc
	rejected       *prom.Desc
	completed      *prom.Desc
	failed         *prom.Desc
	drained        *prom.Desc
	handoffRetries *prom.Desc
	workersStarted *prom.Desc
}

var _ prom.Collector = (*Collector)(nil)

// NewCollector creates an unregistered collector. An empty namespace
// defaults to "lifo".
func NewCollector(namespace string) *Collector {
	if namespace == "" {
		namespace = "lifo"
	}
	desc := func(name, help string, labels ...string) *prom.Desc {
		return prom.NewDesc(prom.BuildFQName(namespace, "pool", name), help,
			append([]string{"pool"}, labels...), nil)
	}

	return &Collector{
		pools: make(map[string]StatsProvider),

		workers:        desc("workers", "Live workers per pool."),
		idleWorkers:    desc("idle_workers", "Workers parked waiting for a handoff."),
		coreWorkers:    desc("core_workers", "Workers exempt from idle eviction."),
		maxWorkers:     desc("max_workers", "Current worker ceiling."),
		queuedTasks:    desc("queued_tasks", "Tasks waiting in the queue."),
		queueSizeLimit: desc("queue_size_limit", "Current bound on queued tasks."),
		shutdown:       desc("shutdown", "Pool shutdown state (1=shut down, 0=accepting)."),

		submitted:      desc("tasks_submitted_total", "Tasks passed to Execute."),
		accepted:       desc("tasks_accepted_total", "Accepted tasks by route.", "route"),
		rejected:       desc("tasks_rejected_total", "Tasks passed to the rejection handler."),
		completed:      desc("tasks_completed_total", "Tasks that returned normally."),
		failed:         desc("tasks_failed_total", "Tasks that panicked."),
		drained:        desc("tasks_drained_total", "Queued tasks removed by ShutdownNow."),
		handoffRetries: desc("handoff_retries_total", "Handoff offers refused by an exiting worker."),
		workersStarted: desc("workers_started_total", "Workers started since the pool was created."),
	}
}

// Register creates a collector and registers it with reg, which defaults to
// prometheus.DefaultRegisterer. If an equivalent collector is already
// registered, that one is returned.
func Register(reg prom.Registerer, namespace string) (*Collector, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	c := NewCollector(namespace)

	err := reg.Register(c)
	if err == nil {
		return c, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(*Collector)
		if !ok {
			return nil, fmt.Errorf("collector type mismatch for %T", alreadyRegisteredErr.ExistingCollector)
		}
		return existing, nil
	}
	return nil, err
}

// Add adds or replaces a pool, keyed by its name.
func (c *Collector) Add(p StatsProvider) {
	if p == nil {
		return
	}
	c.mu.Lock()
	c.pools[p.Name()] = p
	c.mu.Unlock()
}

// Remove stops exporting the named pool.
func (c *Collector) Remove(name string) {
	c.mu.Lock()
	delete(c.pools, name)
	c.mu.Unlock()
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	for _, d := range []*prom.Desc{
		c.workers, c.idleWorkers, c.coreWorkers, c.maxWorkers,
		c.queuedTasks, c.queueSizeLimit, c.shutdown,
		c.submitted, c.accepted, c.rejected, c.completed, c.failed,
		c.drained, c.handoffRetries, c.workersStarted,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prom.Metric) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for name, p := range c.pools {
		s := p.Stats()

		gauge := func(d *prom.Desc, v float64) {
			ch <- prom.MustNewConstMetric(d, prom.GaugeValue, v, name)
		}
		counter := func(d *prom.Desc, v uint64, labels ...string) {
			ch <- prom.MustNewConstMetric(d, prom.CounterValue, float64(v), append([]string{name}, labels...)...)
		}

		gauge(c.workers, float64(s.Workers))
		gauge(c.idleWorkers, float64(s.IdleWorkers))
		gauge(c.coreWorkers, float64(s.CoreWorkers))
		gauge(c.maxWorkers, float64(s.MaxWorkers))
		gauge(c.queuedTasks, float64(s.QueuedTasks))
		gauge(c.queueSizeLimit, float64(s.QueueSizeLimit))
		if s.Shutdown {
			gauge(c.shutdown, 1)
		} else {
			gauge(c.shutdown, 0)
		}

		counter(c.submitted, s.Submitted)
		counter(c.accepted, s.HandedOff, "handoff")
		counter(c.accepted, s.Spawned, "spawn")
		counter(c.accepted, s.Queued, "queue")
		counter(c.rejected, s.Rejected)
		counter(c.completed, s.Completed)
		counter(c.failed, s.Failed)
		counter(c.drained, s.Drained)
		counter(c.handoffRetries, s.HandoffRetries)
		counter(c.workersStarted, s.WorkersStarted)
	}
}
