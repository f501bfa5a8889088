package metrics_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"

	"github.com/tahsin716/lifo"
	"github.com/tahsin716/lifo/metrics"
)

type poolStub struct {
	name  string
	stats lifo.Stats
}

func (s poolStub) Name() string      { return s.name }
func (s poolStub) Stats() lifo.Stats { return s.stats }

var _ = Describe("Collector", func() {
	var (
		reg       *prom.Registry
		collector *metrics.Collector
	)

	BeforeEach(func() {
		reg = prom.NewRegistry()

		var err error
		collector, err = metrics.Register(reg, "")
		Expect(err).NotTo(HaveOccurred())
	})

	Context("Collect", func() {
		// Given a registered pool with a known snapshot
		// When the registry is gathered
		// Then the gauges and counters reflect the snapshot
		It("should export the pool snapshot", func() {
			// Arrange
			collector.Add(poolStub{name: "pool-a", stats: lifo.Stats{
				Workers:     3,
				IdleWorkers: 1,
				QueuedTasks: 4,
				Shutdown:    true,
				HandedOff:   7,
				Spawned:     2,
				Queued:      5,
				Rejected:    1,
			}})

			// Act
			expected := `
# HELP lifo_pool_workers Live workers per pool.
# TYPE lifo_pool_workers gauge
lifo_pool_workers{pool="pool-a"} 3
# HELP lifo_pool_shutdown Pool shutdown state (1=shut down, 0=accepting).
# TYPE lifo_pool_shutdown gauge
lifo_pool_shutdown{pool="pool-a"} 1
# HELP lifo_pool_tasks_accepted_total Accepted tasks by route.
# TYPE lifo_pool_tasks_accepted_total counter
lifo_pool_tasks_accepted_total{pool="pool-a",route="handoff"} 7
lifo_pool_tasks_accepted_total{pool="pool-a",route="queue"} 5
lifo_pool_tasks_accepted_total{pool="pool-a",route="spawn"} 2
`
			err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
				"lifo_pool_workers", "lifo_pool_shutdown", "lifo_pool_tasks_accepted_total")

			// Assert
			Expect(err).NotTo(HaveOccurred())
		})

		// Given two pools, one of which is removed
		// When the collector is scraped
		// Then only the remaining pool is exported
		It("should stop exporting removed pools", func() {
			collector.Add(poolStub{name: "a"})
			collector.Add(poolStub{name: "b"})
			collector.Remove("a")

			// 17 series per pool, three of them for the accepted routes
			Expect(testutil.CollectAndCount(collector)).To(Equal(17))
		})

		// Given a live pool that ran some tasks
		// When the registry is gathered
		// Then the completed counter matches the pool stats
		It("should read a live pool at scrape time", func() {
			pool, err := lifo.New("live", lifo.WithLogger(zap.NewNop().Sugar()), lifo.WithMaxWorkers(2))
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() {
				pool.Shutdown()
				_, _ = pool.AwaitTermination(5 * time.Second)
			})
			collector.Add(pool)

			for i := 0; i < 10; i++ {
				Expect(pool.Execute(func(context.Context) {})).To(Succeed())
			}

			Eventually(func() float64 {
				return gatherValue(reg, "lifo_pool_tasks_completed_total")
			}).WithTimeout(time.Second).Should(Equal(10.0))
		})
	})

	Context("Register", func() {
		// Given a collector already registered under the same namespace
		// When Register is called again
		// Then the existing collector is returned
		It("should return the existing collector", func() {
			again, err := metrics.Register(reg, "lifo")
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(BeIdenticalTo(collector))
		})

		It("should keep namespaces apart", func() {
			other, err := metrics.Register(reg, "other")
			Expect(err).NotTo(HaveOccurred())
			Expect(other).NotTo(BeIdenticalTo(collector))
		})
	})
})

func gatherValue(reg *prom.Registry, name string) float64 {
	families, err := reg.Gather()
	Expect(err).NotTo(HaveOccurred())
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			return m.GetCounter().GetValue()
		}
	}
	return -1
}
