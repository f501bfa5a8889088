package bench_test

import (
	"bytes"
	"context"
	"time"

	"github.com/fatih/color"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/tahsin716/lifo"
	"github.com/tahsin716/lifo/internal/bench"
	"github.com/tahsin716/lifo/internal/config"
)

var _ = Describe("Runner", func() {
	var (
		log *zap.SugaredLogger
		cfg config.Bench
	)

	BeforeEach(func() {
		log = zap.NewNop().Sugar()
		cfg = config.Default().Bench
		cfg.Tasks = 200
		cfg.Producers = 4
		cfg.FailingTasks = 0
		cfg.RetryMax = time.Millisecond
		cfg.Timeout = 30 * time.Second
	})

	newPool := func(opts ...lifo.Option) *lifo.Pool {
		opts = append([]lifo.Option{lifo.WithLogger(log)}, opts...)
		pool, err := lifo.New("bench-test", opts...)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			pool.ShutdownNow()
			_, _ = pool.AwaitTermination(5 * time.Second)
		})
		return pool
	}

	Context("Run", func() {
		// Given a small pool that rejects when saturated
		// When the runner retries rejected tasks
		// Then every task eventually runs and the pool terminates
		It("should complete every task with retries", func() {
			// Arrange
			pool := newPool(lifo.WithMaxWorkers(2), lifo.WithQueueSizeLimit(4))
			cfg.TaskDuration = 100 * time.Microsecond
			cfg.FailingTasks = 3

			// Act
			report, err := bench.New(pool, cfg, log).Run(context.Background())

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(report.RunID).NotTo(BeEmpty())
			Expect(report.Executed).To(BeEquivalentTo(197))
			Expect(report.Failed).To(BeEquivalentTo(3))
			Expect(report.GaveUp).To(BeZero())
			Expect(report.Terminated).To(BeTrue())
			Expect(pool.IsTerminated()).To(BeTrue())
		})

		// Given retries disabled and a pool that cannot keep up
		// When the runner submits a burst
		// Then rejected tasks are dropped and counted once each
		It("should drop rejected tasks without retry", func() {
			pool := newPool(lifo.WithMaxWorkers(1), lifo.WithQueueSizeLimit(0))
			cfg.Tasks = 20
			cfg.Retry = false
			cfg.TaskDuration = 5 * time.Millisecond

			report, err := bench.New(pool, cfg, log).Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(report.GaveUp).To(BeNumerically(">", 0))
			Expect(report.Executed + report.GaveUp).To(BeEquivalentTo(20))
			Expect(report.Stats.Rejected).To(Equal(report.GaveUp))
		})

		// Given a caller-runs pool and failing tasks
		// When some tasks run on the producers
		// Then inline panics are recovered and counted with the others
		It("should count panics of tasks run by the caller", func() {
			pool := newPool(
				lifo.WithMaxWorkers(1),
				lifo.WithQueueSizeLimit(0),
				lifo.WithRejectionHandler(lifo.CallerRunsPolicy{}),
			)
			cfg.Tasks = 50
			cfg.FailingTasks = 2
			cfg.Retry = false

			report, err := bench.New(pool, cfg, log).Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Executed).To(BeEquivalentTo(48))
			Expect(report.Failed).To(BeEquivalentTo(2))
			Expect(report.GaveUp).To(BeZero())
		})

		It("should honour the rate limit", func() {
			pool := newPool()
			cfg.Tasks = 20
			cfg.Producers = 1
			cfg.Rate = 200

			report, err := bench.New(pool, cfg, log).Run(context.Background())

			Expect(err).NotTo(HaveOccurred())
			Expect(report.Executed).To(BeEquivalentTo(20))
			// 19 tokens refill at 5ms each after the initial burst of one
			Expect(report.Elapsed).To(BeNumerically(">=", 80*time.Millisecond))
		})

		It("should stop when the context is cancelled", func() {
			pool := newPool()
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			report, err := bench.New(pool, cfg, log).Run(ctx)

			Expect(err).To(MatchError(context.Canceled))
			Expect(report.Executed).To(BeZero())
			Expect(pool.IsShutdown()).To(BeTrue())
		})
	})

	Context("Report", func() {
		It("should print a summary", func() {
			color.NoColor = true
			pool := newPool()
			cfg.Tasks = 10

			report, err := bench.New(pool, cfg, log).Run(context.Background())
			Expect(err).NotTo(HaveOccurred())

			var buf bytes.Buffer
			report.Print(&buf)

			Expect(buf.String()).To(ContainSubstring(report.RunID))
			Expect(buf.String()).To(ContainSubstring("10 executed"))
			Expect(buf.String()).To(ContainSubstring("terminated   true"))
		})

		It("should compute ratios without division by zero", func() {
			r := &bench.Report{}

			Expect(r.Throughput()).To(BeZero())
			Expect(r.HandoffRatio()).To(BeZero())

			r.Stats = lifo.Stats{HandedOff: 3, Spawned: 1}
			Expect(r.HandoffRatio()).To(Equal(0.75))
		})
	})
})
