package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"

	"github.com/tahsin716/lifo"
	"github.com/tahsin716/lifo/internal/config"
)

var _ = Describe("Config", func() {
	var fs *pflag.FlagSet

	BeforeEach(func() {
		fs = pflag.NewFlagSet("test", pflag.ContinueOnError)
		config.RegisterFlags(fs)
	})

	Context("Load", func() {
		// Given no file, env or flags
		// When the config is loaded
		// Then the struct tag defaults apply
		It("should use defaults", func() {
			cfg, err := config.Load(fs, "")

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Pool.Name).To(Equal("lifobench"))
			Expect(cfg.Pool.MaxWorkers).To(Equal(64))
			Expect(cfg.Pool.MaxIdleTime).To(Equal(60 * time.Second))
			Expect(cfg.Pool.Priority).To(Equal(lifo.NormPriority))
			Expect(cfg.Bench.Tasks).To(Equal(1000000))
			Expect(cfg.Bench.RetryInitial).To(Equal(50 * time.Microsecond))
			Expect(cfg.Bench.Retry).To(BeTrue())
			Expect(cfg.LogLevel).To(Equal("info"))
		})

		It("should load with a nil flag set", func() {
			cfg, err := config.Load(nil, "")

			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Pool.QueueSizeLimit).To(Equal(1024))
		})

		// Given a config file, an env var and a flag touching the same section
		// When the config is loaded
		// Then flags beat env and env beats the file
		It("should layer file, env and flags", func() {
			// Arrange
			file := filepath.Join(GinkgoT().TempDir(), "lifobench.yaml")
			Expect(os.WriteFile(file, []byte(`
pool:
  max-workers: 8
  queue-size-limit: 16
  max-idle-time: 250ms
bench:
  tasks: 100
`), 0o600)).To(Succeed())
			GinkgoT().Setenv("LIFOBENCH_POOL_QUEUE_SIZE_LIMIT", "32")
			GinkgoT().Setenv("LIFOBENCH_BENCH_TASKS", "200")
			Expect(fs.Parse([]string{"--tasks=300", "--rejection=caller-runs"})).To(Succeed())

			// Act
			cfg, err := config.Load(fs, file)

			// Assert
			Expect(err).NotTo(HaveOccurred())
			Expect(cfg.Pool.MaxWorkers).To(Equal(8))
			Expect(cfg.Pool.MaxIdleTime).To(Equal(250 * time.Millisecond))
			Expect(cfg.Pool.QueueSizeLimit).To(Equal(32))
			Expect(cfg.Bench.Tasks).To(Equal(300))
			Expect(cfg.Pool.Rejection).To(Equal(config.RejectCallerRuns))
		})

		It("should fail on a missing config file", func() {
			_, err := config.Load(fs, filepath.Join(GinkgoT().TempDir(), "missing.yaml"))

			Expect(err).To(HaveOccurred())
		})

		// Given several invalid settings
		// When the config is loaded
		// Then every problem is reported
		It("should report every invalid setting", func() {
			Expect(fs.Parse([]string{
				"--core-workers=10",
				"--max-workers=2",
				"--producers=0",
				"--rejection=bogus",
				"--log-level=loud",
			})).To(Succeed())

			_, err := config.Load(fs, "")

			Expect(err).To(HaveOccurred())
			Expect(multierr.Errors(err)).To(HaveLen(4))
			Expect(err).To(MatchError(lifo.ErrInvalidConfig))
			Expect(err.Error()).To(ContainSubstring("bogus"))
		})
	})

	Context("Pool", func() {
		It("should map rejection names to policies", func() {
			cases := map[string]lifo.RejectionHandler{
				config.RejectAbort:         lifo.AbortPolicy{},
				config.RejectCallerRuns:    lifo.CallerRunsPolicy{},
				config.RejectDiscard:       lifo.DiscardPolicy{},
				config.RejectDiscardOldest: lifo.DiscardOldestPolicy{},
			}
			for name, want := range cases {
				Expect(config.Pool{Rejection: name}.RejectionHandler()).To(Equal(want), name)
			}
		})

		// Given a pool section
		// When it is turned into options
		// Then a pool built from them carries the same settings
		It("should build a matching pool", func() {
			cfg := config.Default()
			cfg.Pool.CoreWorkers = 1
			cfg.Pool.MaxWorkers = 3
			cfg.Pool.QueueSizeLimit = 7
			cfg.Pool.Priority = lifo.MaxPriority

			pool, err := lifo.New(cfg.Pool.Name, cfg.Pool.Options()...)
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(func() {
				pool.ShutdownNow()
				_, _ = pool.AwaitTermination(5 * time.Second)
			})

			Expect(pool.WorkerCount()).To(Equal(1))
			Expect(pool.MaxWorkers()).To(Equal(3))
			Expect(pool.QueueSizeLimit()).To(Equal(7))
			Expect(pool.Priority()).To(Equal(lifo.MaxPriority))
		})
	})
})
