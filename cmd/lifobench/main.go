// Command lifobench runs a synthetic load against a lifo.Pool and prints
// the outcome.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tahsin716/lifo"
	"github.com/tahsin716/lifo/internal/bench"
	"github.com/tahsin716/lifo/internal/config"
	"github.com/tahsin716/lifo/metrics"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "lifobench:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:           "lifobench",
		Short:         "Benchmark a LIFO handoff worker pool",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Flags(), configFile)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file (yaml, json or toml)")
	config.RegisterFlags(cmd.Flags())
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()
	log := logger.Sugar()

	undoProcs, err := maxprocs.Set(maxprocs.Logger(log.Infof))
	if err != nil {
		log.Warnw("failed to set GOMAXPROCS", "error", err)
	}
	defer undoProcs()

	pool, err := lifo.New(cfg.Pool.Name, append(cfg.Pool.Options(), lifo.WithLogger(log))...)
	if err != nil {
		return err
	}

	if cfg.MetricsAddr != "" {
		stop, err := serveMetrics(cfg.MetricsAddr, pool, log)
		if err != nil {
			pool.ShutdownNow()
			return err
		}
		defer stop()
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	report, err := bench.New(pool, cfg.Bench, log).Run(ctx)
	if report != nil {
		report.Print(os.Stdout)
	}
	if err != nil {
		dropped := pool.ShutdownNow()
		log.Errorw("bench aborted", "error", err, "dropped", len(dropped))
		return err
	}
	return nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	zcfg := zap.NewDevelopmentConfig()
	if cfg.LogFormat == "json" {
		zcfg = zap.NewProductionConfig()
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	return zcfg.Build()
}

// serveMetrics exposes the pool on addr/metrics until the returned stop
// func is called.
func serveMetrics(addr string, pool *lifo.Pool, log *zap.SugaredLogger) (func(), error) {
	reg := prom.NewRegistry()
	collector, err := metrics.Register(reg, "")
	if err != nil {
		return nil, err
	}
	collector.Add(pool)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "addr", addr, "error", err)
		}
	}()
	log.Infow("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
