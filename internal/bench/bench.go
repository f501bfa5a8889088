// Package bench drives a lifo.Pool with a configurable synthetic load.
//
// Producers submit tasks concurrently, optionally rate limited. Tasks
// rejected because the pool is saturated can be resubmitted with
// exponential backoff, which is how a retrying caller would sit on top of
// the pool.
package bench

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tahsin716/lifo"
	"github.com/tahsin716/lifo/internal/config"
)

// errInjected is the panic value of the deliberately failing tasks.
var errInjected = errors.New("bench: injected task failure")

// Runner submits a fixed number of tasks to a pool and reports the outcome.
type Runner struct {
	pool *lifo.Pool
	cfg  config.Bench
	log  *zap.SugaredLogger

	executed     atomic.Uint64
	inlineFailed atomic.Uint64
	retried      atomic.Uint64
	gaveUp       atomic.Uint64
}

// New creates a Runner. A nil logger means zap.S().
func New(pool *lifo.Pool, cfg config.Bench, log *zap.SugaredLogger) *Runner {
	if log == nil {
		log = zap.S()
	}
	return &Runner{pool: pool, cfg: cfg, log: log.Named("bench")}
}

// Run submits every task, then shuts the pool down and waits for it to
// terminate. The pool cannot be reused by another Runner afterwards
// without calling Start.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	runID := uuid.NewString()
	log := r.log.With("run", runID)

	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	var limiter *rate.Limiter
	if r.cfg.Rate > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.cfg.Rate), r.cfg.Producers)
	}

	log.Infow("bench started", "tasks", r.cfg.Tasks, "producers", r.cfg.Producers,
		"rate", r.cfg.Rate, "pool", r.pool.Name())
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	next := atomic.Int64{}
	for i := 0; i < r.cfg.Producers; i++ {
		g.Go(func() error {
			for {
				idx := int(next.Add(1) - 1)
				if idx >= r.cfg.Tasks {
					return nil
				}
				if err := gctx.Err(); err != nil {
					return err
				}
				if limiter != nil {
					if err := limiter.Wait(gctx); err != nil {
						return err
					}
				}
				if err := r.submit(gctx, r.task(idx)); err != nil {
					return err
				}
			}
		})
	}
	submitErr := g.Wait()

	r.pool.Shutdown()
	terminated, err := r.pool.AwaitTerminationContext(ctx)
	elapsed := time.Since(start)

	report := &Report{
		RunID:      runID,
		Tasks:      r.cfg.Tasks,
		Executed:   r.executed.Load(),
		Retried:    r.retried.Load(),
		GaveUp:     r.gaveUp.Load(),
		Terminated: terminated,
		Elapsed:    elapsed,
		Stats:      r.pool.Stats(),
	}
	report.Failed = report.Stats.Failed + r.inlineFailed.Load()

	if submitErr != nil {
		return report, fmt.Errorf("submitting tasks: %w", submitErr)
	}
	if err != nil {
		return report, fmt.Errorf("awaiting pool termination: %w", err)
	}
	log.Infow("bench finished", "elapsed", elapsed, "executed", report.Executed, "failed", report.Failed)
	return report, nil
}

// task builds the idx-th task. The first FailingTasks tasks panic.
func (r *Runner) task(idx int) lifo.Task {
	if idx < r.cfg.FailingTasks {
		return func(context.Context) {
			panic(errInjected)
		}
	}
	d := r.cfg.TaskDuration
	return func(ctx context.Context) {
		if d > 0 {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return
			}
		}
		r.executed.Add(1)
	}
}

// submit executes task, retrying saturation rejections when enabled. Only
// context errors and shutdown are fatal; a task that exhausted its retries
// is counted and dropped.
func (r *Runner) submit(ctx context.Context, task lifo.Task) error {
	err := r.execute(task)
	if err == nil {
		return nil
	}
	if !errors.Is(err, lifo.ErrQueueFull) || !r.cfg.Retry {
		return r.dropped(err)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.RetryInitial
	b.MaxInterval = r.cfg.RetryMax

	_, err = backoff.Retry(ctx, func() (struct{}, error) {
		r.retried.Add(1)
		err := r.execute(task)
		if errors.Is(err, lifo.ErrPoolShutdown) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(r.cfg.RetryMaxTries))
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return r.dropped(err)
}

func (r *Runner) dropped(err error) error {
	if errors.Is(err, lifo.ErrPoolShutdown) {
		return err
	}
	r.gaveUp.Add(1)
	r.log.Debugw("task dropped", "error", err)
	return nil
}

// execute submits task to the pool. A task run inline by CallerRunsPolicy
// that panics is recovered here and counted.
func (r *Runner) execute(task lifo.Task) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.inlineFailed.Add(1)
			r.log.Debugw("task panicked on producer", "panic", rec)
		}
	}()
	return r.pool.Execute(task)
}
