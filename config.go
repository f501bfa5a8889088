package lifo

import (
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Thread priority bounds. Goroutines have no OS priority, so the value is
// only stamped on workers and surfaced through WorkerInfo.
const (
	MinPriority  = 1
	NormPriority = 5
	MaxPriority  = 10
)

// Config contains all configuration options for the pool.
type Config struct {
	// CoreWorkers is the number of workers that never exit because of idling.
	// They are started by New.
	CoreWorkers int

	// MaxWorkers is the ceiling on live workers. Live-tunable.
	MaxWorkers int

	// MaxIdleTime is how long a non-core worker may wait for work before it
	// exits. Live-tunable; parked workers pick up changes immediately.
	MaxIdleTime time.Duration

	// QueueSizeLimit bounds the number of tasks waiting for a worker.
	// Zero disables queueing. Live-tunable.
	QueueSizeLimit int

	// SpinCount is the number of non-blocking handoff checks an idle worker
	// makes before blocking. Higher values trade CPU for latency.
	SpinCount int

	// Daemon and Priority are stamped on every newly spawned worker.
	Daemon   bool
	Priority int

	// CoreMinWait is the minimum idle wait of a worker that stayed alive as a
	// core worker, so that a zero MaxIdleTime does not make it spin.
	CoreMinWait time.Duration

	// RejectionHandler decides what happens to tasks that cannot be accepted.
	// Defaults to AbortPolicy.
	RejectionHandler RejectionHandler

	// UncaughtHandler receives task panics. Defaults to logging them.
	UncaughtHandler func(w WorkerInfo, err error)

	// OnWorkerStart is called on the worker goroutine when it starts.
	OnWorkerStart func(w WorkerInfo)

	// OnWorkerStop is called on the worker goroutine just before it exits.
	OnWorkerStop func(w WorkerInfo)

	// PinWorkerThreads locks every worker goroutine to its own OS thread.
	PinWorkerThreads bool

	// Logger receives pool diagnostics. Defaults to zap.S().Named("lifo").
	Logger *zap.SugaredLogger
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		CoreWorkers:      0,
		MaxWorkers:       64,
		MaxIdleTime:      60 * time.Second,
		QueueSizeLimit:   1024,
		SpinCount:        1024,
		Priority:         NormPriority,
		CoreMinWait:      time.Second,
		RejectionHandler: AbortPolicy{},
	}
}

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var err error

	if c.CoreWorkers < 0 {
		err = multierr.Append(err, errInvalidConfig("CoreWorkers must be >= 0, got %d", c.CoreWorkers))
	}
	if c.MaxWorkers < 0 {
		err = multierr.Append(err, errInvalidConfig("MaxWorkers must be >= 0, got %d", c.MaxWorkers))
	}
	if c.CoreWorkers > c.MaxWorkers {
		err = multierr.Append(err, errInvalidConfig("CoreWorkers must be <= MaxWorkers, got %d > %d",
			c.CoreWorkers, c.MaxWorkers))
	}
	if c.MaxIdleTime < 0 {
		err = multierr.Append(err, errInvalidConfig("MaxIdleTime must be >= 0, got %v", c.MaxIdleTime))
	}
	if c.QueueSizeLimit < 0 {
		err = multierr.Append(err, errInvalidConfig("QueueSizeLimit must be >= 0, got %d", c.QueueSizeLimit))
	}
	if c.SpinCount < 0 {
		err = multierr.Append(err, errInvalidConfig("SpinCount must be >= 0, got %d", c.SpinCount))
	}
	if c.CoreMinWait < 0 {
		err = multierr.Append(err, errInvalidConfig("CoreMinWait must be >= 0, got %v", c.CoreMinWait))
	}
	if perr := validatePriority(c.Priority); perr != nil {
		err = multierr.Append(err, perr)
	}

	return err
}

func validatePriority(p int) error {
	if p < MinPriority || p > MaxPriority {
		return errInvalidConfig("Priority must be in [%d, %d], got %d", MinPriority, MaxPriority, p)
	}
	return nil
}
