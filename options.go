package lifo

import (
	"time"

	"go.uber.org/zap"
)

// Option configures a Pool.
type Option func(*Config)

// WithCoreWorkers sets the number of workers exempt from idle eviction.
func WithCoreWorkers(n int) Option {
	return func(c *Config) { c.CoreWorkers = n }
}

// WithMaxWorkers sets the ceiling on live workers.
func WithMaxWorkers(n int) Option {
	return func(c *Config) { c.MaxWorkers = n }
}

// WithMaxIdleTime sets how long a non-core worker may idle before exiting.
func WithMaxIdleTime(d time.Duration) Option {
	return func(c *Config) { c.MaxIdleTime = d }
}

// WithQueueSizeLimit sets the maximum number of queued tasks.
func WithQueueSizeLimit(n int) Option {
	return func(c *Config) { c.QueueSizeLimit = n }
}

// WithSpinCount sets how many non-blocking handoff checks precede blocking.
func WithSpinCount(n int) Option {
	return func(c *Config) { c.SpinCount = n }
}

// WithDaemon sets the daemon flag stamped on new workers.
func WithDaemon(daemon bool) Option {
	return func(c *Config) { c.Daemon = daemon }
}

// WithPriority sets the priority stamped on new workers.
func WithPriority(p int) Option {
	return func(c *Config) { c.Priority = p }
}

// WithCoreMinWait sets the minimum idle wait of a surviving core worker.
func WithCoreMinWait(d time.Duration) Option {
	return func(c *Config) { c.CoreMinWait = d }
}

// WithRejectionHandler sets the policy for tasks that cannot be accepted.
func WithRejectionHandler(h RejectionHandler) Option {
	return func(c *Config) { c.RejectionHandler = h }
}

// WithUncaughtHandler sets the receiver of task panics.
func WithUncaughtHandler(h func(w WorkerInfo, err error)) Option {
	return func(c *Config) { c.UncaughtHandler = h }
}

// WithWorkerHooks sets callbacks run when a worker starts and stops.
func WithWorkerHooks(onStart, onStop func(w WorkerInfo)) Option {
	return func(c *Config) {
		c.OnWorkerStart = onStart
		c.OnWorkerStop = onStop
	}
}

// WithPinWorkerThreads locks each worker goroutine to an OS thread.
func WithPinWorkerThreads(pin bool) Option {
	return func(c *Config) { c.PinWorkerThreads = pin }
}

// WithLogger sets the logger used for pool diagnostics.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Config) { c.Logger = l }
}
