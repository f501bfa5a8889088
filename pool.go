package lifo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/tahsin716/lifo/internal/syncx"
)

// Pool is a LIFO-preferring, live-tunable worker pool.
//
// A submitted task goes to the most recently idled worker, or to a newly
// spawned worker while the pool is below MaxWorkers, or to the queue while
// it is below QueueSizeLimit. Otherwise the rejection handler decides.
type Pool struct {
	name string
	cfg  Config
	log  *zap.SugaredLogger

	// mu guards everything below it up to metrics. cond is bound to mu and
	// broadcast whenever a worker exits.
	mu    syncx.Mutex
	cond  *sync.Cond
	queue *taskQueue
	idle  *idleStack
	state *poolState

	maxWorkers     int
	queueSizeLimit int
	daemon         bool
	priority       int

	nextWorkerID atomic.Uint64
	metrics      poolMetrics
}

// poolMetrics tracks pool-wide statistics
type poolMetrics struct {
	submitted      atomic.Uint64
	handedOff      atomic.Uint64
	spawned        atomic.Uint64
	workersStarted atomic.Uint64
	queued         atomic.Uint64
	rejected       atomic.Uint64
	completed      atomic.Uint64
	failed         atomic.Uint64
	drained        atomic.Uint64
	discarded      atomic.Uint64
	handoffRetries atomic.Uint64
}

// New creates a pool named name and starts its core workers.
// It returns an error if the configuration is invalid.
//
// Example:
//
//	pool, err := lifo.New("ingest",
//	    lifo.WithCoreWorkers(2),
//	    lifo.WithMaxWorkers(32),
//	    lifo.WithQueueSizeLimit(1000),
//	)
func New(name string, opts ...Option) (*Pool, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.RejectionHandler == nil {
		cfg.RejectionHandler = AbortPolicy{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.S().Named("lifo")
	}
	log := cfg.Logger.With("pool", name)
	if cfg.UncaughtHandler == nil {
		cfg.UncaughtHandler = func(w WorkerInfo, err error) {
			log.Errorw("task panicked", "worker", w.Name, "error", err)
		}
	}

	p := &Pool{
		name:           name,
		cfg:            cfg,
		log:            log,
		queue:          newTaskQueue(min(cfg.QueueSizeLimit, 1024)),
		idle:           newIdleStack(min(cfg.MaxWorkers, 1024)),
		state:          newPoolState(&cfg),
		maxWorkers:     cfg.MaxWorkers,
		queueSizeLimit: cfg.QueueSizeLimit,
		daemon:         cfg.Daemon,
		priority:       cfg.Priority,
	}
	p.cond = sync.NewCond(&p.mu)

	p.mu.Lock()
	started := p.startCoreWorkers()
	p.mu.Unlock()
	for _, w := range started {
		go w.run()
	}

	log.Debugw("pool created", "core", cfg.CoreWorkers, "max", cfg.MaxWorkers,
		"queueSizeLimit", cfg.QueueSizeLimit, "maxIdleTime", cfg.MaxIdleTime)
	return p, nil
}

// startCoreWorkers registers workers until the core count is reached and
// returns them for the caller to start after releasing the lock. Workers
// interrupted by ShutdownNow do not count towards the core.
func (p *Pool) startCoreWorkers() []*worker {
	var started []*worker
	for p.state.liveCount() < p.state.coreWorkers {
		w := p.newWorker(nil)
		p.state.addWorker(w)
		started = append(started, w)
	}
	p.metrics.workersStarted.Add(uint64(len(started)))
	return started
}

// Execute submits a task.
//
// The task is handed directly to the most recently idled worker when there
// is one, so it may run before tasks already waiting in the queue. Ordering
// between submissions is therefore not FIFO.
//
// Returns ErrNilTask if task is nil. When the task cannot be accepted,
// because the pool is shut down or saturated, the rejection handler is
// invoked and its result returned; with the default AbortPolicy that is a
// *RejectedError.
//
// Example:
//
//	err := pool.Execute(func(ctx context.Context) {
//	    fmt.Println("Task executed")
//	})
func (p *Pool) Execute(task Task) error {
	return p.execute(task, p.cfg.RejectionHandler)
}

func (p *Pool) execute(task Task, onReject RejectionHandler) error {
	if task == nil {
		return ErrNilTask
	}
	p.metrics.submitted.Add(1)
	return p.dispatch(task, onReject)
}

// dispatch places a submitted task. Rejection handlers that retry call it
// directly so the task is not counted as submitted twice.
func (p *Pool) dispatch(task Task, onReject RejectionHandler) error {
	p.mu.Lock()
	if p.state.shutdown {
		p.mu.Unlock()
		return p.reject(task, onReject, ErrPoolShutdown)
	}

	// Hand off to the most recently idled worker. An offer fails when the
	// worker started exiting after it was popped; try the next one.
	for w := p.idle.popLast(); w != nil; w = p.idle.popLast() {
		w.parked = false
		p.mu.Unlock()
		if w.slot.offer(task) {
			p.metrics.handedOff.Add(1)
			return nil
		}
		p.metrics.handoffRetries.Add(1)
		p.mu.Lock()
	}

	// The lock was released between offers.
	if p.state.shutdown {
		p.mu.Unlock()
		return p.reject(task, onReject, ErrPoolShutdown)
	}

	if p.state.workerCount() < p.maxWorkers {
		w := p.newWorker(task)
		p.state.addWorker(w)
		p.mu.Unlock()
		p.metrics.spawned.Add(1)
		p.metrics.workersStarted.Add(1)
		go w.run()
		return nil
	}

	if p.queue.len() >= p.queueSizeLimit {
		p.mu.Unlock()
		return p.reject(task, onReject, ErrQueueFull)
	}
	p.queue.push(task)
	p.mu.Unlock()
	p.metrics.queued.Add(1)
	return nil
}

func (p *Pool) reject(task Task, h RejectionHandler, cause error) error {
	p.metrics.rejected.Add(1)
	p.log.Debugw("task rejected", "cause", cause)
	return h.RejectedExecution(task, p, cause)
}

// dropOldestQueued removes the task at the head of the queue.
func (p *Pool) dropOldestQueued() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.pop() != nil
}

// Shutdown stops accepting tasks. Queued tasks still run; idle workers are
// woken so they can drain the queue and exit. It does not wait; use
// AwaitTermination for that.
//
// Multiple calls to Shutdown are safe.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shutdownLocked()
}

func (p *Pool) shutdownLocked() {
	if p.state.shutdown {
		return
	}
	p.state.shutdown = true
	for w := p.idle.popLast(); w != nil; w = p.idle.popLast() {
		w.parked = false
		w.slot.signal()
	}
	p.log.Debugw("pool shutdown", "workers", p.state.workerCount(), "queued", p.queue.len())
}

// ShutdownNow shuts the pool down, interrupts every worker by cancelling
// the context handed to its tasks, and removes the queued tasks, which are
// returned in submission order and will not run.
func (p *Pool) ShutdownNow() []Task {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.shutdownLocked()
	p.state.interruptAll()
	tasks := p.queue.drain()
	p.metrics.drained.Add(uint64(len(tasks)))
	return tasks
}

// IsShutdown reports whether Shutdown or ShutdownNow has been called since
// the pool was created or last started.
func (p *Pool) IsShutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.shutdown
}

// IsTerminated reports whether the pool is shut down and every worker has
// exited.
func (p *Pool) IsTerminated() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.shutdown && p.state.workerCount() == 0
}

// AwaitTermination blocks until every worker has exited after shutdown, or
// the timeout elapses. It reports whether the pool terminated.
// Calling it on a pool that is not shut down is a programming error and
// returns ErrNotShutdown, which matches ErrIllegalState.
func (p *Pool) AwaitTermination(timeout time.Duration) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	ok, err := p.AwaitTerminationContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return ok, err
}

// AwaitTerminationContext is AwaitTermination bounded by ctx. It returns
// ctx.Err() when ctx ends first.
func (p *Pool) AwaitTerminationContext(ctx context.Context) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.shutdown {
		return false, ErrNotShutdown
	}
	if p.state.workerCount() == 0 {
		return true, nil
	}

	stop := context.AfterFunc(ctx, func() {
		p.mu.Lock()
		p.cond.Broadcast()
		p.mu.Unlock()
	})
	defer stop()

	for p.state.workerCount() > 0 {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		p.cond.Wait()
	}
	return true, nil
}

// Start re-opens a shut-down pool for submissions and brings the worker
// count back up to the core size. It is a no-op on a running pool.
func (p *Pool) Start() {
	p.mu.Lock()
	if !p.state.shutdown {
		p.mu.Unlock()
		return
	}
	p.state.shutdown = false
	started := p.startCoreWorkers()
	p.mu.Unlock()

	for _, w := range started {
		go w.run()
	}
	p.log.Debugw("pool started", "workers", len(started))
}

// Name returns the pool name, also used as the worker name prefix.
func (p *Pool) Name() string {
	return p.name
}

// WorkerCount returns the number of live workers.
func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state.workerCount()
}

// IdleWorkers returns the number of workers parked waiting for a handoff.
func (p *Pool) IdleWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle.len()
}

// QueuedTasks returns the number of tasks waiting in the queue.
func (p *Pool) QueuedTasks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.len()
}

// CoreWorkers returns the number of workers exempt from idle eviction.
func (p *Pool) CoreWorkers() int {
	return p.state.coreWorkers
}

// MaxWorkers returns the current worker ceiling.
func (p *Pool) MaxWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.maxWorkers
}

// SetMaxWorkers changes the worker ceiling. Lowering it does not stop
// running workers; they leave as they go idle. Raising it while tasks are
// queued spawns workers for the backlog.
func (p *Pool) SetMaxWorkers(n int) error {
	p.mu.Lock()
	if n < 0 || n < p.state.coreWorkers {
		p.mu.Unlock()
		return errInvalidConfig("MaxWorkers must be >= CoreWorkers (%d), got %d", p.state.coreWorkers, n)
	}
	p.maxWorkers = n

	var started []*worker
	if !p.state.shutdown {
		for backlog := p.queue.len(); backlog > 0 && p.state.workerCount() < n; backlog-- {
			w := p.newWorker(nil)
			p.state.addWorker(w)
			started = append(started, w)
		}
	}
	p.metrics.workersStarted.Add(uint64(len(started)))
	p.mu.Unlock()

	for _, w := range started {
		go w.run()
	}
	return nil
}

// QueueSizeLimit returns the current bound on queued tasks.
func (p *Pool) QueueSizeLimit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queueSizeLimit
}

// SetQueueSizeLimit changes the bound on queued tasks. Tasks already queued
// above a lowered limit stay queued.
func (p *Pool) SetQueueSizeLimit(n int) error {
	if n < 0 {
		return errInvalidConfig("QueueSizeLimit must be >= 0, got %d", n)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queueSizeLimit = n
	return nil
}

// MaxIdleTime returns the idle timeout of non-core workers.
func (p *Pool) MaxIdleTime() time.Duration {
	return p.state.maxIdleTime()
}

// SetMaxIdleTime changes the idle timeout. Parked workers recompute their
// deadline right away.
func (p *Pool) SetMaxIdleTime(d time.Duration) error {
	if d < 0 {
		return errInvalidConfig("MaxIdleTime must be >= 0, got %v", d)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.setMaxIdleTime(d)
	return nil
}

// Daemon returns the daemon flag stamped on new workers.
func (p *Pool) Daemon() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.daemon
}

// SetDaemon changes the daemon flag for workers spawned from now on.
func (p *Pool) SetDaemon(daemon bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.daemon = daemon
}

// Priority returns the priority stamped on new workers.
func (p *Pool) Priority() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.priority
}

// SetPriority changes the priority for workers spawned from now on.
func (p *Pool) SetPriority(priority int) error {
	if err := validatePriority(priority); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.priority = priority
	return nil
}

func (p *Pool) String() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	idle := make([]string, 0, p.idle.len())
	p.idle.each(func(w *worker) { idle = append(idle, w.info.Name) })
	return fmt.Sprintf("Pool{name=%s, max=%d, queued=%d/%d, idle=[%s], daemon=%t, priority=%d, %s}",
		p.name, p.maxWorkers, p.queue.len(), p.queueSizeLimit, strings.Join(idle, " "),
		p.daemon, p.priority, p.state)
}
