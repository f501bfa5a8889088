package lifo

import (
	"context"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync/atomic"
	"time"
)

// Task is a unit of work. ctx carries the executing worker's WorkerInfo and
// is cancelled when the worker is interrupted by ShutdownNow; tasks that
// want to be interruptible must watch it.
type Task func(ctx context.Context)

// WorkerInfo describes a worker goroutine. Daemon and Priority are the pool
// settings in effect when the worker was spawned.
type WorkerInfo struct {
	Name     string
	Pool     string
	Daemon   bool
	Priority int
}

type workerInfoKey struct{}

// WorkerFromContext returns the worker executing the task that received ctx.
func WorkerFromContext(ctx context.Context) (WorkerInfo, bool) {
	info, ok := ctx.Value(workerInfoKey{}).(WorkerInfo)
	return info, ok
}

// worker represents a single worker goroutine
type worker struct {
	info WorkerInfo
	pool *Pool

	// first is run before the worker looks at the queue. Only the worker
	// goroutine touches it after start.
	first Task

	slot *handoffSlot

	// ctx is cancelled to interrupt the worker.
	ctx    context.Context
	cancel context.CancelFunc

	// lastRun is owned by the worker goroutine.
	lastRun time.Time

	// parked and handle are guarded by the pool lock. parked is true while
	// the worker sits in the idle registry under handle.
	parked bool
	handle idleHandle

	// removed is set once the worker has left the pool's worker set.
	removed bool

	tasksExecuted atomic.Uint64
}

// newWorker creates a worker stamped with the pool's current daemon and
// priority settings. Called with the pool lock held.
func (p *Pool) newWorker(first Task) *worker {
	id := p.nextWorkerID.Add(1) - 1
	info := WorkerInfo{
		Name:     p.name + "-" + strconv.FormatUint(id, 10),
		Pool:     p.name,
		Daemon:   p.daemon,
		Priority: p.priority,
	}
	ctx, cancel := context.WithCancel(context.WithValue(context.Background(), workerInfoKey{}, info))
	return &worker{
		info:    info,
		pool:    p,
		first:   first,
		slot:    newHandoffSlot(),
		ctx:     ctx,
		cancel:  cancel,
		lastRun: time.Now(),
	}
}

// run is the main worker loop. doRun returns when the worker timed out, was
// interrupted or saw the pool shut down; the exit check then decides between
// terminating and carrying on as a core worker.
func (w *worker) run() {
	p := w.pool
	defer w.finish()

	if p.cfg.PinWorkerThreads {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	if p.cfg.OnWorkerStart != nil {
		p.cfg.OnWorkerStart(w.info)
	}
	p.log.Debugw("worker started", "worker", w.info.Name)

	var minWait time.Duration
	for {
		w.doRun(minWait)

		p.mu.Lock()
		if w.shouldExit() {
			p.state.removeWorker(w)
			w.removed = true
			p.cond.Broadcast()
			p.mu.Unlock()
			break
		}
		// Core worker stays. Reset the idle clock and enforce a minimal wait
		// so an idle core worker does not spin.
		w.lastRun = time.Now()
		minWait = max(p.state.coreMinWait, p.state.maxIdleTime())
		p.mu.Unlock()
	}

	w.cancel()
	if p.cfg.OnWorkerStop != nil {
		p.cfg.OnWorkerStop(w.info)
	}
	p.log.Debugw("worker exited", "worker", w.info.Name, "tasks", w.tasksExecuted.Load())
}

// shouldExit reports whether the worker terminates. Called with the pool
// lock held.
//
// Only workers above the core count, or all workers once the pool is shut
// down, may leave, and only when the queue is empty: a task queued while
// this worker was timing out would otherwise wait for the next submission
// to spawn a worker.
func (w *worker) shouldExit() bool {
	if w.interrupted() {
		return true
	}
	st := w.pool.state
	if !st.shutdown && st.liveCount()-1 < st.coreWorkers {
		return false
	}
	return w.pool.queue.len() == 0
}

// doRun runs the first task, then drains the queue and parks in the idle
// registry whenever it is empty.
func (w *worker) doRun(minWait time.Duration) {
	p := w.pool
	w.slot.arm()

	if w.first != nil {
		task := w.first
		w.first = nil
		w.runTask(task)
	}

	for {
		p.mu.Lock()
		if task := p.queue.pop(); task != nil {
			p.mu.Unlock()
			w.runTask(task)
			continue
		}
		if p.state.shutdown || w.interrupted() {
			p.mu.Unlock()
			w.slot.retire()
			return
		}
		w.handle = p.idle.pushLast(w)
		w.parked = true
		p.mu.Unlock()

		if !w.awaitHandoff(minWait) {
			return
		}
	}
}

// awaitHandoff waits on the handoff slot while the worker is parked.
// It returns true after a handoff or wake-up, false when the worker left
// the idle registry because it timed out or was interrupted.
func (w *worker) awaitHandoff(minWait time.Duration) bool {
	st := w.pool.state
	for {
		retune := st.retuned()
		wait := max(minWait, st.maxIdleTime()) - time.Since(w.lastRun)
		if wait <= 0 {
			w.leaveIdle()
			return false
		}

		task, res := w.slot.poll(w.ctx, wait, st.spinCount, retune)
		switch res {
		case pollDelivered:
			if task != nil {
				w.runTask(task)
			}
			return true
		case pollInterrupted:
			w.leaveIdle()
			return false
		case pollTimedOut, pollRetune:
			// recompute the budget; the idle time may have changed
		}
	}
}

// leaveIdle retires the handoff slot and takes the worker out of the idle
// registry, unless a submitter popped it first. A task delivered before the
// slot was retired is still run.
func (w *worker) leaveIdle() {
	p := w.pool
	task, delivered := w.slot.retire()

	p.mu.Lock()
	if w.parked {
		p.idle.remove(w.handle, w)
		w.parked = false
	}
	p.mu.Unlock()

	if delivered {
		w.runTask(task)
	}
}

// runTask executes a task with panic recovery
func (w *worker) runTask(task Task) {
	p := w.pool
	normal := false
	defer func() {
		w.lastRun = time.Now()
		w.tasksExecuted.Add(1)
		if r := recover(); r != nil {
			p.metrics.failed.Add(1)
			w.uncaught(&PanicError{Value: r, Stack: string(debug.Stack())})
			return
		}
		if !normal {
			// runtime.Goexit; finish cleans up after the worker.
			p.metrics.failed.Add(1)
			return
		}
		p.metrics.completed.Add(1)
	}()

	task(w.ctx)
	normal = true
}

// uncaught hands a task failure to the configured handler. A handler that
// panics itself is logged and otherwise ignored so the worker survives.
func (w *worker) uncaught(err error) {
	p := w.pool
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("uncaught handler panicked", "worker", w.info.Name, "panic", r, "error", err)
		}
	}()
	p.cfg.UncaughtHandler(w.info, err)
}

// finish keeps the pool consistent when the worker goroutine ends without
// passing the exit check, for instance because a task called
// runtime.Goexit or a hook panicked.
func (w *worker) finish() {
	if w.removed {
		return
	}
	p := w.pool
	task, delivered := w.slot.retire()

	p.mu.Lock()
	if w.parked {
		p.idle.remove(w.handle, w)
		w.parked = false
	}
	p.state.removeWorker(w)
	w.removed = true
	p.cond.Broadcast()
	p.mu.Unlock()

	w.cancel()
	p.log.Warnw("worker terminated abnormally", "worker", w.info.Name)
	if delivered {
		if err := p.Execute(task); err != nil {
			p.log.Warnw("could not resubmit task of terminated worker", "worker", w.info.Name, "error", err)
		}
	}
}

// interrupt cancels the worker context.
func (w *worker) interrupt() {
	w.cancel()
}

func (w *worker) interrupted() bool {
	return w.ctx.Err() != nil
}

func (w *worker) String() string {
	return "worker(" + w.info.Name + ")"
}
