// Package lifo provides a dynamically sized worker pool that prefers to reuse
// the most recently idled worker.
//
// Reusing the worker that went idle last keeps its stack and caches warm and
// lets the others age out: idle workers above the core count exit after
// MaxIdleTime, so under a fluctuating load the pool shrinks to what the load
// actually needs.
//
// # Key Features
//
//   - Direct handoff of a task to the most recently idled worker
//   - Workers spawned on demand up to MaxWorkers, reclaimed after MaxIdleTime
//   - Bounded FIFO queue once the pool is saturated
//   - Pluggable rejection policies (abort, caller-runs, discard, discard-oldest)
//   - Live reconfiguration of MaxWorkers, QueueSizeLimit, MaxIdleTime,
//     Daemon and Priority
//   - Panic recovery with a customizable uncaught handler
//   - Worker lifecycle hooks and optional OS-thread pinning
//
// # Quick Start
//
//	pool, err := lifo.New("ingest",
//	    lifo.WithCoreWorkers(2),
//	    lifo.WithMaxWorkers(16),
//	    lifo.WithQueueSizeLimit(1000),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for i := 0; i < 100; i++ {
//	    i := i
//	    err := pool.Execute(func(ctx context.Context) {
//	        fmt.Printf("Task %d executed\n", i)
//	    })
//	    if err != nil {
//	        log.Printf("Failed to submit task: %v", err)
//	    }
//	}
//
//	pool.Shutdown()
//	pool.AwaitTermination(time.Minute)
//
// # Submission Order
//
// Execute tries, in order:
//
//  1. an idle worker, most recently idled first;
//  2. a new worker, while the pool has fewer than MaxWorkers;
//  3. the queue, while it holds fewer than QueueSizeLimit tasks;
//  4. the rejection handler.
//
// Queued tasks run in FIFO order among themselves, but a task handed off to
// an idle worker skips the queue and can start before tasks submitted
// earlier. The pool gives no FIFO guarantee across all submissions.
//
// # Rejection
//
// The default AbortPolicy makes Execute return a *RejectedError, which
// matches ErrRejected and its cause:
//
//	err := pool.Execute(task)
//	if errors.Is(err, lifo.ErrQueueFull) {
//	    // Handle saturation
//	}
//
// CallerRunsPolicy runs the task on the submitting goroutine instead, which
// slows producers down to the pool's pace.
//
// # Shutdown
//
// Shutdown stops accepting tasks and lets the queue drain. ShutdownNow also
// cancels the context passed to running tasks and returns the queued tasks
// without running them. Neither waits; use AwaitTermination:
//
//	pending := pool.ShutdownNow()
//	ok, err := pool.AwaitTermination(5 * time.Second)
//
// # Error Handling
//
// A panicking task does not take its worker down. The panic is wrapped in a
// *PanicError and passed to the uncaught handler, which logs it by default:
//
//	pool, _ := lifo.New("jobs",
//	    lifo.WithUncaughtHandler(func(w lifo.WorkerInfo, err error) {
//	        log.Printf("%s: %v", w.Name, err)
//	    }),
//	)
//
// # Thread Safety
//
// All Pool methods are safe for concurrent use. One mutex guards the queue,
// the idle registry and the pool state; it is never held while a task runs
// or while a worker waits for a handoff. Build with -tags deadlock to swap
// it for a deadlock-detecting mutex.
package lifo
