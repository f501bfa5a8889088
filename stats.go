package lifo

import "time"

// Stats is a snapshot of pool state and lifetime counters. The gauges are
// read under the pool lock and are consistent with each other; the
// counters are read atomically afterwards and may run slightly ahead.
//
// Example:
//
//	stats := pool.Stats()
//	fmt.Printf("handoff ratio: %.2f%%\n",
//	    float64(stats.HandedOff) / float64(stats.Submitted) * 100)
type Stats struct {
	// Workers is the number of live workers, idle or busy.
	Workers int

	// IdleWorkers is the number of workers parked in the idle registry.
	IdleWorkers int

	// CoreWorkers and MaxWorkers are the current worker floor and ceiling.
	CoreWorkers int
	MaxWorkers  int

	// QueuedTasks is the number of tasks waiting for a worker.
	QueuedTasks int

	// QueueSizeLimit is the current bound on QueuedTasks.
	QueueSizeLimit int

	// QueueCapacity is the size of the queue's backing buffer. It grows
	// with bursts and shrinks back after them.
	QueueCapacity int

	// MaxIdleTime is the current idle timeout of non-core workers.
	MaxIdleTime time.Duration

	Shutdown   bool
	Terminated bool

	// Submitted counts every non-nil task passed to Execute.
	Submitted uint64

	// HandedOff, Spawned and Queued count accepted tasks by route: given to
	// an idle worker, given to a new worker, or put in the queue.
	HandedOff uint64
	Spawned   uint64
	Queued    uint64

	// WorkersStarted counts every worker ever started, including core
	// workers and workers started for a backlog.
	WorkersStarted uint64

	// Rejected counts tasks passed to the rejection handler, whatever the
	// handler then did with them.
	Rejected uint64

	// Completed counts tasks that returned normally on a worker; Failed
	// counts tasks that panicked.
	Completed uint64
	Failed    uint64

	// Drained counts queued tasks removed by ShutdownNow. Discarded counts
	// queued tasks dropped by DiscardOldestPolicy.
	Drained   uint64
	Discarded uint64

	// HandoffRetries counts offers that failed because the popped worker
	// was already exiting. Each failure is followed by another attempt.
	HandoffRetries uint64

	// InFlight is the estimated number of accepted tasks that have not yet
	// finished: queued or executing.
	InFlight uint64
}

// Stats returns a snapshot of pool statistics.
//
// Example:
//
//	stats := pool.Stats()
//	fmt.Printf("Workers: %d (%d idle), queued: %d\n",
//	    stats.Workers, stats.IdleWorkers, stats.QueuedTasks)
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		Workers:        p.state.workerCount(),
		IdleWorkers:    p.idle.len(),
		CoreWorkers:    p.state.coreWorkers,
		MaxWorkers:     p.maxWorkers,
		QueuedTasks:    p.queue.len(),
		QueueSizeLimit: p.queueSizeLimit,
		QueueCapacity:  p.queue.capacity(),
		MaxIdleTime:    p.state.maxIdleTime(),
		Shutdown:       p.state.shutdown,
		Terminated:     p.state.shutdown && p.state.workerCount() == 0,
	}
	p.mu.Unlock()

	m := &p.metrics
	s.Submitted = m.submitted.Load()
	s.HandedOff = m.handedOff.Load()
	s.Spawned = m.spawned.Load()
	s.WorkersStarted = m.workersStarted.Load()
	s.Queued = m.queued.Load()
	s.Rejected = m.rejected.Load()
	s.Completed = m.completed.Load()
	s.Failed = m.failed.Load()
	s.Drained = m.drained.Load()
	s.Discarded = m.discarded.Load()
	s.HandoffRetries = m.handoffRetries.Load()

	accepted := s.HandedOff + s.Queued + s.Spawned
	finished := s.Completed + s.Failed + s.Drained + s.Discarded
	if accepted > finished {
		s.InFlight = accepted - finished
	}
	return s
}
