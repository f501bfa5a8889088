package lifo

import (
	"fmt"
	"sync/atomic"
	"time"
)

// poolState is the bookkeeping shared by the façade and the workers.
// Every mutation happens with the pool lock held. maxIdle and the retune
// channel are additionally readable without the lock so that parked
// workers can recompute their deadline on every poll.
type poolState struct {
	coreWorkers int
	spinCount   int
	coreMinWait time.Duration
	shutdown    bool

	maxIdle atomic.Int64 // nanoseconds
	retune  atomic.Pointer[chan struct{}]

	workers map[*worker]struct{}
}

func newPoolState(cfg *Config) *poolState {
	s := &poolState{
		coreWorkers: cfg.CoreWorkers,
		spinCount:   cfg.SpinCount,
		coreMinWait: cfg.CoreMinWait,
		workers:     make(map[*worker]struct{}, min(cfg.MaxWorkers, 2048)),
	}
	s.maxIdle.Store(int64(cfg.MaxIdleTime))
	ch := make(chan struct{})
	s.retune.Store(&ch)
	return s
}

func (s *poolState) maxIdleTime() time.Duration {
	return time.Duration(s.maxIdle.Load())
}

// setMaxIdleTime stores d and wakes every parked worker so it recomputes
// its remaining wait.
func (s *poolState) setMaxIdleTime(d time.Duration) {
	s.maxIdle.Store(int64(d))
	ch := make(chan struct{})
	old := s.retune.Swap(&ch)
	close(*old)
}

// retuned returns the channel closed by the next idle-time change.
func (s *poolState) retuned() <-chan struct{} {
	return *s.retune.Load()
}

func (s *poolState) addWorker(w *worker) {
	if _, ok := s.workers[w]; ok {
		panic(illegalState("attempting to add %s twice", w))
	}
	s.workers[w] = struct{}{}
}

func (s *poolState) removeWorker(w *worker) {
	if _, ok := s.workers[w]; !ok {
		panic(illegalState("removing unknown %s", w))
	}
	delete(s.workers, w)
}

func (s *poolState) workerCount() int {
	return len(s.workers)
}

// liveCount is workerCount minus workers that were interrupted and are
// on their way out.
func (s *poolState) liveCount() int {
	n := 0
	for w := range s.workers {
		if !w.interrupted() {
			n++
		}
	}
	return n
}

// interruptAll cancels the context of every live worker.
func (s *poolState) interruptAll() {
	for w := range s.workers {
		w.interrupt()
	}
}

func (s *poolState) String() string {
	return fmt.Sprintf("poolState{shutdown=%t, workers=%d, core=%d, spinCount=%d, maxIdle=%v}",
		s.shutdown, len(s.workers), s.coreWorkers, s.spinCount, s.maxIdleTime())
}
