package lifo

import (
	"context"
	"runtime"
	"sync"
	"time"
)

// pollResult tells a parked worker why its wait on the handoff slot ended.
type pollResult int

const (
	pollDelivered   pollResult = iota // a task, or a nil wake-up, arrived
	pollTimedOut                      // the idle budget ran out
	pollInterrupted                   // the worker context was cancelled
	pollRetune                        // the idle timeout was reconfigured
)

// handoffSlot is a worker's single-item mailbox. Execute offers a task to
// a popped idle worker through it; the worker polls it while parked.
//
// running is flipped only under mu, and offer checks it under mu too, so a
// worker that retires can drain the slot afterwards and be certain no
// accepted task is left behind.
type handoffSlot struct {
	mu      sync.Mutex
	running bool
	ch      chan Task
}

func newHandoffSlot() *handoffSlot {
	return &handoffSlot{ch: make(chan Task, 1)}
}

// arm marks the owning worker as able to accept handoffs.
func (s *handoffSlot) arm() {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
}

// offer delivers task to the worker. It returns false when the worker has
// begun exiting or the slot still holds an unconsumed item.
func (s *handoffSlot) offer(task Task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return false
	}
	select {
	case s.ch <- task:
		return true
	default:
		return false
	}
}

// signal wakes the worker without giving it work.
func (s *handoffSlot) signal() {
	select {
	case s.ch <- nil:
	default:
	}
}

// retire refuses further offers and returns whatever was delivered before
// the refusal took effect.
func (s *handoffSlot) retire() (Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.running = false
	select {
	case task := <-s.ch:
		return task, task != nil
	default:
		return nil, false
	}
}

// poll waits up to timeout for an item. It first makes spins non-blocking
// checks, yielding the processor between them, and then blocks.
// A closed retune channel or a cancelled ctx also end the wait.
func (s *handoffSlot) poll(ctx context.Context, timeout time.Duration, spins int, retune <-chan struct{}) (Task, pollResult) {
	// Phase 1: Active spinning
	for i := 0; i < spins; i++ {
		select {
		case task := <-s.ch:
			return task, pollDelivered
		default:
		}
		runtime.Gosched()
	}

	// Phase 2: Block until something happens
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case task := <-s.ch:
		return task, pollDelivered
	case <-timer.C:
		return nil, pollTimedOut
	case <-ctx.Done():
		return nil, pollInterrupted
	case <-retune:
		return nil, pollRetune
	}
}
