package lifo

import "context"

// RejectionHandler decides the fate of a task the pool could not accept.
// cause is ErrPoolShutdown or ErrQueueFull. The returned error is what
// Execute returns; nil means the handler took care of the task.
//
// Handlers run on the submitting goroutine without the pool lock held.
type RejectionHandler interface {
	RejectedExecution(task Task, p *Pool, cause error) error
}

// RejectionFunc adapts a function to RejectionHandler.
type RejectionFunc func(task Task, p *Pool, cause error) error

func (f RejectionFunc) RejectedExecution(task Task, p *Pool, cause error) error {
	return f(task, p, cause)
}

// AbortPolicy fails the submission with a *RejectedError.
type AbortPolicy struct{}

func (AbortPolicy) RejectedExecution(_ Task, p *Pool, cause error) error {
	return &RejectedError{Pool: p.Name(), Cause: cause}
}

// CallerRunsPolicy runs the task on the submitting goroutine, which
// throttles producers to the pool's pace. Once the pool is shut down the
// task is rejected as with AbortPolicy.
//
// The task receives a background context without WorkerInfo.
type CallerRunsPolicy struct{}

func (CallerRunsPolicy) RejectedExecution(task Task, p *Pool, cause error) error {
	if p.IsShutdown() {
		return &RejectedError{Pool: p.Name(), Cause: cause}
	}
	task(context.Background())
	return nil
}

// DiscardPolicy silently drops the task.
type DiscardPolicy struct{}

func (DiscardPolicy) RejectedExecution(Task, *Pool, error) error {
	return nil
}

// DiscardOldestPolicy drops the oldest queued task and submits the new one
// once more. If the retry is rejected too, the error is returned as is.
// Tasks rejected because of shutdown are discarded.
type DiscardOldestPolicy struct{}

func (DiscardOldestPolicy) RejectedExecution(task Task, p *Pool, cause error) error {
	if p.IsShutdown() {
		return nil
	}
	if p.dropOldestQueued() {
		p.metrics.discarded.Add(1)
	}
	return p.dispatch(task, AbortPolicy{})
}
