package lifo

import (
	"errors"
	"fmt"
)

// Common errors returned by the pool.
var (
	// ErrPoolShutdown is the rejection cause for tasks submitted after
	// Shutdown or ShutdownNow.
	//
	// Example:
	//  pool.Shutdown()
	//  err := pool.Execute(task)
	//  if errors.Is(err, lifo.ErrPoolShutdown) {
	//      log.Println("Cannot submit: pool is shutdown")
	//  }
	ErrPoolShutdown = &PoolError{msg: "pool is shutdown"}

	// ErrQueueFull is the rejection cause for tasks that found no idle worker,
	// no room to spawn a new one and a queue already at its size limit.
	ErrQueueFull = &PoolError{msg: "queue is full"}

	// ErrRejected is matched by every error produced by AbortPolicy.
	ErrRejected = &PoolError{msg: "task rejected"}

	// ErrNilTask is returned when attempting to execute a nil task.
	ErrNilTask = &PoolError{msg: "task is nil"}

	// ErrInvalidConfig is wrapped by every configuration validation error.
	ErrInvalidConfig = &PoolError{msg: "invalid config"}

	// ErrIllegalState marks a broken internal invariant or API misuse.
	// Internal invariant violations are raised as panics carrying a
	// *PoolError that wraps it.
	ErrIllegalState = &PoolError{msg: "illegal state"}

	// ErrNotShutdown is returned by AwaitTermination when the pool has not
	// been shut down.
	ErrNotShutdown = &PoolError{msg: "pool is not shutdown", err: ErrIllegalState}
)

// PoolError represents an error that occurred within the pool.
// It wraps underlying errors and provides context about pool operations.
//
// PoolError implements the error interface and supports error unwrapping
// via errors.Unwrap for compatibility with Go 1.13+ error handling.
type PoolError struct {
	msg string // Human-readable error message
	err error  // Underlying error (if any)
}

// Error returns a formatted error message.
// If an underlying error exists, it is included in the output.
func (e *PoolError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("lifo: %s: %v", e.msg, e.err)
	}
	return fmt.Sprintf("lifo: %s", e.msg)
}

// Unwrap returns the underlying error, allowing use with errors.Is and errors.As.
func (e *PoolError) Unwrap() error {
	return e.err
}

// RejectedError is returned by AbortPolicy. It matches ErrRejected and
// the cause (ErrQueueFull or ErrPoolShutdown) with errors.Is.
type RejectedError struct {
	Pool  string
	Cause error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("lifo: task rejected by pool %q: %v", e.Pool, e.Cause)
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

func (e *RejectedError) Unwrap() error {
	return e.Cause
}

// PanicError wraps a value recovered from a panicking task and the stack
// of the worker at the time of the panic.
type PanicError struct {
	Value interface{}
	Stack string
}

func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", p.Value, p.Stack)
}

// Unwrap exposes the panic value when it is itself an error.
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

// errInvalidConfig creates an error for invalid pool configuration.
// This is returned during pool creation when validation fails.
func errInvalidConfig(format string, args ...interface{}) error {
	return &PoolError{msg: fmt.Sprintf(format, args...), err: ErrInvalidConfig}
}

// illegalState builds the panic value for a broken invariant.
func illegalState(format string, args ...interface{}) error {
	return &PoolError{msg: fmt.Sprintf(format, args...), err: ErrIllegalState}
}

// IsIllegalState reports whether v, typically a recovered panic value,
// signals a broken pool invariant.
func IsIllegalState(v interface{}) bool {
	err, ok := v.(error)
	return ok && errors.Is(err, ErrIllegalState)
}
