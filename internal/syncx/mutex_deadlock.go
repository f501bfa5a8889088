//go:build deadlock

package syncx

import (
	"time"

	"github.com/sasha-s/go-deadlock"
)

func init() {
	// The pool lock is only ever held for pointer and counter updates.
	deadlock.Opts.DeadlockTimeout = 2 * time.Second
}

// Mutex is the lock type used for the pool's shared state.
type Mutex = deadlock.Mutex
