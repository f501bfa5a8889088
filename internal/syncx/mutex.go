//go:build !deadlock

// Package syncx selects the mutex implementation guarding pool state.
//
// Builds with the "deadlock" tag swap in github.com/sasha-s/go-deadlock so
// lock-order inversions and long holds of the shared pool lock are reported
// while testing.
package syncx

import "sync"

// Mutex is the lock type used for the pool's shared state.
type Mutex = sync.Mutex
