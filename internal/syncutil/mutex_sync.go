//go:build !deadlock

// Package syncutil provides the mutex types used across the daemon.
// Default builds use the standard library. Build with -tags=deadlock to swap in
// github.com/sasha-s/go-deadlock and catch lock-order bugs on the bench.
package syncutil

import "sync"

// Mutex is a sync.Mutex unless built with -tags=deadlock.
type Mutex struct {
	sync.Mutex
}

// RWMutex is a sync.RWMutex unless built with -tags=deadlock.
type RWMutex struct {
	sync.RWMutex
}
