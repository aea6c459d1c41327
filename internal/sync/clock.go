// Package sync implements the offline-first submission synchronization
// engine: debounced draft autosave, the single-flight queue sync loop with
// exponential backoff and outcome polling, and the read-side status
// projection consumed by UI badges.
package sync

import "time"

// Clock abstracts wall time and timers so tests can drive debounce windows,
// backoff eligibility, and the polling schedule deterministically.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable single-shot timer. A new event always supersedes a
// pending timer: callers Stop() the old one and schedule a fresh one rather
// than stacking.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// RealClock returns the wall-clock implementation used outside tests.
func RealClock() Clock { return realClock{} }
