// Package spinlock implements a Rigtorp-style test-and-test-and-set
// spinlock on a single atomic flag: a relaxed load to check whether the lock
// looks free, followed by an acquire compare-and-swap to actually take it.
// There is no teacher or pack precedent for this exact primitive (see
// DESIGN.md); it is written fresh in the idiom sync/atomic already
// establishes elsewhere in this module (txbuffer.Buffer's inner lock flag).
package spinlock

import "sync/atomic"

// Lock is a spinning mutual-exclusion lock with the same Lock/Unlock/
// TryLock contract as sync.Mutex, so either can be selected behind a
// common interface at construction time.
type Lock struct {
	held atomic.Bool
}

// TryLock attempts to acquire the lock without blocking.
func (l *Lock) TryLock() bool {
	if l.held.Load() {
		return false
	}
	return l.held.CompareAndSwap(false, true)
}

// Lock spins until the lock is acquired.
func (l *Lock) Lock() {
	for {
		if !l.held.Load() && l.held.CompareAndSwap(false, true) {
			return
		}
	}
}

// Unlock releases the lock. Unlocking an already-unlocked Lock panics, the
// same contract sync.Mutex enforces.
func (l *Lock) Unlock() {
	if !l.held.CompareAndSwap(true, false) {
		panic("spinlock: unlock of unlocked lock")
	}
}
