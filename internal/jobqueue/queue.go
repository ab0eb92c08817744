// Package jobqueue implements the bounded MPMC FIFO of Job values with two
// interchangeable backends (naive and concurrent) behind one interface, and
// a permeable admission gate. Grounded on job_queue_base.hpp,
// job_queue_naive.hpp/.cpp.
package jobqueue

import (
	"context"
	"time"
)

// MinCapacity is the minimum queue capacity the original enforces.
const MinCapacity = 32

// WaitTimeout is the default consumer wait granularity; consumers re-check
// shutdown conditions at least this often.
const WaitTimeout = 100 * time.Millisecond

// Queue is the interface both backends satisfy. Spec §9's redesign flag
// ("build-time flag selection between lock backends") becomes this Go
// interface with two constructors, NewNaive and NewConcurrent, instead of a
// compile-time macro switch; both are exercised by the same conformance
// suite in queue_test.go.
type Queue interface {
	// EnqueueNTO enqueues job with no timeout on the internal lock. If
	// the queue is impermeable, it succeeds silently without storing.
	// Returns false only when the queue is permeable and full.
	EnqueueNTO(job Job) bool

	// WaitForNewJobTo blocks up to timeout for the next job in fifo_cnt
	// order. Returns (job, true) on success, (Job{}, false) on timeout.
	WaitForNewJobTo(ctx context.Context, timeout time.Duration) (Job, bool)

	// SetPermeable toggles the admission gate.
	SetPermeable(permeable bool)

	// Capacity returns the configured capacity.
	Capacity() uint32

	// Len returns the current number of queued jobs, for control-plane
	// introspection.
	Len() int
}
