package jobqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// backingRingFactor sizes the concurrent backend's backing channel as a
// multiple of its nominal capacity, to absorb bursts.
const backingRingFactor = 6

// Concurrent is a channel-backed Queue. A buffered Go channel already
// serializes FIFO delivery across any number of concurrent senders without a
// separate producer token: the original's lock-free MPMC queue needed a
// token specifically to recover global FIFO order from per-producer
// sub-queues, a problem that does not exist here. The only remaining
// coordination is keeping fifo_cnt assignment order consistent with channel
// send order, which this does by holding one small mutex around the
// assign-then-try-send pair, mirroring the original's token mutex.
type Concurrent struct {
	capacity uint32

	permeable atomic.Bool

	mu      sync.Mutex
	fifoCnt int64
	ch      chan Job
}

// NewConcurrent constructs a Concurrent queue. Panics if capacity < MinCapacity.
func NewConcurrent(capacity uint32) *Concurrent {
	if capacity < MinCapacity {
		panic("jobqueue: capacity must be >= MinCapacity")
	}
	return &Concurrent{
		capacity: capacity,
		ch:       make(chan Job, capacity*backingRingFactor),
	}
}

func (q *Concurrent) SetPermeable(permeable bool) {
	q.permeable.Store(permeable)
}

func (q *Concurrent) Capacity() uint32 { return q.capacity }

func (q *Concurrent) Len() int { return len(q.ch) }

func (q *Concurrent) EnqueueNTO(job Job) bool {
	if !q.permeable.Load() {
		return true
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	job.FifoCnt = q.fifoCnt

	select {
	case q.ch <- job:
		q.fifoCnt++
		return true
	default:
		return false
	}
}

func (q *Concurrent) WaitForNewJobTo(ctx context.Context, timeout time.Duration) (Job, bool) {
	select {
	case job := <-q.ch:
		return job, true
	case <-ctx.Done():
		return Job{}, false
	case <-time.After(timeout):
		return Job{}, false
	}
}
