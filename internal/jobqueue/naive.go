package jobqueue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Naive is a single-mutex, ring-buffer-backed Queue. Direct port of
// job_queue_naive.cpp's enqueue_under_lock / dequeue-under-lock pair; the
// condition variable wakeup is replaced by the same channel-close-and-
// replace broadcast pattern used throughout this module (see rxring and
// txpool), since it composes cleanly with context cancellation where
// sync.Cond does not.
type Naive struct {
	capacity uint32

	permeable atomic.Bool

	mu          sync.Mutex
	ring        []Job
	enqueueIdx  uint32
	dequeueIdx  uint32
	count       uint32
	fifoCnt     int64
	notifyChan  chan struct{}
}

// NewNaive constructs a Naive queue. Panics if capacity < MinCapacity.
func NewNaive(capacity uint32) *Naive {
	if capacity < MinCapacity {
		panic("jobqueue: capacity must be >= MinCapacity")
	}
	return &Naive{
		capacity:   capacity,
		ring:       make([]Job, capacity),
		notifyChan: make(chan struct{}),
	}
}

func (q *Naive) SetPermeable(permeable bool) {
	q.permeable.Store(permeable)
}

func (q *Naive) Capacity() uint32 { return q.capacity }

func (q *Naive) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.count)
}

func (q *Naive) EnqueueNTO(job Job) bool {
	if !q.permeable.Load() {
		// Impermeable: succeeds silently without storing, so producers
		// may start before consumers are ready.
		return true
	}

	q.mu.Lock()
	if q.count == q.capacity {
		q.mu.Unlock()
		return false
	}

	job.FifoCnt = q.fifoCnt
	q.fifoCnt++

	q.ring[q.enqueueIdx] = job
	q.enqueueIdx = (q.enqueueIdx + 1) % q.capacity
	q.count++

	close(q.notifyChan)
	q.notifyChan = make(chan struct{})
	q.mu.Unlock()

	return true
}

func (q *Naive) WaitForNewJobTo(ctx context.Context, timeout time.Duration) (Job, bool) {
	deadline := time.Now().Add(timeout)

	for {
		q.mu.Lock()
		if q.count > 0 {
			job := q.ring[q.dequeueIdx]
			q.dequeueIdx = (q.dequeueIdx + 1) % q.capacity
			q.count--
			q.mu.Unlock()
			return job, true
		}
		ch := q.notifyChan
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Job{}, false
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return Job{}, false
		case <-time.After(remaining):
			return Job{}, false
		}
	}
}
