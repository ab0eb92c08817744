// Package txpool implements the TxBuffer pool: acquisition by PHY worker
// threads, and ordered, timeout-bound waiting for a specific tx_order_id by
// the radio TX thread.
package txpool

import (
	"sync"
	"time"

	"github.com/maxpenner/dectrt/internal/txbuffer"
	"github.com/maxpenner/dectrt/internal/watch"
)

// Buffer is re-exported so callers only need to import txpool.
type Buffer = txbuffer.Buffer

// Pool owns a fixed vector of TX buffers and hands out acquisitions to PHY
// worker threads. Grounded on buffer_tx_pool.hpp.
type Pool struct {
	ID                      uint32
	NofAntennas             uint32
	AntStreamsLengthSamples uint32

	buffers []*Buffer

	mu           sync.Mutex
	newPacketCnt uint32
	readyChan    chan struct{} // closed & replaced on every SetTransmittable

	acquireTries  int64
	acquireFailed int64
}

// New constructs a Pool of nofBufferTx buffers, each able to hold up to
// antStreamsLengthSamples samples per antenna, with every buffer's outer
// lock backed by lockKind.
func New(id, nofAntennas, nofBufferTx, antStreamsLengthSamples uint32, lockKind txbuffer.LockKind) *Pool {
	p := &Pool{
		ID:                      id,
		NofAntennas:             nofAntennas,
		AntStreamsLengthSamples: antStreamsLengthSamples,
		readyChan:               make(chan struct{}),
	}

	p.buffers = make([]*Buffer, nofBufferTx)
	for i := range p.buffers {
		b := txbuffer.NewForPool(uint32(i), nofAntennas, antStreamsLengthSamples, lockKind)
		txbuffer.SetHooks(b, p.onCommit, p.onRelease)
		p.buffers[i] = b
	}

	return p
}

func (p *Pool) onCommit() {
	p.mu.Lock()
	p.newPacketCnt++
	close(p.readyChan)
	p.readyChan = make(chan struct{})
	p.mu.Unlock()
}

func (p *Pool) onRelease() {
	p.mu.Lock()
	p.newPacketCnt--
	p.mu.Unlock()
}

// AcquireToFill scans the pool in order and returns the first buffer whose
// outer lock it could grab (Multiple Producers). Returns nil when the pool
// is full; by design the system should never run out, so the caller treats a
// nil return as fatal unless explicitly configured to discard.
func (p *Pool) AcquireToFill() *Buffer {
	p.mu.Lock()
	p.acquireTries++
	p.mu.Unlock()

	for _, b := range p.buffers {
		if b.TryLockOuter() {
			return b
		}
	}

	p.mu.Lock()
	p.acquireFailed++
	p.mu.Unlock()
	return nil
}

// FindReady does a linear scan over READY buffers for a matching tx_order_id.
// Returns nil if none match right now.
func (p *Pool) FindReady(txOrderID int64) *Buffer {
	for _, b := range p.buffers {
		if b.IsReady() && b.Meta().TxOrderID == txOrderID {
			return b
		}
	}
	return nil
}

// WaitForReadyTo blocks, with a timeout, for a buffer whose committed
// tx_order_id equals target. Backed by a channel that is closed and
// replaced on every SetTransmittable commit across the pool, the idiomatic
// substitute for the original's pool-wide condition variable plus commit
// counter. Returns nil if the timeout elapses first.
func (p *Pool) WaitForReadyTo(target int64, timeout time.Duration) *Buffer {
	deadline := time.Now().Add(timeout)

	for {
		if b := p.FindReady(target); b != nil {
			return b
		}

		p.mu.Lock()
		ch := p.readyChan
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}

		select {
		case <-ch:
		case <-time.After(remaining):
			return nil
		}
	}
}

// WaitForReadyBusyTo is the busywait variant used by the radio TX thread
// when stitching consecutive bursts, where sleeping even briefly would risk
// missing the next transmission window. timeout bounds total spin time.
func (p *Pool) WaitForReadyBusyTo(target int64, timeout time.Duration) *Buffer {
	deadline := time.Now().Add(timeout)
	for {
		if b := p.FindReady(target); b != nil {
			return b
		}
		if time.Now().After(deadline) {
			return nil
		}
		watch.Busywait(5 * time.Microsecond)
	}
}

// Buffers returns the pool's buffers in fixed index order. Ownership is not
// shared: callers must not retain pointers past the pool's lifetime.
func (p *Pool) Buffers() []*Buffer {
	return p.buffers
}

// AcquireStats returns (tries, failures) for control-plane introspection.
func (p *Pool) AcquireStats() (tries, failed int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.acquireTries, p.acquireFailed
}
