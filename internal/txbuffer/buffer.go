// Package txbuffer implements the two-stage-locked transmit buffer: an outer
// lock separating idle from {filling, ready}, and an inner lock separating
// filling from ready. Grounded on buffer_tx.cpp.
package txbuffer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxpenner/dectrt/internal/iq"
	"github.com/maxpenner/dectrt/internal/spinlock"
	"github.com/maxpenner/dectrt/internal/watch"
)

// busywaitPollInterval mirrors the original's default busywait_us(5).
const busywaitPollInterval = 5 * time.Microsecond

// LockKind selects the implementation backing a Buffer's outer
// state-machine lock; the inner lock is always an atomic flag. The semantic contract (IDLE -> FILLING -> READY) is
// identical either way; only the wait strategy under contention differs.
type LockKind int

const (
	// LockMutex uses sync.Mutex: the waiter parks instead of spinning,
	// the right choice when hold times can be long or the scheduler has
	// more runnable goroutines than cores.
	LockMutex LockKind = iota
	// LockSpin uses spinlock.Lock: the waiter spins instead of parking,
	// the right choice for the short, predictable hold times around
	// SetTransmittable/SetTransmittedOrAbort on a dedicated real-time
	// core.
	LockSpin
)

// outerLock is the contract Buffer's outer (IDLE/FILLING boundary) lock
// needs: a non-blocking acquire plus a query a single owning goroutine can
// use to assert the state machine is where it expects.
type outerLock interface {
	TryLock() bool
	Unlock()
	Locked() bool
}

func newOuterLock(kind LockKind) outerLock {
	if kind == LockSpin {
		return &spinOuterLock{}
	}
	return &mutexOuterLock{}
}

type mutexOuterLock struct {
	mu     sync.Mutex
	locked atomic.Bool
}

func (l *mutexOuterLock) TryLock() bool {
	if !l.mu.TryLock() {
		return false
	}
	l.locked.Store(true)
	return true
}

func (l *mutexOuterLock) Unlock() {
	l.locked.Store(false)
	l.mu.Unlock()
}

func (l *mutexOuterLock) Locked() bool { return l.locked.Load() }

type spinOuterLock struct {
	lock   spinlock.Lock
	locked atomic.Bool
}

func (l *spinOuterLock) TryLock() bool {
	if !l.lock.TryLock() {
		return false
	}
	l.locked.Store(true)
	return true
}

func (l *spinOuterLock) Unlock() {
	l.locked.Store(false)
	l.lock.Unlock()
}

func (l *spinOuterLock) Locked() bool { return l.locked.Load() }

// Meta is the metadata committed atomically with set_transmittable.
type Meta struct {
	// TxOrderID is the monotonic transmission sequence number; -1 when idle.
	TxOrderID int64
	// TxTime is the absolute sample index of the first sample at the antenna.
	TxTime iq.SampleTime
	// TxOrderIDExpectNext overrides sequence progression; -1 means default +1.
	TxOrderIDExpectNext int64
	// BusyWaitUS hints how long the TX thread should spin for the next
	// buffer before closing the current burst.
	BusyWaitUS uint32
	// TxPowerAdjDB and RxPowerAdjDB are AGC adjustments scheduled at
	// end-of-packet, one entry per antenna; nil means no adjustment.
	TxPowerAdjDB []float32
	RxPowerAdjDB []float32
}

func idleMeta() Meta {
	return Meta{TxOrderID: -1, TxTime: -1, TxOrderIDExpectNext: -1}
}

// Buffer is a single TX slot owned exclusively by a Pool. State machine:
//
//	IDLE --TryLockOuter--> FILLING --SetTransmittable--> READY
//	  ^                                                    |
//	  +------------------SetTransmittedOrAbort-------------+
type Buffer struct {
	id                      uint32
	nofAntennas             uint32
	antStreamsLengthSamples uint32

	antStreams [][]iq.Sample

	outer       outerLock
	innerLocked atomic.Bool

	meta Meta

	txLengthSamples    atomic.Uint32
	txLengthSamplesCnt atomic.Uint32

	// onCommit, if set, is invoked by SetTransmittable after the inner
	// lock is taken (the commit point), used by Pool to notify its
	// pool-wide waiters. Grounded on the original's conditional
	// PHY_BUFFER_TX_NOTIFIES_CONDITION_VARIABLE_OF_BUFFER_TX_POOL path.
	onCommit func()
	onRelease func()
}

// NewForPool constructs a Buffer for use by a txpool.Pool, with its outer
// lock backed by kind. Exported because the pool lives in a separate
// package but owns Buffer values directly rather than through a wrapper
// type.
func NewForPool(id, nofAntennas, antStreamsLengthSamples uint32, kind LockKind) *Buffer {
	return newBuffer(id, nofAntennas, antStreamsLengthSamples, kind)
}

// SetHooks wires the pool-level commit/release notifications. Called once
// by the owning Pool at construction time.
func SetHooks(b *Buffer, onCommit, onRelease func()) {
	b.onCommit = onCommit
	b.onRelease = onRelease
}

func newBuffer(id, nofAntennas, antStreamsLengthSamples uint32, kind LockKind) *Buffer {
	b := &Buffer{
		id:                      id,
		nofAntennas:             nofAntennas,
		antStreamsLengthSamples: antStreamsLengthSamples,
		outer:                   newOuterLock(kind),
		meta:                    idleMeta(),
	}
	b.antStreams = make([][]iq.Sample, nofAntennas)
	for i := range b.antStreams {
		b.antStreams[i] = make([]iq.Sample, antStreamsLengthSamples)
	}
	return b
}

// ID returns the buffer's fixed pool-local index.
func (b *Buffer) ID() uint32 { return b.id }

// TryLockOuter attempts the IDLE -> FILLING transition. Never blocks. Returns
// false if the buffer is not idle.
func (b *Buffer) TryLockOuter() bool {
	return b.outer.TryLock()
}

func (b *Buffer) isOuterLockedInnerUnlocked() bool {
	return b.outer.Locked() && !b.innerLocked.Load()
}

func (b *Buffer) isOuterLockedInnerLocked() bool {
	return b.outer.Locked() && b.innerLocked.Load()
}

// AntStreams returns the writable per-antenna sample slices and records
// txLengthSamples (the announced length the filler commits to write).
// Requires outer-locked, inner-unlocked (FILLING state).
func (b *Buffer) AntStreams(txLengthSamples uint32) [][]iq.Sample {
	if !b.isOuterLockedInnerUnlocked() {
		panic("txbuffer: AntStreams called outside FILLING state")
	}
	if txLengthSamples > b.antStreamsLengthSamples {
		panic("txbuffer: TX length longer than TX buffer")
	}
	b.txLengthSamples.Store(txLengthSamples)
	return b.antStreams
}

// SetTransmittable is the commit point: FILLING -> READY. Stores meta, takes
// the inner lock, and notifies the pool.
func (b *Buffer) SetTransmittable(meta Meta) {
	if !b.isOuterLockedInnerUnlocked() {
		panic("txbuffer: SetTransmittable called outside FILLING state")
	}
	b.meta = meta
	b.innerLocked.Store(true)
	if b.onCommit != nil {
		b.onCommit()
	}
}

// SetTxLengthSamplesCnt records how many samples are safe to send, the
// backpressure counter the TX thread busywaits on.
func (b *Buffer) SetTxLengthSamplesCnt(cnt uint32) {
	if cnt > b.antStreamsLengthSamples {
		panic("txbuffer: TX length counter longer than TX buffer")
	}
	b.txLengthSamplesCnt.Store(cnt)
}

// WaitForSamplesBusyNTO busy-waits until at least target samples have been
// marked safe to send. Used by the TX thread, which must never sleep while a
// burst is open.
func (b *Buffer) WaitForSamplesBusyNTO(target uint32) {
	if target > b.txLengthSamples.Load() {
		panic("txbuffer: announced less samples than waiting for")
	}
	for b.txLengthSamplesCnt.Load() < target {
		watch.Busywait(busywaitPollInterval)
	}
}

// Meta returns the currently committed metadata. Requires the buffer to be
// outer-locked (FILLING or READY).
func (b *Buffer) Meta() Meta {
	if !b.outer.Locked() {
		panic("txbuffer: Meta read outside locked state")
	}
	return b.meta
}

// TxLengthSamples returns the announced burst length for the current fill.
func (b *Buffer) TxLengthSamples() uint32 {
	return b.txLengthSamples.Load()
}

// AntStreamsOffset returns, per antenna, the slice starting at offset, for
// the TX thread to read from. Requires outer-locked, inner-locked (READY).
func (b *Buffer) AntStreamsOffset(offset uint32) [][]iq.Sample {
	if !b.isOuterLockedInnerLocked() {
		panic("txbuffer: AntStreamsOffset called outside READY state")
	}
	out := make([][]iq.Sample, b.nofAntennas)
	for i, stream := range b.antStreams {
		out[i] = stream[offset:]
	}
	return out
}

// SetZero zeroes [offset, offset+length) on every antenna stream. Requires
// READY state (the TX thread uses this to pad gaps between stitched bursts).
func (b *Buffer) SetZero(offset, length uint32) {
	if !b.isOuterLockedInnerLocked() {
		panic("txbuffer: SetZero called outside READY state")
	}
	if offset+length > b.antStreamsLengthSamples {
		panic("txbuffer: zeroing beyond length of TX buffer")
	}
	for _, stream := range b.antStreams {
		for i := offset; i < offset+length; i++ {
			stream[i] = 0
		}
	}
}

// SetTransmittedOrAbort is the release point: READY -> IDLE. Resets all
// state and releases both locks.
func (b *Buffer) SetTransmittedOrAbort() {
	if !b.isOuterLockedInnerLocked() {
		panic("txbuffer: SetTransmittedOrAbort called outside READY state")
	}
	b.reset()
	b.innerLocked.Store(false)
	b.outer.Unlock()
	if b.onRelease != nil {
		b.onRelease()
	}
}

func (b *Buffer) reset() {
	b.txLengthSamples.Store(0)
	b.txLengthSamplesCnt.Store(0)
	b.meta = idleMeta()
}

// IsIdle reports whether the buffer is currently unlocked (IDLE).
func (b *Buffer) IsIdle() bool {
	return !b.outer.Locked()
}

// IsReady reports whether the buffer currently holds committed, unsent data.
func (b *Buffer) IsReady() bool {
	return b.isOuterLockedInnerLocked()
}
