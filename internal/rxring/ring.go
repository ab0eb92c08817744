// Package rxring implements the per-antenna receive ring buffer fed by a
// single radio thread, publishing a monotonic "samples elapsed" timeline
// that many consumer workers can wait on.
package rxring

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/maxpenner/dectrt/internal/iq"
)

// minLengthFactor is the minimum ratio of ring length to the maximum single
// write size, giving producers slack before overwriting unread data.
const minLengthFactor = 8

// Config describes the fixed geometry of a Buffer.
type Config struct {
	NofAntennas         uint32
	AntStreamsLengthSamples uint32
	NofNewSamplesMax        uint32
	// NotificationPeriod is how many samples must elapse between waking
	// waiters. Waiters are woken only when the published count reaches the
	// next notification boundary, so a waiter whose target falls between
	// two boundaries wakes at the later one.
	NotificationPeriod uint32
	// Prestream is the number of initial samples to account for without
	// publishing, letting the device settle before readers see anything.
	Prestream int64
	// JitterWindow is the maximum acceptable discrepancy (in samples)
	// between the internal counter and an observed first-sample time
	// before Advance treats it as a dropped-samples event.
	JitterWindow int64
}

// Buffer is a lock-free-for-readers ring buffer: one producer goroutine
// (the RX thread) calls Advance after each hardware receive; any number of
// consumer goroutines call WaitUntil and then read sample windows directly
// via AntStream. Grounded on buffer_rx.cpp's advance/wait_until pair.
type Buffer struct {
	cfg Config

	antStreams [][]iq.Sample // per antenna, length AntStreamsLengthSamples + NofNewSamplesMax

	internalSampleCount int64 // producer-private, not shared
	prestreamRemaining  int64 // producer-private

	rxTimePassed atomic.Int64

	notifyMu       sync.Mutex
	notifyChan     chan struct{}
	notificationNext int64

	jitterSnaps atomic.Int64 // control-plane counter
}

// New allocates a Buffer. Panics if the geometry invariant
// (length >= 8 * NofNewSamplesMax) does not hold, matching the original's
// startup assertion.
func New(cfg Config) *Buffer {
	if cfg.AntStreamsLengthSamples < minLengthFactor*cfg.NofNewSamplesMax {
		panic("rxring: ant_streams_length_samples must be >= 8 * nof_new_samples_max")
	}

	b := &Buffer{
		cfg:               cfg,
		prestreamRemaining: cfg.Prestream,
		notificationNext:  cfg.NotificationPeriod,
		notifyChan:        make(chan struct{}),
	}

	total := cfg.AntStreamsLengthSamples + cfg.NofNewSamplesMax
	b.antStreams = make([][]iq.Sample, cfg.NofAntennas)
	for i := range b.antStreams {
		b.antStreams[i] = make([]iq.Sample, total)
	}

	return b
}

// AntStream returns the writable slice for antenna ant. Only the producer
// (RX thread) may write into it, at the index range implied by the current
// internal write position; it writes samples before calling Advance.
func (b *Buffer) AntStream(ant uint32) []iq.Sample {
	return b.antStreams[ant]
}

// WriteIndex returns the index the producer should write the next batch of
// nofNewSamples at, for antenna streams, before calling Advance. Exposed
// because the producer must write samples into the buffer before the
// corresponding Advance call performs its bookkeeping.
func (b *Buffer) WriteIndex() uint32 {
	return uint32(b.internalSampleCount % int64(b.cfg.AntStreamsLengthSamples))
}

// Advance performs the bookkeeping step after the producer has already
// written nofNewSamples new samples (for every antenna) at the index
// returned by WriteIndex prior to this call. firstSampleTime is the device's
// reported absolute sample index of the first sample in this batch, used for
// the jitter check.
func (b *Buffer) Advance(firstSampleTime iq.SampleTime, nofNewSamples uint32) {
	expected := b.internalSampleCount
	observed := int64(firstSampleTime)

	diff := observed - expected
	if diff < 0 {
		diff = -diff
	}
	if diff > b.cfg.JitterWindow {
		// Dropped-samples event: snap to observed time, no attempt to
		// reconstruct the missing window.
		b.internalSampleCount = observed
		b.jitterSnaps.Add(1)
	}

	length := int64(b.cfg.AntStreamsLengthSamples)
	index := uint32(b.internalSampleCount % length)

	// If the write overhangs the end of the ring, the overhanging tail
	// was written into the scratch extension past AntStreamsLengthSamples;
	// copy it back to the head so any contiguous read never straddles a
	// discontinuity.
	if int64(index)+int64(nofNewSamples) > length {
		overhang := int64(index) + int64(nofNewSamples) - length
		for _, stream := range b.antStreams {
			copy(stream[0:overhang], stream[length:length+overhang])
		}
	}

	b.internalSampleCount += int64(nofNewSamples)

	if b.prestreamRemaining > 0 {
		b.prestreamRemaining -= int64(nofNewSamples)
		return
	}

	b.rxTimePassed.Store(b.internalSampleCount)

	if b.internalSampleCount >= b.notificationNext {
		b.notifyAll()
		b.notificationNext += int64(b.cfg.NotificationPeriod)
	}
}

// RxTimePassed returns the current published sample count, acquire-ordered
// with respect to the samples it makes visible.
func (b *Buffer) RxTimePassed() iq.SampleTime {
	return b.rxTimePassed.Load()
}

// JitterSnaps returns how many times Advance has snapped the internal
// counter due to an out-of-window jitter observation, for control-plane
// introspection.
func (b *Buffer) JitterSnaps() int64 {
	return b.jitterSnaps.Load()
}

// WaitUntil blocks until RxTimePassed() >= target or ctx is canceled,
// whichever happens first. The notification primitive is a channel that gets
// closed and replaced each time Advance crosses a notification boundary;
// capturing the channel before re-checking the published counter (rather
// than after) is what prevents a missed wakeup between the check and the
// wait, the same role the original's try-locked condition variable plays.
func (b *Buffer) WaitUntil(ctx context.Context, target iq.SampleTime) error {
	for {
		b.notifyMu.Lock()
		ch := b.notifyChan
		b.notifyMu.Unlock()

		if b.rxTimePassed.Load() >= target {
			return nil
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (b *Buffer) notifyAll() {
	b.notifyMu.Lock()
	close(b.notifyChan)
	b.notifyChan = make(chan struct{})
	b.notifyMu.Unlock()
}
