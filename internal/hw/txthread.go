package hw

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/maxpenner/dectrt/internal/jobqueue"
	"github.com/maxpenner/dectrt/internal/txbuffer"
	"github.com/maxpenner/dectrt/internal/txpool"
)

// txState names the three phases of the burst-stitching state machine: a
// burst is either not open, open and actively stitching consecutive buffers
// together, or in the process of being closed out. This replaces the
// implicit state carried across the original's nested loop bodies with an
// explicit, named machine.
type txState int

const (
	txIdleBetweenBursts txState = iota
	txInBurst
	txClosing
)

func (s txState) String() string {
	switch s {
	case txIdleBetweenBursts:
		return "idle_between_bursts"
	case txInBurst:
		return "in_burst"
	case txClosing:
		return "closing"
	default:
		return "unknown"
	}
}

// TxThreadConfig parameterizes TxThread.
type TxThreadConfig struct {
	MaxPacketSamples uint32
	BusyWaitTimeout  time.Duration
	// AGCCommandQueue receives scheduled AGC adjustments to apply at a
	// packet's end time; may be nil if AGC scheduling is not used.
	AGCCommandQueue chan<- AGCCommand
}

// AGCCommand schedules a timed TX or RX power adjustment at a given
// absolute sample time, mirroring the original's "at packet end" AGC hook.
type AGCCommand struct {
	AtSampleTime int64
	TxAdjDB      []float32
	RxAdjDB      []float32
}

// TxThread drives one Device's TX path: acquiring READY buffers in strictly
// increasing tx_order_id order, stitching consecutive bursts together when
// the gap between them is small enough, and releasing buffers once sent.
// Grounded on the TX thread algorithm described alongside TxBufferPool.
type TxThread struct {
	dev  Device
	pool *txpool.Pool
	cfg  TxThreadConfig
	log  *zap.SugaredLogger

	keepRunning atomic.Bool
	state       atomic.Int32

	expectedTxOrderID int64
	consecutiveSends  int64
	abortedBursts     int64
}

// NewTxThread constructs a TxThread bound to dev and its buffer pool.
func NewTxThread(dev Device, pool *txpool.Pool, cfg TxThreadConfig, log *zap.SugaredLogger) *TxThread {
	t := &TxThread{dev: dev, pool: pool, cfg: cfg, log: log}
	t.keepRunning.Store(true)
	t.state.Store(int32(txIdleBetweenBursts))
	return t
}

// Stop requests the loop to exit after its current wait returns.
func (t *TxThread) Stop() { t.keepRunning.Store(false) }

// State returns the current burst-stitching state, for control-plane
// introspection.
func (t *TxThread) State() txState { return txState(t.state.Load()) }

func (t *TxThread) setState(s txState) { t.state.Store(int32(s)) }

// Stats returns (consecutive stitched sends, aborted bursts) counters.
func (t *TxThread) Stats() (consecutive, aborted int64) {
	return t.consecutiveSends, t.abortedBursts
}

// Run executes the TX thread loop until Stop is called or ctx is canceled.
// Per iteration: block-wait for the buffer matching expectedTxOrderID,
// apply pipeline compensation and leading-zero prefix, then stitch as many
// consecutive bursts together as remain contiguous.
func (t *TxThread) Run(ctx context.Context) error {
	for t.keepRunning.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		buf := t.pool.WaitForReadyBusyTo(t.expectedTxOrderID, t.cfg.BusyWaitTimeout)
		if buf == nil {
			// No buffer became ready in time; retry the same
			// expected id on the next iteration, per the
			// original's failure semantics for a stalled filler.
			continue
		}

		t.setState(txInBurst)
		burstStart := buf.Meta().TxTime - t.dev.TxTimeAdvanceSamples() - int64(t.dev.LeadingZeroSamples())
		header := StreamHeader{StartOfBurst: true, HasTimeSpec: true, TimeSpec: burstStart}

		if lz := t.dev.LeadingZeroSamples(); lz > 0 {
			if err := t.dev.Send(nil, 0, lz, header); err != nil {
				t.abortedBursts++
				buf.SetTransmittedOrAbort()
				t.setState(txIdleBetweenBursts)
				continue
			}
			header = StreamHeader{}
		}

		t.stitchBurst(buf, header)
		t.setState(txIdleBetweenBursts)
	}

	return nil
}

// stitchBurst sends buf's samples in MaxPacketSamples chunks, then checks
// whether the next expected buffer is already (or about to become) ready
// with a small enough gap to remain in the same burst; otherwise it closes
// the burst with end_of_burst = true.
func (t *TxThread) stitchBurst(buf *txbuffer.Buffer, firstHeader StreamHeader) {
	current := buf
	header := firstHeader

	for {
		meta := current.Meta()
		total := current.TxLengthSamples()

		var sent uint32
		for sent < total {
			chunk := t.cfg.MaxPacketSamples
			if remaining := total - sent; chunk > remaining {
				chunk = remaining
			}
			current.WaitForSamplesBusyNTO(sent + chunk)

			ant := current.AntStreamsOffset(sent)
			if err := t.dev.Send(ant, 0, chunk, header); err != nil {
				if t.log != nil {
					t.log.Warnw("tx send failed", "error", err)
				}
				t.abortedBursts++
				current.SetTransmittedOrAbort()
				return
			}
			sent += chunk
			header = StreamHeader{}
		}

		nextExpected := meta.TxOrderIDExpectNext
		if nextExpected < 0 {
			nextExpected = meta.TxOrderID + 1
		}
		t.expectedTxOrderID = nextExpected

		t.setState(txClosing)
		busyWait := t.cfg.BusyWaitTimeout
		if meta.BusyWaitUS > 0 {
			busyWait = time.Duration(meta.BusyWaitUS) * time.Microsecond
		}
		next := t.pool.WaitForReadyBusyTo(nextExpected, busyWait)

		if next != nil {
			gap := next.Meta().TxTime - (meta.TxTime + int64(total))
			if gap >= 0 && uint32(gap) <= t.dev.TxGapSamples() {
				current.SetZero(total, uint32(gap))
				_ = t.dev.Send(current.AntStreamsOffset(total), 0, uint32(gap), StreamHeader{})
				t.consecutiveSends++
				current.SetTransmittedOrAbort()
				current = next
				header = StreamHeader{}
				t.setState(txInBurst)
				continue
			}
		}

		_ = t.dev.Send(current.AntStreamsOffset(total), 0, 0, StreamHeader{EndOfBurst: true})
		current.SetTransmittedOrAbort()
		return
	}
}

// discardCounter receives notice of one job dropped under the discard
// resource policy. Declared locally rather than imported from the control
// plane to avoid a dependency cycle (the control plane already imports hw
// to poll TxThread/RxThread state); controlplane.Counters satisfies it.
type discardCounter interface {
	AddJobQueueDiscard()
}

// enqueueWithPolicy applies the fatal/discard resource-exhaustion policy to
// a job queue push: fatal (the default) panics so a silent drop never
// corrupts sequencing, discard logs, counts against dc if non-nil, and
// moves on.
func enqueueWithPolicy(q jobqueue.Queue, job jobqueue.Job, fatal bool, dc discardCounter, log *zap.SugaredLogger) bool {
	if q.EnqueueNTO(job) {
		return true
	}
	if fatal {
		panic("hw: job queue exhausted under fatal enqueue policy")
	}
	if dc != nil {
		dc.AddJobQueueDiscard()
	}
	if log != nil {
		log.Warnw("job discarded: queue full", "kind", job.Kind.String())
	}
	return false
}
