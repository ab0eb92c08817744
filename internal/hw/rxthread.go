package hw

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/maxpenner/dectrt/internal/jobqueue"
)

// RxThreadConfig parameterizes RxThread.
type RxThreadConfig struct {
	WorkerID uint32
	// EnqueueFatal selects the resource-exhaustion policy for job
	// creation: true aborts the process on a full queue (the default),
	// false discards the job and logs.
	EnqueueFatal bool
	// DiscardCounter is notified of every job dropped under the discard
	// policy, for control-plane introspection. May be nil.
	DiscardCounter discardCounter
}

// RxThread drives one Device's RX path: issuing receives, advancing the
// associated RxRingBuffer, and reporting regular/irregular jobs. Grounded
// on the RX thread responsibilities described alongside RxRingBuffer and
// hw_t's streaming lifecycle.
type RxThread struct {
	dev      Device
	jobQueue jobqueue.Queue
	cfg      RxThreadConfig
	log      *zap.SugaredLogger

	keepRunning atomic.Bool
	antennaMask uint32
}

// NewRxThread constructs an RxThread bound to dev.
func NewRxThread(dev Device, jobQueue jobqueue.Queue, cfg RxThreadConfig, log *zap.SugaredLogger) *RxThread {
	t := &RxThread{dev: dev, jobQueue: jobQueue, cfg: cfg, log: log}
	t.keepRunning.Store(true)
	t.antennaMask = (1 << dev.NofAntennas()) - 1
	return t
}

// Stop requests the loop to exit after its current receive returns.
func (t *RxThread) Stop() { t.keepRunning.Store(false) }

// Run executes the RX thread loop until Stop is called or ctx is canceled.
// The loop returns as soon as it observes the stop flag or the canceled
// context; it does not keep calling Recv afterwards to drain samples the
// device still holds.
func (t *RxThread) Run(ctx context.Context) error {
	ring := t.dev.RxRing()

	for t.keepRunning.Load() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		firstSampleTime, n, err := t.dev.Recv()
		if err != nil {
			job := jobqueue.Job{
				Kind: jobqueue.KindIrregular,
				Irregular: jobqueue.IrregularReport{
					WorkerID:   t.cfg.WorkerID,
					SampleTime: firstSampleTime,
					Reason:     err.Error(),
				},
			}
			enqueueWithPolicy(t.jobQueue, job, t.cfg.EnqueueFatal, t.cfg.DiscardCounter, t.log)
			continue
		}

		if n == 0 {
			continue
		}

		ring.Advance(firstSampleTime, n)

		job := jobqueue.Job{
			Kind: jobqueue.KindRegular,
			Regular: jobqueue.RegularReport{
				WorkerID:    t.cfg.WorkerID,
				AntennaMask: t.antennaMask,
				SampleTime:  ring.RxTimePassed(),
			},
		}
		enqueueWithPolicy(t.jobQueue, job, t.cfg.EnqueueFatal, t.cfg.DiscardCounter, t.log)
	}

	return nil
}

// settlingSleep is the pause Orchestrator.Run inserts between
// starting the TX thread and the RX thread, so rx_time_passed never starts
// advancing before the TX side can react to it.
const settlingSleep = 100 * time.Millisecond
