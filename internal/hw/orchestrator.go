package hw

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/maxpenner/dectrt/internal/jobqueue"
)

// OrchestratorConfig bundles the TX/RX thread configuration needed to start
// a Device's streaming threads.
type OrchestratorConfig struct {
	Tx TxThreadConfig
	Rx RxThreadConfig
}

// Orchestrator starts and stops a Device's threads in the order
// start_threads_and_iq_streaming specifies: TX async-error helper, TX
// thread, a settling sleep, RX thread. Shutdown cancels all three through
// one shared context and waits for all of them together; the threads are
// not joined in any particular order.
type Orchestrator struct {
	dev      Device
	jobQueue jobqueue.Queue
	log      *zap.SugaredLogger

	tx *TxThread
	rx *RxThread

	asyncErrors int64
}

// NewOrchestrator constructs an Orchestrator for dev.
func NewOrchestrator(dev Device, jobQueue jobqueue.Queue, cfg OrchestratorConfig, log *zap.SugaredLogger) *Orchestrator {
	return &Orchestrator{
		dev:      dev,
		jobQueue: jobQueue,
		log:      log,
		tx:       NewTxThread(dev, dev.TxPool(), cfg.Tx, log),
		rx:       NewRxThread(dev, jobQueue, cfg.Rx, log),
	}
}

// Run starts all threads and blocks until ctx is canceled or any thread
// returns an error; either cancels the shared context, which stops the
// remaining threads. Run waits for every thread to return, in no particular
// order, and then sets the RX and TX stop flags.
func (o *Orchestrator) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return o.runAsyncErrorHelper(gctx)
	})

	g.Go(func() error {
		return o.tx.Run(gctx)
	})

	select {
	case <-time.After(settlingSleep):
	case <-gctx.Done():
	}

	g.Go(func() error {
		return o.rx.Run(gctx)
	})

	err := g.Wait()

	o.rx.Stop()
	o.tx.Stop()

	return err
}

// AsyncErrorCount returns the number of device asynchronous errors observed
// (underflow, sequence error, late command, timeout), for control-plane
// introspection.
func (o *Orchestrator) AsyncErrorCount() int64 { return o.asyncErrors }

// runAsyncErrorHelper drains device error notifications and logs them; it
// never retransmits, matching the original's dedicated helper thread.
func (o *Orchestrator) runAsyncErrorHelper(ctx context.Context) error {
	type asyncErrorSource interface {
		NextAsyncError(ctx context.Context) (string, error)
	}

	src, ok := o.dev.(asyncErrorSource)
	if !ok {
		<-ctx.Done()
		return ctx.Err()
	}

	for {
		reason, err := src.NextAsyncError(ctx)
		if err != nil {
			return nil
		}
		o.asyncErrors++
		if o.log != nil {
			o.log.Warnw("device async error", "reason", reason)
		}
	}
}

// TxStats exposes the TX thread's stitching counters.
func (o *Orchestrator) TxStats() (consecutive, aborted int64) { return o.tx.Stats() }

// TxState exposes the TX thread's current burst-stitching state.
func (o *Orchestrator) TxState() txState { return o.tx.State() }
