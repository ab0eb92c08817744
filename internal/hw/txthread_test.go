package hw_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/maxpenner/dectrt/internal/hw"
	"github.com/maxpenner/dectrt/internal/hwsim"
	"github.com/maxpenner/dectrt/internal/jobqueue"
	"github.com/maxpenner/dectrt/internal/txbuffer"
)

func newTestDevice(t *testing.T) *hwsim.Simulator {
	t.Helper()
	s := hwsim.New(hwsim.Config{
		NofAntennasMax:    2,
		SampleRateSpeedup: 1000,
		NofNewSamplesMax:  256,
	})
	require.NoError(t, s.SetAntennaCount(1))
	_, err := s.SetSampleRate(1_000_000)
	require.NoError(t, err)
	require.NoError(t, s.InitializeTxPool(4, 4096))
	require.NoError(t, s.InitializeRxRing(8192))
	require.NoError(t, s.InitializeDevice())
	s.SetTxGapSamples(32)
	return s
}

func TestTxThreadSendsCommittedBuffer(t *testing.T) {
	dev := newTestDevice(t)
	tx := hw.NewTxThread(dev, dev.TxPool(), hw.TxThreadConfig{
		MaxPacketSamples: 128,
		BusyWaitTimeout:  50 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tx.Run(gctx) })

	buf := dev.TxPool().AcquireToFill()
	require.NotNil(t, buf)
	buf.AntStreams(64)
	buf.SetTxLengthSamplesCnt(64)
	buf.SetTransmittable(txMeta(0))

	require.Eventually(t, func() bool {
		return buf.IsIdle()
	}, time.Second, 5*time.Millisecond)

	tx.Stop()
	cancel()
	_ = g.Wait()
}

func TestTxThreadStitchesConsecutiveBuffersWithSmallGap(t *testing.T) {
	dev := newTestDevice(t)
	tx := hw.NewTxThread(dev, dev.TxPool(), hw.TxThreadConfig{
		MaxPacketSamples: 128,
		BusyWaitTimeout:  50 * time.Millisecond,
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return tx.Run(gctx) })

	first := dev.TxPool().AcquireToFill()
	require.NotNil(t, first)
	first.AntStreams(64)
	first.SetTxLengthSamplesCnt(64)
	first.SetTransmittable(txMeta(0))

	second := dev.TxPool().AcquireToFill()
	require.NotNil(t, second)
	second.AntStreams(64)
	second.SetTxLengthSamplesCnt(64)
	meta := txMeta(1)
	meta.TxTime = 64 + 10 // small gap, stitchable
	second.SetTransmittable(meta)

	require.Eventually(t, func() bool {
		_, aborted := tx.Stats()
		return second.IsIdle() && aborted == 0
	}, time.Second, 5*time.Millisecond)

	consecutive, _ := tx.Stats()
	require.GreaterOrEqual(t, consecutive, int64(1))

	tx.Stop()
	cancel()
	_ = g.Wait()
}

func txMeta(orderID int64) txbuffer.Meta {
	return txbuffer.Meta{TxOrderID: orderID, TxTime: orderID * 64, TxOrderIDExpectNext: -1}
}

func TestRxThreadAdvancesRing(t *testing.T) {
	dev := newTestDevice(t)
	jq := jobqueue.NewNaive(jobqueue.MinCapacity)
	jq.SetPermeable(true)

	rx := hw.NewRxThread(dev, jq, hw.RxThreadConfig{WorkerID: 0, EnqueueFatal: false}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return rx.Run(gctx) })

	require.Eventually(t, func() bool {
		return dev.RxRing().RxTimePassed() > 0
	}, time.Second, 5*time.Millisecond)

	rx.Stop()
	cancel()
	_ = g.Wait()
}
