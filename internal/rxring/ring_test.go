package rxring

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/maxpenner/dectrt/internal/iq"
)

func smallConfig() Config {
	return Config{
		NofAntennas:             2,
		AntStreamsLengthSamples: 64,
		NofNewSamplesMax:        8,
		NotificationPeriod:      4,
		Prestream:               0,
		JitterWindow:            1,
	}
}

func writeBatch(b *Buffer, n uint32, val iq.Sample) uint32 {
	idx := b.WriteIndex()
	for ant := uint32(0); ant < 2; ant++ {
		stream := b.AntStream(ant)
		for i := uint32(0); i < n; i++ {
			stream[(idx+i)%uint32(len(stream))] = val
		}
	}
	return idx
}

func TestRxTimePassedMonotonic(t *testing.T) {
	b := New(smallConfig())

	writeBatch(b, 4, 1)
	b.Advance(0, 4)
	t0 := b.RxTimePassed()

	writeBatch(b, 4, 2)
	b.Advance(4, 4)
	t1 := b.RxTimePassed()

	assert.GreaterOrEqual(t, int64(t1), int64(t0))
}

func TestJitterSnapScenario(t *testing.T) {
	// advance(1000, 100) then advance(1500, 100) with expected 1100:
	// internal count snaps to 1500, no reconstruction.
	b := New(Config{
		NofAntennas:             1,
		AntStreamsLengthSamples: 4096,
		NofNewSamplesMax:        128,
		NotificationPeriod:      1,
		JitterWindow:            1,
	})

	b.internalSampleCount = 1000
	b.Advance(1000, 100)
	require.Equal(t, int64(1100), b.internalSampleCount)

	b.Advance(1500, 100)
	assert.Equal(t, int64(1600), b.internalSampleCount)
	assert.Equal(t, int64(1), b.JitterSnaps())
	assert.Equal(t, iq.SampleTime(1600), b.RxTimePassed())
}

func TestWrapCopiesOverhangToHead(t *testing.T) {
	b := New(Config{
		NofAntennas:             1,
		AntStreamsLengthSamples: 64,
		NofNewSamplesMax:        8,
		NotificationPeriod:      1,
		JitterWindow:            100,
	})

	// Advance to index 60 (64-4), leaving only 4 slots before wrap.
	b.internalSampleCount = 60
	stream := b.AntStream(0)
	for i := uint32(0); i < 8; i++ {
		stream[60+i] = iq.Sample(complex(float32(i+1), 0))
	}
	b.Advance(60, 8)

	// samples 4..7 of the batch should now also be visible at head [0:4)
	for i := uint32(0); i < 4; i++ {
		assert.Equal(t, stream[60+4+i], stream[i], "overhang sample %d not copied to head", i)
	}
}

func TestPrestreamSuppressesPublication(t *testing.T) {
	b := New(Config{
		NofAntennas:             1,
		AntStreamsLengthSamples: 64,
		NofNewSamplesMax:        8,
		NotificationPeriod:      1,
		Prestream:               8,
		JitterWindow:            1,
	})

	writeBatch(b, 4, 1)
	b.Advance(0, 4)
	assert.Equal(t, iq.SampleTime(0), b.RxTimePassed(), "first prestream batch must not publish")

	writeBatch(b, 4, 1)
	b.Advance(4, 4)
	assert.Equal(t, iq.SampleTime(0), b.RxTimePassed(), "second prestream batch must not publish")

	writeBatch(b, 4, 1)
	b.Advance(8, 4)
	assert.Equal(t, iq.SampleTime(12), b.RxTimePassed(), "third batch publishes once prestream exhausted")
}

func TestWaitUntilReturnsImmediatelyWhenAlreadyReached(t *testing.T) {
	b := New(smallConfig())
	writeBatch(b, 4, 1)
	b.Advance(0, 4)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, b.WaitUntil(ctx, 4))
}

func TestWaitUntilWakesOnAdvance(t *testing.T) {
	b := New(smallConfig())

	g, ctx := errgroup.WithContext(context.Background())
	g.Go(func() error {
		return b.WaitUntil(ctx, 8)
	})

	time.Sleep(5 * time.Millisecond)
	writeBatch(b, 8, 1)
	b.Advance(0, 8)

	require.NoError(t, g.Wait())
}

func TestWaitUntilCancellation(t *testing.T) {
	b := New(smallConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := b.WaitUntil(ctx, 1000)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConcurrentReadersOneWriter(t *testing.T) {
	b := New(Config{
		NofAntennas:             1,
		AntStreamsLengthSamples: 256,
		NofNewSamplesMax:        16,
		NotificationPeriod:      16,
		JitterWindow:            1,
	})

	const target = iq.SampleTime(160)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			assert.NoError(t, b.WaitUntil(ctx, target))
		}()
	}

	for b.RxTimePassed() < target {
		writeBatch(b, 16, 1)
		b.Advance(b.internalSampleCount, 16)
	}

	wg.Wait()
}
