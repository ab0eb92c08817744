package txpool

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpenner/dectrt/internal/txbuffer"
)

func fillAndCommit(b *Buffer, orderID int64, txTime int64, n uint32) {
	b.TryLockOuter()
	b.AntStreams(n)
	b.SetTransmittable(txbuffer.Meta{TxOrderID: orderID, TxTime: txTime, TxOrderIDExpectNext: -1})
	b.SetTxLengthSamplesCnt(n)
}

func TestAcquireToFillScansInOrder(t *testing.T) {
	p := New(0, 1, 3, 64, txbuffer.LockMutex)

	b0 := p.AcquireToFill()
	require.NotNil(t, b0)
	assert.Equal(t, uint32(0), b0.ID())

	b1 := p.AcquireToFill()
	require.NotNil(t, b1)
	assert.Equal(t, uint32(1), b1.ID())
}

func TestAcquireToFillReturnsNilWhenFull(t *testing.T) {
	p := New(0, 1, 2, 64, txbuffer.LockMutex)
	require.NotNil(t, p.AcquireToFill())
	require.NotNil(t, p.AcquireToFill())
	assert.Nil(t, p.AcquireToFill())

	tries, failed := p.AcquireStats()
	assert.Equal(t, int64(3), tries)
	assert.Equal(t, int64(1), failed)
}

func TestFindReadyMatchesOrderID(t *testing.T) {
	p := New(0, 1, 4, 64, txbuffer.LockMutex)
	b := p.AcquireToFill()
	fillAndCommit(b, 7, 1000, 10)

	found := p.FindReady(7)
	require.NotNil(t, found)
	assert.Equal(t, b.ID(), found.ID())
	assert.Nil(t, p.FindReady(8))
}

func TestWaitForReadyToFindsAlreadyReady(t *testing.T) {
	p := New(0, 1, 4, 64, txbuffer.LockMutex)
	b := p.AcquireToFill()
	fillAndCommit(b, 1, 0, 10)

	found := p.WaitForReadyTo(1, time.Second)
	require.NotNil(t, found)
	assert.Equal(t, b.ID(), found.ID())
}

func TestWaitForReadyToWakesOnLaterCommit(t *testing.T) {
	p := New(0, 1, 4, 64, txbuffer.LockMutex)

	var wg sync.WaitGroup
	wg.Add(1)
	var found *Buffer
	go func() {
		defer wg.Done()
		found = p.WaitForReadyTo(3, 2*time.Second)
	}()

	time.Sleep(5 * time.Millisecond)
	b := p.AcquireToFill()
	fillAndCommit(b, 3, 500, 5)

	wg.Wait()
	require.NotNil(t, found)
	assert.Equal(t, int64(3), found.Meta().TxOrderID)
}

func TestWaitForReadyToTimesOut(t *testing.T) {
	p := New(0, 1, 4, 64, txbuffer.LockMutex)
	start := time.Now()
	found := p.WaitForReadyTo(99, 20*time.Millisecond)
	assert.Nil(t, found)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestWaitForReadyBusyToNeverSleepsPastTimeout(t *testing.T) {
	p := New(0, 1, 2, 64, txbuffer.LockMutex)
	found := p.WaitForReadyBusyTo(5, 10*time.Millisecond)
	assert.Nil(t, found)
}

func TestAcquireFillReleaseCycle(t *testing.T) {
	p := New(0, 1, 1, 32, txbuffer.LockMutex)
	b := p.AcquireToFill()
	require.NotNil(t, b)

	fillAndCommit(b, 0, 0, 4)
	require.NotNil(t, p.FindReady(0))

	b.SetTransmittedOrAbort()
	assert.True(t, b.IsIdle())

	// buffer is reusable immediately after release
	b2 := p.AcquireToFill()
	require.NotNil(t, b2)
	assert.Equal(t, b.ID(), b2.ID())
}
