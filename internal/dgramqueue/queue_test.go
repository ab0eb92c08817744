package dgramqueue

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	q := New(Size{NDatagram: 4, NDatagramMaxByte: 16})

	blob := []byte("hello, datagram")
	n := q.WriteNTO(blob)
	require.Equal(t, uint32(len(blob)), n)

	dst := make([]byte, 16)
	got := q.ReadNTO(dst)
	require.Equal(t, uint32(len(blob)), got)
	assert.True(t, cmp.Equal(blob, dst[:got]))
}

func TestCapacityInvariantOneSlotReserved(t *testing.T) {
	q := New(Size{NDatagram: 1, NDatagramMaxByte: 8})

	// N_datagram == 1: capacity is 0, every write fails.
	assert.Equal(t, uint32(0), q.Capacity())
	n := q.WriteNTO([]byte("x"))
	assert.Equal(t, uint32(0), n)
}

func TestDatagramQueueNEquals2BoundaryScenario(t *testing.T) {
	q := New(Size{NDatagram: 2, NDatagramMaxByte: 8})

	n := q.WriteNTO([]byte("a"))
	require.Equal(t, uint32(1), n)

	// used == N-1 == 1, queue is full.
	n = q.WriteNTO([]byte("b"))
	require.Equal(t, uint32(0), n, "write must fail when used == N_datagram-1")

	dst := make([]byte, 8)
	got := q.ReadNTO(dst)
	require.Equal(t, uint32(1), got)
	assert.Equal(t, byte('a'), dst[0])

	n = q.WriteNTO([]byte("c"))
	assert.Equal(t, uint32(1), n, "write must succeed again after a read frees a slot")
}

func TestReadNilDestInvalidatesWithoutCopying(t *testing.T) {
	q := New(Size{NDatagram: 4, NDatagramMaxByte: 8})

	q.WriteNTO([]byte("abc"))
	n := q.ReadNTO(nil)
	require.Equal(t, uint32(3), n)

	// slot is now free
	assert.Equal(t, uint32(0), q.Used())
}

func TestEmptyWriteIsIgnored(t *testing.T) {
	q := New(Size{NDatagram: 4, NDatagramMaxByte: 8})
	n := q.WriteNTO(nil)
	assert.Equal(t, uint32(0), n)
	assert.Equal(t, uint32(0), q.Used())
}

func TestLevelOrdersOldestToNewest(t *testing.T) {
	q := New(Size{NDatagram: 8, NDatagramMaxByte: 8})

	q.WriteNTO([]byte("a"))
	q.WriteNTO([]byte("bb"))
	q.WriteNTO([]byte("ccc"))

	lv := q.LevelNTO(10)
	require.Equal(t, []uint32{1, 2, 3}, lv.Lengths)
}

func TestClearResetsIndices(t *testing.T) {
	q := New(Size{NDatagram: 4, NDatagramMaxByte: 8})
	q.WriteNTO([]byte("a"))
	q.WriteNTO([]byte("b"))
	q.Clear()
	assert.Equal(t, uint32(0), q.Used())
	assert.Equal(t, uint32(3), q.Capacity())
}

func TestConcurrentWritersSingleReaderNoCorruption(t *testing.T) {
	q := New(Size{NDatagram: 256, NDatagramMaxByte: 8})

	var wg sync.WaitGroup
	const writers = 8
	const perWriter = 20

	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				for q.WriteNTO([]byte("x")) == 0 {
					// spin until a slot frees; reader below
					// drains concurrently.
				}
			}
		}()
	}

	read := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		dst := make([]byte, 8)
		for read < writers*perWriter {
			if q.ReadNTO(dst) > 0 {
				read++
			}
		}
	}()

	wg.Wait()
	<-done
	assert.Equal(t, writers*perWriter, read)
}
