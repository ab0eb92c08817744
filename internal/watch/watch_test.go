package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElapsedMonotonic(t *testing.T) {
	w := New()
	time.Sleep(2 * time.Millisecond)
	first := w.Elapsed()
	time.Sleep(2 * time.Millisecond)
	second := w.Elapsed()

	assert.GreaterOrEqual(t, int64(second), int64(first))
	assert.GreaterOrEqual(t, first, 2*time.Millisecond)
}

func TestReset(t *testing.T) {
	w := New()
	time.Sleep(5 * time.Millisecond)
	w.Reset()
	assert.Less(t, w.Elapsed(), 5*time.Millisecond)
}

func TestIsElapsed(t *testing.T) {
	w := New()
	require.False(t, w.IsElapsed(time.Hour))
	time.Sleep(2 * time.Millisecond)
	require.True(t, w.IsElapsed(time.Millisecond))
}

func TestSleepUntilAlreadyPast(t *testing.T) {
	past := ElapsedSinceEpoch(ClockSystem) - int64(time.Second)
	slept := SleepUntil(ClockSystem, past)
	assert.False(t, slept)
}

func TestSleepUntilFuture(t *testing.T) {
	target := ElapsedSinceEpoch(ClockSystem) + int64(3*time.Millisecond)
	start := time.Now()
	slept := SleepUntil(ClockSystem, target)
	assert.True(t, slept)
	assert.GreaterOrEqual(t, time.Since(start), 2*time.Millisecond)
}

func TestElapsedSinceEpochOffsets(t *testing.T) {
	sys := ElapsedSinceEpoch(ClockSystem)
	tai := ElapsedSinceEpoch(ClockTAI)
	gps := ElapsedSinceEpoch(ClockGPS)

	assert.InDelta(t, float64(sys+EpochTAIUTCSec*int64(time.Second)), float64(tai), float64(time.Second))
	assert.InDelta(t, float64(sys+EpochGPSUTCSec*int64(time.Second)), float64(gps), float64(time.Second))
}

func TestBusywaitUntilFuture(t *testing.T) {
	target := ElapsedSinceEpoch(ClockSystem) + int64(500*time.Microsecond)
	start := time.Now()
	waited := BusywaitUntil(ClockSystem, target)
	assert.True(t, waited)
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Microsecond)
}
