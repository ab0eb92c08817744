// Package hw abstracts a radio device, real or simulated, and orchestrates
// its TX/RX threads. Grounded on radio/hw.hpp, buffer_tx_pool.hpp and the
// TX-thread algorithm described alongside TxBuffer.
package hw

import (
	"time"

	"github.com/maxpenner/dectrt/internal/iq"
	"github.com/maxpenner/dectrt/internal/rxring"
	"github.com/maxpenner/dectrt/internal/txpool"
)

// DefaultFreqHz is the frequency used before the first SetFreq call.
const DefaultFreqHz = 100.0e6

// TxGapSamplesMax bounds the intra-burst zero-fill width a device may be
// asked to absorb without splitting a burst.
const TxGapSamplesMax = 100

// Tmin identifies a minimum settling time class.
type Tmin uint32

const (
	TminFreq Tmin = iota
	TminGain
	TminTurnaround
	tminCardinality
)

// Device is the contract the rest of the core relies on, satisfied by both
// a real SDR backend and the software hwsim backend.
type Device interface {
	NofAntennasMax() uint32
	NofAntennas() uint32
	SampleRate() uint32

	// SetAntennaCount sets nof_antennas; must satisfy 0 < n <= NofAntennasMax.
	SetAntennaCount(n uint32) error

	// SetSampleRate rounds up to the closest achievable sample rate and
	// returns the actual value; the caller must accept it or abort.
	SetSampleRate(requested uint32) (actual uint32, err error)

	// SetTxGapSamples configures the maximum gap the TX thread may
	// coalesce across without splitting a burst.
	SetTxGapSamples(n uint32)

	// TxGapSamples returns the currently configured coalescing bound, the
	// value stitchBurst compares an inter-buffer gap against.
	TxGapSamples() uint32

	// InitializeTxPool, InitializeRxRing and InitializeDevice must be
	// called, in this order, after antenna count and sample rate are
	// negotiated.
	InitializeTxPool(nofBuffers, antStreamsLengthSamplesMax uint32) error
	InitializeRxRing(antStreamsLengthSamples uint32) error
	InitializeDevice() error

	// StartThreadsAndIQStreaming prepares the device to stream. It does
	// not spawn threads: Orchestrator.Run starts, in order, the TX
	// async-error helper, the TX thread, a short settling sleep, then the
	// RX thread. Order matters: rx_time_passed must not advance before the
	// TX side is ready to consume it.
	StartThreadsAndIQStreaming() error

	// SetCommandTime queues subsequent timed commands for execution at
	// sample time t; t < 0 means execute as soon as possible.
	SetCommandTime(t int64)

	SetFreq(hz float64) (actual float64, err error)

	TxPowerAt0dBFS() float32
	SetTxPowerAt0dBFS(dBm float32) (actual float32, err error)
	AdjustTxPowerAt0dBFS(adjDB float32) (actual float32, err error)

	RxPowerAt0dBFS() []float32
	SetRxPowerAt0dBFS(dBm float32, antIdx int) (actual float32, err error)
	SetRxPowerAt0dBFSUniform(dBm float32) (actual []float32, err error)
	AdjustRxPowerAt0dBFS(adjDB []float32) (actual []float32, err error)

	// PPSWaitForNext and PPSSetFullSecAtNextAndWait back ppssync.Hardware.
	PPSWaitForNext()
	PPSSetFullSecAtNextAndWait(fullSec int64)
	Simulated() bool

	ADCBits() uint32
	DACBits() uint32
	TminSamples(t Tmin) uint32
	PPM() float32
	PPSToFullSecondMeasuredSamples() int64

	// TxPool and RxRing expose the buffers created by InitializeTxPool
	// and InitializeRxRing for the orchestrator and upper layers.
	TxPool() *txpool.Pool
	RxRing() *rxring.Buffer

	// Stop requests shutdown; all inner loops poll it at least once
	// per 100ms. Join waits for the TX/RX threads to return after Stop.
	Stop()
	Join(timeout time.Duration) error

	// TxTimeAdvanceSamples is the device-specific pipeline compensation
	// subtracted from a burst's commanded tx_time before it is sent.
	TxTimeAdvanceSamples() int64

	// LeadingZeroSamples is the contiguous zero-prefix length sent ahead
	// of the first real sample of a burst (real hardware only; 0 on
	// the simulator).
	LeadingZeroSamples() uint32

	// Send transmits ant[*][offset:offset+n] with the given stream
	// header. Called by the TX thread after tx_length_samples_cnt
	// backpressure has already been satisfied for this chunk.
	Send(ant [][]iq.Sample, offset, n uint32, header StreamHeader) error

	// Recv performs one hardware receive, writing samples directly into
	// RxRing() at its current write index, and returns the bookkeeping
	// the RX thread passes to RxRingBuffer.Advance.
	Recv() (firstSampleTime int64, nofSamples uint32, err error)
}

// StreamHeader carries the per-chunk metadata the TX thread attaches to
// every send: burst boundaries and an optional absolute time spec.
type StreamHeader struct {
	StartOfBurst bool
	EndOfBurst   bool
	HasTimeSpec  bool
	TimeSpec     int64
}

// TxGapMax clamps a configured gap value to TxGapSamplesMax.
func TxGapMax(requested uint32) uint32 {
	if requested > TxGapSamplesMax {
		return TxGapSamplesMax
	}
	return requested
}
