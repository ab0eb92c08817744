// Package hwsim implements a software-only hw.Device: it never touches a
// real radio, generating RX samples on a wall-clock-paced ticker (scaled by
// a configurable speedup factor) and draining TX bursts immediately.
// Grounded on radio/hw.hpp's contract and the simulator/hardware asymmetry
// called out for PpsSync (no leading zero, no TX time advance, no GPIOs).
package hwsim

import (
	"fmt"
	"math/bits"
	"sync"
	"sync/atomic"
	"time"

	"github.com/maxpenner/dectrt/internal/hw"
	"github.com/maxpenner/dectrt/internal/iq"
	"github.com/maxpenner/dectrt/internal/rxring"
	"github.com/maxpenner/dectrt/internal/txbuffer"
	"github.com/maxpenner/dectrt/internal/txpool"
	"github.com/maxpenner/dectrt/internal/watch"
)

// Config configures a Simulator.
type Config struct {
	NofAntennasMax uint32
	// SampleRateSpeedup scales the simulated passage of sample time
	// relative to wall-clock time; 1.0 is real time, higher values run
	// the simulation faster than real time.
	SampleRateSpeedup float64
	// NofNewSamplesMax bounds how many samples a single Recv call
	// produces, mirroring a real device's per-call burst size.
	NofNewSamplesMax uint32
	// TxBufferLockKind selects the TX pool's outer-lock backend. The zero
	// value is txbuffer.LockMutex, the right default off a dedicated
	// real-time core.
	TxBufferLockKind txbuffer.LockKind
}

// Simulator is the software hw.Device.
type Simulator struct {
	cfg Config

	nofAntennas atomic.Uint32
	sampRate    atomic.Uint32
	txGap       atomic.Uint32

	txPool *txpool.Pool
	rxRing *rxring.Buffer

	keepRunning atomic.Bool

	mu              sync.Mutex
	freqHz          float64
	txPowerAt0dBFS  float32
	rxPowerAt0dBFS  []float32
	commandTime     int64
	pps             chan struct{}
	fullSecAtNextPPS int64

	rxSampleCount int64
	lastRecvAt    time.Time
}

var _ hw.Device = (*Simulator)(nil)

// New constructs a Simulator. Call SetAntennaCount and SetSampleRate before
// InitializeTxPool/InitializeRxRing/InitializeDevice, matching the real
// device negotiation order.
func New(cfg Config) *Simulator {
	s := &Simulator{cfg: cfg, pps: make(chan struct{})}
	s.nofAntennas.Store(1)
	s.sampRate.Store(1_000_000)
	s.freqHz = hw.DefaultFreqHz
	return s
}

func (s *Simulator) NofAntennasMax() uint32 { return s.cfg.NofAntennasMax }
func (s *Simulator) NofAntennas() uint32    { return s.nofAntennas.Load() }
func (s *Simulator) SampleRate() uint32     { return s.sampRate.Load() }

func (s *Simulator) SetAntennaCount(n uint32) error {
	if n == 0 || n > s.cfg.NofAntennasMax {
		return fmt.Errorf("hwsim: antenna count %d out of range (max %d)", n, s.cfg.NofAntennasMax)
	}
	if bits.OnesCount32(n) != 1 {
		return fmt.Errorf("hwsim: antenna count %d is not a power of two", n)
	}
	s.nofAntennas.Store(n)
	s.mu.Lock()
	s.rxPowerAt0dBFS = make([]float32, n)
	s.mu.Unlock()
	return nil
}

// SetSampleRate picks the smallest multiple of 1kHz >= requested, a
// deliberately coarse stand-in for a real device's discrete rate grid.
func (s *Simulator) SetSampleRate(requested uint32) (uint32, error) {
	const grid = 1000
	actual := ((requested + grid - 1) / grid) * grid
	if actual == 0 {
		actual = grid
	}
	s.sampRate.Store(actual)
	return actual, nil
}

func (s *Simulator) SetTxGapSamples(n uint32) {
	s.txGap.Store(hw.TxGapMax(n))
}

// TxGapSamples returns the currently configured coalescing bound.
func (s *Simulator) TxGapSamples() uint32 {
	return s.txGap.Load()
}

func (s *Simulator) InitializeTxPool(nofBuffers, antStreamsLengthSamplesMax uint32) error {
	s.txPool = txpool.New(0, s.NofAntennas(), nofBuffers, antStreamsLengthSamplesMax, s.cfg.TxBufferLockKind)
	return nil
}

func (s *Simulator) InitializeRxRing(antStreamsLengthSamples uint32) error {
	s.rxRing = rxring.New(rxring.Config{
		NofAntennas:             s.NofAntennas(),
		AntStreamsLengthSamples: antStreamsLengthSamples,
		NofNewSamplesMax:        s.cfg.NofNewSamplesMax,
		NotificationPeriod:      s.cfg.NofNewSamplesMax,
		JitterWindow:            1,
	})
	return nil
}

func (s *Simulator) InitializeDevice() error {
	s.keepRunning.Store(true)
	s.lastRecvAt = time.Now()
	return nil
}

func (s *Simulator) StartThreadsAndIQStreaming() error {
	return nil
}

func (s *Simulator) SetCommandTime(t int64) {
	s.mu.Lock()
	s.commandTime = t
	s.mu.Unlock()
}

func (s *Simulator) SetFreq(hz float64) (float64, error) {
	s.mu.Lock()
	s.freqHz = hz
	s.mu.Unlock()
	return hz, nil
}

func (s *Simulator) TxPowerAt0dBFS() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txPowerAt0dBFS
}

func (s *Simulator) SetTxPowerAt0dBFS(dBm float32) (float32, error) {
	s.mu.Lock()
	s.txPowerAt0dBFS = dBm
	s.mu.Unlock()
	return dBm, nil
}

func (s *Simulator) AdjustTxPowerAt0dBFS(adjDB float32) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.txPowerAt0dBFS += adjDB
	return s.txPowerAt0dBFS, nil
}

func (s *Simulator) RxPowerAt0dBFS() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, len(s.rxPowerAt0dBFS))
	copy(out, s.rxPowerAt0dBFS)
	return out
}

func (s *Simulator) SetRxPowerAt0dBFS(dBm float32, antIdx int) (float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if antIdx < 0 || antIdx >= len(s.rxPowerAt0dBFS) {
		return 0, fmt.Errorf("hwsim: antenna index %d out of range", antIdx)
	}
	s.rxPowerAt0dBFS[antIdx] = dBm
	return dBm, nil
}

func (s *Simulator) SetRxPowerAt0dBFSUniform(dBm float32) ([]float32, error) {
	s.mu.Lock()
	for i := range s.rxPowerAt0dBFS {
		s.rxPowerAt0dBFS[i] = dBm
	}
	out := make([]float32, len(s.rxPowerAt0dBFS))
	copy(out, s.rxPowerAt0dBFS)
	s.mu.Unlock()
	return out, nil
}

func (s *Simulator) AdjustRxPowerAt0dBFS(adjDB []float32) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rxPowerAt0dBFS {
		if i < len(adjDB) {
			s.rxPowerAt0dBFS[i] += adjDB[i]
		}
	}
	out := make([]float32, len(s.rxPowerAt0dBFS))
	copy(out, s.rxPowerAt0dBFS)
	return out, nil
}

// PPSWaitForNext blocks until the next simulated PPS edge, generated on a
// free-running 1-second wall-clock ticker (never scaled by speedup: PPS is
// a real-time external reference even in simulation).
func (s *Simulator) PPSWaitForNext() {
	<-time.After(time.Until(nextWallClockSecond()))
}

func (s *Simulator) PPSSetFullSecAtNextAndWait(fullSec int64) {
	s.mu.Lock()
	s.fullSecAtNextPPS = fullSec
	s.mu.Unlock()
	s.PPSWaitForNext()
}

// Simulated reports true: ppssync's 1.5s post-rendezvous guard sleep is
// skipped for this Device.
func (s *Simulator) Simulated() bool { return true }

func (s *Simulator) ADCBits() uint32 { return 16 }
func (s *Simulator) DACBits() uint32 { return 16 }

func (s *Simulator) TminSamples(t hw.Tmin) uint32 {
	switch t {
	case hw.TminFreq:
		return s.SampleRate() / 1000
	case hw.TminGain:
		return s.SampleRate() / 2000
	case hw.TminTurnaround:
		return s.SampleRate() / 5000
	default:
		return 0
	}
}

func (s *Simulator) PPM() float32 { return 0 }

func (s *Simulator) PPSToFullSecondMeasuredSamples() int64 {
	return int64(s.SampleRate())
}

func (s *Simulator) TxPool() *txpool.Pool    { return s.txPool }
func (s *Simulator) RxRing() *rxring.Buffer { return s.rxRing }

func (s *Simulator) Stop() { s.keepRunning.Store(false) }

func (s *Simulator) Join(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for s.keepRunning.Load() {
		if time.Now().After(deadline) {
			return fmt.Errorf("hwsim: join timed out")
		}
		watch.Sleep(time.Millisecond)
	}
	return nil
}

// TxTimeAdvanceSamples is always 0: the simulator has no TX pipeline delay
// to compensate for.
func (s *Simulator) TxTimeAdvanceSamples() int64 { return 0 }

// LeadingZeroSamples is always 0: only real hardware needs a settling
// prefix ahead of the first real sample of a burst.
func (s *Simulator) LeadingZeroSamples() uint32 { return 0 }

// Send drains a burst immediately: the simulator has no transport delay, so
// a chunk is considered sent as soon as this call returns.
func (s *Simulator) Send(ant [][]iq.Sample, offset, n uint32, header hw.StreamHeader) error {
	if !s.keepRunning.Load() {
		return fmt.Errorf("hwsim: device stopped")
	}
	return nil
}

// Recv paces sample generation against wall-clock time scaled by
// SampleRateSpeedup, writing zero-valued samples (no RF channel is
// modeled) directly into the RX ring at its current write index.
func (s *Simulator) Recv() (int64, uint32, error) {
	if !s.keepRunning.Load() {
		return s.rxSampleCount, 0, fmt.Errorf("hwsim: device stopped")
	}

	speedup := s.cfg.SampleRateSpeedup
	if speedup <= 0 {
		speedup = 1
	}

	elapsed := time.Since(s.lastRecvAt)
	wantSamples := uint32(elapsed.Seconds() * float64(s.SampleRate()) * speedup)
	if wantSamples == 0 {
		watch.Sleep(100 * time.Microsecond)
		wantSamples = 1
	}
	if wantSamples > s.cfg.NofNewSamplesMax {
		wantSamples = s.cfg.NofNewSamplesMax
	}
	s.lastRecvAt = time.Now()

	idx := s.rxRing.WriteIndex()
	for ant := uint32(0); ant < s.NofAntennas(); ant++ {
		stream := s.rxRing.AntStream(ant)
		for i := uint32(0); i < wantSamples; i++ {
			stream[idx+i] = 0
		}
	}

	firstSampleTime := s.rxSampleCount
	s.rxSampleCount += int64(wantSamples)

	return firstSampleTime, wantSamples, nil
}

func nextWallClockSecond() time.Time {
	now := time.Now()
	return now.Truncate(time.Second).Add(time.Second)
}
