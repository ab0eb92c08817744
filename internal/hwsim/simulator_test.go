package hwsim_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxpenner/dectrt/internal/hw"
	"github.com/maxpenner/dectrt/internal/hwsim"
)

func newSim(t *testing.T) *hwsim.Simulator {
	t.Helper()
	s := hwsim.New(hwsim.Config{NofAntennasMax: 4, SampleRateSpeedup: 1000, NofNewSamplesMax: 512})
	require.NoError(t, s.SetAntennaCount(2))
	_, err := s.SetSampleRate(1_000_000)
	require.NoError(t, err)
	require.NoError(t, s.InitializeTxPool(4, 4096))
	require.NoError(t, s.InitializeRxRing(8192))
	require.NoError(t, s.InitializeDevice())
	return s
}

func TestSimulatorSatisfiesDeviceInterface(t *testing.T) {
	var _ hw.Device = (*hwsim.Simulator)(nil)
}

func TestSetAntennaCountRejectsNonPowerOfTwo(t *testing.T) {
	s := hwsim.New(hwsim.Config{NofAntennasMax: 8})
	assert.Error(t, s.SetAntennaCount(3))
	assert.Error(t, s.SetAntennaCount(0))
	assert.Error(t, s.SetAntennaCount(16))
	assert.NoError(t, s.SetAntennaCount(4))
}

func TestSetSampleRateRoundsUp(t *testing.T) {
	s := hwsim.New(hwsim.Config{NofAntennasMax: 2})
	actual, err := s.SetSampleRate(1_234_567)
	require.NoError(t, err)
	assert.Equal(t, uint32(1_235_000), actual)
	assert.Equal(t, actual, s.SampleRate())
}

func TestSimulatedReportsTrue(t *testing.T) {
	s := newSim(t)
	assert.True(t, s.Simulated())
	assert.Zero(t, s.TxTimeAdvanceSamples())
	assert.Zero(t, s.LeadingZeroSamples())
}

func TestRecvAdvancesRxTimePassed(t *testing.T) {
	s := newSim(t)

	for i := 0; i < 5; i++ {
		firstSampleTime, n, err := s.Recv()
		require.NoError(t, err)
		if n > 0 {
			s.RxRing().Advance(firstSampleTime, n)
		}
	}

	assert.Greater(t, s.RxRing().RxTimePassed(), int64(0))
}

func TestStopCausesRecvAndSendToFail(t *testing.T) {
	s := newSim(t)
	s.Stop()

	_, _, err := s.Recv()
	assert.Error(t, err)

	err = s.Send(nil, 0, 0, hw.StreamHeader{})
	assert.Error(t, err)
}

func TestJoinTimesOutWhileRunning(t *testing.T) {
	s := newSim(t)
	err := s.Join(20 * time.Millisecond)
	assert.Error(t, err)

	s.Stop()
	err = s.Join(time.Second)
	assert.NoError(t, err)
}

func TestPPSWaitForNextReturnsWithinASecond(t *testing.T) {
	s := newSim(t)
	start := time.Now()
	s.PPSWaitForNext()
	assert.Less(t, time.Since(start), 2*time.Second)
}
