package rttwire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildResponseThenParseResponseRoundTrips(t *testing.T) {
	req := []byte("dectrt-probe-payload")

	resp, err := BuildResponse(req, 1234567)
	require.NoError(t, err)

	verification, trailer, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, req[:VerificationLen], verification)
	assert.Equal(t, int64(1234567), trailer.ElapsedNanos)
}

func TestBuildResponseRejectsShortRequest(t *testing.T) {
	_, err := BuildResponse([]byte("short"), 1)
	assert.Error(t, err)
}

func TestParseResponseRejectsShortResponse(t *testing.T) {
	_, _, err := ParseResponse(make([]byte, VerificationLen))
	assert.Error(t, err)
}

func TestDecodeRTTTrailerAsGopacketLayer(t *testing.T) {
	resp, err := BuildResponse(make([]byte, VerificationLen), 42)
	require.NoError(t, err)

	var trailer Trailer
	require.NoError(t, trailer.DecodeFromBytes(resp[VerificationLen:], nil))
	assert.Equal(t, int64(42), trailer.ElapsedNanos)
	assert.Equal(t, LayerTypeRTTTrailer, trailer.LayerType())
}
