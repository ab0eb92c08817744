package rttwire

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBatchSumsElapsedTotal(t *testing.T) {
	b := NewBatch("mac2mac", 0, []int64{1234567, 1234567, 1234567})
	assert.Equal(t, int64(3*1234567), b.ElapsedTotalNs)
}

func TestBatchFileNameMatchesZeroPaddedCounter(t *testing.T) {
	b := NewBatch("mac2mac", 0, nil)
	assert.Equal(t, "rtt_external_mac2mac_0000000000.json", b.FileName())
}

func TestBatchExportWritesExpectedJSON(t *testing.T) {
	dir := t.TempDir()
	b := NewBatch("mac2mac", 0, []int64{1234567, 1234567, 1234567})
	require.NoError(t, b.Export(dir))

	data, err := os.ReadFile(filepath.Join(dir, "rtt_external_mac2mac_0000000000.json"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(3*1234567), decoded["elapsed_total_ns"])
}
