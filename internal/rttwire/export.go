package rttwire

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Batch is one RTT measurement batch, ready for JSON export.
type Batch struct {
	Tag            string  `json:"-"`
	Counter        int     `json:"-"`
	ElapsedNs      []int64 `json:"elapsed_ns"`
	ElapsedTotalNs int64   `json:"elapsed_total_ns"`
}

// NewBatch builds a Batch from the per-sample round-trip nanosecond values.
func NewBatch(tag string, counter int, elapsedNs []int64) Batch {
	var total int64
	for _, e := range elapsedNs {
		total += e
	}
	return Batch{
		Tag:            tag,
		Counter:        counter,
		ElapsedNs:      elapsedNs,
		ElapsedTotalNs: total,
	}
}

// FileName returns the export file name for b, e.g.
// "rtt_external_mac2mac_0000000000.json".
func (b Batch) FileName() string {
	return fmt.Sprintf("rtt_external_%s_%010d.json", b.Tag, b.Counter)
}

// Export writes b as JSON to FileName() inside dir.
func (b Batch) Export(dir string) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("rttwire: marshal batch: %w", err)
	}

	path := filepath.Join(dir, b.FileName())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("rttwire: write %s: %w", path, err)
	}
	return nil
}
