package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/harrison/benchrun/internal/filelock"
)

// Outcome bucket names in the order they are persisted.
const (
	BucketSuccess = "success"
	BucketTimeout = "timeout"
	BucketFailed  = "failed"
	BucketSkipped = "skipped"
)

// RunStats groups case identities by outcome. It is persisted as
// run_stats.json in the project root after every non-dry pass and read back
// on the next run to support skipping already-successful cases.
type RunStats struct {
	Success []CaseRef `json:"success"`
	Timeout []CaseRef `json:"timeout"`
	Failed  []CaseRef `json:"failed"`
	Skipped []CaseRef `json:"skipped"`
}

// NewRunStats returns stats with empty, non-nil buckets so the persisted
// document always carries all four keys.
func NewRunStats() *RunStats {
	return &RunStats{
		Success: []CaseRef{},
		Timeout: []CaseRef{},
		Failed:  []CaseRef{},
		Skipped: []CaseRef{},
	}
}

// Add appends a ref to the named bucket. Unknown bucket names are rejected.
func (s *RunStats) Add(bucket string, ref CaseRef) error {
	switch bucket {
	case BucketSuccess:
		s.Success = append(s.Success, ref)
	case BucketTimeout:
		s.Timeout = append(s.Timeout, ref)
	case BucketFailed:
		s.Failed = append(s.Failed, ref)
	case BucketSkipped:
		s.Skipped = append(s.Skipped, ref)
	default:
		return fmt.Errorf("unknown outcome bucket %q", bucket)
	}
	return nil
}

// InSuccess reports whether ref appears in the success bucket.
func (s *RunStats) InSuccess(ref CaseRef) bool {
	for _, r := range s.Success {
		if r.Equal(ref) {
			return true
		}
	}
	return false
}

// BucketCount pairs a bucket name with its size, for summary output.
type BucketCount struct {
	Bucket string
	Count  int
}

// Counts returns bucket sizes in persisted order.
func (s *RunStats) Counts() []BucketCount {
	return []BucketCount{
		{BucketSuccess, len(s.Success)},
		{BucketTimeout, len(s.Timeout)},
		{BucketFailed, len(s.Failed)},
		{BucketSkipped, len(s.Skipped)},
	}
}

// LoadStats reads a persisted run_stats.json.
func LoadStats(path string) (*RunStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read run stats %s: %w", path, err)
	}
	stats := NewRunStats()
	if err := json.Unmarshal(data, stats); err != nil {
		return nil, fmt.Errorf("parse run stats %s: %w", path, err)
	}
	return stats, nil
}

// SaveStats writes stats to run_stats.json in root atomically.
func SaveStats(root string, stats *RunStats) error {
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run stats: %w", err)
	}
	path := filepath.Join(root, StatsName)
	if err := filelock.AtomicWrite(path, data); err != nil {
		return fmt.Errorf("persist run stats: %w", err)
	}
	return nil
}
