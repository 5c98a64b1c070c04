package http

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/federalrisk/county-risk-etl/internal/adapter/csvfile"
	"github.com/federalrisk/county-risk-etl/internal/domain"
)

// FileSource serves risk records from the processed CSV, re-reading it only
// when the file's mtime changes. It implements RiskSource and
// ReadinessChecker.
type FileSource struct {
	path string

	mu      sync.Mutex
	loaded  time.Time
	records []domain.RiskRecord
}

// NewFileSource creates a source over the processed file path. The file does
// not need to exist yet; readiness stays negative until the first successful
// pipeline run produces it.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Records returns the current export, refreshed from disk if the file has
// been replaced since the last read. Returned slices are copies; callers may
// reorder them freely.
func (f *FileSource) Records(_ context.Context) ([]domain.RiskRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	info, err := os.Stat(f.path)
	if err != nil {
		return nil, fmt.Errorf("processed file unavailable: %w", err)
	}

	if f.records == nil || info.ModTime().After(f.loaded) {
		records, err := csvfile.ReadRiskRecords(f.path)
		if err != nil {
			return nil, err
		}
		f.records = records
		f.loaded = info.ModTime()
	}

	out := make([]domain.RiskRecord, len(f.records))
	copy(out, f.records)
	return out, nil
}

// CheckReadiness verifies the processed file exists and parses.
func (f *FileSource) CheckReadiness(ctx context.Context) error {
	_, err := f.Records(ctx)
	return err
}

var (
	_ RiskSource       = (*FileSource)(nil)
	_ ReadinessChecker = (*FileSource)(nil)
)
