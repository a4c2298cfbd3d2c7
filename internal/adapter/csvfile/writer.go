package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
)

// Sink writes dominant-category rows to the output CSV artifact.
// It implements pipeline.ResultLoader.
type Sink struct {
	path string
}

// NewSink creates a CSV result sink writing to path.
func NewSink(path string) *Sink {
	return &Sink{path: path}
}

func (s *Sink) Name() string { return "csv" }

// LoadResults writes the artifact in one pass: header `id,EVENT_TYPE,mag`,
// one row per region. The file is replaced wholesale; runs are recomputed
// from scratch, never appended.
func (s *Sink) LoadResults(_ context.Context, results []domain.DominantCategory) error {
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"id", "EVENT_TYPE", "mag"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range results {
		row := []string{
			r.RegionID,
			r.EventType,
			strconv.FormatFloat(r.Mag, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row for region %s: %w", r.RegionID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return f.Close()
}
