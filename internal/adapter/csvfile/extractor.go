package csvfile

import (
	"context"
	"fmt"
	"os"

	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
)

// Extractor reads both feeds from local CSV files. Used for offline runs
// against previously downloaded data; the NOAA adapter covers live fetches.
type Extractor struct {
	locationsPath string
	detailsPath   string
}

// NewExtractor creates a file-backed feed extractor.
func NewExtractor(locationsPath, detailsPath string) *Extractor {
	return &Extractor{locationsPath: locationsPath, detailsPath: detailsPath}
}

func (e *Extractor) ExtractLocations(_ context.Context) ([]domain.EventLocation, error) {
	f, err := os.Open(e.locationsPath)
	if err != nil {
		return nil, fmt.Errorf("open locations feed: %w", err)
	}
	defer f.Close()
	return DecodeLocations(f)
}

func (e *Extractor) ExtractDetails(_ context.Context) ([]domain.EventDetail, error) {
	f, err := os.Open(e.detailsPath)
	if err != nil {
		return nil, fmt.Errorf("open details feed: %w", err)
	}
	defer f.Close()
	return DecodeDetails(f)
}
