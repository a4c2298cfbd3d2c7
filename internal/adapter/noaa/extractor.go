package noaa

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/storm-damage-aggregator/internal/adapter/csvfile"
	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
)

// Extractor implements pipeline.FeedExtractor over the live NCEI archive.
// The directory listing is fetched once per run and shared by both feeds.
type Extractor struct {
	client *Client
	logger *slog.Logger

	listOnce sync.Once
	files    []FeedFile
	listErr  error
}

// NewExtractor creates a live feed extractor on top of the archive client.
func NewExtractor(client *Client, logger *slog.Logger) *Extractor {
	return &Extractor{client: client, logger: logger}
}

func (e *Extractor) ExtractLocations(ctx context.Context) ([]domain.EventLocation, error) {
	var out []domain.EventLocation
	err := e.eachFile(ctx, FeedLocations, func(name string, data []byte) error {
		rows, err := csvfile.DecodeLocations(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, rows...)
		return nil
	})
	return out, err
}

func (e *Extractor) ExtractDetails(ctx context.Context) ([]domain.EventDetail, error) {
	var out []domain.EventDetail
	err := e.eachFile(ctx, FeedDetails, func(name string, data []byte) error {
		rows, err := csvfile.DecodeDetails(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		out = append(out, rows...)
		return nil
	})
	return out, err
}

// eachFile downloads every archive of the wanted type and hands the CSV
// bytes to fn. Fatalities files and anything unclassified are skipped.
func (e *Extractor) eachFile(ctx context.Context, want FeedType, fn func(name string, data []byte) error) error {
	files, err := e.listing(ctx)
	if err != nil {
		return err
	}

	matched := 0
	for _, f := range files {
		if f.Type != want {
			continue
		}
		matched++
		data, err := e.client.Fetch(ctx, f.Name)
		if err != nil {
			return err
		}
		if err := fn(f.Name, data); err != nil {
			return err
		}
		e.logger.Debug("feed file decoded", "file", f.Name, "feed", want)
	}
	if matched == 0 {
		return fmt.Errorf("listing advertises no %s files", want)
	}
	return nil
}

func (e *Extractor) listing(ctx context.Context) ([]FeedFile, error) {
	e.listOnce.Do(func() {
		e.files, e.listErr = e.client.ListFiles(ctx)
	})
	return e.files, e.listErr
}
