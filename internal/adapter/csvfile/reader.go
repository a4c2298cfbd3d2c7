// Package csvfile decodes the NOAA Storm Events CSV feeds and writes the
// aggregated output artifact. The feeds carry ~50 columns; only the ones the
// pipeline consumes are extracted, addressed by header name so column order
// and extra columns never matter.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
)

const (
	colEventID   = "EVENT_ID"
	colLatitude  = "LATITUDE"
	colLongitude = "LONGITUDE"
	colEventType = "EVENT_TYPE"
	colDamage    = "DAMAGE_PROPERTY"
)

// DecodeLocations parses a locations feed into event points.
func DecodeLocations(r io.Reader) ([]domain.EventLocation, error) {
	rows, idx, err := readAll(r, colEventID, colLatitude, colLongitude)
	if err != nil {
		return nil, err
	}

	out := make([]domain.EventLocation, 0, len(rows))
	for i, row := range rows {
		lat, err := strconv.ParseFloat(row[idx[colLatitude]], 64)
		if err != nil {
			return nil, fmt.Errorf("locations row %d: bad %s %q", i+2, colLatitude, row[idx[colLatitude]])
		}
		lon, err := strconv.ParseFloat(row[idx[colLongitude]], 64)
		if err != nil {
			return nil, fmt.Errorf("locations row %d: bad %s %q", i+2, colLongitude, row[idx[colLongitude]])
		}
		out = append(out, domain.EventLocation{
			EventID: row[idx[colEventID]],
			Lat:     lat,
			Lon:     lon,
		})
	}
	return out, nil
}

// DecodeDetails parses a details feed into event attributes. The damage
// column stays encoded; normalization happens in the pipeline so a malformed
// value can halt the run with full context.
func DecodeDetails(r io.Reader) ([]domain.EventDetail, error) {
	rows, idx, err := readAll(r, colEventID, colEventType, colDamage)
	if err != nil {
		return nil, err
	}

	out := make([]domain.EventDetail, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.EventDetail{
			EventID:        row[idx[colEventID]],
			EventType:      row[idx[colEventType]],
			DamageProperty: row[idx[colDamage]],
		})
	}
	return out, nil
}

// readAll reads header plus data rows and resolves the required columns.
func readAll(r io.Reader, required ...string) ([][]string, map[string]int, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, nil, fmt.Errorf("read csv: empty input, expected a header row")
	}

	idx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		idx[name] = i
	}
	for _, name := range required {
		if _, ok := idx[name]; !ok {
			return nil, nil, fmt.Errorf("read csv: missing required column %s", name)
		}
	}
	return records[1:], idx, nil
}
