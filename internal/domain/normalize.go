package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ScaleTable maps a damage suffix letter to its multiplier.
type ScaleTable map[string]float64

// DefaultScales holds the suffixes NOAA uses in DAMAGE_PROPERTY.
var DefaultScales = ScaleTable{
	"K": 1e3,
	"M": 1e6,
	"B": 1e9,
}

// MalformedMagnitudeError reports a damage value that is neither a zero
// sentinel nor a recognized suffixed numeral. It is fatal: the run halts
// rather than letting an unscaled figure leak into the totals.
type MalformedMagnitudeError struct {
	EventID string
	Value   string
}

func (e *MalformedMagnitudeError) Error() string {
	return fmt.Sprintf("event %s: malformed damage value %q: no recognized scale suffix", e.EventID, e.Value)
}

// Normalizer expands encoded damage strings using an explicit scale table.
type Normalizer struct {
	scales ScaleTable
}

// NewNormalizer creates a Normalizer. A nil table falls back to DefaultScales.
func NewNormalizer(scales ScaleTable) *Normalizer {
	if scales == nil {
		scales = DefaultScales
	}
	return &Normalizer{scales: scales}
}

// Normalize expands one encoded value to a dollar amount.
//
// The empty string, "0", "0.00", and any other single-character value are
// zero sentinels (see the package doc for why single characters qualify).
// Everything else must be a numeral followed by a suffix from the scale
// table; a value that is neither is a MalformedMagnitudeError.
func (n *Normalizer) Normalize(raw string) (float64, error) {
	value := strings.TrimSpace(raw)
	if value == "" || value == "0" || value == "0.00" || len(value) == 1 {
		return 0, nil
	}

	suffix := strings.ToUpper(value[len(value)-1:])
	scale, ok := n.scales[suffix]
	if !ok {
		return 0, &MalformedMagnitudeError{Value: raw}
	}

	numeral, err := strconv.ParseFloat(value[:len(value)-1], 64)
	if err != nil {
		return 0, &MalformedMagnitudeError{Value: raw}
	}
	return numeral * scale, nil
}

// NormalizeEvents expands the damage field of every joined event. The first
// malformed value aborts with its event id attached; there is no partial
// result.
func (n *Normalizer) NormalizeEvents(events []JoinedEvent) ([]NormalizedEvent, error) {
	out := make([]NormalizedEvent, 0, len(events))
	for _, e := range events {
		damage, err := n.Normalize(e.DamageRaw)
		if err != nil {
			var malformed *MalformedMagnitudeError
			if errors.As(err, &malformed) {
				malformed.EventID = e.EventID
			}
			return nil, err
		}
		out = append(out, NormalizedEvent{
			EventID:   e.EventID,
			Lat:       e.Lat,
			Lon:       e.Lon,
			EventType: e.EventType,
			Damage:    damage,
		})
	}
	return out, nil
}
