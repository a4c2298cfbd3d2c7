package domain

import (
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/proj"
)

// EventLocation is one row of the locations feed: a point coordinate keyed
// by event id. Coordinates are WGS84 decimal degrees.
type EventLocation struct {
	EventID string
	Lat     float64
	Lon     float64
}

// EventDetail is one row of the details feed: the event category and the
// raw encoded property-damage figure.
type EventDetail struct {
	EventID        string
	EventType      string
	DamageProperty string // encoded, e.g. "2.5K"; see package doc
}

// JoinedEvent pairs a location row with a detail row sharing an event id.
// Location-side and detail-side fields keep their own struct fields, so a
// column appearing in both feeds can never overwrite the other side.
type JoinedEvent struct {
	EventID   string
	Lat       float64
	Lon       float64
	EventType string
	DamageRaw string
}

// NormalizedEvent is a JoinedEvent whose damage figure has been expanded to
// a plain non-negative dollar amount.
type NormalizedEvent struct {
	EventID   string
	Lat       float64
	Lon       float64
	EventType string
	Damage    float64
}

// RegionPolygon is one cell of the reference grid, already reprojected into
// the event CRS (WGS84). Read-only once loaded.
type RegionPolygon struct {
	ID   string
	Geom geom.Polygonal
}

// Bounds implements rtree.Spatial so polygons can be indexed directly.
func (r *RegionPolygon) Bounds() *geom.Bounds {
	return r.Geom.Bounds()
}

// The remaining geom.Geom methods delegate to the wrapped polygon so the
// r-tree can index RegionPolygon values directly.

func (r *RegionPolygon) Similar(g geom.Geom, tolerance float64) bool {
	return r.Geom.Similar(g, tolerance)
}

func (r *RegionPolygon) Transform(t proj.Transformer) (geom.Geom, error) {
	return r.Geom.Transform(t)
}

func (r *RegionPolygon) Len() int { return r.Geom.Len() }

func (r *RegionPolygon) Points() func() geom.Point { return r.Geom.Points() }

// LocatedEvent is a NormalizedEvent assigned to one containing region. An
// event intersecting several overlapping cells appears once per cell.
type LocatedEvent struct {
	NormalizedEvent
	RegionID string
}

// RegionCategoryTotal is the summed damage for one (region, event type)
// group. Groups with no events are never materialized.
type RegionCategoryTotal struct {
	RegionID  string  `json:"id"`
	EventType string  `json:"event_type"`
	Mag       float64 `json:"mag"`
}

// DominantCategory is the final output row: the event type with the largest
// aggregated damage in a region. At most one per region.
type DominantCategory struct {
	RegionID  string  `json:"id"`
	EventType string  `json:"event_type"`
	Mag       float64 `json:"mag"`
}
