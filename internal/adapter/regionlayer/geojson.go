package regionlayer

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/ctessum/geom"

	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
)

// GeoJSON feature collection, narrowed to what a grid layer carries.
// Coordinates are WGS84 lon/lat per RFC 7946 §4.
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Properties map[string]any  `json:"properties"`
	Geometry   featureGeometry `json:"geometry"`
}

type featureGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func (l *Loader) loadGeoJSON() ([]domain.RegionPolygon, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("open region layer %s: %w", l.path, err)
	}

	var fc featureCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("region layer %s: %w", l.path, err)
	}
	if fc.Type != "FeatureCollection" {
		return nil, fmt.Errorf("region layer %s: type %q, want FeatureCollection", l.path, fc.Type)
	}

	regions := make([]domain.RegionPolygon, 0, len(fc.Features))
	for i, f := range fc.Features {
		id, err := featureID(f.Properties, l.idField)
		if err != nil {
			return nil, fmt.Errorf("region layer %s: feature %d: %w", l.path, i, err)
		}
		poly, err := decodeGeometry(f.Geometry)
		if err != nil {
			return nil, fmt.Errorf("region layer %s: region %s: %w", l.path, id, err)
		}
		regions = append(regions, domain.RegionPolygon{ID: id, Geom: poly})
	}

	l.logger.Info("region layer loaded", "path", l.path, "regions", len(regions), "format", "geojson")
	return regions, nil
}

func featureID(properties map[string]any, field string) (string, error) {
	v, ok := properties[field]
	if !ok {
		return "", fmt.Errorf("missing %s property", field)
	}
	switch id := v.(type) {
	case string:
		return id, nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%s property is %T, want string or number", field, v)
	}
}

func decodeGeometry(g featureGeometry) (geom.Polygonal, error) {
	switch g.Type {
	case "Polygon":
		var coords [][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("decode polygon: %w", err)
		}
		return polygonFromCoords(coords)
	case "MultiPolygon":
		var coords [][][][]float64
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("decode multipolygon: %w", err)
		}
		mp := make(geom.MultiPolygon, 0, len(coords))
		for _, pc := range coords {
			p, err := polygonFromCoords(pc)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("geometry is %s, want Polygon or MultiPolygon", g.Type)
	}
}

func polygonFromCoords(coords [][][]float64) (geom.Polygon, error) {
	poly := make(geom.Polygon, 0, len(coords))
	for _, ring := range coords {
		r := make([]geom.Point, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				return nil, fmt.Errorf("position with %d coordinates", len(pos))
			}
			r = append(r, geom.Point{X: pos[0], Y: pos[1]})
		}
		poly = append(poly, r)
	}
	return poly, nil
}
