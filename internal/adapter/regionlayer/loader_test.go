package regionlayer

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gridGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {"id": "cell-1", "area_km2": 100},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0,0],[1,0],[1,1],[0,1],[0,0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"id": 42},
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [
          [[[2,0],[3,0],[3,1],[2,1],[2,0]]],
          [[[4,0],[5,0],[5,1],[4,1],[4,0]]]
        ]
      }
    }
  ]
}`

func writeLayer(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRegions_GeoJSON(t *testing.T) {
	path := writeLayer(t, "grid.geojson", gridGeoJSON)
	loader := NewLoader(path, "id", slog.Default())

	regions, err := loader.LoadRegions(context.Background())
	require.NoError(t, err)

	require.Len(t, regions, 2)
	assert.Equal(t, "cell-1", regions[0].ID)
	assert.Equal(t, "42", regions[1].ID) // numeric id formatted as string

	// cell-1 decodes to a polygon containing (0.5, 0.5).
	p := geom.Point{X: 0.5, Y: 0.5}
	assert.NotEqual(t, geom.Outside, p.Within(regions[0].Geom))

	// The multipolygon covers both of its parts.
	assert.NotEqual(t, geom.Outside, geom.Point{X: 2.5, Y: 0.5}.Within(regions[1].Geom))
	assert.NotEqual(t, geom.Outside, geom.Point{X: 4.5, Y: 0.5}.Within(regions[1].Geom))
	assert.Equal(t, geom.Outside, geom.Point{X: 3.5, Y: 0.5}.Within(regions[1].Geom))
}

func TestLoadRegions_MissingIDProperty(t *testing.T) {
	path := writeLayer(t, "grid.geojson", `{
	  "type": "FeatureCollection",
	  "features": [{
	    "type": "Feature",
	    "properties": {"name": "unnamed"},
	    "geometry": {"type": "Polygon", "coordinates": [[[0,0],[1,0],[1,1],[0,0]]]}
	  }]
	}`)
	loader := NewLoader(path, "id", slog.Default())

	_, err := loader.LoadRegions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id property")
}

func TestLoadRegions_NonPolygonGeometry(t *testing.T) {
	path := writeLayer(t, "grid.geojson", `{
	  "type": "FeatureCollection",
	  "features": [{
	    "type": "Feature",
	    "properties": {"id": "pt-1"},
	    "geometry": {"type": "Point", "coordinates": [0, 0]}
	  }]
	}`)
	loader := NewLoader(path, "id", slog.Default())

	_, err := loader.LoadRegions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want Polygon or MultiPolygon")
}

func TestLoadRegions_NotAFeatureCollection(t *testing.T) {
	path := writeLayer(t, "grid.json", `{"type": "Feature"}`)
	loader := NewLoader(path, "id", slog.Default())

	_, err := loader.LoadRegions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FeatureCollection")
}

func TestLoadRegions_UnsupportedFormat(t *testing.T) {
	path := writeLayer(t, "grid.gpkg", "not a real geopackage")
	loader := NewLoader(path, "id", slog.Default())

	_, err := loader.LoadRegions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestLoadRegions_MissingShapefile(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope.shp"), "id", slog.Default())

	_, err := loader.LoadRegions(context.Background())
	require.Error(t, err)
}

// shpRow is the record archetype for shapefile fixtures: one polygon plus
// the id attribute the loader reads.
type shpRow struct {
	geom.Polygon
	ID string `shp:"id"`
}

// utm14 is WGS84 / UTM zone 14N. Its central meridian is 99°W, so the
// projected point (500000, 0) maps back to exactly lon -99, lat 0.
const utm14 = "+proj=utm +zone=14 +datum=WGS84 +units=m +no_defs"

// writeShapefile encodes rows into a .shp/.shx/.dbf triple and, when prj is
// non-empty, writes the sidecar .prj declaring the layer CRS.
func writeShapefile(t *testing.T, rows []shpRow, prj string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "grid.shp")

	enc, err := shp.NewEncoder(path, shpRow{})
	require.NoError(t, err)
	for _, row := range rows {
		require.NoError(t, enc.Encode(row))
	}
	enc.Close()

	if prj != "" {
		prjPath := strings.TrimSuffix(path, ".shp") + ".prj"
		require.NoError(t, os.WriteFile(prjPath, []byte(prj), 0o644))
	}
	return path
}

func TestLoadRegions_ShapefileReprojectsToWGS84(t *testing.T) {
	// A 20km square centered on the UTM zone 14 anchor (500000, 0).
	cell := shpRow{
		ID: "utm-cell",
		Polygon: geom.Polygon{{
			{X: 490000, Y: -10000},
			{X: 510000, Y: -10000},
			{X: 510000, Y: 10000},
			{X: 490000, Y: 10000},
		}},
	}
	path := writeShapefile(t, []shpRow{cell}, utm14)
	loader := NewLoader(path, "id", slog.Default())

	regions, err := loader.LoadRegions(context.Background())
	require.NoError(t, err)

	require.Len(t, regions, 1)
	assert.Equal(t, "utm-cell", regions[0].ID)

	// The reprojected polygon lives in degrees, centered on the zone's
	// central meridian at the equator.
	centroid := regions[0].Geom.Centroid()
	assert.InDelta(t, -99.0, centroid.X, 1e-3)
	assert.InDelta(t, 0.0, centroid.Y, 1e-3)
	assert.NotEqual(t, geom.Outside, geom.Point{X: -99, Y: 0}.Within(regions[0].Geom))
	assert.Equal(t, geom.Outside, geom.Point{X: -98, Y: 0}.Within(regions[0].Geom))
}

func TestLoadRegions_ShapefileWithoutCRSIsFatal(t *testing.T) {
	cell := shpRow{
		ID:      "no-crs",
		Polygon: geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}},
	}
	path := writeShapefile(t, []shpRow{cell}, "")
	loader := NewLoader(path, "id", slog.Default())

	_, err := loader.LoadRegions(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoCRS)
}

func TestLoadRegions_ShapefileMissingID(t *testing.T) {
	cell := shpRow{
		Polygon: geom.Polygon{{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}},
	}
	path := writeShapefile(t, []shpRow{cell}, utm14)
	loader := NewLoader(path, "id", slog.Default())

	_, err := loader.LoadRegions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing id attribute")
}
