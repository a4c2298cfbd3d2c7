// Package regionlayer loads the reference polygon grid and hands it to the
// pipeline in the event CRS.
//
// Two formats are supported: ESRI shapefiles, whose `.prj` declares the
// layer CRS and drives an explicit reprojection to WGS84, and GeoJSON,
// which RFC 7946 fixes to WGS84 so no transform applies. A shapefile
// without a declared CRS is refused rather than guessed.
package regionlayer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/ctessum/geom"
	"github.com/ctessum/geom/encoding/shp"
	"github.com/ctessum/geom/proj"

	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
)

// wgs84 is the event CRS; the grid is reprojected into it before indexing.
const wgs84 = "+proj=longlat +datum=WGS84 +no_defs"

// ErrNoCRS reports a layer without a declared coordinate reference system.
// Fatal: containment tests against an unknown CRS would be silently wrong.
var ErrNoCRS = errors.New("region layer has no declared CRS")

// Loader reads the grid from a shapefile or GeoJSON file.
// It implements pipeline.RegionLoader.
type Loader struct {
	path    string
	idField string
	logger  *slog.Logger
}

// NewLoader creates a region layer loader. idField names the attribute (or
// GeoJSON property) holding the region identifier.
func NewLoader(path, idField string, logger *slog.Logger) *Loader {
	return &Loader{path: path, idField: idField, logger: logger}
}

// LoadRegions loads every grid cell, reprojected to WGS84.
func (l *Loader) LoadRegions(_ context.Context) ([]domain.RegionPolygon, error) {
	switch strings.ToLower(filepath.Ext(l.path)) {
	case ".shp":
		return l.loadShapefile()
	case ".geojson", ".json":
		return l.loadGeoJSON()
	default:
		return nil, fmt.Errorf("region layer %s: unsupported format", l.path)
	}
}

func (l *Loader) loadShapefile() ([]domain.RegionPolygon, error) {
	dec, err := shp.NewDecoder(l.path)
	if err != nil {
		return nil, fmt.Errorf("open region layer %s: %w", l.path, err)
	}
	defer dec.Close()

	layerSR, err := dec.SR()
	if err != nil {
		return nil, fmt.Errorf("region layer %s: %w: %w", l.path, ErrNoCRS, err)
	}
	targetSR, err := proj.Parse(wgs84)
	if err != nil {
		return nil, fmt.Errorf("parse WGS84 definition: %w", err)
	}
	trans, err := layerSR.NewTransform(targetSR)
	if err != nil {
		return nil, fmt.Errorf("region layer %s: build reprojection: %w", l.path, err)
	}

	var regions []domain.RegionPolygon
	for {
		g, fields, more := dec.DecodeRowFields(l.idField)
		if !more {
			break
		}
		id, ok := fields[l.idField]
		if !ok || strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("region layer %s: row %d: missing %s attribute", l.path, len(regions), l.idField)
		}

		gg, err := g.Transform(trans)
		if err != nil {
			return nil, fmt.Errorf("region layer %s: reproject region %s: %w", l.path, id, err)
		}
		poly, ok := gg.(geom.Polygonal)
		if !ok {
			return nil, fmt.Errorf("region layer %s: region %s: geometry is %T, want polygon", l.path, id, gg)
		}
		regions = append(regions, domain.RegionPolygon{ID: strings.TrimSpace(id), Geom: poly})
	}
	if err := dec.Error(); err != nil {
		return nil, fmt.Errorf("region layer %s: %w", l.path, err)
	}

	l.logger.Info("region layer loaded", "path", l.path, "regions", len(regions), "format", "shapefile")
	return regions, nil
}
