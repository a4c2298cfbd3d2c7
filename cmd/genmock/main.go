// Command genmock generates a synthetic Storm Events fixture set: a
// locations CSV, a details CSV, a GeoJSON region grid, and the aggregated
// artifact the pipeline should produce for them. It runs the actual domain
// stages so the expected output matches real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock -out-dir data/mock -events 400 -grid 8 -seed 42
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/ctessum/geom"

	"github.com/couchcryptid/storm-damage-aggregator/internal/adapter/csvfile"
	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
)

// Grid origin and cell size, in WGS84 degrees. Roughly the southern plains,
// where the real feeds are densest.
const (
	originLon = -103.0
	originLat = 30.0
	cellSize  = 1.0
)

var eventTypes = []string{
	"Hail",
	"Thunderstorm Wind",
	"Tornado",
	"Flash Flood",
	"High Wind",
	"Lightning",
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	outDir := flag.String("out-dir", "", "output directory for fixture files")
	events := flag.Int("events", 400, "number of storm events to generate")
	grid := flag.Int("grid", 8, "region grid size (cells per side)")
	seed := flag.Int64("seed", 42, "random seed")
	flag.Parse()

	if *outDir == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out-dir")
	}
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))

	regions := buildGrid(*grid)
	locations, details := buildFeeds(rng, *events, *grid)

	if err := writeGeoJSON(filepath.Join(*outDir, "grid.geojson"), regions); err != nil {
		return fmt.Errorf("writing region grid: %w", err)
	}
	if err := writeLocations(filepath.Join(*outDir, "locations.csv"), locations); err != nil {
		return fmt.Errorf("writing locations feed: %w", err)
	}
	if err := writeDetails(filepath.Join(*outDir, "details.csv"), details); err != nil {
		return fmt.Errorf("writing details feed: %w", err)
	}

	// Run the actual pipeline stages to produce the expected artifact.
	joined := domain.Join(locations, details)
	normalized, err := domain.NewNormalizer(nil).NormalizeEvents(joined)
	if err != nil {
		return fmt.Errorf("normalizing generated events: %w", err)
	}
	located := domain.Locate(normalized, domain.NewRegionIndex(regions, 0))
	totals := domain.Aggregate(located)
	dominant := domain.SelectDominant(totals)

	sink := csvfile.NewSink(filepath.Join(*outDir, "expected_dominant.csv"))
	if err := sink.LoadResults(context.Background(), dominant); err != nil {
		return fmt.Errorf("writing expected artifact: %w", err)
	}

	log.Printf("wrote fixtures to %s", *outDir)
	printStats(locations, details, joined, located, totals, dominant)
	return nil
}

// buildGrid lays out size x size unit cells from the origin.
func buildGrid(size int) []domain.RegionPolygon {
	regions := make([]domain.RegionPolygon, 0, size*size)
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			x0 := originLon + float64(col)*cellSize
			y0 := originLat + float64(row)*cellSize
			x1 := x0 + cellSize
			y1 := y0 + cellSize
			regions = append(regions, domain.RegionPolygon{
				ID: fmt.Sprintf("cell-%d-%d", row, col),
				Geom: geom.Polygon{{
					{X: x0, Y: y0}, {X: x1, Y: y0}, {X: x1, Y: y1}, {X: x0, Y: y1}, {X: x0, Y: y0},
				}},
			})
		}
	}
	return regions
}

// buildFeeds generates paired feed rows. A slice of events falls outside the
// grid to exercise the soft off-grid drop, and each feed carries a few rows
// with no partner to exercise the inner join.
func buildFeeds(rng *rand.Rand, n, gridSize int) ([]domain.EventLocation, []domain.EventDetail) {
	span := float64(gridSize) * cellSize

	var locations []domain.EventLocation
	var details []domain.EventDetail

	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%d", 5600000+i)

		// ~10% of points land in a margin outside the grid.
		margin := 0.0
		if rng.Float64() < 0.10 {
			margin = 2 * cellSize
		}
		lon := originLon - margin + rng.Float64()*(span+2*margin)
		lat := originLat - margin + rng.Float64()*(span+2*margin)

		locations = append(locations, domain.EventLocation{EventID: id, Lat: lat, Lon: lon})
		details = append(details, domain.EventDetail{
			EventID:        id,
			EventType:      eventTypes[rng.Intn(len(eventTypes))],
			DamageProperty: randomDamage(rng),
		})
	}

	// Orphans: locations with no detail and details with no location.
	for i := 0; i < n/50+1; i++ {
		locations = append(locations, domain.EventLocation{
			EventID: fmt.Sprintf("%d", 5700000+i),
			Lat:     originLat + rng.Float64()*span,
			Lon:     originLon + rng.Float64()*span,
		})
		details = append(details, domain.EventDetail{
			EventID:        fmt.Sprintf("%d", 5800000+i),
			EventType:      eventTypes[rng.Intn(len(eventTypes))],
			DamageProperty: randomDamage(rng),
		})
	}

	return locations, details
}

// randomDamage mirrors the shape of real DAMAGE_PROPERTY values, zero
// sentinels included.
func randomDamage(rng *rand.Rand) string {
	switch rng.Intn(10) {
	case 0:
		return ""
	case 1:
		return "0.00"
	case 2:
		return "0"
	case 3:
		return fmt.Sprintf("%.2fM", rng.Float64()*50)
	case 4:
		return fmt.Sprintf("%dB", 1+rng.Intn(3))
	default:
		return fmt.Sprintf("%.2fK", rng.Float64()*500)
	}
}

// writeLocations writes the feed with the extra columns the real files carry.
func writeLocations(path string, locations []domain.EventLocation) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"YEARMONTH", "EPISODE_ID", "EVENT_ID", "LOCATION_INDEX", "LATITUDE", "LONGITUDE"}); err != nil {
		return err
	}
	for i, loc := range locations {
		row := []string{
			"202404",
			fmt.Sprintf("%d", 180000+i/4),
			loc.EventID,
			"1",
			fmt.Sprintf("%.4f", loc.Lat),
			fmt.Sprintf("%.4f", loc.Lon),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

func writeDetails(path string, details []domain.EventDetail) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"EVENT_ID", "STATE", "EVENT_TYPE", "DAMAGE_PROPERTY", "DAMAGE_CROPS"}); err != nil {
		return err
	}
	for _, d := range details {
		if err := w.Write([]string{d.EventID, "TEXAS", d.EventType, d.DamageProperty, "0.00"}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// geoJSON feature shapes, kept local to the tool.
type featureCollection struct {
	Type     string    `json:"type"`
	Features []feature `json:"features"`
}

type feature struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties"`
	Geometry   geometry       `json:"geometry"`
}

type geometry struct {
	Type        string         `json:"type"`
	Coordinates [][][2]float64 `json:"coordinates"`
}

func writeGeoJSON(path string, regions []domain.RegionPolygon) error {
	fc := featureCollection{Type: "FeatureCollection"}
	for _, r := range regions {
		poly, ok := r.Geom.(geom.Polygon)
		if !ok {
			return fmt.Errorf("region %s: unexpected geometry %T", r.ID, r.Geom)
		}
		var rings [][][2]float64
		for _, ring := range poly {
			coords := make([][2]float64, 0, len(ring))
			for _, p := range ring {
				coords = append(coords, [2]float64{p.X, p.Y})
			}
			rings = append(rings, coords)
		}
		fc.Features = append(fc.Features, feature{
			Type:       "Feature",
			Properties: map[string]any{"id": r.ID},
			Geometry:   geometry{Type: "Polygon", Coordinates: rings},
		})
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(locations []domain.EventLocation, details []domain.EventDetail,
	joined []domain.JoinedEvent, located []domain.LocatedEvent,
	totals []domain.RegionCategoryTotal, dominant []domain.DominantCategory) {

	typeCounts := map[string]int{}
	for _, d := range details {
		typeCounts[d.EventType]++
	}
	types := make([]string, 0, len(typeCounts))
	for t := range typeCounts {
		types = append(types, t)
	}
	sort.Strings(types)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Feed rows: %d locations, %d details\n", len(locations), len(details))
	fmt.Printf("Joined: %d (dropped %d)\n", len(joined), len(locations)+len(details)-2*len(joined))
	for _, t := range types {
		fmt.Printf("  %s: %d\n", t, typeCounts[t])
	}
	fmt.Printf("Located rows: %d (off-grid drops: %d)\n", len(located), len(joined)-countDistinctLocated(located))
	fmt.Printf("Region/type totals: %d\n", len(totals))
	fmt.Printf("Dominant rows (regions hit): %d\n", len(dominant))

	if len(dominant) > 0 {
		top := dominant[0]
		for _, d := range dominant[1:] {
			if d.Mag > top.Mag {
				top = d
			}
		}
		fmt.Printf("Hardest-hit region: %s (%s, $%.0f)\n", top.RegionID, top.EventType, top.Mag)
	}
}

// countDistinctLocated counts distinct events among located rows. A boundary
// point fans out to several regions, so len(located) alone overstates it.
func countDistinctLocated(located []domain.LocatedEvent) int {
	seen := map[string]bool{}
	for _, l := range located {
		seen[l.EventID] = true
	}
	return len(seen)
}
