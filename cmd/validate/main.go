// Command validate checks an aggregated output artifact against the feeds
// and region layer it was produced from. It re-runs the domain stages on the
// inputs and diffs the recomputed result against the artifact, so a stale or
// hand-edited output file is caught before anything downstream consumes it.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -locations data/mock/locations.csv \
//	  -details data/mock/details.csv \
//	  -regions data/mock/grid.geojson \
//	  -aggregated data/mock/expected_dominant.csv
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/couchcryptid/storm-damage-aggregator/internal/adapter/csvfile"
	"github.com/couchcryptid/storm-damage-aggregator/internal/adapter/regionlayer"
	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
	"github.com/couchcryptid/storm-damage-aggregator/internal/observability"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	locationsPath := flag.String("locations", "", "path to locations feed CSV")
	detailsPath := flag.String("details", "", "path to details feed CSV")
	regionsPath := flag.String("regions", "", "path to region layer (.shp or .geojson)")
	aggregatedPath := flag.String("aggregated", "", "path to aggregated output CSV")
	flag.Parse()

	if *locationsPath == "" || *detailsPath == "" || *regionsPath == "" || *aggregatedPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	os.Exit(run(*locationsPath, *detailsPath, *regionsPath, *aggregatedPath))
}

func run(locationsPath, detailsPath, regionsPath, aggregatedPath string) int {
	ctx := context.Background()

	fmt.Println("=== Aggregated Artifact Validation ===")
	fmt.Println()

	locations, details, err := loadFeeds(locationsPath, detailsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load feeds: %v\n", err)
		return 1
	}

	logger := observability.NewLogger("warn", "text")
	regions, err := regionlayer.NewLoader(regionsPath, "id", logger).LoadRegions(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load region layer: %v\n", err)
		return 1
	}

	artifact, err := loadArtifact(aggregatedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load aggregated artifact: %v\n", err)
		return 1
	}

	joined := domain.Join(locations, details)

	phases := []*phase{
		validateFeeds(locations, details, joined),
		validateMagnitudes(joined),
		validateParity(joined, regions, artifact),
		validateArtifactSchema(artifact, details),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d locations, %d details, %d joined, %d regions, %d artifact rows\n",
		len(locations), len(details), len(joined), len(regions), len(artifact))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Feed Integrity ──
// Checks the two feeds pair up sanely before trusting anything downstream.

func validateFeeds(locations []domain.EventLocation, details []domain.EventDetail, joined []domain.JoinedEvent) *phase {
	p := &phase{name: "Phase 1: Feed Integrity"}

	if len(locations) == 0 {
		p.errorf("locations feed is empty")
	}
	if len(details) == 0 {
		p.errorf("details feed is empty")
	}
	if len(joined) == 0 {
		p.errorf("inner join produced no rows; the feeds share no EVENT_IDs")
	}

	seen := map[string]bool{}
	for _, loc := range locations {
		if loc.EventID == "" {
			p.errorf("locations feed has a row with empty EVENT_ID")
			break
		}
		seen[loc.EventID] = true
	}

	var orphanDetails int
	for _, d := range details {
		if !seen[d.EventID] {
			orphanDetails++
		}
	}
	// Orphans are expected in real feeds; an overwhelming share is not.
	if len(details) > 0 && orphanDetails*2 > len(details) {
		p.errorf("%d of %d detail rows have no location partner", orphanDetails, len(details))
	}
	return p
}

// ── Phase 2: Magnitude Normalization ──
// Every damage value must be a zero sentinel or a suffixed numeral.

func validateMagnitudes(joined []domain.JoinedEvent) *phase {
	p := &phase{name: "Phase 2: Magnitude Normalization"}

	normalizer := domain.NewNormalizer(nil)
	for _, e := range joined {
		if _, err := normalizer.Normalize(e.DamageRaw); err != nil {
			p.errorf("%v", err)
		}
	}
	return p
}

// ── Phase 3: Aggregation Parity ──
// Recomputes the pipeline output and diffs it against the artifact.

func validateParity(joined []domain.JoinedEvent, regions []domain.RegionPolygon, artifact []domain.DominantCategory) *phase {
	p := &phase{name: "Phase 3: Aggregation Parity"}

	normalized, err := domain.NewNormalizer(nil).NormalizeEvents(joined)
	if err != nil {
		p.errorf("recompute halted: %v", err)
		return p
	}
	located := domain.Locate(normalized, domain.NewRegionIndex(regions, 0))
	expected := domain.SelectDominant(domain.Aggregate(located))

	if len(expected) != len(artifact) {
		p.errorf("row count: recomputed %d, artifact has %d", len(expected), len(artifact))
	}

	byRegion := map[string]domain.DominantCategory{}
	for _, row := range artifact {
		byRegion[row.RegionID] = row
	}

	for _, want := range expected {
		got, ok := byRegion[want.RegionID]
		if !ok {
			p.errorf("region %s: missing from artifact (expected %s $%.2f)", want.RegionID, want.EventType, want.Mag)
			continue
		}
		if got.EventType != want.EventType {
			p.errorf("region %s: event type: expected %q, got %q", want.RegionID, want.EventType, got.EventType)
		}
		if !floatEq(got.Mag, want.Mag) {
			p.errorf("region %s: magnitude: expected %g, got %g", want.RegionID, want.Mag, got.Mag)
		}
		delete(byRegion, want.RegionID)
	}
	for id := range byRegion {
		p.errorf("region %s: present in artifact but not in recomputed output", id)
	}
	return p
}

// ── Phase 4: Artifact Schema ──
// Shape checks on the artifact itself.

func validateArtifactSchema(artifact []domain.DominantCategory, details []domain.EventDetail) *phase {
	p := &phase{name: "Phase 4: Artifact Schema"}

	knownTypes := map[string]bool{}
	for _, d := range details {
		knownTypes[d.EventType] = true
	}

	seen := map[string]bool{}
	for i, row := range artifact {
		if row.RegionID == "" {
			p.errorf("row %d: empty region id", i+2)
		}
		if seen[row.RegionID] {
			p.errorf("row %d: duplicate region id %q", i+2, row.RegionID)
		}
		seen[row.RegionID] = true

		if row.EventType == "" {
			p.errorf("row %d (%s): empty event type", i+2, row.RegionID)
		} else if !knownTypes[row.EventType] {
			p.errorf("row %d (%s): event type %q never appears in the details feed", i+2, row.RegionID, row.EventType)
		}
		if math.IsNaN(row.Mag) || math.IsInf(row.Mag, 0) || row.Mag < 0 {
			p.errorf("row %d (%s): magnitude %v out of range", i+2, row.RegionID, row.Mag)
		}
	}
	return p
}

// ── Data loading ──

func loadFeeds(locationsPath, detailsPath string) ([]domain.EventLocation, []domain.EventDetail, error) {
	lf, err := os.Open(locationsPath)
	if err != nil {
		return nil, nil, err
	}
	defer lf.Close()
	locations, err := csvfile.DecodeLocations(lf)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", locationsPath, err)
	}

	df, err := os.Open(detailsPath)
	if err != nil {
		return nil, nil, err
	}
	defer df.Close()
	details, err := csvfile.DecodeDetails(df)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", detailsPath, err)
	}
	return locations, details, nil
}

func loadArtifact(path string) ([]domain.DominantCategory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty artifact, expected a header row")
	}
	if got := rows[0]; len(got) != 3 || got[0] != "id" || got[1] != "EVENT_TYPE" || got[2] != "mag" {
		return nil, fmt.Errorf("unexpected header %v, want [id EVENT_TYPE mag]", got)
	}

	out := make([]domain.DominantCategory, 0, len(rows)-1)
	for i, row := range rows[1:] {
		mag, err := strconv.ParseFloat(row[2], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: bad mag %q", i+2, row[2])
		}
		out = append(out, domain.DominantCategory{RegionID: row[0], EventType: row[1], Mag: mag})
	}
	return out, nil
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}
