package domain

import "sort"

type groupKey struct {
	regionID  string
	eventType string
}

// Aggregate sums damage per (region, event type) group. Accumulation is a
// plain associative fold, so input order never changes a total beyond
// floating-point rounding. Groups exist only where at least one event landed;
// output is sorted by (region, event type) so logs and fixtures are stable.
func Aggregate(located []LocatedEvent) []RegionCategoryTotal {
	sums := make(map[groupKey]float64)
	for _, e := range located {
		sums[groupKey{e.RegionID, e.EventType}] += e.Damage
	}

	totals := make([]RegionCategoryTotal, 0, len(sums))
	for k, mag := range sums {
		totals = append(totals, RegionCategoryTotal{
			RegionID:  k.regionID,
			EventType: k.eventType,
			Mag:       mag,
		})
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].RegionID != totals[j].RegionID {
			return totals[i].RegionID < totals[j].RegionID
		}
		return totals[i].EventType < totals[j].EventType
	})
	return totals
}

// SelectDominant picks, per region, the category with the largest aggregated
// damage. Exact ties go to the lexicographically smallest event type label,
// which keeps output reproducible regardless of upstream ordering. Output is
// sorted by region id; regions with no located events never appear.
func SelectDominant(totals []RegionCategoryTotal) []DominantCategory {
	best := make(map[string]RegionCategoryTotal)
	for _, t := range totals {
		cur, ok := best[t.RegionID]
		if !ok || t.Mag > cur.Mag || (t.Mag == cur.Mag && t.EventType < cur.EventType) {
			best[t.RegionID] = t
		}
	}

	out := make([]DominantCategory, 0, len(best))
	for _, t := range best {
		out = append(out, DominantCategory{
			RegionID:  t.RegionID,
			EventType: t.EventType,
			Mag:       t.Mag,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegionID < out[j].RegionID })
	return out
}
