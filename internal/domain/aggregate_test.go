package domain

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregate_GroupsAndSums(t *testing.T) {
	located := []LocatedEvent{
		{NormalizedEvent: NormalizedEvent{EventID: "E1", EventType: "Hail", Damage: 1000}, RegionID: "A"},
		{NormalizedEvent: NormalizedEvent{EventID: "E2", EventType: "Hail", Damage: 3000}, RegionID: "A"},
		{NormalizedEvent: NormalizedEvent{EventID: "E3", EventType: "Flood", Damage: 500}, RegionID: "A"},
		{NormalizedEvent: NormalizedEvent{EventID: "E4", EventType: "Hail", Damage: 250}, RegionID: "B"},
	}

	totals := Aggregate(located)

	want := []RegionCategoryTotal{
		{RegionID: "A", EventType: "Flood", Mag: 500},
		{RegionID: "A", EventType: "Hail", Mag: 4000},
		{RegionID: "B", EventType: "Hail", Mag: 250},
	}
	if diff := cmp.Diff(want, totals, cmpopts.EquateApprox(0, 1e-6)); diff != "" {
		t.Errorf("totals mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregate_OrderIndependent(t *testing.T) {
	located := make([]LocatedEvent, 0, 200)
	for i := 0; i < 200; i++ {
		located = append(located, LocatedEvent{
			NormalizedEvent: NormalizedEvent{
				EventType: []string{"Hail", "Flood", "Tornado"}[i%3],
				Damage:    float64(i) * 1.37,
			},
			RegionID: []string{"A", "B"}[i%2],
		})
	}

	base := Aggregate(located)

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 5; trial++ {
		shuffled := make([]LocatedEvent, len(located))
		copy(shuffled, located)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := Aggregate(shuffled)
		require.Len(t, got, len(base))
		for i := range base {
			assert.Equal(t, base[i].RegionID, got[i].RegionID)
			assert.Equal(t, base[i].EventType, got[i].EventType)
			assert.InDelta(t, base[i].Mag, got[i].Mag, 1e-6)
		}
	}
}

func TestAggregate_EmptyInput(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
}

func TestSelectDominant_PicksMax(t *testing.T) {
	totals := []RegionCategoryTotal{
		{RegionID: "A", EventType: "Hail", Mag: 500},
		{RegionID: "A", EventType: "Flood", Mag: 1500},
		{RegionID: "B", EventType: "Tornado", Mag: 10},
	}

	got := SelectDominant(totals)

	want := []DominantCategory{
		{RegionID: "A", EventType: "Flood", Mag: 1500},
		{RegionID: "B", EventType: "Tornado", Mag: 10},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("dominant mismatch (-want +got):\n%s", diff)
	}
}

func TestSelectDominant_TieBreaksLexicographically(t *testing.T) {
	totals := []RegionCategoryTotal{
		{RegionID: "A", EventType: "Tornado", Mag: 1000},
		{RegionID: "A", EventType: "Flood", Mag: 1000},
		{RegionID: "A", EventType: "Hail", Mag: 1000},
	}

	got := SelectDominant(totals)

	require.Len(t, got, 1)
	assert.Equal(t, "Flood", got[0].EventType)
}

func TestSelectDominant_TieBreakIndependentOfInputOrder(t *testing.T) {
	forward := []RegionCategoryTotal{
		{RegionID: "A", EventType: "Flood", Mag: 7},
		{RegionID: "A", EventType: "Hail", Mag: 7},
	}
	reversed := []RegionCategoryTotal{
		{RegionID: "A", EventType: "Hail", Mag: 7},
		{RegionID: "A", EventType: "Flood", Mag: 7},
	}

	assert.Equal(t, SelectDominant(forward), SelectDominant(reversed))
}

func TestSelectDominant_OneRowPerRegion(t *testing.T) {
	totals := Aggregate([]LocatedEvent{
		{NormalizedEvent: NormalizedEvent{EventType: "Hail", Damage: 1}, RegionID: "A"},
		{NormalizedEvent: NormalizedEvent{EventType: "Flood", Damage: 2}, RegionID: "A"},
		{NormalizedEvent: NormalizedEvent{EventType: "Hail", Damage: 3}, RegionID: "B"},
	})

	got := SelectDominant(totals)

	require.Len(t, got, 2)
	regions := []string{got[0].RegionID, got[1].RegionID}
	assert.Equal(t, []string{"A", "B"}, regions)
}
