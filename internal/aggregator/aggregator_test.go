package aggregator

import (
	"iter"
	"testing"
	"time"

	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/h3grid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonthKeyLockID_Deterministic(t *testing.T) {
	a := monthKeyLockID("202608")
	b := monthKeyLockID("202608")
	c := monthKeyLockID("202607")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestOutcomeOf(t *testing.T) {
	assert.Equal(t, "busy", outcomeOf(engineerr.Busy("aggregator.aggregateMonth", "locked")))
	assert.Equal(t, "error", outcomeOf(engineerr.Upstream("aggregator.aggregateMonth", "boom", nil)))
}

func TestPolygonToWKT_ClosedTriangleStadium(t *testing.T) {
	poly := gridmodel.Polygon{Rings: [][]gridmodel.Point{{
		{Lon: -1.40, Lat: 50.90},
		{Lon: -1.39, Lat: 50.90},
		{Lon: -1.395, Lat: 50.91},
		{Lon: -1.40, Lat: 50.90},
	}}}
	wkt := polygonToWKT(poly)
	assert.Contains(t, wkt, "SRID=4326;POLYGON((")
	assert.Contains(t, wkt, "-1.4 50.9")
}

// sliceSeq turns a plain slice into the iter.Seq2[gridmodel.CrimeEvent, error] shape foldEvents
// consumes, standing in for eventstore.Store.EventsInMonth in tests that never touch a database.
func sliceSeq(events []gridmodel.CrimeEvent) iter.Seq2[gridmodel.CrimeEvent, error] {
	return func(yield func(gridmodel.CrimeEvent, error) bool) {
		for _, ev := range events {
			if !yield(ev, nil) {
				return
			}
		}
	}
}

// syntheticEvents deterministically spreads n events across a small grid of resolution-10 H3
// cells in Southampton, cycling through a fixed set of category IDs (including one unregistered
// ID to exercise the I5 "other" fallback).
func syntheticEvents(n int) []gridmodel.CrimeEvent {
	cats := []string{"burglary", "robbery", "anti-social-behaviour", "unregistered-category"}
	events := make([]gridmodel.CrimeEvent, n)
	month := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		lon := -1.45 + float64(i%25)*0.002
		lat := 50.88 + float64((i/25)%25)*0.002
		events[i] = gridmodel.CrimeEvent{
			ExternalID: "synthetic-" + time.Time{}.Add(time.Duration(i)*time.Second).Format("060102150405"),
			Month:      month,
			CategoryID: cats[i%len(cats)],
			Lon:        lon,
			Lat:        lat,
		}
	}
	return events
}

func testCategories() map[string]gridmodel.CrimeCategory {
	return map[string]gridmodel.CrimeCategory{
		"burglary":               {ID: "burglary", HarmWeight: 4.0},
		"robbery":                {ID: "robbery", HarmWeight: 5.0},
		"anti-social-behaviour":  {ID: "anti-social-behaviour", HarmWeight: 1.0},
		gridmodel.OtherCategoryID: {ID: gridmodel.OtherCategoryID, HarmWeight: 1.0},
	}
}

func TestFoldEvents_1000SyntheticEvents_Idempotent(t *testing.T) {
	events := syntheticEvents(1000)
	categories := testCategories()

	first, err := foldEvents(sliceSeq(events), categories)
	require.NoError(t, err)
	second, err := foldEvents(sliceSeq(events), categories)
	require.NoError(t, err)

	assert.Equal(t, first, second)

	// I1: every bucket's stats sum to its crime_count_total.
	totalEvents := 0
	for _, b := range first {
		sum := 0
		for _, n := range b.stats {
			sum += n
		}
		assert.Equal(t, b.count, sum, "cell %s: count/stats mismatch", b.h3Index)
		totalEvents += b.count

		// I3: every bucket key is a valid resolution-10 H3 cell.
		res, err := h3grid.ResolutionOf(b.h3Index)
		require.NoError(t, err)
		assert.Equal(t, h3grid.Resolution, res)
	}
	assert.Equal(t, len(events), totalEvents)
}

func TestFoldEvents_UnregisteredCategoryFallsBackToOther(t *testing.T) {
	events := []gridmodel.CrimeEvent{
		{ExternalID: "e1", CategoryID: "unregistered-category", Lon: -1.40, Lat: 50.90},
	}
	buckets, err := foldEvents(sliceSeq(events), testCategories())
	require.NoError(t, err)
	require.Len(t, buckets, 1)

	for _, b := range buckets {
		assert.Equal(t, 1, b.stats[gridmodel.OtherCategoryID])
		assert.Equal(t, 1.0, b.weighted) // "other" harm weight in testCategories
	}
}

func TestFoldEvents_PropagatesStreamError(t *testing.T) {
	boom := engineerr.Upstream("eventstore.EventsInMonth", "boom", nil)
	seq := func(yield func(gridmodel.CrimeEvent, error) bool) {
		yield(gridmodel.CrimeEvent{}, boom)
	}
	_, err := foldEvents(seq, testCategories())
	assert.Error(t, err)
}
