package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTilesFor_SmallBBoxIsOneTile(t *testing.T) {
	tiles := TilesFor([4]float64{50.88, -1.50, 50.95, -1.35})
	assert.Len(t, tiles, 1)
}

func TestTilesFor_LargeBBoxSplitsIntoFour(t *testing.T) {
	tiles := TilesFor([4]float64{50.0, -2.0, 51.0, -1.0})
	assert.Len(t, tiles, 4)
}

func TestCurrentMonth_TruncatesToFirstOfMonthUTC(t *testing.T) {
	in := time.Date(2026, 3, 17, 14, 30, 0, 0, time.FixedZone("BST", 3600))
	got := CurrentMonth(in)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestNextDailyAt_PicksTomorrowWhenHourAlreadyPassed(t *testing.T) {
	loc := time.UTC
	past := time.Now().In(loc).Add(-1 * time.Hour).Hour()
	next := nextDailyAt(loc, past)
	assert.True(t, next.After(time.Now().In(loc)))
}
