package crimefeed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToCrimeEvent_OK(t *testing.T) {
	r := rawEvent{ID: "abc123", Category: "violent-crime"}
	r.Location.Latitude = "50.9097"
	r.Location.Longitude = "-1.4044"
	ev, err := toCrimeEvent(r, "2026-03")
	assert.NoError(t, err)
	assert.Equal(t, "abc123", ev.ExternalID)
	assert.Equal(t, "violent-crime", ev.CategoryID)
	assert.InDelta(t, 50.9097, ev.Lat, 1e-6)
	assert.InDelta(t, -1.4044, ev.Lon, 1e-6)
}

func TestToCrimeEvent_MissingID(t *testing.T) {
	r := rawEvent{}
	r.Location.Latitude = "50.0"
	r.Location.Longitude = "-1.0"
	_, err := toCrimeEvent(r, "2026-03")
	assert.Error(t, err)
}

func TestToCrimeEvent_BadCoordinates(t *testing.T) {
	r := rawEvent{ID: "x"}
	r.Location.Latitude = "not-a-number"
	r.Location.Longitude = "-1.0"
	_, err := toCrimeEvent(r, "2026-03")
	assert.Error(t, err)
}

func TestBackoffSchedule_ThreeCappedAttempts(t *testing.T) {
	assert.Len(t, backoffSchedule, 3)
	assert.True(t, backoffSchedule[0] < backoffSchedule[1])
	assert.True(t, backoffSchedule[1] < backoffSchedule[2])
}
