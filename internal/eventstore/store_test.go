package eventstore

import (
	"testing"
	"time"

	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/stretchr/testify/assert"
)

func TestShouldSkipEvent(t *testing.T) {
	cases := []struct {
		name string
		ev   gridmodel.CrimeEvent
		skip bool
	}{
		{"valid", gridmodel.CrimeEvent{ExternalID: "abc123", Lon: -1.40, Lat: 50.90}, false},
		{"missing_id", gridmodel.CrimeEvent{ExternalID: "", Lon: -1.40, Lat: 50.90}, true},
		{"zero_coords", gridmodel.CrimeEvent{ExternalID: "abc123", Lon: 0, Lat: 0}, true},
		{"valid_near_origin", gridmodel.CrimeEvent{ExternalID: "abc123", Lon: 0, Lat: 50.90}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.skip, shouldSkipEvent(c.ev))
		})
	}
}

func TestCheckSkipRatio(t *testing.T) {
	assert.NoError(t, checkSkipRatio(0, 100))
	assert.NoError(t, checkSkipRatio(10, 100))
	assert.Error(t, checkSkipRatio(11, 100))
	assert.NoError(t, checkSkipRatio(0, 0))
}

func TestShouldSkipEvent_BatchRatio(t *testing.T) {
	// 1000 合成事件，其中 100 条缺 external_id：比例恰好是阈值 10% 的下方边界。
	events := make([]gridmodel.CrimeEvent, 0, 1000)
	for i := 0; i < 900; i++ {
		events = append(events, gridmodel.CrimeEvent{
			ExternalID: "ev-" + time.Now().Add(time.Duration(i)).Format("150405.000000000"),
			Lon:        -1.40 + float64(i)*0.0001,
			Lat:        50.90 + float64(i)*0.0001,
		})
	}
	for i := 0; i < 100; i++ {
		events = append(events, gridmodel.CrimeEvent{Lon: -1.40, Lat: 50.90}) // missing ExternalID
	}

	skipped := 0
	for _, ev := range events {
		if shouldSkipEvent(ev) {
			skipped++
		}
	}
	assert.Equal(t, 100, skipped)
	assert.NoError(t, checkSkipRatio(skipped, len(events)))

	skipped++ // one more pushes past the 10% threshold
	assert.Error(t, checkSkipRatio(skipped, len(events)))
}
