package routescorer

import (
	"testing"

	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/stretchr/testify/assert"
)

func TestRouteInput_Validate_TooFewPoints(t *testing.T) {
	in := RouteInput{Polyline: []gridmodel.Point{{Lon: 0, Lat: 0}}, LookbackMonths: 6}
	assert.Error(t, in.Validate())
}

func TestRouteInput_Validate_BadLookback(t *testing.T) {
	in := RouteInput{Polyline: []gridmodel.Point{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}, LookbackMonths: 99}
	assert.Error(t, in.Validate())
}

func TestRouteInput_Validate_BadTimeOfDay(t *testing.T) {
	in := RouteInput{Polyline: []gridmodel.Point{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}, LookbackMonths: 6, TimeOfDay: "teatime"}
	assert.Error(t, in.Validate())
}

func TestRouteInput_Validate_DegeneratePolyline(t *testing.T) {
	in := RouteInput{
		Polyline:       []gridmodel.Point{{Lon: -1.40, Lat: 50.90}, {Lon: -1.40, Lat: 50.90}},
		LookbackMonths: 6,
	}
	assert.Error(t, in.Validate())
}

func TestRouteInput_Validate_OK(t *testing.T) {
	in := RouteInput{Polyline: []gridmodel.Point{{Lon: 0, Lat: 0}, {Lon: 1, Lat: 1}}, LookbackMonths: 6}
	assert.NoError(t, in.Validate())
}

func TestBetter_HigherSafetyWins(t *testing.T) {
	a := RouteInput{DistanceMeters: 2000, DurationSecs: 400}
	b := RouteInput{DistanceMeters: 1000, DurationSecs: 200}
	ar := &RouteResult{SafetyScore: 90}
	br := &RouteResult{SafetyScore: 80}
	assert.True(t, better(a, ar, b, br))
	assert.False(t, better(b, br, a, ar))
}

func TestBetter_TieBreaksOnDistanceThenDuration(t *testing.T) {
	a := RouteInput{DistanceMeters: 1000, DurationSecs: 500}
	b := RouteInput{DistanceMeters: 1200, DurationSecs: 400}
	ar := &RouteResult{SafetyScore: 85}
	br := &RouteResult{SafetyScore: 85}
	assert.True(t, better(a, ar, b, br)) // shorter distance wins the tie

	c := RouteInput{DistanceMeters: 1000, DurationSecs: 300}
	cr := &RouteResult{SafetyScore: 85}
	assert.True(t, better(c, cr, a, ar)) // same distance, shorter duration wins
}

func TestHotspotDescription_CriticalVsHigh(t *testing.T) {
	assert.Contains(t, hotspotDescription("critical", 150), "critical")
	assert.Contains(t, hotspotDescription("high", 60), "high")
}

func TestRouteEnvelope_PadsByBuffer(t *testing.T) {
	pts := []gridmodel.Point{{Lon: -1.40, Lat: 50.90}, {Lon: -1.39, Lat: 50.91}}
	bbox := routeEnvelope(pts, 50)
	assert.True(t, bbox[0] < -1.40)
	assert.True(t, bbox[1] < 50.90)
	assert.True(t, bbox[2] > -1.39)
	assert.True(t, bbox[3] > 50.91)
}
