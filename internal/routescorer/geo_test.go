package routescorer

import (
	"testing"

	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/stretchr/testify/assert"
)

func TestHaversineMeters_KnownDistance(t *testing.T) {
	// Southampton city centre to roughly 1km east along the same latitude band.
	a := gridmodel.Point{Lon: -1.4044, Lat: 50.9097}
	b := gridmodel.Point{Lon: -1.3903, Lat: 50.9097}
	d := haversineMeters(a, b)
	assert.InDelta(t, 1000, d, 120)
}

func TestSegmentize_ShortPolylineYieldsOneTrailingSegment(t *testing.T) {
	pts := []gridmodel.Point{
		{Lon: -1.4044, Lat: 50.9097},
		{Lon: -1.4040, Lat: 50.9097},
	}
	segs := Segmentize(pts)
	assert.Len(t, segs, 1)
	assert.Equal(t, 0, segs[0].Index)
}

func TestSegmentize_ContiguousIndices(t *testing.T) {
	pts := []gridmodel.Point{
		{Lon: -1.42, Lat: 50.90},
		{Lon: -1.38, Lat: 50.90},
		{Lon: -1.34, Lat: 50.91},
	}
	segs := Segmentize(pts)
	for i, s := range segs {
		assert.Equal(t, i, s.Index)
	}
	assert.True(t, len(segs) > 1)
}

func TestSegmentize_EmptyInput(t *testing.T) {
	assert.Nil(t, Segmentize(nil))
	assert.Nil(t, Segmentize([]gridmodel.Point{{Lon: 0, Lat: 0}}))
}

func TestBufferStadium_ClosedRing(t *testing.T) {
	seg := Segment{Start: gridmodel.Point{Lon: -1.40, Lat: 50.90}, End: gridmodel.Point{Lon: -1.399, Lat: 50.901}}
	poly := bufferStadium(seg, bufferMeters)
	assert.True(t, poly.Closed())
}
