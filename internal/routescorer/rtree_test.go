package routescorer

import (
	"testing"

	"github.com/saferoute/risk-engine/internal/cellwindow"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/stretchr/testify/assert"
)

func square(minLon, minLat, maxLon, maxLat float64) gridmodel.Polygon {
	return gridmodel.Polygon{Rings: [][]gridmodel.Point{{
		{Lon: minLon, Lat: minLat}, {Lon: maxLon, Lat: minLat},
		{Lon: maxLon, Lat: maxLat}, {Lon: minLon, Lat: maxLat},
		{Lon: minLon, Lat: minLat},
	}}}
}

func TestRTree_QueryFindsOverlappingAndExcludesDistant(t *testing.T) {
	groups := map[string]*cellwindow.Group{
		"near":  {H3Index: "near", Geom: square(-1.41, 50.90, -1.40, 50.91)},
		"far":   {H3Index: "far", Geom: square(10.0, 40.0, 10.01, 40.01)},
		"other": {H3Index: "other", Geom: square(-1.40, 50.90, -1.39, 50.91)},
	}
	tree := BuildRTree(groups)
	hits := tree.Query([4]float64{-1.405, 50.895, -1.395, 50.905})

	assert.Contains(t, hits, "near")
	assert.Contains(t, hits, "other")
	assert.NotContains(t, hits, "far")
}

func TestRTree_EmptyIndex(t *testing.T) {
	tree := BuildRTree(map[string]*cellwindow.Group{})
	assert.Empty(t, tree.Query([4]float64{-1, 50, 1, 51}))
}
