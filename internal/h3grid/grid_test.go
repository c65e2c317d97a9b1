package h3grid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellOf_RoundTripsToSameResolution(t *testing.T) {
	h3Index, err := CellOf(50.9097, -1.4044) // Southampton city centre
	require.NoError(t, err)
	require.NotEmpty(t, h3Index)

	res, err := ResolutionOf(h3Index)
	require.NoError(t, err)
	assert.Equal(t, Resolution, res)
}

func TestBoundaryOf_ReturnsClosedRing(t *testing.T) {
	h3Index, err := CellOf(50.9097, -1.4044)
	require.NoError(t, err)

	poly, err := BoundaryOf(h3Index)
	require.NoError(t, err)
	require.Len(t, poly.Rings, 1)
	ring := poly.Rings[0]
	require.GreaterOrEqual(t, len(ring), 4)
	assert.Equal(t, ring[0], ring[len(ring)-1])
}

func TestBoundaryOf_MalformedIndex(t *testing.T) {
	_, err := BoundaryOf("not-an-h3-index")
	assert.Error(t, err)
}

func TestParseCell_RejectsWrongResolution(t *testing.T) {
	// A valid but coarser resolution-5 cell must be rejected by the
	// resolution-10-only wrappers.
	_, err := BoundaryOf("85283473fffffff") // well-known resolution-5 sample index
	assert.Error(t, err)
}
