package cache

import (
	"context"
	"testing"

	"github.com/saferoute/risk-engine/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestFingerprint_KeyDeterministic(t *testing.T) {
	a := Fingerprint{Operation: "snapshot", SpatialKey: "bbox:-1.5,50.8,-1.3,51.0", LookbackMonths: 6, TimeOfDay: config.TimeOfDayNight, Version: 3}
	b := a
	assert.Equal(t, a.Key(), b.Key())
}

func TestFingerprint_KeyChangesWithVersion(t *testing.T) {
	a := Fingerprint{Operation: "snapshot", SpatialKey: "bbox:0,0,1,1", LookbackMonths: 6, Version: 1}
	b := a
	b.Version = 2
	assert.NotEqual(t, a.Key(), b.Key())
}

func TestFingerprint_KeyChangesWithOperationOrSpatialKey(t *testing.T) {
	base := Fingerprint{Operation: "snapshot", SpatialKey: "bbox:0,0,1,1", LookbackMonths: 6, Version: 1}
	byOp := base
	byOp.Operation = "route"
	bySpatial := base
	bySpatial.SpatialKey = "polyline:abc123"
	assert.NotEqual(t, base.Key(), byOp.Key())
	assert.NotEqual(t, base.Key(), bySpatial.Key())
}

func TestCache_NilClientAlwaysMisses(t *testing.T) {
	c := New(nil, &config.Config{CacheTTLSeconds: 900})
	var dest map[string]any
	hit, err := c.Get(context.Background(), "snapshot", "some-key", &dest)
	assert.NoError(t, err)
	assert.False(t, hit)

	assert.NoError(t, c.Set(context.Background(), "some-key", map[string]int{"a": 1}))

	v, err := c.CurrentVersion(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, int64(0), v)
}

func TestCache_OnVersionBump_NilClientIsNoop(t *testing.T) {
	c := New(nil, &config.Config{CacheTTLSeconds: 900})
	c.OnVersionBump(context.Background(), 5) // must not panic
}
