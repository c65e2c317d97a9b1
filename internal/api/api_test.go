package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/snapshot"
	"github.com/stretchr/testify/assert"
)

func TestWriteError_StatusMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{engineerr.Invalid("op", "bad"), http.StatusBadRequest},
		{engineerr.Busy("op", "locked"), http.StatusConflict},
		{engineerr.Upstream("op", "down", nil), http.StatusBadGateway},
		{engineerr.Timeout("op", "slow", nil), http.StatusGatewayTimeout},
		{engineerr.Inconsistent("op", "broken"), http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, c.err)
		assert.Equal(t, c.status, rec.Code)
	}
}

func TestToGeoJSON_ClosedRingRoundTrips(t *testing.T) {
	poly := gridmodel.Polygon{Rings: [][]gridmodel.Point{{
		{Lon: -1.40, Lat: 50.90}, {Lon: -1.39, Lat: 50.90}, {Lon: -1.395, Lat: 50.91}, {Lon: -1.40, Lat: 50.90},
	}}}
	out := toGeoJSON(poly)
	assert.Equal(t, "Polygon", out.Type)
	assert.Len(t, out.Coordinates[0], 4)
	assert.Equal(t, [2]float64{-1.40, 50.90}, out.Coordinates[0][0])
}

func TestHandleSnapshot_RejectsBadBBoxBeforeTouchingDB(t *testing.T) {
	d := &Deps{Snapshot: snapshot.New(nil, nil), Config: &config.Config{}}
	req := httptest.NewRequest(http.MethodGet, "/safety/snapshot?min_lon=abc&min_lat=50&max_lon=-1&max_lat=51&lookback_months=6", nil)
	rec := httptest.NewRecorder()
	d.handleSnapshot(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSnapshot_RejectsDegenerateBBox(t *testing.T) {
	d := &Deps{Snapshot: snapshot.New(nil, nil), Config: &config.Config{}}
	req := httptest.NewRequest(http.MethodGet, "/safety/snapshot?min_lon=-1&min_lat=50&max_lon=-1&max_lat=51&lookback_months=6", nil)
	rec := httptest.NewRecorder()
	d.handleSnapshot(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireAdmin_RejectsWrongToken(t *testing.T) {
	d := &Deps{Config: &config.Config{AdminToken: "s3cret"}}
	called := false
	h := d.requireAdmin(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/admin/rebuild-grid", nil)
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, called)
}

func TestRequireAdmin_AllowsCorrectToken(t *testing.T) {
	d := &Deps{Config: &config.Config{AdminToken: "s3cret"}}
	called := false
	h := d.requireAdmin(func(w http.ResponseWriter, r *http.Request) { called = true })

	req := httptest.NewRequest(http.MethodPost, "/admin/rebuild-grid", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	h(rec, req)

	assert.True(t, called)
}

func TestRequireAdmin_NoTokenConfiguredAllowsAll(t *testing.T) {
	d := &Deps{Config: &config.Config{}}
	called := false
	h := d.requireAdmin(func(w http.ResponseWriter, r *http.Request) { called = true })
	req := httptest.NewRequest(http.MethodPost, "/admin/rebuild-grid", nil)
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.True(t, called)
}
