// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
// 背景：沿用教师版 internal/api 的结构（独立 *http.ServeMux，JSON 响应统一设置
// content-type/cache-control），承载 GET /safety/snapshot、POST /routes/safe 与
// admin 系列端点；教师原来挂在这里的 IP 查询/反地理融合没有 SafeRoute 对应物，
// 已整体替换（见 DESIGN.md）。
package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/saferoute/risk-engine/internal/aggregator"
	"github.com/saferoute/risk-engine/internal/cache"
	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/crimefeed"
	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/eventstore"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/ingest"
	"github.com/saferoute/risk-engine/internal/logger"
	"github.com/saferoute/risk-engine/internal/metrics"
	"github.com/saferoute/risk-engine/internal/routescorer"
	"github.com/saferoute/risk-engine/internal/snapshot"
)

// Deps 聚合 HTTP 层需要的全部组件，由 cmd/saferoute-server/main.go 在装配阶段注入。
type Deps struct {
	Snapshot   *snapshot.Service
	Scorer     *routescorer.Scorer
	Aggregator *aggregator.Aggregator
	Cache      *cache.Cache
	Config     *config.Config
	Feed       *crimefeed.Client
	Events     *eventstore.Store
}

// BuildRoutes 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到任意前缀。
func BuildRoutes(d *Deps) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/safety/snapshot", d.handleSnapshot)
	mux.HandleFunc("/routes/safe", d.handleRoutesSafe)
	mux.HandleFunc("/admin/ingest-latest", d.requireAdmin(d.handleIngestLatest))
	mux.HandleFunc("/admin/ingest-month", d.requireAdmin(d.handleIngestMonth))
	mux.HandleFunc("/admin/rebuild-grid", d.requireAdmin(d.handleRebuildGrid))
	mux.HandleFunc("/admin/validate-grid-health", d.requireAdmin(d.handleValidateGridHealth))
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := engineerr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case engineerr.KindInvalidInput:
		status = http.StatusBadRequest
	case engineerr.KindBusy:
		status = http.StatusConflict
	case engineerr.KindUpstreamUnavailable:
		status = http.StatusBadGateway
	case engineerr.KindTimeout:
		status = http.StatusGatewayTimeout
	case engineerr.KindInconsistent:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorOut{Error: "request_failed", Kind: kind.String(), Detail: err.Error()})
}

func (d *Deps) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.Config.AdminToken != "" {
			got := r.Header.Get("Authorization")
			if got != "Bearer "+d.Config.AdminToken {
				writeJSON(w, http.StatusUnauthorized, errorOut{Error: "unauthorized", Kind: "invalid_input"})
				return
			}
		}
		next(w, r)
	}
}

func (d *Deps) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.SnapshotDurationMs.Observe(float64(time.Since(start).Milliseconds())) }()
	metrics.SnapshotRequestsTotal.Inc()

	q := r.URL.Query()
	minLon, err1 := strconv.ParseFloat(q.Get("min_lon"), 64)
	minLat, err2 := strconv.ParseFloat(q.Get("min_lat"), 64)
	maxLon, err3 := strconv.ParseFloat(q.Get("max_lon"), 64)
	maxLat, err4 := strconv.ParseFloat(q.Get("max_lat"), 64)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		writeError(w, engineerr.Invalid("api.handleSnapshot", "min_lon/min_lat/max_lon/max_lat must be numeric"))
		return
	}
	lookback, err := strconv.Atoi(q.Get("lookback_months"))
	if err != nil {
		writeError(w, engineerr.Invalid("api.handleSnapshot", "lookback_months must be an integer"))
		return
	}

	query := snapshot.Query{
		MinLon: minLon, MinLat: minLat, MaxLon: maxLon, MaxLat: maxLat,
		LookbackMonths: lookback,
		TimeOfDay:      config.TimeOfDay(q.Get("time_of_day")),
	}
	if err := query.Validate(); err != nil {
		writeError(w, err)
		return
	}

	version, _ := d.Cache.CurrentVersion(r.Context())
	fp := cache.Fingerprint{
		Operation:      "snapshot",
		SpatialKey:     fmt.Sprintf("%.6f,%.6f,%.6f,%.6f", minLon, minLat, maxLon, maxLat),
		LookbackMonths: lookback,
		TimeOfDay:      query.TimeOfDay,
		Version:        version,
	}
	key := fp.Key()

	var cached snapshotOut
	if hit, _ := d.Cache.Get(r.Context(), "snapshot", key, &cached); hit {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	result, err := d.Snapshot.Run(r.Context(), query)
	if err != nil {
		writeError(w, err)
		return
	}
	out := toSnapshotOut(result, [4]float64{minLon, minLat, maxLon, maxLat})
	_ = d.Cache.Set(r.Context(), key, out)
	writeJSON(w, http.StatusOK, out)
}

func (d *Deps) handleRoutesSafe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer func() { metrics.RouteScoreDurationMs.Observe(float64(time.Since(start).Milliseconds())) }()
	metrics.RouteScoreRequestsTotal.Inc()

	var req routesSafeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engineerr.Invalid("api.handleRoutesSafe", "malformed request body"))
		return
	}
	if len(req.Candidates) == 0 {
		writeError(w, engineerr.Invalid("api.handleRoutesSafe", "at least one candidate is required"))
		return
	}
	metrics.RouteScoreCandidatesTotal.Observe(float64(len(req.Candidates)))

	inputs := make([]routescorer.RouteInput, len(req.Candidates))
	for i, c := range req.Candidates {
		poly := make([]gridmodel.Point, len(c.Polyline))
		for j, p := range c.Polyline {
			poly[j] = gridmodel.Point{Lon: p[0], Lat: p[1]}
		}
		inputs[i] = routescorer.RouteInput{
			Polyline:       poly,
			LookbackMonths: req.LookbackMonths,
			TimeOfDay:      config.TimeOfDay(req.TimeOfDay),
			DistanceMeters: c.DistanceMeters,
			DurationSecs:   c.DurationSecs,
		}
	}

	version, _ := d.Cache.CurrentVersion(r.Context())
	fp := cache.Fingerprint{
		Operation:      "route_score",
		SpatialKey:     routeBatchSpatialKey(inputs),
		LookbackMonths: req.LookbackMonths,
		TimeOfDay:      config.TimeOfDay(req.TimeOfDay),
		Version:        version,
	}
	key := fp.Key()

	var cached routeBatchOut
	if hit, _ := d.Cache.Get(r.Context(), "route", key, &cached); hit {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	results, err := d.Scorer.ScoreBatch(r.Context(), inputs)
	if err != nil {
		if engineerr.Is(err, engineerr.KindTimeout) {
			metrics.RouteScoreTimeoutsTotal.Inc()
		}
		writeError(w, err)
		return
	}

	out := routeBatchOut{Routes: make([]routeOut, len(results))}
	for i, res := range results {
		if res == nil {
			continue
		}
		out.Routes[i] = toRouteOut(res)
	}
	_ = d.Cache.Set(r.Context(), key, out)
	writeJSON(w, http.StatusOK, out)
}

type ingestMonthRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

func (d *Deps) handleIngestLatest(w http.ResponseWriter, r *http.Request) {
	month := ingest.CurrentMonth(time.Now())
	if err := ingest.FetchAndImportMonth(r.Context(), d.Feed, d.Events, d.Aggregator, d.Config.SoutheamptonBBox, month); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "month": month.Format("2006-01")})
}

func (d *Deps) handleIngestMonth(w http.ResponseWriter, r *http.Request) {
	var req ingestMonthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engineerr.Invalid("api.handleIngestMonth", "malformed request body"))
		return
	}
	month := time.Date(req.Year, time.Month(req.Month), 1, 0, 0, 0, 0, time.UTC)
	if err := ingest.FetchAndImportMonth(r.Context(), d.Feed, d.Events, d.Aggregator, d.Config.SoutheamptonBBox, month); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "month": month.Format("2006-01")})
}

type rebuildGridRequest struct {
	Months int `json:"months"`
}

func (d *Deps) handleRebuildGrid(w http.ResponseWriter, r *http.Request) {
	var req rebuildGridRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, engineerr.Invalid("api.handleRebuildGrid", "malformed request body"))
		return
	}
	if err := d.Aggregator.Rebuild(r.Context(), req.Months); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d *Deps) handleValidateGridHealth(w http.ResponseWriter, r *http.Request) {
	monthStr := r.URL.Query().Get("month")
	month, err := time.Parse("2006-01", monthStr)
	if err != nil {
		writeError(w, engineerr.Invalid("api.handleValidateGridHealth", "month must be formatted YYYY-MM"))
		return
	}
	violations, err := d.Aggregator.ValidateGridHealth(r.Context(), month)
	if err != nil {
		writeError(w, err)
		return
	}
	logger.L().Info("validate_grid_health_done", "month", monthStr, "violations", len(violations))
	writeJSON(w, http.StatusOK, map[string]any{"month": monthStr, "violations": violations})
}
