// 包 routescorer：C6 Route Scorer —— 折线切分、逐段格子相交、风险聚合
// 背景：与 Snapshot Service 共享 internal/cellwindow 的折算步骤，否则同一个格子在
// 热力图上与路线段上会算出不同的安全分——一个格子渲染成热力图瓦片和被一条路线段穿过，
// 必须用同一套打分函数。
package routescorer

import (
	"context"
	"database/sql"
	"math"
	"time"

	"github.com/saferoute/risk-engine/internal/cellwindow"
	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/scoring"
)

const bufferMeters = 50.0
const hotspotHighThreshold = 50.0
const hotspotCriticalThreshold = 100.0
const batchDeadline = 5 * time.Second

// Scorer 持有数据库连接与分类表，对单条或一批候选路线打分。
type Scorer struct {
	db         *sql.DB
	categories map[string]gridmodel.CrimeCategory
	now        func() time.Time
}

func New(db *sql.DB, categories map[string]gridmodel.CrimeCategory) *Scorer {
	return &Scorer{db: db, categories: categories, now: time.Now}
}

// RouteInput 是一条候选路线：折线顶点加上与快照一致的窗口/时段参数，
// Distance/Duration 仅用于 is_recommended 的 tie-break。
type RouteInput struct {
	Polyline       []gridmodel.Point
	LookbackMonths int
	TimeOfDay      config.TimeOfDay
	DistanceMeters float64
	DurationSecs   float64
}

func (r RouteInput) Validate() error {
	if len(r.Polyline) < 2 {
		return engineerr.Invalid("routescorer.RouteInput", "polyline needs at least 2 points")
	}
	if allPointsIdentical(r.Polyline) {
		return engineerr.Invalid("routescorer.RouteInput", "polyline is degenerate: all points are identical")
	}
	if !config.ValidLookbackMonths(r.LookbackMonths) {
		return engineerr.Invalid("routescorer.RouteInput", "lookback_months out of [1,24]")
	}
	if r.TimeOfDay != "" {
		if _, ok := config.ParseTimeOfDay(string(r.TimeOfDay)); !ok {
			return engineerr.Invalid("routescorer.RouteInput", "unknown time_of_day")
		}
	}
	return nil
}

func allPointsIdentical(points []gridmodel.Point) bool {
	first := points[0]
	for _, p := range points[1:] {
		if p.Lon != first.Lon || p.Lat != first.Lat {
			return false
		}
	}
	return true
}

// SegmentResult 是单个约 100 米切段的打分结果。
type SegmentResult struct {
	Index             int
	Midpoint          gridmodel.Point
	IntersectingCells int
	RawWeightedSum    float64 // sum(w_cell_group) across intersecting cells, before the 1/|cells| average
	Risk              float64 // (1/|cells|) * RawWeightedSum
}

// Hotspot flags a segment whose raw weighted sum crosses the high/critical thresholds.
type Hotspot struct {
	SegmentIndex int
	Midpoint     gridmodel.Point
	RiskLevel    string // "high" [50,100], "critical" (>100)
	Description  string
	RiskScore    float64
}

// RouteResult is the full scored output for one candidate route.
type RouteResult struct {
	Segments       []SegmentResult
	WRoute         float64
	RiskScore      float64
	SafetyScore    float64
	RiskClass      scoring.RiskClass
	Hotspots       []Hotspot
	CrimeBreakdown map[string]int
	IsRecommended  bool
}

// Score segments the polyline, fetches the intersecting cell window once, then folds each
// segment's buffer against the candidate cells to produce a per-segment and route-level score.
func (s *Scorer) Score(ctx context.Context, in RouteInput) (*RouteResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	segments := Segmentize(in.Polyline)
	if len(segments) == 0 {
		return &RouteResult{WRoute: 0, SafetyScore: 100, RiskClass: scoring.RiskLow, CrimeBreakdown: map[string]int{}}, nil
	}

	bbox := routeEnvelope(in.Polyline, bufferMeters)
	groups, _, err := cellwindow.Fetch(ctx, s.db, s.categories, bbox, in.LookbackMonths, in.TimeOfDay, now)
	if err != nil {
		return nil, err
	}
	index := BuildRTree(groups)

	results := make([]SegmentResult, len(segments))
	seenCells := map[string]bool{}
	breakdown := map[string]int{}
	var hotspots []Hotspot
	sumRisk := 0.0

	for i, seg := range segments {
		buffer := bufferStadium(seg, bufferMeters)
		bMinLon, bMinLat, bMaxLon, bMaxLat := buffer.Envelope()
		candidates := index.Query([4]float64{bMinLon, bMinLat, bMaxLon, bMaxLat})

		raw := 0.0
		hit := 0
		for _, h3Index := range candidates {
			g := groups[h3Index]
			if g == nil || !polygonsIntersect(buffer, g.Geom) {
				continue
			}
			hit++
			raw += g.WGroup
			if !seenCells[h3Index] {
				seenCells[h3Index] = true
				for cat, n := range g.Stats {
					breakdown[cat] += n
				}
			}
		}

		risk := 0.0
		if hit > 0 {
			risk = raw / float64(hit)
		}
		results[i] = SegmentResult{Index: seg.Index, Midpoint: midpoint(seg.Start, seg.End), IntersectingCells: hit, RawWeightedSum: raw, Risk: risk}
		sumRisk += risk

		if raw >= hotspotHighThreshold {
			level := "high"
			if raw > hotspotCriticalThreshold {
				level = "critical"
			}
			hotspots = append(hotspots, Hotspot{
				SegmentIndex: seg.Index,
				Midpoint:     results[i].Midpoint,
				RiskLevel:    level,
				Description:  hotspotDescription(level, raw),
				RiskScore:    scoring.RiskScoreRounded(scoring.R(raw)),
			})
		}
	}

	wRoute := sumRisk / float64(len(segments))
	risk := scoring.R(wRoute)
	safety := scoring.SafetyScore(risk)

	return &RouteResult{
		Segments:       results,
		WRoute:         wRoute,
		RiskScore:      scoring.RiskScoreRounded(risk),
		SafetyScore:    safety,
		RiskClass:      scoring.ClassOf(safety),
		Hotspots:       hotspots,
		CrimeBreakdown: breakdown,
	}, nil
}

// ScoreBatch scores every candidate concurrently with a shared deadline and marks the single
// best-scoring route as recommended, tie-breaking on shorter distance then shorter duration.
// Follows the teacher's manual-goroutines-plus-channel-collection style
// (internal/plugins/manager.go) rather than an errgroup dependency.
func (s *Scorer) ScoreBatch(ctx context.Context, candidates []RouteInput) ([]*RouteResult, error) {
	ctx, cancel := context.WithTimeout(ctx, batchDeadline)
	defer cancel()

	type outcome struct {
		index  int
		result *RouteResult
		err    error
	}
	out := make(chan outcome, len(candidates))

	for i, in := range candidates {
		go func(i int, in RouteInput) {
			res, err := s.Score(ctx, in)
			out <- outcome{index: i, result: res, err: err}
		}(i, in)
	}

	results := make([]*RouteResult, len(candidates))
	var firstErr error
	remaining := len(candidates)
	timedOut := false
collect:
	for remaining > 0 {
		select {
		case o := <-out:
			if o.err != nil && firstErr == nil {
				firstErr = o.err
			}
			results[o.index] = o.result
			remaining--
		case <-ctx.Done():
			timedOut = true
			break collect
		}
	}

	if timedOut {
		completed := false
		for _, r := range results {
			if r != nil {
				completed = true
				break
			}
		}
		if !completed {
			return nil, engineerr.Timeout("routescorer.ScoreBatch", "batch deadline exceeded", ctx.Err())
		}
		// at least one candidate finished before the deadline; return what we have
		// instead of discarding it (the caller abandoned the rest, not the batch).
	} else if firstErr != nil {
		return nil, firstErr
	}

	best := -1
	for i, r := range results {
		if r == nil {
			continue
		}
		if best == -1 || better(candidates[i], results[i], candidates[best], results[best]) {
			best = i
		}
	}
	if best >= 0 {
		results[best].IsRecommended = true
	}
	return results, nil
}

func better(a RouteInput, ar *RouteResult, b RouteInput, br *RouteResult) bool {
	if ar.SafetyScore != br.SafetyScore {
		return ar.SafetyScore > br.SafetyScore
	}
	if a.DistanceMeters != b.DistanceMeters {
		return a.DistanceMeters < b.DistanceMeters
	}
	return a.DurationSecs < b.DurationSecs
}

func hotspotDescription(level string, raw float64) string {
	if level == "critical" {
		return "segment crosses a high-activity cell cluster; weighted crime load exceeds the critical threshold"
	}
	return "segment crosses an elevated-activity cell; weighted crime load exceeds the high threshold"
}

// routeEnvelope 计算折线的包围盒并按 bufferMeters 外扩，确保 cellwindow.Fetch 取到的格子
// 覆盖所有段缓冲区可能触及的范围。
func routeEnvelope(points []gridmodel.Point, bufferMeters float64) cellwindow.BBox {
	minLon, minLat := points[0].Lon, points[0].Lat
	maxLon, maxLat := points[0].Lon, points[0].Lat
	for _, p := range points[1:] {
		minLon = math.Min(minLon, p.Lon)
		minLat = math.Min(minLat, p.Lat)
		maxLon = math.Max(maxLon, p.Lon)
		maxLat = math.Max(maxLat, p.Lat)
	}
	latPad := bufferMeters / 111320.0
	lonPad := bufferMeters / (111320.0 * math.Max(0.01, math.Cos(minLat*math.Pi/180)))
	return cellwindow.BBox{minLon - lonPad, minLat - latPad, maxLon + lonPad, maxLat + latPad}
}
