// 包 snapshot：C5 Snapshot Service —— 包围盒 + 回溯月数 + 可选时段的读侧查询
// 背景：查询侧的时近/时段折算严格不落盘，只影响本次请求的响应，不写回 SafetyCell；
// 折算本身在 internal/cellwindow 里与 routescorer 共享（两处必须用同一份函数，否则热力图
// 和路线段会对同一个格子算出不同的分）。本包只负责把折算结果整形为快照的输出契约
// （geometry、breakdown、summary）。
package snapshot

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/saferoute/risk-engine/internal/cellwindow"
	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/scoring"
)

// Service 持有数据库连接与分类表，回答 bbox+lookback 快照查询。
type Service struct {
	db         *sql.DB
	categories map[string]gridmodel.CrimeCategory
	now        func() time.Time
}

func New(db *sql.DB, categories map[string]gridmodel.CrimeCategory) *Service {
	return &Service{db: db, categories: categories, now: time.Now}
}

// Query 是 GET /safety/snapshot 的输入参数，闭合校验由 Validate 完成；HTTP 层在查缓存前调用它，
// Run 入口也会再调用一次。
type Query struct {
	MinLon, MinLat, MaxLon, MaxLat float64
	LookbackMonths                 int
	TimeOfDay                      config.TimeOfDay // "" if not provided
}

// CellResult 是输出契约里单个 h3_index 分组的聚合结果。
type CellResult struct {
	H3Index         string
	Geometry        gridmodel.Polygon
	CrimeCountTotal int
	CrimeBreakdown  map[string]int
	RiskScore       float64
	SafetyScore     float64
	RiskClass       scoring.RiskClass
}

// Summary 汇总一次快照查询的整体统计。
type Summary struct {
	CellCount    int
	TotalCrimes  int
	MeanSafety   float64
	ArgMaxRiskH3 string // highest risk_score, ties broken lexicographically
	ArgMinRiskH3 string // lowest risk_score, ties broken lexicographically
}

// Result 是快照查询的完整输出，供 HTTP 层序列化为 GeoJSON 形状。
type Result struct {
	Cells          []CellResult
	Summary        Summary
	MonthsIncluded []string
}

func (q Query) Validate() error {
	if q.MinLon >= q.MaxLon || q.MinLat >= q.MaxLat {
		return engineerr.Invalid("snapshot.Query", "bbox is degenerate")
	}
	if !config.ValidLookbackMonths(q.LookbackMonths) {
		return engineerr.Invalid("snapshot.Query", "lookback_months out of [1,24]")
	}
	if q.TimeOfDay != "" {
		if _, ok := config.ParseTimeOfDay(string(q.TimeOfDay)); !ok {
			return engineerr.Invalid("snapshot.Query", "unknown time_of_day")
		}
	}
	return nil
}

// Run fetches the cell window covering q, folds each cell's recency/time-of-day weights,
// scores it, and assembles the summary (mean safety, argmax/argmin risk cells).
func (s *Service) Run(ctx context.Context, q Query) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	now := s.now()
	groups, months, err := cellwindow.Fetch(ctx, s.db, s.categories,
		cellwindow.BBox{q.MinLon, q.MinLat, q.MaxLon, q.MaxLat}, q.LookbackMonths, q.TimeOfDay, now)
	if err != nil {
		return nil, err
	}

	h3Indexes := make([]string, 0, len(groups))
	for h3Index := range groups {
		h3Indexes = append(h3Indexes, h3Index)
	}
	sort.Strings(h3Indexes)

	cells := make([]CellResult, 0, len(groups))
	totalCrimes := 0
	safetySum := 0.0
	var argMaxH3, argMinH3 string
	var maxRisk, minRisk float64
	first := true

	for _, h3Index := range h3Indexes {
		g := groups[h3Index]
		risk := scoring.R(g.WGroup)
		safety := scoring.SafetyScore(risk)
		breakdown := map[string]int{}
		for cat, n := range g.Stats {
			if n > 0 {
				breakdown[cat] = n
			}
		}
		cells = append(cells, CellResult{
			H3Index:         h3Index,
			Geometry:        g.Geom,
			CrimeCountTotal: g.CountTotal,
			CrimeBreakdown:  breakdown,
			RiskScore:       scoring.RiskScoreRounded(risk),
			SafetyScore:     safety,
			RiskClass:       scoring.ClassOf(safety),
		})
		totalCrimes += g.CountTotal
		safetySum += safety

		if first || risk > maxRisk {
			maxRisk, argMaxH3 = risk, h3Index
		}
		if first || risk < minRisk {
			minRisk, argMinH3 = risk, h3Index
		}
		first = false
	}

	meanSafety := 0.0
	if len(cells) > 0 {
		meanSafety = safetySum / float64(len(cells))
	}

	monthsIncluded := make([]string, len(months))
	for i, m := range months {
		monthsIncluded[i] = m.Format("2006-01")
	}

	return &Result{
		Cells: cells,
		Summary: Summary{
			CellCount:    len(cells),
			TotalCrimes:  totalCrimes,
			MeanSafety:   scoring.RiskScoreRounded(meanSafety), // reuse 3-decimal rounding helper for the mean
			ArgMaxRiskH3: argMaxH3,
			ArgMinRiskH3: argMinH3,
		},
		MonthsIncluded: monthsIncluded,
	}, nil
}
