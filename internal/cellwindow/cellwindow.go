// 包 cellwindow：snapshot 与 routescorer 共享的"按包围盒+回溯窗口取格并折算"步骤
// 背景：snapshot 与 routescorer 都要求对同一批 SafetyCell 做相同的时近/时段折算，
// 两处必须调用同一份函数；把这一步单独收敛到这里，避免两个读侧各写一份容易分叉的 SQL。
package cellwindow

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/saferoute/risk-engine/internal/h3grid"
	"github.com/saferoute/risk-engine/internal/scoring"
)

// Group 是窗口折算后的单个 h3_index 聚合结果。
type Group struct {
	H3Index    string
	Geom       gridmodel.Polygon
	WGroup     float64 // recency+tod-weighted sum, shared by snapshot and routescorer
	CountTotal int
	Stats      map[string]int
}

// BBox is (minLon, minLat, maxLon, maxLat).
type BBox [4]float64

// Fetch 查询窗口内与 bbox 相交的 safety_cells，按 h3_index 分组并折算出 WGroup。
func Fetch(ctx context.Context, db *sql.DB, categories map[string]gridmodel.CrimeCategory, bbox BBox, lookbackMonths int, tod config.TimeOfDay, now time.Time) (map[string]*Group, []time.Time, error) {
	months := TargetMonths(now, lookbackMonths)
	fromMonth, toMonth := months[len(months)-1], months[0]

	rows, err := db.QueryContext(ctx, `
		SELECT h3_index, month, crime_count_total, crime_count_weighted, stats
		FROM safety_cells
		WHERE month BETWEEN $1 AND $2
		  AND ST_Intersects(geom, ST_MakeEnvelope($3,$4,$5,$6,4326)::geography)`,
		fromMonth, toMonth, bbox[0], bbox[1], bbox[2], bbox[3])
	if err != nil {
		return nil, nil, engineerr.Upstream("cellwindow.Fetch", "query", err)
	}
	defer rows.Close()

	groups := map[string]*Group{}
	for rows.Next() {
		var h3Index string
		var month time.Time
		var total int
		var weighted float64
		var statsJSON []byte
		if err := rows.Scan(&h3Index, &month, &total, &weighted, &statsJSON); err != nil {
			return nil, nil, engineerr.Upstream("cellwindow.Fetch", "scan", err)
		}
		var stats map[string]int
		if err := json.Unmarshal(statsJSON, &stats); err != nil {
			return nil, nil, engineerr.Inconsistent("cellwindow.Fetch", "cell "+h3Index+" has malformed stats")
		}

		g, ok := groups[h3Index]
		if !ok {
			geom, err := h3grid.BoundaryOf(h3Index)
			if err != nil {
				// I3 violation: skip the offending cell, keep scanning the rest of the window.
				continue
			}
			g = &Group{H3Index: h3Index, Geom: geom, Stats: map[string]int{}}
			groups[h3Index] = g
		}

		k := scoring.MonthsAgo(month, now)
		var wCell float64
		if tod != "" {
			for cat, n := range stats {
				c := categories[cat]
				wCell += c.HarmWeight * c.TODMultiplier(tod) * float64(n)
			}
		} else {
			wCell = weighted
		}
		g.WGroup += wCell * scoring.RecencyWeight(k)
		g.CountTotal += total
		for cat, n := range stats {
			g.Stats[cat] += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, engineerr.Upstream("cellwindow.Fetch", "rows", err)
	}
	return groups, months, nil
}

// TargetMonths returns lookbackMonths month-firsts starting at now's month, most recent first.
func TargetMonths(now time.Time, lookbackMonths int) []time.Time {
	cur := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]time.Time, lookbackMonths)
	for i := 0; i < lookbackMonths; i++ {
		out[i] = cur.AddDate(0, -i, 0)
	}
	return out
}
