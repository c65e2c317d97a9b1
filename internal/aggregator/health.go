// 文档注释：只读网格健康度校验
// 背景：原始实现（scripts/setup_database.py + app/core/exceptions.py）在初始化阶段做过一次性
// 完整性检查；这里把 validate-grid-health 管理操作实现为一次
// 不修改数据的巡检，逐行核对 I1-I3，命中即记一条 HealthViolation（cell_id + 原因），继续巡检其余行。
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/saferoute/risk-engine/internal/engineerr"
	"github.com/saferoute/risk-engine/internal/h3grid"
)

// HealthViolation 描述单个 SafetyCell 上被发现的不变式违规。
type HealthViolation struct {
	CellID string
	Reason string
}

// ValidateGridHealth 扫描指定月份的 safety_cells，校验 I1（count 守恒）、I2（weighted 守恒，
// 需要传入分类表以重算期望值）与 I3（h3_index 合法且为分辨率 10）。不修改任何数据。
func (a *Aggregator) ValidateGridHealth(ctx context.Context, month time.Time) ([]HealthViolation, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT cell_id, h3_index, crime_count_total, crime_count_weighted, stats
		FROM safety_cells WHERE month = $1`, month)
	if err != nil {
		return nil, engineerr.Upstream("aggregator.ValidateGridHealth", "query", err)
	}
	defer rows.Close()

	var violations []HealthViolation
	for rows.Next() {
		var cellID, h3Index string
		var total int
		var weighted float64
		var statsJSON []byte
		if err := rows.Scan(&cellID, &h3Index, &total, &weighted, &statsJSON); err != nil {
			return nil, engineerr.Upstream("aggregator.ValidateGridHealth", "scan", err)
		}

		var stats map[string]int
		if err := json.Unmarshal(statsJSON, &stats); err != nil {
			violations = append(violations, HealthViolation{CellID: cellID, Reason: "stats not valid json: " + err.Error()})
			continue
		}

		sum := 0
		expectedWeighted := 0.0
		for cat, n := range stats {
			sum += n
			expectedWeighted += a.categories[cat].HarmWeight * float64(n)
		}
		if sum != total {
			violations = append(violations, HealthViolation{CellID: cellID, Reason: fmt.Sprintf("I1 violated: crime_count_total=%d sum(stats)=%d", total, sum)})
		}
		if diff := expectedWeighted - weighted; diff > 1e-6 || diff < -1e-6 {
			violations = append(violations, HealthViolation{CellID: cellID, Reason: fmt.Sprintf("I2 violated: crime_count_weighted=%.6f expected=%.6f", weighted, expectedWeighted)})
		}
		if res, err := h3grid.ResolutionOf(h3Index); err != nil || res != h3grid.Resolution {
			violations = append(violations, HealthViolation{CellID: cellID, Reason: fmt.Sprintf("I3 violated: h3_index=%s not a valid resolution-%d cell", h3Index, h3grid.Resolution)})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, engineerr.Upstream("aggregator.ValidateGridHealth", "rows", err)
	}
	return violations, nil
}
