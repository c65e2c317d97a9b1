// 包 scoring：风险评分的共享原语——分类 harm 权重、时段乘数、时近权重与分段线性风险函数
// 背景：蜂窝快照与路线分段必须使用同一个 R(w)，否则同一个格子在两处会算出不同的分数；
// 因此本包是整个引擎唯一允许定义 R(w) 的地方，Snapshot Service 与 Route Scorer 都只调用这里。
package scoring

import (
	"math"
	"time"

	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/gridmodel"
)

// recencyWeights 按 months-ago 索引；k>12 统一取 0.30。
var recencyWeights = []float64{
	1.00, 0.95, 0.90, 0.85, 0.75, 0.70, 0.65, 0.60, 0.55, 0.50, 0.45, 0.40, 0.35,
}

const recencyWeightBeyond = 0.30

// RecencyWeight 返回月份差 k（>=0）对应的时近权重；k>12 恒为 0.30。
func RecencyWeight(k int) float64 {
	if k < 0 {
		k = 0
	}
	if k >= len(recencyWeights) {
		return recencyWeightBeyond
	}
	return recencyWeights[k]
}

// MonthsAgo 计算 month 相对 now 所在月份的差值（非负，now 所在月为 0）。
// 约束：按年*12+月计算，不依赖天数，避免跨月边界的天数差异影响结果。
func MonthsAgo(month, now time.Time) int {
	y1, m1, _ := now.Date()
	y2, m2, _ := month.Date()
	k := (y1-y2)*12 + int(m1-m2)
	if k < 0 {
		k = 0
	}
	return k
}

// riskThresholds 是分段线性风险函数的断点：T = (5, 20, 50, 100, 200)。
var riskThresholds = [5]float64{5, 20, 50, 100, 200}

// R 是整个引擎唯一的风险函数，w>=0，返回值落在 [0,1]。
func R(w float64) float64 {
	switch {
	case w <= 0:
		return 0
	case w < riskThresholds[0]:
		return 0.2 * w / riskThresholds[0]
	case w < riskThresholds[1]:
		return 0.2 + 0.2*(w-riskThresholds[0])/(riskThresholds[1]-riskThresholds[0])
	case w < riskThresholds[2]:
		return 0.4 + 0.2*(w-riskThresholds[1])/(riskThresholds[2]-riskThresholds[1])
	case w < riskThresholds[3]:
		return 0.6 + 0.2*(w-riskThresholds[2])/(riskThresholds[3]-riskThresholds[2])
	case w < riskThresholds[4]:
		return 0.8 + 0.15*(w-riskThresholds[3])/(riskThresholds[4]-riskThresholds[3])
	default:
		capped := math.Min(w-riskThresholds[4], riskThresholds[4])
		return math.Min(0.95+0.05*capped/riskThresholds[4], 1.0)
	}
}

// RiskClass 按 safety 分段：low >= 75, medium [50,75), high < 50.
type RiskClass string

const (
	RiskLow    RiskClass = "low"
	RiskMedium RiskClass = "medium"
	RiskHigh   RiskClass = "high"
)

func ClassOf(safety float64) RiskClass {
	switch {
	case safety >= 75:
		return RiskLow
	case safety >= 50:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// SafetyScore 把风险值折算为 0-100 的安全分并按 1 位小数四舍五入。
func SafetyScore(risk float64) float64 {
	return roundTo((1 - risk) * 100, 1)
}

// RiskScoreRounded 按 3 位小数四舍五入，用于输出契约。
func RiskScoreRounded(risk float64) float64 { return roundTo(risk, 3) }

func roundTo(v float64, decimals int) float64 {
	mul := math.Pow(10, float64(decimals))
	return math.Round(v*mul) / mul
}

// WeightedContribution 计算单个事件在给定时段下对分组权重的贡献：harm_weight × tod 乘数。
// time_of_day 为空（零值）时乘数恒为 1。
func WeightedContribution(cat gridmodel.CrimeCategory, tod config.TimeOfDay) float64 {
	if tod == "" {
		return cat.HarmWeight
	}
	return cat.HarmWeight * cat.TODMultiplier(tod)
}
