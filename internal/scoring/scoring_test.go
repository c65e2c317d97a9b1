package scoring

import (
	"testing"
	"time"

	"github.com/saferoute/risk-engine/internal/config"
	"github.com/saferoute/risk-engine/internal/gridmodel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestR_BoundaryCases(t *testing.T) {
	assert.Equal(t, 0.0, R(0))
	assert.InDelta(t, 0.2, R(5), 1e-9)
	assert.InDelta(t, 0.95, R(200), 1e-9)
	assert.InDelta(t, 1.0, R(400), 1e-9)
	assert.InDelta(t, 1.0, R(1000), 1e-9)
}

func TestR_Monotonic(t *testing.T) {
	prev := R(0)
	for w := 1.0; w <= 500; w += 0.5 {
		cur := R(w)
		require.GreaterOrEqual(t, cur, prev-1e-12, "R must be non-decreasing at w=%v", w)
		prev = cur
	}
}

func TestSafetyScore_ZeroWeight(t *testing.T) {
	safety := SafetyScore(R(0))
	assert.Equal(t, 100.0, safety)
	assert.Equal(t, RiskLow, ClassOf(safety))
}

func TestScenario1_SingleViolentCrimeCurrentMonth(t *testing.T) {
	cats, err := gridmodel.LoadCategories(&config.Config{})
	require.NoError(t, err)
	violent := cats["violent-crime"]
	w := WeightedContribution(violent, "") * RecencyWeight(0)
	assert.InDelta(t, 3.0, w, 1e-9)
	risk := R(w)
	assert.InDelta(t, 0.12, risk, 1e-3)
	assert.InDelta(t, 88.0, SafetyScore(risk), 0.1)
}

func TestScenario2_NightFilter(t *testing.T) {
	cats, err := gridmodel.LoadCategories(&config.Config{})
	require.NoError(t, err)
	violent := cats["violent-crime"]
	w := WeightedContribution(violent, config.TimeOfDayNight) * RecencyWeight(0)
	assert.InDelta(t, 7.5, w, 1e-9)
	risk := R(w)
	assert.InDelta(t, 0.2333, risk, 1e-3)
	assert.InDelta(t, 76.7, SafetyScore(risk), 0.1)
}

func TestScenario3_RecencyDecay(t *testing.T) {
	cats, err := gridmodel.LoadCategories(&config.Config{})
	require.NoError(t, err)
	violent := cats["violent-crime"]
	w := WeightedContribution(violent, "") * RecencyWeight(12)
	assert.InDelta(t, 1.05, w, 1e-9)
	risk := R(w)
	assert.InDelta(t, 0.042, risk, 1e-3)
	assert.InDelta(t, 95.8, SafetyScore(risk), 0.1)
}

func TestRecencyWeight_BeyondTable(t *testing.T) {
	assert.Equal(t, 0.30, RecencyWeight(13))
	assert.Equal(t, 0.30, RecencyWeight(120))
	assert.Equal(t, 1.00, RecencyWeight(0))
}

func TestMonthsAgo(t *testing.T) {
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, MonthsAgo(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 12, MonthsAgo(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), now))
	assert.Equal(t, 1, MonthsAgo(time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC), now))
}

func TestP6_RecencyBoundDoesNotIncreaseRisk(t *testing.T) {
	w := 10.0
	risk12 := R(w * RecencyWeight(12))
	risk3 := R(w * RecencyWeight(3))
	assert.LessOrEqual(t, risk12, risk3+1e-9)
}
