package trend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func risingSeries(n int, start, slope float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + slope*float64(i)
	}
	return out
}

func TestScreen_UptrendPassesAllRules(t *testing.T) {
	closes := risingSeries(300, 100, 0.5)

	result := Screen("AAPL", closes)
	assert.True(t, result.Passed)
	require.Len(t, result.Rules, 7)
	for _, rule := range result.Rules {
		assert.True(t, rule.Passed, rule.Name)
	}
}

func TestScreen_DeathCrossFails(t *testing.T) {
	// Uptrend followed by a sharp 50-bar drop: the 50-day average falls
	// below the longer averages.
	closes := risingSeries(250, 100, 0.5)
	last := closes[len(closes)-1]
	for i := 1; i <= 50; i++ {
		closes = append(closes, last-3*float64(i))
	}

	result := Screen("XYZ", closes)
	assert.False(t, result.Passed)

	byName := map[string]bool{}
	for _, rule := range result.Rules {
		byName[rule.Name] = rule.Passed
	}
	assert.False(t, byName["ma50_above_ma150_ma200"])
	assert.False(t, byName["price_above_ma50"])
}

func TestScreen_ShortSeriesRulesUndefined(t *testing.T) {
	// 100 bars: MA150/MA200 undefined, so their rules evaluate false.
	closes := risingSeries(100, 100, 0.5)

	result := Screen("NEW", closes)
	assert.False(t, result.Passed)

	byName := map[string]bool{}
	for _, rule := range result.Rules {
		byName[rule.Name] = rule.Passed
	}
	assert.False(t, byName["price_above_ma150_ma200"])
	assert.False(t, byName["ma150_above_ma200"])
	assert.False(t, byName["ma200_trending_up"])
	// MA50 and the range rules remain defined.
	assert.True(t, byName["price_above_ma50"])
	assert.True(t, byName["price_30pct_above_52w_low"])
}

func TestScreen_R3NeedsTwoHundredTwentyBars(t *testing.T) {
	closes := risingSeries(210, 100, 0.5)

	result := Screen("SHORT", closes)
	byName := map[string]bool{}
	for _, rule := range result.Rules {
		byName[rule.Name] = rule.Passed
	}
	assert.False(t, byName["ma200_trending_up"])
}

func TestScreen_ConjunctionEqualsPerRuleAnd(t *testing.T) {
	for _, closes := range [][]float64{
		risingSeries(300, 100, 0.5),
		risingSeries(252, 50, -0.1),
		risingSeries(400, 10, 0.05),
	} {
		result := Screen("T", closes)
		want := true
		for _, rule := range result.Rules {
			want = want && rule.Passed
		}
		assert.Equal(t, want, result.Passed)
	}
}

func TestScreen_EmptySeries(t *testing.T) {
	result := Screen("EMPTY", nil)
	assert.False(t, result.Passed)
	for _, rule := range result.Rules {
		assert.False(t, rule.Passed, rule.Name)
	}
}

func TestTrailingRange(t *testing.T) {
	low, high, ok := trailingRange([]float64{5, 1, 9, 3})
	require.True(t, ok)
	assert.Equal(t, 1.0, low)
	assert.Equal(t, 9.0, high)

	// Window caps at the trailing 252 bars.
	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = float64(i)
	}
	low, high, ok = trailingRange(closes)
	require.True(t, ok)
	assert.Equal(t, 48.0, low)
	assert.Equal(t, 299.0, high)
}
