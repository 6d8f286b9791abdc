// Package trend implements the seven-rule moving-average trend template
// applied as the first stage of the screening funnel.
package trend

import (
	"github.com/markcheno/go-talib"
)

// lookback caps the window used for the 52-week low/high rules.
const lookback = 252

// RuleResult is the outcome of a single trend rule.
type RuleResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

// Result is the outcome of the full trend template for one ticker.
type Result struct {
	Ticker string       `json:"ticker"`
	Passed bool         `json:"passed"`
	Rules  []RuleResult `json:"rules"`
}

// smaAt returns the simple moving average value at index idx, or false when
// the window is not fully defined there.
func smaAt(sma []float64, idx, period int) (float64, bool) {
	if idx < period-1 || idx >= len(sma) {
		return 0, false
	}
	return sma[idx], true
}

// Screen evaluates the seven-rule trend template over a chronological close
// series. Any rule whose inputs are undefined evaluates to false; the
// overall result is the conjunction of all seven.
func Screen(ticker string, closes []float64) Result {
	n := len(closes)
	rules := make([]RuleResult, 0, 7)

	var price float64
	if n > 0 {
		price = closes[n-1]
	}

	var sma50, sma150, sma200 []float64
	if n >= 50 {
		sma50 = talib.Sma(closes, 50)
	}
	if n >= 150 {
		sma150 = talib.Sma(closes, 150)
	}
	if n >= 200 {
		sma200 = talib.Sma(closes, 200)
	}

	ma50, ok50 := smaAt(sma50, n-1, 50)
	ma150, ok150 := smaAt(sma150, n-1, 150)
	ma200, ok200 := smaAt(sma200, n-1, 200)

	// R1: price above both long moving averages.
	rules = append(rules, RuleResult{
		Name:   "price_above_ma150_ma200",
		Passed: ok150 && ok200 && price > ma150 && price > ma200,
	})

	// R2: MA150 above MA200.
	rules = append(rules, RuleResult{
		Name:   "ma150_above_ma200",
		Passed: ok150 && ok200 && ma150 > ma200,
	})

	// R3: MA200 trending up over the last twenty bars (needs >= 220 bars).
	ma200Past, okPast := smaAt(sma200, n-21, 200)
	rules = append(rules, RuleResult{
		Name:   "ma200_trending_up",
		Passed: ok200 && okPast && ma200 > ma200Past,
	})

	// R4: MA50 above both longer averages.
	rules = append(rules, RuleResult{
		Name:   "ma50_above_ma150_ma200",
		Passed: ok50 && ok150 && ok200 && ma50 > ma150 && ma50 > ma200,
	})

	// R5: price above MA50.
	rules = append(rules, RuleResult{
		Name:   "price_above_ma50",
		Passed: ok50 && price > ma50,
	})

	// R6/R7: price versus the trailing 52-week range.
	low, high, okRange := trailingRange(closes)
	rules = append(rules, RuleResult{
		Name:   "price_30pct_above_52w_low",
		Passed: okRange && price >= 1.30*low,
	})
	rules = append(rules, RuleResult{
		Name:   "price_within_25pct_of_52w_high",
		Passed: okRange && price >= 0.75*high,
	})

	passed := true
	for _, rule := range rules {
		if !rule.Passed {
			passed = false
			break
		}
	}

	return Result{Ticker: ticker, Passed: passed, Rules: rules}
}

// trailingRange returns the min and max close over the trailing window of up
// to 252 bars.
func trailingRange(closes []float64) (low, high float64, ok bool) {
	n := len(closes)
	if n == 0 {
		return 0, 0, false
	}

	start := n - lookback
	if start < 0 {
		start = 0
	}

	low, high = closes[start], closes[start]
	for _, c := range closes[start+1:] {
		if c < low {
			low = c
		}
		if c > high {
			high = c
		}
	}
	return low, high, true
}
