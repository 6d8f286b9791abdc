package vcp

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// CheckResult carries the outcome of a single screening check.
type CheckResult struct {
	Name    string `json:"name"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// IsPivotGood reports whether the final contraction is tight enough to act
// as a buy pivot and the price is still above its low.
func IsPivotGood(pattern Pattern, currentPrice float64) bool {
	if len(pattern) == 0 {
		return false
	}

	last := pattern[len(pattern)-1]
	if last.HighPrice == 0 {
		return false
	}

	return last.Depth() <= PivotPricePerc && currentPrice > last.LowPrice
}

// IsCorrectionDeep reports whether the total base depth (first high to the
// deepest low) exceeds the maximum tolerated correction. A zero first high
// is treated as deep.
func IsCorrectionDeep(pattern Pattern) bool {
	if len(pattern) == 0 {
		return false
	}

	firstHigh := pattern[0].HighPrice
	if firstHigh == 0 {
		return true
	}

	deepestLow := pattern[0].LowPrice
	for _, c := range pattern[1:] {
		if c.LowPrice < deepestLow {
			deepestLow = c.LowPrice
		}
	}

	return (firstHigh-deepestLow)/firstHigh >= MaxCorrectionPerc
}

// IsDemandDry reports whether supply is drying up through the final
// contraction: the volume trend over the contraction must be flat or
// falling, and the most recent three days must not show rising volume into
// falling prices.
func IsDemandDry(pattern Pattern, prices, volumes []float64) bool {
	if len(pattern) == 0 {
		return false
	}

	last := pattern[len(pattern)-1]
	if last.HighIdx < 0 || last.LowIdx >= len(volumes) {
		return false
	}

	volSlice := volumes[last.HighIdx : last.LowIdx+1]
	if len(volSlice) < 2 {
		return false
	}

	xs := make([]float64, len(volSlice))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, volSlice, nil, false)
	if slope > 0 {
		return false
	}

	// Recent selling pressure: price strictly falling while volume strictly
	// rising over the last three days of the contraction.
	if len(volSlice) > 3 {
		priceSlice := prices[last.HighIdx : last.LowIdx+1]
		n := len(volSlice)
		priceFalling := priceSlice[n-3] > priceSlice[n-1]
		volumeRising := volSlice[n-3] < volSlice[n-1]
		if priceFalling && volumeRising {
			return false
		}
	}

	return true
}

// ScreeningResult is the aggregate outcome of the VCP checks.
type ScreeningResult struct {
	Passed    bool          `json:"passed"`
	Footprint string        `json:"footprint"`
	Checks    []CheckResult `json:"checks"`
}

// RunScreening evaluates the full check set over a detected pattern.
// Pass requires a tight pivot, a tolerable correction, and dry demand.
func RunScreening(pattern Pattern, prices, volumes []float64, currentPrice float64) ScreeningResult {
	if len(pattern) == 0 {
		return ScreeningResult{
			Passed: false,
			Checks: []CheckResult{{
				Name:    "pattern",
				Passed:  false,
				Message: "no contraction pattern detected",
			}},
		}
	}

	pivotGood := IsPivotGood(pattern, currentPrice)
	correctionDeep := IsCorrectionDeep(pattern)
	demandDry := IsDemandDry(pattern, prices, volumes)

	checks := []CheckResult{
		{
			Name:    "pivot_tightness",
			Passed:  pivotGood,
			Message: checkMessage(pivotGood, "final contraction is a tight pivot", "final contraction too loose or price below pivot low"),
		},
		{
			Name:    "correction_depth",
			Passed:  !correctionDeep,
			Message: checkMessage(!correctionDeep, "base depth within tolerance", "correction too deep"),
		},
		{
			Name:    "demand_dry_up",
			Passed:  demandDry,
			Message: checkMessage(demandDry, "volume drying up into the pivot", "volume trend shows active selling"),
		},
	}

	return ScreeningResult{
		Passed:    pivotGood && !correctionDeep && demandDry,
		Footprint: Footprint(pattern),
		Checks:    checks,
	}
}

func checkMessage(passed bool, ok, fail string) string {
	if passed {
		return ok
	}
	return fail
}

// Footprint renders the human-readable pattern summary, one
// "<days>D <depth%>" element per contraction joined with " | ".
func Footprint(pattern Pattern) string {
	if len(pattern) == 0 {
		return ""
	}

	parts := make([]string, len(pattern))
	for i, c := range pattern {
		parts[i] = fmt.Sprintf("%dD %.1f%%", c.Days(), c.Depth()*100)
	}
	return strings.Join(parts, " | ")
}
