package vcp

// Freshness carries the pattern-age and pivot-proximity signals used by the
// watchlist status derivation. Field names match the persisted enrichment
// contract.
type Freshness struct {
	HasPivot              bool    `json:"has_pivot"`
	IsPivotGood           bool    `json:"is_pivot_good"`
	IsAtPivot             bool    `json:"is_at_pivot"`
	HasPullbackSetup      bool    `json:"has_pullback_setup"`
	PivotPrice            float64 `json:"pivot_price"`
	PatternAgeDays        int     `json:"pattern_age_days"`
	PivotProximityPercent float64 `json:"pivot_proximity_percent"`
	DaysSincePivot        int     `json:"days_since_pivot"`
}

// atPivotLowerBound is the pivot proximity band treated as "at the pivot":
// within 5% below and not extended above.
const atPivotLowerBound = -5.0

// ComputeFreshness derives the freshness signals from a detected pattern and
// the price series it was detected on. Age counts bars since the final
// trough; days-since-pivot counts bars since the final peak.
func ComputeFreshness(pattern Pattern, prices []float64, currentPrice float64) Freshness {
	if len(pattern) == 0 {
		return Freshness{}
	}

	last := pattern[len(pattern)-1]
	pivot := last.HighPrice * 1.01

	proximity := 0.0
	if pivot != 0 {
		proximity = (currentPrice - pivot) / pivot * 100
	}

	lastBar := len(prices) - 1
	f := Freshness{
		HasPivot:              true,
		IsPivotGood:           IsPivotGood(pattern, currentPrice),
		PivotPrice:            pivot,
		PatternAgeDays:        lastBar - last.LowIdx,
		PivotProximityPercent: proximity,
		DaysSincePivot:        lastBar - last.HighIdx,
	}

	f.IsAtPivot = proximity >= atPivotLowerBound && proximity <= 0

	// A pullback setup: price has come back below the pivot but holds above
	// the pivot low, with the last three bars drifting down.
	if currentPrice < pivot && currentPrice > last.LowPrice && len(prices) >= 3 {
		n := len(prices)
		f.HasPullbackSetup = prices[n-3] > prices[n-1]
	}

	return f
}
