// Package vcp implements Volatility Contraction Pattern detection and the
// derived screening checks (pivot tightness, correction depth, demand
// dry-up).
package vcp

import "math"

const (
	// scanWindow is the width of the overlapping windows used by the local
	// extremum scans.
	scanWindow = 5

	// counterThreshold is the number of consecutive windows without a new
	// extremum before a scan terminates.
	counterThreshold = 5

	// PivotPricePerc is the maximum depth of the final contraction for the
	// pivot to be considered tight.
	PivotPricePerc = 0.20

	// MaxCorrectionPerc is the total correction depth beyond which a
	// pattern is considered a deep (failed) base.
	MaxCorrectionPerc = 0.50
)

// Contraction is a peak-to-trough pair. HighIdx < LowIdx and
// HighPrice > LowPrice always hold for detected contractions.
type Contraction struct {
	HighIdx   int     `json:"high_idx"`
	HighPrice float64 `json:"high_price"`
	LowIdx    int     `json:"low_idx"`
	LowPrice  float64 `json:"low_price"`
}

// Pattern is a chronologically ordered list of non-overlapping contractions.
type Pattern []Contraction

// Depth returns the contraction depth as a fraction of the high.
func (c Contraction) Depth() float64 {
	if c.HighPrice == 0 {
		return 0
	}
	return (c.HighPrice - c.LowPrice) / c.HighPrice
}

// Days returns the bar count from peak to trough.
func (c Contraction) Days() int {
	return c.LowIdx - c.HighIdx
}

// argmax returns the index and value of the maximum within [start, end).
// The first occurrence wins.
func argmax(prices []float64, start, end int) (int, float64) {
	idx, val := start, prices[start]
	for i := start + 1; i < end; i++ {
		if prices[i] > val {
			idx, val = i, prices[i]
		}
	}
	return idx, val
}

// argmin returns the index and value of the minimum within [start, end).
// The first occurrence wins.
func argmin(prices []float64, start, end int) (int, float64) {
	idx, val := start, prices[start]
	for i := start + 1; i < end; i++ {
		if prices[i] < val {
			idx, val = i, prices[i]
		}
	}
	return idx, val
}

// scanExtremum walks overlapping scanWindow-wide windows from startIdx,
// tracking the running extremum. It terminates once counterThreshold
// consecutive windows fail to improve it. Running off the end of the series
// without terminating yields no result: the extremum is not yet confirmed.
func scanExtremum(prices []float64, startIdx int, findMax bool) (int, float64, bool) {
	n := len(prices)
	if startIdx >= n {
		return 0, 0, false
	}

	localIdx := -1
	localVal := math.Inf(-1)
	if !findMax {
		localVal = math.Inf(1)
	}
	missStreak := 0

	for i := startIdx; i < n; i++ {
		end := i + scanWindow
		if end > n {
			end = n
		}

		var wIdx int
		var wVal float64
		if findMax {
			wIdx, wVal = argmax(prices, i, end)
		} else {
			wIdx, wVal = argmin(prices, i, end)
		}

		improved := (findMax && wVal > localVal) || (!findMax && wVal < localVal)
		if improved {
			localIdx, localVal = wIdx, wVal
			missStreak = 0
		} else {
			missStreak++
		}

		if missStreak >= counterThreshold {
			if localIdx < 0 {
				return 0, 0, false
			}
			return localIdx, localVal, true
		}
	}

	return 0, 0, false
}

// FindOneContraction detects a single peak-to-trough contraction starting at
// startIdx: a peak scan followed by a trough scan from the peak.
func FindOneContraction(prices []float64, startIdx int) (Contraction, bool) {
	highIdx, highPrice, ok := scanExtremum(prices, startIdx, true)
	if !ok {
		return Contraction{}, false
	}

	lowIdx, lowPrice, ok := scanExtremum(prices, highIdx, false)
	if !ok {
		return Contraction{}, false
	}

	if highIdx >= lowIdx || highPrice == lowPrice {
		return Contraction{}, false
	}

	return Contraction{
		HighIdx:   highIdx,
		HighPrice: highPrice,
		LowIdx:    lowIdx,
		LowPrice:  lowPrice,
	}, true
}

// FindPattern detects all contractions in the series. On each hit the cursor
// jumps past the trough; on each miss it advances by one bar. The resulting
// contractions are non-overlapping with strictly increasing low indices.
func FindPattern(prices []float64) Pattern {
	var pattern Pattern

	cursor := 0
	for cursor < len(prices) {
		contraction, ok := FindOneContraction(prices, cursor)
		if !ok {
			cursor++
			continue
		}

		pattern = append(pattern, contraction)
		cursor = contraction.LowIdx + 1
	}

	return pattern
}
