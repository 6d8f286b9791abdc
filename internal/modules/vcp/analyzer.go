package vcp

import "github.com/aristath/screener/internal/domain"

// Mode selects how much payload an analysis carries.
type Mode string

const (
	// ModeFull includes chart data and per-check details.
	ModeFull Mode = "full"
	// ModeFast omits chart data and details; used by the batch funnel.
	ModeFast Mode = "fast"
)

// ParseMode maps a query value to a Mode, defaulting to full.
func ParseMode(raw string) Mode {
	if raw == string(ModeFast) {
		return ModeFast
	}
	return ModeFull
}

// ChartData is the plot payload returned in full mode.
type ChartData struct {
	Dates        []string  `json:"dates"`
	Closes       []float64 `json:"closes"`
	Volumes      []float64 `json:"volumes"`
	Contractions Pattern   `json:"contractions"`
}

// Analysis is the result of a single-ticker VCP analysis.
type Analysis struct {
	Ticker    string        `json:"ticker"`
	VCPPass   bool          `json:"vcp_pass"`
	Footprint string        `json:"vcpFootprint"`
	Pivot     float64       `json:"pivot_price"`
	StopLoss  float64       `json:"stop_loss"`
	Freshness Freshness     `json:"freshness"`
	Checks    []CheckResult `json:"checks,omitempty"`
	Chart     *ChartData    `json:"chart,omitempty"`
}

// Analyze runs pattern detection and the screening checks over a normalized
// price series. In fast mode the chart payload and check details are
// dropped.
func Analyze(ticker string, series domain.PriceSeries, mode Mode) Analysis {
	closes := series.Closes()
	volumes := series.Volumes()

	currentPrice := 0.0
	if len(closes) > 0 {
		currentPrice = closes[len(closes)-1]
	}

	pattern := FindPattern(closes)
	result := RunScreening(pattern, closes, volumes, currentPrice)

	analysis := Analysis{
		Ticker:    ticker,
		VCPPass:   result.Passed,
		Footprint: result.Footprint,
		Freshness: ComputeFreshness(pattern, closes, currentPrice),
	}

	if len(pattern) > 0 {
		last := pattern[len(pattern)-1]
		analysis.Pivot = last.HighPrice * 1.01
		analysis.StopLoss = last.LowPrice * 0.99
	}

	if mode == ModeFull {
		analysis.Checks = result.Checks

		dates := make([]string, len(series))
		for i, bar := range series {
			dates[i] = bar.Date
		}
		analysis.Chart = &ChartData{
			Dates:        dates,
			Closes:       closes,
			Volumes:      volumes,
			Contractions: pattern,
		}
	}

	return analysis
}
