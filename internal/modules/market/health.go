// Package market computes the posture of the major indices, the S&P
// correction depth, and market breadth for dashboards and the leadership
// checks.
package market

import (
	"math"

	"github.com/aristath/screener/internal/domain"
	"github.com/markcheno/go-talib"
)

// rollingWindow is the 52-week window used for the high/low bands.
// minRollingPeriods enforces pandas-style min_periods semantics: the value
// is undefined until 251 observations are in the window.
const (
	rollingWindow     = 252
	minRollingPeriods = 251
)

// IndexHealth is the computed posture of a single index, evaluated on the
// penultimate bar to avoid intraday partials.
type IndexHealth struct {
	Ticker     string   `json:"ticker"`
	Price      float64  `json:"current_price"`
	SMA50      *float64 `json:"sma_50"`
	SMA200     *float64 `json:"sma_200"`
	High52Week *float64 `json:"high_52_week"`
	Low52Week  *float64 `json:"low_52_week"`
	Posture    string   `json:"posture"` // Bullish, Neutral, Bearish
}

// smaValueAt returns the SMA at idx or nil when the window is partial.
func smaValueAt(closes []float64, period, idx int) *float64 {
	if idx < period-1 || idx >= len(closes) {
		return nil
	}
	v := talib.Sma(closes, period)[idx]
	return &v
}

// rollingExtremeAt returns the rolling max (or min) of the trailing
// rollingWindow bars at idx, or nil with fewer than minRollingPeriods
// observations in the window.
func rollingExtremeAt(closes []float64, idx int, max bool) *float64 {
	if idx >= len(closes) || idx+1 < minRollingPeriods {
		return nil
	}

	start := idx - rollingWindow + 1
	if start < 0 {
		start = 0
	}

	v := closes[start]
	for _, c := range closes[start+1 : idx+1] {
		if (max && c > v) || (!max && c < v) {
			v = c
		}
	}
	return &v
}

// EvaluateIndex computes the posture of one index series. With fewer than
// two bars the posture is Neutral and every derived field nil.
func EvaluateIndex(ticker string, series domain.PriceSeries) IndexHealth {
	health := IndexHealth{Ticker: ticker, Posture: domain.TrendNeutral}

	closes := series.Closes()
	if len(closes) < 2 {
		return health
	}

	// Penultimate bar: the last bar may be an intraday partial.
	idx := len(closes) - 2
	health.Price = closes[idx]
	health.SMA50 = smaValueAt(closes, 50, idx)
	health.SMA200 = smaValueAt(closes, 200, idx)
	health.High52Week = rollingExtremeAt(closes, idx, true)
	health.Low52Week = rollingExtremeAt(closes, idx, false)

	if health.SMA50 != nil {
		switch {
		case health.Price > *health.SMA50:
			health.Posture = domain.TrendBullish
		case health.Price < *health.SMA50:
			health.Posture = domain.TrendBearish
		}
	}

	return health
}

// OverallStage derives the market stage from the three index postures:
// Bullish only when all three are Bullish, Bearish only when all three are
// Bearish.
func OverallStage(indices []IndexHealth) string {
	if len(indices) == 0 {
		return domain.TrendNeutral
	}

	bullish, bearish := 0, 0
	for _, idx := range indices {
		switch idx.Posture {
		case domain.TrendBullish:
			bullish++
		case domain.TrendBearish:
			bearish++
		}
	}

	switch {
	case bullish == len(indices):
		return domain.TrendBullish
	case bearish == len(indices):
		return domain.TrendBearish
	default:
		return domain.TrendNeutral
	}
}

// CorrectionDepth returns the percentage distance of the close from the
// 52-week high, rounded to two decimals. Zero when the high is undefined.
func CorrectionDepth(health IndexHealth) float64 {
	if health.High52Week == nil || *health.High52Week == 0 {
		return 0
	}
	depth := (health.Price - *health.High52Week) / *health.High52Week * 100
	return math.Round(depth*100) / 100
}
