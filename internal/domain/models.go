// Package domain contains the core types shared across the screening
// pipeline. The domain layer is pure: no infrastructure dependencies.
package domain

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// tickerPattern matches uppercase alphanumeric tickers plus '.', '-' and '^'
// (class shares, preferreds and market indices).
var tickerPattern = regexp.MustCompile(`^[A-Z0-9.\-^]+$`)

// Market index tickers carry a different financials shape and bypass strict
// validation.
const (
	IndexSP500  = "^GSPC"
	IndexDow    = "^DJI"
	IndexNasdaq = "^IXIC"
)

// NormalizeTicker upper-cases a raw ticker symbol and validates its shape.
// Path-traversal sequences are rejected before the pattern check.
func NormalizeTicker(raw string) (string, error) {
	ticker := strings.ToUpper(strings.TrimSpace(raw))
	if ticker == "" {
		return "", fmt.Errorf("empty ticker")
	}
	if strings.Contains(ticker, "..") {
		return "", fmt.Errorf("invalid ticker %q", raw)
	}
	if !tickerPattern.MatchString(ticker) {
		return "", fmt.Errorf("invalid ticker %q", raw)
	}
	return ticker, nil
}

// IsIndexTicker reports whether the ticker is one of the tracked market indices.
func IsIndexTicker(ticker string) bool {
	return ticker == IndexSP500 || ticker == IndexDow || ticker == IndexNasdaq
}

// PriceBar is a single daily OHLCV bar. Date is YYYY-MM-DD.
type PriceBar struct {
	Date     string   `json:"date"`
	Open     float64  `json:"open"`
	High     float64  `json:"high"`
	Low      float64  `json:"low"`
	Close    float64  `json:"close"`
	Volume   float64  `json:"volume"`
	AdjClose *float64 `json:"adjclose,omitempty"`
}

// PriceSeries is a chronological slice of daily bars.
type PriceSeries []PriceBar

// Normalize sorts bars by date, drops duplicate dates (first wins) and any
// bar with a non-finite close. The result has strictly increasing dates.
func (s PriceSeries) Normalize() PriceSeries {
	out := make(PriceSeries, 0, len(s))
	for _, bar := range s {
		if math.IsNaN(bar.Close) || math.IsInf(bar.Close, 0) {
			continue
		}
		out = append(out, bar)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	dedup := out[:0]
	for i, bar := range out {
		if i > 0 && bar.Date == out[i-1].Date {
			continue
		}
		dedup = append(dedup, bar)
	}
	return dedup
}

// Closes returns the close column.
func (s PriceSeries) Closes() []float64 {
	out := make([]float64, len(s))
	for i, bar := range s {
		out[i] = bar.Close
	}
	return out
}

// Volumes returns the volume column.
func (s PriceSeries) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, bar := range s {
		out[i] = bar.Volume
	}
	return out
}

// EarliestDate returns the date of the first bar, or "" for an empty series.
func (s PriceSeries) EarliestDate() string {
	if len(s) == 0 {
		return ""
	}
	return s[0].Date
}

// EarningsPeriod is one annual or quarterly earnings observation.
type EarningsPeriod struct {
	Period string  `json:"period"` // e.g. "2025" or "2025-Q3"
	EPS    float64 `json:"eps"`
}

// IncomeStatement is one quarterly income statement row. The three key
// fields are zero-substituted at ingestion when the upstream value is
// non-numeric.
type IncomeStatement struct {
	Period       string  `json:"period"`
	TotalRevenue float64 `json:"totalRevenue"`
	NetIncome    float64 `json:"netIncome"`
}

// CoreFinancials holds the fundamentals consumed by the leadership checks.
// All fields are optional; pointers distinguish "absent" from zero.
type CoreFinancials struct {
	Ticker            string            `json:"ticker"`
	MarketCap         float64           `json:"marketCap"`
	SharesOutstanding *float64          `json:"sharesOutstanding,omitempty"`
	FloatShares       *float64          `json:"floatShares,omitempty"`
	IPODate           *string           `json:"ipoDate,omitempty"` // YYYY-MM-DD, nil = unknown
	Industry          string            `json:"industry,omitempty"`
	AnnualEarnings    []EarningsPeriod  `json:"annualEarnings,omitempty"`
	QuarterlyEarnings []EarningsPeriod  `json:"quarterlyEarnings,omitempty"`
	QuarterlyIncome   []IncomeStatement `json:"quarterlyIncome,omitempty"`
}

// IndexSnapshot is the reduced financials shape carried by market index
// tickers.
type IndexSnapshot struct {
	Ticker       string  `json:"ticker"`
	CurrentPrice float64 `json:"current_price"`
	SMA50        float64 `json:"sma_50"`
	SMA200       float64 `json:"sma_200"`
	High52Week   float64 `json:"high_52_week"`
	Low52Week    float64 `json:"low_52_week"`
}

// MarketTrendDay labels one trading day with the overall market posture.
type MarketTrendDay struct {
	Date  string `json:"date"`
	Trend string `json:"trend"` // Bullish, Neutral, Bearish
}

// Market trend labels.
const (
	TrendBullish = "Bullish"
	TrendNeutral = "Neutral"
	TrendBearish = "Bearish"
)

// Breadth carries the new-highs/new-lows counts from the data service.
// A missing upstream payload yields the zero value.
type Breadth struct {
	NewHighs int     `json:"new_highs"`
	NewLows  int     `json:"new_lows"`
	Ratio    float64 `json:"ratio"`
}
