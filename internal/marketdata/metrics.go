package marketdata

import (
	"math"

	"github.com/aristath/screener/internal/domain"
)

// Metrics are the compact per-ticker fields the watchlist UI shows.
type Metrics struct {
	CurrentPrice  float64 `json:"current_price"`
	VolLast       float64 `json:"vol_last"`
	Vol50dAvg     float64 `json:"vol_50d_avg"`
	DayChangePct  float64 `json:"day_change_pct"`
	VolVs50dRatio float64 `json:"vol_vs_50d_ratio"`
}

// ComputeMetrics derives the compact metrics from a normalized daily series.
// An empty series yields the zero value; with one bar the day change is 0.
func ComputeMetrics(series domain.PriceSeries) Metrics {
	n := len(series)
	if n == 0 {
		return Metrics{}
	}

	m := Metrics{
		CurrentPrice: series[n-1].Close,
		VolLast:      series[n-1].Volume,
	}

	if n > 1 && series[n-2].Close != 0 {
		change := (series[n-1].Close - series[n-2].Close) / series[n-2].Close * 100
		m.DayChangePct = math.Round(change*100) / 100
	}

	start := n - 50
	if start < 0 {
		start = 0
	}
	var sum float64
	for _, bar := range series[start:] {
		sum += bar.Volume
	}
	m.Vol50dAvg = sum / float64(n-start)

	if m.Vol50dAvg > 0 {
		m.VolVs50dRatio = m.VolLast / m.Vol50dAvg
	}
	return m
}

// DailyReturn is the one-day return percentage for the return batch
// endpoint.
func DailyReturn(series domain.PriceSeries) float64 {
	return ComputeMetrics(series).DayChangePct
}
