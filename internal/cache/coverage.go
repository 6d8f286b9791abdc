package cache

import (
	"time"

	"github.com/aristath/screener/internal/domain"
)

// periodSpec maps a named request period to its minimum acceptable row count
// and its approximate span in calendar days.
type periodSpec struct {
	minRows    int
	approxDays int
}

var periodTable = map[string]periodSpec{
	"1mo": {minRows: 18, approxDays: 31},
	"3mo": {minRows: 55, approxDays: 92},
	"6mo": {minRows: 120, approxDays: 183},
	"1y":  {minRows: 240, approxDays: 365},
	"2y":  {minRows: 480, approxDays: 730},
	"5y":  {minRows: 1200, approxDays: 1826},
	"10y": {minRows: 2400, approxDays: 3652},
}

// CoverageRequest is the window a price request asks for: either an explicit
// start date or a named period.
type CoverageRequest struct {
	StartDate string // YYYY-MM-DD, empty when Period is set
	Period    string // 1mo, 3mo, 6mo, 1y, 2y, 5y, 10y
}

// Key returns the request's cache-key discriminator.
func (r CoverageRequest) Key() string {
	if r.StartDate != "" {
		return "from-" + r.StartDate
	}
	return r.Period
}

// Covers reports whether a cached series satisfies the request. Any
// malformed input makes the entry insufficient, which forces a refetch.
func Covers(series domain.PriceSeries, req CoverageRequest, cal *Calendar, now time.Time) bool {
	earliest := series.EarliestDate()
	if earliest == "" {
		return false
	}

	if req.StartDate != "" {
		if _, err := time.Parse("2006-01-02", req.StartDate); err != nil {
			return false
		}
		return earliest <= req.StartDate
	}

	spec, ok := periodTable[req.Period]
	if !ok {
		return false
	}
	if len(series) >= spec.minRows {
		return true
	}

	// The period is anchored on yesterday: the last complete trading bar.
	end := now.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -spec.approxDays)
	first, ok := cal.FirstTradingDay(start, end)
	if !ok {
		return false
	}
	return earliest <= first.Format("2006-01-02")
}
