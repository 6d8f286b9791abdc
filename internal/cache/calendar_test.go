package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/screener/internal/domain"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestCalendar_WeekendsClosed(t *testing.T) {
	cal := NewCalendar()
	assert.False(t, cal.IsTradingDay(day("2026-08-22"))) // Saturday
	assert.False(t, cal.IsTradingDay(day("2026-08-23"))) // Sunday
	assert.True(t, cal.IsTradingDay(day("2026-08-24")))  // Monday
}

func TestCalendar_Holidays2026(t *testing.T) {
	cal := NewCalendar()

	closed := []string{
		"2026-01-01", // New Year's Day
		"2026-01-19", // MLK Day, 3rd Monday
		"2026-02-16", // Washington's Birthday
		"2026-04-03", // Good Friday (Easter is April 5)
		"2026-05-25", // Memorial Day, last Monday
		"2026-06-19", // Juneteenth
		"2026-07-03", // Independence Day observed (Jul 4 is Saturday)
		"2026-09-07", // Labor Day
		"2026-11-26", // Thanksgiving, 4th Thursday
		"2026-12-25", // Christmas
	}
	for _, d := range closed {
		assert.False(t, cal.IsTradingDay(day(d)), d)
	}

	// Surrounding weekdays are open.
	assert.True(t, cal.IsTradingDay(day("2026-01-02")))
	assert.True(t, cal.IsTradingDay(day("2026-04-06")))
	assert.True(t, cal.IsTradingDay(day("2026-07-06")))
}

func TestCalendar_ObservedSundayHoliday(t *testing.T) {
	// July 4 2027 is a Sunday: observed Monday July 5.
	cal := NewCalendar()
	assert.False(t, cal.IsTradingDay(day("2027-07-05")))
	assert.True(t, cal.IsTradingDay(day("2027-07-06")))
}

func TestCalendar_FirstTradingDay(t *testing.T) {
	cal := NewCalendar()

	// Friday Jul 3 2026 is the observed holiday, Jul 4-5 the weekend.
	first, ok := cal.FirstTradingDay(day("2026-07-03"), day("2026-07-10"))
	require.True(t, ok)
	assert.Equal(t, "2026-07-06", first.Format("2006-01-02"))

	// A weekend-only range has no trading day.
	_, ok = cal.FirstTradingDay(day("2026-08-22"), day("2026-08-23"))
	assert.False(t, ok)
}

func seriesFrom(start string, n int) domain.PriceSeries {
	out := make(domain.PriceSeries, n)
	d := day(start)
	for i := range out {
		out[i] = domain.PriceBar{Date: d.AddDate(0, 0, i).Format("2006-01-02"), Close: 100}
	}
	return out
}

func TestCovers_ExplicitStartDate(t *testing.T) {
	cal := NewCalendar()
	now := day("2026-08-24")
	series := seriesFrom("2025-01-02", 10)

	assert.True(t, Covers(series, CoverageRequest{StartDate: "2025-06-01"}, cal, now))
	assert.False(t, Covers(series, CoverageRequest{StartDate: "2024-06-01"}, cal, now))
	assert.False(t, Covers(series, CoverageRequest{StartDate: "garbage"}, cal, now))
}

func TestCovers_PeriodByRowCount(t *testing.T) {
	cal := NewCalendar()
	now := day("2026-08-24")

	// 20 rows satisfies the 1mo minimum of 18 regardless of dates.
	assert.True(t, Covers(seriesFrom("2026-08-01", 20), CoverageRequest{Period: "1mo"}, cal, now))
	assert.False(t, Covers(seriesFrom("2026-08-20", 3), CoverageRequest{Period: "1mo"}, cal, now))
}

func TestCovers_PeriodByCalendar(t *testing.T) {
	cal := NewCalendar()
	now := day("2026-08-24")

	// Too few rows, but the series starts well before the period window.
	old := seriesFrom("2026-01-02", 5)
	assert.True(t, Covers(old, CoverageRequest{Period: "1mo"}, cal, now))
}

func TestCovers_Malformed(t *testing.T) {
	cal := NewCalendar()
	now := day("2026-08-24")

	assert.False(t, Covers(nil, CoverageRequest{Period: "1mo"}, cal, now))
	assert.False(t, Covers(seriesFrom("2026-01-02", 5), CoverageRequest{Period: "7w"}, cal, now))
}

func TestCoverageRequest_Key(t *testing.T) {
	assert.Equal(t, "from-2026-01-02", CoverageRequest{StartDate: "2026-01-02"}.Key())
	assert.Equal(t, "1y", CoverageRequest{Period: "1y"}.Key())
}
