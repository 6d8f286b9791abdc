package cache

import (
	"sync"
	"time"
)

// Calendar answers NYSE trading-day questions. Holiday sets are computed
// per year on first use and memoized, so lookups after warm-up are two map
// probes under a read lock.
type Calendar struct {
	mu       sync.RWMutex
	holidays map[int]map[string]bool // year -> "YYYY-MM-DD"
}

// NewCalendar creates an empty calendar; years are populated lazily.
func NewCalendar() *Calendar {
	return &Calendar{holidays: make(map[int]map[string]bool)}
}

// IsTradingDay reports whether the NYSE is open on the given date.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !c.isHoliday(t)
}

// FirstTradingDay returns the first trading day in [from, to], and false
// when the range contains none.
func (c *Calendar) FirstTradingDay(from, to time.Time) (time.Time, bool) {
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			return d, true
		}
	}
	return time.Time{}, false
}

func (c *Calendar) isHoliday(t time.Time) bool {
	year := t.Year()

	c.mu.RLock()
	set, ok := c.holidays[year]
	c.mu.RUnlock()

	if !ok {
		c.mu.Lock()
		if set, ok = c.holidays[year]; !ok {
			set = nyseHolidays(year)
			c.holidays[year] = set
		}
		c.mu.Unlock()
	}

	return set[t.Format("2006-01-02")]
}

// nyseHolidays builds the full-closure set for one year: fixed-date holidays
// shifted to the nearest weekday when they land on a weekend, the floating
// Monday/Thursday holidays, and Good Friday.
func nyseHolidays(year int) map[string]bool {
	set := make(map[string]bool, 10)
	add := func(t time.Time) { set[t.Format("2006-01-02")] = true }

	observed := func(month time.Month, day int) {
		t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
		switch t.Weekday() {
		case time.Saturday:
			t = t.AddDate(0, 0, -1)
		case time.Sunday:
			t = t.AddDate(0, 0, 1)
		}
		// A Saturday Jan 1 is observed the prior Dec 31 and belongs to the
		// previous year's set; the exchange stays open that week anyway.
		if t.Year() == year {
			add(t)
		}
	}

	observed(time.January, 1)    // New Year's Day
	observed(time.June, 19)      // Juneteenth
	observed(time.July, 4)       // Independence Day
	observed(time.December, 25)  // Christmas Day

	add(nthWeekday(year, time.January, time.Monday, 3))  // MLK Day
	add(nthWeekday(year, time.February, time.Monday, 3)) // Washington's Birthday
	add(lastWeekday(year, time.May, time.Monday))        // Memorial Day
	add(nthWeekday(year, time.September, time.Monday, 1)) // Labor Day
	add(nthWeekday(year, time.November, time.Thursday, 4)) // Thanksgiving

	add(easterSunday(year).AddDate(0, 0, -2)) // Good Friday

	return set
}

// nthWeekday returns the nth occurrence of a weekday in a month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(weekday) - int(t.Weekday()) + 7) % 7
	return t.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last occurrence of a weekday in a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	t := time.Date(year, month+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	offset := (int(t.Weekday()) - int(weekday) + 7) % 7
	return t.AddDate(0, 0, -offset)
}

// easterSunday computes Gregorian Easter via the anonymous algorithm.
func easterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
