package app

import (
	"time"

	"store_reviews/internal/domain"
)

const dateLayout = "2006-01-02"

// MaxPeriodKeys bounds the store-by-period table; ten years of days.
const MaxPeriodKeys = 3660

// BucketKey maps an instant to its period key at granularity g, reading the
// calendar date in loc. WEEK buckets start on Monday; MONTH on the first.
func BucketKey(t time.Time, g domain.Granularity, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return periodStart(civilDate(t.In(loc)), g).Format(dateLayout)
}

// PeriodKeysInRange enumerates every period key from start to end inclusive.
// start and end are calendar dates: only their year, month and day are read.
func PeriodKeysInRange(start, end time.Time, g domain.Granularity) []string {
	from := periodStart(civilDate(start), g)
	to := periodStart(civilDate(end), g)
	keys := []string{}
	for k := from; !k.After(to); k = nextPeriod(k, g) {
		keys = append(keys, k.Format(dateLayout))
	}
	return keys
}

// PeriodCount is len(PeriodKeysInRange(start, end, g)) without enumerating the keys.
func PeriodCount(start, end time.Time, g domain.Granularity) int64 {
	from := periodStart(civilDate(start), g)
	to := periodStart(civilDate(end), g)
	if to.Before(from) {
		return 0
	}
	switch g {
	case domain.GranularityMonth:
		return int64(to.Year()-from.Year())*12 + int64(to.Month()-from.Month()) + 1
	case domain.GranularityWeek:
		return (to.Unix()-from.Unix())/(7*86400) + 1
	default:
		return (to.Unix()-from.Unix())/86400 + 1
	}
}

// civilDate drops the clock and zone, keeping the wall-clock date as UTC midnight.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func periodStart(day time.Time, g domain.Granularity) time.Time {
	switch g {
	case domain.GranularityWeek:
		// Monday=0 ... Sunday=6
		back := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -back)
	case domain.GranularityMonth:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return day
	}
}

func nextPeriod(k time.Time, g domain.Granularity) time.Time {
	switch g {
	case domain.GranularityWeek:
		return k.AddDate(0, 0, 7)
	case domain.GranularityMonth:
		return k.AddDate(0, 1, 0)
	default:
		return k.AddDate(0, 0, 1)
	}
}

// dayBounds turns calendar dates into the inclusive instant range
// [start 00:00:00.000, end 23:59:59.999] in loc. Either side may be nil.
func dayBounds(start, end *time.Time, loc *time.Location) (from, to *time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	if start != nil {
		y, m, d := start.Date()
		t := time.Date(y, m, d, 0, 0, 0, 0, loc)
		from = &t
	}
	if end != nil {
		y, m, d := end.Date()
		t := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), loc)
		to = &t
	}
	return from, to
}
