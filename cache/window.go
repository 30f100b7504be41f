package cache

import "time"

// MonthDay is a recurring calendar date (e.g. a birthday) without a year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// NextOccurrence returns the next calendar occurrence of md on or after
// today. The stored month/day is normalized onto the evaluation year;
// if that date has already passed this year it rolls over to next year.
//
// A Feb-29 target in a non-leap evaluation year normalizes to Feb 28
// instead of erroring or skipping the contact. The normalization is
// re-applied per candidate year, so Feb 29 stays Feb 29 when the
// rollover lands on a leap year.
func NextOccurrence(md MonthDay, today time.Time) time.Time {
	day := civilDate(today)

	occurrence := occurrenceInYear(md, day.Year())
	if occurrence.Before(day) {
		occurrence = occurrenceInYear(md, day.Year()+1)
	}
	return occurrence
}

// InWindow reports whether the next occurrence of md falls within
// windowDays of today. Both ends are inclusive: an occurrence today
// (day 0) and an occurrence exactly windowDays out both match.
func InWindow(md MonthDay, today time.Time, windowDays int) bool {
	if windowDays < 0 {
		return false
	}
	days := DaysUntil(md, today)
	return days >= 0 && days <= windowDays
}

// DaysUntil returns the whole days from today to the next occurrence of md.
func DaysUntil(md MonthDay, today time.Time) int {
	day := civilDate(today)
	occurrence := NextOccurrence(md, today)
	return int(occurrence.Sub(day).Hours() / 24)
}

func occurrenceInYear(md MonthDay, year int) time.Time {
	day := md.Day
	if md.Month == time.February && day == 29 && !isLeapYear(year) {
		day = 28
	}
	return time.Date(year, md.Month, day, 0, 0, 0, 0, time.UTC)
}

// civilDate truncates t to a timezone-free calendar day. Midnight UTC on
// both sides keeps day arithmetic exact across DST transitions.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func isLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
