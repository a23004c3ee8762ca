// Package anniversary computes yearly anniversary occurrences for people and
// renders them as iCalendar documents. Everything in here is pure: callers
// inject "today" and the engine never touches the clock, the database or the
// network.
package anniversary

import "time"

// Recurrences returns the yearly anniversaries of origin, strictly after the
// origin date and no later than end, in ascending order. Inputs are treated
// as calendar dates, the time of day is ignored by convention (callers pass
// midnight values).
//
// A February 29 origin falls back to March 1 in non-leap years. This is the
// published behaviour of existing feeds and must not be "fixed" to Feb 28.
func Recurrences(origin, end time.Time) []time.Time {
	var dates []time.Time
	for year := origin.Year() + 1; year <= end.Year(); year++ {
		// time.Date normalizes Feb 29 to Mar 1 in non-leap years, which is
		// exactly the substitution rule we want.
		candidate := time.Date(year, origin.Month(), origin.Day(), 0, 0, 0, 0, time.UTC)
		if !candidate.After(end) {
			dates = append(dates, candidate)
		}
	}
	return dates
}
