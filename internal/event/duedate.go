package event

import (
	"fmt"
	"time"
)

// Layouts for the persisted date and time fields.
const (
	DateDueLayout = "2 January 2006"
	TimeDueLayout = "15:04"
)

// ResolveDueYear reprojects a stored due date, which may carry a past
// year (e.g. the original birth year), onto its next occurrence on or
// after now. Only the year is ever adjusted:
//
//  1. a year before the current year is re-anchored to the current year;
//  2. a month before the current month belongs to next year;
//  3. a day earlier in the current month has already passed, so it also
//     belongs to next year.
//
// A date equal to today is due today and is not advanced. The returned
// time is midnight local on the resolved date.
func ResolveDueYear(dateDue string, now time.Time) (time.Time, error) {
	due, err := time.ParseInLocation(DateDueLayout, dateDue, now.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing due date %q: %w", dateDue, err)
	}

	day, month, year := due.Day(), due.Month(), due.Year()

	if year < now.Year() {
		year = now.Year()
	}
	if month < now.Month() {
		year = now.Year() + 1
	}
	if year == now.Year() && month == now.Month() && day < now.Day() {
		year = now.Year() + 1
	}

	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), nil
}

// DueInstant combines the resolved due date with the "HH:MM" due time
// into an absolute local instant.
func DueInstant(dateDue, timeDue string, now time.Time) (time.Time, error) {
	date, err := ResolveDueYear(dateDue, now)
	if err != nil {
		return time.Time{}, err
	}

	hm, err := time.Parse(TimeDueLayout, timeDue)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing due time %q: %w", timeDue, err)
	}

	return time.Date(date.Year(), date.Month(), date.Day(),
		hm.Hour(), hm.Minute(), 0, 0, now.Location()), nil
}
