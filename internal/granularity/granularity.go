// Package granularity defines the two snapshot cadences the pipeline runs at.
package granularity

import (
	"fmt"
	"time"
)

// Mode is a scrap type code. It selects storage paths, watermark flooring
// and snapshot matching tolerance.
type Mode string

const (
	// Hourly snapshots match the target hour or the hour before it.
	Hourly Mode = "A"
	// Daily snapshots match the target day or the day before it.
	Daily Mode = "B"
)

// All lists every mode in run order.
var All = []Mode{Hourly, Daily}

// Parse converts a scrap type code into a Mode.
func Parse(code string) (Mode, error) {
	switch Mode(code) {
	case Hourly, Daily:
		return Mode(code), nil
	default:
		return "", fmt.Errorf("invalid scrap type %q: expected A (hourly) or B (daily)", code)
	}
}

// String returns the scrap type code.
func (m Mode) String() string {
	return string(m)
}

// Name returns a human readable cadence name.
func (m Mode) Name() string {
	switch m {
	case Hourly:
		return "hourly"
	case Daily:
		return "daily"
	default:
		return "unknown"
	}
}

// Floor truncates t in loc to the start of its hour (Hourly) or day (Daily).
func (m Mode) Floor(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)

	if m == Hourly {
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, loc)
	}

	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// Matches reports whether a snapshot captured at candidate is usable for target.
// Both times are compared as calendar values in loc.
//
// Hourly requires the same calendar date and an hour equal to the target hour
// or the target hour minus one. The window only looks backward.
// Daily accepts the target date or the date before.
func (m Mode) Matches(candidate, target time.Time, loc *time.Location) bool {
	candidate = candidate.In(loc)
	target = target.In(loc)

	switch m {
	case Hourly:
		if !sameDate(candidate, target) {
			return false
		}

		// The previous hour never wraps back to 23 on the same date.
		return candidate.Hour() == target.Hour() ||
			(target.Hour() > 0 && candidate.Hour() == target.Hour()-1)
	case Daily:
		yesterday := target.AddDate(0, 0, -1)

		return sameDate(candidate, target) || sameDate(candidate, yesterday)
	default:
		return false
	}
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()

	return ay == by && am == bm && ad == bd
}
