package scheduler

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// yearToken matches a 4-digit year inside a playlist display name, e.g.
// "Songs of the Day 2026".
var yearToken = regexp.MustCompile(`20\d\d`)

// EffectiveDate returns the calendar date that bookkeeping should use for
// the given instant. Activity before dayBoundaryHour counts toward the prior
// logical day, so late-night listening lands on the day it belongs to.
func EffectiveDate(now time.Time, dayBoundaryHour int) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Hour() < dayBoundaryHour {
		day = day.AddDate(0, 0, -1)
	}
	return day
}

// YearStart resolves the first day of the playlist year. Resolution order:
// an explicit YYYY-MM-DD override, a 4-digit year token in the playlist
// name, then January 1 of the current year in now's location.
//
// A malformed explicit override is an error, never silently replaced: a
// wrong year start corrupts every subsequent target.
func YearStart(explicit, playlistName string, now time.Time) (time.Time, error) {
	if explicit != "" {
		start, err := time.ParseInLocation("2006-01-02", explicit, now.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid year_start %q: %w", explicit, err)
		}
		return start, nil
	}

	if token := yearToken.FindString(playlistName); token != "" {
		year, err := strconv.Atoi(token)
		if err == nil {
			return time.Date(year, time.January, 1, 0, 0, 0, 0, now.Location()), nil
		}
	}

	return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), nil
}

// TargetCount returns the number of songs the playlist should contain on the
// effective date. Day 1 of the playlist year targets 1 song; dates before
// the year start target 0. No upper bound is applied.
func TargetCount(effectiveDate, yearStart time.Time) int {
	days := daysBetween(effectiveDate, yearStart) + 1
	if days < 0 {
		return 0
	}
	return days
}

// daysBetween counts calendar days from b to a. Both dates are re-anchored
// in UTC first so DST transitions inside the span cannot skew the count.
func daysBetween(a, b time.Time) int {
	au := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bu := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(au.Sub(bu).Hours() / 24)
}

// DayNumber is the ordinal of the effective date within the playlist year,
// identical to the target count.
func DayNumber(effectiveDate, yearStart time.Time) int {
	return TargetCount(effectiveDate, yearStart)
}

// WindowDates returns the date keys (YYYY-MM-DD) for the n days ending at
// the effective date, newest first.
func WindowDates(effectiveDate time.Time, n int) []string {
	dates := make([]string, 0, n)
	for i := 0; i < n; i++ {
		dates = append(dates, effectiveDate.AddDate(0, 0, -i).Format("2006-01-02"))
	}
	return dates
}
