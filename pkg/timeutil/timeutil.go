// Package timeutil provides duration and UTC date helpers for cooldown
// accounting and reporting. All display timestamps are stored in UTC; these
// helpers keep day-boundary math and human-facing formatting in one place.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// HoursToDuration converts fractional hours to a duration.
// Catalog cooldowns are declared in hours; 1.5 means 90 minutes.
func HoursToDuration(hours float64) time.Duration {
	return time.Duration(hours * float64(time.Hour))
}

// DurationToHours converts a duration to fractional hours.
func DurationToHours(d time.Duration) float64 {
	return d.Hours()
}

// StartOfDayUTC returns the start of the day (00:00:00) in UTC.
func StartOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// EndOfDayUTC returns the end of the day (23:59:59.999999999) in UTC.
func EndOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 23, 59, 59, 999999999, time.UTC)
}

// IsSameDayUTC checks if two times fall on the same UTC day.
func IsSameDayUTC(t1, t2 time.Time) bool {
	u1, u2 := t1.UTC(), t2.UTC()
	return u1.Year() == u2.Year() && u1.YearDay() == u2.YearDay()
}

// DaysBetweenUTC calculates the number of whole UTC days between two times.
func DaysBetweenUTC(t1, t2 time.Time) int {
	d1 := StartOfDayUTC(t1)
	d2 := StartOfDayUTC(t2)
	days := int(d2.Sub(d1).Hours() / 24)
	if days < 0 {
		days = -days
	}
	return days
}

// FormatDuration renders a duration for API responses and logs.
// Sub-second noise is dropped: "1h23m45s", "2m", "15s".
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = -d
	}
	return d.Round(time.Second).String()
}

// FormatRelative returns a human-readable description of how long ago t was.
func FormatRelative(t time.Time, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = -d
	}

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "yesterday"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		months := int(d.Hours() / 24 / 30)
		if months < 12 {
			return fmt.Sprintf("%dmo ago", months)
		}
		return fmt.Sprintf("%dy ago", months/12)
	}
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatDateTimeSeconds includes seconds.
	FormatDateTimeSeconds = "2006-01-02 15:04:05"
)

// FormatDateUTC formats a time as a date string (YYYY-MM-DD) in UTC.
func FormatDateUTC(t time.Time) string {
	return t.UTC().Format(FormatDate)
}

// ParseDateUTC parses a date string (YYYY-MM-DD) as UTC.
func ParseDateUTC(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, time.UTC)
}
