package utils

import (
	"fmt"
	"time"

	"github.com/julianstephens/habitkit/internal/constants"
)

// Clock supplies the current instant. Components take a Clock instead of
// calling time.Now directly so tests can pin "today".
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time {
	return time.Now()
}

// FixedClock returns a Clock that always reports t.
func FixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

// DayKey returns the canonical YYYY-MM-DD key for the UTC calendar day containing t.
func DayKey(t time.Time) string {
	return t.UTC().Format(constants.DateFormat)
}

// MonthKey returns the YYYY-MM key for the UTC month containing t.
func MonthKey(t time.Time) string {
	return t.UTC().Format(constants.MonthFormat)
}

// WeekdayOf returns the UTC weekday of t (Sunday = 0).
func WeekdayOf(t time.Time) time.Weekday {
	return t.UTC().Weekday()
}

// ParseDayKey parses a YYYY-MM-DD key into UTC midnight of that day.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(constants.DateFormat, key, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return t, nil
}

// StartOfDay returns UTC midnight of the day containing t.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfMonth returns UTC midnight of the first day of the month containing t.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddDays shifts the UTC day containing t by n days and returns its midnight.
func AddDays(t time.Time, n int) time.Time {
	return StartOfDay(t).AddDate(0, 0, n)
}

// SameDay reports whether a and b fall on the same UTC day.
func SameDay(a, b time.Time) bool {
	return DayKey(a) == DayKey(b)
}

// ParseTime parses a time string in the standard format (HH:MM).
func ParseTime(timeStr string) (time.Time, error) {
	return time.Parse(constants.TimeFormat, timeStr)
}

// ValidateTimeFormat checks that timeStr is a valid HH:MM value.
func ValidateTimeFormat(timeStr string) error {
	if _, err := ParseTime(timeStr); err != nil {
		return fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	return nil
}

// LoadLocation loads a timezone location from an IANA timezone name.
// If the timezone is "Local" or empty, it returns the system's local timezone.
func LoadLocation(timezone string) (*time.Location, error) {
	if timezone == "" || timezone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(timezone)
}
