// Package timeutil provides local-calendar helpers for the attendance tracker.
// Every attendance date is a local calendar date (YYYY-MM-DD) in a configured
// location; nothing in the engine works with UTC dates.
package timeutil

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Common date/time formats.
const (
	// FormatDate is the canonical date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatTime is the reminder time format (HH:MM).
	FormatTime = "15:04"
	// FormatDateTime is date and time without seconds.
	FormatDateTime = "2006-01-02 15:04"
)

// Clock abstracts the current time so schedulers and stores can be tested.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock whose value is set explicitly.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a ManualClock at t.
func NewManualClock(t time.Time) *ManualClock {
	return &ManualClock{now: t}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to t.
func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// LoadLocation resolves a timezone name. Empty and "Local" both mean time.Local.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load location %q: %w", name, err)
	}
	return loc, nil
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

// FormatDateIn returns the calendar date of t in loc as YYYY-MM-DD.
func FormatDateIn(t time.Time, loc *time.Location) string {
	return t.In(orLocal(loc)).Format(FormatDate)
}

// Today returns the current calendar date in loc.
func Today(c Clock, loc *time.Location) string {
	return FormatDateIn(c.Now(), loc)
}

// ParseDateIn parses a YYYY-MM-DD date as midnight in loc.
func ParseDateIn(value string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(FormatDate, strings.TrimSpace(value), orLocal(loc))
}

// NormalizeDate converts a date or timestamp string into the canonical
// YYYY-MM-DD local date. RFC3339 timestamps are converted to loc first.
func NormalizeDate(value string, loc *time.Location) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("empty date")
	}
	if t, err := ParseDateIn(value, loc); err == nil {
		return t.Format(FormatDate), nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, value, orLocal(loc)); err == nil {
			return FormatDateIn(t, loc), nil
		}
	}
	return "", fmt.Errorf("unrecognized date %q", value)
}

// StartOfMonth returns midnight of the first day of the month in loc.
func StartOfMonth(year int, month time.Month, loc *time.Location) time.Time {
	return time.Date(year, month, 1, 0, 0, 0, 0, orLocal(loc))
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsWeekend checks if the given time falls on Saturday or Sunday in loc.
func IsWeekend(t time.Time, loc *time.Location) bool {
	wd := t.In(orLocal(loc)).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsWeekendDate checks a YYYY-MM-DD date. Unparseable dates are not weekends.
func IsWeekendDate(date string, loc *time.Location) bool {
	t, err := ParseDateIn(date, loc)
	if err != nil {
		return false
	}
	return IsWeekend(t, loc)
}

// DaysBetween returns the number of calendar days from start to end; negative
// when end is before start.
func DaysBetween(start, end string, loc *time.Location) (int, error) {
	s, err := ParseDateIn(start, loc)
	if err != nil {
		return 0, fmt.Errorf("parse start: %w", err)
	}
	e, err := ParseDateIn(end, loc)
	if err != nil {
		return 0, fmt.Errorf("parse end: %w", err)
	}
	return int(civil(e).Sub(civil(s)) / (24 * time.Hour)), nil
}

// civil maps t's calendar date to UTC midnight so day arithmetic ignores DST.
func civil(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateRange returns every calendar date from start to end inclusive.
func DateRange(start, end string, loc *time.Location) ([]string, error) {
	s, err := ParseDateIn(start, loc)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	e, err := ParseDateIn(end, loc)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}
	var dates []string
	for d := s; !d.After(e); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(FormatDate))
	}
	return dates, nil
}
