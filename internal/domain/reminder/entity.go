// Package reminder contains the reminder model: a dated note that is delivered
// once as a notification at its trigger time and then removed.
package reminder

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/attendance-hub/attendance-tracker/pkg/timeutil"
)

// Reminder is a one-shot note scoped to a semester.
type Reminder struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Date      string     `json:"date"`
	Time      string     `json:"time"`
	TriggerAt *time.Time `json:"triggerAt"`
	Delivered bool       `json:"delivered"`
}

// Clone returns a copy that does not share the TriggerAt pointer.
func (r Reminder) Clone() Reminder {
	out := r
	if r.TriggerAt != nil {
		t := *r.TriggerAt
		out.TriggerAt = &t
	}
	return out
}

// ComputeTriggerAt combines a YYYY-MM-DD date with an optional HH:MM time in
// loc. A missing or unparseable time means the start of the day.
func ComputeTriggerAt(date, clock string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	day, err := timeutil.ParseDateIn(date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse reminder date %q: %w", date, err)
	}

	hours, minutes := parseClock(clock)
	return time.Date(day.Year(), day.Month(), day.Day(), hours, minutes, 0, 0, loc), nil
}

func parseClock(v string) (int, int) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, 0
	}
	hh, mm, _ := strings.Cut(v, ":")
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		h = 0
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		m = 0
	}
	return h, m
}

// FireTime returns the stored trigger time, or computes it from date and time.
func (r Reminder) FireTime(loc *time.Location) (time.Time, error) {
	if r.TriggerAt != nil && !r.TriggerAt.IsZero() {
		return *r.TriggerAt, nil
	}
	return ComputeTriggerAt(r.Date, r.Time, loc)
}

// Delay returns how long to wait before firing, never negative.
func (r Reminder) Delay(now time.Time, loc *time.Location) (time.Duration, error) {
	at, err := r.FireTime(loc)
	if err != nil {
		return 0, err
	}
	return max(at.Sub(now), 0), nil
}

// When renders "<date>" or "<date> at <time>".
func (r Reminder) When() string {
	if strings.TrimSpace(r.Time) == "" {
		return r.Date
	}
	return r.Date + " at " + r.Time
}

// Notification is what a delivery agent displays for a fired reminder.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Tag   string `json:"tag"`
}

// Tag is the stable per-reminder notification tag.
func Tag(id string) string {
	return "reminder-" + id
}

// NewNotification builds the notification for r.
func NewNotification(r Reminder) Notification {
	return Notification{
		Title: r.Title,
		Body:  "Reminder for " + r.When(),
		Tag:   Tag(r.ID),
	}
}

// AlertText is the text of the blocking fallback alert.
func AlertText(r Reminder) string {
	return "Reminder: " + r.Title + "\n" + r.When()
}

// Draft is the user input for creating a reminder.
type Draft struct {
	ID    string `json:"id,omitempty"`
	Title string `json:"title" validate:"required"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Time  string `json:"time" validate:"omitempty,datetime=15:04"`
}

// Update carries optional field changes. Nil fields are left unchanged.
type Update struct {
	Title *string `json:"title,omitempty" validate:"omitempty,min=1"`
	Date  *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Time  *string `json:"time,omitempty" validate:"omitempty,datetime=15:04"`
}

// Apply merges u into r, resets delivery and recomputes the trigger time.
func (u Update) Apply(r Reminder, loc *time.Location) (Reminder, error) {
	out := r.Clone()
	if u.Title != nil {
		out.Title = *u.Title
	}
	if u.Date != nil {
		out.Date = *u.Date
	}
	if u.Time != nil {
		out.Time = *u.Time
	}
	at, err := ComputeTriggerAt(out.Date, out.Time, loc)
	if err != nil {
		return r, err
	}
	out.TriggerAt = &at
	out.Delivered = false
	return out, nil
}
