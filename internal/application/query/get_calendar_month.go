package query

import (
	"context"
	"time"

	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/shared"
)

// GetCalendarMonthQuery selects a month of the active semester.
type GetCalendarMonthQuery struct {
	Year  int
	Month time.Month
}

// Validate checks the month bounds.
func (q GetCalendarMonthQuery) Validate() error {
	if q.Month < time.January || q.Month > time.December {
		return shared.NewDomainError("query", "GetCalendarMonth", shared.ErrValueOutOfRange, "month must be 1..12")
	}
	if q.Year < 1970 || q.Year > 9999 {
		return shared.NewDomainError("query", "GetCalendarMonth", shared.ErrValueOutOfRange, "year out of range")
	}
	return nil
}

// CalendarMonth is the month DTO with a tally of each status.
type CalendarMonth struct {
	Year   int                          `json:"year"`
	Month  time.Month                   `json:"month"`
	Days   []attendance.CalendarDay     `json:"days"`
	Counts map[attendance.DayStatus]int `json:"counts"`
}

// GetCalendarMonthHandler classifies every day of a month.
type GetCalendarMonthHandler struct {
	state StateReader
	loc   *time.Location
}

// NewGetCalendarMonthHandler creates a handler. loc is the calendar timezone.
func NewGetCalendarMonthHandler(state StateReader, loc *time.Location) *GetCalendarMonthHandler {
	return &GetCalendarMonthHandler{state: state, loc: loc}
}

// Handle executes the query.
func (h *GetCalendarMonthHandler) Handle(ctx context.Context, q GetCalendarMonthQuery) (*CalendarMonth, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := h.state.CurrentSemester()
	days := attendance.MonthStatuses(view.AttendanceData, view.Subjects, q.Year, q.Month, h.loc)

	counts := make(map[attendance.DayStatus]int)
	for _, d := range days {
		counts[d.Status]++
	}
	return &CalendarMonth{Year: q.Year, Month: q.Month, Days: days, Counts: counts}, nil
}
