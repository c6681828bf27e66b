// Package query contains read operations over the attendance store.
package query

import (
	"context"
	"fmt"
	"time"

	"github.com/attendance-hub/attendance-tracker/internal/application/store"
	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/shared"
	"github.com/attendance-hub/attendance-tracker/pkg/timeutil"
)

// StateReader is the part of the store the queries need.
type StateReader interface {
	CurrentSemester() store.CurrentSemester
	Today() string
	Location() *time.Location
}

// ══════════════════════════════════════════════════════════════════════════════
// GET ATTENDANCE REPORT QUERY
// Per-subject percentages, theory/lab/overall totals and today's count for
// the active semester.
// ══════════════════════════════════════════════════════════════════════════════

// MaxSeriesDays bounds the cumulative series; longer ranges are rejected.
const MaxSeriesDays = 366

// GetAttendanceReportQuery contains the report parameters.
type GetAttendanceReportQuery struct {
	// SeriesFrom/SeriesTo bound the cumulative series (YYYY-MM-DD).
	// Both empty means no series.
	SeriesFrom string
	SeriesTo   string
}

// AttendanceReport is the report DTO.
type AttendanceReport struct {
	SemesterID   string                   `json:"semesterId"`
	SemesterName string                   `json:"semesterName"`
	Today        string                   `json:"today"`
	TodayStatus  attendance.DayStatus     `json:"todayStatus"`
	Overall      attendance.Overall       `json:"overall"`
	Subjects     []attendance.SubjectStat `json:"subjects"`
	AtRisk       []attendance.SubjectStat `json:"atRisk"`
	Series       []attendance.SeriesPoint `json:"series,omitempty"`
}

// GetAttendanceReportHandler builds attendance reports.
type GetAttendanceReportHandler struct {
	state StateReader
}

// NewGetAttendanceReportHandler creates a handler.
func NewGetAttendanceReportHandler(state StateReader) *GetAttendanceReportHandler {
	return &GetAttendanceReportHandler{state: state}
}

// Handle executes the query.
func (h *GetAttendanceReportHandler) Handle(ctx context.Context, q GetAttendanceReportQuery) (*AttendanceReport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	view := h.state.CurrentSemester()
	days := view.Days()
	stats := attendance.SubjectWiseStatus(days, view.Subjects)
	today := h.state.Today()

	report := &AttendanceReport{
		SemesterID:   view.ID,
		SemesterName: view.Name,
		Today:        today,
		TodayStatus:  attendance.DayStatusOn(days, today, h.state.Location()),
		Overall:      attendance.OverallAttendance(days, view.Subjects, today),
		Subjects:     attendance.SortedStats(stats, view.Subjects),
		AtRisk:       attendance.AtRisk(stats),
	}

	if q.SeriesFrom != "" || q.SeriesTo != "" {
		from, to := q.SeriesFrom, q.SeriesTo
		if from == "" {
			from = firstDate(days, today)
		}
		if to == "" {
			to = today
		}
		loc := h.state.Location()
		span, err := timeutil.DaysBetween(from, to, loc)
		if err != nil {
			return nil, shared.WrapError("query", "GetAttendanceReport", shared.ErrInvalidFormat, "invalid series range", err)
		}
		if span >= MaxSeriesDays {
			return nil, shared.NewDomainError("query", "GetAttendanceReport", shared.ErrValueOutOfRange,
				fmt.Sprintf("series range exceeds %d days", MaxSeriesDays))
		}
		dates, err := timeutil.DateRange(from, to, loc)
		if err != nil {
			return nil, shared.WrapError("query", "GetAttendanceReport", shared.ErrInvalidFormat, "invalid series range", err)
		}
		report.Series = attendance.CumulativeSeries(days, dates)
	}
	return report, nil
}

func firstDate(days []attendance.AttendanceDay, fallback string) string {
	first := fallback
	for _, d := range days {
		if d.Date < first {
			first = d.Date
		}
	}
	return first
}
