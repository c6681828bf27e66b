package attendance

import (
	"math"
	"sort"
	"time"

	"github.com/attendance-hub/attendance-tracker/pkg/timeutil"
)

// RiskThreshold is the minimum percentage considered safe.
const RiskThreshold = 75

// ══════════════════════════════════════════════════════════════════════════════
// DAY STATUS
// ══════════════════════════════════════════════════════════════════════════════

// DayStatus is the calendar classification of a date.
type DayStatus string

const (
	DayFull    DayStatus = "full"
	DayPartial DayStatus = "partial"
	DayAbsent  DayStatus = "absent"
	DayOff     DayStatus = "holiday"
	DayExamDay DayStatus = "exam"
	DayNone    DayStatus = "none"
)

// ClassifyDay applies the day status precedence:
// exam, holiday, attendance counts, empty entry, all-cancelled, weekend.
func ClassifyDay(lectures []LectureRecord, dayType DayType, isWeekend, hasEntry bool) DayStatus {
	switch dayType {
	case DayExam:
		return DayExamDay
	case DayHoliday:
		return DayOff
	}

	var present, absent, cancelled int
	for _, l := range lectures {
		switch {
		case l.Status == StatusCancelled:
			cancelled++
		case l.Status.Attended():
			present++
		case l.Status == StatusAbsent:
			absent++
		}
	}

	if len(lectures) == 0 && (isWeekend || hasEntry) {
		return DayOff
	}

	switch {
	case present > 0 && absent == 0:
		return DayFull
	case absent > 0 && present == 0:
		return DayAbsent
	case present > 0 && absent > 0:
		return DayPartial
	}

	if len(lectures) > 0 && cancelled == len(lectures) {
		return DayOff
	}
	if isWeekend {
		return DayOff
	}
	return DayNone
}

// DayStatusOn classifies date using its entry in days, if any.
func DayStatusOn(days []AttendanceDay, date string, loc *time.Location) DayStatus {
	var entry *AttendanceDay
	if i := FindDay(days, date); i >= 0 {
		entry = &days[i]
	}
	return DayStatusOf(entry, timeutil.IsWeekendDate(date, loc))
}

// DayStatusOf classifies a possibly missing day entry.
func DayStatusOf(day *AttendanceDay, isWeekend bool) DayStatus {
	if day == nil {
		return ClassifyDay(nil, DayRegular, isWeekend, false)
	}
	return ClassifyDay(day.Lectures, day.DayType, isWeekend, true)
}

// CalendarDay is one cell of a month view.
type CalendarDay struct {
	Date      string    `json:"date"`
	Day       int       `json:"day"`
	IsWeekend bool      `json:"isWeekend"`
	HasEntry  bool      `json:"hasEntry"`
	Status    DayStatus `json:"status"`
}

// MonthStatuses classifies every date of a month. Lectures of subjects not in
// subjects are ignored.
func MonthStatuses(days []AttendanceDay, subjects []Subject, year int, month time.Month, loc *time.Location) []CalendarDay {
	pruned := PruneDays(days, SubjectIDs(subjects))
	byDate := make(map[string]*AttendanceDay, len(pruned))
	for i := range pruned {
		byDate[pruned[i].Date] = &pruned[i]
	}

	first := timeutil.StartOfMonth(year, month, loc)
	n := timeutil.DaysInMonth(year, month)
	out := make([]CalendarDay, 0, n)
	for i := 0; i < n; i++ {
		d := first.AddDate(0, 0, i)
		date := timeutil.FormatDateIn(d, loc)
		weekend := timeutil.IsWeekend(d, loc)
		entry := byDate[date]
		out = append(out, CalendarDay{
			Date:      date,
			Day:       d.Day(),
			IsWeekend: weekend,
			HasEntry:  entry != nil,
			Status:    DayStatusOf(entry, weekend),
		})
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT STATISTICS
// ══════════════════════════════════════════════════════════════════════════════

// RiskStatus is the per-subject attendance verdict.
type RiskStatus string

const (
	RiskSafe   RiskStatus = "Safe"
	RiskAtRisk RiskStatus = "Risk"
	RiskNoData RiskStatus = "No Data"
)

// Percentage returns round(attended/conducted*100), or 0 when nothing was conducted.
func Percentage(attended, conducted int) int {
	if conducted == 0 {
		return 0
	}
	return int(math.Round(float64(attended) / float64(conducted) * 100))
}

// Tally counts conducted and attended lectures.
type Tally struct {
	Conducted  int `json:"conducted"`
	Attended   int `json:"attended"`
	Percentage int `json:"percentage"`
}

func (t *Tally) add(status LectureStatus) {
	if !status.Conducted() {
		return
	}
	t.Conducted++
	if status.Attended() {
		t.Attended++
	}
}

func (t *Tally) finish() {
	t.Percentage = Percentage(t.Attended, t.Conducted)
}

// SubjectStat is the attendance summary of one subject.
type SubjectStat struct {
	Subject    Subject    `json:"subject"`
	Attended   int        `json:"attended"`
	Conducted  int        `json:"conducted"`
	Percentage int        `json:"percentage"`
	Status     RiskStatus `json:"status"`
}

// SubjectWiseStatus computes per-subject statistics. Every subject gets an
// entry; lectures of unknown subjects are skipped.
func SubjectWiseStatus(days []AttendanceDay, subjects []Subject) map[string]SubjectStat {
	tallies := make(map[string]*Tally, len(subjects))
	for _, s := range subjects {
		tallies[s.ID] = &Tally{}
	}

	for _, d := range days {
		for _, l := range d.Lectures {
			if t, ok := tallies[l.SubjectID]; ok {
				t.add(l.Status)
			}
		}
	}

	out := make(map[string]SubjectStat, len(subjects))
	for _, s := range subjects {
		t := tallies[s.ID]
		t.finish()
		stat := SubjectStat{
			Subject:    s,
			Attended:   t.Attended,
			Conducted:  t.Conducted,
			Percentage: t.Percentage,
		}
		switch {
		case t.Conducted == 0:
			stat.Status = RiskNoData
		case t.Percentage >= RiskThreshold:
			stat.Status = RiskSafe
		default:
			stat.Status = RiskAtRisk
		}
		out[s.ID] = stat
	}
	return out
}

// SortedStats returns stats ordered like subjects.
func SortedStats(stats map[string]SubjectStat, subjects []Subject) []SubjectStat {
	out := make([]SubjectStat, 0, len(stats))
	for _, s := range subjects {
		if st, ok := stats[s.ID]; ok {
			out = append(out, st)
		}
	}
	return out
}

// AtRisk returns the subjects below the threshold, lowest percentage first.
func AtRisk(stats map[string]SubjectStat) []SubjectStat {
	var out []SubjectStat
	for _, st := range stats {
		if st.Status == RiskAtRisk {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage < out[j].Percentage
		}
		return out[i].Subject.ID < out[j].Subject.ID
	})
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// OVERALL
// ══════════════════════════════════════════════════════════════════════════════

// Overall partitions attendance by subject type and tracks today's lectures.
type Overall struct {
	TodayAttended int   `json:"todayAttended"`
	TodayTotal    int   `json:"todayTotal"`
	Theory        Tally `json:"theory"`
	Lab           Tally `json:"lab"`
	Overall       Tally `json:"overall"`
}

// OverallAttendance computes theory, lab and combined totals. Lectures whose
// subject no longer resolves are skipped. today is a YYYY-MM-DD date.
func OverallAttendance(days []AttendanceDay, subjects []Subject, today string) Overall {
	idx := SubjectIndex(subjects)
	var o Overall

	for _, d := range days {
		for _, l := range d.Lectures {
			subj, ok := idx[l.SubjectID]
			if !ok {
				continue
			}
			if l.Status == StatusCancelled {
				continue
			}
			if d.Date == today {
				o.TodayTotal++
				if l.Status.Attended() {
					o.TodayAttended++
				}
			}
			switch subj.Type {
			case SubjectLab:
				o.Lab.add(l.Status)
			default:
				o.Theory.add(l.Status)
			}
		}
	}

	o.Overall = Tally{
		Conducted: o.Theory.Conducted + o.Lab.Conducted,
		Attended:  o.Theory.Attended + o.Lab.Attended,
	}
	o.Theory.finish()
	o.Lab.finish()
	o.Overall.finish()
	return o
}

// ══════════════════════════════════════════════════════════════════════════════
// CUMULATIVE SERIES
// ══════════════════════════════════════════════════════════════════════════════

// SeriesPoint is the running attendance at one date.
type SeriesPoint struct {
	Date           string `json:"date"`
	Percentage     int    `json:"percentage"`
	TotalConducted int    `json:"totalConducted"`
	TotalAttended  int    `json:"totalAttended"`
}

// CumulativeSeries walks dates in order and accumulates attendance of the
// matching days. Dates without an entry repeat the previous totals.
func CumulativeSeries(days []AttendanceDay, dates []string) []SeriesPoint {
	byDate := make(map[string]AttendanceDay, len(days))
	for _, d := range days {
		byDate[d.Date] = d
	}

	var running Tally
	out := make([]SeriesPoint, 0, len(dates))
	for _, date := range dates {
		if d, ok := byDate[date]; ok {
			for _, l := range d.Lectures {
				running.add(l.Status)
			}
		}
		out = append(out, SeriesPoint{
			Date:           date,
			Percentage:     Percentage(running.Attended, running.Conducted),
			TotalConducted: running.Conducted,
			TotalAttended:  running.Attended,
		})
	}
	return out
}
