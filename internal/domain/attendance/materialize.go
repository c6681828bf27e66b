package attendance

import (
	"time"

	"github.com/attendance-hub/attendance-tracker/pkg/timeutil"
)

// LecturesForWeekday builds unmarked lecture records for the weekday's slots.
func LecturesForWeekday(tt WeeklyTimetable, w Weekday) []LectureRecord {
	slots := tt.SlotsFor(w)
	lectures := make([]LectureRecord, 0, len(slots))
	for _, slot := range slots {
		lectures = append(lectures, LectureRecord{
			SubjectID: slot.SubjectID,
			Type:      slot.Type,
			Status:    StatusUnmarked,
		})
	}
	return lectures
}

// LecturesForDate builds unmarked lecture records for a YYYY-MM-DD date, using
// the weekday of that date in loc. Invalid dates produce no lectures.
func LecturesForDate(tt WeeklyTimetable, date string, loc *time.Location) []LectureRecord {
	t, err := timeutil.ParseDateIn(date, loc)
	if err != nil {
		return []LectureRecord{}
	}
	return LecturesForWeekday(tt, WeekdayOf(t.Weekday()))
}

// EnsureDay returns days with an entry for date and the index of that entry.
//
// If the date already has an entry, days is returned unchanged and created is
// false. Otherwise a new AttendanceDay with one unmarked lecture per timetable
// slot of the date's weekday is appended to a copy of days. Weekend dates and
// days without slots still get an entry (with no lectures).
func EnsureDay(days []AttendanceDay, tt WeeklyTimetable, date string, loc *time.Location) (out []AttendanceDay, index int, created bool) {
	if i := FindDay(days, date); i >= 0 {
		return days, i, false
	}

	day := AttendanceDay{
		Date:     date,
		DayType:  DayRegular,
		Lectures: LecturesForDate(tt, date, loc),
	}

	out = make([]AttendanceDay, len(days), len(days)+1)
	copy(out, days)
	out = append(out, day)
	return out, len(out) - 1, true
}
