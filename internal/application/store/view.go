package store

import (
	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
)

// CurrentSemester is the read-only projection of the active semester merged
// with its subjects, timetable and reminders.
type CurrentSemester struct {
	ID             string                     `json:"id"`
	Name           string                     `json:"name"`
	AttendanceData []attendance.AttendanceDay `json:"attendanceData"`
	Subjects       []attendance.Subject       `json:"subjects"`
	Timetable      attendance.WeeklyTimetable `json:"timetable"`
	Reminders      []reminder.Reminder        `json:"reminders"`
}

// Compose merges the active semester stub with its subjects, timetable (or an
// empty week) and reminders. With no semesters it falls back to the built-in
// default semester.
func Compose(st State) CurrentSemester {
	var base attendance.Semester
	if idx := st.FindSemester(st.ActiveSemesterID()); idx >= 0 {
		base = st.Semesters[idx]
	} else {
		base, _ = document.DefaultSemester()
	}

	return CurrentSemester{
		ID:             base.ID,
		Name:           base.Name,
		AttendanceData: base.AttendanceData,
		Subjects:       st.Subjects(base.ID),
		Timetable:      st.Timetable(base.ID),
		Reminders:      st.Reminders(base.ID),
	}
}

// ValidSubjectIDs returns the ids of the semester's subjects.
func (c CurrentSemester) ValidSubjectIDs() map[string]struct{} {
	return attendance.SubjectIDs(c.Subjects)
}

// Days returns the attendance history without orphaned lecture records.
func (c CurrentSemester) Days() []attendance.AttendanceDay {
	return attendance.PruneDays(c.AttendanceData, c.ValidSubjectIDs())
}

// CurrentSemester returns the composed view of the active semester. The view
// is cached and recomputed only after the state changes.
func (s *Store) CurrentSemester() CurrentSemester {
	s.mu.RLock()
	st, version := s.state, s.version
	s.mu.RUnlock()

	s.viewMu.Lock()
	defer s.viewMu.Unlock()
	if !s.viewValid || s.viewVersion != version {
		s.view = Compose(st)
		s.viewVersion = version
		s.viewValid = true
	}
	return s.view
}
