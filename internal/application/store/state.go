package store

import (
	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
)

// State is an immutable snapshot of all attendance data. Mutations never
// modify a published State; they build a new one that shares untouched
// collections with the previous snapshot. Callers must treat every map and
// slice reachable from a State as read-only.
type State struct {
	CurrentSemesterID    string
	Semesters            []attendance.Semester
	SubjectsBySemester   map[string][]attendance.Subject
	TimetablesBySemester map[string]attendance.WeeklyTimetable
	RemindersBySemester  map[string][]reminder.Reminder
}

// FindSemester returns the index of the semester with id, or -1.
func (s State) FindSemester(id string) int {
	for i := range s.Semesters {
		if s.Semesters[i].ID == id {
			return i
		}
	}
	return -1
}

// ActiveSemesterID resolves the active semester: the current id when it
// exists, otherwise the first semester.
func (s State) ActiveSemesterID() string {
	if s.FindSemester(s.CurrentSemesterID) >= 0 {
		return s.CurrentSemesterID
	}
	if len(s.Semesters) > 0 {
		return s.Semesters[0].ID
	}
	return s.CurrentSemesterID
}

// Subjects returns the subjects of a semester (never nil).
func (s State) Subjects(semesterID string) []attendance.Subject {
	if list, ok := s.SubjectsBySemester[semesterID]; ok && list != nil {
		return list
	}
	return []attendance.Subject{}
}

// Timetable returns the timetable of a semester, or an empty week.
func (s State) Timetable(semesterID string) attendance.WeeklyTimetable {
	if tt, ok := s.TimetablesBySemester[semesterID]; ok && tt != nil {
		return tt
	}
	return attendance.EmptyWeek()
}

// Reminders returns the reminders of a semester (never nil).
func (s State) Reminders(semesterID string) []reminder.Reminder {
	if list, ok := s.RemindersBySemester[semesterID]; ok && list != nil {
		return list
	}
	return []reminder.Reminder{}
}

// normalized returns a state that satisfies the store invariants: at least
// one semester, a resolvable active id and non-nil maps.
func (s State) normalized() State {
	out := s
	if len(out.Semesters) == 0 {
		sem, subjects := document.DefaultSemester()
		out.Semesters = []attendance.Semester{sem}
		if out.SubjectsBySemester == nil || out.SubjectsBySemester[sem.ID] == nil {
			out.SubjectsBySemester = withEntry(out.SubjectsBySemester, sem.ID, subjects)
		}
	}
	semesters := make([]attendance.Semester, len(out.Semesters))
	for i, sem := range out.Semesters {
		if sem.AttendanceData == nil {
			sem.AttendanceData = []attendance.AttendanceDay{}
		}
		semesters[i] = sem
	}
	out.Semesters = semesters
	if out.SubjectsBySemester == nil {
		out.SubjectsBySemester = map[string][]attendance.Subject{}
	}
	if out.TimetablesBySemester == nil {
		out.TimetablesBySemester = map[string]attendance.WeeklyTimetable{}
	}
	if out.RemindersBySemester == nil {
		out.RemindersBySemester = map[string][]reminder.Reminder{}
	}
	out.CurrentSemesterID = out.ActiveSemesterID()
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// COPY-ON-WRITE HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func withEntry[V any](m map[string]V, key string, v V) map[string]V {
	out := make(map[string]V, len(m)+1)
	for k, val := range m {
		out[k] = val
	}
	out[key] = v
	return out
}

func withoutEntry[V any](m map[string]V, key string) map[string]V {
	out := make(map[string]V, len(m))
	for k, val := range m {
		if k != key {
			out[k] = val
		}
	}
	return out
}

// withSemester returns a copy of semesters with the entry at i replaced.
func withSemester(semesters []attendance.Semester, i int, sem attendance.Semester) []attendance.Semester {
	out := make([]attendance.Semester, len(semesters))
	copy(out, semesters)
	out[i] = sem
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// DOCUMENT MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// FromDataset builds a State from loaded documents. Built-in subject lists
// are kept for semesters the loaded subjects document does not mention; the
// active id falls back to the first semester, then the default id.
func FromDataset(ds document.Dataset) State {
	defaults := document.Defaults()

	subjects := make(map[string][]attendance.Subject, len(defaults.Subjects.SubjectsBySemester)+len(ds.Subjects.SubjectsBySemester))
	for id, list := range defaults.Subjects.SubjectsBySemester {
		subjects[id] = list
	}
	for id, list := range ds.Subjects.SubjectsBySemester {
		subjects[id] = list
	}

	timetables := make(map[string]attendance.WeeklyTimetable, len(ds.Timetables.Timetables))
	for id, tt := range ds.Timetables.Timetables {
		timetables[id] = tt.Normalize()
	}

	st := State{
		CurrentSemesterID:    ds.Semesters.CurrentSemesterID,
		Semesters:            attendanceCopy(ds.Semesters.Semesters),
		SubjectsBySemester:   subjects,
		TimetablesBySemester: timetables,
		RemindersBySemester:  ds.Reminders.Reminders,
	}
	if st.FindSemester(st.CurrentSemesterID) < 0 {
		if len(st.Semesters) > 0 {
			st.CurrentSemesterID = st.Semesters[0].ID
		} else {
			st.CurrentSemesterID = document.DefaultSemesterID()
		}
	}
	return st.normalized()
}

func attendanceCopy(in []attendance.Semester) []attendance.Semester {
	out := make([]attendance.Semester, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// Document returns the canonical document for one resource.
func (s State) Document(name document.Name) any {
	switch name {
	case document.Semesters:
		return document.SemestersDocument{CurrentSemesterID: s.CurrentSemesterID, Semesters: s.Semesters}
	case document.Subjects:
		return document.SubjectsDocument{SubjectsBySemester: s.SubjectsBySemester}
	case document.Timetables:
		return document.TimetablesDocument{Timetables: s.TimetablesBySemester}
	case document.Reminders:
		return document.RemindersDocument{Reminders: s.RemindersBySemester}
	}
	return nil
}

// Dataset returns all four documents.
func (s State) Dataset() document.Dataset {
	ds := document.Dataset{
		Semesters:  s.Document(document.Semesters).(document.SemestersDocument),
		Subjects:   s.Document(document.Subjects).(document.SubjectsDocument),
		Timetables: s.Document(document.Timetables).(document.TimetablesDocument),
		Reminders:  s.Document(document.Reminders).(document.RemindersDocument),
	}
	ds.EnsureMaps()
	return ds
}
