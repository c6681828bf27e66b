// Package document defines the four persisted JSON documents exchanged with
// the remote store (semesters, subjects, timetables, reminders), their
// structural validation, the built-in defaults and the legacy migration.
package document

import (
	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
)

// Name identifies a persisted resource.
type Name string

const (
	Semesters  Name = "semesters"
	Subjects   Name = "subjects"
	Timetables Name = "timetables"
	Reminders  Name = "reminders"
)

// All lists every resource in load order.
var All = []Name{Semesters, Subjects, Timetables, Reminders}

// Valid reports whether n is a known resource.
func (n Name) Valid() bool {
	for _, v := range All {
		if v == n {
			return true
		}
	}
	return false
}

// SemestersDocument holds the semester list with attendance and the active id.
type SemestersDocument struct {
	CurrentSemesterID string                `json:"currentSemesterId"`
	Semesters         []attendance.Semester `json:"semesters"`
}

// SubjectsDocument holds the subjects of every semester.
type SubjectsDocument struct {
	SubjectsBySemester map[string][]attendance.Subject `json:"subjectsBySemester"`
}

// TimetablesDocument holds the weekly timetable of every semester.
type TimetablesDocument struct {
	Timetables map[string]attendance.WeeklyTimetable `json:"timetables"`
}

// RemindersDocument holds the reminders of every semester.
type RemindersDocument struct {
	Reminders map[string][]reminder.Reminder `json:"reminders"`
}

// Dataset is the complete persisted state.
type Dataset struct {
	Semesters  SemestersDocument
	Subjects   SubjectsDocument
	Timetables TimetablesDocument
	Reminders  RemindersDocument
}

// EnsureMaps replaces nil maps and slices with empty ones so encoded
// documents never contain null collections.
func (d *Dataset) EnsureMaps() {
	if d.Semesters.Semesters == nil {
		d.Semesters.Semesters = []attendance.Semester{}
	}
	for i := range d.Semesters.Semesters {
		if d.Semesters.Semesters[i].AttendanceData == nil {
			d.Semesters.Semesters[i].AttendanceData = []attendance.AttendanceDay{}
		}
	}
	if d.Subjects.SubjectsBySemester == nil {
		d.Subjects.SubjectsBySemester = map[string][]attendance.Subject{}
	}
	if d.Timetables.Timetables == nil {
		d.Timetables.Timetables = map[string]attendance.WeeklyTimetable{}
	}
	if d.Reminders.Reminders == nil {
		d.Reminders.Reminders = map[string][]reminder.Reminder{}
	}
}
