// Package attendance contains the attendance domain model: semesters, subjects,
// the weekly timetable, materialized attendance days and their classification.
// This is the core of the engine - there are no external dependencies here.
package attendance

import (
	"bytes"
	"encoding/json"
	"strings"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// SubjectType distinguishes theory lectures from practical sessions.
type SubjectType string

const (
	SubjectTheory SubjectType = "theory"
	SubjectLab    SubjectType = "lab"
)

// NormalizeSubjectType maps any value other than "lab" to theory.
func NormalizeSubjectType(v string) SubjectType {
	if strings.EqualFold(strings.TrimSpace(v), string(SubjectLab)) {
		return SubjectLab
	}
	return SubjectTheory
}

// LectureStatus is the outcome of a single lecture. The zero value means the
// lecture has not been marked yet and is encoded as JSON null.
type LectureStatus string

const (
	StatusUnmarked  LectureStatus = ""
	StatusPresent   LectureStatus = "present"
	StatusAbsent    LectureStatus = "absent"
	StatusFree      LectureStatus = "free"
	StatusCancelled LectureStatus = "cancelled"
)

// IsValid reports whether s is one of the known statuses (including unmarked).
func (s LectureStatus) IsValid() bool {
	switch s {
	case StatusUnmarked, StatusPresent, StatusAbsent, StatusFree, StatusCancelled:
		return true
	}
	return false
}

// Attended reports whether the status counts as attended.
func (s LectureStatus) Attended() bool {
	return s == StatusPresent || s == StatusFree
}

// Conducted reports whether the lecture counts toward the denominator.
// Only cancelled lectures are excluded; unmarked lectures count as conducted.
func (s LectureStatus) Conducted() bool {
	return s != StatusCancelled
}

// MarshalJSON encodes the unmarked status as null.
func (s LectureStatus) MarshalJSON() ([]byte, error) {
	return marshalNullable(string(s))
}

// UnmarshalJSON accepts null or a string.
func (s *LectureStatus) UnmarshalJSON(data []byte) error {
	v, err := unmarshalNullable(data)
	if err != nil {
		return err
	}
	*s = LectureStatus(v)
	return nil
}

// DayType overrides the lecture-based classification of a day.
type DayType string

const (
	DayRegular DayType = ""
	DayHoliday DayType = "holiday"
	DayExam    DayType = "exam"
)

// MarshalJSON encodes the regular day type as null.
func (d DayType) MarshalJSON() ([]byte, error) {
	return marshalNullable(string(d))
}

// UnmarshalJSON accepts null or a string.
func (d *DayType) UnmarshalJSON(data []byte) error {
	v, err := unmarshalNullable(data)
	if err != nil {
		return err
	}
	*d = DayType(v)
	return nil
}

func marshalNullable(v string) ([]byte, error) {
	if v == "" {
		return []byte("null"), nil
	}
	return json.Marshal(v)
}

func unmarshalNullable(data []byte) (string, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return "", nil
	}
	var v string
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	return v, nil
}

// Mark is what a user can apply to a whole day: a lecture status or a day type.
type Mark string

const (
	MarkPresent   Mark = "present"
	MarkAbsent    Mark = "absent"
	MarkFree      Mark = "free"
	MarkCancelled Mark = "cancelled"
	MarkHoliday   Mark = "holiday"
	MarkExam      Mark = "exam"
)

// DayType returns the day type for holiday/exam marks.
func (m Mark) DayType() (DayType, bool) {
	switch m {
	case MarkHoliday:
		return DayHoliday, true
	case MarkExam:
		return DayExam, true
	}
	return DayRegular, false
}

// LectureStatus returns the lecture status for lecture-level marks.
func (m Mark) LectureStatus() (LectureStatus, bool) {
	s := LectureStatus(m)
	if s != StatusUnmarked && s.IsValid() {
		return s, true
	}
	return StatusUnmarked, false
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITIES
// ══════════════════════════════════════════════════════════════════════════════

// Subject is a course scoped to one semester.
type Subject struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Type SubjectType `json:"type"`
}

// LectureRecord is one lecture of an attendance day.
type LectureRecord struct {
	SubjectID string        `json:"subjectId"`
	Type      SubjectType   `json:"type"`
	Status    LectureStatus `json:"status"`
}

// AttendanceDay holds the lectures of one calendar date.
type AttendanceDay struct {
	Date     string          `json:"date"`
	DayType  DayType         `json:"dayType"`
	Lectures []LectureRecord `json:"lectures"`
}

// Clone returns a deep copy of the day.
func (d AttendanceDay) Clone() AttendanceDay {
	out := d
	out.Lectures = append([]LectureRecord(nil), d.Lectures...)
	if out.Lectures == nil {
		out.Lectures = []LectureRecord{}
	}
	return out
}

// Semester is a named term that owns its attendance history.
type Semester struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	AttendanceData []AttendanceDay `json:"attendanceData"`
}

// Clone returns a deep copy of the semester.
func (s Semester) Clone() Semester {
	out := s
	out.AttendanceData = CloneDays(s.AttendanceData)
	return out
}

// CloneDays deep-copies an attendance list. The result is never nil.
func CloneDays(days []AttendanceDay) []AttendanceDay {
	out := make([]AttendanceDay, len(days))
	for i, d := range days {
		out[i] = d.Clone()
	}
	return out
}

// FindDay returns the index of the day with the given date, or -1.
func FindDay(days []AttendanceDay, date string) int {
	for i := range days {
		if days[i].Date == date {
			return i
		}
	}
	return -1
}

// SubjectIndex builds a lookup of subjects by id.
func SubjectIndex(subjects []Subject) map[string]Subject {
	idx := make(map[string]Subject, len(subjects))
	for _, s := range subjects {
		idx[s.ID] = s
	}
	return idx
}

// SubjectIDs returns the set of subject ids.
func SubjectIDs(subjects []Subject) map[string]struct{} {
	ids := make(map[string]struct{}, len(subjects))
	for _, s := range subjects {
		ids[s.ID] = struct{}{}
	}
	return ids
}

// PruneDays drops lecture records referencing subjects outside valid.
// Days themselves are kept even when they end up with no lectures.
func PruneDays(days []AttendanceDay, valid map[string]struct{}) []AttendanceDay {
	out := make([]AttendanceDay, len(days))
	for i, d := range days {
		lectures := make([]LectureRecord, 0, len(d.Lectures))
		for _, l := range d.Lectures {
			if _, ok := valid[l.SubjectID]; ok {
				lectures = append(lectures, l)
			}
		}
		out[i] = AttendanceDay{Date: d.Date, DayType: d.DayType, Lectures: lectures}
	}
	return out
}
