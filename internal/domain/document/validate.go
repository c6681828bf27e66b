package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
)

var (
	// ErrInvalidJSON is returned when a payload is not JSON at all.
	ErrInvalidJSON = errors.New("invalid JSON payload")
	// ErrInvalidShape is returned when a payload is JSON but structurally wrong.
	ErrInvalidShape = errors.New("invalid document shape")
)

// ShapeError describes which field failed structural validation.
type ShapeError struct {
	Message string
}

func (e *ShapeError) Error() string { return e.Message }

// Unwrap lets errors.Is match ErrInvalidShape.
func (e *ShapeError) Unwrap() error { return ErrInvalidShape }

func shapeErr(format string, args ...any) error {
	return &ShapeError{Message: fmt.Sprintf(format, args...)}
}

func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return map[string]json.RawMessage{}, nil
	}
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, ErrInvalidJSON
	}
	obj := map[string]json.RawMessage{}
	if _, ok := raw.(map[string]any); !ok {
		return obj, nil
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, ErrInvalidJSON
	}
	return obj, nil
}

func isArray(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '['
}

func isObject(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) > 0 && t[0] == '{'
}

type rawSemester struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	AttendanceData json.RawMessage `json:"attendanceData"`
	Subjects       json.RawMessage `json:"subjects,omitempty"`
}

func cleanDays(raw json.RawMessage) ([]attendance.AttendanceDay, error) {
	if !isArray(raw) {
		return []attendance.AttendanceDay{}, nil
	}
	var days []attendance.AttendanceDay
	if err := json.Unmarshal(raw, &days); err != nil {
		return nil, shapeErr("attendanceData is malformed: %v", err)
	}
	out := make([]attendance.AttendanceDay, 0, len(days))
	for _, d := range days {
		clean := attendance.AttendanceDay{Date: d.Date, Lectures: make([]attendance.LectureRecord, 0, len(d.Lectures))}
		if d.DayType == attendance.DayHoliday || d.DayType == attendance.DayExam {
			clean.DayType = d.DayType
		}
		for _, l := range d.Lectures {
			lr := attendance.LectureRecord{SubjectID: l.SubjectID, Type: l.Type, Status: l.Status}
			if lr.Type == "" {
				lr.Type = attendance.SubjectTheory
			}
			if !lr.Status.IsValid() {
				lr.Status = attendance.StatusUnmarked
			}
			clean.Lectures = append(clean.Lectures, lr)
		}
		out = append(out, clean)
	}
	return out, nil
}

// ParseSemesters validates a semesters payload. semesters must be an array;
// a missing currentSemesterId defaults to the first semester id; a missing
// attendanceData becomes an empty list.
func ParseSemesters(body []byte) (SemestersDocument, error) {
	doc, _, err := parseSemesters(body)
	return doc, err
}

func parseSemesters(body []byte) (SemestersDocument, map[string][]attendance.Subject, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return SemestersDocument{}, nil, err
	}
	rawList, ok := obj["semesters"]
	if !ok || !isArray(rawList) {
		return SemestersDocument{}, nil, shapeErr("semesters must be an array.")
	}

	var entries []rawSemester
	if err := json.Unmarshal(rawList, &entries); err != nil {
		return SemestersDocument{}, nil, shapeErr("semesters entries are malformed: %v", err)
	}

	doc := SemestersDocument{Semesters: make([]attendance.Semester, 0, len(entries))}
	embedded := map[string][]attendance.Subject{}
	for _, e := range entries {
		days, err := cleanDays(e.AttendanceData)
		if err != nil {
			return SemestersDocument{}, nil, err
		}
		doc.Semesters = append(doc.Semesters, attendance.Semester{ID: e.ID, Name: e.Name, AttendanceData: days})

		if isArray(e.Subjects) {
			var subjects []attendance.Subject
			if err := json.Unmarshal(e.Subjects, &subjects); err == nil {
				embedded[e.ID] = cleanSubjects(subjects)
			}
		}
	}

	if raw, ok := obj["currentSemesterId"]; ok {
		var id *string
		if err := json.Unmarshal(raw, &id); err == nil && id != nil {
			doc.CurrentSemesterID = *id
		}
	}
	if doc.CurrentSemesterID == "" && len(doc.Semesters) > 0 {
		doc.CurrentSemesterID = doc.Semesters[0].ID
	}
	return doc, embedded, nil
}

func cleanSubjects(in []attendance.Subject) []attendance.Subject {
	out := make([]attendance.Subject, 0, len(in))
	for _, s := range in {
		out = append(out, attendance.Subject{ID: s.ID, Name: s.Name, Type: attendance.NormalizeSubjectType(string(s.Type))})
	}
	return out
}

// ParseSubjects validates a subjects payload. subjectsBySemester must be an object.
func ParseSubjects(body []byte) (SubjectsDocument, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return SubjectsDocument{}, err
	}
	raw, ok := obj["subjectsBySemester"]
	if !ok || !isObject(raw) {
		return SubjectsDocument{}, shapeErr("subjectsBySemester must be an object.")
	}
	var bySem map[string][]attendance.Subject
	if err := json.Unmarshal(raw, &bySem); err != nil {
		return SubjectsDocument{}, shapeErr("subjectsBySemester is malformed: %v", err)
	}
	for id, subjects := range bySem {
		bySem[id] = cleanSubjects(subjects)
	}
	return SubjectsDocument{SubjectsBySemester: bySem}, nil
}

// ParseTimetables validates a timetables payload. A missing or non-object
// timetables field is stored as an empty map.
func ParseTimetables(body []byte) (TimetablesDocument, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return TimetablesDocument{}, err
	}
	doc := TimetablesDocument{Timetables: map[string]attendance.WeeklyTimetable{}}
	raw, ok := obj["timetables"]
	if !ok || !isObject(raw) {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc.Timetables); err != nil {
		return TimetablesDocument{}, shapeErr("timetables is malformed: %v", err)
	}
	return doc, nil
}

// ParseReminders validates a reminders payload. A missing or non-object
// reminders field is stored as an empty map.
func ParseReminders(body []byte) (RemindersDocument, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return RemindersDocument{}, err
	}
	doc := RemindersDocument{Reminders: map[string][]reminder.Reminder{}}
	raw, ok := obj["reminders"]
	if !ok || !isObject(raw) {
		return doc, nil
	}
	if err := json.Unmarshal(raw, &doc.Reminders); err != nil {
		return RemindersDocument{}, shapeErr("reminders is malformed: %v", err)
	}
	return doc, nil
}

// Parse validates a payload for name and returns the canonical document.
func Parse(name Name, body []byte) (any, error) {
	switch name {
	case Semesters:
		return ParseSemesters(body)
	case Subjects:
		return ParseSubjects(body)
	case Timetables:
		return ParseTimetables(body)
	case Reminders:
		return ParseReminders(body)
	}
	return nil, fmt.Errorf("unknown document %q", name)
}

// MigrateLegacy moves subject lists embedded in semester entries into the
// subjects document. Semesters that already have subjects there keep them.
// It reports whether each document changed.
func MigrateLegacy(semestersBody []byte, subjects SubjectsDocument) (SemestersDocument, SubjectsDocument, bool, bool, error) {
	sems, embedded, err := parseSemesters(semestersBody)
	if err != nil {
		return SemestersDocument{}, subjects, false, false, err
	}
	if len(embedded) == 0 {
		return sems, subjects, false, false, nil
	}

	out := SubjectsDocument{SubjectsBySemester: make(map[string][]attendance.Subject, len(subjects.SubjectsBySemester)+len(embedded))}
	for id, list := range subjects.SubjectsBySemester {
		out.SubjectsBySemester[id] = list
	}

	subjectsChanged := false
	for id, list := range embedded {
		if _, exists := out.SubjectsBySemester[id]; exists {
			continue
		}
		out.SubjectsBySemester[id] = list
		subjectsChanged = true
	}
	return sems, out, true, subjectsChanged, nil
}
