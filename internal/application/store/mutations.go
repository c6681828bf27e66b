package store

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
	"github.com/attendance-hub/attendance-tracker/internal/domain/shared"
	"github.com/attendance-hub/attendance-tracker/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEMESTERS
// ══════════════════════════════════════════════════════════════════════════════

// AddSemesterOptions configures AddSemester.
type AddSemesterOptions struct {
	// SourceSemesterID, when set, copies that semester's subjects.
	SourceSemesterID string
}

// AddSemester creates a semester with a fresh sem<N> id, empty attendance,
// timetable and reminders, and makes it active.
func (s *Store) AddSemester(name string, opts AddSemesterOptions) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", shared.ErrEmptySemesterName
	}

	var id string
	err := s.commit("AddSemester", allResources, false, func(st *State) error {
		id = attendance.NextSemesterID(st.Semesters)

		var subjects []attendance.Subject
		if opts.SourceSemesterID != "" {
			subjects = append(subjects, st.Subjects(opts.SourceSemesterID)...)
		}
		if subjects == nil {
			subjects = []attendance.Subject{}
		}

		semesters := make([]attendance.Semester, len(st.Semesters), len(st.Semesters)+1)
		copy(semesters, st.Semesters)
		st.Semesters = append(semesters, attendance.Semester{ID: id, Name: name, AttendanceData: []attendance.AttendanceDay{}})
		st.SubjectsBySemester = withEntry(st.SubjectsBySemester, id, subjects)
		st.TimetablesBySemester = withEntry(st.TimetablesBySemester, id, attendance.EmptyWeek())
		st.RemindersBySemester = withEntry(st.RemindersBySemester, id, []reminder.Reminder{})
		st.CurrentSemesterID = id
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteSemester removes a semester and everything scoped to it. The last
// semester cannot be deleted. If the deleted semester was active, the first
// remaining semester becomes active.
func (s *Store) DeleteSemester(id string) error {
	return s.commit("DeleteSemester", allResources, false, func(st *State) error {
		idx := st.FindSemester(id)
		if idx < 0 {
			return shared.ErrSemesterNotFound
		}
		if len(st.Semesters) <= 1 {
			return shared.ErrLastSemester
		}

		semesters := make([]attendance.Semester, 0, len(st.Semesters)-1)
		semesters = append(semesters, st.Semesters[:idx]...)
		semesters = append(semesters, st.Semesters[idx+1:]...)

		wasActive := st.ActiveSemesterID() == id
		st.Semesters = semesters
		st.SubjectsBySemester = withoutEntry(st.SubjectsBySemester, id)
		st.TimetablesBySemester = withoutEntry(st.TimetablesBySemester, id)
		st.RemindersBySemester = withoutEntry(st.RemindersBySemester, id)
		if wasActive {
			st.CurrentSemesterID = semesters[0].ID
		}
		return nil
	})
}

// SetCurrentSemester makes an existing semester active.
func (s *Store) SetCurrentSemester(id string) error {
	return s.commit("SetCurrentSemester", semestersOnly, false, func(st *State) error {
		if st.FindSemester(id) < 0 {
			return shared.ErrSemesterNotFound
		}
		st.CurrentSemesterID = id
		return nil
	})
}

// RenameSemester changes a semester's display name.
func (s *Store) RenameSemester(id, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return shared.ErrEmptySemesterName
	}
	return s.commit("RenameSemester", semestersOnly, false, func(st *State) error {
		idx := st.FindSemester(id)
		if idx < 0 {
			return shared.ErrSemesterNotFound
		}
		sem := st.Semesters[idx]
		sem.Name = name
		st.Semesters = withSemester(st.Semesters, idx, sem)
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// AddSubject adds a subject to the active semester. The id is the slug of the
// name, suffixed _2, _3, ... when taken. Unknown types become theory.
func (s *Store) AddSubject(name string, subjectType attendance.SubjectType) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", shared.ErrEmptySubjectName
	}

	var id string
	err := s.commit("AddSubject", subjectsOnly, false, func(st *State) error {
		semID := st.ActiveSemesterID()
		existing := st.Subjects(semID)
		id = attendance.NextSubjectID(existing, name)

		subjects := make([]attendance.Subject, len(existing), len(existing)+1)
		copy(subjects, existing)
		subjects = append(subjects, attendance.Subject{
			ID:   id,
			Name: name,
			Type: attendance.NormalizeSubjectType(string(subjectType)),
		})
		st.SubjectsBySemester = withEntry(st.SubjectsBySemester, semID, subjects)
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// RemoveSubject deletes a subject of the active semester together with its
// timetable slots and every lecture record referencing it.
func (s *Store) RemoveSubject(id string) error {
	return s.commit("RemoveSubject", subjectCascade, false, func(st *State) error {
		semID := st.ActiveSemesterID()
		existing := st.Subjects(semID)

		remaining := make([]attendance.Subject, 0, len(existing))
		found := false
		for _, subj := range existing {
			if subj.ID == id {
				found = true
				continue
			}
			remaining = append(remaining, subj)
		}
		if !found {
			return shared.ErrSubjectNotFound
		}
		applySubjects(st, semID, remaining)
		return nil
	})
}

// SetSemesterSubjects replaces the subjects of a semester and drops timetable
// slots and lecture records of subjects no longer present.
func (s *Store) SetSemesterSubjects(semesterID string, subjects []attendance.Subject) error {
	return s.commit("SetSemesterSubjects", subjectCascade, false, func(st *State) error {
		if st.FindSemester(semesterID) < 0 {
			return shared.ErrSemesterNotFound
		}
		normalized := make([]attendance.Subject, 0, len(subjects))
		for _, subj := range subjects {
			normalized = append(normalized, attendance.Subject{
				ID:   subj.ID,
				Name: subj.Name,
				Type: attendance.NormalizeSubjectType(string(subj.Type)),
			})
		}
		applySubjects(st, semesterID, normalized)
		return nil
	})
}

// applySubjects stores subjects for semID and cascades the valid id set into
// the timetable and the attendance history.
func applySubjects(st *State, semID string, subjects []attendance.Subject) {
	valid := attendance.SubjectIDs(subjects)

	st.SubjectsBySemester = withEntry(st.SubjectsBySemester, semID, subjects)
	st.TimetablesBySemester = withEntry(st.TimetablesBySemester, semID, st.Timetable(semID).Prune(valid))

	if idx := st.FindSemester(semID); idx >= 0 {
		sem := st.Semesters[idx]
		sem.AttendanceData = attendance.PruneDays(sem.AttendanceData, valid)
		st.Semesters = withSemester(st.Semesters, idx, sem)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TIMETABLE
// ══════════════════════════════════════════════════════════════════════════════

// SetSemesterTimetable replaces the weekly timetable of a semester. Only
// monday..friday are kept; missing days become empty.
func (s *Store) SetSemesterTimetable(semesterID string, tt attendance.WeeklyTimetable) error {
	return s.commit("SetSemesterTimetable", timetablesOnly, false, func(st *State) error {
		if st.FindSemester(semesterID) < 0 {
			return shared.ErrSemesterNotFound
		}
		st.TimetablesBySemester = withEntry(st.TimetablesBySemester, semesterID, tt.Normalize())
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ATTENDANCE
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) normalizeDate(date string) (string, error) {
	d, err := timeutil.NormalizeDate(date, s.loc)
	if err != nil {
		return "", shared.WrapError("attendance", "NormalizeDate", shared.ErrInvalidFormat, "invalid date", err)
	}
	return d, nil
}

// editDay materializes date in the active semester, lets fn edit a private
// copy of the day, and stores the result.
func (s *Store) editDay(st *State, date string, fn func(day *attendance.AttendanceDay, tt attendance.WeeklyTimetable) error) error {
	semID := st.ActiveSemesterID()
	idx := st.FindSemester(semID)
	if idx < 0 {
		return shared.ErrSemesterNotFound
	}
	sem := st.Semesters[idx]
	tt := st.Timetable(semID).Prune(attendance.SubjectIDs(st.Subjects(semID)))

	days, dayIdx, _ := attendance.EnsureDay(sem.AttendanceData, tt, date, s.loc)
	day := days[dayIdx].Clone()
	if err := fn(&day, tt); err != nil {
		return err
	}

	updated := make([]attendance.AttendanceDay, len(days))
	copy(updated, days)
	updated[dayIdx] = day
	sem.AttendanceData = updated
	st.Semesters = withSemester(st.Semesters, idx, sem)
	return nil
}

// MarkDayStatus marks a whole day. Holiday and exam set the day type and clear
// the lectures; a lecture status is applied to every lecture of the day.
func (s *Store) MarkDayStatus(date string, mark attendance.Mark) error {
	date, err := s.normalizeDate(date)
	if err != nil {
		return err
	}
	if dayType, ok := mark.DayType(); ok {
		return s.commit("MarkDayStatus", semestersOnly, false, func(st *State) error {
			return s.editDay(st, date, func(day *attendance.AttendanceDay, _ attendance.WeeklyTimetable) error {
				day.DayType = dayType
				day.Lectures = []attendance.LectureRecord{}
				return nil
			})
		})
	}

	status, ok := mark.LectureStatus()
	if !ok {
		return shared.ErrInvalidMark
	}
	return s.commit("MarkDayStatus", semestersOnly, false, func(st *State) error {
		return s.editDay(st, date, func(day *attendance.AttendanceDay, tt attendance.WeeklyTimetable) error {
			if day.DayType != attendance.DayRegular || len(day.Lectures) == 0 {
				day.DayType = attendance.DayRegular
				if len(day.Lectures) == 0 {
					day.Lectures = attendance.LecturesForDate(tt, date, s.loc)
				}
			}
			for i := range day.Lectures {
				day.Lectures[i].Status = status
			}
			return nil
		})
	})
}

// MarkDayLectureStatuses sets the status of each lecture whose subject is in
// statuses; other lectures keep their status.
func (s *Store) MarkDayLectureStatuses(date string, statuses map[string]attendance.LectureStatus) error {
	date, err := s.normalizeDate(date)
	if err != nil {
		return err
	}
	for subjectID, st := range statuses {
		if !st.IsValid() {
			return shared.WrapError("attendance", "MarkLectures", shared.ErrInvalidInput,
				"invalid status", fmt.Errorf("subject %s: %q", subjectID, st))
		}
	}
	return s.commit("MarkDayLectureStatuses", semestersOnly, false, func(st *State) error {
		return s.editDay(st, date, func(day *attendance.AttendanceDay, _ attendance.WeeklyTimetable) error {
			for i, l := range day.Lectures {
				if status, ok := statuses[l.SubjectID]; ok {
					day.Lectures[i].Status = status
				}
			}
			return nil
		})
	})
}

// MarkTodayAttendance sets the status of today's first lecture of subjectID.
func (s *Store) MarkTodayAttendance(subjectID string, status attendance.LectureStatus) error {
	if !status.IsValid() {
		return shared.ErrInvalidMark
	}
	today := s.Today()
	return s.commit("MarkTodayAttendance", semestersOnly, false, func(st *State) error {
		return s.editDay(st, today, func(day *attendance.AttendanceDay, _ attendance.WeeklyTimetable) error {
			for i := range day.Lectures {
				if day.Lectures[i].SubjectID == subjectID {
					day.Lectures[i].Status = status
					return nil
				}
			}
			return shared.ErrLectureNotScheduled
		})
	})
}

// RemoveDayAttendance deletes the entry for date from the active semester.
func (s *Store) RemoveDayAttendance(date string) error {
	date, err := s.normalizeDate(date)
	if err != nil {
		return err
	}
	return s.commit("RemoveDayAttendance", semestersOnly, false, func(st *State) error {
		idx := st.FindSemester(st.ActiveSemesterID())
		if idx < 0 {
			return shared.ErrSemesterNotFound
		}
		sem := st.Semesters[idx]
		days := make([]attendance.AttendanceDay, 0, len(sem.AttendanceData))
		for _, d := range sem.AttendanceData {
			if d.Date != date {
				days = append(days, d)
			}
		}
		if len(days) == len(sem.AttendanceData) {
			return shared.NewDomainError("attendance", "RemoveDay", shared.ErrNotFound, "no entry for "+date)
		}
		sem.AttendanceData = days
		st.Semesters = withSemester(st.Semesters, idx, sem)
		return nil
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// REMINDERS
// ══════════════════════════════════════════════════════════════════════════════

// AddReminder validates draft and appends it to the active semester. Missing
// ids are generated; the trigger time is computed from date and time.
func (s *Store) AddReminder(draft reminder.Draft) (reminder.Reminder, error) {
	if err := validateStruct(draft); err != nil {
		return reminder.Reminder{}, shared.WrapError("reminder", "Add", shared.ErrValidation, "invalid reminder", err)
	}
	at, err := reminder.ComputeTriggerAt(draft.Date, draft.Time, s.loc)
	if err != nil {
		return reminder.Reminder{}, shared.WrapError("reminder", "Add", shared.ErrInvalidFormat, "invalid reminder date", err)
	}

	r := reminder.Reminder{
		ID:        draft.ID,
		Title:     strings.TrimSpace(draft.Title),
		Date:      draft.Date,
		Time:      draft.Time,
		TriggerAt: &at,
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	err = s.commit("AddReminder", remindersResource, false, func(st *State) error {
		semID := st.ActiveSemesterID()
		existing := st.Reminders(semID)
		for _, e := range existing {
			if e.ID == r.ID {
				return shared.NewDomainError("reminder", "Add", shared.ErrAlreadyExists, "reminder id already used")
			}
		}
		list := make([]reminder.Reminder, len(existing), len(existing)+1)
		copy(list, existing)
		st.RemindersBySemester = withEntry(st.RemindersBySemester, semID, append(list, r))
		return nil
	})
	if err != nil {
		return reminder.Reminder{}, err
	}
	return r, nil
}

// UpdateReminder merges u into a reminder of the active semester, resets
// Delivered and recomputes the trigger time.
func (s *Store) UpdateReminder(id string, u reminder.Update) error {
	if err := validateStruct(u); err != nil {
		return shared.WrapError("reminder", "Update", shared.ErrValidation, "invalid reminder update", err)
	}
	return s.commit("UpdateReminder", remindersResource, false, func(st *State) error {
		semID := st.ActiveSemesterID()
		existing := st.Reminders(semID)
		for i, r := range existing {
			if r.ID != id {
				continue
			}
			updated, err := u.Apply(r, s.loc)
			if err != nil {
				return shared.WrapError("reminder", "Update", shared.ErrInvalidFormat, "invalid reminder date", err)
			}
			list := make([]reminder.Reminder, len(existing))
			copy(list, existing)
			list[i] = updated
			st.RemindersBySemester = withEntry(st.RemindersBySemester, semID, list)
			return nil
		}
		return shared.ErrReminderNotFound
	})
}

// RemoveReminder deletes a reminder of the active semester.
func (s *Store) RemoveReminder(id string) error {
	return s.commit("RemoveReminder", remindersResource, false, func(st *State) error {
		return removeReminder(st, st.ActiveSemesterID(), id)
	})
}

// RemoveReminderFrom deletes a reminder of any semester. The scheduler uses it
// after delivery.
func (s *Store) RemoveReminderFrom(semesterID, id string) error {
	return s.commit("RemoveReminder", remindersResource, false, func(st *State) error {
		return removeReminder(st, semesterID, id)
	})
}

func removeReminder(st *State, semID, id string) error {
	existing := st.Reminders(semID)
	list := make([]reminder.Reminder, 0, len(existing))
	for _, r := range existing {
		if r.ID != id {
			list = append(list, r)
		}
	}
	if len(list) == len(existing) {
		return shared.ErrReminderNotFound
	}
	st.RemindersBySemester = withEntry(st.RemindersBySemester, semID, list)
	return nil
}
