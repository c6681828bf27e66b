package document

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type seedSubject struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

type seedSemester struct {
	ID       string        `yaml:"id"`
	Name     string        `yaml:"name"`
	Subjects []seedSubject `yaml:"subjects"`
}

type seed struct {
	CurrentSemesterID string         `yaml:"currentSemesterId"`
	Semesters         []seedSemester `yaml:"semesters"`
	Server            struct {
		CurrentSemesterID string `yaml:"currentSemesterId"`
	} `yaml:"server"`
}

var (
	seedOnce sync.Once
	seedData seed
	seedErr  error
)

func loadSeed() (seed, error) {
	seedOnce.Do(func() {
		if err := yaml.Unmarshal(defaultsYAML, &seedData); err != nil {
			seedErr = fmt.Errorf("parse embedded defaults: %w", err)
			return
		}
		if len(seedData.Semesters) == 0 {
			seedErr = fmt.Errorf("embedded defaults contain no semester")
		}
	})
	return seedData, seedErr
}

// DefaultSemesterID is the active semester of the built-in dataset.
func DefaultSemesterID() string {
	s, err := loadSeed()
	if err != nil {
		return "sem2"
	}
	return s.CurrentSemesterID
}

// Defaults returns a fresh copy of the built-in dataset: the seeded semesters
// with empty attendance, their subjects, and no timetables or reminders.
func Defaults() Dataset {
	s, err := loadSeed()
	if err != nil {
		// The seed is compiled in; a parse failure is a build defect.
		panic(err)
	}

	ds := Dataset{
		Semesters: SemestersDocument{
			CurrentSemesterID: s.CurrentSemesterID,
			Semesters:         make([]attendance.Semester, 0, len(s.Semesters)),
		},
		Subjects:   SubjectsDocument{SubjectsBySemester: make(map[string][]attendance.Subject, len(s.Semesters))},
		Timetables: TimetablesDocument{Timetables: map[string]attendance.WeeklyTimetable{}},
		Reminders:  RemindersDocument{Reminders: map[string][]reminder.Reminder{}},
	}

	for _, sem := range s.Semesters {
		ds.Semesters.Semesters = append(ds.Semesters.Semesters, attendance.Semester{
			ID:             sem.ID,
			Name:           sem.Name,
			AttendanceData: []attendance.AttendanceDay{},
		})
		subjects := make([]attendance.Subject, 0, len(sem.Subjects))
		for _, subj := range sem.Subjects {
			subjects = append(subjects, attendance.Subject{
				ID:   subj.ID,
				Name: subj.Name,
				Type: attendance.NormalizeSubjectType(subj.Type),
			})
		}
		ds.Subjects.SubjectsBySemester[sem.ID] = subjects
	}
	return ds
}

// DefaultSemester returns the first built-in semester with its subjects.
func DefaultSemester() (attendance.Semester, []attendance.Subject) {
	ds := Defaults()
	sem := ds.Semesters.Semesters[0]
	return sem, ds.Subjects.SubjectsBySemester[sem.ID]
}

// ServerFallback returns the document the store server serves for name when
// nothing valid has been stored.
func ServerFallback(name Name) any {
	switch name {
	case Semesters:
		id := "sem2"
		if s, err := loadSeed(); err == nil && s.Server.CurrentSemesterID != "" {
			id = s.Server.CurrentSemesterID
		}
		return SemestersDocument{CurrentSemesterID: id, Semesters: []attendance.Semester{}}
	case Subjects:
		return SubjectsDocument{SubjectsBySemester: map[string][]attendance.Subject{}}
	case Timetables:
		return TimetablesDocument{Timetables: map[string]attendance.WeeklyTimetable{}}
	case Reminders:
		return RemindersDocument{Reminders: map[string][]reminder.Reminder{}}
	}
	return nil
}
