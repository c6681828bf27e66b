package attendance

import "time"

// Weekday is a lowercase English day name used as a timetable key.
type Weekday string

const (
	Monday    Weekday = "monday"
	Tuesday   Weekday = "tuesday"
	Wednesday Weekday = "wednesday"
	Thursday  Weekday = "thursday"
	Friday    Weekday = "friday"
	Saturday  Weekday = "saturday"
	Sunday    Weekday = "sunday"
)

// SchoolDays are the weekdays that can carry timetable slots.
var SchoolDays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday}

// WeekdayOf maps a time.Weekday to its timetable key.
func WeekdayOf(wd time.Weekday) Weekday {
	switch wd {
	case time.Monday:
		return Monday
	case time.Tuesday:
		return Tuesday
	case time.Wednesday:
		return Wednesday
	case time.Thursday:
		return Thursday
	case time.Friday:
		return Friday
	case time.Saturday:
		return Saturday
	default:
		return Sunday
	}
}

// IsSchoolDay reports whether w is monday..friday.
func (w Weekday) IsSchoolDay() bool {
	for _, d := range SchoolDays {
		if d == w {
			return true
		}
	}
	return false
}

// TimetableSlot is one scheduled lecture in the weekly timetable.
type TimetableSlot struct {
	SubjectID string      `json:"subjectId"`
	Type      SubjectType `json:"type"`
}

// WeeklyTimetable maps school days to their ordered slots.
type WeeklyTimetable map[Weekday][]TimetableSlot

// EmptyWeek returns a timetable with an empty slot list for every school day.
func EmptyWeek() WeeklyTimetable {
	tt := make(WeeklyTimetable, len(SchoolDays))
	for _, d := range SchoolDays {
		tt[d] = []TimetableSlot{}
	}
	return tt
}

// Normalize returns a copy restricted to school days, with every school
// day present. Slot types are normalized.
func (t WeeklyTimetable) Normalize() WeeklyTimetable {
	out := EmptyWeek()
	for _, d := range SchoolDays {
		for _, slot := range t[d] {
			out[d] = append(out[d], TimetableSlot{
				SubjectID: slot.SubjectID,
				Type:      NormalizeSubjectType(string(slot.Type)),
			})
		}
	}
	return out
}

// Prune returns a normalized copy without slots referencing subjects outside valid.
func (t WeeklyTimetable) Prune(valid map[string]struct{}) WeeklyTimetable {
	out := EmptyWeek()
	for _, d := range SchoolDays {
		for _, slot := range t[d] {
			if _, ok := valid[slot.SubjectID]; ok {
				out[d] = append(out[d], slot)
			}
		}
	}
	return out
}

// Clone returns a deep copy.
func (t WeeklyTimetable) Clone() WeeklyTimetable {
	if t == nil {
		return nil
	}
	out := make(WeeklyTimetable, len(t))
	for d, slots := range t {
		out[d] = append([]TimetableSlot{}, slots...)
	}
	return out
}

// SlotsFor returns the slots of a weekday. Weekends and unmapped days have none.
func (t WeeklyTimetable) SlotsFor(w Weekday) []TimetableSlot {
	if !w.IsSchoolDay() {
		return nil
	}
	return t[w]
}
