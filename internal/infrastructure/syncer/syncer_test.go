package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendance-hub/attendance-tracker/internal/application/store"
	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/external/jsonstore"
	"github.com/attendance-hub/attendance-tracker/pkg/timeutil"
)

const testWindow = 30 * time.Millisecond

// ═══ fakes ═══

type fakeRemote struct {
	mu       sync.Mutex
	onLoad   func(document.Name)
	docs     map[document.Name]any
	saves    map[document.Name]int
	saveErr  map[document.Name]error
	loadErr  map[document.Name]error
	lastSave map[document.Name]any
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{
		docs:     map[document.Name]any{},
		saves:    map[document.Name]int{},
		saveErr:  map[document.Name]error{},
		loadErr:  map[document.Name]error{},
		lastSave: map[document.Name]any{},
	}
}

func (f *fakeRemote) Load(_ context.Context, name document.Name) (any, error) {
	f.mu.Lock()
	hook := f.onLoad
	f.mu.Unlock()
	if hook != nil {
		hook(name)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.loadErr[name]; err != nil {
		return nil, err
	}
	if doc, ok := f.docs[name]; ok {
		return doc, nil
	}
	return document.ServerFallback(name), nil
}

func (f *fakeRemote) Save(_ context.Context, name document.Name, doc any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves[name]++
	if err := f.saveErr[name]; err != nil {
		return err
	}
	f.lastSave[name] = doc
	return nil
}

func (f *fakeRemote) saveCount(name document.Name) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves[name]
}

func (f *fakeRemote) lastSaved(name document.Name) any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastSave[name]
}

func (f *fakeRemote) setSaveErr(name document.Name, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr[name] = err
}

func (f *fakeRemote) setLoadErr(name document.Name, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadErr[name] = err
}

func (f *fakeRemote) setDoc(name document.Name, doc any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[name] = doc
}

type memCache struct {
	mu  sync.Mutex
	doc *document.TimetablesDocument
}

func (m *memCache) SaveTimetables(_ context.Context, doc document.TimetablesDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = &doc
	return nil
}

func (m *memCache) LoadTimetables(context.Context) (document.TimetablesDocument, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return document.TimetablesDocument{}, false, nil
	}
	return *m.doc, true, nil
}

func newStore() *store.Store {
	return store.NewWithDefaults(store.Options{
		Location: time.UTC,
		Clock:    timeutil.NewManualClock(time.Date(2026, 1, 27, 10, 0, 0, 0, time.UTC)),
	})
}

func newLoaded(t *testing.T, remote *fakeRemote, cache FallbackCache) (*store.Store, *Coordinator) {
	t.Helper()
	s := newStore()
	c := NewCoordinator(s, remote, Config{Window: testWindow, Cache: cache})
	t.Cleanup(c.Close)
	_, err := c.Load(context.Background())
	require.NoError(t, err)
	return s, c
}

func reminderDraft() reminder.Draft {
	return reminder.Draft{Title: "Quiz", Date: "2026-02-02", Time: "09:30"}
}

func daysOf(doc document.SemestersDocument, id string) []attendance.AttendanceDay {
	for _, sem := range doc.Semesters {
		if sem.ID == id {
			return sem.AttendanceData
		}
	}
	return nil
}

func statusOf(c *Coordinator, name document.Name) ResourceStatus {
	for _, st := range c.Status() {
		if st.Name == name {
			return st
		}
	}
	return ResourceStatus{}
}

// ═══ Flusher ═══

func TestFlusher_CoalescesBurst(t *testing.T) {
	var calls atomic.Int32
	f := NewFlusher(testWindow, func(string) { calls.Add(1) })
	defer f.Stop()

	for i := 0; i < 5; i++ {
		f.Mark("semesters")
		time.Sleep(testWindow / 5)
	}
	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * testWindow)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFlusher_KeysAreIndependent(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]int{}
	f := NewFlusher(testWindow, func(k string) {
		mu.Lock()
		seen[k]++
		mu.Unlock()
	})
	defer f.Stop()

	f.Mark("a")
	f.Mark("b")
	assert.True(t, f.Pending("a"))
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen["a"] == 1 && seen["b"] == 1
	}, time.Second, 5*time.Millisecond)
	assert.False(t, f.Pending("a"))
}

func TestFlusher_StopAndCancel(t *testing.T) {
	var calls atomic.Int32
	f := NewFlusher(testWindow, func(string) { calls.Add(1) })

	f.Mark("a")
	f.Cancel("a")
	f.Mark("b")
	f.Stop()
	f.Mark("c")

	time.Sleep(3 * testWindow)
	assert.Zero(t, calls.Load())
	assert.Equal(t, testWindow, f.Window())
	assert.Equal(t, DefaultWindow, NewFlusher(0, func(string) {}).Window())
}

// ═══ Coordinator ═══

func TestCoordinator_IgnoresChangesBeforeLoad(t *testing.T) {
	remote := newFakeRemote()
	s := newStore()
	c := NewCoordinator(s, remote, Config{Window: testWindow})
	defer c.Close()

	_, err := s.AddSubject("Compilers", attendance.SubjectTheory)
	require.NoError(t, err)

	time.Sleep(3 * testWindow)
	assert.Zero(t, remote.saveCount(document.Subjects))
	assert.False(t, c.Loaded())
}

func TestCoordinator_DebouncedSaveOfTouchedResources(t *testing.T) {
	remote := newFakeRemote()
	s, c := newLoaded(t, remote, nil)

	for _, date := range []string{"2026-01-26", "2026-01-27", "2026-01-28"} {
		require.NoError(t, s.MarkDayStatus(date, attendance.MarkHoliday))
	}
	assert.True(t, c.Dirty())

	assert.Eventually(t, func() bool { return remote.saveCount(document.Semesters) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * testWindow)
	assert.Equal(t, 1, remote.saveCount(document.Semesters))
	assert.Zero(t, remote.saveCount(document.Subjects))
	assert.Zero(t, remote.saveCount(document.Reminders))
	assert.False(t, c.Dirty())

	saved := remote.lastSaved(document.Semesters).(document.SemestersDocument)
	assert.Len(t, saved.Semesters[0].AttendanceData, 3)
}

func TestCoordinator_TransientFailureRetriedOnNextMutation(t *testing.T) {
	remote := newFakeRemote()
	remote.setSaveErr(document.Subjects, &jsonstore.StatusError{Method: "PUT", Path: "/api/subjects", Code: 503})
	s, c := newLoaded(t, remote, nil)

	_, err := s.AddSubject("Compilers", attendance.SubjectTheory)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return remote.saveCount(document.Subjects) == 1 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return statusOf(c, document.Subjects).Failures == 1 }, time.Second, 5*time.Millisecond)

	st := statusOf(c, document.Subjects)
	assert.True(t, st.Dirty)
	assert.True(t, st.Available)
	assert.Contains(t, st.LastError, "503")

	time.Sleep(2 * testWindow)
	assert.Equal(t, 1, remote.saveCount(document.Subjects), "no retry loop")

	remote.setSaveErr(document.Subjects, nil)
	_, err = s.AddSubject("Networks", attendance.SubjectTheory)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return remote.saveCount(document.Subjects) == 2 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return !statusOf(c, document.Subjects).Dirty }, time.Second, 5*time.Millisecond)
}

func TestCoordinator_FailedResourceReArmedByOtherMutation(t *testing.T) {
	remote := newFakeRemote()
	remote.setSaveErr(document.Reminders, errors.New("connection refused"))
	s, c := newLoaded(t, remote, nil)

	_, err := s.AddReminder(reminderDraft())
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return statusOf(c, document.Reminders).Failures == 1 }, time.Second, 5*time.Millisecond)

	remote.setSaveErr(document.Reminders, nil)
	require.NoError(t, s.MarkDayStatus("2026-01-26", attendance.MarkPresent))
	assert.Eventually(t, func() bool { return remote.saveCount(document.Reminders) == 2 }, time.Second, 5*time.Millisecond)
}

func TestCoordinator_UnsupportedDisablesUntilReload(t *testing.T) {
	remote := newFakeRemote()
	remote.setSaveErr(document.Timetables, fmt.Errorf("save timetables: %w", jsonstore.ErrEndpointUnsupported))
	s, c := newLoaded(t, remote, nil)

	require.NoError(t, s.SetSemesterTimetable("sem2", attendance.EmptyWeek()))
	assert.Eventually(t, func() bool { return !statusOf(c, document.Timetables).Available }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.SetSemesterTimetable("sem2", attendance.EmptyWeek()))
	time.Sleep(3 * testWindow)
	assert.Equal(t, 1, remote.saveCount(document.Timetables))
	assert.False(t, c.Dirty(), "unsupported edits do not block reloads")

	require.NoError(t, c.Flush(context.Background()))
	assert.Equal(t, 1, remote.saveCount(document.Timetables))

	remote.setSaveErr(document.Timetables, nil)
	_, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, statusOf(c, document.Timetables).Available)

	require.NoError(t, s.SetSemesterTimetable("sem2", attendance.EmptyWeek()))
	assert.Eventually(t, func() bool { return remote.saveCount(document.Timetables) == 2 }, time.Second, 5*time.Millisecond)
}

func TestCoordinator_LoadMarksUnsupportedResources(t *testing.T) {
	remote := newFakeRemote()
	remote.loadErr[document.Reminders] = fmt.Errorf("load: %w", jsonstore.ErrEndpointUnsupported)
	s := newStore()
	c := NewCoordinator(s, remote, Config{Window: testWindow})
	defer c.Close()

	report, err := c.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Defaults)
	assert.Equal(t, []document.Name{document.Reminders}, report.Unsupported)
	assert.False(t, statusOf(c, document.Reminders).Available)
	assert.True(t, statusOf(c, document.Semesters).Available)
}

func TestCoordinator_LoadFailureFallsBackToDefaultsAndCache(t *testing.T) {
	tt := attendance.EmptyWeek()
	tt[attendance.Monday] = []attendance.TimetableSlot{{SubjectID: "python", Type: attendance.SubjectTheory}}
	cache := &memCache{doc: &document.TimetablesDocument{Timetables: map[string]attendance.WeeklyTimetable{"sem2": tt}}}

	remote := newFakeRemote()
	remote.docs[document.Semesters] = document.SemestersDocument{
		CurrentSemesterID: "sem9",
		Semesters:         []attendance.Semester{{ID: "sem9", Name: "Remote"}},
	}
	remote.loadErr[document.Reminders] = errors.New("dial tcp: connection refused")

	s := newStore()
	c := NewCoordinator(s, remote, Config{Window: testWindow, Cache: cache})
	defer c.Close()

	report, err := c.Load(context.Background())
	require.Error(t, err)
	assert.True(t, report.Defaults)
	assert.True(t, report.CachedTimetables)

	view := s.CurrentSemester()
	assert.Equal(t, "sem2", view.ID)
	assert.Len(t, view.Timetable[attendance.Monday], 1)
	assert.True(t, c.Loaded())
}

func TestCoordinator_TimetablesMirroredToCache(t *testing.T) {
	cache := &memCache{}
	remote := newFakeRemote()
	s, _ := newLoaded(t, remote, cache)

	tt := attendance.EmptyWeek()
	tt[attendance.Tuesday] = []attendance.TimetableSlot{{SubjectID: "python_lab", Type: attendance.SubjectLab}}
	require.NoError(t, s.SetSemesterTimetable("sem2", tt))

	assert.Eventually(t, func() bool {
		doc, ok, _ := cache.LoadTimetables(context.Background())
		return ok && len(doc.Timetables["sem2"][attendance.Tuesday]) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestCoordinator_FlushAndClose(t *testing.T) {
	remote := newFakeRemote()
	s := newStore()
	c := NewCoordinator(s, remote, Config{Window: time.Hour})
	_, err := c.Load(context.Background())
	require.NoError(t, err)

	_, err = s.AddSemester("Semester 3", store.AddSemesterOptions{SourceSemesterID: "sem2"})
	require.NoError(t, err)
	require.NoError(t, c.Flush(context.Background()))
	for _, name := range document.All {
		assert.Equal(t, 1, remote.saveCount(name), name)
	}
	assert.False(t, c.Dirty())

	c.Close()
	c.Close()
	require.NoError(t, s.RenameSemester("sem2", "Old"))
	assert.False(t, c.Dirty())
}

func TestCoordinator_FailedReloadKeepsStateAndRemote(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s, c := newLoaded(t, remote, nil)

	require.NoError(t, s.MarkDayStatus("2026-01-27", attendance.MarkHoliday))
	require.NoError(t, c.Flush(ctx))
	saved := remote.lastSaved(document.Semesters).(document.SemestersDocument)
	require.Len(t, daysOf(saved, "sem2"), 1)
	remote.setDoc(document.Semesters, saved)

	remote.setLoadErr(document.Subjects, errors.New("dial tcp: connection refused"))
	report, err := c.Load(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrReloadSuperseded)
	assert.False(t, report.Defaults)
	assert.Len(t, s.CurrentSemester().AttendanceData, 1, "failed reload keeps local state")

	require.NoError(t, s.MarkDayStatus("2026-01-28", attendance.MarkHoliday))
	require.NoError(t, c.Flush(ctx))
	saved = remote.lastSaved(document.Semesters).(document.SemestersDocument)
	assert.Len(t, daysOf(saved, "sem2"), 2, "remote history preserved")
}

func TestCoordinator_FailedReloadKeepsUnsupportedDisabled(t *testing.T) {
	remote := newFakeRemote()
	remote.setLoadErr(document.Reminders, fmt.Errorf("load: %w", jsonstore.ErrEndpointUnsupported))
	_, c := newLoaded(t, remote, nil)
	require.False(t, statusOf(c, document.Reminders).Available)

	remote.setLoadErr(document.Semesters, errors.New("dial tcp: connection refused"))
	_, err := c.Load(context.Background())
	require.Error(t, err)
	assert.False(t, statusOf(c, document.Reminders).Available)
	assert.True(t, c.Loaded())

	remote.setLoadErr(document.Semesters, nil)
	remote.setLoadErr(document.Reminders, nil)
	_, err = c.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, statusOf(c, document.Reminders).Available)
}

func TestCoordinator_ReloadDiscardedWhileChangesPending(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s := newStore()
	c := NewCoordinator(s, remote, Config{Window: time.Hour})
	defer c.Close()
	_, err := c.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, s.MarkDayStatus("2026-01-27", attendance.MarkHoliday))
	_, err = c.Load(ctx)
	assert.ErrorIs(t, err, ErrReloadSuperseded)
	assert.Len(t, s.CurrentSemester().AttendanceData, 1)
	assert.True(t, c.Dirty())

	require.NoError(t, c.Flush(ctx))
	assert.Equal(t, 1, remote.saveCount(document.Semesters))
}

func TestCoordinator_ReloadDiscardedByEditDuringRead(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	s := newStore()
	c := NewCoordinator(s, remote, Config{Window: time.Hour})
	defer c.Close()
	_, err := c.Load(ctx)
	require.NoError(t, err)

	var once sync.Once
	remote.mu.Lock()
	remote.onLoad = func(name document.Name) {
		if name == document.Timetables {
			once.Do(func() { require.NoError(t, s.MarkDayStatus("2026-01-26", attendance.MarkExam)) })
		}
	}
	remote.mu.Unlock()

	_, err = c.Load(ctx)
	assert.ErrorIs(t, err, ErrReloadSuperseded)
	assert.Len(t, s.CurrentSemester().AttendanceData, 1)
	assert.True(t, c.Dirty())
}
