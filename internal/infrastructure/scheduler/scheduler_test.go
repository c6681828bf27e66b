package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendance-hub/attendance-tracker/internal/domain/reminder"
)

// ═══ delivery agent fake ═══

type fakeAgent struct {
	mu        sync.Mutex
	perm      Permission
	requested Permission
	notifyErr error
	notified  []reminder.Notification
	alerts    []string
	asked     int
}

func (a *fakeAgent) Permission() Permission {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.perm
}

func (a *fakeAgent) RequestPermission(context.Context) Permission {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.asked++
	a.perm = a.requested
	return a.perm
}

func (a *fakeAgent) Notify(_ context.Context, n reminder.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.notifyErr != nil {
		return a.notifyErr
	}
	a.notified = append(a.notified, n)
	return nil
}

func (a *fakeAgent) Alert(_ context.Context, text string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerts = append(a.alerts, text)
}

func (a *fakeAgent) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.notified), len(a.alerts)
}

func at(d time.Duration) *time.Time {
	t := time.Now().Add(d)
	return &t
}

func TestDeliver(t *testing.T) {
	r := reminder.Reminder{ID: "r1", Title: "Quiz", Date: "2026-03-02", Time: "09:30"}

	tests := []struct {
		name      string
		agent     *fakeAgent
		notified  bool
		wantAsked int
	}{
		{name: "granted notifies", agent: &fakeAgent{perm: PermissionGranted}, notified: true},
		{name: "denied alerts", agent: &fakeAgent{perm: PermissionDenied}},
		{name: "undetermined asks then notifies", agent: &fakeAgent{requested: PermissionGranted}, notified: true, wantAsked: 1},
		{name: "undetermined refused alerts", agent: &fakeAgent{requested: PermissionDenied}, wantAsked: 1},
		{name: "notify failure alerts", agent: &fakeAgent{perm: PermissionGranted, notifyErr: errors.New("boom")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.notified, Deliver(context.Background(), tt.agent, r))
			assert.Equal(t, tt.wantAsked, tt.agent.asked)
			if tt.notified {
				require.Len(t, tt.agent.notified, 1)
				assert.Equal(t, reminder.Notification{
					Title: "Quiz", Body: "Reminder for 2026-03-02 at 09:30", Tag: "reminder-r1",
				}, tt.agent.notified[0])
				assert.Empty(t, tt.agent.alerts)
			} else {
				assert.Equal(t, []string{"Reminder: Quiz\n2026-03-02 at 09:30"}, tt.agent.alerts)
			}
		})
	}
}

// ═══ reminder scheduler ═══

func TestReminderScheduler_FiresDueReminderOnce(t *testing.T) {
	agent := &fakeAgent{perm: PermissionGranted}
	var mu sync.Mutex
	var removed []string
	s := NewReminderScheduler(agent, ReminderConfig{OnFired: func(sem, id string) error {
		mu.Lock()
		defer mu.Unlock()
		removed = append(removed, sem+"/"+id)
		return errors.New("not removed")
	}})
	t.Cleanup(s.Stop)

	set := map[string][]reminder.Reminder{
		"sem1": {{ID: "past", Title: "Past", Date: "2020-01-01", TriggerAt: at(-time.Hour)}},
	}
	s.Sync(set)

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(removed) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"sem1/past"}, removed)

	// Still present because removal failed; it must not be delivered again.
	s.Sync(set)
	time.Sleep(50 * time.Millisecond)
	n, _ := agent.counts()
	assert.Equal(t, 1, n)
}

func TestReminderScheduler_FiresAtTriggerTime(t *testing.T) {
	agent := &fakeAgent{perm: PermissionGranted}
	s := NewReminderScheduler(agent, ReminderConfig{})
	t.Cleanup(s.Stop)

	s.Sync(map[string][]reminder.Reminder{
		"sem1": {{ID: "soon", Title: "Soon", Date: "2026-01-01", TriggerAt: at(150 * time.Millisecond)}},
	})

	require.Len(t, s.Pending(), 1)
	n, _ := agent.counts()
	assert.Equal(t, 0, n)

	assert.Eventually(t, func() bool {
		n, _ := agent.counts()
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, s.Pending())
}

func TestReminderScheduler_SyncCancelsRemovedAndChanged(t *testing.T) {
	agent := &fakeAgent{perm: PermissionGranted}
	s := NewReminderScheduler(agent, ReminderConfig{})
	t.Cleanup(s.Stop)

	later := at(time.Hour)
	s.Sync(map[string][]reminder.Reminder{
		"sem1": {
			{ID: "a", Title: "A", Date: "2026-01-01", TriggerAt: later},
			{ID: "b", Title: "B", Date: "2026-01-01", TriggerAt: later},
		},
		"sem2": {{ID: "a", Title: "Other A", Date: "2026-01-01", TriggerAt: later}},
	})
	require.Len(t, s.Pending(), 3, "ids are scoped per semester")

	sooner := at(30 * time.Minute)
	s.Sync(map[string][]reminder.Reminder{
		"sem1": {{ID: "a", Title: "A", Date: "2026-01-01", TriggerAt: sooner}},
	})
	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "sem1", pending[0].SemesterID)
	assert.Equal(t, "a", pending[0].ReminderID)
	assert.WithinDuration(t, *sooner, pending[0].FireAt, time.Second)
}

func TestReminderScheduler_SkipsDeliveredAndInvalid(t *testing.T) {
	s := NewReminderScheduler(&fakeAgent{}, ReminderConfig{})
	t.Cleanup(s.Stop)

	s.Sync(map[string][]reminder.Reminder{
		"sem1": {
			{ID: "done", Title: "Done", Date: "2026-01-01", Delivered: true},
			{ID: "bad", Title: "Bad", Date: "not a date"},
		},
	})
	assert.Empty(t, s.Pending())
}

func TestReminderScheduler_StopCancelsEverything(t *testing.T) {
	agent := &fakeAgent{perm: PermissionGranted}
	s := NewReminderScheduler(agent, ReminderConfig{})
	s.Sync(map[string][]reminder.Reminder{
		"sem1": {{ID: "x", Title: "X", Date: "2026-01-01", TriggerAt: at(50 * time.Millisecond)}},
	})
	s.Stop()
	s.Stop()

	time.Sleep(100 * time.Millisecond)
	n, a := agent.counts()
	assert.Zero(t, n+a)
	assert.Empty(t, s.Pending())

	s.Sync(map[string][]reminder.Reminder{
		"sem1": {{ID: "y", Title: "Y", Date: "2020-01-01"}},
	})
	assert.Empty(t, s.Pending())
}

// ═══ cron scheduler ═══

type countingJob struct {
	name string
	runs atomic.Int32
	err  error
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }
func (j *countingJob) Run(context.Context) error {
	j.runs.Add(1)
	return j.err
}

func TestScheduler_RegisterAndRunNow(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "count"}

	require.NoError(t, s.Register(job, "@every 1h"))
	assert.ErrorIs(t, s.Register(job, "@every 1h"), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(&countingJob{name: "bad"}, "not a spec"), ErrInvalidSchedule)
	assert.ErrorIs(t, s.Register(nil, "@every 1h"), ErrNilJob)

	res, err := s.RunNow(context.Background(), "count")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.True(t, res.Manual)
	assert.Equal(t, int32(1), job.runs.Load())

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, int64(1), jobs[0].RunCount)
}

func TestScheduler_RunNowRecordsFailure(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "fail", err: errors.New("nope")}
	require.NoError(t, s.Register(job, "0 7 * * *"))

	res, err := s.RunNow(context.Background(), "fail")
	assert.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, int64(1), s.ListJobs()[0].FailCount)
}

func TestScheduler_Lifecycle(t *testing.T) {
	s := NewScheduler(SchedulerConfig{})
	job := &countingJob{name: "tick"}
	require.NoError(t, s.Register(job, "@every 1s"))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}
