package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendance-hub/attendance-tracker/internal/application/store"
	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
	"github.com/attendance-hub/attendance-tracker/internal/infrastructure/syncer"
	"github.com/attendance-hub/attendance-tracker/pkg/timeutil"
)

type fakeLoader struct {
	dirty  bool
	loads  int
	report syncer.LoadReport
	err    error
}

func (f *fakeLoader) Dirty() bool { return f.dirty }

func (f *fakeLoader) Load(context.Context) (syncer.LoadReport, error) {
	f.loads++
	return f.report, f.err
}

func TestReloadStateJob(t *testing.T) {
	tests := []struct {
		name      string
		loader    *fakeLoader
		wantLoads int
		wantErr   bool
		skipped   bool
	}{
		{name: "clean reloads", loader: &fakeLoader{}, wantLoads: 1},
		{name: "dirty skips", loader: &fakeLoader{dirty: true}, skipped: true},
		{
			name:      "superseded reload is skipped",
			loader:    &fakeLoader{err: syncer.ErrReloadSuperseded},
			wantLoads: 1,
			skipped:   true,
		},
		{
			name:      "failed load is reported",
			loader:    &fakeLoader{err: errors.New("down"), report: syncer.LoadReport{Defaults: true}},
			wantLoads: 1,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewReloadStateJob(tt.loader, nil)
			assert.Nil(t, job.LastStats())

			err := job.Run(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.wantLoads, tt.loader.loads)

			stats := job.LastStats()
			require.NotNil(t, stats)
			assert.Equal(t, tt.skipped, stats.Skipped)
			assert.Equal(t, tt.loader.report.Defaults, stats.Defaults)
		})
	}
}

type flakyRemote struct {
	mu   sync.Mutex
	down bool
}

func (r *flakyRemote) setDown(down bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.down = down
}

func (r *flakyRemote) Load(_ context.Context, name document.Name) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.down {
		return nil, errors.New("dial tcp: connection refused")
	}
	return document.ServerFallback(name), nil
}

func (r *flakyRemote) Save(context.Context, document.Name, any) error { return nil }

func TestReloadStateJob_FailedReloadKeepsState(t *testing.T) {
	ctx := context.Background()
	s := store.NewWithDefaults(store.Options{
		Location: time.UTC,
		Clock:    timeutil.NewManualClock(time.Date(2026, 1, 27, 12, 0, 0, 0, time.UTC)),
	})
	remote := &flakyRemote{}
	coord := syncer.NewCoordinator(s, remote, syncer.Config{Window: time.Hour})
	defer coord.Close()
	_, err := coord.Load(ctx)
	require.NoError(t, err)

	require.NoError(t, s.MarkDayStatus("2026-01-27", attendance.MarkHoliday))
	require.NoError(t, coord.Flush(ctx))

	remote.setDown(true)
	job := NewReloadStateJob(coord, nil)
	require.Error(t, job.Run(ctx))
	assert.False(t, job.LastStats().Defaults)
	assert.Len(t, s.CurrentSemester().AttendanceData, 1)
	for _, st := range coord.Status() {
		assert.True(t, st.Available, st.Name)
	}
}

func TestRiskReportJob(t *testing.T) {
	s := store.NewWithDefaults(store.Options{
		Location: time.UTC,
		Clock:    timeutil.NewManualClock(time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)),
	})
	tt := attendance.EmptyWeek()
	tt[attendance.Wednesday] = []attendance.TimetableSlot{{SubjectID: "python", Type: attendance.SubjectTheory}}
	require.NoError(t, s.SetSemesterTimetable("sem2", tt))
	require.NoError(t, s.MarkDayLectureStatuses("2026-01-28", map[string]attendance.LectureStatus{"python": attendance.StatusAbsent}))

	job := NewRiskReportJob(s, nil)
	assert.Equal(t, "risk_report", job.Name())
	assert.NoError(t, job.Run(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, job.Run(ctx))
}
