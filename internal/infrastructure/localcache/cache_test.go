package localcache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
)

func TestFileCache_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir)
	ctx := context.Background()

	_, ok, err := c.LoadTimetables(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	tt := attendance.EmptyWeek()
	tt[attendance.Friday] = []attendance.TimetableSlot{{SubjectID: "dbms_lab", Type: attendance.SubjectLab}}
	require.NoError(t, c.SaveTimetables(ctx, document.TimetablesDocument{
		Timetables: map[string]attendance.WeeklyTimetable{"sem2": tt},
	}))

	assert.FileExists(t, filepath.Join(dir, "attendance-tracker_timetables.json"))

	doc, ok, err := c.LoadTimetables(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "dbms_lab", doc.Timetables["sem2"][attendance.Friday][0].SubjectID)
}

func TestFileCache_CorruptFileIsAMiss(t *testing.T) {
	dir := t.TempDir()
	c := NewFileCache(dir)
	require.NoError(t, os.WriteFile(c.Path(TimetablesKey), []byte("{not json"), 0o600))

	_, ok, err := c.LoadTimetables(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}
