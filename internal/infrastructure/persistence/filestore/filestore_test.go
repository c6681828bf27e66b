package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendance-hub/attendance-tracker/internal/application/storage"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
)

func TestStore_ReadWrite(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	ctx := context.Background()

	_, err := s.Read(ctx, document.Subjects)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Write(ctx, document.Semesters, []byte(`{"currentSemesterId":"sem2","semesters":[]}`)))
	assert.Equal(t, filepath.Join(dir, "attendance.json"), s.Path(document.Semesters))

	raw, err := os.ReadFile(filepath.Join(dir, "attendance.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"currentSemesterId\"")

	got, err := s.Read(ctx, document.Semesters)
	require.NoError(t, err)
	assert.JSONEq(t, `{"currentSemesterId":"sem2","semesters":[]}`, string(got))
}

func TestStore_KeepsInvalidBodiesVerbatim(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Write(context.Background(), document.Reminders, []byte("{oops")))
	got, err := s.Read(context.Background(), document.Reminders)
	require.NoError(t, err)
	assert.Equal(t, "{oops", string(got))
}
