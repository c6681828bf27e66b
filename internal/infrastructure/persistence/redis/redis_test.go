package redis

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/attendance-hub/attendance-tracker/internal/application/storage"
	"github.com/attendance-hub/attendance-tracker/internal/domain/attendance"
	"github.com/attendance-hub/attendance-tracker/internal/domain/document"
)

func TestConfig_Options(t *testing.T) {
	opts, err := DefaultConfig().Options()
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", opts.Addr)
	assert.Equal(t, 5, opts.PoolSize)

	cfg := DefaultConfig()
	cfg.URL = "redis://:pw@cache:6380/3"
	opts, err = cfg.Options()
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, "pw", opts.Password)
	assert.Equal(t, 3, opts.DB)

	cfg.URL = "http://nope"
	_, err = cfg.Options()
	assert.ErrorIs(t, err, ErrCacheConnection)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "attendance-tracker:doc:subjects", DocumentKey("subjects"))
	assert.Equal(t, "attendance-tracker:timetables", TimetablesKey)
}

func TestCache_ValidatesBeforeNetwork(t *testing.T) {
	c := NewCacheFromClient(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:1"}))
	t.Cleanup(func() { _ = c.Close() })
	ctx := context.Background()

	assert.ErrorIs(t, c.SetBytes(ctx, "", []byte("x"), 0), ErrCacheKeyEmpty)
	assert.ErrorIs(t, c.SetBytes(ctx, "k", []byte("x"), -time.Second), ErrCacheInvalidTTL)
	assert.ErrorIs(t, c.Set(ctx, "k", nil, 0), ErrCacheNilValue)
	_, err := c.GetBytes(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
	_, err = c.Exists(ctx, "")
	assert.ErrorIs(t, err, ErrCacheKeyEmpty)
	assert.NoError(t, c.Delete(ctx))
}

// Integration tests run only against a real server.
func testCache(t *testing.T) *Cache {
	t.Helper()
	url := os.Getenv("ATTENDANCE_TEST_REDIS_URL")
	if url == "" {
		t.Skip("ATTENDANCE_TEST_REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c, err := NewCache(ctx, Config{URL: url}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDocumentStore_RoundTripAndNotify(t *testing.T) {
	c := testCache(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Delete(ctx, DocumentKey("reminders")))

	ds := NewDocumentStore(c, nil)
	_, err := ds.Read(ctx, document.Reminders)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	seen := make(chan document.Name, 1)
	go func() {
		_ = c.WatchChanges(ctx, func(n document.Name) { seen <- n })
	}()
	// Give the subscription time to register.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, ds.Write(ctx, document.Reminders, []byte(`{"reminders":{}}`)))
	body, err := ds.Read(ctx, document.Reminders)
	require.NoError(t, err)
	assert.JSONEq(t, `{"reminders":{}}`, string(body))

	select {
	case n := <-seen:
		assert.Equal(t, document.Reminders, n)
	case <-time.After(2 * time.Second):
		t.Fatal("no change notification")
	}
}

func TestTimetableCache_RoundTrip(t *testing.T) {
	c := testCache(t)
	ctx := context.Background()
	tc := NewTimetableCache(c)

	week := attendance.EmptyWeek()
	week[attendance.Friday] = []attendance.TimetableSlot{{SubjectID: "math", Type: attendance.SubjectLab}}
	require.NoError(t, tc.SaveTimetables(ctx, document.TimetablesDocument{
		Timetables: map[string]attendance.WeeklyTimetable{"sem1": week},
	}))

	got, ok, err := tc.LoadTimetables(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "math", got.Timetables["sem1"][attendance.Friday][0].SubjectID)

	require.NoError(t, c.SetBytes(ctx, TimetablesKey, []byte("{broken"), 0))
	_, ok, err = tc.LoadTimetables(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
}
