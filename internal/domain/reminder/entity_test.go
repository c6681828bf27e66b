package reminder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeTriggerAt(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*60*60)

	at, err := ComputeTriggerAt("2026-01-27", "09:30", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 27, 9, 30, 0, 0, loc), at)

	startOfDay, err := ComputeTriggerAt("2026-01-27", "", loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 27, 0, 0, 0, 0, loc), startOfDay)

	_, err = ComputeTriggerAt("27.01.2026", "09:30", loc)
	assert.Error(t, err)
}

func TestDelay_NeverNegative(t *testing.T) {
	now := time.Date(2026, 1, 27, 12, 0, 0, 0, time.UTC)

	past := Reminder{Date: "2026-01-26", Time: "10:00"}
	d, err := past.Delay(now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)

	future := Reminder{Date: "2026-01-27", Time: "12:05"}
	d, err = future.Delay(now, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
}

func TestFireTime_PrefersStoredTrigger(t *testing.T) {
	stored := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	r := Reminder{Date: "2026-01-27", Time: "09:00", TriggerAt: &stored}

	at, err := r.FireTime(time.UTC)
	require.NoError(t, err)
	assert.Equal(t, stored, at)
}

func TestNewNotification(t *testing.T) {
	withTime := NewNotification(Reminder{ID: "42", Title: "Lab record", Date: "2026-01-27", Time: "09:00"})
	assert.Equal(t, Notification{Title: "Lab record", Body: "Reminder for 2026-01-27 at 09:00", Tag: "reminder-42"}, withTime)

	withoutTime := NewNotification(Reminder{ID: "7", Title: "Exam", Date: "2026-02-02"})
	assert.Equal(t, "Reminder for 2026-02-02", withoutTime.Body)

	assert.Equal(t, "Reminder: Exam\n2026-02-02", AlertText(Reminder{Title: "Exam", Date: "2026-02-02"}))
}

func TestUpdateApply_ResetsDelivery(t *testing.T) {
	r := Reminder{ID: "1", Title: "Old", Date: "2026-01-27", Delivered: true}
	title := "New"
	clock := "18:00"

	out, err := Update{Title: &title, Time: &clock}.Apply(r, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, "New", out.Title)
	assert.Equal(t, "2026-01-27", out.Date)
	assert.False(t, out.Delivered)
	require.NotNil(t, out.TriggerAt)
	assert.Equal(t, time.Date(2026, 1, 27, 18, 0, 0, 0, time.UTC), *out.TriggerAt)
	assert.True(t, r.Delivered, "original must not change")
}
