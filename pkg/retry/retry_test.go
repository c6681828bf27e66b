package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDo(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name      string
		failTimes int
		permanent bool
		wantCalls int
		wantErr   error
	}{
		{name: "first try", failTimes: 0, wantCalls: 1},
		{name: "succeeds after two failures", failTimes: 2, wantCalls: 3},
		{name: "gives up", failTimes: 10, wantCalls: 4, wantErr: boom},
		{name: "permanent stops", failTimes: 10, permanent: true, wantCalls: 1, wantErr: boom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Do(context.Background(), func(context.Context) error {
				calls++
				if calls <= tt.failTimes {
					if tt.permanent {
						return Permanent(boom)
					}
					return boom
				}
				return nil
			}, WithMaxAttempts(4), WithInitialDelay(time.Millisecond), WithJitter(0))

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, IsPermanent(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDo_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestBackoff_Capped(t *testing.T) {
	cfg := Config{InitialDelay: time.Second, MaxDelay: 3 * time.Second, Multiplier: 2}
	assert.Equal(t, time.Second, backoff(cfg, 1))
	assert.Equal(t, 2*time.Second, backoff(cfg, 2))
	assert.Equal(t, 3*time.Second, backoff(cfg, 5))
}

func TestDo_OnRetryHook(t *testing.T) {
	var attempts []int
	_ = Do(context.Background(), func(context.Context) error {
		return errors.New("nope")
	}, WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		attempts = append(attempts, attempt)
	}), WithMaxAttempts(3), WithInitialDelay(time.Millisecond), WithJitter(0))
	assert.Equal(t, []int{1, 2}, attempts)
}
