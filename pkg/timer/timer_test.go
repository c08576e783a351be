package timer

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimer_CountsDownToExpired(t *testing.T) {
	tm := New()
	fired := 0
	tm.OnExpire(func() { fired++ })

	require.NoError(t, tm.Start(3))
	assert.Equal(t, Running, tm.State())

	assert.False(t, tm.Tick())
	assert.False(t, tm.Tick())
	assert.Equal(t, 1, tm.Remaining())
	assert.Equal(t, 2, tm.Elapsed())

	assert.True(t, tm.Tick())
	assert.Equal(t, Expired, tm.State())
	assert.Equal(t, 1, fired)

	assert.False(t, tm.Tick(), "expired timer does not fire again")
	assert.Equal(t, 1, fired)
}

func TestTimer_Cancel(t *testing.T) {
	tm := New()
	tm.OnExpire(func() { t.Fatal("cancelled timer must not expire") })

	assert.False(t, tm.Cancel(), "idle timer has nothing to cancel")
	require.NoError(t, tm.Start(1))
	assert.True(t, tm.Cancel())
	assert.Equal(t, Cancelled, tm.State())
	assert.False(t, tm.Tick())
}

func TestTimer_StartTransitions(t *testing.T) {
	tm := New()
	assert.ErrorIs(t, tm.Start(0), ErrInvalidDuration)
	assert.Equal(t, Idle, tm.State())

	require.NoError(t, tm.Start(2))
	assert.ErrorIs(t, tm.Start(2), ErrRunning)

	tm.Cancel()
	require.NoError(t, tm.Start(1), "restart from cancelled")
	tm.Tick()
	require.Equal(t, Expired, tm.State())
	require.NoError(t, tm.Start(5), "restart from expired")
	assert.Equal(t, 5, tm.Remaining())
	assert.Equal(t, 3, tm.Starts())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "running", Running.String())
	assert.Equal(t, "expired", Expired.String())
	assert.Equal(t, "cancelled", Cancelled.String())
	assert.Equal(t, "unknown", State(42).String())
}

func TestDrive_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int32
	done := make(chan struct{})
	go func() {
		Drive(ctx, time.Millisecond, func() {
			if ticks.Add(1) == 3 {
				cancel()
			}
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Drive did not return after cancel")
	}
	assert.GreaterOrEqual(t, ticks.Load(), int32(3))
}
