// Package system exercises the wall-clock adapter.
package system

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestClockNowUTC ensures the clock returns UTC timestamps.
func TestClockNowUTC(t *testing.T) {
	t.Parallel()

	clk := New()
	before := time.Now().UTC().Add(-time.Second)
	got := clk.Now()
	after := time.Now().UTC().Add(time.Second)

	require.Equal(t, time.UTC, got.Location())
	require.True(t, got.After(before) && got.Before(after), "expected %v between %v and %v", got, before, after)
}

func TestClockAfterFuncCanBeStopped(t *testing.T) {
	t.Parallel()

	var fired atomic.Bool
	timer := New().AfterFunc(time.Hour, func() { fired.Store(true) })
	require.True(t, timer.Stop())
	require.False(t, fired.Load())
}

func TestClockEveryTicksUntilStopped(t *testing.T) {
	t.Parallel()

	var ticks atomic.Int32
	tk := New().Every(5*time.Millisecond, func() { ticks.Add(1) })
	require.Eventually(t, func() bool { return ticks.Load() >= 3 }, time.Second, time.Millisecond)
	require.True(t, tk.Stop())
	require.False(t, tk.Stop())

	settled := ticks.Load()
	time.Sleep(20 * time.Millisecond)
	require.LessOrEqual(t, ticks.Load(), settled+1)
}
