package bookviewer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestFlipBounds checks that flips past either end are no-ops.
func TestFlipBounds(t *testing.T) {
	t.Parallel()

	last := State{PageCount: 10, Left: 9, Zoom: DefaultZoom}
	got, ok := last.BeginFlip(Forward)
	require.False(t, ok)
	require.Equal(t, last, got)
	require.True(t, got.Idle())

	odd := State{PageCount: 9, Left: 9, Zoom: DefaultZoom}
	_, hasRight := odd.Right()
	require.False(t, hasRight)
	_, ok = odd.BeginFlip(Forward)
	require.False(t, ok)

	first := NewState(10)
	got, ok = first.BeginFlip(Backward)
	require.False(t, ok)
	require.Equal(t, first, got)
}

// TestFlipTargets computes the target spread in both directions.
func TestFlipTargets(t *testing.T) {
	t.Parallel()

	s, ok := NewState(10).BeginFlip(Forward)
	require.True(t, ok)
	require.Equal(t, Flip{Active: true, Direction: Forward, TargetLeft: 3, TargetRight: 4}, s.Flip)
	s = s.CommitFlip()
	require.Equal(t, 3, s.Left)
	require.True(t, s.Idle())

	s, ok = State{PageCount: 9, Left: 7, Zoom: 1}.BeginFlip(Forward)
	require.True(t, ok)
	require.Equal(t, 9, s.Flip.TargetLeft)
	require.Zero(t, s.Flip.TargetRight)

	s, ok = State{PageCount: 10, Left: 5, Zoom: 1}.BeginFlip(Backward)
	require.True(t, ok)
	require.Equal(t, Flip{Active: true, Direction: Backward, TargetLeft: 3, TargetRight: 4}, s.Flip)

	s, ok = State{PageCount: 10, Left: 2, Zoom: 1}.BeginFlip(Backward)
	require.True(t, ok)
	require.Equal(t, 1, s.Flip.TargetLeft)
	require.Equal(t, 1, s.Flip.TargetRight)
}

// TestFlipIsNotReentrant ignores a second request while flipping.
func TestFlipIsNotReentrant(t *testing.T) {
	t.Parallel()

	s, ok := State{PageCount: 20, Left: 5, Zoom: 1}.BeginFlip(Forward)
	require.True(t, ok)
	pending := s.Flip

	again, ok := s.BeginFlip(Backward)
	require.False(t, ok)
	require.Equal(t, pending, again.Flip)
	again, ok = s.BeginFlip(Forward)
	require.False(t, ok)
	require.Equal(t, pending, again.Flip)
}

// TestZoomClamps keeps zoom inside its bounds and leaves flips alone.
func TestZoomClamps(t *testing.T) {
	t.Parallel()

	s := NewState(4)
	for i := 0; i < 30; i++ {
		s = s.ZoomIn()
	}
	require.Equal(t, MaxZoom, s.Zoom)
	for i := 0; i < 30; i++ {
		s = s.ZoomOut()
	}
	require.Equal(t, MinZoom, s.Zoom)
	require.Equal(t, 0.7, s.ZoomIn().Zoom)
	require.Equal(t, 1.5, s.SetZoom(1.5).Zoom)

	flipping, ok := NewState(4).BeginFlip(Forward)
	require.True(t, ok)
	zoomed := flipping.SetZoom(1.8)
	require.Equal(t, flipping.Flip, zoomed.Flip)
}

// TestPreloadWindow clips the window to the document.
func TestPreloadWindow(t *testing.T) {
	t.Parallel()

	require.Equal(t, Window{From: 1, To: 14}, NewState(100).PreloadWindow(8, 12))
	require.Equal(t, Window{From: 42, To: 63}, State{PageCount: 100, Left: 50}.PreloadWindow(8, 12))
	require.Equal(t, Window{From: 1, To: 5}, NewState(5).PreloadWindow(8, 12))
	require.True(t, Window{From: 3, To: 5}.Contains(3))
	require.False(t, Window{From: 3, To: 5}.Contains(6))
}
