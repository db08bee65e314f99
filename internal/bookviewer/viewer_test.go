package bookviewer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/clock"
)

type stubDoc int

func (d stubDoc) PageCount() int { return int(d) }

type loaderFunc func(ctx context.Context) (Document, error)

func (f loaderFunc) Load(ctx context.Context) (Document, error) { return f(ctx) }

func docOf(pages int) DocumentLoader {
	return loaderFunc(func(context.Context) (Document, error) { return stubDoc(pages), nil })
}

// gateRenderer finishes pages immediately unless they are gated.
type gateRenderer struct {
	mu    sync.Mutex
	gates map[int]chan struct{}
	seen  map[int]int
}

func newGateRenderer(gated ...int) *gateRenderer {
	r := &gateRenderer{gates: make(map[int]chan struct{}), seen: make(map[int]int)}
	for _, p := range gated {
		r.gates[p] = make(chan struct{})
	}
	return r
}

func (r *gateRenderer) Render(ctx context.Context, page int) error {
	r.mu.Lock()
	r.seen[page]++
	gate := r.gates[page]
	r.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *gateRenderer) open(page int) { close(r.gates[page]) }

func (r *gateRenderer) renders(page int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[page]
}

func newTestViewer(t *testing.T, r Renderer) (*Viewer, *clock.Manual) {
	t.Helper()
	clk := clock.NewManual(time.Unix(0, 0))
	v := NewViewer(DefaultConfig(), clk, r, zap.NewNop())
	t.Cleanup(v.Close)
	return v, clk
}

// TestViewerFlipCommitsAfterAnimation holds the target until the flip lands.
func TestViewerFlipCommitsAfterAnimation(t *testing.T) {
	t.Parallel()

	v, clk := newTestViewer(t, newGateRenderer())
	require.NoError(t, v.Load(context.Background(), docOf(10)))

	require.True(t, v.FlipForward())
	snap := v.Snapshot()
	require.Equal(t, 1, snap.State.Left)
	require.True(t, snap.State.Flip.Active)

	require.False(t, v.FlipBackward())
	require.False(t, v.FlipForward())
	require.Equal(t, snap.State.Flip, v.Snapshot().State.Flip)

	v.ZoomIn()
	require.True(t, v.Snapshot().State.Flip.Active)

	clk.Advance(599 * time.Millisecond)
	require.True(t, v.Snapshot().State.Flip.Active)
	clk.Advance(time.Millisecond)
	snap = v.Snapshot()
	require.False(t, snap.State.Flip.Active)
	require.Equal(t, 3, snap.State.Left)
	require.InDelta(t, 1.1, snap.State.Zoom, 1e-9)
}

// TestViewerLastSpreadForwardIsNoop covers a viewer parked on pages 9-10 of 10.
func TestViewerLastSpreadForwardIsNoop(t *testing.T) {
	t.Parallel()

	v, clk := newTestViewer(t, newGateRenderer())
	require.NoError(t, v.Load(context.Background(), docOf(10)))
	for i := 0; i < 4; i++ {
		require.True(t, v.FlipForward())
		clk.Advance(DefaultConfig().FlipDuration)
	}
	require.Equal(t, 9, v.Snapshot().State.Left)

	require.False(t, v.FlipForward())
	snap := v.Snapshot()
	require.True(t, snap.State.Idle())
	require.NotContains(t, snap.Actions, "next")
	require.Contains(t, snap.Actions, "previous")
	require.Zero(t, clk.Pending())
}

// TestViewerLoadFailureIsTerminal leaves only close available.
func TestViewerLoadFailureIsTerminal(t *testing.T) {
	t.Parallel()

	v, _ := newTestViewer(t, newGateRenderer())
	err := v.Load(context.Background(), loaderFunc(func(context.Context) (Document, error) {
		return nil, errors.New("corrupt pdf")
	}))
	require.ErrorIs(t, err, ErrDocumentLoad)

	snap := v.Snapshot()
	require.Equal(t, PhaseFailed, snap.Phase)
	require.Equal(t, []string{"close"}, snap.Actions)
	require.Contains(t, snap.Error, "corrupt pdf")

	require.False(t, v.FlipForward())
	v.ZoomIn()
	require.Equal(t, PhaseFailed, v.Snapshot().Phase)
	require.ErrorIs(t, v.Load(context.Background(), docOf(4)), ErrNotLoading)

	v.Close()
	require.Equal(t, PhaseClosed, v.Snapshot().Phase)
}

// TestViewerEmptyDocumentFails treats a zero-page document as a load failure.
func TestViewerEmptyDocumentFails(t *testing.T) {
	t.Parallel()

	v, _ := newTestViewer(t, newGateRenderer())
	require.ErrorIs(t, v.Load(context.Background(), docOf(0)), ErrDocumentLoad)
}

// TestViewerPreloadsWindowWithoutSkeleton renders the window up front and
// puts on-demand pages behind a skeleton until they are ready.
func TestViewerPreloadsWindowWithoutSkeleton(t *testing.T) {
	t.Parallel()

	r := newGateRenderer(40)
	v, _ := newTestViewer(t, r)
	require.NoError(t, v.Load(context.Background(), docOf(50)))

	require.Eventually(t, func() bool {
		return v.PageStatus(2) == PageRendered && v.PageStatus(14) == PageRendered
	}, time.Second, 5*time.Millisecond)
	require.False(t, v.ShowPage(2).Skeleton)
	require.Zero(t, r.renders(15))

	pv := v.ShowPage(40)
	require.True(t, pv.Skeleton)
	require.Equal(t, PageRendering, pv.Status)

	r.open(40)
	require.Eventually(t, func() bool { return !v.ShowPage(40).Skeleton }, time.Second, 5*time.Millisecond)
	require.Equal(t, 1, r.renders(40))
}

// TestViewerCloseCancelsRenders unblocks renders and stops the flip timer.
func TestViewerCloseCancelsRenders(t *testing.T) {
	t.Parallel()

	r := newGateRenderer(1, 2)
	v, clk := newTestViewer(t, r)
	require.NoError(t, v.Load(context.Background(), docOf(6)))
	require.True(t, v.FlipForward())
	require.Equal(t, 1, clk.Pending())

	v.Close()
	require.Zero(t, clk.Pending())
	require.Equal(t, PhaseClosed, v.Snapshot().Phase)
	require.False(t, v.FlipForward())
	require.Never(t, func() bool { return v.PageStatus(1) == PageRendered }, 50*time.Millisecond, 5*time.Millisecond)
}

// flakyRenderer fails the first render of each listed page.
type flakyRenderer struct {
	mu    sync.Mutex
	fail  map[int]bool
	calls map[int]int
}

func (r *flakyRenderer) Render(_ context.Context, page int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[page]++
	if r.fail[page] {
		r.fail[page] = false
		return errors.New("render failed")
	}
	return nil
}

func (r *flakyRenderer) count(page int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[page]
}

// TestViewerRetriesFailedWindowPage re-renders a preloaded page that failed
// and shows a skeleton until it succeeds.
func TestViewerRetriesFailedWindowPage(t *testing.T) {
	t.Parallel()

	r := &flakyRenderer{fail: map[int]bool{2: true}, calls: make(map[int]int)}
	v, _ := newTestViewer(t, r)
	require.NoError(t, v.Load(context.Background(), docOf(10)))
	require.Eventually(t, func() bool { return v.PageStatus(2) == PageFailed }, time.Second, 5*time.Millisecond)

	pv := v.ShowPage(2)
	require.True(t, pv.Skeleton)
	require.NotEqual(t, PageFailed, pv.Status)

	require.Eventually(t, func() bool { return !v.ShowPage(2).Skeleton }, time.Second, 5*time.Millisecond)
	require.Equal(t, PageRendered, v.PageStatus(2))
	require.Equal(t, 2, r.count(2))
}
