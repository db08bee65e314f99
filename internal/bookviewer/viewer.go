package bookviewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/clock"
)

var (
	// ErrDocumentLoad marks a document that could not be opened. It is terminal.
	ErrDocumentLoad = errors.New("bookviewer: document failed to load")
	// ErrNotLoading is returned when Load is called more than once.
	ErrNotLoading = errors.New("bookviewer: viewer is not awaiting a document")
)

// Document is an opened document.
type Document interface {
	PageCount() int
}

// DocumentLoader opens the document shown by a viewer.
type DocumentLoader interface {
	Load(ctx context.Context) (Document, error)
}

// Renderer turns a page number into a bitmap. It returns once the page is
// ready to show.
type Renderer interface {
	Render(ctx context.Context, page int) error
}

// Phase is the viewer lifecycle.
type Phase string

// Viewer phases. PhaseFailed only offers close.
const (
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
	PhaseClosed  Phase = "closed"
)

// PageStatus is the render state of one page.
type PageStatus int

// Page render states.
const (
	PageIdle PageStatus = iota
	PageRendering
	PageRendered
	PageFailed
)

// Config holds viewer timings and limits.
type Config struct {
	FlipDuration  time.Duration
	PreloadBehind int
	PreloadAhead  int
	MaxRenders    int
}

// DefaultConfig returns a 600ms flip with 8 pages preloaded behind and 12 ahead.
func DefaultConfig() Config {
	return Config{
		FlipDuration:  600 * time.Millisecond,
		PreloadBehind: 8,
		PreloadAhead:  12,
		MaxRenders:    4,
	}
}

// PageView tells the host how to draw one page.
type PageView struct {
	Page     int        `json:"page"`
	Status   PageStatus `json:"status"`
	Skeleton bool       `json:"skeleton"`
}

// View is a point-in-time copy of a viewer.
type View struct {
	Phase   Phase    `json:"phase"`
	State   State    `json:"state"`
	Window  Window   `json:"window"`
	Error   string   `json:"error,omitempty"`
	Actions []string `json:"actions"`
}

// Viewer owns one State, its flip timer and the background page renders.
type Viewer struct {
	mu       sync.Mutex
	cfg      Config
	clock    clock.Clock
	renderer Renderer
	logger   *zap.Logger

	phase     Phase
	loadErr   error
	state     State
	pages     map[int]PageStatus
	flipTimer clock.Timer

	ctx    context.Context
	cancel context.CancelFunc
	sem    chan struct{}
}

// NewViewer creates a viewer awaiting Load.
func NewViewer(cfg Config, clk clock.Clock, renderer Renderer, logger *zap.Logger) *Viewer {
	def := DefaultConfig()
	if cfg.FlipDuration <= 0 {
		cfg.FlipDuration = def.FlipDuration
	}
	if cfg.PreloadBehind < 0 {
		cfg.PreloadBehind = def.PreloadBehind
	}
	if cfg.PreloadAhead < 0 {
		cfg.PreloadAhead = def.PreloadAhead
	}
	if cfg.MaxRenders <= 0 {
		cfg.MaxRenders = def.MaxRenders
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Viewer{
		cfg:      cfg,
		clock:    clk,
		renderer: renderer,
		logger:   logger,
		phase:    PhaseLoading,
		pages:    make(map[int]PageStatus),
		ctx:      ctx,
		cancel:   cancel,
		sem:      make(chan struct{}, cfg.MaxRenders),
	}
}

// Load opens the document. A failure is terminal: the viewer stays in
// PhaseFailed and only Close has any effect afterwards.
func (v *Viewer) Load(ctx context.Context, loader DocumentLoader) error {
	v.mu.Lock()
	if v.phase != PhaseLoading {
		v.mu.Unlock()
		return ErrNotLoading
	}
	v.mu.Unlock()

	doc, err := loader.Load(ctx)
	if err == nil && (doc == nil || doc.PageCount() < 1) {
		err = errors.New("document has no pages")
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phase != PhaseLoading {
		return ErrNotLoading
	}
	if err != nil {
		v.phase = PhaseFailed
		v.loadErr = fmt.Errorf("%w: %w", ErrDocumentLoad, err)
		v.logger.Error("document load failed", zap.Error(err))
		return v.loadErr
	}
	v.phase = PhaseReady
	v.state = NewState(doc.PageCount())
	v.preloadLocked(v.state.PreloadWindow(v.cfg.PreloadBehind, v.cfg.PreloadAhead))
	return nil
}

// FlipForward starts a forward flip. It reports whether the flip started.
func (v *Viewer) FlipForward() bool { return v.flip(Forward) }

// FlipBackward starts a backward flip. It reports whether the flip started.
func (v *Viewer) FlipBackward() bool { return v.flip(Backward) }

func (v *Viewer) flip(dir Direction) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phase != PhaseReady {
		return false
	}
	next, ok := v.state.BeginFlip(dir)
	if !ok {
		return false
	}
	v.state = next
	v.preloadLocked(windowAround(next.Flip.TargetLeft, next.PageCount, v.cfg.PreloadBehind, v.cfg.PreloadAhead))
	v.flipTimer = v.clock.AfterFunc(v.cfg.FlipDuration, v.commitFlip)
	return true
}

func (v *Viewer) commitFlip() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phase != PhaseReady || !v.state.Flip.Active {
		return
	}
	v.state = v.state.CommitFlip()
	v.flipTimer = nil
}

// SetZoom sets the zoom level, clamped to the allowed range.
func (v *Viewer) SetZoom(z float64) {
	v.updateZoom(func(s State) State { return s.SetZoom(z) })
}

// ZoomIn steps the zoom up.
func (v *Viewer) ZoomIn() { v.updateZoom(State.ZoomIn) }

// ZoomOut steps the zoom down.
func (v *Viewer) ZoomOut() { v.updateZoom(State.ZoomOut) }

func (v *Viewer) updateZoom(fn func(State) State) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phase != PhaseReady {
		return
	}
	v.state = fn(v.state)
}

// ShowPage reports how to draw page. Pages in the preload window are already
// rendering; any other page, or a window page whose render failed, gets an
// on-demand render. A page shows a skeleton until the renderer finishes.
func (v *Viewer) ShowPage(page int) PageView {
	v.mu.Lock()
	defer v.mu.Unlock()
	pv := PageView{Page: page, Status: v.pages[page]}
	if v.phase != PhaseReady || page < 1 || page > v.state.PageCount {
		pv.Skeleton = true
		return pv
	}
	v.renderLocked(page)
	pv.Status = v.pages[page]
	pv.Skeleton = pv.Status != PageRendered
	return pv
}

// PageStatus returns the render state of page.
func (v *Viewer) PageStatus(page int) PageStatus {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pages[page]
}

// Snapshot returns the current view.
func (v *Viewer) Snapshot() View {
	v.mu.Lock()
	defer v.mu.Unlock()
	view := View{Phase: v.phase, State: v.state}
	switch v.phase {
	case PhaseReady:
		view.Window = v.state.PreloadWindow(v.cfg.PreloadBehind, v.cfg.PreloadAhead)
		view.Actions = []string{"close"}
		if v.state.CanFlip(Backward) {
			view.Actions = append(view.Actions, "previous")
		}
		if v.state.CanFlip(Forward) {
			view.Actions = append(view.Actions, "next")
		}
		if v.state.Zoom < MaxZoom {
			view.Actions = append(view.Actions, "zoom-in")
		}
		if v.state.Zoom > MinZoom {
			view.Actions = append(view.Actions, "zoom-out")
		}
	case PhaseFailed:
		view.Error = v.loadErr.Error()
		view.Actions = []string{"close"}
	default:
		view.Actions = []string{"close"}
	}
	return view
}

// Close cancels the flip timer and every outstanding render.
func (v *Viewer) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phase == PhaseClosed {
		return
	}
	v.phase = PhaseClosed
	if v.flipTimer != nil {
		v.flipTimer.Stop()
		v.flipTimer = nil
	}
	v.cancel()
}

func (v *Viewer) preloadLocked(w Window) {
	for p := w.From; p <= w.To; p++ {
		v.renderLocked(p)
	}
}

func (v *Viewer) renderLocked(page int) {
	if v.renderer == nil {
		return
	}
	switch v.pages[page] {
	case PageRendering, PageRendered:
		return
	}
	v.pages[page] = PageRendering
	go v.render(page)
}

func (v *Viewer) render(page int) {
	select {
	case v.sem <- struct{}{}:
	case <-v.ctx.Done():
		return
	}
	defer func() { <-v.sem }()

	err := v.renderer.Render(v.ctx, page)

	v.mu.Lock()
	defer v.mu.Unlock()
	if v.phase == PhaseClosed {
		return
	}
	if err != nil {
		v.pages[page] = PageFailed
		v.logger.Warn("page render failed", zap.Int("page", page), zap.Error(err))
		return
	}
	v.pages[page] = PageRendered
}
