package carousel

import (
	"sync"
	"time"

	"github.com/JakeFAU/adhesive-catalog/internal/clock"
)

// Config holds the carousel timings.
type Config struct {
	AutoplayInterval time.Duration
	ProgressInterval time.Duration
	ProgressStep     float64
	LockoutDelay     time.Duration
	DefaultIndex     int
}

// DefaultConfig returns the timings used by the feature panels: advance every
// 4s with the bar filling in 40 steps, resume 8s after a click.
func DefaultConfig() Config {
	return Config{
		AutoplayInterval: 4 * time.Second,
		ProgressInterval: 100 * time.Millisecond,
		ProgressStep:     1.0 / 40,
		LockoutDelay:     8 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.AutoplayInterval <= 0 {
		c.AutoplayInterval = def.AutoplayInterval
	}
	if c.ProgressInterval <= 0 {
		c.ProgressInterval = def.ProgressInterval
	}
	if c.ProgressStep <= 0 {
		c.ProgressStep = def.ProgressStep
	}
	if c.LockoutDelay <= 0 {
		c.LockoutDelay = def.LockoutDelay
	}
	return c
}

// View is a point-in-time copy of a carousel for rendering.
type View struct {
	State        State        `json:"state"`
	Displayed    int          `json:"displayed"`
	Presentation Presentation `json:"presentation"`
	Playing      bool         `json:"playing"`
}

// Controller drives a State from user input and timers. Every timer it arms
// is owned by the controller and released by Close.
type Controller struct {
	mu    sync.Mutex
	cfg   Config
	clock clock.Clock
	media *MediaTracker

	state    State
	autoplay clock.Timer
	progress clock.Timer
	lockout  clock.Timer
	// gen invalidates callbacks from timers that were replaced or stopped.
	gen     uint64
	started bool
	closed  bool
}

// NewController creates a controller for count items. media may be nil.
func NewController(count int, cfg Config, clk clock.Clock, media *MediaTracker) *Controller {
	cfg = cfg.withDefaults()
	return &Controller{
		cfg:   cfg,
		clock: clk,
		media: media,
		state: New(count, cfg.DefaultIndex),
	}
}

// Start arms autoplay and begins preloading around the initial selection.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	if c.state.Locked {
		c.armLockoutLocked()
	} else {
		c.armTickersLocked()
	}
	sel := c.state.Selected
	c.mu.Unlock()
	c.focus(sel)
}

// Hover previews item i.
func (c *Controller) Hover(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.state = c.state.Hover(i)
}

// Unhover clears the preview.
func (c *Controller) Unhover() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.state = c.state.Unhover()
}

// Click selects item i, suppresses autoplay and restarts the lockout timer.
// Before Start the selection is locked but no timer is armed; Start arms the
// lockout instead of autoplay.
func (c *Controller) Click(i int) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if !c.state.valid(i) {
		c.mu.Unlock()
		return
	}
	c.state = c.state.Select(i)
	if c.started {
		c.armLockoutLocked()
	}
	sel := c.state.Selected
	c.mu.Unlock()
	c.focus(sel)
}

// SetInView pauses or resumes video playback without touching selection.
func (c *Controller) SetInView(inView bool) {
	if c.media != nil {
		c.media.SetInView(inView)
	}
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	st := c.state
	c.mu.Unlock()
	v := View{State: st, Displayed: st.Displayed(), Presentation: PresentImage}
	if c.media != nil {
		v.Presentation = c.media.Presentation(v.Displayed)
		v.Playing = c.media.Playing(v.Displayed)
	}
	return v
}

// Close stops every timer and outstanding preload. Callbacks already in
// flight observe the closed flag and do nothing.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTickersLocked()
	if c.lockout != nil {
		c.lockout.Stop()
		c.lockout = nil
	}
	c.mu.Unlock()
	if c.media != nil {
		c.media.Close()
	}
}

func (c *Controller) onAutoplay(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.gen {
		c.mu.Unlock()
		return
	}
	before := c.state.Selected
	c.state = c.state.Advance()
	sel := c.state.Selected
	c.mu.Unlock()
	if sel != before {
		c.focus(sel)
	}
}

func (c *Controller) onProgress(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	c.state = c.state.TickProgress(c.cfg.ProgressStep)
}

func (c *Controller) onLockoutExpired(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || gen != c.gen {
		return
	}
	c.lockout = nil
	c.state = c.state.Unlock()
	if c.started {
		c.armTickersLocked()
	}
}

// armLockoutLocked stops autoplay and (re)arms the lockout timer.
func (c *Controller) armLockoutLocked() {
	c.stopTickersLocked()
	if c.lockout != nil {
		c.lockout.Stop()
	}
	gen := c.gen
	c.lockout = c.clock.AfterFunc(c.cfg.LockoutDelay, func() { c.onLockoutExpired(gen) })
}

// armTickersLocked starts fresh autoplay and progress tickers. The progress
// ticker is armed first so that a tick due at the same instant as an advance
// lands before the reset.
func (c *Controller) armTickersLocked() {
	c.stopTickersLocked()
	gen := c.gen
	c.progress = c.clock.Every(c.cfg.ProgressInterval, func() { c.onProgress(gen) })
	c.autoplay = c.clock.Every(c.cfg.AutoplayInterval, func() { c.onAutoplay(gen) })
}

func (c *Controller) stopTickersLocked() {
	c.gen++
	if c.autoplay != nil {
		c.autoplay.Stop()
		c.autoplay = nil
	}
	if c.progress != nil {
		c.progress.Stop()
		c.progress = nil
	}
}

func (c *Controller) focus(i int) {
	if c.media != nil {
		c.media.Focus(i)
	}
}
