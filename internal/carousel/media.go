package carousel

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/adhesive-catalog/internal/clock"
)

// DefaultMediaTimeout bounds how long an item may sit behind a skeleton.
const DefaultMediaTimeout = 5 * time.Second

var errMediaTimeout = errors.New("media preload timed out")

// Item is the static media manifest entry of one carousel panel.
type Item struct {
	Title string `json:"title"`
	Image string `json:"image"`
	Video string `json:"video,omitempty"`
}

// Preloader primes a media asset. It must return once ctx is cancelled.
type Preloader interface {
	Preload(ctx context.Context, url string) error
}

// MediaStatus is the load state of one item's video.
type MediaStatus int

// Media load states.
const (
	MediaIdle MediaStatus = iota
	MediaLoading
	MediaReady
	MediaFailed
)

func (s MediaStatus) String() string {
	switch s {
	case MediaLoading:
		return "loading"
	case MediaReady:
		return "ready"
	case MediaFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Presentation is what the host renders for an item.
type Presentation string

// Presentations, from least to most complete.
const (
	PresentSkeleton Presentation = "skeleton"
	PresentImage    Presentation = "image"
	PresentVideo    Presentation = "video"
)

type preload struct {
	cancel context.CancelFunc
	timer  clock.Timer
}

// MediaTracker preloads the videos around the selection and records per-item
// readiness. Failures only downgrade the presentation to the static image.
type MediaTracker struct {
	mu        sync.Mutex
	items     []Item
	preloader Preloader
	clock     clock.Clock
	timeout   time.Duration
	logger    *zap.Logger

	status   map[int]MediaStatus
	inflight map[int]*preload
	inView   bool
	closed   bool
}

// NewMediaTracker builds a tracker for items. A zero timeout uses
// DefaultMediaTimeout.
func NewMediaTracker(items []Item, preloader Preloader, clk clock.Clock, timeout time.Duration, logger *zap.Logger) *MediaTracker {
	if timeout <= 0 {
		timeout = DefaultMediaTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaTracker{
		items:     append([]Item(nil), items...),
		preloader: preloader,
		clock:     clk,
		timeout:   timeout,
		logger:    logger,
		status:    make(map[int]MediaStatus),
		inflight:  make(map[int]*preload),
		inView:    true,
	}
}

// Focus starts preloading the item at index and the one after it.
func (m *MediaTracker) Focus(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.items)
	if m.closed || n == 0 || index < 0 || index >= n {
		return
	}
	m.startLocked(index)
	m.startLocked((index + 1) % n)
}

func (m *MediaTracker) startLocked(i int) {
	if m.items[i].Video == "" || m.preloader == nil {
		return
	}
	if st := m.status[i]; st != MediaIdle {
		return
	}
	m.status[i] = MediaLoading
	ctx, cancel := context.WithCancel(context.Background())
	p := &preload{cancel: cancel}
	m.inflight[i] = p
	p.timer = m.clock.AfterFunc(m.timeout, func() { m.finish(i, p, errMediaTimeout) })
	url := m.items[i].Video
	go func() {
		err := m.preloader.Preload(ctx, url)
		m.finish(i, p, err)
	}()
}

// finish records the first outcome of a preload. Later outcomes of the same
// preload are dropped.
func (m *MediaTracker) finish(i int, p *preload, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed || m.inflight[i] != p {
		return
	}
	delete(m.inflight, i)
	if p.timer != nil {
		p.timer.Stop()
	}
	p.cancel()
	if err != nil {
		m.status[i] = MediaFailed
		m.logger.Debug("carousel media unavailable", zap.Int("index", i), zap.String("video", m.items[i].Video), zap.Error(err))
		return
	}
	m.status[i] = MediaReady
}

// Status returns the load state of item i.
func (m *MediaTracker) Status(i int) MediaStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[i]
}

// Presentation returns how item i should be drawn right now.
func (m *MediaTracker) Presentation(i int) Presentation {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i < 0 || i >= len(m.items) {
		return PresentSkeleton
	}
	if m.items[i].Video == "" {
		return PresentImage
	}
	switch m.status[i] {
	case MediaReady:
		return PresentVideo
	case MediaFailed:
		return PresentImage
	default:
		return PresentSkeleton
	}
}

// SetInView records whether the carousel is on screen.
func (m *MediaTracker) SetInView(inView bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inView = inView
}

// Playing reports whether item i's video should be playing.
func (m *MediaTracker) Playing(i int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inView && !m.closed && m.status[i] == MediaReady
}

// Close cancels every outstanding preload and timeout.
func (m *MediaTracker) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	for i, p := range m.inflight {
		if p.timer != nil {
			p.timer.Stop()
		}
		p.cancel()
		delete(m.inflight, i)
	}
}

// Pending reports how many preloads are still outstanding.
func (m *MediaTracker) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}
