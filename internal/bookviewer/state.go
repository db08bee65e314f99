// Package bookviewer models a two-page spread viewer with an animated page
// flip, bounded zoom and a preloaded window of rendered pages.
package bookviewer

import "math"

// Zoom bounds.
const (
	MinZoom     = 0.6
	MaxZoom     = 2.0
	ZoomStep    = 0.1
	DefaultZoom = 1.0
)

// Direction of a page flip.
type Direction int

// Flip directions.
const (
	Forward Direction = iota + 1
	Backward
)

func (d Direction) String() string {
	switch d {
	case Forward:
		return "forward"
	case Backward:
		return "backward"
	default:
		return "none"
	}
}

// Flip describes an in-flight flip. TargetRight is 0 when the target spread
// has no right page.
type Flip struct {
	Active      bool      `json:"active"`
	Direction   Direction `json:"direction"`
	TargetLeft  int       `json:"targetLeft"`
	TargetRight int       `json:"targetRight"`
}

// State is the page and zoom model of a viewer.
type State struct {
	PageCount int     `json:"pageCount"`
	Left      int     `json:"left"`
	Zoom      float64 `json:"zoom"`
	Flip      Flip    `json:"flip"`
}

// NewState opens a document of pageCount pages on its first spread.
func NewState(pageCount int) State {
	if pageCount < 1 {
		pageCount = 1
	}
	return State{PageCount: pageCount, Left: 1, Zoom: DefaultZoom}
}

// Right returns the right-hand page of the current spread, if any.
func (s State) Right() (int, bool) {
	return rightOf(s.Left, s.PageCount)
}

func rightOf(left, pageCount int) (int, bool) {
	if left+1 > pageCount {
		return 0, false
	}
	return left + 1, true
}

// Idle reports whether no flip is in flight.
func (s State) Idle() bool { return !s.Flip.Active }

// CanFlip reports whether a flip in dir would be accepted now.
func (s State) CanFlip(dir Direction) bool {
	if s.Flip.Active {
		return false
	}
	switch dir {
	case Forward:
		right, ok := s.Right()
		return ok && right < s.PageCount
	case Backward:
		return s.Left > 1
	default:
		return false
	}
}

// BeginFlip enters the flipping state. The second result is false, and the
// state unchanged, when the flip is out of bounds or another flip is running.
func (s State) BeginFlip(dir Direction) (State, bool) {
	if !s.CanFlip(dir) {
		return s, false
	}
	var left, right int
	switch dir {
	case Forward:
		cur, _ := s.Right()
		left = cur + 1
		right, _ = rightOf(left, s.PageCount)
	case Backward:
		right = s.Left - 1
		left = max(1, right-1)
	}
	s.Flip = Flip{Active: true, Direction: dir, TargetLeft: left, TargetRight: right}
	return s, true
}

// CommitFlip lands an in-flight flip on its target spread.
func (s State) CommitFlip() State {
	if !s.Flip.Active {
		return s
	}
	s.Left = s.Flip.TargetLeft
	s.Flip = Flip{}
	return s
}

// SetZoom clamps z into [MinZoom, MaxZoom]. Flips are unaffected.
func (s State) SetZoom(z float64) State {
	if math.IsNaN(z) {
		return s
	}
	z = math.Round(z*100) / 100
	s.Zoom = math.Min(MaxZoom, math.Max(MinZoom, z))
	return s
}

// ZoomIn steps the zoom up.
func (s State) ZoomIn() State { return s.SetZoom(s.Zoom + ZoomStep) }

// ZoomOut steps the zoom down.
func (s State) ZoomOut() State { return s.SetZoom(s.Zoom - ZoomStep) }

// Window is an inclusive page range.
type Window struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// Contains reports whether page lies in the window.
func (w Window) Contains(page int) bool { return page >= w.From && page <= w.To }

// PreloadWindow returns the pages around the current spread that are kept
// rendered off-screen.
func (s State) PreloadWindow(behind, ahead int) Window {
	return windowAround(s.Left, s.PageCount, behind, ahead)
}

func windowAround(left, pageCount, behind, ahead int) Window {
	last := left
	if right, ok := rightOf(left, pageCount); ok {
		last = right
	}
	return Window{From: max(1, left-behind), To: min(pageCount, last+ahead)}
}
