// Package carousel implements the rotating feature panel: selection with
// hover preview, autoplay with a post-click lockout, and per-item media
// readiness.
package carousel

// None marks an unset index.
const None = -1

// State is the selection model of one carousel. All transitions are pure
// functions returning the next State.
type State struct {
	Count    int     `json:"count"`
	Selected int     `json:"selected"`
	Previous int     `json:"previous"`
	Hovered  int     `json:"hovered"`
	Locked   bool    `json:"locked"`
	Progress float64 `json:"progress"`
}

// New returns the idle state for count items starting at defaultIndex.
// Out-of-range defaults fall back to the first item.
func New(count, defaultIndex int) State {
	if count < 0 {
		count = 0
	}
	if defaultIndex < 0 || defaultIndex >= count {
		defaultIndex = 0
	}
	return State{Count: count, Selected: defaultIndex, Previous: None, Hovered: None}
}

// Displayed is the index the host should render: the hovered item while a
// preview is active, else the selection.
func (s State) Displayed() int {
	if s.valid(s.Hovered) {
		return s.Hovered
	}
	return s.Selected
}

// Hover previews i without committing it.
func (s State) Hover(i int) State {
	if !s.valid(i) {
		return s
	}
	s.Hovered = i
	return s
}

// Unhover ends the preview.
func (s State) Unhover() State {
	s.Hovered = None
	return s
}

// Select commits an explicit choice and locks autoplay. Selecting the
// current item only locks.
func (s State) Select(i int) State {
	if !s.valid(i) {
		return s
	}
	s.Locked = true
	if i == s.Selected {
		return s
	}
	return s.moveTo(i)
}

// Advance is the autoplay tick. It is a no-op while locked or when there is
// nothing to rotate to.
func (s State) Advance() State {
	if s.Locked || s.Count < 2 {
		return s
	}
	return s.moveTo((s.Selected + 1) % s.Count)
}

// Unlock ends the lockout.
func (s State) Unlock() State {
	s.Locked = false
	return s
}

// TickProgress grows the progress bar by step while unlocked, capped at 1.
func (s State) TickProgress(step float64) State {
	if s.Locked || step <= 0 {
		return s
	}
	s.Progress += step
	if s.Progress > 1 {
		s.Progress = 1
	}
	return s
}

func (s State) moveTo(i int) State {
	s.Previous = s.Selected
	s.Selected = i
	s.Progress = 0
	return s
}

func (s State) valid(i int) bool {
	return i >= 0 && i < s.Count
}
