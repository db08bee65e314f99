package catalog

import "sync/atomic"

var emptySnapshot = NewSnapshot(nil, nil, SnapshotMeta{Source: "empty"})

// Holder publishes the current snapshot to concurrent readers. Replacing the
// snapshot is a single pointer swap; readers keep whichever snapshot they
// already hold.
type Holder struct {
	current atomic.Pointer[Snapshot]
}

// NewHolder returns a Holder with no snapshot loaded.
func NewHolder() *Holder {
	return &Holder{}
}

// Current returns the loaded snapshot, or an empty one before the first load.
func (h *Holder) Current() *Snapshot {
	if s := h.current.Load(); s != nil {
		return s
	}
	return emptySnapshot
}

// Ready reports whether a snapshot has been stored.
func (h *Holder) Ready() bool {
	return h.current.Load() != nil
}

// Store replaces the current snapshot.
func (h *Holder) Store(s *Snapshot) {
	if s != nil {
		h.current.Store(s)
	}
}
