// Package clock defines the time source and cancellable timer handles used by
// the interactive state machines.
package clock

import "time"

// Timer is a handle to a pending callback. Stop reports whether the call
// prevented the callback from running; callers must still tolerate a callback
// that was already in flight.
type Timer interface {
	Stop() bool
}

// Clock returns the current time and schedules callbacks.
type Clock interface {
	Now() time.Time
	// AfterFunc runs f once after d.
	AfterFunc(d time.Duration, f func()) Timer
	// Every runs f every d until the returned Timer is stopped.
	Every(d time.Duration, f func()) Timer
}
