// Package analytics records search activity. Handlers emit one Event per
// search into a Hub, which batches events on a background goroutine and fans
// them out to sinks (structured logs, Pub/Sub). Emitting never blocks a
// request: when the buffer is full the event is dropped and counted.
package analytics
