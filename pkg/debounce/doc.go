// Package debounce coalesces bursts of calls into a single deferred call.
//
// A Debouncer holds at most one pending payload. Every Schedule replaces the
// payload and restarts the delay; when the delay elapses without another
// Schedule, the callback runs exactly once with the latest payload.
//
//	d := debounce.New(500*time.Millisecond, func(f Form) { save(f) })
//	d.Schedule(form) // restarts the timer
//	d.Cancel()       // drops the pending payload
//
// Group does the same per key, for independent streams such as file events
// keyed by note ID.
package debounce
