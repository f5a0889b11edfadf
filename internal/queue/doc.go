// Package queue implements the persistent playback queue.
//
// Items occupy positions 1..N with no gaps and at most one of them is marked
// as playing. Every [Engine] operation holds the engine mutex and runs in a
// single transaction, so the invariant holds between any two calls.
package queue
