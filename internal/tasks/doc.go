// Package tasks runs download requests from submission to catalog import.
//
// # Lifecycle
//
// A task moves pending → downloading → completed | failed, or pending →
// cancelled. A failed task can be retried, which puts it back to pending.
// Only one pending or downloading task exists per source URL; submitting the
// same URL again returns that task.
//
// # Execution
//
// [Orchestrator] drains a job channel with a fixed number of workers, paced by
// a token bucket. A worker claims the task, runs the [services.Downloader] and,
// under a completion lock shared by all workers, scans the output directory
// with the album id parsed from the URL and applies the requested queue
// change. Catalog mutation for two tasks never interleaves.
//
// # Progress Reporting
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and
// optional data. Updates use select with default to prevent blocking.
package tasks
