// Package task runs background jobs on a bounded pool of worker goroutines.
// Jobs are queued without blocking the caller; a full queue is reported
// immediately. Every job runs under a per-job timeout, and both returned
// errors and panics are handed to a single error handler so the owner can
// record a terminal status.
package task
