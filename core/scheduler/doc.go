// Package scheduler runs assignment batches for pending calls on a fixed
// cadence. A Lock keeps instances sharing a directory from sweeping the same
// calls at once.
package scheduler
