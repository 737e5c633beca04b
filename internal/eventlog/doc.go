// Package eventlog records controller lifecycle events in SQLite.
//
// The cabinet loop reports connects, connect failures, disconnects, update
// failures and Art-Net circuit-breaker trips through a Recorder. The
// Recorder queues entries on a bounded channel and a single goroutine writes
// them, so the tick path never waits on the database. When the queue is
// full the entry is dropped with a warning.
//
// Every event carries the run id of the daemon instance that produced it,
// which separates sessions when the same database survives restarts.
package eventlog
