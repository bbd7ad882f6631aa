// Package journal keeps a SQLite audit trail of the Z-Wave event stream and
// of every command run against the network.
//
// The Journal is an event sink and a command recorder. HandleEvent and
// RecordCommand only enqueue; a single writer goroutine commits entries in
// batches so the session's consumer goroutine never waits on disk. Entries
// keep the order in which they were handed over. Old entries are pruned on
// a timer when a retention period is configured.
//
// The schema lives in the migrations package at the module root.
package journal
