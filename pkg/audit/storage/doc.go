// Package storage provides audit event sinks.
//
// SQLiteStorage is the durable sink, built on the pure-Go modernc.org/sqlite
// driver so the gateway binary needs no cgo. MemoryStorage keeps events in a
// map and is meant for tests and ephemeral deployments.
//
// Both sinks are write-once: storing an event whose id already exists leaves
// the first copy untouched and returns nil.
package storage
