// Package storage provides the SQLite-backed implementations of the graph
// store contracts. It handles persistence, JSON serialization of embedded
// documents, and the single-writer locking discipline shared by all stores.
package storage

import (
	"database/sql"
	"sync"
)

// DB wraps the shared database handle with the writer lock every store uses.
//
// Writers hold the write lock for their whole read-modify-write sequence, so
// two concurrent observations of the same edge triple cannot both pass the
// duplicate check. Plain reads rely on SQLite WAL per-query consistency and
// take no lock; the snapshot manager takes the read lock across its reads to
// exclude writers and obtain a consistent cut.
type DB struct {
	sql *sql.DB
	mu  sync.RWMutex
}

// New wraps a database handle for use by the stores.
func New(sqldb *sql.DB) *DB {
	return &DB{sql: sqldb}
}

// SQL exposes the underlying handle.
func (d *DB) SQL() *sql.DB { return d.sql }

// Lock acquires the writer lock.
func (d *DB) Lock() { d.mu.Lock() }

// Unlock releases the writer lock.
func (d *DB) Unlock() { d.mu.Unlock() }

// RLock blocks writers without blocking other readers. Held by the snapshot
// manager across its reads for a consistent cut.
func (d *DB) RLock() { d.mu.RLock() }

// RUnlock releases the read lock.
func (d *DB) RUnlock() { d.mu.RUnlock() }
