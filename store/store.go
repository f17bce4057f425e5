package store

import (
	"errors"
	"fmt"
)

// ErrPersistence is wrapped by every failure to read or write the persisted
// records
var ErrPersistence = errors.New("persistence failure")

// Store is the durable snapshot of all known objects
type Store interface {
	// Init empties the persisted collection
	Init() error
	// Upsert replaces the record with the same object ID or appends it
	Upsert(rec Record) error
	// Flush writes any buffered records to the backing storage
	Flush() error
	// Records returns the persisted records in insertion order
	Records() ([]Record, error)
	// Close flushes and releases the store
	Close() error
}

// Backend names a Store implementation
type Backend string

const (
	BackendJSON        Backend = "json"
	BackendJSONIndexed Backend = "json-indexed"
	BackendSQLite      Backend = "sqlite"
)

// Open returns the Store for the given backend persisting to path.  Atomic
// only applies to the json backend, json-indexed always replaces atomically.
func Open(backend Backend, path string, atomic bool) (Store, error) {

	switch backend {
	case BackendJSON, "":
		return NewFileStore(path, atomic), nil
	case BackendJSONIndexed:
		return NewIndexedStore(path), nil
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
