package store

import "errors"

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("record not found")

// KV is the minimal key-value store the discovery service persists its
// dismissed-id sets through. Keeping it an interface means tests run
// against an in-memory map while production uses the embedded BadgerDB
// implementation in the badgerkv subpackage.
type KV interface {
	// Get returns the value for key, or ErrNotFound.
	Get(key string) ([]byte, error)
	// Set stores value under key, overwriting any previous value.
	Set(key string, value []byte) error
	Close() error
}
