// Package store persists the journal's records in a local key-value store.
package store

import "errors"

// Record keys used by the journal
const (
	KeyEntries     = "journal_entries"
	KeyReflections = "journal_reflections"
)

// ErrNotFound is returned by Get when no value is stored under a key
var ErrNotFound = errors.New("record not found")

// KV is a minimal key-value store holding whole serialized collections
type KV interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(keys ...string) error
}
