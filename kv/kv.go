// Package kv is the key value abstraction the embedded document store is built on
package kv

import "context"

// DB is a key value database
type DB interface {
	// Tx runs fn inside a transaction. The transaction commits when fn returns nil and is
	// discarded otherwise.
	Tx(isUpdate bool, fn func(Tx) error) error
	// NewBatch returns a write batch for bulk writes outside of a transaction
	NewBatch() Batch
	// DropPrefix deletes every key with one of the prefixes
	DropPrefix(prefix ...[]byte) error
	// Close closes the database
	Close() error
}

// IterOpts are options for iterating keys
type IterOpts struct {
	Prefix  []byte `json:"prefix"`
	Seek    []byte `json:"seek"`
	Reverse bool   `json:"reverse"`
}

// Tx is a database transaction
type Tx interface {
	// Get returns the value of the key or nil if the key does not exist
	Get(ctx context.Context, key []byte) ([]byte, error)
	// Set sets the value of the key
	Set(ctx context.Context, key, value []byte) error
	// Delete deletes the key
	Delete(ctx context.Context, key []byte) error
	// NewIterator returns an iterator positioned at the first matching key
	NewIterator(opts IterOpts) (Iterator, error)
}

// Iterator iterates over keys in order
type Iterator interface {
	Seek(key []byte)
	Close()
	Valid() bool
	Item() Item
	Next()
}

// Item is a key value pair
type Item interface {
	Key() []byte
	Value() ([]byte, error)
}

// Batch is a batch of writes
type Batch interface {
	Flush() error
	Set(key, value []byte) error
	Delete(key []byte) error
}
