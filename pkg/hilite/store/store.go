// Package store defines the key/value abstraction the engine persists
// its state snapshots through. Backends only need get/set/delete
// semantics; snapshot encoding and versioning live above this layer.
package store

import "context"

// KV is the minimal persistence contract. Get returns
// internalerr.ErrNotFound (possibly wrapped) for missing keys.
// Implementations must be safe for concurrent use.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
