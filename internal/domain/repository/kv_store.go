package repository

import "context"

// KVUpdateFunc maps the current value of a key to its replacement. Returning
// keep=false deletes the key. Stores may call it more than once, so it must
// not have side effects.
type KVUpdateFunc func(current string, exists bool) (next string, keep bool, err error)

// KVStore is the device-local persistent key-value store
type KVStore interface {
	// Get returns the value and whether the key exists
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Update is an atomic read-modify-write of one key, also against other
	// processes sharing the store
	Update(ctx context.Context, key string, fn KVUpdateFunc) error
	Close() error
}
