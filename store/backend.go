package store

import (
	"context"

	logging "github.com/ipfs/go-log/v2"
)

var log = logging.Logger("store")

// Backend is a flat object store addressed by slash separated keys.
type Backend interface {
	Id() string
	Type() string
	Open() error
	Close() error
	Put(ctx context.Context, key string, data []byte) error
	// Get returns types.ErrNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// List returns the full keys below prefix. Without recursive only
	// objects directly below prefix are listed, together with the
	// sub-folders as keys ending in "/".
	List(ctx context.Context, prefix string, recursive bool) ([]string, error)
	Copy(ctx context.Context, src string, dst string) error
	Delete(ctx context.Context, keys ...string) error
	Url(key string) string
}

// ConditionalBackend is implemented by backends that support writes
// conditioned on the version tag of the object that was read.
type ConditionalBackend interface {
	Backend
	GetWithTag(ctx context.Context, key string) ([]byte, string, error)
	// PutIfMatch writes data if the stored object still carries tag. An
	// empty tag requires the object to be absent.
	PutIfMatch(ctx context.Context, key string, data []byte, tag string) error
}
