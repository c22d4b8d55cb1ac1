package session

import (
	"context"
	"errors"
	"time"
)

// DefaultTTL is the idle timeout after which a session behaves as absent.
const DefaultTTL = 30 * time.Minute

// ErrVersionConflict is returned by Save when the stored version is not the
// one the caller loaded.
var ErrVersionConflict = errors.New("session version conflict")

// Entry wraps session data with the bookkeeping owned by the store.
// A zero Version means the session does not exist (or has expired).
type Entry[T any] struct {
	Data      T
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Exists reports whether the entry was found in the store.
func (e Entry[T]) Exists() bool {
	return e.Version > 0
}

// Store is keyed session storage with idle expiry.
//
// Get never fails for unknown or expired keys: it returns the zero Entry.
// Save upserts and stamps UpdatedAt; e.Version must be exactly one more than
// the stored version (an absent or expired record counts as version 0).
// Clear is a no-op for unknown keys.
type Store[T any] interface {
	Get(ctx context.Context, id string) (Entry[T], error)
	Save(ctx context.Context, id string, e Entry[T]) error
	Clear(ctx context.Context, id string) error
}
