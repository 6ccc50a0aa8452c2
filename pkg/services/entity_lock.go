package services

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ontoforge/schema-engine/pkg/apperrors"
)

// SchemaCacheLockKey is the single global key serializing all schema
// mutations. Coarse-grained on purpose: one lock means the
// read-validate-write-verify sequences of two structural changes can
// never interleave, and no lock-ordering hazard can exist.
const SchemaCacheLockKey = "schema-cache"

// EntityLock is a keyed mutual-exclusion primitive. Ownership is scoped
// to a caller-supplied request ID so a cancelled or crashed request
// releases deterministically and double-release is a no-op.
type EntityLock interface {
	// Acquire blocks until the key is free or ctx expires. Expiry is
	// reported as a lock timeout. Acquiring a key already held by the
	// same request ID succeeds immediately.
	Acquire(ctx context.Context, key string, requestID uuid.UUID) error

	// Release frees the key if requestID holds it; otherwise it does
	// nothing.
	Release(key string, requestID uuid.UUID)
}

type lockEntry struct {
	owner    uuid.UUID
	released chan struct{}
}

type entityLock struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

// NewEntityLock creates an in-memory EntityLock.
func NewEntityLock() EntityLock {
	return &entityLock{locks: make(map[string]*lockEntry)}
}

var _ EntityLock = (*entityLock)(nil)

func (l *entityLock) Acquire(ctx context.Context, key string, requestID uuid.UUID) error {
	for {
		l.mu.Lock()
		entry, held := l.locks[key]
		if !held {
			l.locks[key] = &lockEntry{
				owner:    requestID,
				released: make(chan struct{}),
			}
			l.mu.Unlock()
			return nil
		}
		if entry.owner == requestID {
			l.mu.Unlock()
			return nil
		}
		released := entry.released
		l.mu.Unlock()

		select {
		case <-released:
			// Holder is gone; race the other waiters for the key.
		case <-ctx.Done():
			return apperrors.LockTimeout("request %s could not acquire %q: %v", requestID, key, ctx.Err())
		}
	}
}

func (l *entityLock) Release(key string, requestID uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, held := l.locks[key]
	if !held || entry.owner != requestID {
		return
	}
	delete(l.locks, key)
	close(entry.released)
}
