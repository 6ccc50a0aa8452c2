package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ontoforge/schema-engine/pkg/apperrors"
)

func TestEntityLockMutualExclusion(t *testing.T) {
	lock := NewEntityLock()
	ctx := context.Background()

	const workers = 8
	const iterations = 50

	var counter int
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				id := uuid.New()
				require.NoError(t, lock.Acquire(ctx, SchemaCacheLockKey, id))
				counter++
				lock.Release(SchemaCacheLockKey, id)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*iterations, counter)
}

func TestEntityLockReentrantForSameRequest(t *testing.T) {
	lock := NewEntityLock()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, lock.Acquire(ctx, SchemaCacheLockKey, id))
	require.NoError(t, lock.Acquire(ctx, SchemaCacheLockKey, id), "re-acquisition by the holder must succeed")
	lock.Release(SchemaCacheLockKey, id)
}

func TestEntityLockReleaseIsIdempotent(t *testing.T) {
	lock := NewEntityLock()
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, lock.Acquire(ctx, SchemaCacheLockKey, id))
	lock.Release(SchemaCacheLockKey, id)
	lock.Release(SchemaCacheLockKey, id)
	lock.Release(SchemaCacheLockKey, uuid.New())

	// The key must be free afterwards.
	other := uuid.New()
	require.NoError(t, lock.Acquire(ctx, SchemaCacheLockKey, other))
	lock.Release(SchemaCacheLockKey, other)
}

func TestEntityLockReleaseByNonOwnerIsIgnored(t *testing.T) {
	lock := NewEntityLock()
	ctx := context.Background()
	owner := uuid.New()

	require.NoError(t, lock.Acquire(ctx, SchemaCacheLockKey, owner))
	lock.Release(SchemaCacheLockKey, uuid.New())

	// Still held by the owner: a stranger times out.
	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := lock.Acquire(waitCtx, SchemaCacheLockKey, uuid.New())
	require.ErrorIs(t, err, apperrors.ErrLockTimeout)

	lock.Release(SchemaCacheLockKey, owner)
}

func TestEntityLockTimeout(t *testing.T) {
	lock := NewEntityLock()
	holder := uuid.New()
	require.NoError(t, lock.Acquire(context.Background(), SchemaCacheLockKey, holder))
	defer lock.Release(SchemaCacheLockKey, holder)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := lock.Acquire(ctx, SchemaCacheLockKey, uuid.New())
	require.ErrorIs(t, err, apperrors.ErrLockTimeout)
}

func TestEntityLockHandoffToWaiter(t *testing.T) {
	lock := NewEntityLock()
	holder := uuid.New()
	require.NoError(t, lock.Acquire(context.Background(), SchemaCacheLockKey, holder))

	acquired := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		waiter := uuid.New()
		err := lock.Acquire(ctx, SchemaCacheLockKey, waiter)
		if err == nil {
			lock.Release(SchemaCacheLockKey, waiter)
		}
		acquired <- err
	}()

	time.Sleep(10 * time.Millisecond)
	lock.Release(SchemaCacheLockKey, holder)
	require.NoError(t, <-acquired, "a waiter must acquire the lock once the holder releases it")
}

func TestEntityLockIndependentKeys(t *testing.T) {
	lock := NewEntityLock()
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, lock.Acquire(ctx, "key-a", a))
	require.NoError(t, lock.Acquire(ctx, "key-b", b), "locks on distinct keys must not contend")
	lock.Release("key-unknown", a) // no-op on a key never locked
	lock.Release("key-a", a)
	lock.Release("key-b", b)
}
