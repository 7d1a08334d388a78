package internal

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersionedLockInitialState(t *testing.T) {
	var lock VersionedLock

	locked, version, raw := lock.Sample()
	require.False(t, locked)
	require.Zero(t, version)
	require.Zero(t, raw)
}

func TestVersionedLockAcquireRelease(t *testing.T) {
	var lock VersionedLock

	require.NoError(t, lock.TryAcquire())
	locked, version, _ := lock.Sample()
	require.True(t, locked)
	require.Zero(t, version)

	require.Error(t, lock.TryAcquire())

	require.NoError(t, lock.Release())
	locked, version, _ = lock.Sample()
	require.False(t, locked)
	require.Zero(t, version)

	require.Error(t, lock.Release())
}

func TestVersionedLockVersionedRelease(t *testing.T) {
	var lock VersionedLock

	require.NoError(t, lock.TryAcquire())
	require.NoError(t, lock.VersionedRelease(42))

	locked, version, _ := lock.Sample()
	require.False(t, locked)
	require.EqualValues(t, 42, version)

	require.Error(t, lock.VersionedRelease(43))
}

func TestVersionedLockKeepsVersionAcrossAcquire(t *testing.T) {
	var lock VersionedLock

	require.NoError(t, lock.TryAcquire())
	require.NoError(t, lock.VersionedRelease(7))

	require.NoError(t, lock.TryAcquire())
	locked, version, _ := lock.Sample()
	require.True(t, locked)
	require.EqualValues(t, 7, version)

	require.NoError(t, lock.Release())
	locked, version, _ = lock.Sample()
	require.False(t, locked)
	require.EqualValues(t, 7, version)
}

func TestVersionedLockRejectsOversizedVersion(t *testing.T) {
	var lock VersionedLock

	require.NoError(t, lock.TryAcquire())
	require.Error(t, lock.VersionedRelease(1<<63))
}

func TestVersionedLockMutualExclusion(t *testing.T) {
	var lock VersionedLock
	var holders int32
	var violations int32

	const goroutines = 8
	const rounds = 1000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				lock.SpinAcquire()
				if atomic.AddInt32(&holders, 1) != 1 {
					atomic.AddInt32(&violations, 1)
				}
				atomic.AddInt32(&holders, -1)
				if err := lock.Release(); err != nil {
					atomic.AddInt32(&violations, 1)
				}
			}
		}()
	}
	wg.Wait()

	require.Zero(t, atomic.LoadInt32(&violations))
}
