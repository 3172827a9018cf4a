package dwings

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheLoadsOncePerPath(t *testing.T) {
	var loads int32
	cache := NewCache(func(path string) (Dataset, error) {
		atomic.AddInt32(&loads, 1)
		return Dataset{}, nil
	})

	_, err := cache.Snapshot("path-a")
	require.NoError(t, err)
	_, err = cache.Snapshot("path-a")
	require.NoError(t, err)

	assert.EqualValues(t, 1, loads)
}

func TestCacheCoalescesConcurrentLoads(t *testing.T) {
	var loads int32
	release := make(chan struct{})
	cache := NewCache(func(path string) (Dataset, error) {
		atomic.AddInt32(&loads, 1)
		<-release
		return Dataset{}, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = cache.Snapshot("shared")
		}()
	}
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, loads)
}

func TestCacheInvalidateTriggersReload(t *testing.T) {
	var loads int32
	cache := NewCache(func(path string) (Dataset, error) {
		atomic.AddInt32(&loads, 1)
		return Dataset{}, nil
	})

	snap1, err := cache.Snapshot("path-a")
	require.NoError(t, err)

	cache.Invalidate("path-a")

	snap2, err := cache.Snapshot("path-a")
	require.NoError(t, err)

	assert.EqualValues(t, 2, loads)
	assert.NotEqual(t, snap1.Generation(), snap2.Generation())
}

func TestCachePropagatesLoaderError(t *testing.T) {
	cache := NewCache(func(path string) (Dataset, error) {
		return Dataset{}, fmt.Errorf("boom")
	})

	_, err := cache.Snapshot("path-a")
	assert.Error(t, err)
}
