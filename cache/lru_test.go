package cache

import (
	"bytes"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buf(n int) []byte {
	return bytes.Repeat([]byte{0x5A}, n)
}

// --- Cost tests ---

func TestCost(t *testing.T) {
	assert.Equal(t, int64(1), Cost(nil))
	assert.Equal(t, int64(1), Cost([]byte{}))
	assert.Equal(t, int64(10), Cost(buf(10)))
}

// --- Basic operations ---

func TestNew_DefaultCapacity(t *testing.T) {
	c := New[int64](0)
	assert.Equal(t, DefaultCapacity, c.Capacity())
}

func TestPutGet(t *testing.T) {
	c := New[int64](100)
	c.Put(1, []byte("hello"))

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(5), c.Size())

	_, ok = c.Get(2)
	assert.False(t, ok)
}

func TestPut_ReplacesEntry(t *testing.T) {
	c := New[int64](100)
	c.Put(1, buf(40))
	c.Put(1, buf(10))

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Len(t, got, 10)
	assert.Equal(t, int64(10), c.Size())
	assert.Equal(t, 1, c.Len())
}

func TestPut_EmptyBufferCostsOne(t *testing.T) {
	c := New[int64](100)
	c.Put(1, []byte{})

	got, ok := c.Get(1)
	require.True(t, ok)
	assert.Empty(t, got)
	assert.Equal(t, int64(1), c.Size())
}

func TestInvalidate(t *testing.T) {
	c := New[int64](100)
	c.Put(1, buf(10))

	assert.True(t, c.Invalidate(1))
	assert.False(t, c.Contains(1))
	assert.Equal(t, int64(0), c.Size())

	assert.False(t, c.Invalidate(1), "invalidating a missing key is a no-op")
}

func TestClear(t *testing.T) {
	c := New[int64](100)
	c.Put(1, buf(10))
	c.Put(2, buf(10))
	c.Clear()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Size())
	_, ok := c.Get(1)
	assert.False(t, ok)
}

// --- Eviction tests ---

func TestEviction_LeastRecentlyUsedFirst(t *testing.T) {
	c := New[int64](30)
	c.Put(1, buf(10))
	c.Put(2, buf(10))
	c.Put(3, buf(10))

	// Touch 1 so 2 becomes the oldest.
	_, ok := c.Get(1)
	require.True(t, ok)

	c.Put(4, buf(10))

	assert.True(t, c.Contains(1))
	assert.False(t, c.Contains(2))
	assert.True(t, c.Contains(3))
	assert.True(t, c.Contains(4))
	assert.Equal(t, int64(30), c.Size())
}

func TestEviction_ContainsDoesNotRefresh(t *testing.T) {
	c := New[int64](20)
	c.Put(1, buf(10))
	c.Put(2, buf(10))

	assert.True(t, c.Contains(1))
	c.Put(3, buf(10))

	assert.False(t, c.Contains(1))
	assert.True(t, c.Contains(2))
}

func TestEviction_PutRefreshesRecency(t *testing.T) {
	c := New[int64](20)
	c.Put(1, buf(10))
	c.Put(2, buf(10))
	c.Put(1, buf(10))
	c.Put(3, buf(10))

	assert.True(t, c.Contains(1))
	assert.False(t, c.Contains(2))
}

func TestEviction_EvictsAsManyAsNeeded(t *testing.T) {
	c := New[int64](30)
	c.Put(1, buf(10))
	c.Put(2, buf(10))
	c.Put(3, buf(10))

	c.Put(4, buf(25))

	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Contains(4))
	assert.Equal(t, int64(25), c.Size())
}

func TestEviction_OversizeEntryBecomesSoleOccupant(t *testing.T) {
	c := New[int64](30)
	c.Put(1, buf(10))
	c.Put(2, buf(10))

	c.Put(3, buf(100))

	assert.Equal(t, 1, c.Len())
	got, ok := c.Get(3)
	require.True(t, ok)
	assert.Len(t, got, 100)

	// The next insert pushes the oversize entry out.
	c.Put(4, buf(5))
	assert.False(t, c.Contains(3))
	assert.True(t, c.Contains(4))
}

func TestEviction_OnEvict(t *testing.T) {
	var evicted []int64
	c := New[int64](20)
	c.OnEvict = func(key int64, cost int64) {
		evicted = append(evicted, key)
	}

	c.Put(1, buf(10))
	c.Put(2, buf(10))
	c.Put(3, buf(10))
	c.Invalidate(3)

	assert.Equal(t, []int64{1}, evicted, "invalidation is not eviction")
}

func TestEviction_BoundHoldsUnderRandomPuts(t *testing.T) {
	const capacity = 1000
	c := New[int](capacity)
	r := rand.New(rand.NewSource(1))

	for i := 0; i < 2000; i++ {
		c.Put(r.Intn(50), buf(r.Intn(capacity)))
		assert.LessOrEqual(t, c.Size(), int64(capacity))
	}
}

// --- Concurrency ---

func TestConcurrentAccess(t *testing.T) {
	c := New[string](500)
	const goroutines = 16

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				key := fmt.Sprintf("k%d", (g+i)%20)
				c.Put(key, buf(i%40))
				c.Get(key)
				if i%7 == 0 {
					c.Invalidate(key)
				}
			}
		}(g)
	}
	wg.Wait()

	assert.LessOrEqual(t, c.Size(), int64(500))
}
