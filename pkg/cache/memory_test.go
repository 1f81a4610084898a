package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetSet(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	_, ok, err := m.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	val, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v"), val)
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 50*time.Millisecond))

	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(100 * time.Millisecond)

	_, ok, err = m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry must be a miss after its ttl elapses")
}

func TestMemoryOverwriteResetsTTL(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("old"), 50*time.Millisecond))
	require.NoError(t, m.Set(ctx, "k", []byte("new"), time.Minute))

	time.Sleep(100 * time.Millisecond)

	val, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("new"), val)
}

func TestMemoryDel(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 0))
	require.NoError(t, m.Del(ctx, "k"))
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, m.Del(ctx, "never-existed"))
}

func TestMemoryClearAndCount(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "rag:a", []byte("1"), 0))
	require.NoError(t, m.Set(ctx, "rag:b", []byte("2"), 0))
	require.NoError(t, m.Set(ctx, "emb:c", []byte("3"), 0))

	n, err := m.Count(ctx, "rag:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	removed, err := m.Clear(ctx, "rag:")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err = m.Count(ctx, "rag:")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, ok, err := m.Get(ctx, "emb:c")
	require.NoError(t, err)
	assert.True(t, ok, "other prefixes must survive a clear")
}

func TestMemoryValueIsolation(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	src := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", src, 0))
	src[0] = 'x'

	val, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("abc"), val)

	val[0] = 'y'
	val2, _, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), val2)
}

func TestMemoryClosed(t *testing.T) {
	m := NewMemory(0)
	require.NoError(t, m.Close())
	ctx := context.Background()

	_, _, err := m.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, m.Set(ctx, "k", nil, 0), ErrClosed)
	assert.NoError(t, m.Close(), "double close is a no-op")
}

func TestMemorySweep(t *testing.T) {
	m := NewMemory(10 * time.Millisecond)
	defer m.Close()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "k", []byte("v"), 20*time.Millisecond))
	time.Sleep(80 * time.Millisecond)

	m.mu.RLock()
	_, present := m.entries["k"]
	m.mu.RUnlock()
	assert.False(t, present, "sweep should reclaim expired entries without a Get")
}
