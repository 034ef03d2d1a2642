package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"libripal/internal/catalog/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "google_books:python:10", Key(models.SourceGoogleBooks, "Python", 10))
	assert.Equal(t, "open_library:python:5", Key(models.SourceOpenLibrary, "python", 5))
}

func TestMemory_GetPut(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(30 * time.Minute)

	_, ok := m.Get(ctx, "k")
	assert.False(t, ok)

	items := []models.Item{{Title: "Dune", Source: models.SourceOpenLibrary}}
	require.NoError(t, m.Put(ctx, "k", items))

	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, items, got)
}

func TestMemory_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	m := NewMemory(30*time.Minute, WithClock(clock))

	require.NoError(t, m.Put(ctx, "k", []models.Item{{Title: "Dune"}}))

	// Just inside the TTL
	now = now.Add(29 * time.Minute)
	_, ok := m.Get(ctx, "k")
	assert.True(t, ok)

	// Past the TTL the entry is gone and removed lazily
	now = now.Add(2 * time.Minute)
	_, ok = m.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_BoundedLRUEviction(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour, WithMaxEntries(2))

	require.NoError(t, m.Put(ctx, "a", []models.Item{{Title: "A"}}))
	require.NoError(t, m.Put(ctx, "b", []models.Item{{Title: "B"}}))

	// Touch "a" so "b" becomes least recently used
	_, ok := m.Get(ctx, "a")
	require.True(t, ok)

	require.NoError(t, m.Put(ctx, "c", []models.Item{{Title: "C"}}))

	_, ok = m.Get(ctx, "b")
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = m.Get(ctx, "a")
	assert.True(t, ok)
	_, ok = m.Get(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, m.Len())
}

func TestMemory_PutOverwrites(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour)

	require.NoError(t, m.Put(ctx, "k", []models.Item{{Title: "old"}}))
	require.NoError(t, m.Put(ctx, "k", []models.Item{{Title: "new"}}))

	got, ok := m.Get(ctx, "k")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].Title)
	assert.Equal(t, 1, m.Len())
}

func TestMemory_SizeNeverExceedsBound(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(time.Hour, WithMaxEntries(8))

	for i := range 100 {
		require.NoError(t, m.Put(ctx, fmt.Sprintf("key-%d", i), nil))
	}
	assert.Equal(t, 8, m.Len())
}
