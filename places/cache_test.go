package places

import (
	"net/url"
	"testing"
	"time"

	"github.com/poiesic/placefinder/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey_Canonical(t *testing.T) {
	a := url.Values{"radius": {"100"}, "location": {"1,2"}}
	b := url.Values{"location": {"1,2"}, "radius": {"100"}}

	assert.Equal(t, CacheKey(EndpointNearbySearch, a), CacheKey(EndpointNearbySearch, b))
	assert.NotEqual(t, CacheKey(EndpointNearbySearch, a), CacheKey(EndpointTextSearch, a))
}

func TestCache_GetSet(t *testing.T) {
	cache, err := NewCache(time.Minute, 0)
	require.NoError(t, err)
	defer cache.Close()

	_, ok := cache.Get("missing")
	assert.False(t, ok)

	stored := []core.ExternalCandidate{{ExternalId: "p1", Name: "One"}}
	cache.Set("k", stored)

	got, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, stored, got)

	// Callers get their own slice.
	got[0].Name = "mutated"
	again, ok := cache.Get("k")
	require.True(t, ok)
	assert.Equal(t, "One", again[0].Name)
}

func TestCache_EmptyResultIsCached(t *testing.T) {
	cache, err := NewCache(time.Minute, 0)
	require.NoError(t, err)
	defer cache.Close()

	cache.Set("empty", []core.ExternalCandidate{})
	got, ok := cache.Get("empty")
	assert.True(t, ok)
	assert.Empty(t, got)
}

func TestCache_TTL(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	cache, err := NewCache(5*time.Minute, 0, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	defer cache.Close()

	cache.Set("k", []core.ExternalCandidate{{ExternalId: "p1"}})

	now = now.Add(5*time.Minute - time.Nanosecond)
	_, ok := cache.Get("k")
	assert.True(t, ok)

	now = now.Add(time.Nanosecond)
	_, ok = cache.Get("k")
	assert.False(t, ok, "entry is invalid once its age reaches the TTL")
}

func TestCache_Clear(t *testing.T) {
	cache, err := NewCache(time.Minute, 0)
	require.NoError(t, err)
	defer cache.Close()

	cache.Set("k", []core.ExternalCandidate{{ExternalId: "p1"}})
	cache.Clear()
	_, ok := cache.Get("k")
	assert.False(t, ok)
}
