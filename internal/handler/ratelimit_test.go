package handler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLimiterStore(t *testing.T) {
	store := newLimiterStore(2)
	now := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

	assert.True(t, store.allow("a", now))
	assert.True(t, store.allow("a", now))
	assert.False(t, store.allow("a", now))
	assert.True(t, store.allow("b", now), "keys are limited independently")

	// One token refills every 30s.
	assert.True(t, store.allow("a", now.Add(31*time.Second)))
}

func TestLimiterStoreSweepsIdleEntries(t *testing.T) {
	store := newLimiterStore(2)
	now := time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC)

	store.allow("a", now)
	store.allow("b", now.Add(limiterIdleTTL+2*time.Minute))

	assert.NotContains(t, store.entries, "a")
	assert.Contains(t, store.entries, "b")
}
