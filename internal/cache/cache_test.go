package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridwatch/psefetch/internal/models"
)

func result(records int, partial bool) models.FetchResult {
	return models.FetchResult{
		Records: make([]models.Record, records),
		Partial: partial,
	}
}

func TestCacheHitAndMiss(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("q1", result(3, false))
	got, ok := c.Get("q1")
	require.True(t, ok)
	assert.Len(t, got.Records, 3)
}

func TestCacheNeverStoresPartialResults(t *testing.T) {
	c, err := New(4)
	require.NoError(t, err)

	c.Put("q1", result(3, true))
	_, ok := c.Get("q1")
	assert.False(t, ok, "a partial result must be refetched, not served from cache")
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c, err := New(2)
	require.NoError(t, err)

	c.Put("q1", result(1, false))
	c.Put("q2", result(2, false))
	c.Put("q3", result(3, false))

	_, ok := c.Get("q1")
	assert.False(t, ok, "oldest entry should have been evicted")
	_, ok = c.Get("q3")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}
