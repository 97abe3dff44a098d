package bampair

import (
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExactCache(t *testing.T) {
	p := &pairRecorder{}
	c, err := NewExactCache(p.add)
	require.NoError(t, err)

	for _, name := range []string{"A", "B", "C", "B", "D", "A"} {
		assert.NoError(t, c.Add(newRead(name)))
	}
	// Every pair is emitted as soon as the second mate arrives.
	assert.Equal(t, []string{"A", "B"}, p.names())
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, Stats{AddCount: 6, MaxCacheSize: 3}, c.Stats())

	assert.NoError(t, c.Flush())
	assert.Equal(t, []string{"A", "B"}, p.names())
	assert.Equal(t, []string{"C", "D"}, orphanNames(c))
	assert.False(t, c.Empty())
}

func TestExactCacheEmpty(t *testing.T) {
	c, err := NewExactCache((&pairRecorder{}).add)
	require.NoError(t, err)
	assert.True(t, c.Empty())
	assert.NoError(t, c.Flush())
	assert.True(t, c.Empty())
	assert.Equal(t, "n/a", c.Stats().EvictionRate())
	c.LogStats("")
}

func TestExactCacheMergeStats(t *testing.T) {
	p := &pairRecorder{}
	a, err := NewExactCache(p.add)
	require.NoError(t, err)
	b, err := NewExactCache(p.add)
	require.NoError(t, err)
	for _, name := range []string{"A", "B", "A"} {
		assert.NoError(t, a.Add(newRead(name)))
	}
	for _, name := range []string{"C", "D", "E"} {
		assert.NoError(t, b.Add(newRead(name)))
	}
	require.NoError(t, a.MergeStats(b))
	// MaxCacheSize is summed for exact caches: 2 + 3.
	assert.Equal(t, Stats{AddCount: 6, MaxCacheSize: 5}, a.Stats())
	assert.Equal(t, 1, a.Len())

	ev, err := NewEvictingCache(fixedOpts(1, nil), p.add)
	require.NoError(t, err)
	assert.True(t, errors.Is(errors.Invalid, a.MergeStats(ev)))
	assert.Equal(t, Stats{AddCount: 6, MaxCacheSize: 5}, a.Stats())
}
