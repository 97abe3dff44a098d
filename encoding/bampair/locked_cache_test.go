package bampair

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockedCacheConcurrent(t *testing.T) {
	const (
		workers   = 8
		perWorker = 500
	)
	for _, opts := range []Opts{
		fixedOpts(1, nil),
		{Capacity: 4, Growable: true},
		{Kind: Exact},
	} {
		// The PairFunc runs with the lock held, so p needs no extra
		// synchronization.
		p := &pairRecorder{}
		inner, err := NewCache(opts, p.add)
		require.NoError(t, err)
		c := NewLockedCache(inner)

		// Worker w holds R1 of pairs [w*perWorker, (w+1)*perWorker) and
		// R2 of the pairs of worker w+1, so most mates are added by
		// different goroutines.
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(w int) {
				defer wg.Done()
				next := (w + 1) % workers
				batch := make([]*sam.Record, 0, 2*perWorker)
				for i := 0; i < perWorker; i++ {
					batch = append(batch,
						newRead(fmt.Sprintf("r%d", w*perWorker+i)),
						newRead(fmt.Sprintf("r%d", next*perWorker+i)))
				}
				// Half of the records go in one batch, the rest one call
				// at a time.
				c.Lock()
				for _, r := range batch[:perWorker] {
					assert.NoError(t, c.AddLocked(r))
				}
				c.Unlock()
				for _, r := range batch[perWorker:] {
					assert.NoError(t, c.Add(r))
				}
			}(w)
		}
		wg.Wait()
		require.NoError(t, c.Flush())

		assert.Len(t, p.pairs, workers*perWorker, "opts %+v", opts)
		assert.True(t, c.Empty())
		assert.Equal(t, int64(2*workers*perWorker), c.Stats().AddCount)
		// One Lock per batch, one per single Add, then Flush, Empty,
		// Stats and LockStats itself.
		ls := c.LockStats()
		assert.Equal(t, int64(workers+workers*perWorker+4), ls.Acquisitions)
		assert.True(t, ls.MaxWait <= ls.Wait)
	}
}

func TestLockedCacheDelegates(t *testing.T) {
	p := &pairRecorder{}
	inner, err := NewEvictingCache(fixedOpts(1, nil), p.add)
	require.NoError(t, err)
	c := NewLockedCache(inner)
	assert.True(t, c.Empty())
	for _, name := range []string{"A", "B", "A"} {
		assert.NoError(t, c.Add(newRead(name)))
	}
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, inner.Stats(), c.Stats())
	assert.NoError(t, c.Flush())
	assert.Equal(t, []string{"A"}, p.names())
	assert.Equal(t, []string{"B"}, orphanNames(c))
	assert.True(t, errors.Is(errors.Precondition, c.Add(newRead("C"))))
	c.LogStats("locked: ")
}

func TestLockedCacheMergeStats(t *testing.T) {
	p := &pairRecorder{}
	newLocked := func(kind Kind) *LockedCache {
		inner, err := NewCache(Opts{Kind: kind, Capacity: 1}, p.add)
		require.NoError(t, err)
		return NewLockedCache(inner)
	}
	a, b := newLocked(Evicting), newLocked(Evicting)
	for _, name := range []string{"A", "B"} {
		assert.NoError(t, a.Add(newRead(name)))
	}
	for _, name := range []string{"C", "D", "E"} {
		assert.NoError(t, b.Add(newRead(name)))
	}
	require.NoError(t, a.MergeStats(b))
	s := a.Stats()
	assert.Equal(t, int64(5), s.AddCount)
	assert.Equal(t, int64(3), s.EvictionCount)
	assert.Equal(t, 3, s.MaxCacheSize)
	// a: 2 adds, MergeStats, Stats and LockStats.  b: 3 adds and
	// MergeStats.
	assert.Equal(t, int64(9), a.LockStats().Acquisitions)

	exact := newLocked(Exact)
	for _, other := range []Cache{exact, a, exact.cache, nil} {
		before := a.Stats()
		err := a.MergeStats(other)
		assert.True(t, errors.Is(errors.Invalid, err), "%v", err)
		assert.Equal(t, before, a.Stats())
	}
}

func TestLockedCacheMergeStatsBothWays(t *testing.T) {
	p := &pairRecorder{}
	newLocked := func() *LockedCache {
		inner, err := NewCache(Opts{Kind: Exact}, p.add)
		require.NoError(t, err)
		return NewLockedCache(inner)
	}
	a, b := newLocked(), newLocked()
	assert.NoError(t, a.Add(newRead("A")))
	assert.NoError(t, b.Add(newRead("B")))

	// The summed counters grow quickly, so only completion is checked.
	const rounds = 1000
	done := make(chan struct{})
	go func() {
		defer close(done)
		var wg sync.WaitGroup
		for _, pair := range [][2]*LockedCache{{a, b}, {b, a}} {
			dst, src := pair[0], pair[1]
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < rounds; i++ {
					assert.NoError(t, dst.MergeStats(src))
				}
			}()
		}
		wg.Wait()
	}()
	select {
	case <-done:
	case <-time.After(time.Minute):
		t.Fatal("merging two caches into each other deadlocked")
	}
}
