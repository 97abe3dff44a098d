package bampair

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// LockStats describes how a LockedCache's mutex was used.
type LockStats struct {
	// Acquisitions is the number of times the mutex was locked.
	Acquisitions int64
	// Wait is the total time spent waiting for the mutex.
	Wait time.Duration
	// MaxWait is the longest single wait.
	MaxWait time.Duration
}

func (s *LockStats) merge(o LockStats) {
	s.Acquisitions += o.Acquisitions
	s.Wait += o.Wait
	if o.MaxWait > s.MaxWait {
		s.MaxWait = o.MaxWait
	}
}

// timedMutex is a sync.Mutex that records how long Lock blocks.
type timedMutex struct {
	mu    sync.Mutex
	stats LockStats // guarded by mu
}

func (m *timedMutex) Lock() {
	t0 := time.Now()
	m.mu.Lock()
	wait := time.Since(t0)
	m.stats.Acquisitions++
	m.stats.Wait += wait
	if wait > m.stats.MaxWait {
		m.stats.MaxWait = wait
	}
}

func (m *timedMutex) Unlock() { m.mu.Unlock() }

// LockedCache makes a Cache safe for concurrent use.
//
// Every Cache method locks the mutex for the duration of the call.  To
// add many records under one critical section, call Lock, then AddLocked
// for each record, then Unlock.  The inner cache's PairFunc runs with
// the mutex held and stalls all other callers while it runs.
type LockedCache struct {
	mu    timedMutex
	cache Cache
	// seq orders lock acquisition when two LockedCaches are locked
	// together.
	seq uint64
}

var lockedCacheSeq uint64

// NewLockedCache wraps cache.  The caller must not use cache directly
// afterwards.
func NewLockedCache(cache Cache) *LockedCache {
	return &LockedCache{cache: cache, seq: atomic.AddUint64(&lockedCacheSeq, 1)}
}

// Lock acquires the mutex for a batch of AddLocked calls.
func (c *LockedCache) Lock() { c.mu.Lock() }

// Unlock releases the mutex acquired by Lock.
func (c *LockedCache) Unlock() { c.mu.Unlock() }

// AddLocked adds r to the inner cache.
//
// REQUIRES: the caller holds the lock.
func (c *LockedCache) AddLocked(r *sam.Record) error {
	return c.cache.Add(r)
}

// Add implements Cache.
func (c *LockedCache) Add(r *sam.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Add(r)
}

// Len implements Cache.
func (c *LockedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Len()
}

// Empty implements Cache.
func (c *LockedCache) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Empty()
}

// Flush implements Cache.
func (c *LockedCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Flush()
}

// MergeStats implements Cache.  other must be a LockedCache around a
// cache of the same type as c's.  The inner cache stats and the lock
// stats are both merged.
//
// MergeStats locks both caches, always in the order they were created,
// so concurrent merges in opposite directions cannot deadlock.
func (c *LockedCache) MergeStats(other Cache) error {
	o, ok := other.(*LockedCache)
	if !ok || o == nil || o == c {
		return errMergeType(c, other)
	}
	first, second := c, o
	if o.seq < c.seq {
		first, second = o, c
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()
	if err := c.cache.MergeStats(o.cache); err != nil {
		return errMergeType(c, other)
	}
	c.mu.stats.merge(o.mu.stats)
	return nil
}

// LogStats implements Cache.
func (c *LockedCache) LogStats(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.LogStats(prefix)
	s := c.mu.stats
	var avg time.Duration
	if s.Acquisitions > 0 {
		avg = s.Wait / time.Duration(s.Acquisitions)
	}
	log.Printf("%slock acquisitions: %d, total wait: %v, avg wait: %v, max wait: %v",
		prefix, s.Acquisitions, s.Wait, avg, s.MaxWait)
}

// Stats implements Cache.
func (c *LockedCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Stats()
}

// Orphans implements Cache.
func (c *LockedCache) Orphans() []*sam.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.Orphans()
}

// LockStats returns a snapshot of the mutex counters.  The snapshot
// includes the acquisition made to take it.
func (c *LockedCache) LockStats() LockStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mu.stats
}
