package bampair

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// ExactCache is a Cache that keeps every unmatched record in a map, so
// each pair is emitted as soon as its second mate is added.  Memory
// grows with the number of reads waiting for their mate.
//
// ExactCache is thread-compatible.
type ExactCache struct {
	fn      PairFunc
	mates   map[string]*sam.Record
	flushed bool
	stats   Stats
}

// NewExactCache creates an empty ExactCache.
func NewExactCache(fn PairFunc) (*ExactCache, error) {
	if fn == nil {
		return nil, errors.E(errors.Invalid, "bampair: nil PairFunc")
	}
	return &ExactCache{
		fn:    fn,
		mates: make(map[string]*sam.Record),
	}, nil
}

// Add implements Cache.
func (c *ExactCache) Add(r *sam.Record) error {
	if c.flushed {
		return errAddAfterFlush(r)
	}
	c.stats.AddCount++
	if mate, ok := c.mates[r.Name]; ok {
		delete(c.mates, r.Name)
		c.fn(r, mate)
		return nil
	}
	c.mates[r.Name] = r
	if n := len(c.mates); n > c.stats.MaxCacheSize {
		c.stats.MaxCacheSize = n
	}
	return nil
}

// Len implements Cache.
func (c *ExactCache) Len() int { return len(c.mates) }

// Empty implements Cache.
func (c *ExactCache) Empty() bool { return len(c.mates) == 0 }

// Flush implements Cache.  Nothing is ever evicted, so whatever is left
// in the map is already an orphan; Flush only rejects further adds.
func (c *ExactCache) Flush() error {
	c.flushed = true
	return nil
}

// MergeStats implements Cache.
//
// Unlike EvictingCache, MaxCacheSize is summed: the result is the peak
// memory the caches would use if they were all live at once.  This
// overestimates the true combined peak when the caches peaked at
// different times.
func (c *ExactCache) MergeStats(other Cache) error {
	o, ok := other.(*ExactCache)
	if !ok || o == nil {
		return errMergeType(c, other)
	}
	c.stats.AddCount += o.stats.AddCount
	c.stats.MaxCacheSize += o.stats.MaxCacheSize
	return nil
}

// LogStats implements Cache.
func (c *ExactCache) LogStats(prefix string) {
	c.stats.log(prefix)
}

// Stats implements Cache.
func (c *ExactCache) Stats() Stats { return c.stats }

// Orphans implements Cache.
func (c *ExactCache) Orphans() []*sam.Record {
	records := make([]*sam.Record, 0, len(c.mates))
	for _, r := range c.mates {
		records = append(records, r)
	}
	sortByName(records)
	return records
}
