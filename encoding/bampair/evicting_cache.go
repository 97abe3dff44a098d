package bampair

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hts/sam"
)

// EvictingCache is a Cache that holds at most one record per bucket.
//
// A record whose bucket holds its mate is paired right away.  A record
// whose bucket holds some other read evicts that read to the overflow
// list, where it stays until Flush sorts the list by name and pairs
// adjacent mates.  Correctness does not depend on the hash function;
// a poor hash only sends more records to the overflow list.
//
// EvictingCache is thread-compatible.
type EvictingCache struct {
	fn   PairFunc
	hash HashFunc

	table    []*sam.Record // nil entries are empty buckets
	resident int           // number of non-nil entries in table
	overflow []*sam.Record

	growable      bool
	maxLoadFactor float64
	growthFactor  int

	flushed bool
	stats   Stats
}

// NewEvictingCache creates an EvictingCache.  opts.Kind is ignored.
func NewEvictingCache(opts Opts, fn PairFunc) (*EvictingCache, error) {
	if fn == nil {
		return nil, errors.E(errors.Invalid, "bampair: nil PairFunc")
	}
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	return &EvictingCache{
		fn:            fn,
		hash:          opts.Hash,
		table:         make([]*sam.Record, opts.Capacity),
		growable:      opts.Growable,
		maxLoadFactor: opts.MaxLoadFactor,
		growthFactor:  opts.GrowthFactor,
	}, nil
}

// Add implements Cache.
func (c *EvictingCache) Add(r *sam.Record) error {
	if c.flushed {
		return errAddAfterFlush(r)
	}
	c.insert(r, false)
	return nil
}

// insert places r in its bucket.  Internal inserts come from grow():
// they neither pair nor count towards AddCount and EvictionCount, skip
// the high-water marks, and never trigger another grow().
func (c *EvictingCache) insert(r *sam.Record, internal bool) {
	idx := bucketIndex(c.hash(r.Name), len(c.table))
	resident := c.table[idx]
	switch {
	case resident == nil:
		c.table[idx] = r
		c.resident++
	case !internal && resident.Name == r.Name:
		c.table[idx] = nil
		c.resident--
		c.fn(r, resident)
	default:
		c.overflow = append(c.overflow, resident)
		c.table[idx] = r
		if !internal {
			c.stats.EvictionCount++
		}
	}
	if internal {
		return
	}
	c.stats.AddCount++
	c.updateHighWaterMarks()
	if c.growable && float64(c.resident) > c.maxLoadFactor*float64(len(c.table)) {
		c.grow()
	}
}

func (c *EvictingCache) updateHighWaterMarks() {
	n := c.Len()
	if n > c.stats.MaxCacheSize {
		c.stats.MaxCacheSize = n
	}
	if n > 0 {
		if p := float64(len(c.overflow)) / float64(n); p > c.stats.MaxOverflowProportion {
			c.stats.MaxOverflowProportion = p
		}
	}
}

// grow multiplies the capacity by the growth factor and reinserts the
// residents.  Residents that clash in the new table join the overflow
// list.  The high-water marks only see the table once it is rebuilt.
func (c *EvictingCache) grow() {
	old := c.table
	c.table = make([]*sam.Record, len(old)*c.growthFactor)
	c.resident = 0
	for _, r := range old {
		if r != nil {
			c.insert(r, true)
		}
	}
	c.updateHighWaterMarks()
	if log.At(log.Debug) {
		log.Debug.Printf("bampair: grew bucket table %d -> %d, residents: %d, overflow: %d",
			len(old), len(c.table), c.resident, len(c.overflow))
	}
}

// Capacity returns the current number of buckets.
func (c *EvictingCache) Capacity() int { return len(c.table) }

// Len implements Cache.
func (c *EvictingCache) Len() int { return c.resident + len(c.overflow) }

// Empty implements Cache.
func (c *EvictingCache) Empty() bool { return c.Len() == 0 }

// Flush implements Cache.  It moves the residents to the overflow list,
// sorts the list by name, and pairs adjacent records with equal names.
// The bucket table is released.
func (c *EvictingCache) Flush() error {
	if c.flushed {
		return nil
	}
	c.flushed = true
	for i, r := range c.table {
		if r != nil {
			c.overflow = append(c.overflow, r)
			c.table[i] = nil
		}
	}
	c.resident = 0
	c.table = nil

	sortByName(c.overflow)
	// Orphans are compacted in place; the write index never passes the
	// read index.
	orphans := c.overflow[:0]
	for i := 0; i < len(c.overflow); {
		if i+1 < len(c.overflow) && c.overflow[i].Name == c.overflow[i+1].Name {
			c.fn(c.overflow[i], c.overflow[i+1])
			i += 2
			continue
		}
		orphans = append(orphans, c.overflow[i])
		i++
	}
	for i := len(orphans); i < len(c.overflow); i++ {
		c.overflow[i] = nil
	}
	c.overflow = orphans
	return nil
}

// MergeStats implements Cache.  Counts are summed, and high-water marks
// take the maximum of the two caches.
//
// MaxCacheSize could arguably be summed instead, when the caches were
// live at the same time.  The maximum is kept as the per-cache peak.
func (c *EvictingCache) MergeStats(other Cache) error {
	o, ok := other.(*EvictingCache)
	if !ok || o == nil {
		return errMergeType(c, other)
	}
	c.stats.AddCount += o.stats.AddCount
	c.stats.EvictionCount += o.stats.EvictionCount
	if o.stats.MaxCacheSize > c.stats.MaxCacheSize {
		c.stats.MaxCacheSize = o.stats.MaxCacheSize
	}
	if o.stats.MaxOverflowProportion > c.stats.MaxOverflowProportion {
		c.stats.MaxOverflowProportion = o.stats.MaxOverflowProportion
	}
	return nil
}

// LogStats implements Cache.
func (c *EvictingCache) LogStats(prefix string) {
	c.stats.log(prefix)
	log.Printf("%scapacity: %d, residents: %d, overflow: %d", prefix, len(c.table), c.resident, len(c.overflow))
}

// Stats implements Cache.
func (c *EvictingCache) Stats() Stats { return c.stats }

// Orphans implements Cache.
func (c *EvictingCache) Orphans() []*sam.Record {
	records := make([]*sam.Record, 0, c.Len())
	for _, r := range c.table {
		if r != nil {
			records = append(records, r)
		}
	}
	records = append(records, c.overflow...)
	sortByName(records)
	return records
}
