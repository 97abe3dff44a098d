package bampair

import (
	"fmt"

	"github.com/grailbio/base/log"
)

// Stats is a set of counters maintained by a Cache.  The counters only
// ever grow.
type Stats struct {
	// AddCount is the number of calls to Add.  Records moved while the
	// bucket table grows are not counted.
	AddCount int64
	// EvictionCount is the number of Add calls that moved a resident
	// record to the overflow list.  Always zero for ExactCache.
	EvictionCount int64
	// MaxCacheSize is the high-water mark of Len().
	MaxCacheSize int
	// MaxOverflowProportion is the high-water mark of (overflow list
	// length) / Len().  Always zero for ExactCache.
	MaxOverflowProportion float64
}

// EvictionRate returns EvictionCount/AddCount as a percentage, or "n/a"
// if nothing was added.
func (s Stats) EvictionRate() string {
	if s.AddCount == 0 {
		return "n/a"
	}
	return fmt.Sprintf("%.4f%%", 100*float64(s.EvictionCount)/float64(s.AddCount))
}

func (s Stats) log(prefix string) {
	log.Printf("%smax cache size: %d", prefix, s.MaxCacheSize)
	log.Printf("%smax overflow proportion: %.4f", prefix, s.MaxOverflowProportion)
	log.Printf("%sadds: %d, evictions: %d, eviction rate: %s",
		prefix, s.AddCount, s.EvictionCount, s.EvictionRate())
}
