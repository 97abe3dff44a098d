package bampair

import (
	"fmt"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
)

// PairFunc receives two records that share a read name.  It is called
// synchronously from Cache.Add and Cache.Flush, and must not call back
// into the cache that invoked it.
type PairFunc func(a, b *sam.Record)

// Cache pairs up records by read name.
//
// The expected call sequence is any number of Add calls followed by a
// single Flush.  Add returns an error once Flush has been called.
type Cache interface {
	// Add inserts r.  If the cache holds r's mate, Add may remove it
	// and invoke the PairFunc with (r, mate).
	Add(r *sam.Record) error
	// Len returns the number of records currently held, not counting
	// records that were already passed to the PairFunc.
	Len() int
	// Empty is equivalent to Len() == 0.
	Empty() bool
	// Flush pairs every remaining record whose mate is also in the
	// cache.  After Flush, Len() is the number of orphans.  Calling
	// Flush again is a no-op.
	Flush() error
	// MergeStats folds the counters of other into this cache.  other
	// must have the same concrete type as the receiver.  Only the
	// counters are merged; records held by other are left in place.
	MergeStats(other Cache) error
	// LogStats writes the counters to the info log.  Each line is
	// prefixed by prefix.
	LogStats(prefix string)
	// Stats returns a snapshot of the counters.
	Stats() Stats
	// Orphans returns the records currently held, sorted by name.  The
	// result is only final after Flush.
	Orphans() []*sam.Record
}

// Kind selects a Cache implementation.
type Kind int

const (
	// Evicting selects EvictingCache.
	Evicting Kind = iota
	// Exact selects ExactCache.
	Exact
)

func (k Kind) String() string {
	switch k {
	case Evicting:
		return "evicting"
	case Exact:
		return "exact"
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "evicting":
		return Evicting, nil
	case "exact":
		return Exact, nil
	}
	return 0, errors.E(errors.Invalid, "bampair: unknown cache kind", s)
}

// NewCache creates a Cache of the kind given in opts.  Unset fields of
// opts take their default values.
func NewCache(opts Opts, fn PairFunc) (Cache, error) {
	switch opts.Kind {
	case Evicting:
		c, err := NewEvictingCache(opts, fn)
		if err != nil {
			return nil, err
		}
		return c, nil
	case Exact:
		c, err := NewExactCache(fn)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, errors.E(errors.Invalid, fmt.Sprintf("bampair: unknown cache kind %d", int(opts.Kind)))
}

func errMergeType(dst, src Cache) error {
	return errors.E(errors.Invalid, "bampair: cannot merge stats of", typeName(src), "into", typeName(dst))
}

func errAddAfterFlush(r *sam.Record) error {
	return errors.E(errors.Precondition, "bampair: Add called after Flush, read:", r.Name)
}

func typeName(c Cache) string {
	switch c := c.(type) {
	case *EvictingCache:
		return "EvictingCache"
	case *ExactCache:
		return "ExactCache"
	case *LockedCache:
		if c == nil {
			return "LockedCache"
		}
		return "LockedCache(" + typeName(c.cache) + ")"
	case nil:
		return "nil"
	}
	return "unknown"
}

// sortByName sorts records by read name.  The order among records with
// equal names is unspecified.
func sortByName(records []*sam.Record) {
	sort.Slice(records, func(i, j int) bool {
		return records[i].Name < records[j].Name
	})
}
