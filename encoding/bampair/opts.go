package bampair

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

const (
	// DefaultCapacity is the initial number of buckets of an
	// EvictingCache.
	DefaultCapacity = 1 << 20
	// DefaultMaxLoadFactor is the resident/capacity ratio above which a
	// growable EvictingCache grows.
	DefaultMaxLoadFactor = 0.25
	// DefaultGrowthFactor is the factor by which a growable
	// EvictingCache multiplies its capacity.
	DefaultGrowthFactor = 2
)

// Opts configures NewCache.  Zero-valued numeric fields and a nil Hash
// take their defaults.  Fields other than Kind are ignored for Exact
// caches.
type Opts struct {
	// Kind selects the implementation.
	Kind Kind
	// Capacity is the initial size of the bucket table.
	Capacity int
	// Growable lets the bucket table grow once the load factor exceeds
	// MaxLoadFactor.  A table that cannot grow still pairs every mate,
	// but more of them wait for Flush.
	Growable bool
	// MaxLoadFactor is the growth threshold, in (0, 1].
	MaxLoadFactor float64
	// GrowthFactor is the capacity multiplier applied on growth.  Must
	// be at least 2.
	GrowthFactor int
	// Hash maps read names to buckets.
	Hash HashFunc
}

// DefaultOpts is a growable EvictingCache with default parameters.
var DefaultOpts = Opts{
	Kind:          Evicting,
	Capacity:      DefaultCapacity,
	Growable:      true,
	MaxLoadFactor: DefaultMaxLoadFactor,
	GrowthFactor:  DefaultGrowthFactor,
	Hash:          SeaHash,
}

// withDefaults fills in unset fields and validates the result.
func (o Opts) withDefaults() (Opts, error) {
	if o.Capacity == 0 {
		o.Capacity = DefaultCapacity
	}
	if o.MaxLoadFactor == 0 {
		o.MaxLoadFactor = DefaultMaxLoadFactor
	}
	if o.GrowthFactor == 0 {
		o.GrowthFactor = DefaultGrowthFactor
	}
	if o.Hash == nil {
		o.Hash = SeaHash
	}
	if o.Capacity < 1 {
		return o, errors.E(errors.Invalid, fmt.Sprintf("bampair: capacity must be positive, found %d", o.Capacity))
	}
	if o.MaxLoadFactor <= 0 || o.MaxLoadFactor > 1 {
		return o, errors.E(errors.Invalid, fmt.Sprintf("bampair: max load factor must be in (0, 1], found %v", o.MaxLoadFactor))
	}
	if o.GrowthFactor < 2 {
		return o, errors.E(errors.Invalid, fmt.Sprintf("bampair: growth factor must be at least 2, found %d", o.GrowthFactor))
	}
	return o, nil
}
