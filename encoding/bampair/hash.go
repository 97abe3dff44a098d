package bampair

import (
	"strings"

	"blainsmith.com/go/seahash"
	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/unsafe"
	"github.com/minio/highwayhash"
)

// HashFunc maps a read name to a bucket hash.  The result may be
// negative.
type HashFunc func(name string) int64

// SeaHash is the default HashFunc.
func SeaHash(name string) int64 {
	return int64(seahash.Sum64(unsafe.StringToBytes(name)))
}

// FarmHash hashes name with farmhash.
func FarmHash(name string) int64 {
	return int64(farm.Hash64(unsafe.StringToBytes(name)))
}

var highwayKey [highwayhash.Size]byte

// HighwayHash hashes name with highwayhash under an all-zero key.
func HighwayHash(name string) int64 {
	return int64(highwayhash.Sum64(unsafe.StringToBytes(name), highwayKey[:]))
}

// HashByName returns the HashFunc registered under the given name:
// "seahash", "farm" or "highway".  The empty string selects SeaHash.
func HashByName(name string) (HashFunc, error) {
	switch strings.ToLower(name) {
	case "", "seahash":
		return SeaHash, nil
	case "farm", "farmhash":
		return FarmHash, nil
	case "highway", "highwayhash":
		return HighwayHash, nil
	}
	return nil, errors.E(errors.Invalid, "bampair: unknown hash function", name)
}

// bucketIndex maps h to [0, n).  Negative hashes wrap around instead of
// producing a negative index.
func bucketIndex(h int64, n int) int {
	idx := int(h % int64(n))
	if idx < 0 {
		idx += n
	}
	return idx
}
