// Package pairs builds the pairwise concatenations that the compression
// distance is measured on.
package pairs

import (
	"fmt"

	"github.com/kpaschen/seqcluster/lib/datatypes"
)

// Keys lists the canonical key of every pair i<j, in index order.
func Keys(items *datatypes.ItemSet) ([]datatypes.PairKey, error) {
	n := items.Len()
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 items for pairs, got %d: %w", n, datatypes.ErrInvalidInput)
	}
	ret := make([]datatypes.PairKey, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			ret = append(ret, datatypes.NewPairKey(items.At(i).ID, items.At(j).ID))
		}
	}
	return ret, nil
}

// Concat returns a fresh slice holding a followed by b.
func Concat(a []byte, b []byte) []byte {
	joined := make([]byte, 0, len(a)+len(b))
	joined = append(joined, a...)
	return append(joined, b...)
}

// BuildPairs concatenates the payloads of every pair i<j in the set's order.
// Identical payloads are not deduplicated; every pair gets its own slice.
func BuildPairs(items *datatypes.ItemSet) (map[datatypes.PairKey][]byte, error) {
	keys, err := Keys(items)
	if err != nil {
		return nil, err
	}
	ret := make(map[datatypes.PairKey][]byte, len(keys))
	for _, key := range keys {
		first := items.At(items.Index(key.First))
		second := items.At(items.Index(key.Second))
		ret[key] = Concat(first.Payload, second.Payload)
	}
	return ret, nil
}
