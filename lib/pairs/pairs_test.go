package pairs

import (
	"bytes"
	"testing"

	"github.com/kpaschen/seqcluster/lib/datatypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func itemSet(t *testing.T, items ...datatypes.Item) *datatypes.ItemSet {
	t.Helper()
	set, err := datatypes.NewItemSet(items)
	require.NoError(t, err)
	return set
}

func TestBuildPairsUsesIndexOrder(t *testing.T) {
	set := itemSet(t,
		datatypes.Item{ID: "C", Payload: []byte("TTTT")},
		datatypes.Item{ID: "A", Payload: []byte("AAAA")},
		datatypes.Item{ID: "B", Payload: []byte("AAAA")},
	)

	joined, err := BuildPairs(set)
	require.NoError(t, err)
	require.Len(t, joined, 3)

	assert.Equal(t, []byte("AAAAAAAA"), joined[datatypes.NewPairKey("A", "B")])
	assert.Equal(t, []byte("AAAATTTT"), joined[datatypes.NewPairKey("A", "C")])
	assert.Equal(t, []byte("AAAATTTT"), joined[datatypes.NewPairKey("B", "C")])
	_, reversed := joined[datatypes.NewPairKey("C", "A")]
	assert.False(t, reversed)
}

func TestBuildPairsIsDeterministic(t *testing.T) {
	set := itemSet(t,
		datatypes.Item{ID: "x", Payload: []byte("ACGTACGT")},
		datatypes.Item{ID: "y", Payload: []byte("GGGCCC")},
		datatypes.Item{ID: "z", Payload: []byte("ACGTACGT")},
		datatypes.Item{ID: "w", Payload: []byte("")},
	)
	first, err := BuildPairs(set)
	require.NoError(t, err)
	second, err := BuildPairs(set)
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for key, payload := range first {
		assert.True(t, bytes.Equal(payload, second[key]), "pair %v differs between runs", key)
	}
}

func TestBuildPairsDoesNotAliasPayloads(t *testing.T) {
	a := []byte("AC")
	b := []byte("GT")
	set := itemSet(t,
		datatypes.Item{ID: "a", Payload: a},
		datatypes.Item{ID: "b", Payload: b},
	)
	joined, err := BuildPairs(set)
	require.NoError(t, err)

	joined[datatypes.NewPairKey("a", "b")][0] = 'X'
	assert.Equal(t, []byte("AC"), a)
	assert.Equal(t, []byte("GT"), b)
}

func TestBuildPairsNeedsTwoItems(t *testing.T) {
	set := itemSet(t, datatypes.Item{ID: "only", Payload: []byte("A")})
	_, err := BuildPairs(set)
	assert.ErrorIs(t, err, datatypes.ErrInvalidInput)

	_, err = Keys(itemSet(t))
	assert.ErrorIs(t, err, datatypes.ErrInvalidInput)
}

func TestKeysOrder(t *testing.T) {
	set := itemSet(t,
		datatypes.Item{ID: "c"}, datatypes.Item{ID: "a"}, datatypes.Item{ID: "b"},
	)
	keys, err := Keys(set)
	require.NoError(t, err)
	assert.Equal(t, []datatypes.PairKey{
		datatypes.NewPairKey("a", "b"),
		datatypes.NewPairKey("a", "c"),
		datatypes.NewPairKey("b", "c"),
	}, keys)
}
