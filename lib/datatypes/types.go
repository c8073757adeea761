// Package datatypes holds the values passed between the pipeline stages.
package datatypes

import (
	"encoding/json"
	"fmt"
	"sort"
)

// An Item is one input sequence. The payload is treated as opaque bytes.
type Item struct {
	ID      string
	Payload []byte
}

// ItemSet is an ordered list of items, sorted by ID.
// The order indexes the distance matrix, so it has to be the same on every run.
type ItemSet struct {
	items []Item
	index map[string]int
}

func NewItemSet(items []Item) (*ItemSet, error) {
	sorted := make([]Item, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ID < sorted[j].ID
	})
	index := make(map[string]int, len(sorted))
	for i, item := range sorted {
		if item.ID == "" {
			return nil, fmt.Errorf("item %d has an empty id: %w", i, ErrInvalidInput)
		}
		if _, exists := index[item.ID]; exists {
			return nil, fmt.Errorf("duplicate item id %q: %w", item.ID, ErrInvalidInput)
		}
		index[item.ID] = i
	}
	return &ItemSet{items: sorted, index: index}, nil
}

func (s *ItemSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

func (s *ItemSet) At(i int) Item {
	return s.items[i]
}

// Index returns the position of id, or -1.
func (s *ItemSet) Index(id string) int {
	i, ok := s.index[id]
	if !ok {
		return -1
	}
	return i
}

func (s *ItemSet) IDs() []string {
	ids := make([]string, len(s.items))
	for i, item := range s.items {
		ids[i] = item.ID
	}
	return ids
}

// PairKey returns the canonical key for two distinct ids in this set.
// PairKey(a, b) and PairKey(b, a) are equal.
func (s *ItemSet) PairKey(a string, b string) (PairKey, error) {
	i, ok := s.index[a]
	if !ok {
		return PairKey{}, fmt.Errorf("unknown item id %q: %w", a, ErrInvalidInput)
	}
	j, ok := s.index[b]
	if !ok {
		return PairKey{}, fmt.Errorf("unknown item id %q: %w", b, ErrInvalidInput)
	}
	if i == j {
		return PairKey{}, fmt.Errorf("pair of identical ids %q: %w", a, ErrInvalidInput)
	}
	if i > j {
		a, b = b, a
	}
	return PairKey{First: a, Second: b}, nil
}

// PairKey is an unordered pair of item ids. First is the id with the lower
// index in the ItemSet. The fields are public because this struct gets
// json-encoded.
type PairKey struct {
	First  string
	Second string
}

func NewPairKey(first string, second string) PairKey {
	return PairKey{First: first, Second: second}
}

func (p PairKey) IDs() [2]string {
	return [2]string{p.First, p.Second}
}

func (p PairKey) String() string {
	return fmt.Sprintf("(%s,%s)", p.First, p.Second)
}

func (p PairKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		First  string `json:"first"`
		Second string `json:"second"`
	}{
		First:  p.First,
		Second: p.Second,
	})
}

func (p *PairKey) UnmarshalJSON(data []byte) error {
	pk := &struct {
		First  string `json:"first"`
		Second string `json:"second"`
	}{}
	if err := json.Unmarshal(data, &pk); err != nil {
		return err
	}
	p.First = pk.First
	p.Second = pk.Second
	return nil
}

// PairSizes maps pair keys to compressed sizes. JSON object keys have to be
// strings, so pairs are encoded as a list.
type PairSizes map[PairKey]int

type pairSize struct {
	Pair PairKey `json:"pair"`
	Size int     `json:"size"`
}

func (ps PairSizes) MarshalJSON() ([]byte, error) {
	list := make([]pairSize, 0, len(ps))
	for pair, size := range ps {
		list = append(list, pairSize{Pair: pair, Size: size})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Pair.First != list[j].Pair.First {
			return list[i].Pair.First < list[j].Pair.First
		}
		return list[i].Pair.Second < list[j].Pair.Second
	})
	return json.Marshal(list)
}

func (ps *PairSizes) UnmarshalJSON(data []byte) error {
	var list []pairSize
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	ret := make(PairSizes, len(list))
	for _, entry := range list {
		ret[entry.Pair] = entry.Size
	}
	*ps = ret
	return nil
}
