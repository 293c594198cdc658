package engine

import (
	"fmt"
	"strings"
)

const (
	pastPrefix    = "past_key_values."
	presentPrefix = "present."
)

// SlotKind distinguishes self-attention cache tensors, which grow by one
// position per step, from cross-attention tensors, which stay fixed at
// the encoder sequence length.
type SlotKind int

const (
	SlotDecoder SlotKind = iota
	SlotEncoder
)

// CacheSlot binds one declared past-key-value input to the present
// output that refills it
type CacheSlot struct {
	Input   string
	Present string
	Kind    SlotKind
}

// CacheSchema is the fixed slot table of a decoder session, indexed once
// at initialization from the session's declared input names. It replaces
// per-step string matching on the hot path.
type CacheSchema struct {
	Slots    []CacheSlot
	NumHeads int
	HeadDim  int
}

// NewCacheSchema scans the declared inputs for past-key-value slots
func NewCacheSchema(inputs []IOInfo, numHeads, headDim int) (*CacheSchema, error) {
	if numHeads < 1 || headDim < 1 {
		return nil, fmt.Errorf("cache schema needs positive head geometry, got heads=%d dim=%d", numHeads, headDim)
	}

	schema := &CacheSchema{NumHeads: numHeads, HeadDim: headDim}
	for _, info := range inputs {
		if !strings.HasPrefix(info.Name, pastPrefix) {
			continue
		}

		kind := SlotDecoder
		if strings.Contains(info.Name, ".encoder.") {
			kind = SlotEncoder
		}

		schema.Slots = append(schema.Slots, CacheSlot{
			Input:   info.Name,
			Present: presentPrefix + strings.TrimPrefix(info.Name, pastPrefix),
			Kind:    kind,
		})
	}

	return schema, nil
}

// EmptyTensor returns the correctly-shaped zero tensor for a slot that
// has not been populated yet
func (s *CacheSchema) EmptyTensor(slot CacheSlot) NamedTensor {
	return ZeroFloatTensor(slot.Input, []int64{1, int64(s.NumHeads), 0, int64(s.HeadDim)})
}

// Cache holds the key/value tensors of one in-flight chunk decode,
// keyed by present-output name. It is owned by a single decode loop and
// replaced wholesale after every step.
type Cache struct {
	tensors map[string]NamedTensor
	steps   int
}

// NewCache returns an empty cache
func NewCache() *Cache {
	return &Cache{tensors: make(map[string]NamedTensor)}
}

// Populated reports whether the cache holds tensors from a prior step
func (c *Cache) Populated() bool {
	return len(c.tensors) > 0
}

// Steps returns the number of completed decode steps
func (c *Cache) Steps() int {
	return c.steps
}

// Lookup returns the cached tensor for a slot's present name
func (c *Cache) Lookup(presentName string) (NamedTensor, bool) {
	t, ok := c.tensors[presentName]
	return t, ok
}

// Replace swaps the cache contents with the latest present outputs.
// The previous tensors are discarded; there is no incremental append.
func (c *Cache) Replace(presents []NamedTensor) {
	next := make(map[string]NamedTensor, len(presents))
	for _, t := range presents {
		next[t.Name] = t
	}
	c.tensors = next
	c.steps++
}

// Clear discards all cached tensors
func (c *Cache) Clear() {
	c.tensors = make(map[string]NamedTensor)
	c.steps = 0
}
