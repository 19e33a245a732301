package slot

import (
	"fmt"
	"hash/fnv"
)

/*
This file decides WHICH slot a statement lives in.
The cache is direct-mapped: a key has exactly one slot, picked by hashing the key
and reducing it modulo the number of slots. No chaining, no probing.

The index only has to be stable within a process run; nothing persists it.
*/

/*
Indexer is the interface that maps a key onto a slot index in [0, n).
Implementations must be deterministic, otherwise a Store could never be found by a later Lookup.
*/
type Indexer interface {
	Index(key string, n int) int
}

// DJB2 hashes s with the classic djb2 recurrence h = h*33 + c, seeded at 5381.
// Arithmetic wraps at 64 bits.
func DJB2(s string) uint64 {
	h := uint64(5381)
	for i := 0; i < len(s); i++ {
		h = (h << 5) + h + uint64(s[i])
	}
	return h
}

// DJB2Indexer is the default indexer.
type DJB2Indexer struct{}

func (DJB2Indexer) Index(key string, n int) int {
	return int(DJB2(key) % uint64(n))
}

// FNVIndexer spreads keys with FNV-1a. FNV is a fast, non-cryptographic hash commonly used in systems like this.
type FNVIndexer struct{}

func (FNVIndexer) Index(key string, n int) int {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum64() % uint64(n))
}

// Indexer names accepted in configuration.
const (
	IndexerDJB2 = "djb2"
	IndexerFNV  = "fnv"
)

// NewIndexer is a small factory function.
// Given a configured name, it returns the matching indexer.
func NewIndexer(name string) (Indexer, error) {
	switch name {
	case IndexerDJB2, "":
		return DJB2Indexer{}, nil
	case IndexerFNV:
		return FNVIndexer{}, nil
	default:
		return nil, fmt.Errorf("slot: unknown indexer %q", name)
	}
}
