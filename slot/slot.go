package slot

import (
	"sync"

	"github.com/krisalay/statement-cache/types"
)

/*
This file defines what a "Slot" is. A slot is one fixed position in the cache table.

A slot is either empty (entry == nil) or it exclusively owns one entry.
Nobody else holds a pointer to that entry: Set installs a new one, Clear drops it.

Each slot has its own lock instead of one lock for the whole table,
so writers to different slots never wait on each other.
*/
type Slot struct {

	// Mu guards entry. Store's replace-old/write-new and Lookup's lazy clear
	// both run while holding it, so they never interleave on the same slot.
	Mu sync.Mutex

	entry *types.CacheEntry
}

// Entry returns the current occupant, or nil. Caller must hold Mu.
func (s *Slot) Entry() *types.CacheEntry {
	return s.entry
}

// Occupied reports whether the slot holds an entry. Caller must hold Mu.
func (s *Slot) Occupied() bool {
	return s.entry != nil
}

// Set installs ent and returns the entry it displaced, if any. Caller must hold Mu.
func (s *Slot) Set(ent *types.CacheEntry) *types.CacheEntry {
	old := s.entry
	s.entry = ent
	return old
}

// Clear empties the slot and returns what was in it. Caller must hold Mu.
func (s *Slot) Clear() *types.CacheEntry {
	return s.Set(nil)
}
