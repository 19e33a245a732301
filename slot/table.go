package slot

/*
Table is the fixed-length slot sequence backing the cache.

Its length is chosen once at construction and never changes:
there is no growth and no rehash, so a key's index is valid for the table's whole life.
*/
type Table struct {
	slots   []*Slot
	indexer Indexer
}

// NewTable creates capacity empty slots. capacity must be positive.
// A nil indexer falls back to DJB2Indexer.
func NewTable(capacity int, indexer Indexer) *Table {
	if indexer == nil {
		indexer = DJB2Indexer{}
	}
	s := make([]*Slot, capacity)
	for i := range s {
		s[i] = &Slot{}
	}
	return &Table{slots: s, indexer: indexer}
}

// Index returns the one slot index key may occupy.
func (t *Table) Index(key string) int {
	return t.indexer.Index(key, len(t.slots))
}

// For returns the slot key maps to.
func (t *Table) For(key string) *Slot {
	return t.slots[t.Index(key)]
}

// At returns the slot at index i.
func (t *Table) At(i int) *Slot {
	return t.slots[i]
}

// Len returns the number of slots.
func (t *Table) Len() int {
	return len(t.slots)
}
