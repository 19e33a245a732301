// Package journal keeps a bounded, in-memory record of executed mutation statements.
//
// It is the bookkeeping side of the write-back policy: mutations are remembered
// here instead of as empty placeholders in the statement cache.
package journal

import (
	"context"
	"sync"
	"time"
)

// DefaultSize is the number of records kept when none is configured.
const DefaultSize = 1024

// Record is one executed mutation.
type Record struct {
	Statement  string    `json:"statement"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Journal is a fixed-size ring of the most recent mutations. Safe for concurrent use.
type Journal struct {
	mu      sync.Mutex
	records []Record
	next    int
	full    bool
	now     func() time.Time
}

// New creates a journal holding at most size records.
func New(size int) *Journal {
	if size <= 0 {
		size = DefaultSize
	}
	return &Journal{
		records: make([]Record, size),
		now:     time.Now,
	}
}

// Record appends stmt, overwriting the oldest record once the ring is full.
func (j *Journal) Record(_ context.Context, stmt string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.records[j.next] = Record{Statement: stmt, ExecutedAt: j.now()}
	j.next = (j.next + 1) % len(j.records)
	if j.next == 0 {
		j.full = true
	}
	return nil
}

// Entries returns the held records, oldest first.
func (j *Journal) Entries() []Record {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.full {
		return append([]Record(nil), j.records[:j.next]...)
	}
	out := make([]Record, 0, len(j.records))
	out = append(out, j.records[j.next:]...)
	return append(out, j.records[:j.next]...)
}

// Len returns the number of held records.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.full {
		return len(j.records)
	}
	return j.next
}
