package cache

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/krisalay/statement-cache/engine"
	"github.com/krisalay/statement-cache/eviction"
	"github.com/krisalay/statement-cache/expiration"
	"github.com/krisalay/statement-cache/slot"
	"github.com/krisalay/statement-cache/types"
)

const (
	// DefaultCapacity is the number of slots when none is configured.
	DefaultCapacity = 100

	// DefaultTTL is how long an entry stays fresh when none is configured.
	DefaultTTL = 60 * time.Second
)

// Statement cache errors. A miss is not an error.
var (
	ErrReleased   = errors.New("statement cache released")
	ErrEmptyKey   = errors.New("statement cache key cannot be empty")
	ErrAllocation = errors.New("statement cache entry too large")
)

/*
StatementCache is a fixed-size, direct-mapped, time-expiring map
from statement text to a previously computed result.

This struct is the orchestrator that connects:
- the slot table (storage + indexing)
- the engine (expiry, clock, metrics, logging)

Every key has exactly one slot. Storing a key replaces whatever occupied its slot,
whether that was the same key or a colliding one. Stale entries are only discovered
when their slot is looked up; there is no background sweep.
*/
type StatementCache struct {
	// table holds the slots. Its length never changes.
	table *slot.Table

	// engine contains the "rules" of the cache: TTL, clock, metrics, logging.
	engine *engine.CacheEngine

	// maxEntryBytes bounds len(key)+len(value) for one entry. Zero means unbounded.
	maxEntryBytes int

	// released is set by Release and cleared by Initialize.
	// It is read under each slot's lock so that no Store lands after Release has passed that slot.
	released atomic.Bool
}

// Option configures a StatementCache.
type Option func(*StatementCache)

// WithMaxEntryBytes rejects entries whose key plus value is larger than n bytes.
func WithMaxEntryBytes(n int) Option {
	return func(c *StatementCache) {
		c.maxEntryBytes = n
	}
}

/*
NewStatementCache creates a cache with capacity slots, all empty.
The returned cache is already initialized.

A non-positive capacity falls back to DefaultCapacity, a nil indexer to djb2,
and a nil engine to a fixed DefaultTTL with no metrics.
*/
func NewStatementCache(
	capacity int,
	indexer slot.Indexer,
	eng *engine.CacheEngine,
	opts ...Option,
) *StatementCache {

	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if eng == nil {
		eng = engine.NewCacheEngine(&expiration.FixedTTL{TTL: DefaultTTL}, nil, nil, nil)
	}

	c := &StatementCache{
		table:  slot.NewTable(capacity, indexer),
		engine: eng,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

/*
Initialize clears every slot and makes the cache usable again after Release.
Safe to call any number of times.
*/
func (c *StatementCache) Initialize() {
	c.clearAll(eviction.Reset)
	c.released.Store(false)
}

// IndexOf returns the slot index key maps to, in [0, Capacity()).
func (c *StatementCache) IndexOf(key string) int {
	return c.table.Index(key)
}

/*
Lookup returns the cached value for key.

1. Empty slot, or a different key in the slot: miss
2. Entry is stale: clear the slot, miss
3. Otherwise: hit

A miss means "recompute from the source of truth".
*/
func (c *StatementCache) Lookup(key string) (string, bool) {
	return c.LookupMatch(key, nil)
}

/*
LookupMatch is Lookup with a filter on the cached value.

A fresh entry whose value accept rejects counts as a miss and stays in its slot.
A nil accept takes every value.
*/
func (c *StatementCache) LookupMatch(key string, accept func(value string) bool) (string, bool) {
	if key == "" {
		c.engine.Metrics.Miss()
		return "", false
	}

	idx := c.table.Index(key)
	sl := c.table.At(idx)

	sl.Mu.Lock()
	defer sl.Mu.Unlock()

	ent := sl.Entry()
	if c.released.Load() || ent == nil || ent.Key != key {
		c.engine.Metrics.Miss()
		return "", false
	}

	if c.engine.IsExpired(ent) {
		// Stale entries are cleared, not just skipped.
		sl.Clear()
		c.engine.Metrics.Expire()
		c.engine.OnEvict(idx, ent, eviction.Expired)
		c.engine.Metrics.Miss()
		return "", false
	}

	if accept != nil && !accept(ent.Value) {
		c.engine.Metrics.Miss()
		return "", false
	}

	c.engine.OnRead(ent)
	return ent.Value, true
}

/*
Store writes key → value into key's slot.

The previous occupant is dropped unconditionally: same key or a colliding one,
fresh or stale. The new entry is fully built before the slot lock is taken,
so a failed Store never leaves the slot half-written.
*/
func (c *StatementCache) Store(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if c.maxEntryBytes > 0 && len(key)+len(value) > c.maxEntryBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrAllocation, len(key)+len(value), c.maxEntryBytes)
	}

	// The slot owns its own copies, detached from the caller's buffers.
	ent := &types.CacheEntry{
		Key:   strings.Clone(key),
		Value: strings.Clone(value),
	}
	c.engine.OnWrite(ent)

	idx := c.table.Index(key)
	sl := c.table.At(idx)

	sl.Mu.Lock()
	defer sl.Mu.Unlock()

	if c.released.Load() {
		return ErrReleased
	}

	old := sl.Set(ent)
	c.engine.OnEvict(idx, old, eviction.Classify(old, key))
	c.engine.Metrics.Store()
	return nil
}

/*
Release drops every held entry. Lookup misses and Store fails with
ErrReleased until Initialize is called again. Calling Release twice is harmless.
*/
func (c *StatementCache) Release() {
	c.released.Store(true)
	c.clearAll(eviction.Released)
}

// Released reports whether Release was called without a later Initialize.
func (c *StatementCache) Released() bool {
	return c.released.Load()
}

// Capacity returns the number of slots.
func (c *StatementCache) Capacity() int {
	return c.table.Len()
}

// Occupied counts slots currently holding an entry, stale or not.
func (c *StatementCache) Occupied() int {
	n := 0
	for i := 0; i < c.table.Len(); i++ {
		sl := c.table.At(i)
		sl.Mu.Lock()
		if sl.Occupied() {
			n++
		}
		sl.Mu.Unlock()
	}
	return n
}

// clearAll empties each slot under its own lock.
func (c *StatementCache) clearAll(reason eviction.Reason) {
	for i := 0; i < c.table.Len(); i++ {
		sl := c.table.At(i)
		sl.Mu.Lock()
		if old := sl.Clear(); old != nil {
			c.engine.OnEvict(i, old, reason)
		}
		sl.Mu.Unlock()
	}
}
