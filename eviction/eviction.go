package eviction

import "github.com/krisalay/statement-cache/types"

/*
This file defines why an entry leaves the cache.

In a direct-mapped cache there is nothing to decide about WHICH key goes:
every key owns exactly one slot, so a write always displaces whatever lives
in that slot. What is still worth knowing is WHY a slot was emptied, because
collision evictions are the cost of the design and should be visible.
*/

// Reason identifies the cause of an eviction.
type Reason string

const (
	// None means nothing was evicted (the slot was empty).
	None Reason = ""

	// Overwrite: the same key was stored again. The old value is replaced.
	Overwrite Reason = "overwrite"

	// Collision: a different key hashed to the same slot.
	// Last writer wins per slot, regardless of the old entry's freshness.
	Collision Reason = "collision"

	// Expired: Lookup found the entry past its TTL and cleared the slot.
	Expired Reason = "expired"

	// Released: the cache was torn down.
	Released Reason = "released"

	// Reset: Initialize emptied a live cache.
	Reset Reason = "reset"
)

// String returns the label used for metrics and log fields.
func (r Reason) String() string {
	return string(r)
}

/*
Classify decides the reason a Store into an occupied slot evicts its entry.

Steps:
------
1. Empty slot: nothing is evicted
2. Same key: the entry is overwritten in place
3. Different key: a hash collision pushed the old entry out
*/
func Classify(old *types.CacheEntry, key string) Reason {
	if old == nil {
		return None
	}
	if old.Key == key {
		return Overwrite
	}
	return Collision
}
