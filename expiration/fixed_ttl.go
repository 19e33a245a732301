package expiration

import (
	"time"

	"github.com/krisalay/statement-cache/types"
)

/*
FixedTTL expires an entry a fixed amount of time after it was written.
Reads do not extend its life. An entry is fresh iff now - timestamp < TTL,
so an entry read exactly TTL after its write is already stale.
*/
type FixedTTL struct {
	TTL time.Duration
}

// IsExpired reports whether at least TTL has passed since the entry was written.
func (f *FixedTTL) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.Age(now) >= f.TTL
}

// OnAccess does nothing: fixed expiry ignores reads.
func (f *FixedTTL) OnAccess(*types.CacheEntry, time.Time) {}

// OnWrite stamps the entry with the write time.
func (f *FixedTTL) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.Timestamp = now
}
