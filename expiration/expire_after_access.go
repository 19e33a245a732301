package expiration

import (
	"time"

	"github.com/krisalay/statement-cache/types"
)

/*
ExpireAfterAccess implements "expire after access", also called "sliding TTL".
Every time someone reads the entry, its timestamp is pushed forward. As long as the statement keeps
getting looked up, it stays alive. If nobody touches it for TTL, it expires.
*/
type ExpireAfterAccess struct {

	// TTL defines how long the entry should remain valid AFTER its last write or read.
	TTL time.Duration
}

// IsExpired checks whether the entry is expired at this moment.
func (e *ExpireAfterAccess) IsExpired(ent *types.CacheEntry, now time.Time) bool {
	return ent.Age(now) >= e.TTL
}

// OnAccess moves the timestamp to now, restarting the TTL window.
func (e *ExpireAfterAccess) OnAccess(ent *types.CacheEntry, now time.Time) {
	ent.Timestamp = now
}

// OnWrite stamps the entry with the write time.
func (e *ExpireAfterAccess) OnWrite(ent *types.CacheEntry, now time.Time) {
	ent.Timestamp = now
}
