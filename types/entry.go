package types

import "time"

// CacheEntry is the content of one occupied slot.
// A slot owns its entry exclusively; entries are replaced, never shared.
type CacheEntry struct {
	Key       string
	Value     string
	Timestamp time.Time
}

// Age returns how long ago the entry was written, relative to now.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}
