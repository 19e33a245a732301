// This file defines how cache entries expire over time.

package expiration

import (
	"fmt"
	"time"

	"github.com/krisalay/statement-cache/types"
)

/*
Strategy is the interface that all expiration rules must follow. Instead of hard-coding
expiration logic into the cache, we define a strategy so expiration behavior can be swapped easily.

Strategies are only consulted lazily: the cache asks IsExpired when a slot is read.
Nothing sweeps slots in the background.
*/
type Strategy interface {

	// IsExpired checks if the entry is stale at the given time.
	IsExpired(*types.CacheEntry, time.Time) bool

	// OnAccess is called whenever a cache entry is read successfully.
	OnAccess(*types.CacheEntry, time.Time)

	// OnWrite is called whenever a cache entry is written.
	OnWrite(*types.CacheEntry, time.Time)
}

// Mode names a strategy in configuration.
type Mode string

const (
	ModeFixed       Mode = "fixed"
	ModeAfterAccess Mode = "after_access"
)

// New builds the strategy for a configured mode.
func New(mode Mode, ttl time.Duration) (Strategy, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("expiration: ttl must be positive, got %s", ttl)
	}
	switch mode {
	case ModeFixed, "":
		return &FixedTTL{TTL: ttl}, nil
	case ModeAfterAccess:
		return &ExpireAfterAccess{TTL: ttl}, nil
	default:
		return nil, fmt.Errorf("expiration: unknown mode %q", mode)
	}
}
