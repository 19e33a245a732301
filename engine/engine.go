package engine

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/krisalay/statement-cache/eviction"
	"github.com/krisalay/statement-cache/expiration"
	"github.com/krisalay/statement-cache/types"
)

// Clock returns the current wall-clock time.
type Clock func() time.Time

/*
CacheEngine is the "brain" of the statement cache.
It is responsible for the "behavior" of the cache, NOT storage.
This acts as the policy layer.

It decides:
- When an entry is stale
- How timestamps are updated on reads/writes
- What time it is
- How metrics and debug logs are recorded

It does NOT:
- Store data
- Pick slots
- Handle locking
*/
type CacheEngine struct {

	// Expiration controls when a cache entry should be considered "too old".
	// If this is nil, entries never expire.
	Expiration expiration.Strategy

	// Metrics is how we keep track of what the cache is doing.
	// Hits, misses, evictions, expirations, etc.
	Metrics types.Metrics

	// Logger receives debug events. Defaults to a disabled logger:
	// the cache surfaces outcomes to its caller and does not print.
	Logger zerolog.Logger

	// Clock is the time source. Tests replace it to move time forward.
	Clock Clock
}

/*
NewCacheEngine creates a CacheEngine.
Nil metrics and nil clock are replaced by NoopMetrics and time.Now.
*/
func NewCacheEngine(
	exp expiration.Strategy,
	metrics types.Metrics,
	logger *zerolog.Logger,
	clock Clock,
) *CacheEngine {

	if metrics == nil {
		metrics = types.NoopMetrics{}
	}
	if clock == nil {
		clock = time.Now
	}
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}

	return &CacheEngine{
		Expiration: exp,
		Metrics:    metrics,
		Logger:     l,
		Clock:      clock,
	}
}

// Now returns the engine's current time.
func (e *CacheEngine) Now() time.Time {
	return e.Clock()
}

/*
IsExpired checks whether a cache entry is stale right now.
Returns false if no expiration strategy is configured.
*/
func (e *CacheEngine) IsExpired(ent *types.CacheEntry) bool {
	return e.Expiration != nil &&
		e.Expiration.IsExpired(ent, e.Now())
}

// OnRead is called every time the cache returns a value.
func (e *CacheEngine) OnRead(ent *types.CacheEntry) {
	e.Metrics.Hit()
	if e.Expiration != nil {
		e.Expiration.OnAccess(ent, e.Now())
	}
}

// OnWrite stamps a new entry before it is installed in its slot.
func (e *CacheEngine) OnWrite(ent *types.CacheEntry) {
	now := e.Now()
	ent.Timestamp = now
	if e.Expiration != nil {
		e.Expiration.OnWrite(ent, now)
	}
}

// OnEvict records an entry leaving its slot. A None reason is ignored.
func (e *CacheEngine) OnEvict(idx int, old *types.CacheEntry, reason eviction.Reason) {
	if reason == eviction.None || old == nil {
		return
	}
	e.Metrics.Eviction(reason.String())
	e.Logger.Debug().
		Int("slot", idx).
		Str("reason", reason.String()).
		Dur("age", old.Age(e.Now())).
		Msg("slot evicted")
}
