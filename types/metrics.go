package types

// This file defines how the cache reports what it is doing.

/*
Metrics is an interface that defines what the cache wants to measure.
Each method represents an event in a slot's lifecycle. The cache calls these methods whenever something happens.
*/
type Metrics interface {

	// Hit is called when Lookup returns a fresh value.
	Hit()

	// Miss is called when Lookup finds an empty slot, a different key, or a stale entry.
	Miss()

	// Store is called after a slot has been written.
	Store()

	// Eviction is called when an occupied slot loses its entry.
	// reason is one of the eviction.Reason strings ("overwrite", "collision", "expired", "released").
	Eviction(reason string)

	// Expire is called when Lookup finds a stale entry and clears its slot.
	Expire()
}

/*
NoopMetrics is a "do nothing" implementation of Metrics.

The cache always holds a non-nil Metrics, so callers that do not care
about metrics get this one and nothing has to check for nil.
*/
type NoopMetrics struct{}

func (NoopMetrics) Hit()            {}
func (NoopMetrics) Miss()           {}
func (NoopMetrics) Store()          {}
func (NoopMetrics) Eviction(string) {}
func (NoopMetrics) Expire()         {}
