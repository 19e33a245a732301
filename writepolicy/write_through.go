package writepolicy

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/krisalay/statement-cache/types"
)

/*
This file implements the "write-through" policy.

Whenever a mutation succeeds, its statement text is stored in the statement cache
with an empty value. Mutations have no row set; the empty value only records
"this statement ran". The flow is: DB write → cache write (synchronous).
*/

// Placeholder is the value cached for a mutation statement.
const Placeholder = ""

// WriteThroughPolicy forwards every mutation to the cache immediately.
type WriteThroughPolicy struct {

	// cache is where the placeholder is written.
	cache types.Storer

	logger zerolog.Logger
}

// NewWriteThroughPolicy creates a new write-through policy.
func NewWriteThroughPolicy(cache types.Storer, logger zerolog.Logger) *WriteThroughPolicy {
	return &WriteThroughPolicy{cache: cache, logger: logger}
}

/*
OnMutation stores the placeholder for stmt.
  - This call is synchronous
  - A failed store does not undo the mutation; the statement already ran,
    so the failure is only logged
*/
func (w *WriteThroughPolicy) OnMutation(_ context.Context, stmt string) {
	if err := w.cache.Store(stmt, Placeholder); err != nil {
		w.logger.Warn().Err(err).Str("statement", stmt).Msg("could not memoize mutation")
	}
}

// Close has nothing to clean up: write-through does not use background workers.
func (w *WriteThroughPolicy) Close() {}
