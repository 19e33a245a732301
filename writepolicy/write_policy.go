package writepolicy

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/krisalay/statement-cache/types"
)

/*
This file defines what a "write policy" is.

When the database layer runs a mutation (INSERT / UPDATE / DELETE) successfully,
something should remember that the statement ran. Different setups want different things:
- Memoize the statement in the statement cache itself (write-through, the default)
- Keep mutation bookkeeping out of the cache, in a separate journal (write-back)

Instead of hard-coding one behavior, we define an interface so we can plug in different strategies.
*/

/*
WritePolicy is the contract that all write policies must follow.
The database layer does not care which policy is used. It simply calls these methods.
*/
type WritePolicy interface {

	// OnMutation is called after a mutation statement succeeded.
	OnMutation(ctx context.Context, stmt string)

	// Close is called when the database connection is shutting down.
	Close()
}

// Mode names a write policy in configuration.
type Mode string

const (
	// ModeCache stores an empty placeholder under the statement text in the cache.
	ModeCache Mode = "cache"

	// ModeJournal records mutations asynchronously in a separate Recorder.
	ModeJournal Mode = "journal"

	// ModeNone drops mutation bookkeeping entirely.
	ModeNone Mode = "none"
)

// New builds the policy for a configured mode.
// storer is used by ModeCache, recorder by ModeJournal.
func New(mode Mode, storer types.Storer, recorder types.Recorder, buffer int, logger zerolog.Logger) (WritePolicy, error) {
	switch mode {
	case ModeCache, "":
		return NewWriteThroughPolicy(storer, logger), nil
	case ModeJournal:
		if recorder == nil {
			return nil, fmt.Errorf("writepolicy: %s mode needs a recorder", mode)
		}
		return NewWriteBackPolicy(recorder, buffer, logger), nil
	case ModeNone:
		return Discard{}, nil
	default:
		return nil, fmt.Errorf("writepolicy: unknown mode %q", mode)
	}
}

// Discard ignores every mutation.
type Discard struct{}

func (Discard) OnMutation(context.Context, string) {}
func (Discard) Close()                             {}
