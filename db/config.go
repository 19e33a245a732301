package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	cache "github.com/krisalay/statement-cache"
	"github.com/krisalay/statement-cache/config"
	"github.com/krisalay/statement-cache/engine"
	"github.com/krisalay/statement-cache/expiration"
	"github.com/krisalay/statement-cache/journal"
	"github.com/krisalay/statement-cache/logging"
	"github.com/krisalay/statement-cache/slot"
	"github.com/krisalay/statement-cache/types"
	"github.com/krisalay/statement-cache/writepolicy"
)

/*
OpenConfig wires a Manager from configuration:
- indexer, expiration strategy and engine
- the statement cache (one per connection)
- the write policy, plus a journal when mutations.mode is "journal"

metrics may be nil.
*/
func OpenConfig(ctx context.Context, cfg config.Config, logger zerolog.Logger, metrics types.Metrics) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	indexer, err := slot.NewIndexer(cfg.Cache.Indexer)
	if err != nil {
		return nil, err
	}
	exp, err := expiration.New(expiration.Mode(cfg.Cache.Expiration), time.Duration(cfg.Cache.TTL))
	if err != nil {
		return nil, err
	}

	cacheLogger := logging.ComponentLogger(logger, "cache")
	eng := engine.NewCacheEngine(exp, metrics, &cacheLogger, nil)

	var cacheOpts []cache.Option
	if cfg.Cache.MaxEntryBytes > 0 {
		cacheOpts = append(cacheOpts, cache.WithMaxEntryBytes(cfg.Cache.MaxEntryBytes))
	}
	c := cache.NewStatementCache(cfg.Cache.Capacity, indexer, eng, cacheOpts...)

	dbLogger := logging.ComponentLogger(logger, "db")

	var j *journal.Journal
	mode := writepolicy.Mode(cfg.Mutations.Mode)
	if mode == writepolicy.ModeJournal {
		j = journal.New(cfg.Mutations.JournalSize)
	}
	var recorder types.Recorder
	if j != nil {
		recorder = j
	}
	policy, err := writepolicy.New(mode, c, recorder, cfg.Mutations.Buffer, dbLogger)
	if err != nil {
		return nil, err
	}

	m, err := Open(ctx, cfg.Database.Driver, cfg.Database.DSN,
		WithCache(c),
		WithWritePolicy(policy),
		WithJournal(j),
		WithReadThrough(cfg.Cache.ReadThrough),
		WithLogger(dbLogger),
	)
	if err != nil {
		policy.Close()
		return nil, fmt.Errorf("open %s: %w", cfg.Database.Driver, err)
	}
	return m, nil
}
