// Package db is the CRUD layer over database/sql that feeds the statement cache.
//
// It opens the connection and initializes the cache, runs templated DDL and
// mutation statements, hands successful mutations to a write policy, and
// releases the cache when the connection is closed. Reads re-execute by
// default; read-through caching of row sets is opt-in.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	cache "github.com/krisalay/statement-cache"
	"github.com/krisalay/statement-cache/api"
	"github.com/krisalay/statement-cache/journal"
	"github.com/krisalay/statement-cache/writepolicy"
)

// DriverSQLite is the database/sql driver name registered by modernc.org/sqlite.
const DriverSQLite = "sqlite"

// Manager owns one database connection pool and the statement cache tied to it.
type Manager struct {
	db     *sql.DB
	cache  api.Cache
	policy writepolicy.WritePolicy

	// journal is set when mutations are recorded outside the cache.
	journal *journal.Journal

	readThrough bool

	// sf collapses concurrent identical reads that missed the cache.
	sf singleflight.Group

	logger    zerolog.Logger
	closeOnce sync.Once
	closeErr  error
}

type options struct {
	cache       api.Cache
	policy      writepolicy.WritePolicy
	journal     *journal.Journal
	readThrough bool
	logger      zerolog.Logger
}

// Option configures Open.
type Option func(*options)

// WithCache replaces the default statement cache.
func WithCache(c api.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithWritePolicy replaces the default write-through policy.
func WithWritePolicy(p writepolicy.WritePolicy) Option {
	return func(o *options) { o.policy = p }
}

// WithJournal exposes j through Manager.Journal. It does not change the write policy.
func WithJournal(j *journal.Journal) Option {
	return func(o *options) { o.journal = j }
}

// WithReadThrough makes FetchAll consult the cache before executing.
func WithReadThrough(enabled bool) Option {
	return func(o *options) { o.readThrough = enabled }
}

// WithLogger sets the logger used for database errors.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

/*
Open connects to the database and prepares the cache.

1. Open and ping the connection
2. Initialize the statement cache (before any Lookup or Store)

The cache defaults to a NewStatementCache with default capacity and TTL,
and the write policy to write-through into that cache.
*/
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*Manager, error) {
	o := options{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		o.cache = cache.NewStatementCache(cache.DefaultCapacity, nil, nil)
	}
	if o.policy == nil {
		o.policy = writepolicy.NewWriteThroughPolicy(o.cache, o.logger)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and avoids SQLITE_BUSY between pooled writers.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		o.logger.Error().Err(err).Str("driver", driver).Msg("can't open database")
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	o.cache.Initialize()

	return &Manager{
		db:          sqlDB,
		cache:       o.cache,
		policy:      o.policy,
		journal:     o.journal,
		readThrough: o.readThrough,
		logger:      o.logger,
	}, nil
}

/*
Close shuts the manager down.

1. Flush the write policy (pending journal records)
2. Close the connection
3. Release the statement cache

Calling Close more than once returns the first result.
*/
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.policy.Close()
		m.closeErr = m.db.Close()
		m.cache.Release()
	})
	return m.closeErr
}

// Cache returns the statement cache bound to this connection.
func (m *Manager) Cache() api.Cache {
	return m.cache
}

// Journal returns the mutation journal, or nil when mutations go to the cache.
func (m *Manager) Journal() *journal.Journal {
	return m.journal
}

// DB exposes the underlying pool.
func (m *Manager) DB() *sql.DB {
	return m.db
}

// Execute runs stmt and returns the number of affected rows.
// It does not touch the cache.
func (m *Manager) Execute(ctx context.Context, stmt string) (int64, error) {
	n, err := m.exec(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("execute: %w", err)
	}
	return n, nil
}

func (m *Manager) exec(ctx context.Context, stmt string) (int64, error) {
	res, err := m.db.ExecContext(ctx, stmt)
	if err != nil {
		m.logger.Warn().Err(err).Str("statement", stmt).Msg("SQL error")
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		// Some statements (DDL) have no meaningful count.
		return 0, nil
	}
	return n, nil
}

// mutate executes a mutation and, only if it succeeded, hands it to the write policy.
func (m *Manager) mutate(ctx context.Context, op, stmt string) (int64, error) {
	n, err := m.exec(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	m.policy.OnMutation(ctx, stmt)
	return n, nil
}

// CreateTable runs CREATE TABLE table (columns...).
func (m *Manager) CreateTable(ctx context.Context, table string, columns []Column) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}
	if err := validateColumns(columns); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	if _, err := m.exec(ctx, createTableSQL(table, columns)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// DropTable runs DROP TABLE IF EXISTS table.
func (m *Manager) DropTable(ctx context.Context, table string) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}
	if _, err := m.exec(ctx, dropTableSQL(table)); err != nil {
		return fmt.Errorf("drop table %s: %w", table, err)
	}
	return nil
}

// AddColumn runs ALTER TABLE table ADD COLUMN col.
func (m *Manager) AddColumn(ctx context.Context, table string, col Column) error {
	if err := validateIdentifier(table); err != nil {
		return err
	}
	if err := validateColumns([]Column{col}); err != nil {
		return fmt.Errorf("add column to %s: %w", table, err)
	}
	if _, err := m.exec(ctx, addColumnSQL(table, col)); err != nil {
		return fmt.Errorf("add column to %s: %w", table, err)
	}
	return nil
}

// InsertRow runs INSERT INTO table VALUES (values). values is passed through verbatim.
func (m *Manager) InsertRow(ctx context.Context, table, values string) (int64, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}
	return m.mutate(ctx, "insert into "+table, insertRowSQL(table, values))
}

// DeleteRow runs DELETE FROM table WHERE condition.
func (m *Manager) DeleteRow(ctx context.Context, table, condition string) (int64, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}
	return m.mutate(ctx, "delete from "+table, deleteRowSQL(table, condition))
}

// UpdateRow runs UPDATE table SET values WHERE condition.
func (m *Manager) UpdateRow(ctx context.Context, table, values, condition string) (int64, error) {
	if err := validateIdentifier(table); err != nil {
		return 0, err
	}
	return m.mutate(ctx, "update "+table, updateRowSQL(table, values, condition))
}

// TableColumns returns the column names of table in declaration order.
func (m *Manager) TableColumns(ctx context.Context, table string) ([]string, error) {
	if err := validateIdentifier(table); err != nil {
		return nil, err
	}
	rows, err := m.query(ctx, tableInfoSQL(table))
	if err != nil {
		return nil, fmt.Errorf("table columns of %s: %w", table, err)
	}
	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if name, ok := r["name"].(string); ok {
			names = append(names, name)
		}
	}
	return names, nil
}
