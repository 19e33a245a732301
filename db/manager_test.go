package db

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache "github.com/krisalay/statement-cache"
	"github.com/krisalay/statement-cache/config"
	"github.com/krisalay/statement-cache/writepolicy"
)

var usersColumns = []Column{
	{Name: "id", Type: "INTEGER", Constraints: []string{"PRIMARY KEY"}},
	{Name: "name", Type: "TEXT", Constraints: []string{"NOT NULL"}},
}

func openMemory(t *testing.T, opts ...Option) *Manager {
	t.Helper()
	m, err := Open(context.Background(), DriverSQLite, ":memory:", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func seedUsers(t *testing.T, m *Manager) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, m.CreateTable(ctx, "users", usersColumns))
	_, err := m.InsertRow(ctx, "users", "1, 'alice'")
	require.NoError(t, err)
	_, err = m.InsertRow(ctx, "users", "2, 'bob'")
	require.NoError(t, err)
}

func TestStatementTemplates(t *testing.T) {
	assert.Equal(t, "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL);", createTableSQL("users", usersColumns))
	assert.Equal(t, "DROP TABLE IF EXISTS users;", dropTableSQL("users"))
	assert.Equal(t, "ALTER TABLE users ADD COLUMN email TEXT;", addColumnSQL("users", Column{Name: "email", Type: "TEXT"}))
	assert.Equal(t, "INSERT INTO users VALUES (1, 'alice');", insertRowSQL("users", "1, 'alice'"))
	assert.Equal(t, "DELETE FROM users WHERE id = 1;", deleteRowSQL("users", "id = 1"))
	assert.Equal(t, "UPDATE users SET name = 'x' WHERE id = 1;", updateRowSQL("users", "name = 'x'", "id = 1"))
	assert.Equal(t, "PRAGMA table_info(users);", tableInfoSQL("users"))
}

func TestCRUD(t *testing.T) {
	ctx := context.Background()
	m := openMemory(t)
	seedUsers(t, m)

	n, err := m.UpdateRow(ctx, "users", "name = 'carol'", "id = 2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = m.DeleteRow(ctx, "users", "id = 1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rows, err := m.FetchAll(ctx, "SELECT id, name FROM users ORDER BY id;")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0]["id"])
	assert.Equal(t, "carol", rows[0]["name"])

	require.NoError(t, m.AddColumn(ctx, "users", Column{Name: "email", Type: "TEXT"}))
	cols, err := m.TableColumns(ctx, "users")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "email"}, cols)

	require.NoError(t, m.DropTable(ctx, "users"))
	_, err = m.FetchAll(ctx, "SELECT * FROM users;")
	assert.Error(t, err)
}

func TestFetchAllEmpty(t *testing.T) {
	ctx := context.Background()
	m := openMemory(t)
	require.NoError(t, m.CreateTable(ctx, "users", usersColumns))

	rows, err := m.FetchAll(ctx, "SELECT * FROM users;")
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestInvalidIdentifiers(t *testing.T) {
	ctx := context.Background()
	m := openMemory(t)

	assert.ErrorIs(t, m.CreateTable(ctx, "users; DROP", usersColumns), ErrInvalidIdentifier)
	assert.ErrorIs(t, m.CreateTable(ctx, "users", []Column{{Name: "1id", Type: "INTEGER"}}), ErrInvalidIdentifier)
	assert.Error(t, m.CreateTable(ctx, "users", nil))
	_, err := m.InsertRow(ctx, "", "1")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
	_, err = m.TableColumns(ctx, "a-b")
	assert.ErrorIs(t, err, ErrInvalidIdentifier)
}

func TestMutationStoresPlaceholder(t *testing.T) {
	ctx := context.Background()
	m := openMemory(t)
	require.NoError(t, m.CreateTable(ctx, "users", usersColumns))

	_, err := m.InsertRow(ctx, "users", "1, 'alice'")
	require.NoError(t, err)

	v, ok := m.Cache().Lookup("INSERT INTO users VALUES (1, 'alice');")
	assert.True(t, ok)
	assert.Equal(t, writepolicy.Placeholder, v)

	// DDL is not memoized.
	_, ok = m.Cache().Lookup(createTableSQL("users", usersColumns))
	assert.False(t, ok)
}

func TestFailedMutationIsNotMemoized(t *testing.T) {
	ctx := context.Background()
	m := openMemory(t)

	_, err := m.InsertRow(ctx, "missing", "1")
	require.Error(t, err)

	_, ok := m.Cache().Lookup("INSERT INTO missing VALUES (1);")
	assert.False(t, ok)
}

func TestFetchAllWithoutReadThroughAlwaysQueries(t *testing.T) {
	ctx := context.Background()
	m := openMemory(t)
	seedUsers(t, m)

	q := "SELECT name FROM users ORDER BY id;"
	_, err := m.FetchAll(ctx, q)
	require.NoError(t, err)

	_, ok := m.Cache().Lookup(q)
	assert.False(t, ok)

	_, err = m.DB().ExecContext(ctx, "DELETE FROM users;")
	require.NoError(t, err)

	rows, err := m.FetchAll(ctx, q)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestFetchAllReadThroughServesCachedRows(t *testing.T) {
	ctx := context.Background()
	m := openMemory(t, WithReadThrough(true))
	seedUsers(t, m)

	q := "SELECT id, name FROM users ORDER BY id;"
	first, err := m.FetchAll(ctx, q)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, json.Number("1"), first[0]["id"])
	assert.Equal(t, "alice", first[0]["name"])

	// Changing the table behind the manager's back proves the second read is a hit.
	_, err = m.DB().ExecContext(ctx, "DELETE FROM users;")
	require.NoError(t, err)

	second, err := m.FetchAll(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestFetchAllReadThroughIgnoresPlaceholder(t *testing.T) {
	ctx := context.Background()
	m := openMemory(t, WithReadThrough(true))
	seedUsers(t, m)

	q := "SELECT name FROM users ORDER BY id;"
	require.NoError(t, m.Cache().Store(q, writepolicy.Placeholder))

	rows, err := m.FetchAll(ctx, q)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "bob", rows[1]["name"])

	payload, ok := m.Cache().Lookup(q)
	require.True(t, ok)
	assert.Equal(t, `[{"name":"alice"},{"name":"bob"}]`, payload)
}

func TestCloseReleasesCache(t *testing.T) {
	m, err := Open(context.Background(), DriverSQLite, ":memory:")
	require.NoError(t, err)

	require.NoError(t, m.Cache().Store("SELECT 1;", "[]"))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, ok := m.Cache().Lookup("SELECT 1;")
	assert.False(t, ok)
	assert.ErrorIs(t, m.Cache().Store("SELECT 1;", "[]"), cache.ErrReleased)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "nope", "x")
	assert.Error(t, err)
}

func TestOpenConfigJournalMode(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Database.DSN = ":memory:"
	cfg.Mutations.Mode = string(writepolicy.ModeJournal)

	m, err := OpenConfig(ctx, cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	require.NotNil(t, m.Journal())

	require.NoError(t, m.CreateTable(ctx, "users", usersColumns))
	_, err = m.InsertRow(ctx, "users", "1, 'alice'")
	require.NoError(t, err)

	_, ok := m.Cache().Lookup("INSERT INTO users VALUES (1, 'alice');")
	assert.False(t, ok)

	require.NoError(t, m.Close())

	entries := m.Journal().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "INSERT INTO users VALUES (1, 'alice');", entries[0].Statement)
}

func TestOpenConfigRejectsInvalid(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Capacity = 0

	_, err := OpenConfig(context.Background(), cfg, zerolog.Nop(), nil)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestCloseDuringMutationsInJournalMode(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Database.DSN = ":memory:"
	cfg.Mutations.Mode = string(writepolicy.ModeJournal)

	for iter := 0; iter < 20; iter++ {
		m, err := OpenConfig(ctx, cfg, zerolog.Nop(), nil)
		require.NoError(t, err)
		require.NoError(t, m.CreateTable(ctx, "users", usersColumns))

		var wg sync.WaitGroup
		start := make(chan struct{})
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				<-start
				for i := 0; i < 50; i++ {
					// Errors after Close are expected; a panic is not.
					_, _ = m.InsertRow(ctx, "users", fmt.Sprintf("%d, 'u'", g*1000+i))
				}
			}(g)
		}

		close(start)
		assert.NotPanics(t, func() { _ = m.Close() }, "iteration %d", iter)
		wg.Wait()
	}
}

type hitCounter struct {
	mu           sync.Mutex
	hits, misses int
}

func (h *hitCounter) Hit()            { h.mu.Lock(); h.hits++; h.mu.Unlock() }
func (h *hitCounter) Miss()           { h.mu.Lock(); h.misses++; h.mu.Unlock() }
func (h *hitCounter) Store()          {}
func (h *hitCounter) Expire()         {}
func (h *hitCounter) Eviction(string) {}

func TestFetchAllReadThroughCountsPlaceholderAsMiss(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Database.DSN = ":memory:"
	cfg.Cache.ReadThrough = true

	counter := &hitCounter{}
	m, err := OpenConfig(ctx, cfg, zerolog.Nop(), counter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	seedUsers(t, m)

	q := "SELECT name FROM users;"
	require.NoError(t, m.Cache().Store(q, writepolicy.Placeholder))

	rows, err := m.FetchAll(ctx, q)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Zero(t, counter.hits)
	assert.Equal(t, 1, counter.misses)

	_, err = m.FetchAll(ctx, q)
	require.NoError(t, err)
	assert.Equal(t, 1, counter.hits)
}

func TestLoadRowSetIgnoresCallerCancellation(t *testing.T) {
	m := openMemory(t, WithReadThrough(true))
	seedUsers(t, m)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// The shared load runs detached, so waiters never inherit the first caller's cancellation.
	payload, err := m.loadRowSet(context.WithoutCancel(ctx), "SELECT name FROM users ORDER BY id;")
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"alice"},{"name":"bob"}]`, payload)

	_, err = m.FetchAll(ctx, "SELECT id FROM users;")
	assert.ErrorIs(t, err, context.Canceled)

	rows, err := m.FetchAll(context.Background(), "SELECT name FROM users ORDER BY id;")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
