package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krisalay/statement-cache/config"
	"github.com/krisalay/statement-cache/db"
	"github.com/krisalay/statement-cache/metrics"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	for _, k := range []string{config.EnvDSN, config.EnvCapacity, config.EnvTTL, config.EnvReadThrough, config.EnvLogLevel} {
		t.Setenv(k, "")
	}

	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(&errOut)

	require.NoError(t, root.Execute(), errOut.String())
	return out.String()
}

func TestDemo(t *testing.T) {
	out := run(t, "demo", "--log-level", "error")

	assert.Contains(t, out, `LOOKUP "INSERT INTO users VALUES (1, 'alice');" = "" hit=true`)
	assert.Contains(t, out, `LOOKUP A = "1" hit=true (slot 2)`)
	assert.Contains(t, out, "A and E share slot 2/2")
	assert.Contains(t, out, "LOOKUP A after STORE E hit=false")
	assert.Contains(t, out, "LOOKUP Q hit=false, again hit=false")
	assert.Contains(t, out, "released=true")
}

func TestExecAndQuery(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "stmtcache.db")

	run(t, "--db", dsn, "exec", "CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);")
	out := run(t, "--db", dsn, "exec", "INSERT INTO users VALUES (1, 'alice');")
	assert.Contains(t, out, "1 row(s) affected")

	out = run(t, "--db", dsn, "query", "--repeat", "2", "--read-through", "SELECT name FROM users;")
	assert.Contains(t, out, `"name": "alice"`)
}

func TestBench(t *testing.T) {
	out := run(t, "bench", "--log-level", "error", "--goroutines", "2", "--ops", "100")
	assert.NotEmpty(t, out)
}

func TestQueryDoesNotTouchCacheAfterRun(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "stmtcache.db")

	m, err := db.Open(ctx, db.DriverSQLite, dsn)
	require.NoError(t, err)
	require.NoError(t, m.CreateTable(ctx, "users", []db.Column{{Name: "name", Type: "TEXT"}}))
	_, err = m.InsertRow(ctx, "users", "'alice'")
	require.NoError(t, err)
	require.NoError(t, m.Close())

	a := &app{cfg: config.Default(), logger: zerolog.Nop(), registry: prometheus.NewRegistry()}
	a.cfg.Database.DSN = dsn
	a.metrics = metrics.NewMetrics(a.registry, metrics.DefaultNamespace)

	cmd := newQueryCmd(a)
	cmd.SetArgs([]string{"--repeat", "2", "--read-through", "SELECT name FROM users;"})
	cmd.SetOut(&bytes.Buffer{})
	require.NoError(t, cmd.Execute())

	// First run misses and caches, second run hits. Nothing else reads the cache.
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.Hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.metrics.Misses))
}
