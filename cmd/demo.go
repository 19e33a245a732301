package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	cache "github.com/krisalay/statement-cache"
	"github.com/krisalay/statement-cache/db"
	"github.com/krisalay/statement-cache/engine"
	"github.com/krisalay/statement-cache/expiration"
	"github.com/krisalay/statement-cache/logging"
	"github.com/krisalay/statement-cache/slot"
)

func newDemoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Walk through hit, miss, collision, expiry and release on a 4-slot cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDemo(cmd.Context(), cmd.OutOrStdout(), a)
		},
	}
}

func runDemo(ctx context.Context, w io.Writer, a *app) error {
	const (
		capacity = 4
		ttl      = 60 * time.Second
	)

	// ---------------- Manual clock ----------------
	now := time.Now()
	clock := func() time.Time { return now }

	// ---------------- Cache ----------------
	cacheLogger := logging.ComponentLogger(a.logger, "cache")
	eng := engine.NewCacheEngine(&expiration.FixedTTL{TTL: ttl}, a.metrics, &cacheLogger, clock)
	c := cache.NewStatementCache(capacity, slot.DJB2Indexer{}, eng)

	// ---------------- Database ----------------
	m, err := db.Open(ctx, db.DriverSQLite, ":memory:",
		db.WithCache(c),
		db.WithLogger(logging.ComponentLogger(a.logger, "db")),
	)
	if err != nil {
		return err
	}
	defer m.Close()

	section(w, "SYSTEM BOOT")
	fmt.Fprintln(w, "SLOTS           :", capacity)
	fmt.Fprintln(w, "TTL             :", ttl)
	fmt.Fprintln(w, "INDEXER         : djb2")
	fmt.Fprintln(w, "MUTATIONS       : write-through placeholder")

	// ====================================================
	section(w, "1) MUTATION MEMOIZED")
	if err := m.CreateTable(ctx, "users", []db.Column{
		{Name: "id", Type: "INTEGER", Constraints: []string{"PRIMARY", "KEY"}},
		{Name: "name", Type: "TEXT"},
	}); err != nil {
		return err
	}
	if _, err := m.InsertRow(ctx, "users", "1, 'alice'"); err != nil {
		return err
	}
	insert := "INSERT INTO users VALUES (1, 'alice');"
	v, ok := c.Lookup(insert)
	fmt.Fprintf(w, "CACHE  → LOOKUP %q = %q hit=%v\n", insert, v, ok)

	// ====================================================
	section(w, "2) HIT AND MISS")
	if err := c.Store("A", "1"); err != nil {
		return err
	}
	v, ok = c.Lookup("A")
	fmt.Fprintf(w, "CACHE  → LOOKUP A = %q hit=%v (slot %d)\n", v, ok, c.IndexOf("A"))
	_, ok = c.Lookup("C")
	fmt.Fprintf(w, "CACHE  → LOOKUP C hit=%v (slot %d, never stored)\n", ok, c.IndexOf("C"))

	// ====================================================
	section(w, "3) COLLISION")
	fmt.Fprintf(w, "CACHE  → A and E share slot %d/%d\n", c.IndexOf("A"), c.IndexOf("E"))
	if err := c.Store("E", "5"); err != nil {
		return err
	}
	_, ok = c.Lookup("A")
	fmt.Fprintf(w, "CACHE  → LOOKUP A after STORE E hit=%v\n", ok)
	v, ok = c.Lookup("E")
	fmt.Fprintf(w, "CACHE  → LOOKUP E = %q hit=%v\n", v, ok)

	// ====================================================
	section(w, "4) TTL EXPIRATION")
	if err := c.Store("Q", "R"); err != nil {
		return err
	}
	now = now.Add(ttl + time.Second)
	fmt.Fprintf(w, "CLOCK  → advanced %s\n", ttl+time.Second)
	_, first := c.Lookup("Q")
	_, second := c.Lookup("Q")
	fmt.Fprintf(w, "CACHE  → LOOKUP Q hit=%v, again hit=%v\n", first, second)
	fmt.Fprintf(w, "CACHE  → occupied slots = %d\n", c.Occupied())

	// ====================================================
	section(w, "SHUTDOWN")
	if err := m.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "CACHE  → released=%v, STORE after release: %v\n", c.Released(), c.Store("A", "1"))
	return nil
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n==================== %s ====================\n", title)
}
