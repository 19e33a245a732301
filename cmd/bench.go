package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	cache "github.com/krisalay/statement-cache"
	"github.com/krisalay/statement-cache/engine"
	"github.com/krisalay/statement-cache/expiration"
	"github.com/krisalay/statement-cache/slot"
)

type benchConfig struct {
	capacity    int
	keys        int
	goroutines  int
	opsPerG     int
	writeRatio  float64
	indexerName string
}

func newBenchCmd(a *app) *cobra.Command {
	bc := benchConfig{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Concurrent Lookup/Store load benchmark",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if bc.keys < 1 || bc.goroutines < 1 {
				return fmt.Errorf("bench: --keys and --goroutines must be positive")
			}
			indexer, err := slot.NewIndexer(bc.indexerName)
			if err != nil {
				return err
			}

			eng := engine.NewCacheEngine(&expiration.FixedTTL{TTL: time.Duration(a.cfg.Cache.TTL)}, a.metrics, nil, nil)
			c := cache.NewStatementCache(bc.capacity, indexer, eng)
			defer c.Release()

			keys := make([]string, bc.keys)
			for i := range keys {
				keys[i] = fmt.Sprintf("SELECT * FROM t WHERE id = %d;", i)
			}

			// ---------------- Preload ----------------
			for _, k := range keys {
				if err := c.Store(k, k); err != nil {
					return err
				}
			}

			// ---------------- Load Test ----------------
			start := time.Now()
			g, _ := errgroup.WithContext(cmd.Context())
			hits := make([]int, bc.goroutines)

			for i := 0; i < bc.goroutines; i++ {
				id := i
				g.Go(func() error {
					r := rand.New(rand.NewPCG(uint64(id), uint64(id)+1))
					for j := 0; j < bc.opsPerG; j++ {
						k := keys[r.IntN(len(keys))]
						if r.Float64() < bc.writeRatio {
							if err := c.Store(k, k); err != nil {
								return err
							}
							continue
						}
						if _, ok := c.Lookup(k); ok {
							hits[id]++
						}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			duration := time.Since(start)

			totalHits := 0
			for _, h := range hits {
				totalHits += h
			}
			totalOps := bc.goroutines * bc.opsPerG

			w := cmd.OutOrStdout()
			fmt.Fprintln(w, "\n================ STATEMENT CACHE BENCHMARK =================")
			fmt.Fprintf(w, "Slots            : %d\n", c.Capacity())
			fmt.Fprintf(w, "Distinct keys    : %d\n", bc.keys)
			fmt.Fprintf(w, "Goroutines       : %d\n", bc.goroutines)
			fmt.Fprintf(w, "Ops/Goroutine    : %d\n", bc.opsPerG)
			fmt.Fprintf(w, "Occupied slots   : %d\n", c.Occupied())
			fmt.Fprintf(w, "Lookup hits      : %d\n", totalHits)
			fmt.Fprintf(w, "Total Time       : %v\n", duration)
			fmt.Fprintf(w, "Throughput       : %.2f ops/sec\n", float64(totalOps)/duration.Seconds())
			return nil
		},
	}

	cmd.Flags().IntVar(&bc.capacity, "capacity", cache.DefaultCapacity, "number of slots")
	cmd.Flags().IntVar(&bc.keys, "keys", 1000, "distinct statements")
	cmd.Flags().IntVar(&bc.goroutines, "goroutines", 64, "concurrent workers")
	cmd.Flags().IntVar(&bc.opsPerG, "ops", 10000, "operations per worker")
	cmd.Flags().Float64Var(&bc.writeRatio, "write-ratio", 0.1, "fraction of operations that Store")
	cmd.Flags().StringVar(&bc.indexerName, "indexer", slot.IndexerDJB2, "djb2 or fnv")
	return cmd
}
