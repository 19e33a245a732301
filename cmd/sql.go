package main

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newExecCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <statement>",
		Short: "Execute a statement and report affected rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			m, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			n, err := m.Execute(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d row(s) affected\n", n)
			return nil
		},
	}
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		repeat      int
		readThrough bool
	)

	cmd := &cobra.Command{
		Use:   "query <statement>",
		Short: "Run a read statement and print its rows as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("read-through") {
				a.cfg.Cache.ReadThrough = readThrough
			}
			ctx := cmd.Context()
			m, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer m.Close()

			stmt := strings.Join(args, " ")
			if repeat < 1 {
				repeat = 1
			}
			for i := 0; i < repeat; i++ {
				rows, err := m.FetchAll(ctx, stmt)
				if err != nil {
					return err
				}
				if i > 0 {
					continue
				}
				out, err := json.MarshalIndent(rows, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
			}

			a.logger.Info().
				Int("runs", repeat).
				Bool("read_through", a.cfg.Cache.ReadThrough).
				Int("slot", m.Cache().IndexOf(stmt)).
				Msg("query done")
			return nil
		},
	}

	cmd.Flags().IntVar(&repeat, "repeat", 1, "run the statement this many times")
	cmd.Flags().BoolVar(&readThrough, "read-through", false, "serve repeated reads from the statement cache")
	return cmd
}
