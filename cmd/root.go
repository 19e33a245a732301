package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/krisalay/statement-cache/config"
	"github.com/krisalay/statement-cache/db"
	"github.com/krisalay/statement-cache/logging"
	"github.com/krisalay/statement-cache/metrics"
)

// app carries state shared by every subcommand.
type app struct {
	cfgFile     string
	dsn         string
	logLevel    string
	metricsAddr string

	cfg      config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	server   *http.Server
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "stmtcache",
		Short:         "SQLite CRUD helper with a direct-mapped statement cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.teardown(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.dsn, "db", "", "database DSN (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&a.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")

	root.AddCommand(
		newExecCmd(a),
		newQueryCmd(a),
		newDemoCmd(a),
		newBenchCmd(a),
	)
	return root
}

// setup loads configuration, builds the logger and metrics, and starts the metrics server.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.dsn != "" {
		cfg.Database.DSN = a.dsn
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	a.logger = logging.ComponentLogger(logging.New(cmd.ErrOrStderr(), cfg.Logging), "cli")
	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewMetrics(a.registry, metrics.DefaultNamespace)

	if a.metricsAddr != "" {
		a.server = &http.Server{
			Addr:              a.metricsAddr,
			Handler:           promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error().Err(err).Str("addr", a.metricsAddr).Msg("metrics server stopped")
			}
		}()
		a.logger.Info().Str("addr", a.metricsAddr).Msg("serving metrics")
	}

	a.logger.Debug().Str("command", cmd.Name()).Msg("command started")
	return nil
}

func (a *app) teardown(ctx context.Context) error {
	if a.server == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.server.Shutdown(shutdownCtx)
}

// open connects using the loaded config and exposes the cache's slot usage.
func (a *app) open(ctx context.Context) (*db.Manager, error) {
	m, err := db.OpenConfig(ctx, a.cfg, a.logger, a.metrics)
	if err != nil {
		return nil, err
	}
	if occ, ok := m.Cache().(metrics.Occupancy); ok {
		metrics.RegisterOccupancy(a.registry, metrics.DefaultNamespace, occ)
	}
	return m, nil
}
