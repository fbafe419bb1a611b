package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/David-Botos/crdc-reconcile/pkg/config"
	"github.com/David-Botos/crdc-reconcile/pkg/connector"
	"github.com/David-Botos/crdc-reconcile/pkg/reconcile"
	"github.com/David-Botos/crdc-reconcile/pkg/render"
	"github.com/David-Botos/crdc-reconcile/pkg/source"
)

// app holds what a subcommand needs once configuration is loaded
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	conn   connector.DatabaseConnector // nil for CSV sources
	tables source.Tables
	src    source.TableSource
	opts   reconcile.Options
	out    *render.Renderer
}

// loadConfig reads the environment and applies command-line overrides
func loadConfig(flags *rootFlags) (*config.Config, error) {
	if err := config.LoadEnvFile(flags.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Reconcile.JoinMode, flags.join)
	override(&cfg.Reconcile.SentinelPolicy, flags.sentinel)
	override(&cfg.Reconcile.NullsOrder, flags.nulls)
	override(&cfg.Reconcile.KeyScope, flags.keyScope)
	override(&cfg.LogLevel, flags.logLevel)
	return cfg, nil
}

// newApp loads configuration, opens the configured source and checks that the
// input tables exist. Callers must call close.
func newApp(cmd *cobra.Command, flags *rootFlags) (*app, error) {
	format, err := render.ParseFormat(flags.format)
	if err != nil {
		return nil, err
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}

	opts, err := reconcile.ParseOptions(cfg.Reconcile)
	if err != nil {
		return nil, err
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	tables := source.TablesFromConfig(cfg.Tables)
	if err := tables.Validate(); err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		tables: tables,
		opts:   opts,
		out:    render.New(cmd.OutOrStdout(), format),
	}

	ctx := cmd.Context()
	src, err := a.openSource(ctx)
	if err != nil {
		a.close()
		return nil, err
	}
	a.src = source.NewRetrying(src, source.RetryPolicy{
		Attempts: cfg.RetryAttempts,
		Delay:    cfg.RetryDelay,
	}, logger)

	logger.Debug("Source ready",
		zap.String("source", cfg.SourceKind),
		zap.String("join", opts.JoinMode.String()),
		zap.String("sentinel", opts.SentinelPolicy.String()),
		zap.String("nulls", opts.NullsOrder.String()),
		zap.String("key_scope", opts.KeyScope.String()))
	return a, nil
}

func (a *app) openSource(ctx context.Context) (source.TableSource, error) {
	if a.cfg.SourceKind == config.SourceCSV {
		return source.NewCSVSource(a.cfg.CSV, a.tables, a.logger)
	}

	conn, err := connector.NewConnectorFactory(a.cfg, a.logger).Create(ctx)
	if err != nil {
		return nil, err
	}
	a.conn = conn

	if err := conn.Validate(ctx, a.tables.Refs()); err != nil {
		return nil, err
	}
	return source.NewSQLSource(conn.DB(), conn.DriverName(), a.tables, a.cfg.QueryTimeout, a.logger)
}

func (a *app) engine(options ...reconcile.EngineOption) (*reconcile.Engine, error) {
	return reconcile.NewEngine(a.src, a.tables, a.opts, a.logger, options...)
}

// pushdown returns the database-side runner; only PostgreSQL sources have one
func (a *app) pushdown() (*source.Pushdown, error) {
	if a.conn == nil || a.cfg.SourceKind != config.SourcePostgres {
		return nil, errors.New("pushdown queries require SOURCE_KIND=postgres")
	}
	return source.NewPushdown(a.conn.DB(), a.conn.DriverName(), a.tables, a.cfg.QueryTimeout, a.logger)
}

func (a *app) close() {
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Warn("Failed to close connection", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
