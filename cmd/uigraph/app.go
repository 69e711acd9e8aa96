package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/gnana997/uigraph/pkg/graph"
	"github.com/gnana997/uigraph/pkg/scanner"
	"github.com/gnana997/uigraph/pkg/store"
	"github.com/gnana997/uigraph/pkg/util"
)

// app holds the runtime of one command: logger, store and the services
// built on top of it.
type app struct {
	cfg    *Config
	logger *slog.Logger
	store  store.Store
	orch   *scanner.Orchestrator
	query  *graph.QueryService
}

// newApp resolves configuration for the command's root argument and opens
// the store. Call Close when done.
func newApp(cmd *cobra.Command, args []string) (*app, error) {
	root := "."
	if len(args) > 0 {
		root = args[0]
	}
	cfg, err := loadConfig(root)
	if err != nil {
		return nil, err
	}
	if err := applyFlags(cmd, cfg); err != nil {
		return nil, err
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}
	util.SetDefault(logger)

	st, err := openStore(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:    cfg,
		logger: logger,
		store:  st,
		orch:   scanner.NewOrchestrator(st, cfg.Scan, logger),
		query:  graph.NewQueryService(st, logger),
	}, nil
}

func (a *app) Close() error {
	return errors.Join(a.orch.Close(), a.store.Close())
}

func (a *app) scan(ctx context.Context) (*scanner.ScanResult, error) {
	return a.orch.Scan(ctx, a.request())
}

func (a *app) request() scanner.ScanRequest {
	return scanner.ScanRequest{ProjectID: a.cfg.Project, Root: a.cfg.Root}
}

func buildLogger(cfg *Config) (*slog.Logger, error) {
	level, err := util.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	format, err := util.ParseLogFormat(cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	lc := util.DefaultLoggerConfig()
	lc.Level = level
	lc.Format = format
	return util.NewLogger(lc), nil
}

// openStore picks PostgreSQL when a database URL is configured and the
// in-memory store otherwise. Both are wrapped in the LRU cache.
func openStore(ctx context.Context, cfg *Config, logger *slog.Logger) (store.Store, error) {
	var inner store.Store
	if cfg.DatabaseURL != "" {
		pg, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		logger.Debug("using postgres store")
		inner = pg
	} else {
		logger.Debug("using in-memory store, history is not kept between runs")
		inner = store.NewMemoryStore()
	}

	cached, err := store.NewCachedStore(inner, cfg.CacheSize)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	return cached, nil
}

// applyFlags overrides configuration with flags the user set explicitly.
func applyFlags(cmd *cobra.Command, cfg *Config) error {
	flags := cmd.Flags()
	if flags.Changed("project") {
		v, err := flags.GetString("project")
		if err != nil {
			return fmt.Errorf("failed to read --project flag: %w", err)
		}
		cfg.Project = v
	}
	if flags.Changed("database-url") {
		v, err := flags.GetString("database-url")
		if err != nil {
			return fmt.Errorf("failed to read --database-url flag: %w", err)
		}
		cfg.DatabaseURL = v
	}
	if flags.Changed("log-level") {
		v, err := flags.GetString("log-level")
		if err != nil {
			return fmt.Errorf("failed to read --log-level flag: %w", err)
		}
		cfg.LogLevel = v
	}
	if flags.Changed("log-format") {
		v, err := flags.GetString("log-format")
		if err != nil {
			return fmt.Errorf("failed to read --log-format flag: %w", err)
		}
		cfg.LogFormat = v
	}
	if flags.Changed("workers") {
		v, err := flags.GetInt("workers")
		if err != nil {
			return fmt.Errorf("failed to read --workers flag: %w", err)
		}
		cfg.Scan.Workers = v
	}
	if flags.Lookup("call-log") != nil && flags.Changed("call-log") {
		v, err := flags.GetString("call-log")
		if err != nil {
			return fmt.Errorf("failed to read --call-log flag: %w", err)
		}
		cfg.CallLog = v
	}
	return nil
}
