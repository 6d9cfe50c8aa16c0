// Package common builds the shared dependency graph for the CLI commands:
// configuration, logger, engines, fetcher, store, and the task manager.
package common

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jiazeyu1987/hospitalscan/internal/config"
	"github.com/jiazeyu1987/hospitalscan/internal/dedup"
	"github.com/jiazeyu1987/hospitalscan/internal/extract"
	"github.com/jiazeyu1987/hospitalscan/internal/fetch"
	"github.com/jiazeyu1987/hospitalscan/internal/logger"
	"github.com/jiazeyu1987/hospitalscan/internal/storage"
	"github.com/jiazeyu1987/hospitalscan/internal/task"
	"github.com/jiazeyu1987/hospitalscan/internal/verify"
)

// Deps is the constructed dependency graph. Explicit construction at
// process start, passed by reference; no ambient globals.
type Deps struct {
	Cfg       *config.Config
	Logger    logger.Interface
	Verifier  *verify.Verifier
	Extractor *extract.Extractor
	Deduper   *dedup.Deduper
	Fetcher   *fetch.PageFetcher
	Store     task.Store
	Manager   *task.Manager
}

// Options controls dependency construction.
type Options struct {
	// ConfigFile overrides the default config file search.
	ConfigFile string

	// Debug forces debug-level console logging.
	Debug bool

	// UsePostgres persists to PostgreSQL instead of process memory.
	UsePostgres bool
}

// OptionsFromCommand reads the persistent --config and --debug flags from
// the executing command.
func OptionsFromCommand(cmd *cobra.Command) Options {
	var opts Options
	if f := cmd.Flag("config"); f != nil {
		opts.ConfigFile = f.Value.String()
	}
	if f := cmd.Flag("debug"); f != nil {
		opts.Debug = f.Value.String() == "true"
	}
	return opts
}

// Build constructs the dependency graph.
func Build(opts Options) (*Deps, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logCfg := cfg.Logger
	if opts.Debug {
		logCfg.Level = "debug"
		logCfg.Development = true
		logCfg.Encoding = "console"
	}

	log, err := logger.New(&logCfg)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	deps := &Deps{
		Cfg:       cfg,
		Logger:    log,
		Verifier:  verify.New(cfg.VerifyEngineConfig(), log),
		Extractor: extract.New(log),
		Deduper:   dedup.New(cfg.DedupEngineConfig(), log),
		Fetcher:   fetch.New(cfg.FetcherConfig(), log),
	}

	if opts.UsePostgres {
		db, dbErr := storage.NewPostgresConnection(cfg.Database)
		if dbErr != nil {
			return nil, fmt.Errorf("connect database: %w", dbErr)
		}
		if schemaErr := storage.EnsureSchema(context.Background(), db); schemaErr != nil {
			return nil, fmt.Errorf("ensure schema: %w", schemaErr)
		}
		deps.Store = storage.NewTenderRepository(db)
	} else {
		deps.Store = task.NewMemoryStore()
	}

	manager, err := task.NewManager(cfg.ManagerOptions(), task.Deps{
		Verifier:  deps.Verifier,
		Extractor: deps.Extractor,
		Deduper:   deps.Deduper,
		Fetcher:   deps.Fetcher,
		Store:     deps.Store,
		Logger:    log,
	})
	if err != nil {
		return nil, fmt.Errorf("build task manager: %w", err)
	}
	deps.Manager = manager

	return deps, nil
}
