package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/casenote/internal/batch"
	"github.com/MikeSquared-Agency/casenote/internal/config"
	"github.com/MikeSquared-Agency/casenote/internal/hermes"
	"github.com/MikeSquared-Agency/casenote/internal/store"
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	var (
		single string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Structure every transcript in the input directory into a dataset",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			engine, err := buildEngine(cfg)
			if err != nil {
				return err
			}

			var sink batch.RecordSink
			var pub batch.Publisher
			if !dryRun {
				db, err := connectStore(ctx, cfg)
				if err != nil {
					return err
				}
				if db != nil {
					defer db.Close()
					sink = db
				}
				bus, err := connectHermes(ctx, cfg)
				if err != nil {
					return err
				}
				if bus != nil {
					defer bus.Close()
					pub = bus
				}
			}

			runner := batch.NewRunner(batch.Config{
				InputDir:         cfg.InputDir,
				OutputDir:        cfg.OutputDir,
				Format:           cfg.OutputFormat,
				Workers:          config.ClampWorkers(cfg.Workers),
				FallbackEncoding: cfg.FallbackEncoding,
				SingleFile:       single,
				DryRun:           dryRun,
			}, engine, sink, pub, slog.Default())

			res, err := runner.Run(ctx)
			if res != nil {
				fmt.Fprint(cmd.OutOrStdout(), batch.FormatRunSummary(res))
			}
			return err
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.InputDir, "input", "i", cfg.InputDir, "directory of .txt transcripts")
	f.StringVarP(&cfg.OutputDir, "output", "o", cfg.OutputDir, "directory for dataset and stats")
	f.StringVar(&cfg.OutputFormat, "format", cfg.OutputFormat, "json or jsonl")
	f.IntVarP(&cfg.Workers, "workers", "w", cfg.Workers, "parallel workers")
	f.StringVar(&single, "file", "", "structure a single file only")
	f.BoolVar(&dryRun, "dry-run", false, "structure and report without writing anything")
	addEngineFlags(cmd, cfg)
	return cmd
}

// connectStore opens and migrates the database when DATABASE_URL is set.
func connectStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Info("database connected")
	return db, nil
}

// connectHermes connects to NATS when NATS_URL is set.
func connectHermes(ctx context.Context, cfg *config.Config) (*hermes.Client, error) {
	if cfg.NatsURL == "" {
		return nil, nil
	}
	bus, err := hermes.NewClient(ctx, cfg.NatsURL, cfg.NatsToken, slog.Default())
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	slog.Info("NATS connected", "url", cfg.NatsURL)
	return bus, nil
}
