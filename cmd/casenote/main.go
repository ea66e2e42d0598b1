package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/casenote/internal/config"
	"github.com/MikeSquared-Agency/casenote/internal/pipeline"
	"github.com/MikeSquared-Agency/casenote/internal/scales"
)

func main() {
	cfg := config.Load()

	root := &cobra.Command{
		Use:           "casenote",
		Short:         "Structure clinical consultation transcripts into patient records",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	root.PersistentPreRun = func(*cobra.Command, []string) {
		setupLogging(cfg.LogLevel)
	}

	root.AddCommand(
		newRunCmd(&cfg),
		newLabelCmd(&cfg),
		newAnonymizeCmd(&cfg),
		newServeCmd(&cfg),
	)

	if err := root.Execute(); err != nil {
		slog.Error("casenote failed", "error", err)
		os.Exit(1)
	}
}

// addEngineFlags binds the structuring flags shared by run and serve.
func addEngineFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	f.StringVar(&cfg.ScoresPath, "scores", cfg.ScoresPath, "CSV of questionnaire scores keyed by 序号")
	f.BoolVar(&cfg.SegmentVisits, "segment-visits", cfg.SegmentVisits, "split transcripts at visit markers")
	f.BoolVar(&cfg.ExtractTurns, "extract-turns", cfg.ExtractTurns, "label speaker turns")
	f.StringVar(&cfg.FallbackEncoding, "fallback-encoding", cfg.FallbackEncoding, `decode non-UTF-8 files as this encoding ("" or gb18030)`)
}

// buildEngine loads the scores table, if any, and creates the engine.
func buildEngine(cfg *config.Config) (*pipeline.Engine, error) {
	var linker *scales.Linker
	if cfg.ScoresPath != "" {
		table, err := scales.LoadCSV(cfg.ScoresPath)
		if err != nil {
			return nil, fmt.Errorf("load scores: %w", err)
		}
		linker = scales.NewLinker(table)
		slog.Info("scores loaded", "path", cfg.ScoresPath, "rows", table.Len())
	}
	opts := pipeline.Options{SegmentVisits: cfg.SegmentVisits, ExtractTurns: cfg.ExtractTurns}
	return pipeline.NewEngine(opts, linker, slog.Default()), nil
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}

// shutdownGrace bounds graceful shutdown of the HTTP server.
const shutdownGrace = 10 * time.Second
