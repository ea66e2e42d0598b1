package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/casenote/internal/api"
	"github.com/MikeSquared-Agency/casenote/internal/batch"
	"github.com/MikeSquared-Agency/casenote/internal/config"
	"github.com/MikeSquared-Agency/casenote/internal/hermes"
	"github.com/MikeSquared-Agency/casenote/internal/processor"
	"github.com/MikeSquared-Agency/casenote/internal/watch"
)

func newServeCmd(cfg *config.Config) *cobra.Command {
	var watchDir bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Structure transcripts arriving over HTTP, NATS or the input directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cfg, watchDir)
		},
	}
	f := cmd.Flags()
	f.IntVar(&cfg.Port, "port", cfg.Port, "HTTP port")
	f.StringVarP(&cfg.InputDir, "input", "i", cfg.InputDir, "directory to watch for new transcripts")
	f.BoolVar(&watchDir, "watch", true, "structure transcripts written to the input directory")
	addEngineFlags(cmd, cfg)
	return cmd
}

func serve(cfg *config.Config, watchDir bool) error {
	slog.Info("casenote starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	// Database (optional)
	var sink batch.RecordSink
	db, err := connectStore(ctx, cfg)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		sink = db
	} else {
		slog.Warn("DATABASE_URL not set, records are not persisted")
	}

	// NATS/Hermes (optional)
	var pub batch.Publisher
	bus, err := connectHermes(ctx, cfg)
	if err != nil {
		return err
	}
	if bus != nil {
		defer bus.Close()
		pub = bus
	} else {
		slog.Warn("NATS_URL not set, running without events")
	}

	proc := processor.New(engine, sink, pub, cfg.FallbackEncoding, slog.Default())

	if bus != nil {
		if err := bus.Subscribe(hermes.SubjectTranscriptSubmitted, proc.HandleTranscriptSubmitted); err != nil {
			return fmt.Errorf("subscribe to transcript events: %w", err)
		}
		if err := bus.Reply(hermes.SubjectStructureRequest, proc.HandleStructureRequest); err != nil {
			return fmt.Errorf("serve structure requests: %w", err)
		}
	}

	var watcher *watch.Watcher
	if watchDir {
		watcher = watch.New(cfg.InputDir, watch.DefaultSettle, proc, slog.Default())
		if err := watcher.Start(ctx); err != nil {
			return fmt.Errorf("watch %s: %w", cfg.InputDir, err)
		}
	}

	// HTTP API
	srv := api.NewServer(cfg.Port, engine, proc)
	if db != nil {
		srv.WithRecords(db)
	}
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("casenote ready", "port", cfg.Port, "session_id", proc.SessionID())

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")

	shutdownCtx, done := context.WithTimeout(context.Background(), shutdownGrace)
	defer done()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown", "error", err)
	}
	cancel()
	if watcher != nil {
		watcher.Wait()
	}
	slog.Info("casenote stopped")
	return nil
}

