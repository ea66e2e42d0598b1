package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/casenote/internal/anonymize"
	"github.com/MikeSquared-Agency/casenote/internal/config"
)

func newAnonymizeCmd(cfg *config.Config) *cobra.Command {
	var (
		output string
		dryRun bool
	)
	cmd := &cobra.Command{
		Use:   "anonymize",
		Short: "Replace names and organisations in transcripts using the NER service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				return fmt.Errorf("--output is required")
			}
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			bus, err := connectHermes(ctx, cfg)
			if err != nil {
				return err
			}
			if bus == nil {
				return fmt.Errorf("NATS_URL is required: entity detection runs behind %s", cfg.NERSubject)
			}
			defer bus.Close()

			det := anonymize.NewNATSDetector(bus, cfg.NERSubject, 0)
			redactor := anonymize.NewRedactor(det, cfg.ChunkChars, slog.Default())
			stats, err := redactor.RedactDir(ctx, anonymize.DirConfig{
				InputDir:         cfg.InputDir,
				OutputDir:        output,
				FallbackEncoding: cfg.FallbackEncoding,
				DryRun:           dryRun,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Anonymized %d files: %d renamed, %d changed, %d written, %d failed\n",
				stats.Scanned, stats.Renamed, stats.Changed, stats.Written, stats.Failed)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.InputDir, "input", "i", cfg.InputDir, "directory of .txt transcripts")
	f.StringVarP(&output, "output", "o", "", "directory for anonymized copies")
	f.StringVar(&cfg.NERSubject, "ner-subject", cfg.NERSubject, "NATS subject of the entity detector")
	f.IntVar(&cfg.ChunkChars, "chunk-chars", cfg.ChunkChars, "maximum characters per detector call")
	f.StringVar(&cfg.FallbackEncoding, "fallback-encoding", cfg.FallbackEncoding, `decode non-UTF-8 files as this encoding ("" or gb18030)`)
	f.BoolVar(&dryRun, "dry-run", false, "report what would change without writing")
	return cmd
}
