package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/MikeSquared-Agency/casenote/internal/batch"
	"github.com/MikeSquared-Agency/casenote/internal/config"
	"github.com/MikeSquared-Agency/casenote/internal/pipeline"
)

func newLabelCmd(cfg *config.Config) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "label PATH",
		Short: "Rewrite transcripts with canonical speaker labels",
		Long: "Rewrite a transcript, or every transcript under a directory, with each turn\n" +
			"labeled [医生], [患者], [患者家属] or [其他]. A single file is printed to stdout\n" +
			"unless --output is given; a directory requires --output.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine := pipeline.NewEngine(pipeline.DefaultOptions, nil, slog.Default())
			info, err := os.Stat(args[0])
			if err != nil {
				return err
			}
			if !info.IsDir() {
				text, err := labelFile(engine, args[0], cfg.FallbackEncoding)
				if err != nil {
					return err
				}
				if output == "" {
					_, err = fmt.Fprint(cmd.OutOrStdout(), text)
					return err
				}
				return writeFile(filepath.Join(output, filepath.Base(args[0])), text)
			}

			if output == "" {
				return fmt.Errorf("--output is required when labeling a directory")
			}
			return labelDir(engine, args[0], output, cfg.FallbackEncoding)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory")
	cmd.Flags().StringVar(&cfg.FallbackEncoding, "fallback-encoding", cfg.FallbackEncoding, `decode non-UTF-8 files as this encoding ("" or gb18030)`)
	return cmd
}

func labelFile(engine *pipeline.Engine, path, fallback string) (string, error) {
	text, err := batch.ReadTranscript(path, fallback)
	if err != nil {
		return "", err
	}
	out, mode, err := engine.Label(path, text)
	if err != nil {
		return "", fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	slog.Debug("transcript labeled", "path", path, "labeling_mode", mode)
	return out, nil
}

func labelDir(engine *pipeline.Engine, dir, output, fallback string) error {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && batch.IsTranscriptFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	var labeled, failed int
	for _, path := range files {
		text, err := labelFile(engine, path, fallback)
		if err != nil {
			slog.Warn("failed to label transcript", "path", path, "error", err)
			failed++
			continue
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if err := writeFile(filepath.Join(output, rel), text); err != nil {
			return err
		}
		labeled++
	}
	slog.Info("labeling complete", "files", len(files), "labeled", labeled, "failed", failed, "output", output)
	return nil
}

func writeFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	return os.WriteFile(path, []byte(text), 0o644)
}
