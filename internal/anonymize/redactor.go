package anonymize

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MikeSquared-Agency/casenote/internal/batch"
)

// Redactor anonymizes transcripts line by line.
type Redactor struct {
	detector Detector
	logger   *slog.Logger
}

// NewRedactor wraps det so each call sees at most chunkChars runes.
func NewRedactor(det Detector, chunkChars int, logger *slog.Logger) *Redactor {
	return &Redactor{detector: Chunked{Inner: det, Size: chunkChars}, logger: logger}
}

// RedactText replaces names in every non-blank line. Line structure and
// line endings are preserved so speaker markers survive.
func (r *Redactor) RedactText(ctx context.Context, text string) (string, error) {
	lines := strings.SplitAfter(text, "\n")
	for i, ln := range lines {
		if strings.TrimSpace(ln) == "" {
			continue
		}
		ents, err := r.detector.Detect(ctx, ln)
		if err != nil {
			return "", err
		}
		lines[i] = ReplaceSpans(ln, ents)
	}
	return strings.Join(lines, ""), nil
}

// RedactStem anonymizes a filename stem, keeping its leading IDs intact.
func (r *Redactor) RedactStem(ctx context.Context, stem string) (string, error) {
	ents, err := r.detector.Detect(ctx, stem)
	if err != nil {
		return "", err
	}
	return ReplaceSpans(stem, ents), nil
}

// DirConfig selects the files RedactDir works on.
type DirConfig struct {
	InputDir         string
	OutputDir        string
	FallbackEncoding string
	DryRun           bool
}

// DirStats counts what RedactDir did.
type DirStats struct {
	Scanned int
	Renamed int
	Changed int
	Written int
	Failed  int
}

// RedactDir anonymizes every transcript under cfg.InputDir into the same
// relative layout under cfg.OutputDir. Originals are never modified. A file
// that fails is logged and skipped.
func (r *Redactor) RedactDir(ctx context.Context, cfg DirConfig) (DirStats, error) {
	var stats DirStats
	if cfg.InputDir == cfg.OutputDir {
		return stats, fmt.Errorf("output dir must differ from input dir")
	}

	var files []string
	err := filepath.WalkDir(cfg.InputDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && batch.IsTranscriptFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return stats, fmt.Errorf("walk %s: %w", cfg.InputDir, err)
	}
	sort.Strings(files)

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		stats.Scanned++
		out, renamed, changed, err := r.redactFile(ctx, cfg, path)
		if err != nil {
			r.logger.Warn("failed to anonymize file", "path", path, "error", err)
			stats.Failed++
			continue
		}
		if renamed {
			stats.Renamed++
		}
		if changed {
			stats.Changed++
		}
		if cfg.DryRun {
			r.logger.Info("dry run", "path", path, "output", out)
			continue
		}
		stats.Written++
	}

	r.logger.Info("anonymization complete",
		"scanned", stats.Scanned,
		"renamed", stats.Renamed,
		"changed", stats.Changed,
		"written", stats.Written,
		"failed", stats.Failed,
		"dry_run", cfg.DryRun,
	)
	return stats, nil
}

func (r *Redactor) redactFile(ctx context.Context, cfg DirConfig, path string) (string, bool, bool, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	newStem, err := r.RedactStem(ctx, stem)
	if err != nil {
		return "", false, false, fmt.Errorf("stem: %w", err)
	}

	text, err := batch.ReadTranscript(path, cfg.FallbackEncoding)
	if err != nil {
		return "", false, false, err
	}
	updated, err := r.RedactText(ctx, text)
	if err != nil {
		return "", false, false, fmt.Errorf("text: %w", err)
	}

	rel, err := filepath.Rel(cfg.InputDir, filepath.Dir(path))
	if err != nil {
		return "", false, false, err
	}
	outDir := filepath.Join(cfg.OutputDir, rel)
	outPath := filepath.Join(outDir, newStem+ext)

	if !cfg.DryRun {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return "", false, false, fmt.Errorf("mkdir: %w", err)
		}
		if err := os.WriteFile(outPath, []byte(updated), 0o644); err != nil {
			return "", false, false, fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	return outPath, newStem != stem, updated != text, nil
}
