// Package batch structures a directory of transcripts in parallel and writes
// the resulting dataset.
package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/casenote/internal/hermes"
	"github.com/MikeSquared-Agency/casenote/internal/identity"
	"github.com/MikeSquared-Agency/casenote/internal/pipeline"
	"github.com/MikeSquared-Agency/casenote/internal/record"
)

// Config holds the run command configuration.
type Config struct {
	InputDir         string
	OutputDir        string
	Format           string // json or jsonl
	Workers          int
	FallbackEncoding string
	SingleFile       string // process a single file only
	DryRun           bool   // structure and report, write nothing
}

// RecordSink persists records as they are produced.
type RecordSink interface {
	WriteRecord(ctx context.Context, runID string, rec *record.PatientRecord) (uuid.UUID, error)
}

// Publisher announces records and runs on the event bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// Result is the outcome of one run.
type Result struct {
	RunID       string
	SourceDir   string
	GeneratedAt time.Time
	Records     []*record.PatientRecord // ordered by source path
	Stats       Stats
	Duplicates  map[int][]string
	OutputPath  string
	SinkErrors  int
}

// Dataset assembles the single-document form of the result.
func (r *Result) Dataset() Dataset {
	patients := r.Records
	if patients == nil {
		patients = []*record.PatientRecord{}
	}
	stats := r.Stats
	if stats.Errors == nil {
		stats.Errors = []FileError{}
	}
	return Dataset{
		Meta: DatasetMeta{
			SchemaVersion:   SchemaVersion,
			PatientCentered: true,
			SourceDir:       r.SourceDir,
			RunID:           r.RunID,
			GeneratedAt:     r.GeneratedAt,
			DuplicateIDs:    sortedIDs(r.Duplicates),
		},
		Stats:    stats,
		Patients: patients,
	}
}

// Runner orchestrates a batch run.
type Runner struct {
	cfg    Config
	engine *pipeline.Engine
	sink   RecordSink
	pub    Publisher
	logger *slog.Logger
}

// NewRunner creates a runner. sink and pub are optional.
func NewRunner(cfg Config, engine *pipeline.Engine, sink RecordSink, pub Publisher, logger *slog.Logger) *Runner {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Runner{cfg: cfg, engine: engine, sink: sink, pub: pub, logger: logger}
}

type fileOutcome struct {
	path string
	rec  *record.PatientRecord
}

type workerState struct {
	stats      Stats
	outcomes   []fileOutcome
	sinkErrors int
}

// Run structures every transcript under the input directory. A failing file
// is recorded in the stats and the run carries on. On cancellation the
// partial result is returned with the context error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	res := &Result{
		RunID:     uuid.NewString(),
		SourceDir: expandHome(r.cfg.InputDir),
	}

	files, err := r.discoverFiles()
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	r.logger.Info("files discovered", "run_id", res.RunID, "files", len(files), "workers", r.cfg.Workers)

	workers := r.cfg.Workers
	if workers > len(files) {
		workers = len(files)
	}
	states := make([]workerState, workers)
	jobs := make(chan string)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for _, path := range files {
			select {
			case jobs <- path:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		st := &states[w]
		g.Go(func() error {
			for path := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				r.processFile(gctx, res.RunID, path, st)
			}
			return nil
		})
	}
	runErr := g.Wait()

	var outcomes []fileOutcome
	for _, st := range states {
		res.Stats.Merge(st.stats)
		res.SinkErrors += st.sinkErrors
		outcomes = append(outcomes, st.outcomes...)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].path < outcomes[j].path })
	for _, o := range outcomes {
		res.Records = append(res.Records, o.rec)
	}
	sort.Slice(res.Stats.Errors, func(i, j int) bool { return res.Stats.Errors[i].File < res.Stats.Errors[j].File })

	res.Duplicates = FindDuplicateIDs(fingerprints(files))
	for _, id := range sortedIDs(res.Duplicates) {
		r.logger.Warn("patient id listed by several files", "id", id, "files", res.Duplicates[id])
	}
	res.GeneratedAt = time.Now().UTC()

	if runErr != nil {
		r.logger.Info("run interrupted", "run_id", res.RunID, "converted", res.Stats.ConvertedFiles)
		return res, runErr
	}

	if r.cfg.OutputDir != "" && !r.cfg.DryRun {
		path, err := WriteOutput(expandHome(r.cfg.OutputDir), r.cfg.Format, res)
		if err != nil {
			return res, fmt.Errorf("write output: %w", err)
		}
		res.OutputPath = path
	}

	if r.pub != nil && !r.cfg.DryRun {
		if err := r.pub.Publish(hermes.SubjectRunCompleted, hermes.RunCompleted{
			RunID:          res.RunID,
			SourceDir:      res.SourceDir,
			TotalFiles:     res.Stats.TotalFiles,
			ConvertedFiles: res.Stats.ConvertedFiles,
			FailedFiles:    res.Stats.FailedFiles,
			TotalVisits:    res.Stats.TotalVisits,
			DuplicateIDs:   sortedIDs(res.Duplicates),
			CompletedAt:    res.GeneratedAt,
		}); err != nil {
			r.logger.Warn("failed to publish run completion", "error", err)
		}
	}

	r.logger.Info("run complete",
		"run_id", res.RunID,
		"total_files", res.Stats.TotalFiles,
		"converted_files", res.Stats.ConvertedFiles,
		"failed_files", res.Stats.FailedFiles,
		"total_visits", res.Stats.TotalVisits,
		"output", res.OutputPath,
		"dry_run", r.cfg.DryRun,
	)
	return res, nil
}

func (r *Runner) processFile(ctx context.Context, runID, path string, st *workerState) {
	name := filepath.Base(path)

	text, err := ReadTranscript(path, r.cfg.FallbackEncoding)
	if err != nil {
		r.logger.Warn("failed to read transcript", "path", path, "error", err)
		st.stats.AddError(name, err)
		return
	}

	rec, err := r.engine.Build(path, text)
	if err != nil {
		r.logger.Warn("failed to structure transcript", "path", path, "error", err)
		st.stats.AddError(name, err)
		return
	}

	st.stats.AddRecord(rec)
	st.outcomes = append(st.outcomes, fileOutcome{path: path, rec: rec})
	r.logger.Debug("file processed",
		"path", path,
		"patient_id", rec.PatientID,
		"visits", len(rec.Visits),
		"labeling_mode", rec.LabelingMode,
	)

	if r.cfg.DryRun {
		return
	}
	if r.sink != nil {
		if _, err := r.sink.WriteRecord(ctx, runID, rec); err != nil {
			r.logger.Error("persist failed", "path", path, "error", err)
			st.sinkErrors++
		}
	}
	if r.pub != nil {
		if err := r.pub.Publish(hermes.SubjectRecordStructured, hermes.NewRecordStructured(runID, rec)); err != nil {
			r.logger.Warn("failed to publish record", "path", path, "error", err)
		}
	}
}

// fingerprints collects the IDs each parsable filename lists.
func fingerprints(files []string) []idFingerprint {
	var fps []idFingerprint
	for _, path := range files {
		id, err := identity.Parse(pipeline.Stem(path))
		if err != nil {
			continue
		}
		fps = append(fps, idFingerprint{Path: filepath.Base(path), IDs: id.IDs})
	}
	return fps
}

// FormatRunSummary renders a human-readable report of a run.
func FormatRunSummary(res *Result) string {
	s := res.Stats
	var sb strings.Builder
	sb.WriteString("\n=== Run Summary ===\n")
	fmt.Fprintf(&sb, "Run: %s\n", res.RunID)
	fmt.Fprintf(&sb, "Files: %d total, %d converted, %d failed\n", s.TotalFiles, s.ConvertedFiles, s.FailedFiles)
	fmt.Fprintf(&sb, "Visits: %d\n", s.TotalVisits)
	fmt.Fprintf(&sb, "Labeling: %d explicit, %d heuristic\n", s.ExplicitFiles, s.HeuristicFiles)
	fmt.Fprintf(&sb, "Patients with keywords: %d, gender: %d, age: %d, scales: %d\n",
		s.PatientsWithKeywords, s.PatientsWithGender, s.PatientsWithAge, s.PatientsWithScales)

	if ids := sortedIDs(res.Duplicates); len(ids) > 0 {
		fmt.Fprintf(&sb, "Duplicate IDs: %d\n", len(ids))
		for _, id := range ids {
			fmt.Fprintf(&sb, "  - %d: %s\n", id, strings.Join(res.Duplicates[id], ", "))
		}
	}
	if len(s.Errors) > 0 {
		fmt.Fprintf(&sb, "Errors: %d\n", len(s.Errors))
		for _, e := range s.Errors {
			fmt.Fprintf(&sb, "  - %s: %s\n", e.File, e.Error)
		}
	}
	if res.SinkErrors > 0 {
		fmt.Fprintf(&sb, "Database write failures: %d\n", res.SinkErrors)
	}
	if res.OutputPath != "" {
		fmt.Fprintf(&sb, "Output: %s\n", res.OutputPath)
	}
	return sb.String()
}

func (r *Runner) discoverFiles() ([]string, error) {
	if r.cfg.SingleFile != "" {
		path := expandHome(r.cfg.SingleFile)
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("single file not found: %s", path)
		}
		return []string{path}, nil
	}

	dir := expandHome(r.cfg.InputDir)
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("input dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("input dir %s is not a directory", dir)
	}

	var files []string
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			r.logger.Warn("error walking input dir", "path", path, "error", err)
			return nil
		}
		if !d.IsDir() && IsTranscriptFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// IsTranscriptFile reports whether a filename looks like a transcript.
func IsTranscriptFile(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".txt") && !strings.HasPrefix(name, ".")
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
