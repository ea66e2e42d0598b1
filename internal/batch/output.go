package batch

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MikeSquared-Agency/casenote/internal/record"
)

// SchemaVersion is the version of the dataset document layout.
const SchemaVersion = "0.2"

const (
	FormatJSON  = "json"
	FormatJSONL = "jsonl"
)

// DatasetMeta describes a run's output.
type DatasetMeta struct {
	SchemaVersion   string    `json:"schema_version"`
	PatientCentered bool      `json:"patient_centered"`
	SourceDir       string    `json:"source_dir"`
	RunID           string    `json:"run_id"`
	GeneratedAt     time.Time `json:"generated_at"`
	DuplicateIDs    []int     `json:"duplicate_ids"`
}

// Dataset is the single-document output of a run.
type Dataset struct {
	Meta     DatasetMeta             `json:"dataset_meta"`
	Stats    Stats                   `json:"stats"`
	Patients []*record.PatientRecord `json:"patients"`
}

// WriteOutput writes the run's records to dir in the given format and the
// stats next to them as stats.json. It returns the path of the records file.
func WriteOutput(dir, format string, res *Result) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}

	var path string
	var err error
	switch format {
	case FormatJSONL:
		path = filepath.Join(dir, "dataset.jsonl")
		err = writeJSONL(path, res.Records)
	case FormatJSON, "":
		path = filepath.Join(dir, "dataset.json")
		err = writeJSON(path, res.Dataset())
	default:
		return "", fmt.Errorf("unknown output format %q", format)
	}
	if err != nil {
		return "", err
	}

	if err := res.Stats.Save(filepath.Join(dir, "stats.json")); err != nil {
		return "", fmt.Errorf("save stats: %w", err)
	}
	return path, nil
}

func writeJSON(path string, ds Dataset) error {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func writeJSONL(path string, records []*record.PatientRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encode %s: %w", rec.PatientID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", path, err)
	}
	return f.Close()
}
