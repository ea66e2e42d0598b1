package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/MikeSquared-Agency/casenote/internal/record"
	"github.com/MikeSquared-Agency/casenote/internal/transcript"
)

// FileError is one failed file in a run.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// Stats counts what a run produced. Each worker fills its own Stats and
// the partials are combined with Merge once the workers finish.
type Stats struct {
	TotalFiles           int         `json:"total_files"`
	ConvertedFiles       int         `json:"converted_files"`
	FailedFiles          int         `json:"failed_files"`
	PatientsWithKeywords int         `json:"patients_with_keywords"`
	PatientsWithGender   int         `json:"patients_with_gender"`
	PatientsWithAge      int         `json:"patients_with_age"`
	PatientsWithScales   int         `json:"patients_with_scales"`
	TotalVisits          int         `json:"total_visits"`
	ExplicitFiles        int         `json:"explicit_files"`
	HeuristicFiles       int         `json:"heuristic_files"`
	Errors               []FileError `json:"errors"`
}

// AddRecord counts a successfully converted file.
func (s *Stats) AddRecord(rec *record.PatientRecord) {
	s.TotalFiles++
	s.ConvertedFiles++
	s.TotalVisits += len(rec.Visits)
	if len(rec.Keywords) > 0 {
		s.PatientsWithKeywords++
	}
	if rec.Gender != nil {
		s.PatientsWithGender++
	}
	if rec.Age != nil {
		s.PatientsWithAge++
	}
	if rec.HasScales() {
		s.PatientsWithScales++
	}
	switch rec.LabelingMode {
	case transcript.ModeExplicit:
		s.ExplicitFiles++
	case transcript.ModeHeuristic:
		s.HeuristicFiles++
	}
}

// AddError counts a failed file.
func (s *Stats) AddError(file string, err error) {
	s.TotalFiles++
	s.FailedFiles++
	s.Errors = append(s.Errors, FileError{File: file, Error: err.Error()})
}

// Merge adds o's counts to s.
func (s *Stats) Merge(o Stats) {
	s.TotalFiles += o.TotalFiles
	s.ConvertedFiles += o.ConvertedFiles
	s.FailedFiles += o.FailedFiles
	s.PatientsWithKeywords += o.PatientsWithKeywords
	s.PatientsWithGender += o.PatientsWithGender
	s.PatientsWithAge += o.PatientsWithAge
	s.PatientsWithScales += o.PatientsWithScales
	s.TotalVisits += o.TotalVisits
	s.ExplicitFiles += o.ExplicitFiles
	s.HeuristicFiles += o.HeuristicFiles
	s.Errors = append(s.Errors, o.Errors...)
}

// Save writes the stats as indented JSON, creating parent directories.
func (s *Stats) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	out := *s
	if out.Errors == nil {
		out.Errors = []FileError{}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}
