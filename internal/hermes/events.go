package hermes

import (
	"time"

	"github.com/MikeSquared-Agency/casenote/internal/record"
)

const (
	// SubjectTranscriptSubmitted carries raw transcripts to structure.
	SubjectTranscriptSubmitted = "clinical.transcript.submitted"
	// SubjectRecordStructured is published once per structured record.
	SubjectRecordStructured = "clinical.record.structured"
	// SubjectRunCompleted is published when a batch run finishes.
	SubjectRunCompleted = "clinical.run.completed"
	// SubjectTranscriptFailed reports a submitted transcript that could not be structured.
	SubjectTranscriptFailed = "clinical.transcript.failed"
	// SubjectStructureRequest is request/reply: a TranscriptSubmitted in, a PatientRecord out.
	SubjectStructureRequest = "clinical.transcript.structure"
)

// TranscriptSubmitted is the payload of SubjectTranscriptSubmitted.
type TranscriptSubmitted struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// RecordStructured announces a new PatientRecord.
type RecordStructured struct {
	RunID        string                `json:"run_id"`
	SourceFile   string                `json:"source_file"`
	PatientID    string                `json:"patient_id"`
	LabelingMode string                `json:"labeling_mode"`
	Visits       int                   `json:"visits"`
	Turns        int                   `json:"turns"`
	Record       *record.PatientRecord `json:"record"`
}

// RunCompleted summarises a batch run.
type RunCompleted struct {
	RunID          string    `json:"run_id"`
	SourceDir      string    `json:"source_dir"`
	TotalFiles     int       `json:"total_files"`
	ConvertedFiles int       `json:"converted_files"`
	FailedFiles    int       `json:"failed_files"`
	TotalVisits    int       `json:"total_visits"`
	DuplicateIDs   []int     `json:"duplicate_ids,omitempty"`
	CompletedAt    time.Time `json:"completed_at"`
}

// TranscriptFailed reports why a submitted transcript was rejected.
type TranscriptFailed struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// ErrorReply is sent back on a failed request.
type ErrorReply struct {
	Error string `json:"error"`
}

// NewRecordStructured builds the event for rec.
func NewRecordStructured(runID string, rec *record.PatientRecord) RecordStructured {
	evt := RecordStructured{
		RunID:        runID,
		PatientID:    rec.PatientID,
		LabelingMode: string(rec.LabelingMode),
		Visits:       len(rec.Visits),
		Turns:        rec.TurnCount(),
		Record:       rec,
	}
	if len(rec.Visits) > 0 {
		evt.SourceFile = rec.Visits[0].Dialogue.SourceFile
	}
	return evt
}
