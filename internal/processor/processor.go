package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/casenote/internal/batch"
	"github.com/MikeSquared-Agency/casenote/internal/hermes"
	"github.com/MikeSquared-Agency/casenote/internal/identity"
	"github.com/MikeSquared-Agency/casenote/internal/pipeline"
	"github.com/MikeSquared-Agency/casenote/internal/record"
	"github.com/MikeSquared-Agency/casenote/internal/scales"
)

// Processor structures transcripts that arrive one at a time, from the
// event bus, the HTTP API or the directory watcher.
type Processor struct {
	engine   *pipeline.Engine
	sink     batch.RecordSink
	pub      batch.Publisher
	fallback string
	logger   *slog.Logger

	// sessionID stands in for a run ID on records stored while serving.
	sessionID string

	mu    sync.Mutex
	stats batch.Stats
}

// New creates a processor. sink and pub may be nil.
func New(engine *pipeline.Engine, sink batch.RecordSink, pub batch.Publisher, fallbackEncoding string, logger *slog.Logger) *Processor {
	return &Processor{
		engine:    engine,
		sink:      sink,
		pub:       pub,
		fallback:  fallbackEncoding,
		logger:    logger,
		sessionID: "serve-" + uuid.NewString(),
	}
}

// SessionID identifies records stored by this processor.
func (p *Processor) SessionID() string {
	return p.sessionID
}

// HandleTranscriptSubmitted is the NATS handler for clinical.transcript.submitted.
func (p *Processor) HandleTranscriptSubmitted(subject string, data []byte) {
	var evt hermes.TranscriptSubmitted
	if err := json.Unmarshal(data, &evt); err != nil {
		p.logger.Error("failed to parse transcript event", "subject", subject, "error", err)
		return
	}
	if evt.Filename == "" {
		p.logger.Warn("transcript event without filename", "subject", subject)
		return
	}

	p.logger.Info("processing transcript", "filename", evt.Filename, "bytes", len(evt.Text))
	if _, err := p.Process(context.Background(), evt.Filename, evt.Text); err != nil {
		p.logger.Warn("transcript rejected", "filename", evt.Filename, "error", err)
	}
}

// HandleStructureRequest answers clinical.transcript.structure requests with
// the structured record.
func (p *Processor) HandleStructureRequest(data []byte) (any, error) {
	var evt hermes.TranscriptSubmitted
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("parse request: %w", err)
	}
	if evt.Filename == "" {
		return nil, errors.New("filename is required")
	}
	return p.Process(context.Background(), evt.Filename, evt.Text)
}

// ProcessFile reads and structures a transcript from disk.
func (p *Processor) ProcessFile(ctx context.Context, path string) (*record.PatientRecord, error) {
	text, err := batch.ReadTranscript(path, p.fallback)
	if err != nil {
		p.fail(filepath.Base(path), err)
		return nil, err
	}
	return p.Process(ctx, path, text)
}

// Process structures one transcript, stores it and announces it. A storage
// or publish failure is logged; the record is still returned.
func (p *Processor) Process(ctx context.Context, filename, text string) (*record.PatientRecord, error) {
	rec, err := p.engine.Build(filename, text)
	if err != nil {
		p.fail(filepath.Base(filename), err)
		return nil, err
	}

	p.mu.Lock()
	p.stats.AddRecord(rec)
	p.mu.Unlock()

	if p.sink != nil {
		if _, err := p.sink.WriteRecord(ctx, p.sessionID, rec); err != nil {
			p.logger.Error("persistence failed", "patient_id", rec.PatientID, "error", err)
		}
	}
	if p.pub != nil {
		if err := p.pub.Publish(hermes.SubjectRecordStructured, hermes.NewRecordStructured(p.sessionID, rec)); err != nil {
			p.logger.Warn("failed to publish record", "patient_id", rec.PatientID, "error", err)
		}
	}

	p.logger.Info("transcript processed",
		"patient_id", rec.PatientID,
		"visits", len(rec.Visits),
		"turns", rec.TurnCount(),
		"labeling_mode", rec.LabelingMode,
	)
	return rec, nil
}

// Stats returns a copy of the counters since startup.
func (p *Processor) Stats() batch.Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Errors = append([]batch.FileError(nil), p.stats.Errors...)
	return s
}

func (p *Processor) fail(name string, err error) {
	p.mu.Lock()
	p.stats.AddError(name, err)
	p.mu.Unlock()

	if p.pub == nil {
		return
	}
	if perr := p.pub.Publish(hermes.SubjectTranscriptFailed, hermes.TranscriptFailed{
		Filename: name,
		Error:    err.Error(),
	}); perr != nil {
		p.logger.Warn("failed to publish failure", "filename", name, "error", perr)
	}
}

// ErrorKind names the transcript problem behind err. Errors that are not
// the transcript's fault map to "internal".
func ErrorKind(err error) string {
	var (
		malformed *identity.MalformedIdentifierError
		column    *scales.ColumnNotFoundError
		cell      *scales.CellValueError
		encoding  *batch.EncodingError
	)
	switch {
	case errors.Is(err, pipeline.ErrEmptyTranscript):
		return "empty_transcript"
	case errors.As(err, &malformed):
		return "malformed_identifier"
	case errors.As(err, &column):
		return "scale_column_not_found"
	case errors.As(err, &cell):
		return "scale_cell_value"
	case errors.As(err, &encoding):
		return "encoding"
	}
	return "internal"
}

// IsClientError reports whether err comes from the transcript itself.
func IsClientError(err error) bool {
	return err != nil && ErrorKind(err) != "internal"
}
