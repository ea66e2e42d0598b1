// Package pipeline turns one transcript file into a PatientRecord.
package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/MikeSquared-Agency/casenote/internal/identity"
	"github.com/MikeSquared-Agency/casenote/internal/record"
	"github.com/MikeSquared-Agency/casenote/internal/scales"
	"github.com/MikeSquared-Agency/casenote/internal/transcript"
)

// ErrEmptyTranscript is returned when a transcript has no dialogue to structure.
var ErrEmptyTranscript = errors.New("empty transcript")

// Options select which structuring steps run.
type Options struct {
	SegmentVisits bool // split the body at visit markers
	ExtractTurns  bool // label speaker turns
}

// DefaultOptions runs every step.
var DefaultOptions = Options{SegmentVisits: true, ExtractTurns: true}

// Engine structures transcripts. It is safe for concurrent use.
type Engine struct {
	opts   Options
	linker *scales.Linker
	logger *slog.Logger
}

// NewEngine creates an engine. linker may be nil, in which case records
// carry no scale results.
func NewEngine(opts Options, linker *scales.Linker, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{opts: opts, linker: linker, logger: logger}
}

// Options returns the engine's configuration.
func (e *Engine) Options() Options {
	return e.opts
}

// Stem returns the filename without directory or extension.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Build structures the text of the transcript at path. The path is only
// used for its filename; nothing is read from disk.
func (e *Engine) Build(path, text string) (*record.PatientRecord, error) {
	stem := Stem(path)
	id, err := identity.Parse(stem)
	if err != nil {
		return nil, err
	}

	header, body := transcript.SplitHeader(text)
	if body == "" {
		return nil, fmt.Errorf("%s: no dialogue body: %w", stem, ErrEmptyTranscript)
	}

	var segments []transcript.Segment
	if e.opts.SegmentVisits {
		segments = transcript.SegmentVisits(body)
	} else {
		segments = []transcript.Segment{{Index: 1, Content: body}}
	}
	if len(segments) == 0 {
		return nil, fmt.Errorf("%s: only visit markers: %w", stem, ErrEmptyTranscript)
	}

	mode := transcript.ModeNone
	var visitTurns [][]transcript.Turn
	if e.opts.ExtractTurns {
		labeled := transcript.ExtractTurns(segments, hintsFor(id, stem))
		if labeled.TotalTurns() == 0 {
			return nil, fmt.Errorf("%s: no dialogue turns: %w", stem, ErrEmptyTranscript)
		}
		mode = labeled.Mode
		visitTurns = labeled.Visits
		if labeled.Passthrough > 0 {
			e.logger.Debug("unlabeled lines passed through",
				"file", filepath.Base(path),
				"lines", labeled.Passthrough,
			)
		}
	}

	rec := &record.PatientRecord{
		PatientID:    record.PatientID(id.Primary()),
		LinkedIDs:    id.IDs,
		Name:         id.Name,
		TitleRaw:     id.TitleRaw,
		Gender:       id.Gender,
		Age:          id.Age,
		Keywords:     header.Keywords,
		LabelingMode: mode,
		Scales:       []scales.ScaleResult{},
	}

	if e.linker != nil {
		results, err := e.linker.Link(id.IDs)
		if err != nil {
			return nil, fmt.Errorf("link scales for %s: %w", stem, err)
		}
		if results != nil {
			rec.Scales = results
		}
	}

	for i, seg := range segments {
		v := record.Visit{
			VisitID: record.VisitID(id.Primary(), seg.Index),
			Dialogue: record.Dialogue{
				SourceFile:   filepath.Base(path),
				LabelingMode: mode,
				Content:      seg.Content,
				Turns:        []transcript.Turn{},
			},
		}
		if visitTurns != nil && visitTurns[i] != nil {
			v.Dialogue.Turns = visitTurns[i]
		}
		var ts *transcript.Timestamp
		if i == 0 {
			ts = header.HeaderTime
		}
		if ts == nil {
			ts = transcript.FindTimestamp(seg.Content)
		}
		if ts != nil {
			v.VisitTime = ts.String()
			v.VisitTimeRaw = ts.Raw
		}
		rec.Visits = append(rec.Visits, v)
	}

	e.logger.Debug("transcript structured",
		"patient_id", rec.PatientID,
		"visits", len(rec.Visits),
		"turns", rec.TurnCount(),
		"labeling_mode", mode,
	)
	return rec, nil
}

// Label rewrites a transcript with canonical speaker labels. The header is
// kept as written when the text has explicit markers; otherwise only the
// keyword block is carried over ahead of the relabeled body.
func (e *Engine) Label(path, text string) (string, transcript.Mode, error) {
	stem := Stem(path)
	hints := transcript.Hints{Age: identity.AgeFromStem(stem)}
	if id, err := identity.Parse(stem); err == nil {
		hints = hintsFor(id, stem)
	}

	prefix, body, ok := transcript.SplitBody(text)
	if !ok {
		var h transcript.Header
		h, body = transcript.SplitHeader(text)
		prefix = ""
		if len(h.Keywords) > 0 {
			prefix = "关键词：\n" + strings.Join(h.Keywords, "、") + "\n\n"
		}
	}
	if strings.TrimSpace(body) == "" {
		return "", transcript.ModeNone, ErrEmptyTranscript
	}

	out, labeled := transcript.Normalize(body, hints)
	if labeled.TotalTurns() == 0 {
		return "", transcript.ModeNone, ErrEmptyTranscript
	}
	return prefix + out, labeled.Mode, nil
}

func hintsFor(id identity.Identity, stem string) transcript.Hints {
	if id.Age != nil {
		return transcript.Hints{Age: id.Age}
	}
	return transcript.Hints{Age: identity.AgeFromStem(stem)}
}
