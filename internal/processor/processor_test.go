package processor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/casenote/internal/batch"
	"github.com/MikeSquared-Agency/casenote/internal/hermes"
	"github.com/MikeSquared-Agency/casenote/internal/identity"
	"github.com/MikeSquared-Agency/casenote/internal/pipeline"
	"github.com/MikeSquared-Agency/casenote/internal/record"
	"github.com/MikeSquared-Agency/casenote/internal/scales"
)

type published struct {
	subject string
	data    any
}

type fakeBus struct {
	mu     sync.Mutex
	events []published
}

func (f *fakeBus) Publish(subject string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, published{subject, data})
	return nil
}

type fakeSink struct {
	runIDs []string
	recs   []*record.PatientRecord
	err    error
}

func (f *fakeSink) WriteRecord(_ context.Context, runID string, rec *record.PatientRecord) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	f.runIDs = append(f.runIDs, runID)
	f.recs = append(f.recs, rec)
	return uuid.New(), nil
}

func newTestProcessor(sink batch.RecordSink, pub batch.Publisher) *Processor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(pipeline.NewEngine(pipeline.DefaultOptions, nil, logger), sink, pub, batch.EncodingGB18030, logger)
}

func TestProcess_StoresAndPublishes(t *testing.T) {
	sink, bus := &fakeSink{}, &fakeBus{}
	p := newTestProcessor(sink, bus)

	rec, err := p.Process(context.Background(), "41江凤敏 男 35岁.txt", "【D】你好\n【P】头疼\n")
	require.NoError(t, err)
	assert.Equal(t, "P-000041", rec.PatientID)

	require.Len(t, sink.recs, 1)
	assert.Equal(t, p.SessionID(), sink.runIDs[0])

	require.Len(t, bus.events, 1)
	assert.Equal(t, hermes.SubjectRecordStructured, bus.events[0].subject)
	evt := bus.events[0].data.(hermes.RecordStructured)
	assert.Equal(t, "P-000041", evt.PatientID)
	assert.Equal(t, 2, evt.Turns)

	stats := p.Stats()
	assert.Equal(t, 1, stats.ConvertedFiles)
	assert.Equal(t, 0, stats.FailedFiles)
}

func TestProcess_FailurePublishesTranscriptFailed(t *testing.T) {
	bus := &fakeBus{}
	p := newTestProcessor(nil, bus)

	_, err := p.Process(context.Background(), "no-id.txt", "【D】你好\n")
	require.Error(t, err)
	assert.Equal(t, "malformed_identifier", ErrorKind(err))
	assert.True(t, IsClientError(err))

	require.Len(t, bus.events, 1)
	assert.Equal(t, hermes.SubjectTranscriptFailed, bus.events[0].subject)
	assert.Equal(t, "no-id.txt", bus.events[0].data.(hermes.TranscriptFailed).Filename)

	stats := p.Stats()
	assert.Equal(t, 1, stats.FailedFiles)
	require.Len(t, stats.Errors, 1)
	assert.Equal(t, "no-id.txt", stats.Errors[0].File)
}

func TestProcess_SinkErrorStillReturnsRecord(t *testing.T) {
	sink := &fakeSink{err: errors.New("db down")}
	p := newTestProcessor(sink, nil)

	rec, err := p.Process(context.Background(), "7赵六.txt", "【D】你好\n")
	require.NoError(t, err)
	assert.Equal(t, "P-000007", rec.PatientID)
}

func TestHandleTranscriptSubmitted(t *testing.T) {
	bus := &fakeBus{}
	p := newTestProcessor(nil, bus)

	data, err := json.Marshal(hermes.TranscriptSubmitted{Filename: "9张三.txt", Text: "【D】你好\n【P】嗯\n"})
	require.NoError(t, err)
	p.HandleTranscriptSubmitted(hermes.SubjectTranscriptSubmitted, data)

	require.Len(t, bus.events, 1)
	assert.Equal(t, hermes.SubjectRecordStructured, bus.events[0].subject)

	// Garbage and events without a filename are dropped without counting.
	p.HandleTranscriptSubmitted(hermes.SubjectTranscriptSubmitted, []byte("{not json"))
	p.HandleTranscriptSubmitted(hermes.SubjectTranscriptSubmitted, []byte(`{"text":"x"}`))
	assert.Len(t, bus.events, 1)
	assert.Equal(t, 1, p.Stats().TotalFiles)
}

func TestHandleStructureRequest(t *testing.T) {
	p := newTestProcessor(nil, nil)

	data, err := json.Marshal(hermes.TranscriptSubmitted{Filename: "9张三.txt", Text: "【D】你好\n【P】嗯\n"})
	require.NoError(t, err)
	resp, err := p.HandleStructureRequest(data)
	require.NoError(t, err)
	assert.Equal(t, "P-000009", resp.(*record.PatientRecord).PatientID)

	_, err = p.HandleStructureRequest([]byte(`{"text":"x"}`))
	assert.ErrorContains(t, err, "filename is required")

	_, err = p.HandleStructureRequest([]byte(`{"filename":"9张三.txt","text":""}`))
	assert.ErrorIs(t, err, pipeline.ErrEmptyTranscript)
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "3李四.txt")
	require.NoError(t, os.WriteFile(good, []byte("\ufeff【D】你好\n【P】失眠\n"), 0o644))
	bad := filepath.Join(dir, "4王五.txt")
	require.NoError(t, os.WriteFile(bad, []byte{0xff, 0xff, 0xff}, 0o644))

	p := newTestProcessor(nil, nil)

	rec, err := p.ProcessFile(context.Background(), good)
	require.NoError(t, err)
	assert.Equal(t, "P-000003", rec.PatientID)
	assert.Equal(t, "3李四.txt", rec.Visits[0].Dialogue.SourceFile)

	_, err = p.ProcessFile(context.Background(), bad)
	require.Error(t, err)
	assert.Equal(t, "encoding", ErrorKind(err))
}

func TestErrorKind(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("x: %w", pipeline.ErrEmptyTranscript), "empty_transcript"},
		{&identity.MalformedIdentifierError{Stem: "abc"}, "malformed_identifier"},
		{&scales.ColumnNotFoundError{Prefix: "G1."}, "scale_column_not_found"},
		{fmt.Errorf("wrap: %w", &scales.CellValueError{Column: "G1", Value: "x"}), "scale_cell_value"},
		{&batch.EncodingError{Path: "a.txt"}, "encoding"},
		{errors.New("boom"), "internal"},
	}
	for _, tc := range cases {
		if got := ErrorKind(tc.err); got != tc.want {
			t.Errorf("ErrorKind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
	if IsClientError(nil) {
		t.Error("nil is not a client error")
	}
}
