package watch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/casenote/internal/record"
)

type recordingProcessor struct {
	mu    sync.Mutex
	paths []string
	done  chan string
}

func newRecordingProcessor() *recordingProcessor {
	return &recordingProcessor{done: make(chan string, 16)}
}

func (p *recordingProcessor) ProcessFile(_ context.Context, path string) (*record.PatientRecord, error) {
	p.mu.Lock()
	p.paths = append(p.paths, path)
	p.mu.Unlock()
	p.done <- path
	if filepath.Base(path) == "bad.txt" {
		return nil, errors.New("malformed")
	}
	return &record.PatientRecord{PatientID: "P-000001"}, nil
}

func (p *recordingProcessor) calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.paths...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSchedule_Debounces(t *testing.T) {
	proc := newRecordingProcessor()
	w := New(t.TempDir(), 50*time.Millisecond, proc, quietLogger())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		w.schedule(ctx, "/in/1张三.txt")
	}
	w.schedule(ctx, "/in/bad.txt")
	w.Wait()

	assert.ElementsMatch(t, []string{"/in/1张三.txt", "/in/bad.txt"}, proc.calls())
}

func TestSchedule_CancelledContextSkips(t *testing.T) {
	proc := newRecordingProcessor()
	w := New(t.TempDir(), 10*time.Millisecond, proc, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.schedule(ctx, "/in/1张三.txt")
	w.Wait()

	assert.Empty(t, proc.calls())
}

func TestStop_DropsPending(t *testing.T) {
	proc := newRecordingProcessor()
	w := New(t.TempDir(), time.Hour, proc, quietLogger())

	w.schedule(context.Background(), "/in/1张三.txt")
	w.stop()
	w.Wait()

	assert.Empty(t, proc.calls())
}

func TestStart_ProcessesNewTranscripts(t *testing.T) {
	dir := t.TempDir()
	proc := newRecordingProcessor()
	w := New(dir, 200*time.Millisecond, proc, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0o644))
	path := filepath.Join(dir, "41江凤敏.txt")
	require.NoError(t, os.WriteFile(path, []byte("【D】你好\n"), 0o644))

	select {
	case got := <-proc.done:
		assert.Equal(t, path, got)
	case <-time.After(5 * time.Second):
		t.Fatal("transcript was not processed")
	}
	w.Wait()
	assert.Equal(t, []string{path}, proc.calls())
}

func TestStart_MissingDir(t *testing.T) {
	w := New(filepath.Join(t.TempDir(), "missing"), 0, newRecordingProcessor(), quietLogger())
	assert.Error(t, w.Start(context.Background()))
}
