// Package watch structures transcripts dropped into the input directory
// while the service runs.
package watch

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MikeSquared-Agency/casenote/internal/batch"
	"github.com/MikeSquared-Agency/casenote/internal/record"
)

// DefaultSettle is how long a file must stay quiet before it is processed.
const DefaultSettle = 500 * time.Millisecond

// FileProcessor structures one transcript file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) (*record.PatientRecord, error)
}

// Watcher monitors a directory for new or rewritten transcripts.
type Watcher struct {
	dir    string
	settle time.Duration
	proc   FileProcessor
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// New creates a watcher on dir. A settle of zero uses DefaultSettle.
func New(dir string, settle time.Duration, proc FileProcessor, logger *slog.Logger) *Watcher {
	if settle <= 0 {
		settle = DefaultSettle
	}
	return &Watcher{
		dir:     dir,
		settle:  settle,
		proc:    proc,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}
}

// Start begins watching. It returns once the watch is registered; events
// are handled until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return err
	}

	go func() {
		defer fsw.Close()
		for {
			select {
			case <-ctx.Done():
				w.stop()
				return
			case evt, ok := <-fsw.Events:
				if !ok {
					return
				}
				if evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0 && batch.IsTranscriptFile(filepath.Base(evt.Name)) {
					w.schedule(ctx, evt.Name)
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				w.logger.Warn("watcher error", "error", err)
			}
		}
	}()

	w.logger.Info("watching for transcripts", "dir", w.dir)
	return nil
}

// Wait blocks until every scheduled file has been processed.
func (w *Watcher) Wait() {
	w.wg.Wait()
}

// schedule processes path once no event has touched it for the settle time.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok && t.Stop() {
		t.Reset(w.settle)
		return
	}
	w.wg.Add(1)
	var timer *time.Timer
	timer = time.AfterFunc(w.settle, func() {
		defer w.wg.Done()
		w.mu.Lock()
		if w.pending[path] == timer {
			delete(w.pending, path)
		}
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		rec, err := w.proc.ProcessFile(ctx, path)
		if err != nil {
			w.logger.Warn("failed to structure new transcript", "path", path, "error", err)
			return
		}
		w.logger.Info("new transcript structured", "path", path, "patient_id", rec.PatientID)
	})
	w.pending[path] = timer
}

func (w *Watcher) stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}
