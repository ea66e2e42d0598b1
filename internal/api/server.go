package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/casenote/internal/pipeline"
	"github.com/MikeSquared-Agency/casenote/internal/processor"
	"github.com/MikeSquared-Agency/casenote/internal/store"
)

// maxTranscriptBytes bounds request bodies.
const maxTranscriptBytes = 8 << 20

// RecordReader looks up stored records.
type RecordReader interface {
	GetRecord(ctx context.Context, patientID string) (*store.RecordRow, error)
}

type Server struct {
	router  *chi.Mux
	port    int
	engine  *pipeline.Engine
	proc    *processor.Processor
	records RecordReader
	started time.Time
	httpSrv *http.Server
}

// TranscriptRequest is the body of both transcript endpoints.
type TranscriptRequest struct {
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// LabelResponse carries the canonical labeled text.
type LabelResponse struct {
	Text         string `json:"text"`
	LabelingMode string `json:"labeling_mode"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func NewServer(port int, engine *pipeline.Engine, proc *processor.Processor) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		engine:  engine,
		proc:    proc,
		started: time.Now().UTC(),
	}
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/casenote/status", s.status)
	router.Post("/api/v1/transcripts", s.structure)
	router.Post("/api/v1/transcripts/label", s.label)
	router.Get("/api/v1/patients/{patientID}", s.patient)

	return s
}

// WithRecords enables patient lookups against stored records.
func (s *Server) WithRecords(records RecordReader) *Server {
	s.records = records
	return s
}

func (s *Server) Start() error {
	slog.Info("API server starting", "addr", s.httpSrv.Addr)
	if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server once in-flight requests finish.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"agent":          "casenote",
		"status":         "ok",
		"started_at":     s.started,
		"segment_visits": s.engine.Options().SegmentVisits,
		"extract_turns":  s.engine.Options().ExtractTurns,
	}
	if s.proc != nil {
		body["session_id"] = s.proc.SessionID()
		body["stats"] = s.proc.Stats()
	}
	writeJSON(w, http.StatusOK, body)
}

// structure handles POST /api/v1/transcripts.
func (s *Server) structure(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTranscript(w, r, true)
	if !ok {
		return
	}
	rec, err := s.proc.Process(r.Context(), req.Filename, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// label handles POST /api/v1/transcripts/label.
func (s *Server) label(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeTranscript(w, r, false)
	if !ok {
		return
	}
	text, mode, err := s.engine.Label(req.Filename, req.Text)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LabelResponse{Text: text, LabelingMode: string(mode)})
}

// patient handles GET /api/v1/patients/{patientID}.
func (s *Server) patient(w http.ResponseWriter, r *http.Request) {
	if s.records == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "record storage is not configured"})
		return
	}
	row, err := s.records.GetRecord(r.Context(), chi.URLParam(r, "patientID"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
		return
	}
	if err != nil {
		slog.Error("record lookup failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: "internal"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":    row.RunID,
		"stored_at": row.CreatedAt,
		"record":    row.Record,
	})
}

// decodeTranscript reads the request body. The filename carries the patient
// identity, so structuring needs it; labeling only uses it for hints.
func decodeTranscript(w http.ResponseWriter, r *http.Request, needFilename bool) (TranscriptRequest, bool) {
	var req TranscriptRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxTranscriptBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: fmt.Sprintf("invalid JSON: %v", err)})
		return req, false
	}
	if needFilename && req.Filename == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "filename is required"})
		return req, false
	}
	return req, true
}

func writeError(w http.ResponseWriter, err error) {
	if processor.IsClientError(err) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), Kind: processor.ErrorKind(err)})
		return
	}
	slog.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error", Kind: "internal"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
