package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MikeSquared-Agency/casenote/internal/record"
)

// WriteRecord stores rec as a JSON document, replacing any earlier copy
// from the same source file.
func (s *Store) WriteRecord(ctx context.Context, runID string, rec *record.PatientRecord) (uuid.UUID, error) {
	doc, err := json.Marshal(rec)
	if err != nil {
		return uuid.Nil, fmt.Errorf("marshal record: %w", err)
	}
	source := ""
	if len(rec.Visits) > 0 {
		source = rec.Visits[0].Dialogue.SourceFile
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		DELETE FROM patient_records WHERE patient_id = $1 AND source_file = $2`,
		rec.PatientID, source,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("delete previous record: %w", err)
	}

	id := uuid.New()
	_, err = tx.Exec(ctx, `
		INSERT INTO patient_records (id, run_id, patient_id, source_file, labeling_mode, visits, document, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())`,
		id, runID, rec.PatientID, source, string(rec.LabelingMode), len(rec.Visits), doc,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return uuid.Nil, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ErrNotFound is returned when no record is stored for a patient.
var ErrNotFound = errors.New("record not found")

// GetRecord fetches the most recent record stored for a patient.
func (s *Store) GetRecord(ctx context.Context, patientID string) (*RecordRow, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, run_id, patient_id, source_file, labeling_mode, visits, document, created_at
		FROM patient_records WHERE patient_id = $1
		ORDER BY created_at DESC LIMIT 1`, patientID)

	var r RecordRow
	var doc []byte
	err := row.Scan(&r.ID, &r.RunID, &r.PatientID, &r.SourceFile, &r.LabelingMode, &r.Visits, &doc, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(doc, &r.Record); err != nil {
		return nil, fmt.Errorf("decode record document: %w", err)
	}
	return &r, nil
}

// CountByRun returns how many records a run stored.
func (s *Store) CountByRun(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM patient_records WHERE run_id = $1`, runID).Scan(&n)
	return n, err
}

type RecordRow struct {
	ID           uuid.UUID
	RunID        string
	PatientID    string
	SourceFile   string
	LabelingMode string
	Visits       int
	CreatedAt    time.Time
	Record       record.PatientRecord
}
