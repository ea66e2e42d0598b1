//go:build integration

package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/MikeSquared-Agency/casenote/internal/record"
	"github.com/MikeSquared-Agency/casenote/internal/scales"
	"github.com/MikeSquared-Agency/casenote/internal/transcript"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	ctx := context.Background()
	s, err := New(ctx, dbURL)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func testRecord(patientID string) *record.PatientRecord {
	return &record.PatientRecord{
		PatientID:    patientID,
		LinkedIDs:    []int{41},
		Name:         "江凤敏",
		TitleRaw:     "江凤敏 男 35岁",
		LabelingMode: transcript.ModeExplicit,
		Scales:       []scales.ScaleResult{scales.NewResult(scales.GAD7, scales.RespondentSelf, []int{1, 2, 0, 0, 1, 0, 0})},
		Visits: []record.Visit{{
			VisitID: "V-000041-1",
			Dialogue: record.Dialogue{
				SourceFile:   "41江凤敏 男 35岁.txt",
				LabelingMode: transcript.ModeExplicit,
				Content:      "【D】你好",
				Turns:        []transcript.Turn{{Role: transcript.RoleDoctor, Text: "你好"}},
			},
		}},
	}
}

func TestIntegration_WriteAndGetRecord(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	runID := "integration-test-" + uuid.New().String()[:8]
	patientID := "P-IT-" + uuid.New().String()[:8]

	id, err := s.WriteRecord(ctx, runID, testRecord(patientID))
	if err != nil {
		t.Fatalf("WriteRecord failed: %v", err)
	}
	if id == uuid.Nil {
		t.Fatal("expected non-nil record ID")
	}
	t.Cleanup(func() {
		s.pool.Exec(ctx, "DELETE FROM patient_records WHERE patient_id = $1", patientID)
	})

	row, err := s.GetRecord(ctx, patientID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if row.RunID != runID {
		t.Errorf("expected run id %q, got %q", runID, row.RunID)
	}
	if row.LabelingMode != "explicit" || row.Visits != 1 {
		t.Errorf("unexpected row: %+v", row)
	}
	if row.Record.Name != "江凤敏" {
		t.Errorf("expected name in document, got %q", row.Record.Name)
	}
	if len(row.Record.Scales) != 1 || row.Record.Scales[0].Total() != 4 {
		t.Errorf("expected GAD-7 total 4, got %+v", row.Record.Scales)
	}

	if _, err := s.GetRecord(ctx, "P-IT-missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIntegration_WriteRecordReplacesSameSource(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	runID := "integration-test-" + uuid.New().String()[:8]
	patientID := "P-IT-" + uuid.New().String()[:8]
	t.Cleanup(func() {
		s.pool.Exec(ctx, "DELETE FROM patient_records WHERE patient_id = $1", patientID)
	})

	for i := 0; i < 2; i++ {
		if _, err := s.WriteRecord(ctx, runID, testRecord(patientID)); err != nil {
			t.Fatalf("WriteRecord #%d failed: %v", i, err)
		}
	}

	n, err := s.CountByRun(ctx, runID)
	if err != nil {
		t.Fatalf("CountByRun failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 record after rewrite, got %d", n)
	}
}
