// Package record defines the patient-centred document produced per transcript.
package record

import (
	"fmt"

	"github.com/MikeSquared-Agency/casenote/internal/scales"
	"github.com/MikeSquared-Agency/casenote/internal/transcript"
)

// PatientRecord is everything structured out of one transcript file.
type PatientRecord struct {
	PatientID    string               `json:"patient_id"`
	LinkedIDs    []int                `json:"linked_ids"`
	Name         string               `json:"name"`
	TitleRaw     string               `json:"title_raw"`
	Gender       *string              `json:"gender,omitempty"`
	Age          *int                 `json:"age,omitempty"`
	Keywords     []string             `json:"keywords,omitempty"`
	LabelingMode transcript.Mode      `json:"labeling_mode"`
	Scales       []scales.ScaleResult `json:"scales"`
	Visits       []Visit              `json:"visits"`
}

// Visit is one consultation inside a transcript.
type Visit struct {
	VisitID      string   `json:"visit_id"`
	VisitTime    string   `json:"visit_time,omitempty"`
	VisitTimeRaw string   `json:"visit_time_raw,omitempty"`
	Dialogue     Dialogue `json:"dialogue"`
}

// Dialogue is the text of a visit and, when extracted, its turns.
type Dialogue struct {
	SourceFile   string            `json:"source_file"`
	LabelingMode transcript.Mode   `json:"labeling_mode"`
	Content      string            `json:"content"`
	Turns        []transcript.Turn `json:"turns"`
}

// PatientID formats the record ID for a primary patient number.
func PatientID(id int) string {
	return fmt.Sprintf("P-%06d", id)
}

// VisitID formats the ID of the index-th (1-based) visit of a patient.
func VisitID(id, index int) string {
	return fmt.Sprintf("V-%06d-%d", id, index)
}

// HasScales reports whether any scale result was linked.
func (r *PatientRecord) HasScales() bool {
	return len(r.Scales) > 0
}

// TurnCount returns the number of turns across all visits.
func (r *PatientRecord) TurnCount() int {
	n := 0
	for _, v := range r.Visits {
		n += len(v.Dialogue.Turns)
	}
	return n
}
