package scales

import (
	"encoding/json"
	"fmt"
)

// Scale names.
const (
	GAD7 = "GAD-7"
	PHQ9 = "PHQ-9"
)

// RespondentSelf marks scores the patient filled in themselves.
const RespondentSelf = "self"

// ScaleResult holds one questionnaire's item scores. The total is derived
// from the items and cannot be set on its own.
type ScaleResult struct {
	respondentRole string
	scale          string
	items          []int
	total          int
}

// NewResult builds a result and computes its total.
func NewResult(scale, respondentRole string, items []int) ScaleResult {
	cp := make([]int, len(items))
	copy(cp, items)
	total := 0
	for _, v := range cp {
		total += v
	}
	return ScaleResult{respondentRole: respondentRole, scale: scale, items: cp, total: total}
}

func (r ScaleResult) Scale() string          { return r.scale }
func (r ScaleResult) RespondentRole() string { return r.respondentRole }
func (r ScaleResult) Total() int             { return r.total }

// Items returns a copy of the item scores.
func (r ScaleResult) Items() []int {
	cp := make([]int, len(r.items))
	copy(cp, r.items)
	return cp
}

// Severity returns the published severity band for the total.
func (r ScaleResult) Severity() string {
	return Severity(r.scale, r.total)
}

type resultJSON struct {
	RespondentRole string `json:"respondent_role"`
	Scale          string `json:"scale"`
	ItemScores     []int  `json:"item_scores"`
	Total          int    `json:"total"`
	Severity       string `json:"severity,omitempty"`
}

func (r ScaleResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(resultJSON{
		RespondentRole: r.respondentRole,
		Scale:          r.scale,
		ItemScores:     r.items,
		Total:          r.total,
		Severity:       r.Severity(),
	})
}

// UnmarshalJSON recomputes the total from the item scores and rejects
// documents whose stored total disagrees.
func (r *ScaleResult) UnmarshalJSON(data []byte) error {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = NewResult(raw.Scale, raw.RespondentRole, raw.ItemScores)
	if raw.Total != r.total {
		return fmt.Errorf("scale %s: total %d does not match item sum %d", raw.Scale, raw.Total, r.total)
	}
	return nil
}

type band struct {
	max   int
	label string
}

var bands = map[string][]band{
	PHQ9: {
		{4, "minimal"},
		{9, "mild"},
		{14, "moderate"},
		{19, "moderately severe"},
		{27, "severe"},
	},
	GAD7: {
		{4, "minimal"},
		{9, "mild"},
		{14, "moderate"},
		{21, "severe"},
	},
}

// Severity maps a total onto the scale's severity bands. Unknown scales and
// out-of-range totals yield "".
func Severity(scale string, total int) string {
	if total < 0 {
		return ""
	}
	for _, b := range bands[scale] {
		if total <= b.max {
			return b.label
		}
	}
	return ""
}
