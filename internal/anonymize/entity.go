// Package anonymize replaces person and organisation names found by an
// external entity detector with fixed placeholders.
package anonymize

import (
	"sort"
	"strings"
)

const (
	LabelName = "NAME"
	LabelOrg  = "ORG"

	NamePlaceholder = "[NAME]"
	OrgPlaceholder  = "[ORG]"
)

// Entity is a detected span. Start and End are rune offsets, End exclusive.
type Entity struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// NormalizeLabel maps a detector label such as B-PER or ORGANIZATION onto
// LabelName or LabelOrg. ok is false for labels that are not redacted.
func NormalizeLabel(raw string) (string, bool) {
	l := strings.ToUpper(raw)
	switch {
	case strings.Contains(l, "PER"), strings.Contains(l, "NAME"):
		return LabelName, true
	case strings.Contains(l, "ORG"):
		return LabelOrg, true
	}
	return "", false
}

func placeholder(label string) string {
	if label == LabelOrg {
		return OrgPlaceholder
	}
	return NamePlaceholder
}

// ReplaceSpans substitutes each entity span with its placeholder. Invalid
// spans are ignored and a span overlapping an earlier one is dropped.
func ReplaceSpans(text string, entities []Entity) string {
	if len(entities) == 0 {
		return text
	}
	runes := []rune(text)

	ents := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e.Start < 0 || e.End <= e.Start || e.End > len(runes) {
			continue
		}
		ents = append(ents, e)
	}
	sort.SliceStable(ents, func(i, j int) bool { return ents[i].Start < ents[j].Start })

	var sb strings.Builder
	pos := 0
	for _, e := range ents {
		if e.Start < pos {
			continue
		}
		sb.WriteString(string(runes[pos:e.Start]))
		sb.WriteString(placeholder(e.Label))
		pos = e.End
	}
	sb.WriteString(string(runes[pos:]))
	return sb.String()
}
