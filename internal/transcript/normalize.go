package transcript

import "strings"

// Normalize rewrites a transcript so every turn sits on one line behind a
// canonical label such as [医生]： or [患者家属（母亲）]：. Visit markers,
// metadata and unlabeled lines are kept verbatim; blank lines are dropped.
// Labeling the normalized text again yields the same turns.
func Normalize(text string, hints Hints) (string, Labeled) {
	var (
		groups  [][]Line
		markers []string // markers[i] closes groups[i]
		current []string
	)
	for _, raw := range strings.Split(normalizeNewlines(text), "\n") {
		if IsBoundaryMarker(raw) {
			groups = append(groups, SplitLines(strings.Join(current, "\n")))
			markers = append(markers, strings.TrimSpace(raw))
			current = nil
			continue
		}
		current = append(current, raw)
	}
	groups = append(groups, SplitLines(strings.Join(current, "\n")))

	labeled := labelLines(groups, hints)

	var out []string
	for i, seg := range labeled.segments {
		for _, e := range seg.entries {
			if e.turn != nil {
				out = append(out, renderTurn(*e.turn))
			} else {
				out = append(out, e.raw)
			}
		}
		if i < len(markers) {
			out = append(out, markers[i])
		}
	}
	return strings.Join(out, "\n") + "\n", labeled
}

func renderTurn(t Turn) string {
	label := canonicalLabel(t.Role)
	if t.SpeakerNote != "" {
		label += "（" + t.SpeakerNote + "）"
	}
	return "[" + label + "]：" + t.Text
}
