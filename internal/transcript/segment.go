package transcript

import "strings"

// Segment is one visit's slice of the dialogue body.
type Segment struct {
	Index   int // 1-based
	Content string
}

// SegmentVisits splits a dialogue body into visits. A line wholly wrapped in
// full-width or half-width parentheses closes the current visit and is dropped.
// A body without such lines is a single visit.
func SegmentVisits(body string) []Segment {
	var (
		segments []Segment
		current  []string
	)
	flush := func() {
		content := strings.TrimSpace(strings.Join(current, "\n"))
		current = nil
		if content == "" {
			return
		}
		segments = append(segments, Segment{Index: len(segments) + 1, Content: content})
	}

	for _, line := range strings.Split(normalizeNewlines(body), "\n") {
		if IsBoundaryMarker(line) {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return segments
}

// IsBoundaryMarker reports whether the trimmed line is a parenthesized
// annotation such as （第一次复诊）.
func IsBoundaryMarker(line string) bool {
	s := strings.TrimSpace(line)
	if len(s) >= len("（）") && strings.HasPrefix(s, "（") && strings.HasSuffix(s, "）") {
		return true
	}
	return len(s) >= 2 && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
}
