package transcript

import (
	"regexp"
	"strings"
)

// LineKind classifies a trimmed transcript line.
type LineKind int

const (
	LineBlank LineKind = iota
	LineMeta
	LineDialogue
)

// Line is a trimmed, non-empty line with its classification.
type Line struct {
	Text string
	Kind LineKind
}

// metaPrefixes open header lines that never carry dialogue.
var metaPrefixes = []string{
	"关键词", "关键字", "文字记录", "文本记录", "对话记录", "场景", "keywords", "Keywords",
}

// dateRe marks a line as metadata wherever the date appears in it.
var dateRe = regexp.MustCompile(`\d{4}\s*年\s*\d{1,2}\s*月\s*\d{1,2}\s*日`)

// SplitLines returns the trimmed, non-empty lines of text, each tagged as
// metadata or dialogue.
func SplitLines(text string) []Line {
	var out []Line
	for _, raw := range strings.Split(normalizeNewlines(text), "\n") {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		out = append(out, Line{Text: s, Kind: classifyLine(s)})
	}
	return out
}

// IsMetaLine reports whether a trimmed line is a header or timestamp line.
func IsMetaLine(s string) bool {
	return classifyLine(strings.TrimSpace(s)) == LineMeta
}

func classifyLine(s string) LineKind {
	if s == "" {
		return LineBlank
	}
	if hasAnyPrefix(s, metaPrefixes) || dateRe.MatchString(s) {
		return LineMeta
	}
	return LineDialogue
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
