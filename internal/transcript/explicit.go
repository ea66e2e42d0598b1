package transcript

import (
	"regexp"
	"strings"
)

// Turn is one contiguous utterance attributed to a single speaker.
type Turn struct {
	Role        Role   `json:"role"`
	Text        string `json:"text"`
	SpeakerNote string `json:"speaker_note,omitempty"`
}

var (
	// A 【…】 tag closes only at 】, so a note may carry a [NAME] placeholder.
	// A […] tag allows one level of nested brackets for the same reason.
	bracketTagRe = regexp.MustCompile(`^(?:【([^】]+)】|\[((?:[^\[\]]|\[[^\[\]]*\])+)\])\s*[:：]?\s*(.*)$`)
	labelOnlyRe  = regexp.MustCompile(`^(医生|大夫|患者|病人|家属\d*|家长|Doctor|Patient|Family)\s*[:：]?$`)
	annotationRe = regexp.MustCompile(`[（(]([^）)]*)[）)]`)
)

// placeholders are the tokens the anonymizer substitutes for names and
// organisations. A line opening with one is dialogue, not a speaker tag.
var placeholders = map[string]bool{"NAME": true, "ORG": true}

// lineEvent is one input to the explicit labeling state machine.
type lineEvent int

const (
	evRoleMarker lineEvent = iota // bracket tag, optionally with inline text
	evLabelOnly                   // standalone role word
	evContent                     // any other dialogue line
	evMeta                        // header or timestamp line; dialogue while a turn is open
	evEndOfSegment
)

type parsedLine struct {
	event lineEvent
	role  Role
	note  string
	text  string
}

// parseMarker classifies a trimmed line for the explicit labeler.
func parseMarker(s string) parsedLine {
	if m := bracketTagRe.FindStringSubmatch(s); m != nil {
		token := strings.TrimSpace(m[1] + m[2])
		if !placeholders[token] {
			note := ""
			if a := annotationRe.FindStringSubmatch(token); a != nil {
				note = strings.TrimSpace(a[1])
				token = strings.TrimSpace(annotationRe.ReplaceAllString(token, ""))
			}
			return parsedLine{
				event: evRoleMarker,
				role:  classifyTag(token, note),
				note:  note,
				text:  strings.TrimSpace(m[3]),
			}
		}
	}
	if m := labelOnlyRe.FindStringSubmatch(s); m != nil {
		return parsedLine{event: evLabelOnly, role: ClassifyRole(m[1])}
	}
	if classifyLine(s) == LineMeta {
		return parsedLine{event: evMeta, text: s}
	}
	return parsedLine{event: evContent, text: s}
}

// isExplicitMarker reports whether a trimmed line opens an explicitly
// labeled speaker turn.
func isExplicitMarker(s string) bool {
	ev := parseMarker(s).event
	return ev == evRoleMarker || ev == evLabelOnly
}

// entry is one rendered line of a labeled segment: either a turn or a line
// kept verbatim.
type entry struct {
	turn *Turn
	raw  string
}

type labelState int

const (
	stateNoActiveRole labelState = iota
	stateBuffering
)

// explicitLabeler is the state machine behind strategy A. In stateBuffering
// it holds the active role, its note and the text gathered so far.
type explicitLabeler struct {
	state   labelState
	role    Role
	note    string
	buf     strings.Builder
	pending int // index into entries reserved for the open turn

	entries     []entry
	turns       []Turn
	hits        int
	passthrough int
}

func (l *explicitLabeler) step(p parsedLine) {
	switch p.event {
	case evRoleMarker, evLabelOnly:
		l.hits++
		l.flush()
		l.state = stateBuffering
		l.role = p.role
		l.note = p.note
		l.pending = len(l.entries)
		l.entries = append(l.entries, entry{})
		l.buf.WriteString(p.text)
	case evContent, evMeta:
		if l.state == stateBuffering {
			l.buf.WriteString(p.text)
			return
		}
		if p.event == evContent {
			l.passthrough++
		}
		l.entries = append(l.entries, entry{raw: p.text})
	case evEndOfSegment:
		l.flush()
	}
}

func (l *explicitLabeler) flush() {
	if l.state != stateBuffering {
		return
	}
	text := strings.TrimSpace(l.buf.String())
	if text != "" {
		t := Turn{Role: l.role, Text: text, SpeakerNote: l.note}
		l.turns = append(l.turns, t)
		l.entries[l.pending] = entry{turn: &t}
	} else {
		l.entries = append(l.entries[:l.pending], l.entries[l.pending+1:]...)
	}
	l.buf.Reset()
	l.state = stateNoActiveRole
	l.role = ""
	l.note = ""
}

// labeledSegment is the outcome of labeling one visit.
type labeledSegment struct {
	turns       []Turn
	entries     []entry
	hits        int
	passthrough int
}

// labelExplicit runs strategy A over one segment's lines.
func labelExplicit(lines []Line) labeledSegment {
	var l explicitLabeler
	for _, ln := range lines {
		l.step(parseMarker(ln.Text))
	}
	l.step(parsedLine{event: evEndOfSegment})
	return labeledSegment{turns: l.turns, entries: l.entries, hits: l.hits, passthrough: l.passthrough}
}
