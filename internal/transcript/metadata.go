package transcript

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Timestamp is a visit date-time found in transcript text.
type Timestamp struct {
	Value time.Time
	Raw   string
}

// String renders the timestamp as YYYY-MM-DD HH:MM.
func (t Timestamp) String() string {
	return t.Value.Format("2006-01-02 15:04")
}

// Metadata is everything pulled out of a transcript besides its dialogue.
type Metadata struct {
	Time     *Timestamp
	Keywords []string
}

// Header is the result of separating metadata from the dialogue body.
type Header struct {
	Metadata
	Text       string     // lines preceding the first speaker marker
	HeaderTime *Timestamp // first timestamp inside Text
}

var (
	timestampRe = regexp.MustCompile(`(\d{4})\s*年\s*(\d{1,2})\s*月\s*(\d{1,2})\s*日\s*(上午|中午|下午|晚上|AM|PM|am|pm)?\s*(\d{1,2})\s*[:：]\s*(\d{2})`)
	keywordRe   = regexp.MustCompile(`(?s)(?:关键词|关键字|[Kk]eywords)[:：]?[ \t]*\n(.+?)(?:\n[ \t]*\n|\n(?:文字记录|场景)[:：])`)
	keywordSep  = regexp.MustCompile(`[、，,\n]`)
	bodyLabelRe = regexp.MustCompile(`^(?:文字记录|场景)[:：]\s*`)
)

var afternoonMarkers = map[string]bool{"下午": true, "晚上": true, "PM": true, "pm": true}

// FindTimestamp returns the first visit timestamp in text, or nil.
func FindTimestamp(text string) *Timestamp {
	m := timestampRe.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[5])
	minute, _ := strconv.Atoi(m[6])
	if afternoonMarkers[m[4]] && hour < 12 {
		hour += 12
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 {
		return nil
	}
	v := time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.UTC)
	if v.Day() != day {
		return nil // e.g. 2月30日
	}
	return &Timestamp{Value: v, Raw: m[0]}
}

// ExtractKeywords finds the keyword block and returns its entries together
// with the text that remains once the block is cut out.
func ExtractKeywords(text string) ([]string, string) {
	loc := keywordRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return nil, text
	}
	block := strings.TrimSpace(text[loc[2]:loc[3]])
	var keywords []string
	for _, k := range keywordSep.Split(block, -1) {
		k = strings.Trim(strings.TrimSpace(k), " ，、")
		if k != "" {
			keywords = append(keywords, k)
		}
	}
	rest := strings.TrimSpace(text[:loc[0]] + "\n" + text[loc[1]:])
	return keywords, rest
}

// SplitHeader separates a transcript into header metadata and dialogue
// body. The body starts at the first explicit speaker marker; without one
// the whole text (minus the keyword block) is body.
func SplitHeader(text string) (Header, string) {
	text = normalizeNewlines(text)
	h := Header{}
	h.Time = FindTimestamp(text)

	keywords, rest := ExtractKeywords(text)
	h.Keywords = keywords
	rest = bodyLabelRe.ReplaceAllString(strings.TrimSpace(rest), "")

	lines := strings.Split(rest, "\n")
	for i, ln := range lines {
		if isExplicitMarker(strings.TrimSpace(ln)) {
			h.Text = strings.TrimSpace(strings.Join(lines[:i], "\n"))
			h.HeaderTime = FindTimestamp(h.Text)
			return h, strings.TrimSpace(strings.Join(lines[i:], "\n"))
		}
	}
	return h, strings.TrimSpace(rest)
}

// ExtractMetadata returns the visit timestamp and keyword list of a transcript.
func ExtractMetadata(text string) Metadata {
	h, _ := SplitHeader(text)
	return h.Metadata
}

// SplitBody cuts text at the first explicit speaker marker line, leaving
// the header untouched. ok is false when the text has no marker.
func SplitBody(text string) (header, body string, ok bool) {
	text = normalizeNewlines(text)
	offset := 0
	for _, ln := range strings.SplitAfter(text, "\n") {
		if isExplicitMarker(strings.TrimSpace(ln)) {
			return text[:offset], text[offset:], true
		}
		offset += len(ln)
	}
	return "", text, false
}
