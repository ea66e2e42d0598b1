package transcript

// Mode records which labeling strategy produced a transcript's turns.
type Mode string

const (
	ModeExplicit  Mode = "explicit"
	ModeHeuristic Mode = "heuristic"
	ModeNone      Mode = "none"
)

// Hints carry what is known about the patient before labeling.
type Hints struct {
	Age *int
}

// Labeled is the turn extraction result for a whole transcript.
type Labeled struct {
	Mode         Mode
	Visits       [][]Turn // one slice per input segment, same order
	ExplicitHits int
	Passthrough  int // dialogue lines left unlabeled by explicit markers

	segments []labeledSegment
}

// TotalTurns counts turns across all visits.
func (l Labeled) TotalTurns() int {
	n := 0
	for _, v := range l.Visits {
		n += len(v)
	}
	return n
}

// ExtractTurns labels every segment of one transcript. Explicit markers win
// if any line in any segment carries one; otherwise roles are inferred by
// alternation. The two strategies are never mixed within a transcript.
func ExtractTurns(segments []Segment, hints Hints) Labeled {
	lines := make([][]Line, len(segments))
	for i, s := range segments {
		lines[i] = SplitLines(s.Content)
	}
	return labelLines(lines, hints)
}

func labelLines(lines [][]Line, hints Hints) Labeled {
	explicit := make([]labeledSegment, len(lines))
	hits, passthrough := 0, 0
	for i, segLines := range lines {
		explicit[i] = labelExplicit(segLines)
		hits += explicit[i].hits
		passthrough += explicit[i].passthrough
	}

	res := Labeled{Mode: ModeExplicit, ExplicitHits: hits}
	if hits > 0 {
		res.segments = explicit
		res.Passthrough = passthrough
	} else {
		res.Mode = ModeHeuristic
		res.segments = labelHeuristic(lines, hints.Age)
	}

	res.Visits = make([][]Turn, len(res.segments))
	for i, seg := range res.segments {
		res.Visits[i] = seg.turns
	}
	if res.TotalTurns() == 0 {
		res.Mode = ModeNone
	}
	return res
}
