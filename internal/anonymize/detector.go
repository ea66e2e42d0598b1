package anonymize

import (
	"context"
	"fmt"
	"time"
)

// Detector finds named entities in text.
type Detector interface {
	Detect(ctx context.Context, text string) ([]Entity, error)
}

// DetectorFunc adapts a function to Detector.
type DetectorFunc func(ctx context.Context, text string) ([]Entity, error)

func (f DetectorFunc) Detect(ctx context.Context, text string) ([]Entity, error) {
	return f(ctx, text)
}

// Chunked splits text longer than Size runes into consecutive pieces, runs
// the inner detector on each and shifts the spans back into place.
type Chunked struct {
	Inner Detector
	Size  int
}

func (c Chunked) Detect(ctx context.Context, text string) ([]Entity, error) {
	runes := []rune(text)
	if c.Size <= 0 || len(runes) <= c.Size {
		return c.Inner.Detect(ctx, text)
	}

	var out []Entity
	for start := 0; start < len(runes); start += c.Size {
		end := min(start+c.Size, len(runes))
		ents, err := c.Inner.Detect(ctx, string(runes[start:end]))
		if err != nil {
			return nil, fmt.Errorf("detect chunk at %d: %w", start, err)
		}
		for _, e := range ents {
			e.Start += start
			e.End += start
			out = append(out, e)
		}
	}
	return out, nil
}

// Requester is the request/reply half of the event bus client.
type Requester interface {
	Request(ctx context.Context, subject string, data, out any) error
}

type detectRequest struct {
	Text string `json:"text"`
}

type detectReply struct {
	Entities []rawEntity `json:"entities"`
}

// rawEntity is what the NER service returns: rune offsets and its own label.
type rawEntity struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// NATSDetector asks a remote NER service for entities over request/reply.
type NATSDetector struct {
	bus     Requester
	subject string
	timeout time.Duration
}

// NewNATSDetector creates a detector that sends {"text": ...} to subject and
// expects {"entities": [{"start","end","label"}]} back.
func NewNATSDetector(bus Requester, subject string, timeout time.Duration) *NATSDetector {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &NATSDetector{bus: bus, subject: subject, timeout: timeout}
}

func (d *NATSDetector) Detect(ctx context.Context, text string) ([]Entity, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var reply detectReply
	if err := d.bus.Request(ctx, d.subject, detectRequest{Text: text}, &reply); err != nil {
		return nil, fmt.Errorf("ner detect: %w", err)
	}

	var out []Entity
	for _, r := range reply.Entities {
		label, ok := NormalizeLabel(r.Label)
		if !ok || r.Start < 0 || r.End <= r.Start {
			continue
		}
		out = append(out, Entity{Start: r.Start, End: r.End, Label: label})
	}
	return out, nil
}
