// Package identity parses patient identifiers out of transcript filenames.
//
// A stem looks like "41江凤敏 男 35岁" or "3，7王小明": one or more numeric IDs
// separated by commas, then a display label that may end in gender and age.
package identity

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Identity is who a transcript file is about.
type Identity struct {
	IDs      []int
	Name     string
	TitleRaw string
	Gender   *string
	Age      *int
}

// Primary returns the first listed ID, which names the patient record.
func (id Identity) Primary() int {
	return id.IDs[0]
}

// MalformedIdentifierError is returned when a stem does not start with a
// numeric ID followed by a label.
type MalformedIdentifierError struct {
	Stem string
}

func (e *MalformedIdentifierError) Error() string {
	return fmt.Sprintf("malformed identifier: filename stem %q does not match <ids><label>", e.Stem)
}

var (
	stemRe      = regexp.MustCompile(`^\s*([0-9０-９]+(?:\s*[，,、]\s*[0-9０-９]+)*)\s*(.*)$`)
	idSepRe     = regexp.MustCompile(`\s*[，,、]\s*`)
	nameGendAge = regexp.MustCompile(`^(?P<name>.+?)\s+(?P<gender>男|女|male|female|Male|Female)\s+(?P<age>[0-9０-９]{1,3})\s*(?:周岁|岁|yo)?$`)
	nameGend    = regexp.MustCompile(`^(?P<name>.+?)\s+(?P<gender>男|女|male|female|Male|Female)$`)
)

// Parse extracts IDs, name, gender and age from a filename stem.
func Parse(stem string) (Identity, error) {
	m := stemRe.FindStringSubmatch(stem)
	if m == nil {
		return Identity{}, &MalformedIdentifierError{Stem: stem}
	}
	label := strings.TrimSpace(m[2])
	if label == "" {
		return Identity{}, &MalformedIdentifierError{Stem: stem}
	}

	var ids []int
	for _, part := range idSepRe.Split(m[1], -1) {
		n, err := atoi(part)
		if err != nil {
			return Identity{}, fmt.Errorf("parse id %q in %q: %w", part, stem, err)
		}
		ids = append(ids, n)
	}

	id := Identity{IDs: ids, TitleRaw: label, Name: label}

	if g := nameGendAge.FindStringSubmatch(label); g != nil {
		age, err := atoi(g[3])
		if err == nil {
			id.Name = strings.TrimSpace(g[1])
			id.Gender = &g[2]
			id.Age = &age
			return id, nil
		}
	}
	if g := nameGend.FindStringSubmatch(label); g != nil {
		id.Name = strings.TrimSpace(g[1])
		id.Gender = &g[2]
	}
	return id, nil
}

// AgeFromStem finds an "N岁" age anywhere in a stem. It is used when a stem
// does not follow the full grammar but still mentions an age.
func AgeFromStem(stem string) *int {
	m := ageRe.FindStringSubmatch(stem)
	if m == nil {
		return nil
	}
	n, err := atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}

var ageRe = regexp.MustCompile(`([0-9０-９]{1,3})\s*岁`)

// atoi accepts full-width digits as well as ASCII ones.
func atoi(s string) (int, error) {
	return strconv.Atoi(width.Narrow.String(strings.TrimSpace(s)))
}
