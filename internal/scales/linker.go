// Package scales links questionnaire scores from a score sheet to patients.
package scales

import (
	"fmt"
	"strings"
)

// Spec describes how one scale's items are laid out in the sheet.
type Spec struct {
	Name       string
	Items      int
	PrefixFmt  string // formatted with the 1-based item number
	Respondent string
}

// DefaultSpecs are the scales the clinic collects: GAD-7 then PHQ-9.
var DefaultSpecs = []Spec{
	{Name: GAD7, Items: 7, PrefixFmt: "G%d. 在过去2个星期", Respondent: RespondentSelf},
	{Name: PHQ9, Items: 9, PrefixFmt: "P%d. 在过去2个星期", Respondent: RespondentSelf},
}

// ColumnNotFoundError means the sheet has no column for a configured item.
// The sheet layout is wrong, so this is not a per-row problem.
type ColumnNotFoundError struct {
	Prefix string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("scale column not found: no header starts with %q", e.Prefix)
}

// CellValueError means a score cell could not be read as an integer.
type CellValueError struct {
	Column string
	Value  string
}

func (e *CellValueError) Error() string {
	return fmt.Sprintf("scale cell %q: value %q is not an integer", e.Column, e.Value)
}

// Linker looks up scale results for patient IDs.
type Linker struct {
	table Table
	specs []Spec
}

// NewLinker returns a linker over table. With no specs, DefaultSpecs is used.
func NewLinker(table Table, specs ...Spec) *Linker {
	if len(specs) == 0 {
		specs = DefaultSpecs
	}
	return &Linker{table: table, specs: specs}
}

// Link returns one result per matched row and configured scale, rows in
// table order. IDs with no row yield no results; columns are only resolved
// once a row matches.
func (l *Linker) Link(ids []int) ([]ScaleResult, error) {
	if l == nil || l.table == nil {
		return nil, nil
	}
	rows := l.table.Rows(ids)
	if len(rows) == 0 {
		return nil, nil
	}
	columns := make(map[string][]string, len(l.specs))
	for _, s := range l.specs {
		cols, err := l.resolve(s)
		if err != nil {
			return nil, err
		}
		columns[s.Name] = cols
	}

	var out []ScaleResult
	for _, row := range rows {
		for _, s := range l.specs {
			items := make([]int, 0, s.Items)
			for _, col := range columns[s.Name] {
				v, err := parseIntegral(row[col])
				if err != nil {
					return nil, &CellValueError{Column: col, Value: row[col]}
				}
				items = append(items, v)
			}
			out = append(out, NewResult(s.Name, s.Respondent, items))
		}
	}
	return out, nil
}

// resolve finds the column for each item of s by header prefix.
func (l *Linker) resolve(s Spec) ([]string, error) {
	cols := make([]string, 0, s.Items)
	for i := 1; i <= s.Items; i++ {
		prefix := fmt.Sprintf(s.PrefixFmt, i)
		found := ""
		for _, c := range l.table.Columns() {
			if strings.HasPrefix(c, prefix) {
				found = c
				break
			}
		}
		if found == "" {
			return nil, &ColumnNotFoundError{Prefix: prefix}
		}
		cols = append(cols, found)
	}
	return cols, nil
}
