package scales

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// SequenceColumn is the header of the column holding the patient ID.
const SequenceColumn = "序号"

// Table is a score sheet: a header row plus data rows addressable by the
// integer in the sequence column.
type Table interface {
	Columns() []string
	// Rows returns the rows whose sequence number is in ids, in table order.
	Rows(ids []int) []map[string]string
}

// CSVTable is an in-memory Table loaded from a CSV export of the score sheet.
type CSVTable struct {
	columns []string
	rows    []map[string]string
	seqs    []int // parallel to rows; -1 when the cell is not an integer
}

// LoadCSV reads a UTF-8 CSV score sheet from disk.
func LoadCSV(path string) (*CSVTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scores: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// ReadCSV parses a score sheet. A leading byte order mark is ignored.
func ReadCSV(r io.Reader) (*CSVTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read scores: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse scores csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse scores csv: no header row")
	}

	t := &CSVTable{}
	for _, h := range records[0] {
		t.columns = append(t.columns, strings.TrimSpace(h))
	}
	seqIdx := -1
	for i, h := range t.columns {
		if h == SequenceColumn {
			seqIdx = i
			break
		}
	}
	if seqIdx < 0 {
		return nil, &ColumnNotFoundError{Prefix: SequenceColumn}
	}

	for _, rec := range records[1:] {
		row := make(map[string]string, len(t.columns))
		for i, h := range t.columns {
			if i < len(rec) {
				row[h] = strings.TrimSpace(rec[i])
			}
		}
		seq := -1
		if n, err := parseIntegral(row[SequenceColumn]); err == nil {
			seq = n
		}
		t.rows = append(t.rows, row)
		t.seqs = append(t.seqs, seq)
	}
	return t, nil
}

func (t *CSVTable) Columns() []string {
	return t.columns
}

func (t *CSVTable) Rows(ids []int) []map[string]string {
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []map[string]string
	for i, row := range t.rows {
		if want[t.seqs[i]] {
			out = append(out, row)
		}
	}
	return out
}

// Len returns the number of data rows.
func (t *CSVTable) Len() int {
	return len(t.rows)
}

// parseIntegral accepts "3" and integral floats such as "3.0", which is how
// spreadsheet exports usually write whole numbers.
func parseIntegral(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		return n, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("%q is not a whole number", s)
	}
	return int(f), nil
}
