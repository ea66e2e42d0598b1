package scales

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sheet builds a CSV with the sequence column, seven G items and nine P
// items. Each row is {seq, g1..g7, p1..p9}.
func sheet(rows ...[]string) string {
	header := []string{"提交时间", SequenceColumn}
	for i := 1; i <= 7; i++ {
		header = append(header, fmt.Sprintf("G%d. 在过去2个星期，有多少时候您受到以下问题困扰？", i))
	}
	for i := 1; i <= 9; i++ {
		header = append(header, fmt.Sprintf("P%d. 在过去2个星期，有多少时候您受到以下问题困扰？", i))
	}
	lines := []string{strings.Join(header, ",")}
	for _, r := range rows {
		lines = append(lines, "2024/3/1,"+strings.Join(r, ","))
	}
	return strings.Join(lines, "\n") + "\n"
}

func row(seq string, g, p string) []string {
	out := []string{seq}
	out = append(out, strings.Split(g, " ")...)
	out = append(out, strings.Split(p, " ")...)
	return out
}

func TestLink_TotalsAndItemCounts(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sheet(
		row("41", "1 2 0 3 1 0 2", "2 2 1 0 3 1 0 2 1"),
		row("42", "0 0 0 0 0 0 0", "0 0 0 0 0 0 0 0 0"),
	)))
	require.NoError(t, err)
	assert.Equal(t, 2, tbl.Len())

	results, err := NewLinker(tbl).Link([]int{41})
	require.NoError(t, err)
	require.Len(t, results, 2)

	gad, phq := results[0], results[1]
	assert.Equal(t, GAD7, gad.Scale())
	assert.Len(t, gad.Items(), 7)
	assert.Equal(t, 9, gad.Total())
	assert.Equal(t, "mild", gad.Severity())

	assert.Equal(t, PHQ9, phq.Scale())
	assert.Len(t, phq.Items(), 9)
	assert.Equal(t, 12, phq.Total())
	assert.Equal(t, "moderate", phq.Severity())
	assert.Equal(t, RespondentSelf, phq.RespondentRole())

	for _, r := range results {
		sum := 0
		for _, v := range r.Items() {
			sum += v
		}
		assert.Equal(t, sum, r.Total(), r.Scale())
	}
}

func TestLink_IntegralFloatsAndBOM(t *testing.T) {
	data := "\xef\xbb\xbf" + sheet(row("7.0", "1.0 1 1 1 1 1 1", "0 0 0 0 0 0 0 0 2.0"))
	tbl, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)

	results, err := NewLinker(tbl).Link([]int{3, 7})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 7, results[0].Total())
	assert.Equal(t, 2, results[1].Total())
}

func TestLink_NoMatchingRow(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sheet(row("1", "0 0 0 0 0 0 0", "0 0 0 0 0 0 0 0 0"))))
	require.NoError(t, err)

	results, err := NewLinker(tbl).Link([]int{99})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLink_MissingColumn(t *testing.T) {
	data := SequenceColumn + ",G1. 在过去2个星期\n5,1\n"
	tbl, err := ReadCSV(strings.NewReader(data))
	require.NoError(t, err)

	_, err = NewLinker(tbl).Link([]int{5})
	var colErr *ColumnNotFoundError
	require.True(t, errors.As(err, &colErr), "got %v", err)
	assert.Equal(t, "G2. 在过去2个星期", colErr.Prefix)
}

func TestLink_BadCell(t *testing.T) {
	tbl, err := ReadCSV(strings.NewReader(sheet(row("5", "1 x 0 0 0 0 0", "0 0 0 0 0 0 0 0 0"))))
	require.NoError(t, err)

	_, err = NewLinker(tbl).Link([]int{5})
	var cellErr *CellValueError
	require.True(t, errors.As(err, &cellErr), "got %v", err)
	assert.Equal(t, "x", cellErr.Value)
	assert.True(t, strings.HasPrefix(cellErr.Column, "G2."))
}

func TestReadCSV_RequiresSequenceColumn(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("a,b\n1,2\n"))
	var colErr *ColumnNotFoundError
	require.True(t, errors.As(err, &colErr))
	assert.Equal(t, SequenceColumn, colErr.Prefix)
}

func TestLoadCSV_FromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scores.csv")
	require.NoError(t, os.WriteFile(path, []byte(sheet(row("3", "0 0 0 0 0 0 0", "3 3 3 3 3 3 3 3 3"))), 0o644))

	tbl, err := LoadCSV(path)
	require.NoError(t, err)
	results, err := NewLinker(tbl).Link([]int{3})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 27, results[1].Total())
	assert.Equal(t, "severe", results[1].Severity())

	_, err = LoadCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestSeverity(t *testing.T) {
	cases := []struct {
		scale string
		total int
		want  string
	}{
		{PHQ9, 0, "minimal"},
		{PHQ9, 4, "minimal"},
		{PHQ9, 5, "mild"},
		{PHQ9, 14, "moderate"},
		{PHQ9, 15, "moderately severe"},
		{PHQ9, 20, "severe"},
		{PHQ9, 28, ""},
		{GAD7, 10, "moderate"},
		{GAD7, 15, "severe"},
		{GAD7, 21, "severe"},
		{GAD7, -1, ""},
		{"unknown", 3, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Severity(tc.scale, tc.total), "%s %d", tc.scale, tc.total)
	}
}

func TestScaleResult_JSON(t *testing.T) {
	r := NewResult(GAD7, RespondentSelf, []int{1, 1, 1, 1, 1, 1, 1})
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"respondent_role":"self","scale":"GAD-7","item_scores":[1,1,1,1,1,1,1],"total":7,"severity":"mild"}`, string(data))

	var back ScaleResult
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, 7, back.Total())

	bad := `{"respondent_role":"self","scale":"GAD-7","item_scores":[1,1],"total":9}`
	assert.Error(t, json.Unmarshal([]byte(bad), &back))
}

func TestNewResult_CopiesItems(t *testing.T) {
	items := []int{1, 2, 3}
	r := NewResult(PHQ9, RespondentSelf, items)
	items[0] = 9
	assert.Equal(t, 6, r.Total())
	assert.Equal(t, []int{1, 2, 3}, r.Items())
}
