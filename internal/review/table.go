package review

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

const utf8BOM = "\ufeff"

// Table is a CSV table addressed by column name. Columns beyond the
// canonical five are carried along untouched.
type Table struct {
	header []string
	index  map[string]int
	rows   [][]string
}

// NewTable returns an empty table with the canonical columns.
func NewTable() *Table {
	t := &Table{}
	t.setHeader(append([]string(nil), Columns...))
	return t
}

func (t *Table) setHeader(header []string) {
	t.header = header
	t.index = make(map[string]int, len(header))
	for i, column := range header {
		if _, seen := t.index[column]; !seen {
			t.index[column] = i
		}
	}
}

// ReadTable parses a CSV document whose first record is the header. An empty
// document yields an empty canonical table. Rows shorter than the header are
// padded; rows longer than the header are an error.
func ReadTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return NewTable(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}

	t := &Table{}
	t.setHeader(header)

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(record) > len(header) {
			return nil, fmt.Errorf("line %d: expected %d fields, saw %d", line, len(header), len(record))
		}
		for len(record) < len(header) {
			record = append(record, "")
		}
		t.rows = append(t.rows, record)
	}
	return t, nil
}

// Write serializes the table including its header.
func (t *Table) Write(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.header); err != nil {
		return err
	}
	if err := writer.WriteAll(t.rows); err != nil {
		return err
	}
	return writer.Error()
}

func (t *Table) Header() []string {
	return append([]string(nil), t.header...)
}

func (t *Table) HasColumn(column string) bool {
	_, ok := t.index[column]
	return ok
}

func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) Empty() bool {
	return len(t.rows) == 0
}

// Get returns the value of column in row i, or "" if the column is absent.
func (t *Table) Get(i int, column string) string {
	idx, ok := t.index[column]
	if !ok {
		return ""
	}
	return t.rows[i][idx]
}

// Row returns a copy of row i in header order.
func (t *Table) Row(i int) []string {
	return append([]string(nil), t.rows[i]...)
}

func (t *Table) set(i int, column, value string) {
	t.ensureColumns(column)
	t.rows[i][t.index[column]] = value
}

// ensureColumns appends missing columns to the header and pads every row.
func (t *Table) ensureColumns(columns ...string) {
	header := t.header
	for _, column := range columns {
		if _, ok := t.index[column]; !ok {
			header = append(header, column)
			t.index[column] = len(header) - 1
		}
	}
	if len(header) == len(t.header) {
		return
	}
	t.header = header
	for i := range t.rows {
		for len(t.rows[i]) < len(header) {
			t.rows[i] = append(t.rows[i], "")
		}
	}
}

// Append adds a record as a new row.
func (t *Table) Append(rec Record) {
	t.ensureColumns(Columns...)
	t.rows = append(t.rows, rec.valuesFor(t.header))
}

// Record converts row i. Condition is copied verbatim, even when it is not one
// of the known Conditions.
func (t *Table) Record(i int) Record {
	return Record{
		Reviewer:       t.Get(i, ColumnReviewer),
		ImageName:      t.Get(i, ColumnImageName),
		Condition:      Condition(t.Get(i, ColumnCondition)),
		DiagnosticNote: t.Get(i, ColumnDiagnosticNote),
		Feedback:       t.Get(i, ColumnFeedback),
	}
}

func (t *Table) Records() []Record {
	records := make([]Record, len(t.rows))
	for i := range t.rows {
		records[i] = t.Record(i)
	}
	return records
}

// ImageNames returns the ImageName of every row in row order, duplicates included.
func (t *Table) ImageNames() []string {
	names := make([]string, len(t.rows))
	for i := range t.rows {
		names[i] = t.Get(i, ColumnImageName)
	}
	return names
}

// IndexOf returns the first row reviewing imageName, or -1.
func (t *Table) IndexOf(imageName string) int {
	for i := range t.rows {
		if t.Get(i, ColumnImageName) == imageName {
			return i
		}
	}
	return -1
}

// Find returns the first record reviewing imageName.
func (t *Table) Find(imageName string) (Record, bool) {
	i := t.IndexOf(imageName)
	if i < 0 {
		return Record{}, false
	}
	return t.Record(i), true
}

// Update overwrites Condition, DiagnosticNote and Feedback of the first row
// reviewing rec.ImageName. Row count and order are unchanged.
func (t *Table) Update(rec Record) error {
	i := t.IndexOf(rec.ImageName)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrReviewNotFound, rec.ImageName)
	}
	t.set(i, ColumnCondition, string(rec.Condition))
	t.set(i, ColumnDiagnosticNote, rec.DiagnosticNote)
	t.set(i, ColumnFeedback, rec.Feedback)
	return nil
}

// Prune drops every row whose ImageName is not in existing and returns the
// dropped names in row order.
func (t *Table) Prune(existing map[string]bool) []string {
	idx, hasNames := t.index[ColumnImageName]
	var removed []string
	kept := make([][]string, 0, len(t.rows))
	for _, row := range t.rows {
		name := ""
		if hasNames {
			name = row[idx]
		}
		if existing[name] {
			kept = append(kept, row)
			continue
		}
		removed = append(removed, name)
	}
	t.rows = kept
	return removed
}

// Concat stacks tables on top of each other. The result has the canonical
// columns first, followed by every other column in first-seen order; cells of
// columns a source table lacks are empty.
func Concat(tables ...*Table) *Table {
	out := NewTable()
	for _, src := range tables {
		out.ensureColumns(src.header...)
	}
	for _, src := range tables {
		for i := range src.rows {
			row := make([]string, len(out.header))
			for j, column := range out.header {
				row[j] = src.Get(i, column)
			}
			out.rows = append(out.rows, row)
		}
	}
	return out
}
