// Package dataset reads and writes the tabular CSV datasets the pipeline
// moves through. Column order and row order are preserved exactly across a
// read/modify/write cycle.
package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
)

// audioRefColumns is the fixed priority order for resolving a row's audio
// reference.
var audioRefColumns = []string{"path", "filename", "file"}

type Table struct {
	Columns []string
	Rows    [][]string

	index map[string]int // column name -> position
}

func New(columns []string) *Table {
	t := &Table{Columns: append([]string(nil), columns...)}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.index[c] = i
	}
}

// Read parses a CSV with a header row.
func Read(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}
	t := New(header)

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv row %d: %w", len(t.Rows)+1, err)
		}
		// pad short rows so column access stays in bounds, and trim
		// over-long ones so SetColumn appends into the right slot
		for len(row) < len(t.Columns) {
			row = append(row, "")
		}
		row = row[:len(t.Columns)]
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func (t *Table) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Get returns the value of a named column in row i.
func (t *Table) Get(i int, column string) (string, bool) {
	idx, ok := t.index[column]
	if !ok || i < 0 || i >= len(t.Rows) {
		return "", false
	}
	return t.Rows[i][idx], true
}

// AudioRef resolves row i's audio reference by checking path, filename and
// file in that order; the first present non-empty value wins.
func (t *Table) AudioRef(i int) (string, bool) {
	for _, col := range audioRefColumns {
		if v, ok := t.Get(i, col); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// SetColumn appends the column if absent or overwrites it in place if
// present, so re-runs do not grow the table. values must match the row
// count.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %s: %d values for %d rows", name, len(values), len(t.Rows))
	}
	idx, exists := t.index[name]
	if !exists {
		idx = len(t.Columns)
		t.Columns = append(t.Columns, name)
		t.reindex()
		for i := range t.Rows {
			t.Rows[i] = append(t.Rows[i], "")
		}
	}
	for i := range t.Rows {
		t.Rows[i][idx] = values[i]
	}
	return nil
}
