package watermark

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/prismdata/prism-go/pkg/prism"
)

// CSVOptions describes a tabular dataset.
type CSVOptions struct {
	// KeyColumn is the zero-based index of the primary-key column. Every
	// other column must hold integers.
	KeyColumn int
	// Header reports whether the first row names the columns.
	Header bool
	// Comma is the field delimiter; zero means ','.
	Comma rune
}

// Table is a CSV dataset split into records. Column order is preserved so
// WriteCSV reproduces the input layout.
type Table struct {
	Header  []string
	Records []Record
	opts    CSVOptions
	width   int
}

// ReadCSV parses a dataset.
func ReadCSV(r io.Reader, opts CSVOptions) (*Table, error) {
	const op = "watermark.ReadCSV"
	if opts.KeyColumn < 0 {
		return nil, prism.Errorf(op, "%w: negative key column", prism.ErrInvalidParameter)
	}
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.TrimLeadingSpace = true

	t := &Table{opts: opts, width: -1}
	line := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, prism.Errorf(op, "%w: %v", prism.ErrDeserialization, err)
		}
		line++
		if t.width < 0 {
			t.width = len(row)
			if opts.KeyColumn >= t.width {
				return nil, prism.Errorf(op, "%w: key column %d out of %d columns", prism.ErrInvalidParameter, opts.KeyColumn, t.width)
			}
		}
		if line == 1 && opts.Header {
			t.Header = row
			continue
		}
		rec, err := t.parseRow(row)
		if err != nil {
			return nil, prism.Errorf(op, "line %d: %w", line, err)
		}
		t.Records = append(t.Records, rec)
	}
	if t.width < 0 {
		t.width = opts.KeyColumn + 1
	}
	return t, nil
}

func (t *Table) parseRow(row []string) (Record, error) {
	rec := Record{Key: row[t.opts.KeyColumn], Attrs: make([]int64, 0, len(row)-1)}
	for i, field := range row {
		if i == t.opts.KeyColumn {
			continue
		}
		v, err := strconv.ParseInt(strings.TrimSpace(field), 10, 64)
		if err != nil {
			return Record{}, prism.Errorf("parse", "%w: column %d: %v", prism.ErrDeserialization, i, err)
		}
		rec.Attrs = append(rec.Attrs, v)
	}
	return rec, nil
}

// WriteCSV writes the table back with the key in its original column.
func (t *Table) WriteCSV(w io.Writer) error {
	const op = "watermark.WriteCSV"
	cw := csv.NewWriter(w)
	if t.opts.Comma != 0 {
		cw.Comma = t.opts.Comma
	}
	if t.Header != nil {
		if err := cw.Write(t.Header); err != nil {
			return prism.Wrap(op, err)
		}
	}
	for _, r := range t.Records {
		if t.opts.KeyColumn > len(r.Attrs) {
			return prism.Errorf(op, "%w: record %q too short for key column %d", prism.ErrInvalidParameter, r.Key, t.opts.KeyColumn)
		}
		row := make([]string, 0, len(r.Attrs)+1)
		attrs := r.Attrs
		for len(row) < len(r.Attrs)+1 {
			if len(row) == t.opts.KeyColumn {
				row = append(row, r.Key)
				continue
			}
			row = append(row, strconv.FormatInt(attrs[0], 10))
			attrs = attrs[1:]
		}
		if err := cw.Write(row); err != nil {
			return prism.Wrap(op, err)
		}
	}
	cw.Flush()
	return prism.Wrap(op, cw.Error())
}
