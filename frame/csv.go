package frame

import (
	"encoding/csv"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/tablevet/tablevet/dtype"
)

// CSVOptions controls CSV ingestion.
type CSVOptions struct {
	// Comma is the field delimiter; ',' when zero.
	Comma rune
	// NoHeader reads the first record as data; Labels must then be set.
	NoHeader bool
	// Labels overrides or supplies the column labels.
	Labels []string
	// NullValues are the literals read as null. Defaults to "", "NULL",
	// and "null".
	NullValues []string
}

var defaultNullValues = []string{"", "NULL", "null"}

// ReadCSV reads a frame with string-typed columns. Types arrive later via
// schema coercion.
func ReadCSV(r io.Reader, opts CSVOptions) (*Frame, error) {
	cr := csv.NewReader(r)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.ReuseRecord = false

	nulls := opts.NullValues
	if nulls == nil {
		nulls = defaultNullValues
	}
	nullSet := make(map[string]bool, len(nulls))
	for _, n := range nulls {
		nullSet[n] = true
	}

	labels := opts.Labels
	if !opts.NoHeader {
		header, err := cr.Read()
		if err == io.EOF {
			if labels == nil {
				return nil, errors.New("empty csv input with no labels supplied")
			}
			header = nil
		} else if err != nil {
			return nil, errors.Wrap(err, "reading csv header")
		}
		if labels == nil {
			labels = header
		}
	}
	if labels == nil {
		return nil, errors.New("csv input without a header requires explicit labels")
	}

	values := make([][]any, len(labels))
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "reading csv record")
		}
		if len(record) != len(labels) {
			return nil, errors.Newf("csv record has %d fields; expected %d", len(record), len(labels))
		}
		for i, cell := range record {
			if nullSet[cell] {
				values[i] = append(values[i], nil)
			} else {
				values[i] = append(values[i], cell)
			}
		}
	}

	cols := make([]*Column, len(labels))
	for i, label := range labels {
		if values[i] == nil {
			values[i] = []any{}
		}
		cols[i] = NewColumn(label, dtype.String, values[i])
	}
	return New(cols...)
}

// WriteCSV writes the frame with a header row. Nulls render empty.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.Labels()); err != nil {
		return errors.Wrap(err, "writing csv header")
	}
	record := make([]string, len(f.cols))
	for r := 0; r < f.NumRows(); r++ {
		for i, col := range f.cols {
			record[i] = dtype.Format(col.Value(r))
		}
		if err := cw.Write(record); err != nil {
			return errors.Wrapf(err, "writing csv row %d", r)
		}
	}
	cw.Flush()
	return errors.Wrap(cw.Error(), "flushing csv output")
}
