package frame

import (
	"github.com/cockroachdb/errors"

	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
)

// IndexData holds the index levels of a frame. Levels are columns whose
// labels may be empty.
type IndexData struct {
	levels []*Column
}

// NewIndexData builds an index from its levels.
func NewIndexData(levels ...*Column) *IndexData {
	return &IndexData{levels: levels}
}

// NumLevels returns the number of index levels.
func (ix *IndexData) NumLevels() int { return len(ix.levels) }

// Level returns the level at position i.
func (ix *IndexData) Level(i int) *Column { return ix.levels[i] }

// SetLevel replaces the level at position i in place.
func (ix *IndexData) SetLevel(i int, col *Column) { ix.levels[i] = col }

// LevelByName looks a level up by its label.
func (ix *IndexData) LevelByName(name string) (*Column, bool) {
	for _, lvl := range ix.levels {
		if lvl.Name() == name {
			return lvl, true
		}
	}
	return nil, false
}

// Len returns the number of rows, zero for an empty index.
func (ix *IndexData) Len() int {
	if len(ix.levels) == 0 {
		return 0
	}
	return ix.levels[0].Len()
}

func (ix *IndexData) selectRows(positions []int) *IndexData {
	levels := make([]*Column, len(ix.levels))
	for i, lvl := range ix.levels {
		levels[i] = lvl.Select(positions)
	}
	return &IndexData{levels: levels}
}

func (ix *IndexData) clone() *IndexData {
	levels := make([]*Column, len(ix.levels))
	for i, lvl := range ix.levels {
		levels[i] = lvl.Clone()
	}
	return &IndexData{levels: levels}
}

// Equal compares levels pairwise.
func (ix *IndexData) Equal(o *IndexData) bool {
	if ix == nil || o == nil {
		return ix == o
	}
	if len(ix.levels) != len(o.levels) {
		return false
	}
	for i := range ix.levels {
		if !ix.levels[i].Equal(o.levels[i]) {
			return false
		}
	}
	return true
}

// Frame is an ordered collection of labeled columns with an optional index.
// Labels may repeat; schema-level uniqueness checks report that.
type Frame struct {
	cols  []*Column
	index *IndexData
}

var _ check.TableView = (*Frame)(nil)

// New builds a frame from columns, which must be equally long.
func New(cols ...*Column) (*Frame, error) {
	f := &Frame{cols: cols}
	for _, col := range cols {
		if col.Len() != cols[0].Len() {
			return nil, errors.Newf(
				"column %q has %d rows; expected %d", col.Name(), col.Len(), cols[0].Len(),
			)
		}
	}
	return f, nil
}

// MustNew is New for statically known inputs.
func MustNew(cols ...*Column) *Frame {
	f, err := New(cols...)
	if err != nil {
		panic(err)
	}
	return f
}

// FromRecords builds a frame from row-major records.
func FromRecords(labels []string, rows [][]any) (*Frame, error) {
	cols := make([]*Column, len(labels))
	for i, label := range labels {
		vals := make([]any, len(rows))
		for r, row := range rows {
			if len(row) != len(labels) {
				return nil, errors.Newf("row %d has %d cells; expected %d", r, len(row), len(labels))
			}
			vals[r] = row[i]
		}
		cols[i] = NewColumn(label, dtype.DataType{}, vals)
	}
	return New(cols...)
}

// NumRows returns the number of rows.
func (f *Frame) NumRows() int {
	if len(f.cols) == 0 {
		if f.index != nil {
			return f.index.Len()
		}
		return 0
	}
	return f.cols[0].Len()
}

// NumColumns returns the number of columns.
func (f *Frame) NumColumns() int { return len(f.cols) }

// Labels returns the column labels in order.
func (f *Frame) Labels() []string {
	labels := make([]string, len(f.cols))
	for i, col := range f.cols {
		labels[i] = col.Name()
	}
	return labels
}

// Column returns the first column with the given label.
func (f *Frame) Column(label string) (check.ColumnView, bool) {
	col, ok := f.Col(label)
	if !ok {
		return nil, false
	}
	return col, true
}

// Col returns the first column with the given label as a concrete column.
func (f *Frame) Col(label string) (*Column, bool) {
	for _, col := range f.cols {
		if col.Name() == label {
			return col, true
		}
	}
	return nil, false
}

// ColAt returns the column at position i.
func (f *Frame) ColAt(i int) *Column { return f.cols[i] }

// HasColumn reports whether any column carries the label.
func (f *Frame) HasColumn(label string) bool {
	_, ok := f.Col(label)
	return ok
}

// Index returns the frame's index data, or nil.
func (f *Frame) Index() *IndexData { return f.index }

// SetIndexData attaches index data in place.
func (f *Frame) SetIndexData(ix *IndexData) { f.index = ix }

// AppendColumn adds a column at the end. Duplicate labels are allowed.
func (f *Frame) AppendColumn(col *Column) error {
	return f.InsertColumnAt(len(f.cols), col)
}

// InsertColumnAt adds a column at position i.
func (f *Frame) InsertColumnAt(i int, col *Column) error {
	if len(f.cols) > 0 && col.Len() != f.NumRows() {
		return errors.Newf("column %q has %d rows; expected %d", col.Name(), col.Len(), f.NumRows())
	}
	if i < 0 || i > len(f.cols) {
		return errors.Newf("insert position %d out of range", i)
	}
	f.cols = append(f.cols, nil)
	copy(f.cols[i+1:], f.cols[i:])
	f.cols[i] = col
	return nil
}

// ReplaceColumnAt swaps the column at position i in place.
func (f *Frame) ReplaceColumnAt(i int, col *Column) {
	f.cols[i] = col
}

// RetainColumns keeps only the columns at the given positions, in that
// order, mutating the frame.
func (f *Frame) RetainColumns(positions []int) {
	kept := make([]*Column, len(positions))
	for i, p := range positions {
		kept[i] = f.cols[p]
	}
	f.cols = kept
}

// SelectRows returns a new frame holding the rows at the given positions,
// index included.
func (f *Frame) SelectRows(positions []int) *Frame {
	cols := make([]*Column, len(f.cols))
	for i, col := range f.cols {
		cols[i] = col.Select(positions)
	}
	n := &Frame{cols: cols}
	if f.index != nil {
		n.index = f.index.selectRows(positions)
	}
	return n
}

// Clone deep-copies the frame.
func (f *Frame) Clone() *Frame {
	cols := make([]*Column, len(f.cols))
	for i, col := range f.cols {
		cols[i] = col.Clone()
	}
	n := &Frame{cols: cols}
	if f.index != nil {
		n.index = f.index.clone()
	}
	return n
}

// Equal compares labels, values, and index data.
func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if len(f.cols) != len(o.cols) {
		return false
	}
	for i := range f.cols {
		if !f.cols[i].Equal(o.cols[i]) {
			return false
		}
	}
	return f.index.Equal(o.index)
}
