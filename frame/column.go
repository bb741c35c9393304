// Package frame provides the in-process columnar container validated by the
// reference engine: ordered labeled columns of scalar values plus optional
// index levels, with CSV ingestion and a partitioned variant.
package frame

import (
	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
)

// Column is one labeled column of scalar values. A nil cell is null.
type Column struct {
	name   string
	dt     dtype.DataType
	values []any
}

var _ check.ColumnView = (*Column)(nil)

// NewColumn builds a column. The values slice is owned by the column
// afterwards.
func NewColumn(name string, dt dtype.DataType, values []any) *Column {
	return &Column{name: name, dt: dt, values: values}
}

// StringColumn builds a string-typed column, converting "" to a value, not
// null. Useful in tests and CSV loading paths.
func StringColumn(name string, values ...string) *Column {
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return NewColumn(name, dtype.String, vals)
}

// Name returns the column label.
func (c *Column) Name() string { return c.name }

// DType returns the column's type annotation.
func (c *Column) DType() dtype.DataType { return c.dt }

// Len returns the number of rows.
func (c *Column) Len() int { return len(c.values) }

// Value returns the cell at position i.
func (c *Column) Value(i int) any { return c.values[i] }

// IsNull reports whether the cell at position i is null.
func (c *Column) IsNull(i int) bool { return c.values[i] == nil }

// Values returns the backing slice. Callers must not mutate it; use Set on
// a cloned frame instead.
func (c *Column) Values() []any { return c.values }

// Set writes a cell in place.
func (c *Column) Set(i int, v any) { c.values[i] = v }

// SetDType replaces the type annotation in place.
func (c *Column) SetDType(dt dtype.DataType) { c.dt = dt }

// Renamed returns a column sharing values under a new label.
func (c *Column) Renamed(name string) *Column {
	return &Column{name: name, dt: c.dt, values: c.values}
}

// Select returns a new column holding the cells at the given positions.
func (c *Column) Select(positions []int) *Column {
	vals := make([]any, len(positions))
	for i, p := range positions {
		vals[i] = c.values[p]
	}
	return &Column{name: c.name, dt: c.dt, values: vals}
}

// Clone deep-copies the column.
func (c *Column) Clone() *Column {
	vals := make([]any, len(c.values))
	copy(vals, c.values)
	return &Column{name: c.name, dt: c.dt, values: vals}
}

// Equal compares labels and values; values compare by scalar equality, so
// int(1) equals int64(1).
func (c *Column) Equal(o *Column) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.name != o.name || len(c.values) != len(o.values) {
		return false
	}
	for i := range c.values {
		if !dtype.Equal(c.values[i], o.values[i]) {
			return false
		}
	}
	return true
}

// View returns a window over the given positions, still satisfying
// check.ColumnView. Group slices and row windows go through this.
func (c *Column) View(positions []int) check.ColumnView {
	return columnSlice{col: c, positions: positions}
}

type columnSlice struct {
	col       *Column
	positions []int
}

func (s columnSlice) Name() string      { return s.col.name }
func (s columnSlice) Len() int          { return len(s.positions) }
func (s columnSlice) Value(i int) any   { return s.col.values[s.positions[i]] }
func (s columnSlice) IsNull(i int) bool { return s.col.values[s.positions[i]] == nil }
