package schema

import (
	"fmt"

	"github.com/tablevet/tablevet/schemaerr"
)

// clone copies the schema with a fresh column slice and lookup map so a
// transform can edit it without touching the receiver. Checks, metadata,
// and unique sets are shared; they are immutable by convention.
func (t *Table) clone() *Table {
	n := *t
	n.columns = append([]Column(nil), t.columns...)
	n.reindex()
	return &n
}

func (t *Table) reindex() {
	t.byName = make(map[string]int, len(t.columns))
	for i, col := range t.columns {
		t.byName[col.Name] = i
	}
}

// AddColumns returns a schema with the given columns appended. Adding a
// column that is already declared is an error.
func (t *Table) AddColumns(cols ...Column) (*Table, error) {
	n := t.clone()
	for _, col := range cols {
		if _, ok := n.byName[col.Name]; ok {
			return nil, schemaerr.NewInit("column %q already declared", col.Name)
		}
		n.columns = append(n.columns, col)
		n.byName[col.Name] = len(n.columns) - 1
	}
	if err := n.validateDef(); err != nil {
		return nil, err
	}
	return n, nil
}

// RemoveColumns returns a schema without the named columns. Unknown names
// are an error.
func (t *Table) RemoveColumns(names ...string) (*Table, error) {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if _, ok := t.byName[name]; !ok {
			return nil, schemaerr.NewInit("cannot remove unknown column %q", name)
		}
		drop[name] = true
	}
	n := t.clone()
	kept := n.columns[:0]
	for _, col := range n.columns {
		if !drop[col.Name] {
			kept = append(kept, col)
		}
	}
	n.columns = kept
	n.reindex()
	if err := n.validateDef(); err != nil {
		return nil, err
	}
	return n, nil
}

// UpdateColumn returns a schema with one column's declaration edited by the
// update function, which receives a copy. Renaming through UpdateColumn is
// an error; use RenameColumns.
func (t *Table) UpdateColumn(name string, update func(*Column)) (*Table, error) {
	i, ok := t.byName[name]
	if !ok {
		return nil, schemaerr.NewInit("cannot update unknown column %q", name)
	}
	n := t.clone()
	col := n.columns[i]
	update(&col)
	if col.Name != name {
		return nil, schemaerr.NewInit("cannot rename column %q through UpdateColumn; use RenameColumns", name)
	}
	n.columns[i] = col
	if err := n.validateDef(); err != nil {
		return nil, err
	}
	return n, nil
}

// UpdateColumns applies several column edits at once, in declaration order.
// Every referenced column must exist before any edit is applied.
func (t *Table) UpdateColumns(updates map[string]func(*Column)) (*Table, error) {
	for name := range updates {
		if _, ok := t.byName[name]; !ok {
			return nil, schemaerr.NewInit("cannot update unknown column %q", name)
		}
	}
	n := t.clone()
	for i, col := range n.columns {
		update, ok := updates[col.Name]
		if !ok {
			continue
		}
		edited := col
		update(&edited)
		if edited.Name != col.Name {
			return nil, schemaerr.NewInit("cannot rename column %q through UpdateColumns; use RenameColumns", col.Name)
		}
		n.columns[i] = edited
	}
	if err := n.validateDef(); err != nil {
		return nil, err
	}
	return n, nil
}

// RenameColumns returns a schema with columns renamed per the mapping.
// Unknown source names error; identity entries are no-ops; a target that
// collides with a column not itself being renamed errors.
func (t *Table) RenameColumns(mapping map[string]string) (*Table, error) {
	for from := range mapping {
		if _, ok := t.byName[from]; !ok {
			return nil, schemaerr.NewInit("cannot rename unknown column %q", from)
		}
	}
	targets := make(map[string]bool, len(mapping))
	for from, to := range mapping {
		if from == to {
			continue
		}
		if targets[to] {
			return nil, schemaerr.NewInit("two columns renamed to %q", to)
		}
		targets[to] = true
		if _, exists := t.byName[to]; exists {
			if _, alsoRenamed := mapping[to]; !alsoRenamed {
				return nil, schemaerr.NewInit("cannot rename %q to %q: column already exists", from, to)
			}
		}
	}
	n := t.clone()
	for i, col := range n.columns {
		if to, ok := mapping[col.Name]; ok && to != col.Name {
			col.Name = to
			n.columns[i] = col
		}
	}
	n.reindex()
	if len(n.byName) != len(n.columns) {
		return nil, schemaerr.NewInit("rename produced duplicate column names")
	}
	if err := n.validateDef(); err != nil {
		return nil, err
	}
	return n, nil
}

// SelectColumns returns a schema keeping only the named columns, in the
// order given.
func (t *Table) SelectColumns(names ...string) (*Table, error) {
	n := t.clone()
	selected := make([]Column, 0, len(names))
	for _, name := range names {
		i, ok := t.byName[name]
		if !ok {
			return nil, schemaerr.NewInit("cannot select unknown column %q", name)
		}
		selected = append(selected, t.columns[i])
	}
	n.columns = selected
	n.reindex()
	if len(n.byName) != len(n.columns) {
		return nil, schemaerr.NewInit("column selected twice")
	}
	if err := n.validateDef(); err != nil {
		return nil, err
	}
	return n, nil
}

// SetIndex moves the named columns into the index. One moved column and no
// existing index yields a single Index; more, or appendLevels with an
// existing index, yield a MultiIndex. Moved columns keep their type, checks,
// nullability, uniqueness, and coercion; required, regex, and default do not
// apply to index levels.
func (t *Table) SetIndex(names []string, appendLevels bool) (*Table, error) {
	if len(names) == 0 {
		return nil, schemaerr.NewInit("SetIndex requires at least one column")
	}
	for _, name := range names {
		if _, ok := t.byName[name]; !ok {
			return nil, schemaerr.NewInit("cannot index unknown column %q", name)
		}
	}
	n := t.clone()

	var levels []Index
	if appendLevels && n.index != nil {
		levels = append(levels, n.index.Levels()...)
	}
	moved := make(map[string]bool, len(names))
	for _, name := range names {
		col := t.columns[t.byName[name]]
		levels = append(levels, Index{
			Name:             col.Name,
			DType:            col.DType,
			Checks:           col.Checks,
			Nullable:         col.Nullable,
			Unique:           col.Unique,
			ReportDuplicates: col.ReportDuplicates,
			Coerce:           col.Coerce,
			Title:            col.Title,
			Description:      col.Description,
		})
		moved[name] = true
	}

	kept := n.columns[:0]
	for _, col := range n.columns {
		if !moved[col.Name] {
			kept = append(kept, col)
		}
	}
	n.columns = kept
	n.reindex()

	if len(levels) == 1 {
		n.index = levels[0]
	} else {
		var mi MultiIndex
		if prev, ok := n.index.(MultiIndex); ok && appendLevels {
			mi = prev
		}
		mi.Indexes = levels
		n.index = mi
	}
	if err := n.validateDef(); err != nil {
		return nil, err
	}
	return n, nil
}

// ResetIndex moves index levels back into the columns, appended after the
// declared columns. A nil level list resets every level. With drop set the
// levels are discarded instead. Unnamed levels can only be reset via the
// nil form and come back named like their positional label.
func (t *Table) ResetIndex(levels []string, drop bool) (*Table, error) {
	if t.index == nil {
		return nil, schemaerr.NewInit("schema has no index to reset")
	}
	existing := t.index.Levels()
	reset := make([]bool, len(existing))
	if levels == nil {
		for i := range reset {
			reset[i] = true
		}
	} else {
		for _, name := range levels {
			found := false
			for i, lvl := range existing {
				if lvl.Name == name {
					reset[i] = true
					found = true
					break
				}
			}
			if !found {
				return nil, schemaerr.NewInit("cannot reset unknown index level %q", name)
			}
		}
	}

	n := t.clone()
	if !drop {
		for i, lvl := range existing {
			if !reset[i] {
				continue
			}
			name := lvl.Name
			if name == "" {
				if len(existing) == 1 {
					name = "index"
				} else {
					name = fmt.Sprintf("level_%d", i)
				}
			}
			if _, ok := n.byName[name]; ok {
				return nil, schemaerr.NewInit("reset index level %q collides with an existing column", name)
			}
			n.columns = append(n.columns, Column{
				Name:             name,
				DType:            lvl.DType,
				Checks:           lvl.Checks,
				Nullable:         lvl.Nullable,
				Unique:           lvl.Unique,
				ReportDuplicates: lvl.ReportDuplicates,
				Coerce:           lvl.Coerce,
				Title:            lvl.Title,
				Description:      lvl.Description,
			})
			n.byName[name] = len(n.columns) - 1
		}
	}

	var remaining []Index
	for i, lvl := range existing {
		if !reset[i] {
			remaining = append(remaining, lvl)
		}
	}
	switch len(remaining) {
	case 0:
		n.index = nil
	case 1:
		n.index = remaining[0]
	default:
		mi, _ := t.index.(MultiIndex)
		mi.Indexes = remaining
		n.index = mi
	}
	if err := n.validateDef(); err != nil {
		return nil, err
	}
	return n, nil
}
