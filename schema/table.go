package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/schemaerr"
)

// Table is the aggregate schema for a whole table: ordered column
// declarations, an optional index declaration, table-level checks, and the
// options controlling strictness, coercion, and uniqueness. Tables are
// immutable; transforms return new schemas.
type Table struct {
	name    string
	columns []Column
	byName  map[string]int
	index   IndexSchema
	checks  []check.Check

	dtype             dtype.DataType
	coerce            bool
	strict            Strictness
	ordered           bool
	uniqueSets        [][]string
	reportDuplicates  DuplicateMode
	uniqueColumnNames bool
	addMissingColumns bool
	dropInvalidRows   bool

	title       string
	description string
	metadata    map[string]any
}

// TableOpt configures a Table at construction.
type TableOpt func(*Table)

// WithName names the schema; the name appears in reports.
func WithName(name string) TableOpt {
	return func(t *Table) { t.name = name }
}

// WithIndex attaches an index declaration.
func WithIndex(idx IndexSchema) TableOpt {
	return func(t *Table) { t.index = idx }
}

// WithChecks attaches table-level checks.
func WithChecks(checks ...check.Check) TableOpt {
	return func(t *Table) { t.checks = checks }
}

// WithDType declares a table-wide type applied to every column that does
// not declare its own.
func WithDType(dt dtype.DataType) TableOpt {
	return func(t *Table) { t.dtype = dt }
}

// WithCoerce cascades coercion to every column and index level.
func WithCoerce(coerce bool) TableOpt {
	return func(t *Table) { t.coerce = coerce }
}

// WithStrict sets how observed columns outside the schema are treated.
func WithStrict(s Strictness) TableOpt {
	return func(t *Table) { t.strict = s }
}

// WithOrdered requires observed column order to match declaration order.
func WithOrdered(ordered bool) TableOpt {
	return func(t *Table) { t.ordered = ordered }
}

// WithUnique requires the named columns to be jointly unique.
func WithUnique(columns ...string) TableOpt {
	return func(t *Table) { t.uniqueSets = append(t.uniqueSets, columns) }
}

// WithUniqueSets declares several jointly-unique column sets at once.
func WithUniqueSets(sets ...[]string) TableOpt {
	return func(t *Table) { t.uniqueSets = append(t.uniqueSets, sets...) }
}

// WithReportDuplicates selects which members of duplicate groups the
// table-level uniqueness checks report.
func WithReportDuplicates(mode DuplicateMode) TableOpt {
	return func(t *Table) { t.reportDuplicates = mode }
}

// WithUniqueColumnNames rejects containers with duplicated column labels.
func WithUniqueColumnNames(unique bool) TableOpt {
	return func(t *Table) { t.uniqueColumnNames = unique }
}

// WithAddMissingColumns inserts declared-but-absent columns into the output,
// filled with their default, or null when nullable. An absent column with
// neither fails validation.
func WithAddMissingColumns(add bool) TableOpt {
	return func(t *Table) { t.addMissingColumns = add }
}

// WithDropInvalidRows removes failing rows from the output instead of
// reporting them. Requires lazy validation.
func WithDropInvalidRows(drop bool) TableOpt {
	return func(t *Table) { t.dropInvalidRows = drop }
}

// WithTitle attaches a human-readable title.
func WithTitle(title string) TableOpt {
	return func(t *Table) { t.title = title }
}

// WithDescription attaches a longer description.
func WithDescription(desc string) TableOpt {
	return func(t *Table) { t.description = desc }
}

// WithMetadata attaches free-form metadata.
func WithMetadata(md map[string]any) TableOpt {
	return func(t *Table) { t.metadata = md }
}

// NewTable builds a table schema and validates the whole declaration.
// Definition problems are immediate InitErrors, never collected into lazy
// reports.
func NewTable(columns []Column, opts ...TableOpt) (*Table, error) {
	t := &Table{
		columns: append([]Column(nil), columns...),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.byName = make(map[string]int, len(t.columns))
	for i, col := range t.columns {
		if _, ok := t.byName[col.Name]; ok {
			return nil, schemaerr.NewInit("column %q declared twice", col.Name)
		}
		t.byName[col.Name] = i
	}
	if err := t.validateDef(); err != nil {
		return nil, err
	}
	return t, nil
}

// MustNewTable is NewTable for statically known declarations; it panics on
// definition errors.
func MustNewTable(columns []Column, opts ...TableOpt) *Table {
	t, err := NewTable(columns, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) validateDef() error {
	for _, col := range t.columns {
		if err := col.validateDef(); err != nil {
			return err
		}
		for _, ck := range col.Checks {
			if err := t.validateGroupby(ck, fmt.Sprintf("column %q", col.Name)); err != nil {
				return err
			}
		}
	}
	for _, ck := range t.checks {
		if err := check.ValidateDefinition(ck); err != nil {
			return schemaerr.WrapInitf(err, "table %q", t.name)
		}
		if err := t.validateGroupby(ck, "table"); err != nil {
			return err
		}
	}
	if t.index != nil {
		switch idx := t.index.(type) {
		case Index:
			if err := idx.validateDef(); err != nil {
				return err
			}
		case MultiIndex:
			if err := idx.validateDef(); err != nil {
				return err
			}
		default:
			return schemaerr.NewInit("unsupported index schema type %T", t.index)
		}
	}
	for _, set := range t.uniqueSets {
		if len(set) == 0 {
			return schemaerr.NewInit("empty jointly-unique column set")
		}
		for _, name := range set {
			if _, ok := t.byName[name]; !ok {
				return schemaerr.NewInit("jointly-unique column set references unknown column %q", name)
			}
		}
	}
	return nil
}

// validateGroupby ensures a check's groupby references declared columns.
func (t *Table) validateGroupby(ck check.Check, where string) error {
	for _, name := range ck.Groupby() {
		if _, ok := t.byName[name]; !ok {
			return schemaerr.NewInit(
				"%s check %q groups by unknown column %q", where, ck.Name(), name,
			)
		}
	}
	return nil
}

// Name returns the schema name.
func (t *Table) Name() string { return t.name }

// Columns returns the column declarations in declaration order. The
// returned slice is a copy.
func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

// NumColumns returns the number of declared columns.
func (t *Table) NumColumns() int { return len(t.columns) }

// Column looks a declaration up by name.
func (t *Table) Column(name string) (Column, bool) {
	i, ok := t.byName[name]
	if !ok {
		return Column{}, false
	}
	return t.columns[i], true
}

// HasColumn reports whether a column is declared.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.byName[name]
	return ok
}

// ColumnNames returns the declared names in order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, col := range t.columns {
		names[i] = col.Name
	}
	return names
}

// Index returns the index declaration, or nil.
func (t *Table) Index() IndexSchema { return t.index }

// Checks returns the table-level checks.
func (t *Table) Checks() []check.Check {
	return append([]check.Check(nil), t.checks...)
}

// DType returns the table-wide type declaration; zero when unset.
func (t *Table) DType() dtype.DataType { return t.dtype }

// Coerce reports whether coercion cascades to every component.
func (t *Table) Coerce() bool { return t.coerce }

// Strict returns the strictness mode.
func (t *Table) Strict() Strictness { return t.strict }

// Ordered reports whether observed column order must match declaration
// order.
func (t *Table) Ordered() bool { return t.ordered }

// UniqueSets returns the jointly-unique column sets.
func (t *Table) UniqueSets() [][]string {
	sets := make([][]string, len(t.uniqueSets))
	for i, s := range t.uniqueSets {
		sets[i] = append([]string(nil), s...)
	}
	return sets
}

// ReportDuplicates returns the table-level duplicate reporting mode.
func (t *Table) ReportDuplicates() DuplicateMode { return t.reportDuplicates }

// UniqueColumnNames reports whether duplicated observed labels are rejected.
func (t *Table) UniqueColumnNames() bool { return t.uniqueColumnNames }

// AddMissingColumns reports whether absent declared columns are inserted.
func (t *Table) AddMissingColumns() bool { return t.addMissingColumns }

// DropInvalidRows reports whether failing rows are removed from the output.
func (t *Table) DropInvalidRows() bool { return t.dropInvalidRows }

// Title returns the schema title.
func (t *Table) Title() string { return t.title }

// Description returns the schema description.
func (t *Table) Description() string { return t.description }

// Metadata returns the free-form metadata.
func (t *Table) Metadata() map[string]any { return t.metadata }

// EffectiveCoerce reports whether the given column coerces under this
// schema, folding in the table-level flag and the type's auto-coercion.
func (t *Table) EffectiveCoerce(col Column) bool {
	return t.coerce || col.Coerce || col.DType.AutoCoerce
}

// EffectiveDType returns the type a column validates against: its own, or
// the table-wide declaration when the column has none.
func (t *Table) EffectiveDType(col Column) dtype.DataType {
	if col.DType.IsAny() && !t.dtype.IsAny() {
		return t.dtype
	}
	return col.DType
}

func (t *Table) String() string {
	names := t.ColumnNames()
	name := t.name
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("TableSchema(%s: [%s])", name, strings.Join(names, ", "))
}

// Equal reports whether two table schemas declare the same thing. Checks
// compare by their rendered descriptions.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if t.name != o.name ||
		t.coerce != o.coerce ||
		t.strict != o.strict ||
		t.ordered != o.ordered ||
		t.reportDuplicates != o.reportDuplicates ||
		t.uniqueColumnNames != o.uniqueColumnNames ||
		t.addMissingColumns != o.addMissingColumns ||
		t.dropInvalidRows != o.dropInvalidRows ||
		!t.dtype.Equal(o.dtype) ||
		len(t.columns) != len(o.columns) ||
		len(t.checks) != len(o.checks) ||
		len(t.uniqueSets) != len(o.uniqueSets) {
		return false
	}
	for i := range t.columns {
		if !columnsEqual(t.columns[i], o.columns[i]) {
			return false
		}
	}
	for i := range t.checks {
		if t.checks[i].Describe() != o.checks[i].Describe() {
			return false
		}
	}
	for i := range t.uniqueSets {
		if len(t.uniqueSets[i]) != len(o.uniqueSets[i]) {
			return false
		}
		for j := range t.uniqueSets[i] {
			if t.uniqueSets[i][j] != o.uniqueSets[i][j] {
				return false
			}
		}
	}
	return indexesEqual(t.index, o.index)
}

func columnsEqual(a, b Column) bool {
	if a.Name != b.Name ||
		!a.DType.Equal(b.DType) ||
		a.Nullable != b.Nullable ||
		a.Unique != b.Unique ||
		a.ReportDuplicates != b.ReportDuplicates ||
		a.Coerce != b.Coerce ||
		a.Optional != b.Optional ||
		a.Regex != b.Regex ||
		a.DropInvalidRows != b.DropInvalidRows ||
		!dtype.Equal(a.Default, b.Default) ||
		len(a.Checks) != len(b.Checks) {
		return false
	}
	for i := range a.Checks {
		if a.Checks[i].Describe() != b.Checks[i].Describe() {
			return false
		}
	}
	return true
}

func indexesEqual(a, b IndexSchema) bool {
	if a == nil || b == nil {
		return (a == nil) == (b == nil)
	}
	al, bl := a.Levels(), b.Levels()
	if len(al) != len(bl) {
		return false
	}
	for i := range al {
		x, y := al[i], bl[i]
		if x.Name != y.Name || !x.DType.Equal(y.DType) ||
			x.Nullable != y.Nullable || x.Unique != y.Unique ||
			x.Coerce != y.Coerce || len(x.Checks) != len(y.Checks) {
			return false
		}
	}
	_, ami := a.(MultiIndex)
	_, bmi := b.(MultiIndex)
	return ami == bmi
}

// Validate applies the schema to a container, dispatching to the backend
// registered for the container's type. On success the returned container
// reflects any coercion, filtering, or row drops the options demanded; when
// nothing had to change it is the input itself.
func (t *Table) Validate(ctx context.Context, data any, opts ...backend.Option) (any, error) {
	options := backend.MakeOptions(opts...)
	if !options.Lazy && t.dropsInvalidRows() {
		return nil, schemaerr.NewInit("drop_invalid_rows requires lazy validation")
	}
	b, err := backend.Resolve(t, data)
	if err != nil {
		return nil, err
	}
	return b.Validate(ctx, t, data, options)
}

// dropsInvalidRows reports whether any part of the schema drops failing
// rows, which is only well defined under lazy validation.
func (t *Table) dropsInvalidRows() bool {
	if t.dropInvalidRows {
		return true
	}
	for _, col := range t.columns {
		if col.DropInvalidRows {
			return true
		}
	}
	return false
}

// CoerceDType applies only the coercion stage to a container.
func (t *Table) CoerceDType(ctx context.Context, data any) (any, error) {
	b, err := backend.Resolve(t, data)
	if err != nil {
		return nil, err
	}
	return b.CoerceDType(ctx, t, data)
}
