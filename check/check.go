// Package check defines named value checks, the builtin check catalog, and
// the registry through which validation backends resolve predicate bodies
// for their container types.
package check

// ColumnView is the read-only window a predicate body sees over one column
// (or index level, or a group slice of either).
type ColumnView interface {
	Name() string
	Len() int
	Value(i int) any
	IsNull(i int) bool
}

// TableView is the read-only window table-level custom predicates see.
type TableView interface {
	NumRows() int
	Labels() []string
	Column(label string) (ColumnView, bool)
}

// Result is what a predicate body returns. Mask, when set, holds the
// per-element outcome aligned with the view; scalar predicates leave it nil.
type Result struct {
	Passed bool
	Mask   []bool
	// Msg optionally details a scalar failure, e.g. the set difference of
	// unique_values_eq.
	Msg string
}

// PassResult is the canonical passing scalar result.
func PassResult() Result {
	return Result{Passed: true}
}

// Check is one named predicate attached to a column, an index level, or a
// table. Checks are immutable values; builders and options return copies.
type Check struct {
	name     string
	describe string
	args     []any

	errMsg      string
	groupby     []string
	ignoreNulls bool
	elementWise bool
	maxFailures int
	title       string
	description string

	columnFn  func(ColumnView) (Result, error)
	tableFn   func(TableView) (Result, error)
	elementFn func(any) bool
}

// Option configures a Check at construction.
type Option func(*Check)

// WithError overrides the failure message rendered into reports.
func WithError(msg string) Option {
	return func(c *Check) { c.errMsg = msg }
}

// WithGroupby splits the checked column by the named columns' values and
// applies the predicate to every group separately. Only meaningful for
// checks attached to table schemas or their columns.
func WithGroupby(columns ...string) Option {
	return func(c *Check) { c.groupby = columns }
}

// WithIgnoreNulls controls whether null elements are excluded before the
// predicate runs. Defaults to true; nullability is enforced separately.
func WithIgnoreNulls(ignore bool) Option {
	return func(c *Check) { c.ignoreNulls = ignore }
}

// WithMaxFailureCases caps how many offending values a failed check reports.
// Zero keeps them all.
func WithMaxFailureCases(n int) Option {
	return func(c *Check) { c.maxFailures = n }
}

// WithTitle attaches a human-readable title.
func WithTitle(title string) Option {
	return func(c *Check) { c.title = title }
}

// WithDescription attaches a longer description.
func WithDescription(desc string) Option {
	return func(c *Check) { c.description = desc }
}

func newCheck(name, describe string, args []any, opts ...Option) Check {
	c := Check{
		name:        name,
		describe:    describe,
		args:        args,
		ignoreNulls: true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// New returns a custom columnar check. The predicate receives the whole
// column view and decides pass/fail, optionally per element via Result.Mask.
func New(name string, fn func(ColumnView) (Result, error), opts ...Option) Check {
	c := newCheck(name, name, nil, opts...)
	c.columnFn = fn
	return c
}

// NewElementWise returns a custom check applied to each element in turn.
func NewElementWise(name string, fn func(any) bool, opts ...Option) Check {
	c := newCheck(name, name, nil, opts...)
	c.elementFn = fn
	c.elementWise = true
	return c
}

// NewTable returns a custom check over the whole table. Table checks cannot
// be attached to columns or indexes.
func NewTable(name string, fn func(TableView) (Result, error), opts ...Option) Check {
	c := newCheck(name, name, nil, opts...)
	c.tableFn = fn
	return c
}

// Name returns the canonical registered name, or the custom name.
func (c Check) Name() string { return c.name }

// Describe returns the rendered form used in reports, e.g. "greater_than(0)".
func (c Check) Describe() string { return c.describe }

// Args returns the check's statistics in declaration order. Serialization
// round-trips builtin checks through these.
func (c Check) Args() []any { return c.args }

// Groupby returns the grouping column names, if any.
func (c Check) Groupby() []string { return c.groupby }

// IgnoreNulls reports whether nulls are excluded before the predicate runs.
func (c Check) IgnoreNulls() bool { return c.ignoreNulls }

// ErrorMessage returns the custom failure message, if set.
func (c Check) ErrorMessage() string { return c.errMsg }

// MaxFailureCases returns the reported failure-case cap; zero means all.
func (c Check) MaxFailureCases() int { return c.maxFailures }

// Title returns the check title, if set.
func (c Check) Title() string { return c.title }

// Description returns the check description, if set.
func (c Check) Description() string { return c.description }

// IsCustom reports whether the check carries an inline predicate instead of
// resolving a registered body.
func (c Check) IsCustom() bool {
	return c.columnFn != nil || c.tableFn != nil || c.elementFn != nil
}

// IsTableLevel reports whether the check only applies to whole tables.
func (c Check) IsTableLevel() bool {
	return c.tableFn != nil
}

// RunColumn executes an inline columnar or element-wise predicate against a
// view. The caller must have established that the check is custom and not
// table-level.
func (c Check) RunColumn(view ColumnView) (Result, error) {
	if c.elementFn != nil {
		mask := make([]bool, view.Len())
		passed := true
		for i := 0; i < view.Len(); i++ {
			mask[i] = c.elementFn(view.Value(i))
			passed = passed && mask[i]
		}
		return Result{Passed: passed, Mask: mask}, nil
	}
	return c.columnFn(view)
}

// RunTable executes an inline table-level predicate.
func (c Check) RunTable(view TableView) (Result, error) {
	return c.tableFn(view)
}
