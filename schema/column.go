// Package schema defines the declarative model for tabular data: column and
// index field schemas, the table schema aggregate, and the copy-on-write
// transforms over it. Applying a schema to data happens through the backend
// registry; see the Validate methods.
package schema

import (
	"context"
	"regexp"

	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/schemaerr"
)

// Column declares expectations for one named column. The zero value of every
// field is its default: columns are required, not nullable, not unique, not
// coerced, and report every duplicate.
type Column struct {
	Name string
	// DType is the expected type; the zero value matches anything.
	DType  dtype.DataType
	Checks []check.Check
	// Nullable admits null values. Nulls are otherwise reported per row.
	Nullable bool
	// Unique rejects duplicate values, honoring ReportDuplicates.
	Unique           bool
	ReportDuplicates DuplicateMode
	// Coerce converts observed values to DType before checks run.
	Coerce bool
	// Optional inverts the default: optional columns may be absent from the
	// data without failing validation.
	Optional bool
	// Regex treats Name as a regular expression matching any number of
	// observed columns, which are all validated against this declaration.
	Regex       bool
	Title       string
	Description string
	// Default is filled into null cells before nullability and checks.
	Default  any
	Metadata map[string]any
	// DropInvalidRows removes failing rows from the output instead of
	// reporting them. Requires lazy validation.
	DropInvalidRows bool
}

// Required reports whether the column must be present in the data.
func (c Column) Required() bool { return !c.Optional }

// validateDef checks the declaration itself.
func (c Column) validateDef() error {
	if c.Name == "" {
		return schemaerr.NewInit("column has no name")
	}
	if c.Regex {
		if _, err := regexp.Compile(c.Name); err != nil {
			return schemaerr.WrapInitf(err, "invalid column name pattern %q", c.Name)
		}
	}
	for _, ck := range c.Checks {
		if ck.IsTableLevel() {
			return schemaerr.NewInit("column %q cannot carry table-level check %q", c.Name, ck.Name())
		}
		if err := check.ValidateDefinition(ck); err != nil {
			return schemaerr.WrapInitf(err, "column %q", c.Name)
		}
	}
	if c.Default != nil && !c.DType.IsAny() {
		if _, err := c.DType.Coerce(c.Default); err != nil {
			return schemaerr.WrapInitf(err, "column %q default", c.Name)
		}
	}
	return nil
}

// Pattern returns the compiled regex for regex columns, anchored at the
// start of the label, and nil otherwise. Only valid on declarations that
// passed validateDef.
func (c Column) Pattern() *regexp.Regexp {
	if !c.Regex {
		return nil
	}
	return regexp.MustCompile("^(?:" + c.Name + ")")
}

// Validate applies this column schema alone to a container, dispatching to
// the backend registered for the container type.
func (c Column) Validate(ctx context.Context, data any, opts ...backend.Option) (any, error) {
	if err := c.validateDef(); err != nil {
		return nil, err
	}
	b, err := backend.Resolve(c, data)
	if err != nil {
		return nil, err
	}
	return b.Validate(ctx, c, data, backend.MakeOptions(opts...))
}
