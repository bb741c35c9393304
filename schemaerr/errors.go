// Package schemaerr defines the error taxonomy for schema validation:
// immediate definition errors, single validation failures, and the lazy
// aggregate that collects every failure in a run into one report.
package schemaerr

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
)

// InitError wraps an invalid schema or check definition. It is raised
// immediately at construction or validation setup and is never collected
// into a lazy report.
type InitError struct {
	cause error
}

// NewInit returns a new InitError with a formatted message.
func NewInit(format string, args ...any) error {
	return &InitError{cause: errors.NewWithDepthf(1, format, args...)}
}

// WrapInit marks an existing error as a definition error.
func WrapInit(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &InitError{cause: errors.Wrap(err, msg)}
}

// WrapInitf is WrapInit with message formatting.
func WrapInitf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &InitError{cause: errors.Wrapf(err, format, args...)}
}

func (e *InitError) Error() string { return e.cause.Error() }
func (e *InitError) Unwrap() error { return e.cause }

// IsInit reports whether err is or wraps a schema definition error.
func IsInit(err error) bool {
	var ie *InitError
	return errors.As(err, &ie)
}

// Error is a single validation failure tied to one schema component and one
// core check.
type Error struct {
	// Schema is the table schema name, if set.
	Schema string
	// Context identifies the component kind the failure belongs to.
	Context ContextKind
	// Column is the resolved column or index level name; empty for
	// table-level failures.
	Column string
	Reason Reason
	Result CheckResult
	// Data is a handle on the offending container, when available.
	Data any

	// Ordering keys assigned by the collector's caller. ColumnOrd is the
	// column declaration position, -1 for schema-level failures.
	Stage     Stage
	ColumnOrd int
	CheckOrd  int

	seq int
}

func (e *Error) Error() string {
	var b strings.Builder
	switch e.Context {
	case ContextColumn:
		fmt.Fprintf(&b, "column %q", e.Column)
	case ContextIndex:
		if e.Column != "" {
			fmt.Fprintf(&b, "index %q", e.Column)
		} else {
			b.WriteString("index")
		}
	default:
		if e.Schema != "" {
			fmt.Fprintf(&b, "table %q", e.Schema)
		} else {
			b.WriteString("table")
		}
	}
	fmt.Fprintf(&b, " failed validation %s", e.Result.Check)
	if e.Result.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Result.Message)
	}
	if n := len(e.Result.FailureCases); n > 0 {
		cases := make([]string, 0, n)
		for _, fc := range e.Result.FailureCases {
			cases = append(cases, fc.String())
		}
		fmt.Fprintf(&b, "; failure cases: %s", strings.Join(cases, ", "))
	}
	if e.Result.Panic != nil {
		fmt.Fprintf(&b, "; check panicked: %v", e.Result.Panic)
	}
	return b.String()
}

// FailureCaseRow is one row of the flattened failure-case table exposed by
// Errors.
type FailureCaseRow struct {
	SchemaContext ContextKind
	Column        string
	Check         string
	FailureCase   any
	Index         int
}

// Errors aggregates every failure found during one lazy validation run.
// Member ordering is deterministic: schema-level failures first, then by
// column declaration order, pipeline stage, and check declaration order.
type Errors struct {
	Schema string
	errs   []*Error
}

func (e *Errors) Error() string {
	var b strings.Builder
	name := e.Schema
	if name == "" {
		name = "schema"
	}
	fmt.Fprintf(&b, "%s: %d validation error(s)", name, len(e.errs))

	counts := map[Reason]int{}
	var order []Reason
	for _, err := range e.errs {
		if counts[err.Reason] == 0 {
			order = append(order, err.Reason)
		}
		counts[err.Reason]++
	}
	var parts []string
	for _, r := range order {
		parts = append(parts, fmt.Sprintf("%s=%d", r, counts[r]))
	}
	fmt.Fprintf(&b, " (%s)\n", strings.Join(parts, ", "))

	tw := tabwriter.NewWriter(&b, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CONTEXT\tCOLUMN\tCHECK\tFAILURE CASE\tINDEX")
	for _, row := range e.FailureCases() {
		idx := "-"
		if row.Index >= 0 {
			idx = fmt.Sprint(row.Index)
		}
		col := row.Column
		if col == "" {
			col = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\n", row.SchemaContext, col, row.Check, row.FailureCase, idx)
	}
	_ = tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// Errors returns the collected failures in report order.
func (e *Errors) Errors() []*Error {
	return e.errs
}

// Unwrap exposes the members so errors.Is and errors.As see through the
// aggregate.
func (e *Errors) Unwrap() []error {
	out := make([]error, len(e.errs))
	for i, err := range e.errs {
		out[i] = err
	}
	return out
}

// FailureCases flattens every failure case of every member into table rows,
// in report order. Failures with no row-scoped cases contribute one row with
// index -1.
func (e *Errors) FailureCases() []FailureCaseRow {
	var rows []FailureCaseRow
	for _, err := range e.errs {
		if len(err.Result.FailureCases) == 0 {
			rows = append(rows, FailureCaseRow{
				SchemaContext: err.Context,
				Column:        err.Column,
				Check:         err.Result.Check,
				FailureCase:   err.Result.Message,
				Index:         -1,
			})
			continue
		}
		for _, fc := range err.Result.FailureCases {
			rows = append(rows, FailureCaseRow{
				SchemaContext: err.Context,
				Column:        err.Column,
				Check:         err.Result.Check,
				FailureCase:   fc.Value,
				Index:         fc.Index,
			})
		}
	}
	return rows
}
