package schemaerr

import "fmt"

// FailureCase is one offending value with the row position it was observed
// at. Index is -1 for failures that are not tied to a single row, such as a
// missing column.
type FailureCase struct {
	Index int
	Value any
}

func (f FailureCase) String() string {
	if f.Index < 0 {
		return fmt.Sprint(f.Value)
	}
	return fmt.Sprintf("%v (row %d)", f.Value, f.Index)
}

// CheckResult is the outcome of applying one core check. Every check
// application produces one, passed or failed; a panicking predicate is
// recovered into a failed result carrying the panic value.
type CheckResult struct {
	Passed bool
	// Check is the rendered check description, e.g. "greater_than(0)".
	Check string
	// CheckIndex is the position of the check in its component's check
	// list, or -1 for implicit core checks such as dtype and nullability.
	CheckIndex int
	// Mask holds the per-element outcome aligned with the validated row
	// window; nil for scalar checks.
	Mask []bool
	// FailedPositions are the absolute row positions that failed. Unlike
	// FailureCases this is never truncated; row filtering depends on it.
	FailedPositions []int
	Reason          Reason
	Message         string
	FailureCases    []FailureCase
	// Panic carries the recovered value when the predicate panicked.
	Panic any
}
