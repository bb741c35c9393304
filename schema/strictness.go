package schema

import "github.com/cockroachdb/errors"

// Strictness controls how observed columns outside the schema are treated.
type Strictness int

const (
	// NotStrict admits extra observed columns untouched.
	NotStrict Strictness = iota
	// EnforceStrict fails on observed columns the schema does not declare.
	EnforceStrict
	// Filter silently drops undeclared observed columns from the output.
	Filter
)

func (s Strictness) String() string {
	switch s {
	case NotStrict:
		return "false"
	case EnforceStrict:
		return "true"
	case Filter:
		return "filter"
	}
	return "unknown"
}

// ParseStrictness reads the serialized strict setting, which is either a
// boolean or the string "filter".
func ParseStrictness(v any) (Strictness, error) {
	switch v := v.(type) {
	case nil:
		return NotStrict, nil
	case bool:
		if v {
			return EnforceStrict, nil
		}
		return NotStrict, nil
	case string:
		switch v {
		case "filter":
			return Filter, nil
		case "true":
			return EnforceStrict, nil
		case "false":
			return NotStrict, nil
		}
	}
	return NotStrict, errors.Newf("invalid strict setting %v; expected true, false, or \"filter\"", v)
}

// DuplicateMode selects which members of a duplicate group are reported by
// uniqueness checks.
type DuplicateMode int

const (
	// ReportAll reports every member of every duplicate group.
	ReportAll DuplicateMode = iota
	// ExcludeFirst reports all but the first occurrence.
	ExcludeFirst
	// ExcludeLast reports all but the last occurrence.
	ExcludeLast
)

func (m DuplicateMode) String() string {
	switch m {
	case ReportAll:
		return "all"
	case ExcludeFirst:
		return "exclude_first"
	case ExcludeLast:
		return "exclude_last"
	}
	return "unknown"
}

// ParseDuplicateMode reads the serialized report_duplicates setting.
func ParseDuplicateMode(s string) (DuplicateMode, error) {
	switch s {
	case "all", "":
		return ReportAll, nil
	case "exclude_first":
		return ExcludeFirst, nil
	case "exclude_last":
		return ExcludeLast, nil
	}
	return ReportAll, errors.Newf("invalid report_duplicates setting %q; expected all, exclude_first, or exclude_last", s)
}
