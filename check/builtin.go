package check

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/tablevet/tablevet/dtype"
)

// Canonical builtin check names. Constructors and the serialization layer
// both go through these.
const (
	NameEqualTo              = "equal_to"
	NameNotEqualTo           = "not_equal_to"
	NameGreaterThan          = "greater_than"
	NameGreaterThanOrEqualTo = "greater_than_or_equal_to"
	NameLessThan             = "less_than"
	NameLessThanOrEqualTo    = "less_than_or_equal_to"
	NameInRange              = "in_range"
	NameIsIn                 = "isin"
	NameNotIn                = "notin"
	NameStrMatches           = "str_matches"
	NameStrContains          = "str_contains"
	NameStrStartsWith        = "str_startswith"
	NameStrEndsWith          = "str_endswith"
	NameStrLength            = "str_length"
	NameUniqueValuesEq       = "unique_values_eq"
)

func describeArgs(name string, args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		if s, ok := a.(string); ok {
			parts[i] = fmt.Sprintf("%q", s)
		} else {
			parts[i] = fmt.Sprint(a)
		}
	}
	return fmt.Sprintf("%s(%s)", name, strings.Join(parts, ", "))
}

// EqualTo checks every value equals v. Alias: Eq.
func EqualTo(v any, opts ...Option) Check {
	return newCheck(NameEqualTo, describeArgs(NameEqualTo, v), []any{v}, opts...)
}

// Eq is shorthand for EqualTo.
func Eq(v any, opts ...Option) Check { return EqualTo(v, opts...) }

// NotEqualTo checks no value equals v. Alias: Ne.
func NotEqualTo(v any, opts ...Option) Check {
	return newCheck(NameNotEqualTo, describeArgs(NameNotEqualTo, v), []any{v}, opts...)
}

// Ne is shorthand for NotEqualTo.
func Ne(v any, opts ...Option) Check { return NotEqualTo(v, opts...) }

// GreaterThan checks every value is strictly greater than v. Alias: Gt.
func GreaterThan(v any, opts ...Option) Check {
	return newCheck(NameGreaterThan, describeArgs(NameGreaterThan, v), []any{v}, opts...)
}

// Gt is shorthand for GreaterThan.
func Gt(v any, opts ...Option) Check { return GreaterThan(v, opts...) }

// GreaterThanOrEqualTo checks every value is at least v. Alias: Ge.
func GreaterThanOrEqualTo(v any, opts ...Option) Check {
	return newCheck(NameGreaterThanOrEqualTo, describeArgs(NameGreaterThanOrEqualTo, v), []any{v}, opts...)
}

// Ge is shorthand for GreaterThanOrEqualTo.
func Ge(v any, opts ...Option) Check { return GreaterThanOrEqualTo(v, opts...) }

// LessThan checks every value is strictly less than v. Alias: Lt.
func LessThan(v any, opts ...Option) Check {
	return newCheck(NameLessThan, describeArgs(NameLessThan, v), []any{v}, opts...)
}

// Lt is shorthand for LessThan.
func Lt(v any, opts ...Option) Check { return LessThan(v, opts...) }

// LessThanOrEqualTo checks every value is at most v. Alias: Le.
func LessThanOrEqualTo(v any, opts ...Option) Check {
	return newCheck(NameLessThanOrEqualTo, describeArgs(NameLessThanOrEqualTo, v), []any{v}, opts...)
}

// Le is shorthand for LessThanOrEqualTo.
func Le(v any, opts ...Option) Check { return LessThanOrEqualTo(v, opts...) }

// InRange checks min <= value <= max. Alias: Between. Use InRangeBounds for
// open bounds.
func InRange(min, max any, opts ...Option) Check {
	return InRangeBounds(min, max, true, true, opts...)
}

// Between is shorthand for InRange.
func Between(min, max any, opts ...Option) Check { return InRange(min, max, opts...) }

// InRangeBounds checks value against [min, max] with each bound inclusive or
// exclusive.
func InRangeBounds(min, max any, includeMin, includeMax bool, opts ...Option) Check {
	return newCheck(
		NameInRange,
		describeArgs(NameInRange, min, max),
		[]any{min, max, includeMin, includeMax},
		opts...,
	)
}

// IsIn checks every value is a member of the allowed set.
func IsIn(allowed []any, opts ...Option) Check {
	return newCheck(NameIsIn, describeArgs(NameIsIn, allowed...), allowed, opts...)
}

// NotIn checks no value is a member of the forbidden set.
func NotIn(forbidden []any, opts ...Option) Check {
	return newCheck(NameNotIn, describeArgs(NameNotIn, forbidden...), forbidden, opts...)
}

// StrMatches checks string values against a regular expression.
func StrMatches(pattern string, opts ...Option) Check {
	return newCheck(NameStrMatches, describeArgs(NameStrMatches, pattern), []any{pattern}, opts...)
}

// StrContains checks string values contain the substring.
func StrContains(substr string, opts ...Option) Check {
	return newCheck(NameStrContains, describeArgs(NameStrContains, substr), []any{substr}, opts...)
}

// StrStartsWith checks string values start with the prefix.
func StrStartsWith(prefix string, opts ...Option) Check {
	return newCheck(NameStrStartsWith, describeArgs(NameStrStartsWith, prefix), []any{prefix}, opts...)
}

// StrEndsWith checks string values end with the suffix.
func StrEndsWith(suffix string, opts ...Option) Check {
	return newCheck(NameStrEndsWith, describeArgs(NameStrEndsWith, suffix), []any{suffix}, opts...)
}

// StrLength checks min <= len(value) <= max. Either bound may be -1 for
// unbounded.
func StrLength(min, max int, opts ...Option) Check {
	return newCheck(NameStrLength, describeArgs(NameStrLength, min, max), []any{min, max}, opts...)
}

// UniqueValuesEq checks the set of observed values equals exactly the
// expected set.
func UniqueValuesEq(values []any, opts ...Option) Check {
	return newCheck(NameUniqueValuesEq, describeArgs(NameUniqueValuesEq, values...), values, opts...)
}

// builtinSpec drives alias resolution, serialization, and definition
// validation for one builtin check.
type builtinSpec struct {
	name     string
	aliases  []string
	factory  func(args []any, opts ...Option) (Check, error)
	validate func(args []any) error
}

func exactArgs(n int, name string) func(args []any) error {
	return func(args []any) error {
		if len(args) != n {
			return errors.Newf("%s expects %d argument(s), got %d", name, n, len(args))
		}
		return nil
	}
}

var builtinSpecs = []*builtinSpec{
	{
		name: NameEqualTo, aliases: []string{"eq"},
		factory:  func(args []any, opts ...Option) (Check, error) { return EqualTo(args[0], opts...), nil },
		validate: exactArgs(1, NameEqualTo),
	},
	{
		name: NameNotEqualTo, aliases: []string{"ne"},
		factory:  func(args []any, opts ...Option) (Check, error) { return NotEqualTo(args[0], opts...), nil },
		validate: exactArgs(1, NameNotEqualTo),
	},
	{
		name: NameGreaterThan, aliases: []string{"gt"},
		factory:  func(args []any, opts ...Option) (Check, error) { return GreaterThan(args[0], opts...), nil },
		validate: exactArgs(1, NameGreaterThan),
	},
	{
		name: NameGreaterThanOrEqualTo, aliases: []string{"ge"},
		factory: func(args []any, opts ...Option) (Check, error) {
			return GreaterThanOrEqualTo(args[0], opts...), nil
		},
		validate: exactArgs(1, NameGreaterThanOrEqualTo),
	},
	{
		name: NameLessThan, aliases: []string{"lt"},
		factory:  func(args []any, opts ...Option) (Check, error) { return LessThan(args[0], opts...), nil },
		validate: exactArgs(1, NameLessThan),
	},
	{
		name: NameLessThanOrEqualTo, aliases: []string{"le"},
		factory: func(args []any, opts ...Option) (Check, error) {
			return LessThanOrEqualTo(args[0], opts...), nil
		},
		validate: exactArgs(1, NameLessThanOrEqualTo),
	},
	{
		name: NameInRange, aliases: []string{"between"},
		factory: func(args []any, opts ...Option) (Check, error) {
			switch len(args) {
			case 2:
				return InRange(args[0], args[1], opts...), nil
			case 4:
				inclMin, okMin := args[2].(bool)
				inclMax, okMax := args[3].(bool)
				if !okMin || !okMax {
					return Check{}, errors.Newf("in_range bound flags must be booleans")
				}
				return InRangeBounds(args[0], args[1], inclMin, inclMax, opts...), nil
			}
			return Check{}, errors.Newf("in_range expects 2 or 4 arguments, got %d", len(args))
		},
		validate: func(args []any) error {
			if len(args) != 2 && len(args) != 4 {
				return errors.Newf("in_range expects 2 or 4 arguments, got %d", len(args))
			}
			if _, err := dtype.Compare(args[0], args[1]); err != nil {
				return errors.Wrap(err, "in_range bounds are not comparable")
			}
			if c, _ := dtype.Compare(args[0], args[1]); c > 0 {
				return errors.Newf("in_range lower bound %v exceeds upper bound %v", args[0], args[1])
			}
			return nil
		},
	},
	{
		name:    NameIsIn,
		factory: func(args []any, opts ...Option) (Check, error) { return IsIn(args, opts...), nil },
	},
	{
		name:    NameNotIn,
		factory: func(args []any, opts ...Option) (Check, error) { return NotIn(args, opts...), nil },
	},
	{
		name: NameStrMatches,
		factory: func(args []any, opts ...Option) (Check, error) {
			pattern, ok := args[0].(string)
			if !ok {
				return Check{}, errors.Newf("str_matches pattern must be a string, got %T", args[0])
			}
			return StrMatches(pattern, opts...), nil
		},
		validate: func(args []any) error {
			if len(args) != 1 {
				return errors.Newf("str_matches expects 1 argument, got %d", len(args))
			}
			pattern, ok := args[0].(string)
			if !ok {
				return errors.Newf("str_matches pattern must be a string, got %T", args[0])
			}
			if _, err := regexp.Compile(pattern); err != nil {
				return errors.Wrapf(err, "invalid str_matches pattern %q", pattern)
			}
			return nil
		},
	},
	{
		name: NameStrContains,
		factory: func(args []any, opts ...Option) (Check, error) {
			s, ok := args[0].(string)
			if !ok {
				return Check{}, errors.Newf("str_contains argument must be a string, got %T", args[0])
			}
			return StrContains(s, opts...), nil
		},
		validate: exactArgs(1, NameStrContains),
	},
	{
		name: NameStrStartsWith,
		factory: func(args []any, opts ...Option) (Check, error) {
			s, ok := args[0].(string)
			if !ok {
				return Check{}, errors.Newf("str_startswith argument must be a string, got %T", args[0])
			}
			return StrStartsWith(s, opts...), nil
		},
		validate: exactArgs(1, NameStrStartsWith),
	},
	{
		name: NameStrEndsWith,
		factory: func(args []any, opts ...Option) (Check, error) {
			s, ok := args[0].(string)
			if !ok {
				return Check{}, errors.Newf("str_endswith argument must be a string, got %T", args[0])
			}
			return StrEndsWith(s, opts...), nil
		},
		validate: exactArgs(1, NameStrEndsWith),
	},
	{
		name: NameStrLength,
		factory: func(args []any, opts ...Option) (Check, error) {
			min, err := toInt(args[0])
			if err != nil {
				return Check{}, errors.Wrap(err, "str_length min")
			}
			max, err := toInt(args[1])
			if err != nil {
				return Check{}, errors.Wrap(err, "str_length max")
			}
			return StrLength(min, max, opts...), nil
		},
		validate: func(args []any) error {
			if len(args) != 2 {
				return errors.Newf("str_length expects 2 arguments, got %d", len(args))
			}
			min, err := toInt(args[0])
			if err != nil {
				return errors.Wrap(err, "str_length min")
			}
			max, err := toInt(args[1])
			if err != nil {
				return errors.Wrap(err, "str_length max")
			}
			if min >= 0 && max >= 0 && min > max {
				return errors.Newf("str_length min %d exceeds max %d", min, max)
			}
			return nil
		},
	},
	{
		name:    NameUniqueValuesEq,
		factory: func(args []any, opts ...Option) (Check, error) { return UniqueValuesEq(args, opts...), nil },
	},
}

func toInt(v any) (int, error) {
	switch v := v.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if float64(int(v)) != v {
			return 0, errors.Newf("%v is not an integer", v)
		}
		return int(v), nil
	}
	return 0, errors.Newf("%v (%T) is not an integer", v, v)
}
