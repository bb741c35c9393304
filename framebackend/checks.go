package framebackend

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cockroachdb/errors"

	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
)

// registerFrameChecks installs the builtin predicate bodies for frame
// column views.
func registerFrameChecks() {
	for _, b := range []struct {
		name string
		impl check.Impl
	}{
		{check.NameEqualTo, equalToImpl},
		{check.NameNotEqualTo, notEqualToImpl},
		{check.NameGreaterThan, compareImpl(func(c int) bool { return c > 0 })},
		{check.NameGreaterThanOrEqualTo, compareImpl(func(c int) bool { return c >= 0 })},
		{check.NameLessThan, compareImpl(func(c int) bool { return c < 0 })},
		{check.NameLessThanOrEqualTo, compareImpl(func(c int) bool { return c <= 0 })},
		{check.NameInRange, inRangeImpl},
		{check.NameIsIn, isInImpl},
		{check.NameNotIn, notInImpl},
		{check.NameStrMatches, strMatchesImpl},
		{check.NameStrContains, strContainsImpl},
		{check.NameStrStartsWith, strStartsWithImpl},
		{check.NameStrEndsWith, strEndsWithImpl},
		{check.NameStrLength, strLengthImpl},
		{check.NameUniqueValuesEq, uniqueValuesEqImpl},
	} {
		check.RegisterImpl(b.name, columnViewType, b.impl)
	}
}

// maskImpl evaluates the predicate per element into a mask result. Null
// cells reach the predicate as nil; views exclude them upfront unless the
// check opted into seeing nulls.
func maskImpl(view check.ColumnView, pred func(v any) bool) check.Result {
	mask := make([]bool, view.Len())
	passed := true
	for i := 0; i < view.Len(); i++ {
		mask[i] = pred(view.Value(i))
		passed = passed && mask[i]
	}
	return check.Result{Passed: passed, Mask: mask}
}

func equalToImpl(view check.ColumnView, args []any) (check.Result, error) {
	if len(args) != 1 {
		return check.Result{}, errors.Newf("equal_to expects 1 argument, got %d", len(args))
	}
	want := args[0]
	return maskImpl(view, func(v any) bool { return dtype.Equal(v, want) }), nil
}

func notEqualToImpl(view check.ColumnView, args []any) (check.Result, error) {
	if len(args) != 1 {
		return check.Result{}, errors.Newf("not_equal_to expects 1 argument, got %d", len(args))
	}
	want := args[0]
	return maskImpl(view, func(v any) bool { return !dtype.Equal(v, want) }), nil
}

// compareImpl builds a bound-comparison body. Elements that cannot be
// compared to the bound, nulls included, fail individually instead of
// erroring the whole check.
func compareImpl(ok func(cmp int) bool) check.Impl {
	return func(view check.ColumnView, args []any) (check.Result, error) {
		if len(args) != 1 {
			return check.Result{}, errors.Newf("comparison check expects 1 argument, got %d", len(args))
		}
		bound := args[0]
		return maskImpl(view, func(v any) bool {
			c, err := dtype.Compare(v, bound)
			if err != nil {
				return false
			}
			return ok(c)
		}), nil
	}
}

func inRangeImpl(view check.ColumnView, args []any) (check.Result, error) {
	if len(args) != 2 && len(args) != 4 {
		return check.Result{}, errors.Newf("in_range expects 2 or 4 arguments, got %d", len(args))
	}
	lo, hi := args[0], args[1]
	inclMin, inclMax := true, true
	if len(args) == 4 {
		var ok bool
		if inclMin, ok = args[2].(bool); !ok {
			return check.Result{}, errors.Newf("in_range bound flags must be booleans")
		}
		if inclMax, ok = args[3].(bool); !ok {
			return check.Result{}, errors.Newf("in_range bound flags must be booleans")
		}
	}
	return maskImpl(view, func(v any) bool {
		cl, err := dtype.Compare(v, lo)
		if err != nil {
			return false
		}
		ch, err := dtype.Compare(v, hi)
		if err != nil {
			return false
		}
		if cl < 0 || (cl == 0 && !inclMin) {
			return false
		}
		return ch < 0 || (ch == 0 && inclMax)
	}), nil
}

func isInImpl(view check.ColumnView, args []any) (check.Result, error) {
	allowed := keySet(args)
	return maskImpl(view, func(v any) bool { return allowed[dtype.GroupKey(v)] }), nil
}

func notInImpl(view check.ColumnView, args []any) (check.Result, error) {
	forbidden := keySet(args)
	return maskImpl(view, func(v any) bool { return !forbidden[dtype.GroupKey(v)] }), nil
}

func keySet(values []any) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[dtype.GroupKey(v)] = true
	}
	return set
}

func strVal(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}

// strMatchesImpl anchors the pattern at the start of the value; use
// str_contains for an unanchored search.
func strMatchesImpl(view check.ColumnView, args []any) (check.Result, error) {
	if len(args) != 1 {
		return check.Result{}, errors.Newf("str_matches expects 1 argument, got %d", len(args))
	}
	pattern, ok := args[0].(string)
	if !ok {
		return check.Result{}, errors.Newf("str_matches pattern must be a string, got %T", args[0])
	}
	re, err := regexp.Compile("^(?:" + pattern + ")")
	if err != nil {
		return check.Result{}, errors.Wrapf(err, "invalid str_matches pattern %q", pattern)
	}
	return maskImpl(view, func(v any) bool {
		s, ok := strVal(v)
		return ok && re.MatchString(s)
	}), nil
}

func strContainsImpl(view check.ColumnView, args []any) (check.Result, error) {
	if len(args) != 1 {
		return check.Result{}, errors.Newf("str_contains expects 1 argument, got %d", len(args))
	}
	pattern, ok := args[0].(string)
	if !ok {
		return check.Result{}, errors.Newf("str_contains argument must be a string, got %T", args[0])
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return check.Result{}, errors.Wrapf(err, "invalid str_contains pattern %q", pattern)
	}
	return maskImpl(view, func(v any) bool {
		s, ok := strVal(v)
		return ok && re.MatchString(s)
	}), nil
}

func strStartsWithImpl(view check.ColumnView, args []any) (check.Result, error) {
	if len(args) != 1 {
		return check.Result{}, errors.Newf("str_startswith expects 1 argument, got %d", len(args))
	}
	prefix, ok := args[0].(string)
	if !ok {
		return check.Result{}, errors.Newf("str_startswith argument must be a string, got %T", args[0])
	}
	return maskImpl(view, func(v any) bool {
		s, ok := strVal(v)
		return ok && strings.HasPrefix(s, prefix)
	}), nil
}

func strEndsWithImpl(view check.ColumnView, args []any) (check.Result, error) {
	if len(args) != 1 {
		return check.Result{}, errors.Newf("str_endswith expects 1 argument, got %d", len(args))
	}
	suffix, ok := args[0].(string)
	if !ok {
		return check.Result{}, errors.Newf("str_endswith argument must be a string, got %T", args[0])
	}
	return maskImpl(view, func(v any) bool {
		s, ok := strVal(v)
		return ok && strings.HasSuffix(s, suffix)
	}), nil
}

// strLengthImpl counts runes, not bytes. Either bound may be -1 for
// unbounded.
func strLengthImpl(view check.ColumnView, args []any) (check.Result, error) {
	if len(args) != 2 {
		return check.Result{}, errors.Newf("str_length expects 2 arguments, got %d", len(args))
	}
	min, err := intArg(args[0])
	if err != nil {
		return check.Result{}, errors.Wrap(err, "str_length min")
	}
	max, err := intArg(args[1])
	if err != nil {
		return check.Result{}, errors.Wrap(err, "str_length max")
	}
	return maskImpl(view, func(v any) bool {
		s, ok := strVal(v)
		if !ok {
			return false
		}
		n := utf8.RuneCountInString(s)
		if min >= 0 && n < min {
			return false
		}
		return max < 0 || n <= max
	}), nil
}

func intArg(v any) (int, error) {
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

// uniqueValuesEqImpl compares the set of observed values to the expected
// set, reporting the difference in both directions.
func uniqueValuesEqImpl(view check.ColumnView, args []any) (check.Result, error) {
	want := make(map[string]bool, len(args))
	for _, v := range args {
		want[dtype.GroupKey(v)] = true
	}
	got := map[string]bool{}
	var unexpected []string
	flagged := map[string]bool{}
	for i := 0; i < view.Len(); i++ {
		v := view.Value(i)
		k := dtype.GroupKey(v)
		got[k] = true
		if !want[k] && !flagged[k] {
			flagged[k] = true
			unexpected = append(unexpected, dtype.Format(v))
		}
	}
	var missing []string
	for _, v := range args {
		if !got[dtype.GroupKey(v)] {
			missing = append(missing, dtype.Format(v))
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return check.PassResult(), nil
	}
	var parts []string
	if len(missing) > 0 {
		parts = append(parts, fmt.Sprintf("missing values: %s", strings.Join(missing, ", ")))
	}
	if len(unexpected) > 0 {
		parts = append(parts, fmt.Sprintf("unexpected values: %s", strings.Join(unexpected, ", ")))
	}
	return check.Result{Msg: strings.Join(parts, "; ")}, nil
}
