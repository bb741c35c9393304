package dtype

import (
	"bytes"
	"reflect"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

// Compare orders two scalars of compatible kinds, returning -1, 0, or 1.
// Integers and floats compare against each other; everything else requires
// matching kinds. Nil is not comparable.
func Compare(a, b any) (int, error) {
	a, b = normalize(a), normalize(b)
	if a == nil || b == nil {
		return 0, errors.New("cannot compare null values")
	}
	switch av := a.(type) {
	case int64:
		switch bv := b.(type) {
		case int64:
			return compareOrdered(av, bv), nil
		case float64:
			return compareOrdered(float64(av), bv), nil
		case *apd.Decimal:
			var d apd.Decimal
			d.SetInt64(av)
			return d.Cmp(bv), nil
		}
	case float64:
		switch bv := b.(type) {
		case float64:
			return compareOrdered(av, bv), nil
		case int64:
			return compareOrdered(av, float64(bv)), nil
		case *apd.Decimal:
			f, err := bv.Float64()
			if err != nil {
				return 0, errors.Wrap(err, "comparing float64 against decimal")
			}
			return compareOrdered(av, f), nil
		}
	case string:
		if bv, ok := b.(string); ok {
			return compareOrdered(av, bv), nil
		}
	case []byte:
		if bv, ok := b.([]byte); ok {
			return bytes.Compare(av, bv), nil
		}
	case bool:
		if bv, ok := b.(bool); ok {
			switch {
			case av == bv:
				return 0, nil
			case bv:
				return -1, nil
			}
			return 1, nil
		}
	case *apd.Decimal:
		switch bv := b.(type) {
		case *apd.Decimal:
			return av.Cmp(bv), nil
		case int64:
			var d apd.Decimal
			d.SetInt64(bv)
			return av.Cmp(&d), nil
		case float64:
			f, err := av.Float64()
			if err != nil {
				return 0, errors.Wrap(err, "comparing decimal against float64")
			}
			return compareOrdered(f, bv), nil
		}
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			switch {
			case av.Equal(bv):
				return 0, nil
			case av.Before(bv):
				return -1, nil
			}
			return 1, nil
		}
	}
	return 0, errors.Newf("cannot compare %v (%T) against %v (%T)", a, a, b, b)
}

func compareOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Equal reports value equality across the scalar domain. Unlike Compare it
// tolerates nils and kind mismatches, which simply compare unequal.
func Equal(a, b any) bool {
	a, b = normalize(a), normalize(b)
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if c, err := Compare(a, b); err == nil {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}
