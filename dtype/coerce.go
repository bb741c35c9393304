package dtype

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"
)

const (
	timestampLayout = "2006-01-02 15:04:05"
	dateLayout      = "2006-01-02"
)

// decimalCtx is used for decimals declared without an explicit precision.
var decimalCtx = apd.BaseContext.WithPrecision(20)

// Coerce converts v into the native Go representation for the type: bool,
// int64, float64, string, []byte, *apd.Decimal, or time.Time. A nil value
// passes through untouched; nullability is enforced by the schema, not the
// type. Lossy conversions are errors.
func (t DataType) Coerce(v any) (any, error) {
	if v == nil || t.IsAny() {
		return v, nil
	}
	switch t.Kind {
	case KindBool:
		return coerceBool(v)
	case KindInt64:
		return coerceInt64(v)
	case KindFloat64:
		return coerceFloat64(v)
	case KindString:
		return coerceString(v)
	case KindBytes:
		return coerceBytes(v)
	case KindDecimal:
		return t.coerceDecimal(v)
	case KindTimestamp:
		return coerceTime(v, false)
	case KindDate:
		return coerceTime(v, true)
	}
	return nil, errors.AssertionFailedf("unhandled kind %s", t.Kind)
}

// Check reports whether v already has the native representation for the
// type. Nil values always pass.
func (t DataType) Check(v any) bool {
	if v == nil || t.IsAny() {
		return true
	}
	switch t.Kind {
	case KindBool:
		_, ok := v.(bool)
		return ok
	case KindInt64:
		_, ok := v.(int64)
		return ok
	case KindFloat64:
		_, ok := v.(float64)
		return ok
	case KindString:
		_, ok := v.(string)
		return ok
	case KindBytes:
		_, ok := v.([]byte)
		return ok
	case KindDecimal:
		_, ok := v.(*apd.Decimal)
		return ok
	case KindTimestamp, KindDate:
		_, ok := v.(time.Time)
		return ok
	}
	return false
}

func coerceBool(v any) (any, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.Newf("cannot coerce %q to bool", v)
		}
		return b, nil
	case int, int8, int16, int32, int64:
		i, _ := normalize(v).(int64)
		switch i {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	case float64:
		switch v {
		case 0:
			return false, nil
		case 1:
			return true, nil
		}
	}
	return nil, errors.Newf("cannot coerce %v (%T) to bool", v, v)
}

func coerceInt64(v any) (any, error) {
	switch v := normalize(v).(type) {
	case int64:
		return v, nil
	case bool:
		if v {
			return int64(1), nil
		}
		return int64(0), nil
	case float64:
		if math.Trunc(v) != v || math.IsInf(v, 0) || math.IsNaN(v) {
			return nil, errors.Newf("cannot coerce %v to int64 without loss", v)
		}
		if v > math.MaxInt64 || v < math.MinInt64 {
			return nil, errors.Newf("%v overflows int64", v)
		}
		return int64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i, nil
		}
		// Accept float-formatted integers such as "12.0".
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.Trunc(f) != f {
			return nil, errors.Newf("cannot coerce %q to int64", v)
		}
		return int64(f), nil
	case *apd.Decimal:
		i, err := v.Int64()
		if err != nil {
			return nil, errors.Newf("cannot coerce decimal %s to int64 without loss", v)
		}
		return i, nil
	}
	return nil, errors.Newf("cannot coerce %v (%T) to int64", v, v)
}

func coerceFloat64(v any) (any, error) {
	switch v := normalize(v).(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case bool:
		if v {
			return float64(1), nil
		}
		return float64(0), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, errors.Newf("cannot coerce %q to float64", v)
		}
		return f, nil
	case *apd.Decimal:
		f, err := v.Float64()
		if err != nil {
			return nil, errors.Newf("cannot coerce decimal %s to float64", v)
		}
		return f, nil
	}
	return nil, errors.Newf("cannot coerce %v (%T) to float64", v, v)
}

func coerceString(v any) (any, error) {
	switch v := normalize(v).(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case bool:
		return strconv.FormatBool(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64), nil
	case *apd.Decimal:
		return v.Text('f'), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	}
	return nil, errors.Newf("cannot coerce %v (%T) to string", v, v)
}

func coerceBytes(v any) (any, error) {
	switch v := v.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	}
	return nil, errors.Newf("cannot coerce %v (%T) to bytes", v, v)
}

func (t DataType) coerceDecimal(v any) (any, error) {
	ctx := decimalCtx
	if t.Precision > 0 {
		ctx = apd.BaseContext.WithPrecision(uint32(t.Precision))
	}
	var d apd.Decimal
	switch v := normalize(v).(type) {
	case *apd.Decimal:
		d.Set(v)
	case int64:
		d.SetInt64(v)
	case float64:
		if _, err := d.SetFloat64(v); err != nil {
			return nil, errors.Wrapf(err, "cannot coerce %v to decimal", v)
		}
	case string:
		if _, _, err := d.SetString(strings.TrimSpace(v)); err != nil {
			return nil, errors.Newf("cannot coerce %q to decimal", v)
		}
	default:
		return nil, errors.Newf("cannot coerce %v (%T) to decimal", v, v)
	}
	if t.Precision > 0 {
		var rounded apd.Decimal
		res, err := ctx.Quantize(&rounded, &d, -t.Scale)
		if err != nil || res.Any(apd.Overflow|apd.InvalidOperation) {
			return nil, errors.Newf("%s does not fit in decimal(%d,%d)", d.String(), t.Precision, t.Scale)
		}
		return &rounded, nil
	}
	return &d, nil
}

func coerceTime(v any, dateOnly bool) (any, error) {
	var ts time.Time
	switch v := v.(type) {
	case time.Time:
		ts = v
	case string:
		s := strings.TrimSpace(v)
		var err error
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, timestampLayout, dateLayout} {
			ts, err = time.Parse(layout, s)
			if err == nil {
				break
			}
		}
		if err != nil {
			return nil, errors.Newf("cannot coerce %q to timestamp", v)
		}
	default:
		return nil, errors.Newf("cannot coerce %v (%T) to timestamp", v, v)
	}
	if dateOnly {
		y, m, d := ts.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	return ts, nil
}

// Format renders a scalar the way reports and CSV output show it. Nil
// renders empty.
func Format(v any) string {
	if v == nil {
		return ""
	}
	s, err := coerceString(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s.(string)
}

// normalize widens machine integer and float variants so the rest of the
// package only sees int64, float64, and the native types.
func normalize(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return int64(v)
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return int64(v)
	case float32:
		return float64(v)
	}
	return v
}
