package dtype

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/cockroachdb/apd/v3"
)

// GroupKey renders a scalar into a string that keys uniqueness and groupby
// maps. Integral numerics share a key across kinds, so 1, 1.0, and decimal
// 1.00 land in one group the way Compare treats them as equal.
func GroupKey(v any) string {
	switch v := normalize(v).(type) {
	case nil:
		return "\x00"
	case bool:
		return "b:" + strconv.FormatBool(v)
	case int64:
		return "i:" + strconv.FormatInt(v, 10)
	case float64:
		// Integral floats key like ints so 1.0 and 1 land in one group,
		// matching how Compare treats mixed numerics.
		if v == math.Trunc(v) && v >= math.MinInt64 && v < math.MaxInt64 {
			return "i:" + strconv.FormatInt(int64(v), 10)
		}
		return "f:" + strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return "s:" + v
	case []byte:
		return "y:" + string(v)
	case *apd.Decimal:
		// Strip trailing zeros so 1.10 and 1.1 land in one group.
		var r apd.Decimal
		r.Reduce(v)
		if i, err := r.Int64(); err == nil {
			return "i:" + strconv.FormatInt(i, 10)
		}
		return "d:" + r.Text('f')
	case time.Time:
		return "t:" + v.UTC().Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("v:%v", v)
}
