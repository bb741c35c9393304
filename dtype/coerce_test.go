package dtype

import (
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/require"
)

func mustDecimal(t *testing.T, s string) *apd.Decimal {
	t.Helper()
	d, _, err := apd.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestCoerce(t *testing.T) {
	for _, tc := range []struct {
		desc      string
		dt        DataType
		in        any
		expected  any
		expectErr bool
	}{
		{desc: "nil passthrough", dt: Int64, in: nil, expected: nil},
		{desc: "any passthrough", dt: DataType{}, in: "x", expected: "x"},

		{desc: "bool from string", dt: Bool, in: "true", expected: true},
		{desc: "bool from int", dt: Bool, in: 1, expected: true},
		{desc: "bool from bad string", dt: Bool, in: "yes", expectErr: true},
		{desc: "bool from int 2", dt: Bool, in: 2, expectErr: true},

		{desc: "int64 identity", dt: Int64, in: int64(42), expected: int64(42)},
		{desc: "int64 from int", dt: Int64, in: 42, expected: int64(42)},
		{desc: "int64 from integral float", dt: Int64, in: float64(12), expected: int64(12)},
		{desc: "int64 from string", dt: Int64, in: "123", expected: int64(123)},
		{desc: "int64 from float string", dt: Int64, in: "12.0", expected: int64(12)},
		{desc: "int64 lossy float", dt: Int64, in: 12.5, expectErr: true},
		{desc: "int64 lossy string", dt: Int64, in: "12.5", expectErr: true},
		{desc: "int64 garbage", dt: Int64, in: "twelve", expectErr: true},

		{desc: "float64 from int", dt: Float64, in: 3, expected: float64(3)},
		{desc: "float64 from string", dt: Float64, in: "2.5", expected: 2.5},
		{desc: "float64 garbage", dt: Float64, in: "pi", expectErr: true},

		{desc: "string from int", dt: String, in: int64(7), expected: "7"},
		{desc: "string from float", dt: String, in: 2.5, expected: "2.5"},
		{desc: "string from bytes", dt: String, in: []byte("ab"), expected: "ab"},
		{desc: "string from bool", dt: String, in: true, expected: "true"},

		{desc: "bytes from string", dt: Bytes, in: "ab", expected: []byte("ab")},

		{desc: "decimal from string", dt: DataType{Kind: KindDecimal}, in: "1.25"},
		{desc: "decimal from int", dt: DataType{Kind: KindDecimal}, in: 3},
		{desc: "decimal rounds to scale", dt: MakeDecimal(10, 2), in: "1.005"},
		{desc: "decimal overflow", dt: MakeDecimal(4, 2), in: "12345.6", expectErr: true},
		{desc: "decimal garbage", dt: MakeDecimal(10, 2), in: "abc", expectErr: true},

		{desc: "timestamp from rfc3339", dt: Timestamp, in: "2024-03-01T12:30:00Z"},
		{desc: "timestamp from datetime", dt: Timestamp, in: "2024-03-01 12:30:00"},
		{desc: "timestamp garbage", dt: Timestamp, in: "not a time", expectErr: true},
		{desc: "date truncates", dt: Date, in: "2024-03-01T12:30:00Z", expected: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			out, err := tc.dt.Coerce(tc.in)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tc.expected != nil {
				require.True(t, Equal(tc.expected, out), "expected %v, got %v", tc.expected, out)
			}
			require.True(t, tc.dt.Check(out))
		})
	}
}

func TestCoerceDecimalValues(t *testing.T) {
	dt := MakeDecimal(10, 2)
	out, err := dt.Coerce("1.005")
	require.NoError(t, err)
	require.Equal(t, 0, out.(*apd.Decimal).Cmp(mustDecimal(t, "1.01")))

	out, err = dt.Coerce(int64(3))
	require.NoError(t, err)
	require.Equal(t, "3.00", out.(*apd.Decimal).Text('f'))
}
