package rowscan

import (
	"database/sql"
	"math/big"

	"github.com/cockroachdb/apd/v3"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/tablevet/tablevet/dtype"

	// MySQL statements are rendered through value expressions which need the
	// parser driver loaded.
	_ "github.com/pingcap/tidb/types/parser_driver"
)

type rows interface {
	Err() error
	Next() bool
	Row() ([]any, error)
	Close()
}

type pgRows struct {
	pgx.Rows
}

func (r *pgRows) Row() ([]any, error) {
	vals, err := r.Values()
	if err != nil {
		return nil, err
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		out[i] = normalizeDriverValue(v)
	}
	return out, nil
}

type mysqlRows struct {
	*sql.Rows
	types []dtype.DataType
}

func (r *mysqlRows) Row() ([]any, error) {
	raw := make([]sql.RawBytes, len(r.types))
	dest := make([]any, len(raw))
	for i := range raw {
		dest[i] = &raw[i]
	}
	if err := r.Rows.Scan(dest...); err != nil {
		return nil, err
	}
	out := make([]any, len(raw))
	for i, b := range raw {
		out[i] = decodeMySQLValue(b, r.types[i])
	}
	return out, nil
}

func (r *mysqlRows) Close() {
	_ = r.Rows.Close()
}

// decodeMySQLValue interprets a raw wire value by the declared data type.
// The driver hands every column back as bytes; the declared type is the only
// guide for reading them. Values that do not parse are kept as strings so the
// mismatch is reported by validation rather than the scan.
func decodeMySQLValue(b sql.RawBytes, dt dtype.DataType) any {
	if b == nil {
		return nil
	}
	if dt.Kind == dtype.KindBytes {
		return append([]byte(nil), b...)
	}
	if dt.IsAny() {
		return string(b)
	}
	if v, err := dt.Coerce(string(b)); err == nil {
		return v
	}
	return string(b)
}

// normalizeDriverValue maps driver-specific scalars onto the native value
// representations. Machine widths widen, numerics become decimals, and UUIDs
// render as text. Anything unrecognized passes through untouched.
func normalizeDriverValue(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case float32:
		return float64(v)
	case pgtype.Numeric:
		if !v.Valid {
			return nil
		}
		if v.NaN || v.InfinityModifier != pgtype.Finite {
			if dv, err := v.Value(); err == nil {
				return dv
			}
			return v
		}
		return decimalFromBig(v.Int, v.Exp)
	case [16]byte:
		u := pgtype.UUID{Bytes: v, Valid: true}
		if dv, err := u.Value(); err == nil {
			return dv
		}
		return v
	}
	return v
}

func decimalFromBig(coeff *big.Int, exp int32) *apd.Decimal {
	return apd.NewWithBigInt(new(apd.BigInt).SetMathBigInt(coeff), exp)
}
