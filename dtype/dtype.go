// Package dtype defines the logical data types a schema can declare for a
// column or index level, along with coercion and comparison over their
// scalar representations.
package dtype

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Kind enumerates the supported logical types.
type Kind int

const (
	// KindAny is the zero value and means no declared type.
	KindAny Kind = iota
	KindBool
	KindInt64
	KindFloat64
	KindString
	KindBytes
	KindDecimal
	KindTimestamp
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindDecimal:
		return "decimal"
	case KindTimestamp:
		return "timestamp"
	case KindDate:
		return "date"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// DataType is a logical type declaration. The zero value means "no declared
// type" and matches any value.
type DataType struct {
	Kind Kind

	// Precision and Scale apply to KindDecimal only. Zero precision means
	// unconstrained.
	Precision int32
	Scale     int32

	// AutoCoerce marks types which always coerce on validation regardless
	// of the owning component's coerce flag.
	AutoCoerce bool
}

// Predeclared types for the common kinds.
var (
	Bool      = DataType{Kind: KindBool}
	Int64     = DataType{Kind: KindInt64}
	Float64   = DataType{Kind: KindFloat64}
	String    = DataType{Kind: KindString}
	Bytes     = DataType{Kind: KindBytes}
	Timestamp = DataType{Kind: KindTimestamp}
	Date      = DataType{Kind: KindDate}
)

// MakeDecimal returns a decimal type constrained to the given precision and
// scale. Zero precision leaves the decimal unconstrained.
func MakeDecimal(precision, scale int32) DataType {
	return DataType{Kind: KindDecimal, Precision: precision, Scale: scale}
}

// IsAny reports whether no type was declared.
func (t DataType) IsAny() bool {
	return t.Kind == KindAny
}

func (t DataType) String() string {
	if t.Kind == KindDecimal && t.Precision > 0 {
		return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
	}
	return t.Kind.String()
}

// Equal reports whether two type declarations are identical, ignoring
// AutoCoerce.
func (t DataType) Equal(o DataType) bool {
	return t.Kind == o.Kind && t.Precision == o.Precision && t.Scale == o.Scale
}

// Parse converts a canonical type name, as found in schema documents, into a
// DataType. Decimal accepts an optional "decimal(p,s)" form.
func Parse(s string) (DataType, error) {
	name := strings.TrimSpace(s)
	if strings.HasPrefix(name, "decimal(") && strings.HasSuffix(name, ")") {
		inner := name[len("decimal(") : len(name)-1]
		parts := strings.Split(inner, ",")
		if len(parts) != 2 {
			return DataType{}, errors.Newf("malformed decimal type %q; expected decimal(precision,scale)", s)
		}
		p, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 32)
		if err != nil {
			return DataType{}, errors.Wrapf(err, "malformed decimal precision in %q", s)
		}
		sc, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
		if err != nil {
			return DataType{}, errors.Wrapf(err, "malformed decimal scale in %q", s)
		}
		if p <= 0 || sc < 0 || sc > p {
			return DataType{}, errors.Newf("invalid decimal bounds in %q", s)
		}
		return MakeDecimal(int32(p), int32(sc)), nil
	}
	for _, k := range []Kind{
		KindBool, KindInt64, KindFloat64, KindString, KindBytes,
		KindDecimal, KindTimestamp, KindDate,
	} {
		if name == k.String() {
			return DataType{Kind: k}, nil
		}
	}
	return DataType{}, errors.Newf(
		"unknown data type %q; expected one of bool, int64, float64, string, bytes, decimal, decimal(p,s), timestamp, date",
		s,
	)
}
