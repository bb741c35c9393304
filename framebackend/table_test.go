package framebackend

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/frame"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

func makeFrame(t *testing.T, cols ...*frame.Column) *frame.Frame {
	t.Helper()
	f, err := frame.New(cols...)
	require.NoError(t, err)
	return f
}

func asErrors(t *testing.T, err error) *schemaerr.Errors {
	t.Helper()
	require.Error(t, err)
	var verrs *schemaerr.Errors
	require.True(t, errors.As(err, &verrs), "expected *schemaerr.Errors, got %T: %v", err, err)
	return verrs
}

func TestValidateIdentity(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "id", DType: dtype.Int64},
		{Name: "name", DType: dtype.String},
	})
	f := makeFrame(t,
		frame.NewColumn("id", dtype.Int64, []any{int64(1), int64(2)}),
		frame.NewColumn("name", dtype.String, []any{"a", "b"}),
	)
	out, err := sch.Validate(context.Background(), f)
	require.NoError(t, err)
	require.Same(t, f, out)
}

func TestValidateLazyCollectsAll(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "id", DType: dtype.Int64, Checks: []check.Check{check.Gt(int64(0))}},
		{Name: "name", DType: dtype.String, Checks: []check.Check{check.StrLength(2, -1)}},
	})
	f := makeFrame(t,
		frame.NewColumn("id", dtype.Int64, []any{int64(1), int64(-5), int64(3)}),
		frame.NewColumn("name", dtype.String, []any{"ab", "x", "yz"}),
	)
	_, err := sch.Validate(context.Background(), f, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 2)

	require.Equal(t, "id", errs[0].Column)
	require.Equal(t, schemaerr.ReasonCheckError, errs[0].Reason)
	require.Equal(t, "greater_than(0)", errs[0].Result.Check)
	require.Equal(t, []schemaerr.FailureCase{{Index: 1, Value: int64(-5)}}, errs[0].Result.FailureCases)

	require.Equal(t, "name", errs[1].Column)
	require.Equal(t, []schemaerr.FailureCase{{Index: 1, Value: "x"}}, errs[1].Result.FailureCases)
}

func TestValidateEagerStopsAtFirst(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "id", DType: dtype.Int64, Checks: []check.Check{check.Gt(int64(0))}},
		{Name: "name", DType: dtype.String, Checks: []check.Check{check.StrLength(2, -1)}},
	})
	f := makeFrame(t,
		frame.NewColumn("id", dtype.Int64, []any{int64(-5)}),
		frame.NewColumn("name", dtype.String, []any{"x"}),
	)
	_, err := sch.Validate(context.Background(), f)
	require.Error(t, err)
	var verr *schemaerr.Error
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "id", verr.Column)
	var verrs *schemaerr.Errors
	require.False(t, errors.As(err, &verrs))
}

func TestValidateRegexColumns(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "id", DType: dtype.Int64},
		{Name: "val_", Regex: true, DType: dtype.Float64, Checks: []check.Check{check.Ge(0.0)}},
	})
	f := makeFrame(t,
		frame.NewColumn("id", dtype.Int64, []any{int64(1)}),
		frame.NewColumn("val_a", dtype.Float64, []any{1.5}),
		frame.NewColumn("val_b", dtype.Float64, []any{-2.0}),
		frame.NewColumn("other", dtype.String, []any{"x"}),
	)
	_, err := sch.Validate(context.Background(), f, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 1)
	require.Equal(t, "val_b", errs[0].Column)
	require.Equal(t, []schemaerr.FailureCase{{Index: 0, Value: -2.0}}, errs[0].Result.FailureCases)

	t.Run("no match", func(t *testing.T) {
		f := makeFrame(t, frame.NewColumn("id", dtype.Int64, []any{int64(1)}))
		_, err := sch.Validate(context.Background(), f, backend.WithLazy())
		errs := asErrors(t, err).Errors()
		require.Len(t, errs, 1)
		require.Equal(t, schemaerr.ReasonMissingColumn, errs[0].Reason)
		require.Contains(t, errs[0].Error(), `no column matches pattern "val_"`)
	})
}

func TestValidateStrict(t *testing.T) {
	cols := []schema.Column{{Name: "a", DType: dtype.Int64}}
	f := makeFrame(t,
		frame.NewColumn("a", dtype.Int64, []any{int64(1)}),
		frame.NewColumn("b", dtype.String, []any{"x"}),
	)
	t.Run("enforce", func(t *testing.T) {
		sch := schema.MustNewTable(cols, schema.WithStrict(schema.EnforceStrict))
		_, err := sch.Validate(context.Background(), f, backend.WithLazy())
		errs := asErrors(t, err).Errors()
		require.Len(t, errs, 1)
		require.Equal(t, schemaerr.ReasonExtraColumn, errs[0].Reason)
		require.Equal(t, "b", errs[0].Column)
	})
	t.Run("filter", func(t *testing.T) {
		sch := schema.MustNewTable(cols, schema.WithStrict(schema.Filter))
		out, err := sch.Validate(context.Background(), f)
		require.NoError(t, err)
		require.Equal(t, []string{"a"}, out.(*frame.Frame).Labels())
		require.Equal(t, []string{"a", "b"}, f.Labels())
	})
	t.Run("not strict", func(t *testing.T) {
		sch := schema.MustNewTable(cols)
		out, err := sch.Validate(context.Background(), f)
		require.NoError(t, err)
		require.Same(t, f, out)
	})
}

func TestValidateMissingColumn(t *testing.T) {
	f := makeFrame(t, frame.NewColumn("a", dtype.Int64, []any{int64(1)}))
	t.Run("required", func(t *testing.T) {
		sch := schema.MustNewTable([]schema.Column{{Name: "a"}, {Name: "b"}})
		_, err := sch.Validate(context.Background(), f, backend.WithLazy())
		errs := asErrors(t, err).Errors()
		require.Len(t, errs, 1)
		require.Equal(t, schemaerr.ReasonMissingColumn, errs[0].Reason)
		require.Equal(t, "b", errs[0].Column)
		require.Contains(t, errs[0].Error(), `column "b" not in table`)
	})
	t.Run("optional", func(t *testing.T) {
		sch := schema.MustNewTable([]schema.Column{{Name: "a"}, {Name: "b", Optional: true}})
		out, err := sch.Validate(context.Background(), f)
		require.NoError(t, err)
		require.Same(t, f, out)
	})
}

func TestValidateAddMissingColumns(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "a", DType: dtype.Int64},
		{Name: "b", DType: dtype.Int64, Default: int64(7)},
		{Name: "c", DType: dtype.String, Nullable: true},
	}, schema.WithAddMissingColumns(true))
	f := makeFrame(t, frame.NewColumn("a", dtype.Int64, []any{int64(1), int64(2)}))
	out, err := sch.Validate(context.Background(), f)
	require.NoError(t, err)
	of := out.(*frame.Frame)
	require.Equal(t, []string{"a", "b", "c"}, of.Labels())
	b, ok := of.Col("b")
	require.True(t, ok)
	require.Equal(t, []any{int64(7), int64(7)}, b.Values())
	c, ok := of.Col("c")
	require.True(t, ok)
	require.Equal(t, []any{nil, nil}, c.Values())
	require.Equal(t, []string{"a"}, f.Labels())

	t.Run("no default and not nullable", func(t *testing.T) {
		sch := schema.MustNewTable([]schema.Column{
			{Name: "a", DType: dtype.Int64},
			{Name: "b", DType: dtype.Int64},
		}, schema.WithAddMissingColumns(true))
		_, err := sch.Validate(context.Background(), f)
		var verr *schemaerr.Error
		require.True(t, errors.As(err, &verr))
		require.Equal(t, schemaerr.ReasonMissingDefault, verr.Reason)
	})
}

func TestValidateOrdered(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{{Name: "a"}, {Name: "b"}}, schema.WithOrdered(true))
	f := makeFrame(t,
		frame.NewColumn("b", dtype.String, []any{"x"}),
		frame.NewColumn("a", dtype.Int64, []any{int64(1)}),
	)
	_, err := sch.Validate(context.Background(), f, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 1)
	require.Equal(t, schemaerr.ReasonWrongColumnOrder, errs[0].Reason)
	require.Equal(t, "a", errs[0].Column)
}

func TestValidateUniqueColumnNames(t *testing.T) {
	sch := schema.MustNewTable(
		[]schema.Column{{Name: "a"}},
		schema.WithUniqueColumnNames(true),
	)
	f := makeFrame(t,
		frame.NewColumn("a", dtype.Int64, []any{int64(1)}),
		frame.NewColumn("a", dtype.Int64, []any{int64(2)}),
	)
	_, err := sch.Validate(context.Background(), f, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 1)
	require.Equal(t, schemaerr.ReasonDuplicateColumnLabels, errs[0].Reason)
	require.Equal(t, []schemaerr.FailureCase{{Index: -1, Value: "a"}}, errs[0].Result.FailureCases)
}

func TestValidateCoerce(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{{Name: "n", DType: dtype.Int64, Coerce: true}})
	f := makeFrame(t, frame.NewColumn("n", dtype.String, []any{"1", "2", "3"}))
	out, err := sch.Validate(context.Background(), f)
	require.NoError(t, err)
	n, ok := out.(*frame.Frame).Col("n")
	require.True(t, ok)
	require.Equal(t, []any{int64(1), int64(2), int64(3)}, n.Values())
	require.Equal(t, dtype.Int64, n.DType())
	orig, _ := f.Col("n")
	require.Equal(t, []any{"1", "2", "3"}, orig.Values())

	t.Run("failure skips later stages", func(t *testing.T) {
		sch := schema.MustNewTable([]schema.Column{
			{Name: "n", DType: dtype.Int64, Coerce: true, Checks: []check.Check{check.Gt(int64(0))}},
		})
		f := makeFrame(t, frame.NewColumn("n", dtype.String, []any{"1", "oops", "-3"}))
		_, err := sch.Validate(context.Background(), f, backend.WithLazy())
		errs := asErrors(t, err).Errors()
		require.Len(t, errs, 1)
		require.Equal(t, schemaerr.ReasonCoercionError, errs[0].Reason)
		require.Equal(t, []int{1}, errs[0].Result.FailedPositions)
	})

	t.Run("full column despite window", func(t *testing.T) {
		f := makeFrame(t, frame.NewColumn("n", dtype.String, []any{"1", "2", "3", "4"}))
		out, err := sch.Validate(context.Background(), f, backend.WithHead(2))
		require.NoError(t, err)
		n, _ := out.(*frame.Frame).Col("n")
		require.Equal(t, []any{int64(1), int64(2), int64(3), int64(4)}, n.Values())
	})

	t.Run("table-wide cascade", func(t *testing.T) {
		sch := schema.MustNewTable(
			[]schema.Column{{Name: "n", DType: dtype.Int64}},
			schema.WithCoerce(true),
		)
		f := makeFrame(t, frame.NewColumn("n", dtype.String, []any{"5"}))
		out, err := sch.Validate(context.Background(), f)
		require.NoError(t, err)
		n, _ := out.(*frame.Frame).Col("n")
		require.Equal(t, []any{int64(5)}, n.Values())
	})
}

func TestValidateWrongDType(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{{Name: "n", DType: dtype.Int64}})
	f := makeFrame(t, frame.NewColumn("n", dtype.DataType{}, []any{int64(1), "x"}))
	_, err := sch.Validate(context.Background(), f, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 1)
	require.Equal(t, schemaerr.ReasonWrongDType, errs[0].Reason)
	require.Equal(t, "dtype(int64)", errs[0].Result.Check)
	require.Equal(t, []schemaerr.FailureCase{{Index: 1, Value: "x"}}, errs[0].Result.FailureCases)
}

func TestValidateDefaultFill(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "n", DType: dtype.Int64, Coerce: true, Default: "9"},
	})
	f := makeFrame(t, frame.NewColumn("n", dtype.Int64, []any{int64(1), nil}))
	out, err := sch.Validate(context.Background(), f)
	require.NoError(t, err)
	n, _ := out.(*frame.Frame).Col("n")
	require.Equal(t, []any{int64(1), int64(9)}, n.Values())
	orig, _ := f.Col("n")
	require.Equal(t, []any{int64(1), nil}, orig.Values())
}

func TestValidateNullable(t *testing.T) {
	f := makeFrame(t, frame.NewColumn("v", dtype.Int64, []any{int64(1), nil}))
	t.Run("violation", func(t *testing.T) {
		sch := schema.MustNewTable([]schema.Column{{Name: "v", DType: dtype.Int64}})
		_, err := sch.Validate(context.Background(), f, backend.WithLazy())
		errs := asErrors(t, err).Errors()
		require.Len(t, errs, 1)
		require.Equal(t, schemaerr.ReasonNullableViolation, errs[0].Reason)
		require.Equal(t, []int{1}, errs[0].Result.FailedPositions)
	})
	t.Run("allowed", func(t *testing.T) {
		sch := schema.MustNewTable([]schema.Column{{Name: "v", DType: dtype.Int64, Nullable: true}})
		out, err := sch.Validate(context.Background(), f)
		require.NoError(t, err)
		require.Same(t, f, out)
	})
}

func TestValidateUnique(t *testing.T) {
	for _, tc := range []struct {
		mode    schema.DuplicateMode
		flagged []int
	}{
		{schema.ReportAll, []int{0, 1}},
		{schema.ExcludeFirst, []int{1}},
		{schema.ExcludeLast, []int{0}},
	} {
		t.Run(tc.mode.String(), func(t *testing.T) {
			sch := schema.MustNewTable([]schema.Column{
				{Name: "v", DType: dtype.Int64, Unique: true, ReportDuplicates: tc.mode},
			})
			f := makeFrame(t, frame.NewColumn("v", dtype.Int64, []any{int64(1), int64(1), int64(2)}))
			_, err := sch.Validate(context.Background(), f, backend.WithLazy())
			errs := asErrors(t, err).Errors()
			require.Len(t, errs, 1)
			require.Equal(t, schemaerr.ReasonDuplicates, errs[0].Reason)
			require.Equal(t, "field_uniqueness", errs[0].Result.Check)
			require.Equal(t, tc.flagged, errs[0].Result.FailedPositions)
		})
	}
}

func TestValidateJointUnique(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "a", DType: dtype.Int64},
		{Name: "b", DType: dtype.String},
	}, schema.WithUnique("a", "b"))
	f := makeFrame(t,
		frame.NewColumn("a", dtype.Int64, []any{int64(1), int64(1), int64(1)}),
		frame.NewColumn("b", dtype.String, []any{"x", "y", "x"}),
	)
	_, err := sch.Validate(context.Background(), f, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 1)
	require.Equal(t, schemaerr.ReasonDuplicates, errs[0].Reason)
	require.Equal(t, "a, b", errs[0].Column)
	require.Equal(t, []int{0, 2}, errs[0].Result.FailedPositions)
	require.Equal(t, []schemaerr.FailureCase{
		{Index: 0, Value: "(1, x)"},
		{Index: 2, Value: "(1, x)"},
	}, errs[0].Result.FailureCases)
}

func TestValidateWindow(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "v", DType: dtype.Int64, Checks: []check.Check{check.Lt(int64(100))}},
	})
	f := makeFrame(t, frame.NewColumn("v", dtype.Int64, []any{
		int64(1), int64(200), int64(3), int64(4), int64(300),
	}))
	t.Run("head misses later failure", func(t *testing.T) {
		out, err := sch.Validate(context.Background(), f, backend.WithHead(1))
		require.NoError(t, err)
		require.Same(t, f, out)
	})
	t.Run("head catches", func(t *testing.T) {
		_, err := sch.Validate(context.Background(), f, backend.WithHead(2))
		require.Error(t, err)
	})
	t.Run("tail", func(t *testing.T) {
		_, err := sch.Validate(context.Background(), f, backend.WithTail(1))
		require.Error(t, err)
	})
	t.Run("sample deterministic", func(t *testing.T) {
		_, err1 := sch.Validate(context.Background(), f, backend.WithLazy(), backend.WithSample(3, 42))
		_, err2 := sch.Validate(context.Background(), f, backend.WithLazy(), backend.WithSample(3, 42))
		if err1 == nil {
			require.NoError(t, err2)
			return
		}
		require.Error(t, err2)
		require.Equal(t, err1.Error(), err2.Error())
	})
}

func TestValidateTableChecks(t *testing.T) {
	t.Run("custom table check", func(t *testing.T) {
		ck := check.NewTable("a_less_than_b", func(v check.TableView) (check.Result, error) {
			a, _ := v.Column("a")
			b, _ := v.Column("b")
			mask := make([]bool, v.NumRows())
			passed := true
			for i := range mask {
				c, err := dtype.Compare(a.Value(i), b.Value(i))
				mask[i] = err == nil && c < 0
				passed = passed && mask[i]
			}
			return check.Result{Passed: passed, Mask: mask}, nil
		})
		sch := schema.MustNewTable(
			[]schema.Column{{Name: "a"}, {Name: "b"}},
			schema.WithChecks(ck),
		)
		f := makeFrame(t,
			frame.NewColumn("a", dtype.Int64, []any{int64(1), int64(5)}),
			frame.NewColumn("b", dtype.Int64, []any{int64(2), int64(3)}),
		)
		_, err := sch.Validate(context.Background(), f, backend.WithLazy())
		errs := asErrors(t, err).Errors()
		require.Len(t, errs, 1)
		require.Equal(t, schemaerr.ContextTable, errs[0].Context)
		require.Equal(t, schemaerr.StageTableChecks, errs[0].Stage)
		require.Equal(t, []int{1}, errs[0].Result.FailedPositions)
		require.Equal(t, []schemaerr.FailureCase{{Index: 1, Value: "{a=5, b=3}"}}, errs[0].Result.FailureCases)
	})

	t.Run("columnar check broadcasts", func(t *testing.T) {
		sch := schema.MustNewTable(
			[]schema.Column{{Name: "a", DType: dtype.Int64}, {Name: "b", DType: dtype.Int64}},
			schema.WithChecks(check.Gt(int64(0))),
		)
		f := makeFrame(t,
			frame.NewColumn("a", dtype.Int64, []any{int64(1)}),
			frame.NewColumn("b", dtype.Int64, []any{int64(-1)}),
		)
		_, err := sch.Validate(context.Background(), f, backend.WithLazy())
		errs := asErrors(t, err).Errors()
		require.Len(t, errs, 1)
		require.Equal(t, schemaerr.ContextTable, errs[0].Context)
		require.Equal(t, "b", errs[0].Column)
		require.Equal(t, []schemaerr.FailureCase{{Index: 0, Value: int64(-1)}}, errs[0].Result.FailureCases)
	})
}

func TestValidateGroupby(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "grp", DType: dtype.String, Nullable: true},
		{Name: "v", DType: dtype.Int64, Checks: []check.Check{
			check.Gt(int64(0), check.WithGroupby("grp")),
		}},
	})
	f := makeFrame(t,
		frame.NewColumn("grp", dtype.String, []any{"a", "a", "b"}),
		frame.NewColumn("v", dtype.Int64, []any{int64(1), int64(2), int64(-5)}),
	)
	_, err := sch.Validate(context.Background(), f, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 1)
	require.Equal(t, "v", errs[0].Column)
	require.Equal(t, "group b", errs[0].Result.Message)
	require.Equal(t, []schemaerr.FailureCase{{Index: 2, Value: int64(-5)}}, errs[0].Result.FailureCases)

	t.Run("null keys excluded", func(t *testing.T) {
		f := makeFrame(t,
			frame.NewColumn("grp", dtype.String, []any{"a", nil, "b"}),
			frame.NewColumn("v", dtype.Int64, []any{int64(1), int64(-9), int64(2)}),
		)
		out, err := sch.Validate(context.Background(), f)
		require.NoError(t, err)
		require.Same(t, f, out)
	})
}

func TestValidateCheckPanics(t *testing.T) {
	ck := check.New("boom", func(check.ColumnView) (check.Result, error) {
		panic("kaboom")
	})
	sch := schema.MustNewTable([]schema.Column{{Name: "v", Checks: []check.Check{ck}}})
	f := makeFrame(t, frame.NewColumn("v", dtype.Int64, []any{int64(1)}))
	_, err := sch.Validate(context.Background(), f, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 1)
	require.Equal(t, schemaerr.ReasonCheckError, errs[0].Reason)
	require.Equal(t, "kaboom", errs[0].Result.Panic)
	require.Contains(t, errs[0].Error(), "check panicked: kaboom")
}

func TestValidateDropInvalidRows(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "v", DType: dtype.Int64, Checks: []check.Check{check.Gt(int64(0))}},
	}, schema.WithDropInvalidRows(true))
	f := makeFrame(t, frame.NewColumn("v", dtype.Int64, []any{int64(1), int64(-2), int64(3)}))

	t.Run("requires lazy", func(t *testing.T) {
		_, err := sch.Validate(context.Background(), f)
		require.Error(t, err)
		require.True(t, schemaerr.IsInit(err))
	})

	t.Run("drops failing rows", func(t *testing.T) {
		out, err := sch.Validate(context.Background(), f, backend.WithLazy())
		require.NoError(t, err)
		of := out.(*frame.Frame)
		require.Equal(t, 2, of.NumRows())
		v, _ := of.Col("v")
		require.Equal(t, []any{int64(1), int64(3)}, v.Values())
		require.Equal(t, 3, f.NumRows())
	})

	t.Run("coercion failures drop offenders only", func(t *testing.T) {
		sch := schema.MustNewTable([]schema.Column{
			{Name: "v", DType: dtype.Int64, Coerce: true, DropInvalidRows: true},
		})
		f := makeFrame(t, frame.NewColumn("v", dtype.String, []any{"1", "x", "3"}))
		out, err := sch.Validate(context.Background(), f, backend.WithLazy())
		require.NoError(t, err)
		v, _ := out.(*frame.Frame).Col("v")
		require.Equal(t, []any{int64(1), int64(3)}, v.Values())
	})
}

func TestValidateInPlace(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{{Name: "n", DType: dtype.Int64, Coerce: true}})
	f := makeFrame(t, frame.NewColumn("n", dtype.String, []any{"1", "2"}))
	out, err := sch.Validate(context.Background(), f, backend.WithInPlace())
	require.NoError(t, err)
	require.Same(t, f, out)
	n, _ := f.Col("n")
	require.Equal(t, []any{int64(1), int64(2)}, n.Values())
}

func TestValidateIdempotent(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{{Name: "n", DType: dtype.Int64, Coerce: true}})
	f := makeFrame(t, frame.NewColumn("n", dtype.String, []any{"1", "2"}))
	out1, err := sch.Validate(context.Background(), f)
	require.NoError(t, err)
	out2, err := sch.Validate(context.Background(), out1)
	require.NoError(t, err)
	require.Same(t, out1, out2)
}

func TestValidateContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sch := schema.MustNewTable([]schema.Column{{Name: "v", DType: dtype.Int64}})
	f := makeFrame(t, frame.NewColumn("v", dtype.Int64, []any{int64(1)}))
	_, err := sch.Validate(ctx, f)
	require.ErrorIs(t, err, context.Canceled)
}

func TestValidateReportOrdering(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "a", DType: dtype.Int64, Checks: []check.Check{check.Gt(int64(0))}},
		{Name: "b"},
	})
	f := makeFrame(t, frame.NewColumn("a", dtype.Int64, []any{int64(-1)}))
	_, err := sch.Validate(context.Background(), f, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 2)
	require.Equal(t, -1, errs[0].ColumnOrd)
	require.Equal(t, schemaerr.ReasonMissingColumn, errs[0].Reason)
	require.Equal(t, 0, errs[1].ColumnOrd)
	require.Equal(t, schemaerr.ReasonCheckError, errs[1].Reason)
}

func TestCoerceDTypeOnly(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "n", DType: dtype.Int64},
		{Name: "s", DType: dtype.String, Checks: []check.Check{check.StrLength(10, -1)}},
	})
	f := makeFrame(t,
		frame.NewColumn("n", dtype.String, []any{"1", "2"}),
		frame.NewColumn("s", dtype.String, []any{"ab", "cd"}),
	)
	out, err := sch.CoerceDType(context.Background(), f)
	require.NoError(t, err)
	n, _ := out.(*frame.Frame).Col("n")
	require.Equal(t, []any{int64(1), int64(2)}, n.Values())

	t.Run("failure", func(t *testing.T) {
		f := makeFrame(t,
			frame.NewColumn("n", dtype.String, []any{"oops"}),
			frame.NewColumn("s", dtype.String, []any{"ab"}),
		)
		_, err := sch.CoerceDType(context.Background(), f)
		errs := asErrors(t, err).Errors()
		require.Len(t, errs, 1)
		require.Equal(t, schemaerr.ReasonCoercionError, errs[0].Reason)
	})
}
