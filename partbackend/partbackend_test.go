package partbackend

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

func part(t *testing.T, cols ...*frame.Column) *frame.Frame {
	t.Helper()
	f, err := frame.New(cols...)
	require.NoError(t, err)
	return f
}

func makePartitioned(t *testing.T, parts ...*frame.Frame) *frame.Partitioned {
	t.Helper()
	p, err := frame.NewPartitioned(parts...)
	require.NoError(t, err)
	return p
}

func asErrors(t *testing.T, err error) *schemaerr.Errors {
	t.Helper()
	require.Error(t, err)
	var verrs *schemaerr.Errors
	require.True(t, errors.As(err, &verrs), "expected *schemaerr.Errors, got %T: %v", err, err)
	return verrs
}

func TestPartitionedValidateIdentity(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "id", DType: dtype.Int64},
	})
	p := makePartitioned(t,
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(1), int64(2)})),
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(3)})),
	)
	out, err := sch.Validate(context.Background(), p)
	require.NoError(t, err)
	require.Same(t, p, out)
}

func TestPartitionedValidateLazyOffsets(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "id", DType: dtype.Int64, Checks: []check.Check{check.Gt(int64(0))}},
	}, schema.WithName("events"))
	p := makePartitioned(t,
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(1), int64(-5)})),
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(-7), int64(3)})),
	)
	_, err := sch.Validate(context.Background(), p, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 2)

	require.Equal(t, []int{1}, errs[0].Result.FailedPositions)
	require.Equal(t, []schemaerr.FailureCase{{Index: 1, Value: int64(-5)}}, errs[0].Result.FailureCases)
	require.Equal(t, []int{2}, errs[1].Result.FailedPositions)
	require.Equal(t, []schemaerr.FailureCase{{Index: 2, Value: int64(-7)}}, errs[1].Result.FailureCases)
	for _, e := range errs {
		require.Equal(t, "id", e.Column)
		require.Equal(t, "greater_than(0)", e.Result.Check)
		require.Same(t, p, e.Data)
	}
}

func TestPartitionedValidateEager(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "id", DType: dtype.Int64, Checks: []check.Check{check.Gt(int64(0))}},
	})
	p := makePartitioned(t,
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(1), int64(2)})),
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(3), int64(-7)})),
	)
	_, err := sch.Validate(context.Background(), p)
	require.Error(t, err)
	var single *schemaerr.Error
	require.True(t, errors.As(err, &single), "expected *schemaerr.Error, got %T", err)
	require.Equal(t, "id", single.Column)
	require.Equal(t, []int{3}, single.Result.FailedPositions)
	require.Equal(t, []schemaerr.FailureCase{{Index: 3, Value: int64(-7)}}, single.Result.FailureCases)
	var many *schemaerr.Errors
	require.False(t, errors.As(err, &many))
}

func TestPartitionedSchemaFailureReportedOnce(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "a", DType: dtype.Int64, Checks: []check.Check{check.Gt(int64(0))}},
		{Name: "b", DType: dtype.String},
	})
	p := makePartitioned(t,
		part(t, frame.NewColumn("a", dtype.Int64, []any{int64(1)})),
		part(t, frame.NewColumn("a", dtype.Int64, []any{int64(2)})),
		part(t, frame.NewColumn("a", dtype.Int64, []any{int64(-3)})),
	)
	_, err := sch.Validate(context.Background(), p, backend.WithLazy())
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 2)
	require.Equal(t, schemaerr.ReasonMissingColumn, errs[0].Reason)
	require.Equal(t, "b", errs[0].Column)
	require.Equal(t, schemaerr.ReasonCheckError, errs[1].Reason)
	require.Equal(t, []int{2}, errs[1].Result.FailedPositions)
}

func TestPartitionedCoerce(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "n", DType: dtype.Int64, Coerce: true},
	})
	p := makePartitioned(t,
		part(t, frame.NewColumn("n", dtype.String, []any{"1", "2"})),
		part(t, frame.NewColumn("n", dtype.String, []any{"3"})),
	)
	out, err := sch.Validate(context.Background(), p)
	require.NoError(t, err)
	po := out.(*frame.Partitioned)
	require.NotSame(t, p, po)
	n0, ok := po.Part(0).Col("n")
	require.True(t, ok)
	require.Equal(t, []any{int64(1), int64(2)}, n0.Values())
	n1, ok := po.Part(1).Col("n")
	require.True(t, ok)
	require.Equal(t, []any{int64(3)}, n1.Values())
	orig, _ := p.Part(0).Col("n")
	require.Equal(t, []any{"1", "2"}, orig.Values())

	t.Run("failure carries global positions", func(t *testing.T) {
		p := makePartitioned(t,
			part(t, frame.NewColumn("n", dtype.String, []any{"1", "2"})),
			part(t, frame.NewColumn("n", dtype.String, []any{"x"})),
		)
		_, err := sch.Validate(context.Background(), p, backend.WithLazy())
		errs := asErrors(t, err).Errors()
		require.Len(t, errs, 1)
		require.Equal(t, schemaerr.ReasonCoercionError, errs[0].Reason)
		require.Equal(t, []int{2}, errs[0].Result.FailedPositions)
	})
}

func TestPartitionedCoerceDTypeOnly(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "n", DType: dtype.Int64, Coerce: true, Checks: []check.Check{check.Gt(int64(100))}},
	})
	p := makePartitioned(t,
		part(t, frame.NewColumn("n", dtype.String, []any{"1", "2"})),
		part(t, frame.NewColumn("n", dtype.String, []any{"3"})),
	)
	out, err := sch.CoerceDType(context.Background(), p)
	require.NoError(t, err)
	po := out.(*frame.Partitioned)
	n1, ok := po.Part(1).Col("n")
	require.True(t, ok)
	require.Equal(t, []any{int64(3)}, n1.Values())
}

func TestPartitionedWindowPerPartition(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "id", DType: dtype.Int64, Checks: []check.Check{check.Gt(int64(0))}},
	})
	p := makePartitioned(t,
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(1), int64(-5)})),
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(-7), int64(3)})),
	)
	_, err := sch.Validate(context.Background(), p, backend.WithLazy(), backend.WithHead(1))
	errs := asErrors(t, err).Errors()
	require.Len(t, errs, 1)
	require.Equal(t, []int{2}, errs[0].Result.FailedPositions)
}

func TestPartitionedDropInvalidRows(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "id", DType: dtype.Int64, Checks: []check.Check{check.Gt(int64(0))}},
	}, schema.WithDropInvalidRows(true))
	p := makePartitioned(t,
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(1), int64(-5)})),
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(-7), int64(3)})),
	)
	out, err := sch.Validate(context.Background(), p, backend.WithLazy())
	require.NoError(t, err)
	po := out.(*frame.Partitioned)
	require.Equal(t, 2, po.NumRows())
	id0, _ := po.Part(0).Col("id")
	require.Equal(t, []any{int64(1)}, id0.Values())
	id1, _ := po.Part(1).Col("id")
	require.Equal(t, []any{int64(3)}, id1.Values())
	require.Equal(t, 2, p.Part(0).NumRows())

	t.Run("requires lazy", func(t *testing.T) {
		_, err := sch.Validate(context.Background(), p)
		require.Error(t, err)
		require.True(t, schemaerr.IsInit(err))
	})
}

func TestPartitionedInPlace(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "n", DType: dtype.Int64, Coerce: true},
	})
	p := makePartitioned(t,
		part(t, frame.NewColumn("n", dtype.String, []any{"1"})),
		part(t, frame.NewColumn("n", dtype.String, []any{"2"})),
	)
	out, err := sch.Validate(context.Background(), p, backend.WithInPlace())
	require.NoError(t, err)
	require.Same(t, p, out)
	n1, _ := p.Part(1).Col("n")
	require.Equal(t, []any{int64(2)}, n1.Values())
}

func TestPartitionedContextCanceled(t *testing.T) {
	sch := schema.MustNewTable([]schema.Column{
		{Name: "id", DType: dtype.Int64},
	})
	p := makePartitioned(t,
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(1)})),
		part(t, frame.NewColumn("id", dtype.Int64, []any{int64(2)})),
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sch.Validate(ctx, p)
	require.ErrorIs(t, err, context.Canceled)
}
