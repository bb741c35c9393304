package frame

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablevet/tablevet/dtype"
)

func TestNew(t *testing.T) {
	t.Run("ragged columns error", func(t *testing.T) {
		_, err := New(
			NewColumn("a", dtype.Int64, []any{int64(1), int64(2)}),
			NewColumn("b", dtype.Int64, []any{int64(1)}),
		)
		require.ErrorContains(t, err, `column "b" has 1 rows; expected 2`)
	})

	t.Run("empty frame", func(t *testing.T) {
		f, err := New()
		require.NoError(t, err)
		require.Equal(t, 0, f.NumRows())
		require.Equal(t, 0, f.NumColumns())
	})

	t.Run("duplicate labels allowed", func(t *testing.T) {
		f, err := New(
			NewColumn("a", dtype.Int64, []any{int64(1)}),
			NewColumn("a", dtype.Int64, []any{int64(2)}),
		)
		require.NoError(t, err)
		require.Equal(t, []string{"a", "a"}, f.Labels())
		// Lookup returns the first match.
		col, ok := f.Col("a")
		require.True(t, ok)
		require.Equal(t, int64(1), col.Value(0))
	})
}

func TestFromRecords(t *testing.T) {
	f, err := FromRecords(
		[]string{"name", "age"},
		[][]any{
			{"alice", int64(30)},
			{"bob", int64(25)},
		},
	)
	require.NoError(t, err)
	require.Equal(t, 2, f.NumRows())
	require.Equal(t, []string{"name", "age"}, f.Labels())
	col, ok := f.Col("age")
	require.True(t, ok)
	require.Equal(t, int64(25), col.Value(1))

	_, err = FromRecords([]string{"a"}, [][]any{{1, 2}})
	require.ErrorContains(t, err, "row 0 has 2 cells; expected 1")
}

func TestSelectRows(t *testing.T) {
	f := MustNew(
		NewColumn("a", dtype.Int64, []any{int64(10), int64(20), int64(30)}),
		NewColumn("b", dtype.String, []any{"x", "y", "z"}),
	)
	idx := NewIndexData(NewColumn("id", dtype.Int64, []any{int64(1), int64(2), int64(3)}))
	f.SetIndexData(idx)

	sub := f.SelectRows([]int{2, 0})
	require.Equal(t, 2, sub.NumRows())
	require.Equal(t, int64(30), mustCol(t, sub, "a").Value(0))
	require.Equal(t, "x", mustCol(t, sub, "b").Value(1))
	require.Equal(t, int64(3), sub.Index().Level(0).Value(0))

	// The source frame is untouched.
	require.Equal(t, 3, f.NumRows())
}

func mustCol(t *testing.T, f *Frame, name string) *Column {
	t.Helper()
	col, ok := f.Col(name)
	require.True(t, ok)
	return col
}

func TestColumnMutators(t *testing.T) {
	f := MustNew(NewColumn("a", dtype.Int64, []any{int64(1)}))

	require.NoError(t, f.AppendColumn(NewColumn("b", dtype.String, []any{"x"})))
	require.Equal(t, []string{"a", "b"}, f.Labels())

	require.NoError(t, f.InsertColumnAt(0, NewColumn("c", dtype.Bool, []any{true})))
	require.Equal(t, []string{"c", "a", "b"}, f.Labels())

	f.ReplaceColumnAt(1, NewColumn("a2", dtype.Int64, []any{int64(9)}))
	require.Equal(t, []string{"c", "a2", "b"}, f.Labels())

	f.RetainColumns([]int{2, 0})
	require.Equal(t, []string{"b", "c"}, f.Labels())

	require.ErrorContains(t,
		f.AppendColumn(NewColumn("short", dtype.Int64, nil)),
		`column "short" has 0 rows; expected 1`)
}

func TestCloneAndEqual(t *testing.T) {
	f := MustNew(
		NewColumn("a", dtype.Int64, []any{int64(1), nil}),
		NewColumn("b", dtype.String, []any{"x", "y"}),
	)
	f.SetIndexData(NewIndexData(NewColumn("", dtype.Int64, []any{int64(0), int64(1)})))

	g := f.Clone()
	require.True(t, f.Equal(g))

	mustCol(t, g, "a").Set(0, int64(5))
	require.False(t, f.Equal(g))
	require.Equal(t, int64(1), mustCol(t, f, "a").Value(0))
}

func TestColumnView(t *testing.T) {
	col := NewColumn("v", dtype.Int64, []any{int64(1), int64(2), int64(3), nil})
	require.Equal(t, 4, col.Len())
	require.True(t, col.IsNull(3))
	require.False(t, col.IsNull(0))

	view := col.View([]int{3, 1})
	require.Equal(t, 2, view.Len())
	require.Nil(t, view.Value(0))
	require.Equal(t, int64(2), view.Value(1))
	require.True(t, view.IsNull(0))
	require.Equal(t, "v", view.Name())
}

func TestIndexData(t *testing.T) {
	idx := NewIndexData(
		NewColumn("year", dtype.Int64, []any{int64(2023), int64(2024)}),
		NewColumn("month", dtype.Int64, []any{int64(1), int64(2)}),
	)
	require.Equal(t, 2, idx.NumLevels())
	require.Equal(t, 2, idx.Len())

	lvl, ok := idx.LevelByName("month")
	require.True(t, ok)
	require.Equal(t, int64(2), lvl.Value(1))

	_, ok = idx.LevelByName("day")
	require.False(t, ok)
}

func TestPartitioned(t *testing.T) {
	p1 := MustNew(NewColumn("a", dtype.Int64, []any{int64(1), int64(2)}))
	p2 := MustNew(NewColumn("a", dtype.Int64, []any{int64(3)}))

	p, err := NewPartitioned(p1, p2)
	require.NoError(t, err)
	require.Equal(t, 2, p.NumParts())
	require.Equal(t, 3, p.NumRows())
	require.Equal(t, []string{"a"}, p.Labels())
	require.Equal(t, []int{0, 2}, p.Offsets())

	_, err = NewPartitioned()
	require.ErrorContains(t, err, "at least one part")

	_, err = NewPartitioned(p1, MustNew(NewColumn("b", dtype.Int64, []any{int64(1)})))
	require.ErrorContains(t, err, `partition 1 column 0 is "b"; partition 0 has "a"`)
}
