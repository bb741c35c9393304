package schema

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
)

func baseSchema(t *testing.T) *Table {
	t.Helper()
	return MustNewTable(
		[]Column{
			{Name: "id", DType: dtype.Int64, Unique: true},
			{Name: "name", DType: dtype.String},
			{Name: "score", DType: dtype.Float64, Checks: []check.Check{check.Ge(0.0)}},
		},
		WithName("base"),
	)
}

func TestAddRemoveColumnsRoundTrip(t *testing.T) {
	orig := baseSchema(t)

	added, err := orig.AddColumns(
		Column{Name: "region", DType: dtype.String},
		Column{Name: "age", DType: dtype.Int64, Nullable: true},
	)
	require.NoError(t, err)
	require.Equal(t, []string{"id", "name", "score", "region", "age"}, added.ColumnNames())
	// The receiver is untouched.
	require.Equal(t, []string{"id", "name", "score"}, orig.ColumnNames())

	restored, err := added.RemoveColumns("region", "age")
	require.NoError(t, err)
	require.True(t, orig.Equal(restored))

	_, err = orig.AddColumns(Column{Name: "id"})
	require.Error(t, err)
	require.Contains(t, err.Error(), `column "id" already declared`)

	_, err = orig.RemoveColumns("ghost")
	require.Error(t, err)
	require.Contains(t, err.Error(), `cannot remove unknown column "ghost"`)
}

func TestUpdateColumn(t *testing.T) {
	orig := baseSchema(t)

	updated, err := orig.UpdateColumn("name", func(c *Column) {
		c.Nullable = true
		c.Checks = []check.Check{check.StrLength(1, 64)}
	})
	require.NoError(t, err)
	col, _ := updated.Column("name")
	require.True(t, col.Nullable)
	require.Len(t, col.Checks, 1)

	// Receiver unchanged.
	col, _ = orig.Column("name")
	require.False(t, col.Nullable)
	require.Empty(t, col.Checks)

	_, err = orig.UpdateColumn("name", func(c *Column) { c.Name = "renamed" })
	require.Error(t, err)
	require.Contains(t, err.Error(), "use RenameColumns")

	_, err = orig.UpdateColumn("ghost", func(c *Column) {})
	require.Error(t, err)
}

func TestUpdateColumns(t *testing.T) {
	orig := baseSchema(t)
	updated, err := orig.UpdateColumns(map[string]func(*Column){
		"id":   func(c *Column) { c.Coerce = true },
		"name": func(c *Column) { c.Nullable = true },
	})
	require.NoError(t, err)
	id, _ := updated.Column("id")
	name, _ := updated.Column("name")
	require.True(t, id.Coerce)
	require.True(t, name.Nullable)

	_, err = orig.UpdateColumns(map[string]func(*Column){
		"ghost": func(c *Column) {},
	})
	require.Error(t, err)
}

func TestRenameColumns(t *testing.T) {
	orig := baseSchema(t)

	renamed, err := orig.RenameColumns(map[string]string{"id": "user_id"})
	require.NoError(t, err)
	require.Equal(t, []string{"user_id", "name", "score"}, renamed.ColumnNames())

	// Identity mappings are no-ops.
	same, err := orig.RenameColumns(map[string]string{"id": "id"})
	require.NoError(t, err)
	require.True(t, orig.Equal(same))

	// Swaps are allowed: both sides are renamed away.
	swapped, err := orig.RenameColumns(map[string]string{"id": "name", "name": "id"})
	require.NoError(t, err)
	require.Equal(t, []string{"name", "id", "score"}, swapped.ColumnNames())

	_, err = orig.RenameColumns(map[string]string{"id": "name"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "column already exists")

	_, err = orig.RenameColumns(map[string]string{"ghost": "x"})
	require.Error(t, err)
}

func TestSelectColumns(t *testing.T) {
	orig := baseSchema(t)
	selected, err := orig.SelectColumns("score", "id")
	require.NoError(t, err)
	require.Equal(t, []string{"score", "id"}, selected.ColumnNames())

	_, err = orig.SelectColumns("ghost")
	require.Error(t, err)
	_, err = orig.SelectColumns("id", "id")
	require.Error(t, err)
}

func TestSetResetIndexRoundTrip(t *testing.T) {
	orig := baseSchema(t)

	indexed, err := orig.SetIndex([]string{"id"}, false)
	require.NoError(t, err)
	require.Equal(t, []string{"name", "score"}, indexed.ColumnNames())
	idx, ok := indexed.Index().(Index)
	require.True(t, ok)
	require.Equal(t, "id", idx.Name)
	require.Equal(t, dtype.KindInt64, idx.DType.Kind)
	require.True(t, idx.Unique)

	restored, err := indexed.ResetIndex(nil, false)
	require.NoError(t, err)
	require.Nil(t, restored.Index())

	want := orig.ColumnNames()
	got := restored.ColumnNames()
	sort.Strings(want)
	sort.Strings(got)
	require.Equal(t, want, got)
	restoredID, _ := restored.Column("id")
	origID, _ := orig.Column("id")
	require.True(t, columnsEqual(origID, restoredID))
}

func TestSetIndexAppendBuildsMultiIndex(t *testing.T) {
	orig := baseSchema(t)

	indexed, err := orig.SetIndex([]string{"id"}, false)
	require.NoError(t, err)
	two, err := indexed.SetIndex([]string{"name"}, true)
	require.NoError(t, err)
	mi, ok := two.Index().(MultiIndex)
	require.True(t, ok)
	require.Equal(t, []string{"id", "name"}, []string{mi.Indexes[0].Name, mi.Indexes[1].Name})
	require.Equal(t, []string{"score"}, two.ColumnNames())

	// Multi-column SetIndex in one shot.
	both, err := orig.SetIndex([]string{"id", "name"}, false)
	require.NoError(t, err)
	_, ok = both.Index().(MultiIndex)
	require.True(t, ok)

	// Replace rather than append drops the old index.
	replaced, err := indexed.SetIndex([]string{"name"}, false)
	require.NoError(t, err)
	idx, ok := replaced.Index().(Index)
	require.True(t, ok)
	require.Equal(t, "name", idx.Name)

	_, err = orig.SetIndex([]string{"ghost"}, false)
	require.Error(t, err)
	_, err = orig.SetIndex(nil, false)
	require.Error(t, err)
}

func TestResetIndexPartial(t *testing.T) {
	orig := baseSchema(t)
	two, err := orig.SetIndex([]string{"id", "name"}, false)
	require.NoError(t, err)

	partial, err := two.ResetIndex([]string{"id"}, false)
	require.NoError(t, err)
	idx, ok := partial.Index().(Index)
	require.True(t, ok)
	require.Equal(t, "name", idx.Name)
	require.Equal(t, []string{"score", "id"}, partial.ColumnNames())

	dropped, err := two.ResetIndex([]string{"name"}, true)
	require.NoError(t, err)
	require.False(t, dropped.HasColumn("name"))

	_, err = two.ResetIndex([]string{"ghost"}, false)
	require.Error(t, err)
	_, err = orig.ResetIndex(nil, false)
	require.Error(t, err)
}

func TestResetIndexUnnamedLevel(t *testing.T) {
	s := MustNewTable(
		[]Column{{Name: "a"}},
		WithIndex(Index{DType: dtype.Int64}),
	)
	restored, err := s.ResetIndex(nil, false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "index"}, restored.ColumnNames())
	require.Nil(t, restored.Index())
}
