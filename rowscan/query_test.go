package rowscan

import (
	"testing"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/stretchr/testify/require"

	"github.com/tablevet/tablevet/dbtable"
)

func scanTableFixture(orderBy ...tree.Name) ScanTable {
	return ScanTable{
		Table: Table{
			Name:    dbtable.Name{Schema: "public", Table: "events"},
			Columns: []tree.Name{"id", "val"},
			OrderBy: orderBy,
		},
	}
}

func TestPGScanQuery(t *testing.T) {
	for _, tc := range []struct {
		desc     string
		table    ScanTable
		cursor   []any
		limit    int
		expected string
	}{
		{
			desc:     "first page",
			table:    scanTableFixture("id"),
			limit:    100,
			expected: "SELECT id, val FROM public.events ORDER BY id LIMIT 100",
		},
		{
			desc:     "resumes after cursor",
			table:    scanTableFixture("id"),
			cursor:   []any{int64(5)},
			limit:    100,
			expected: "SELECT id, val FROM public.events WHERE id > 5 ORDER BY id LIMIT 100",
		},
		{
			desc:     "compound order key",
			table:    scanTableFixture("id", "val"),
			cursor:   []any{int64(5), "x"},
			limit:    2,
			expected: "SELECT id, val FROM public.events WHERE (id, val) > (5, 'x') ORDER BY id, val LIMIT 2",
		},
		{
			desc:     "no order columns streams everything",
			table:    scanTableFixture(),
			expected: "SELECT id, val FROM public.events",
		},
		{
			desc:     "row cap renders as limit",
			table:    scanTableFixture(),
			limit:    7,
			expected: "SELECT id, val FROM public.events LIMIT 7",
		},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			sq := newPGScanQuery(tc.table)
			s, err := sq.generate(tc.cursor, tc.limit)
			require.NoError(t, err)
			require.Equal(t, tc.expected, s)
		})
	}
}

func TestPGScanQueryCursorReset(t *testing.T) {
	sq := newPGScanQuery(scanTableFixture("id"))
	s, err := sq.generate([]any{int64(9)}, 10)
	require.NoError(t, err)
	require.Contains(t, s, "WHERE id > 9")

	// A later page without a cursor must not inherit the previous WHERE.
	s, err = sq.generate(nil, 10)
	require.NoError(t, err)
	require.Equal(t, "SELECT id, val FROM public.events ORDER BY id LIMIT 10", s)
}

func TestMySQLScanQuery(t *testing.T) {
	t.Run("first page", func(t *testing.T) {
		sq := newMySQLScanQuery(scanTableFixture("id"))
		s, err := sq.generate(nil, 100)
		require.NoError(t, err)
		require.Contains(t, s, "SELECT")
		require.Contains(t, s, "`events`")
		require.Contains(t, s, "`id`")
		require.Contains(t, s, "`val`")
		require.Contains(t, s, "ORDER BY")
		require.Contains(t, s, "LIMIT 100")
		require.NotContains(t, s, "WHERE")
	})
	t.Run("resumes after cursor", func(t *testing.T) {
		sq := newMySQLScanQuery(scanTableFixture("id"))
		s, err := sq.generate([]any{int64(5)}, 100)
		require.NoError(t, err)
		require.Contains(t, s, "WHERE")
		require.Contains(t, s, ">")
		require.Contains(t, s, "5")
	})
	t.Run("compound order key", func(t *testing.T) {
		sq := newMySQLScanQuery(scanTableFixture("id", "val"))
		s, err := sq.generate([]any{int64(5), "x"}, 100)
		require.NoError(t, err)
		require.Contains(t, s, "ROW(")
		require.Contains(t, s, "'x'")
	})
	t.Run("no order columns", func(t *testing.T) {
		sq := newMySQLScanQuery(scanTableFixture())
		s, err := sq.generate(nil, 0)
		require.NoError(t, err)
		require.NotContains(t, s, "ORDER BY")
		require.NotContains(t, s, "LIMIT")
	})
}

func TestCursorValueConversion(t *testing.T) {
	t.Run("pg rejects unsupported values", func(t *testing.T) {
		_, err := pgDatum(struct{}{})
		require.ErrorContains(t, err, "unsupported cursor value")
	})
	t.Run("mysql rejects unsupported values", func(t *testing.T) {
		_, err := mysqlValueExpr(struct{}{})
		require.ErrorContains(t, err, "unsupported cursor value")
	})
	t.Run("nil maps to null", func(t *testing.T) {
		d, err := pgDatum(nil)
		require.NoError(t, err)
		require.Equal(t, tree.DNull, d)
	})
}
