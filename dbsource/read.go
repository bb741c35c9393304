package dbsource

import (
	"context"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tablevet/tablevet/dbconn"
	"github.com/tablevet/tablevet/dbtable"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/frame"
	"github.com/tablevet/tablevet/retry"
	"github.com/tablevet/tablevet/rowscan"
	"github.com/tablevet/tablevet/schema"
)

const defaultRowBatchSize = 10000

// ReadOptions tunes how a table is scanned.
type ReadOptions struct {
	// RowBatchSize is the page size of the underlying scan.
	RowBatchSize int
	// Limit caps the number of rows read. Zero reads the whole table.
	Limit int
	// RateLimiter paces scan batches when set.
	RateLimiter *rate.Limiter
	// Retry restarts the scan on transient failures. The zero value scans
	// exactly once.
	Retry retry.Settings
}

// Read materializes a database table into a frame shaped for the given
// schema: observed columns keep their table order, values decode to the
// declared data types (falling back to the catalog types), and named index
// levels move into the frame index. The scan orders by the declared index
// when every level is observed, otherwise by the table's primary key.
func Read(
	ctx context.Context,
	conn dbconn.Conn,
	tbl dbtable.Name,
	sch *schema.Table,
	logger zerolog.Logger,
	o ReadOptions,
) (*frame.Frame, error) {
	if sch == nil {
		return nil, errors.AssertionFailedf("no schema to read against")
	}
	if o.RowBatchSize <= 0 {
		o.RowBatchSize = defaultRowBatchSize
	}

	dbt, err := LookupTable(ctx, conn, tbl)
	if err != nil {
		return nil, err
	}
	cols, err := Columns(ctx, conn, dbt)
	if err != nil {
		return nil, err
	}
	pk, err := getPrimaryKey(ctx, conn, dbt)
	if err != nil {
		return nil, err
	}

	types := scanTypes(sch, cols)
	scanTable := rowscan.ScanTable{
		Table: rowscan.Table{
			Name:       tbl,
			Columns:    columnNames(cols),
			ColumnOIDs: columnOIDs(cols),
			Types:      types,
			OrderBy:    orderColumns(sch, cols, pk),
		},
		Limit: o.Limit,
	}

	if o.Retry == (retry.Settings{}) {
		return readOnce(ctx, conn, scanTable, sch, types, cols, logger, o)
	}
	r, err := retry.NewRetry(o.Retry)
	if err != nil {
		return nil, err
	}
	var f *frame.Frame
	scanLogger := logger.With().Str("table", tbl.String()).Logger()
	if err := r.Do(ctx, scanLogger, "scanning table", func(ctx context.Context) error {
		var err error
		f, err = readOnce(ctx, conn, scanTable, sch, types, cols, logger, o)
		return err
	}); err != nil {
		return nil, err
	}
	return f, nil
}

func readOnce(
	ctx context.Context,
	conn dbconn.Conn,
	scanTable rowscan.ScanTable,
	sch *schema.Table,
	types []dtype.DataType,
	cols []Column,
	logger zerolog.Logger,
	o ReadOptions,
) (*frame.Frame, error) {
	it, err := rowscan.NewScanIterator(ctx, conn, scanTable, o.RowBatchSize, o.RateLimiter)
	if err != nil {
		return nil, err
	}
	var rows [][]any
	for it.HasNext(ctx) {
		rows = append(rows, it.Next(ctx))
		if len(rows)%o.RowBatchSize == 0 {
			logger.Debug().
				Int("rows", len(rows)).
				Str("table", scanTable.Name.String()).
				Msg("scan progress")
		}
	}
	if err := it.Error(); err != nil {
		return nil, err
	}
	logger.Debug().
		Int("rows", len(rows)).
		Str("table", scanTable.Name.String()).
		Msg("scan complete")
	return assembleFrame(sch, cols, types, rows)
}

// scanTypes resolves the data type each observed column decodes to: the
// declared column or index level type when one names it, the catalog type
// otherwise.
func scanTypes(sch *schema.Table, cols []Column) []dtype.DataType {
	types := make([]dtype.DataType, len(cols))
	for i, col := range cols {
		name := string(col.Name)
		if sc, ok := sch.Column(name); ok {
			if dt := sch.EffectiveDType(sc); !dt.IsAny() {
				types[i] = dt
				continue
			}
		}
		if lvl, ok := indexLevel(sch, name); ok && !lvl.DType.IsAny() {
			types[i] = lvl.DType
			continue
		}
		types[i] = dtypeForOID(col.OID)
	}
	return types
}

// orderColumns picks the scan ordering: the declared index levels when every
// level is named and observed, else the primary key. An empty result streams
// the table in storage order.
func orderColumns(sch *schema.Table, cols []Column, pk []tree.Name) []tree.Name {
	if sch.Index() != nil {
		levels := sch.Index().Levels()
		ordered := make([]tree.Name, 0, len(levels))
		for _, lvl := range levels {
			if lvl.Name == "" || !hasColumn(cols, tree.Name(lvl.Name)) {
				ordered = nil
				break
			}
			ordered = append(ordered, tree.Name(lvl.Name))
		}
		if len(ordered) > 0 {
			return ordered
		}
	}
	return pk
}

// assembleFrame turns scanned rows into a frame, lifting observed index
// level columns out of the data columns into the frame index in declared
// level order. Missing levels are left to validation to report.
func assembleFrame(
	sch *schema.Table, cols []Column, types []dtype.DataType, rows [][]any,
) (*frame.Frame, error) {
	values := make([][]any, len(cols))
	for i := range values {
		values[i] = make([]any, len(rows))
	}
	for r, row := range rows {
		if len(row) != len(cols) {
			return nil, errors.AssertionFailedf("row %d has %d values, expected %d", r, len(row), len(cols))
		}
		for c := range cols {
			values[c][r] = row[c]
		}
	}

	levelCols := make(map[string]*frame.Column)
	dataCols := make([]*frame.Column, 0, len(cols))
	for i, col := range cols {
		fc := frame.NewColumn(string(col.Name), types[i], values[i])
		if _, ok := indexLevel(sch, string(col.Name)); ok {
			levelCols[string(col.Name)] = fc
			continue
		}
		dataCols = append(dataCols, fc)
	}
	f, err := frame.New(dataCols...)
	if err != nil {
		return nil, err
	}
	if len(levelCols) > 0 {
		levels := make([]*frame.Column, 0, len(levelCols))
		for _, lvl := range sch.Index().Levels() {
			if fc, ok := levelCols[lvl.Name]; ok {
				levels = append(levels, fc)
			}
		}
		f.SetIndexData(frame.NewIndexData(levels...))
	}
	return f, nil
}

func indexLevel(sch *schema.Table, name string) (schema.Index, bool) {
	if sch.Index() == nil || name == "" {
		return schema.Index{}, false
	}
	for _, lvl := range sch.Index().Levels() {
		if lvl.Name == name {
			return lvl, true
		}
	}
	return schema.Index{}, false
}

func hasColumn(cols []Column, name tree.Name) bool {
	for _, col := range cols {
		if col.Name == name {
			return true
		}
	}
	return false
}

func columnNames(cols []Column) []tree.Name {
	names := make([]tree.Name, len(cols))
	for i, col := range cols {
		names[i] = col.Name
	}
	return names
}

func columnOIDs(cols []Column) []oid.Oid {
	oids := make([]oid.Oid, len(cols))
	for i, col := range cols {
		oids[i] = col.OID
	}
	return oids
}
