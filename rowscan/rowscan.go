// Package rowscan streams table rows from source databases in ordered
// batches. Scan queries are built as ASTs for the target dialect and rows
// are decoded into the native value representations understood by dtype.
// When order columns are declared, pages are fetched with keyset pagination
// so the scan is deterministic and resumable; without them a single
// streaming query is batched as it is read. Order columns must not hold
// NULLs, rows sorting after a NULL key would be skipped.
package rowscan

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"
	"golang.org/x/time/rate"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/tablevet/tablevet/dbconn"
	"github.com/tablevet/tablevet/dbtable"
	"github.com/tablevet/tablevet/dtype"
)

type Iterator interface {
	Conn() dbconn.Conn
	HasNext(ctx context.Context) bool
	Error() error
	Peek(ctx context.Context) []any
	Next(ctx context.Context) []any
}

// Table describes the columns to scan. Types carries the declared data type
// for each column, used to decode raw values; a nil entry set means every
// column decodes as-is. OrderBy columns must be a subset of Columns.
type Table struct {
	dbtable.Name
	Columns    []tree.Name
	ColumnOIDs []oid.Oid
	Types      []dtype.DataType
	OrderBy    []tree.Name
}

// ScanTable is a Table with an optional cap on the number of rows scanned.
type ScanTable struct {
	Table
	Limit int
}

type scanIterator struct {
	conn         dbconn.Conn
	table        ScanTable
	rowBatchSize int
	types        []dtype.DataType
	orderIdx     []int

	waitCh      chan scanResult
	cache       [][]any
	cursor      []any
	remaining   int
	done        bool
	keyed       bool
	err         error
	scanQuery   scanQuery
	rateLimiter *rate.Limiter
}

type scanResult struct {
	rows  [][]any
	final bool
	err   error
}

// NewScanIterator returns a row iterator which scans the given table.
func NewScanIterator(
	ctx context.Context,
	conn dbconn.Conn,
	table ScanTable,
	rowBatchSize int,
	rateLimiter *rate.Limiter,
) (Iterator, error) {
	// Initialize the type map on the connection. OID 0 marks a column the
	// catalog could not type; those scan untyped.
	for _, typOID := range table.ColumnOIDs {
		if typOID == 0 {
			continue
		}
		if _, err := dbconn.GetDataType(ctx, conn, typOID); err != nil {
			return nil, errors.Wrapf(err, "error initializing type oid %d", typOID)
		}
	}
	types := table.Types
	if types == nil {
		types = make([]dtype.DataType, len(table.Columns))
	}
	if len(types) != len(table.Columns) {
		return nil, errors.AssertionFailedf(
			"%d scan columns with %d declared types", len(table.Columns), len(types),
		)
	}
	it := &scanIterator{
		conn:         conn,
		table:        table,
		rowBatchSize: rowBatchSize,
		types:        types,
		remaining:    table.Limit,
		keyed:        len(table.OrderBy) > 0,
		waitCh:       make(chan scanResult, 1),
		rateLimiter:  rateLimiter,
	}
	for _, orderCol := range table.OrderBy {
		idx := -1
		for i, col := range table.Columns {
			if col == orderCol {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, errors.Newf("order column %q is not part of the scan columns", orderCol)
		}
		it.orderIdx = append(it.orderIdx, idx)
	}
	switch conn.(type) {
	case *dbconn.PGConn:
		it.scanQuery = newPGScanQuery(table)
	case *dbconn.MySQLConn:
		it.scanQuery = newMySQLScanQuery(table)
	default:
		return nil, errors.Newf("unsupported conn type %T", conn)
	}
	if it.keyed {
		it.nextPage(ctx)
	} else {
		go it.streamAll(ctx)
	}
	return it, nil
}

func (it *scanIterator) Conn() dbconn.Conn {
	return it.conn
}

func (it *scanIterator) HasNext(ctx context.Context) bool {
	for {
		if it.err != nil {
			return false
		}

		if len(it.cache) > 0 {
			return true
		}

		if it.done {
			return false
		}

		// Wait for more results.
		res := <-it.waitCh
		if res.err != nil {
			it.err = errors.Wrap(res.err, "error getting result")
			return false
		}
		it.cache = res.rows
		if res.final {
			it.done = true
			continue
		}

		// Queue the next page immediately. In streaming mode the scan
		// goroutine produces batches on its own.
		if it.keyed {
			it.nextPage(ctx)
		}
	}
}

// nextPage fetches the next keyset page asynchronously.
func (it *scanIterator) nextPage(ctx context.Context) {
	go func() {
		it.waitCh <- it.fetchPage(ctx)
	}()
}

func (it *scanIterator) fetchPage(ctx context.Context) scanResult {
	limit := it.rowBatchSize
	if it.table.Limit > 0 && it.remaining < limit {
		limit = it.remaining
	}
	if limit == 0 {
		return scanResult{final: true}
	}
	q, err := it.scanQuery.generate(it.cursor, limit)
	if err != nil {
		return scanResult{err: err}
	}
	if it.rateLimiter != nil {
		if err := it.rateLimiter.Wait(ctx); err != nil {
			return scanResult{err: err}
		}
	}
	currRows, err := it.queryRows(ctx, q)
	if err != nil {
		return scanResult{err: err}
	}
	defer currRows.Close()

	out := make([][]any, 0, limit)
	for currRows.Next() {
		row, err := currRows.Row()
		if err != nil {
			return scanResult{err: errors.Wrap(err, "error decoding row")}
		}
		it.cursor = rowKey(row, it.orderIdx)
		out = append(out, row)
	}
	if err := currRows.Err(); err != nil {
		return scanResult{err: err}
	}
	if it.table.Limit > 0 {
		it.remaining -= len(out)
	}
	scannedBatches.Inc()
	scannedRows.Add(float64(len(out)))
	final := len(out) < limit || (it.table.Limit > 0 && it.remaining == 0)
	return scanResult{rows: out, final: final}
}

// streamAll reads the whole table through one query, batching rows as they
// arrive. It owns the result set for the lifetime of the scan.
func (it *scanIterator) streamAll(ctx context.Context) {
	send := func(res scanResult) bool {
		select {
		case it.waitCh <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}
	err := func() error {
		q, err := it.scanQuery.generate(nil, it.table.Limit)
		if err != nil {
			return err
		}
		if it.rateLimiter != nil {
			if err := it.rateLimiter.Wait(ctx); err != nil {
				return err
			}
		}
		currRows, err := it.queryRows(ctx, q)
		if err != nil {
			return err
		}
		defer currRows.Close()

		batch := make([][]any, 0, it.rowBatchSize)
		for currRows.Next() {
			row, err := currRows.Row()
			if err != nil {
				return errors.Wrap(err, "error decoding row")
			}
			batch = append(batch, row)
			if len(batch) == it.rowBatchSize {
				scannedBatches.Inc()
				scannedRows.Add(float64(len(batch)))
				if !send(scanResult{rows: batch}) {
					return ctx.Err()
				}
				batch = make([][]any, 0, it.rowBatchSize)
			}
		}
		if err := currRows.Err(); err != nil {
			return err
		}
		if len(batch) > 0 {
			scannedBatches.Inc()
			scannedRows.Add(float64(len(batch)))
		}
		if !send(scanResult{rows: batch, final: true}) {
			return ctx.Err()
		}
		return nil
	}()
	if err != nil {
		send := scanResult{err: err}
		select {
		case it.waitCh <- send:
		case <-ctx.Done():
		}
	}
}

func (it *scanIterator) queryRows(ctx context.Context, q string) (rows, error) {
	switch conn := it.conn.(type) {
	case *dbconn.PGConn:
		newRows, err := conn.Query(ctx, q)
		if err != nil {
			return nil, errors.Wrapf(
				err, "error getting rows for table %s.%s from %s",
				it.table.Schema, it.table.Name.Table, it.conn.ID(),
			)
		}
		return &pgRows{Rows: newRows}, nil
	case *dbconn.MySQLConn:
		newRows, err := conn.QueryContext(ctx, q)
		if err != nil {
			return nil, errors.Wrapf(
				err, "error getting rows for table %s in %s",
				it.table.Name.Table, it.conn.ID(),
			)
		}
		return &mysqlRows{Rows: newRows, types: it.types}, nil
	}
	return nil, errors.AssertionFailedf("unhandled conn type: %T", it.conn)
}

func rowKey(row []any, orderIdx []int) []any {
	key := make([]any, len(orderIdx))
	for i, idx := range orderIdx {
		key[i] = row[idx]
	}
	return key
}

func (it *scanIterator) Peek(ctx context.Context) []any {
	if it.HasNext(ctx) {
		return it.cache[0]
	}
	return nil
}

func (it *scanIterator) Next(ctx context.Context) []any {
	if it.HasNext(ctx) {
		ret := it.cache[0]
		it.cache = it.cache[1:]
		return ret
	}
	return nil
}

func (it *scanIterator) Error() error {
	return it.err
}
