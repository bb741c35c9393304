package rowscan

import (
	"go/constant"
	"strings"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree/treecmp"
	"github.com/cockroachdb/errors"
	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/format"
	"github.com/pingcap/tidb/parser/model"
	"github.com/pingcap/tidb/parser/opcode"
)

// scanQuery renders per-page scan statements from a dialect AST. The cursor
// holds the order column values of the last row seen; pages resume strictly
// after it.
type scanQuery struct {
	base  any
	table ScanTable
}

func newPGScanQuery(table ScanTable) scanQuery {
	tn := table.MakeTableName()
	selectClause := &tree.SelectClause{
		From: tree.From{
			Tables: tree.TableExprs{&tn},
		},
	}
	for _, col := range table.Columns {
		selectClause.Exprs = append(
			selectClause.Exprs,
			tree.SelectExpr{
				Expr: tree.NewUnresolvedName(string(col)),
			},
		)
	}
	stmt := &tree.Select{
		Select: selectClause,
	}
	for _, orderCol := range table.OrderBy {
		stmt.OrderBy = append(
			stmt.OrderBy,
			&tree.Order{Expr: tree.NewUnresolvedName(string(orderCol))},
		)
	}
	return scanQuery{
		base:  stmt,
		table: table,
	}
}

func newMySQLScanQuery(table ScanTable) scanQuery {
	fields := &ast.FieldList{
		Fields: make([]*ast.SelectField, len(table.Columns)),
	}
	for i, col := range table.Columns {
		fields.Fields[i] = &ast.SelectField{
			Expr: mysqlColumnField(col),
		}
	}
	var orderBy *ast.OrderByClause
	if len(table.OrderBy) > 0 {
		orderBy = &ast.OrderByClause{
			Items: make([]*ast.ByItem, len(table.OrderBy)),
		}
		for i, orderCol := range table.OrderBy {
			orderBy.Items[i] = &ast.ByItem{
				Expr: mysqlColumnField(orderCol),
			}
		}
	}
	return scanQuery{
		base: &ast.SelectStmt{
			SelectStmtOpts: &ast.SelectStmtOpts{
				SQLCache: true,
			},
			From: &ast.TableRefsClause{
				TableRefs: &ast.Join{
					Left: &ast.TableSource{
						Source: &ast.TableName{Name: model.NewCIStr(string(table.Name.Table))},
					},
				},
			},
			Fields:  fields,
			Kind:    ast.SelectStmtKindSelect,
			OrderBy: orderBy,
		},
		table: table,
	}
}

func (sq *scanQuery) generate(cursor []any, limit int) (string, error) {
	switch stmt := sq.base.(type) {
	case *tree.Select:
		selectClause := stmt.Select.(*tree.SelectClause)
		if len(cursor) > 0 {
			datums, err := pgDatums(cursor)
			if err != nil {
				return "", err
			}
			selectClause.Where = &tree.Where{
				Type: tree.AstWhere,
				Expr: makePGCompareExpr(
					treecmp.MakeComparisonOperator(treecmp.GT),
					sq.table.OrderBy,
					datums,
				),
			}
		} else {
			selectClause.Where = nil
		}
		if limit > 0 {
			stmt.Limit = &tree.Limit{Count: tree.NewNumVal(constant.MakeUint64(uint64(limit)), "", false)}
		} else {
			stmt.Limit = nil
		}
		f := tree.NewFmtCtx(tree.FmtParsableNumerics)
		f.FormatNode(stmt)
		return f.CloseAndGetString(), nil
	case *ast.SelectStmt:
		if len(cursor) > 0 {
			cmpExpr, err := makeMySQLCompareExpr(opcode.GT, sq.table.OrderBy, cursor)
			if err != nil {
				return "", err
			}
			stmt.Where = cmpExpr
		} else {
			stmt.Where = nil
		}
		if limit > 0 {
			stmt.Limit = &ast.Limit{Count: ast.NewValueExpr(uint64(limit), "", "")}
		} else {
			stmt.Limit = nil
		}
		var sb strings.Builder
		if err := stmt.Restore(format.NewRestoreCtx(format.DefaultRestoreFlags, &sb)); err != nil {
			return "", errors.Wrap(err, "error generating MySQL statement")
		}
		return sb.String(), nil
	}
	return "", errors.AssertionFailedf("unknown scan query type: %T", sq.base)
}

func makePGCompareExpr(
	op treecmp.ComparisonOperator, cols []tree.Name, vals tree.Datums,
) *tree.ComparisonExpr {
	cmpExpr := &tree.ComparisonExpr{
		Operator: op,
	}
	if len(vals) > 1 {
		colNames := &tree.Tuple{}
		colVals := &tree.Tuple{}
		for i := range vals {
			colNames.Exprs = append(colNames.Exprs, tree.NewUnresolvedName(string(cols[i])))
			colVals.Exprs = append(colVals.Exprs, vals[i])
		}
		cmpExpr.Left = colNames
		cmpExpr.Right = colVals
	} else {
		cmpExpr.Left = tree.NewUnresolvedName(string(cols[0]))
		cmpExpr.Right = vals[0]
	}
	return cmpExpr
}

func makeMySQLCompareExpr(
	op opcode.Op, cols []tree.Name, vals []any,
) (*ast.BinaryOperationExpr, error) {
	cmpExpr := &ast.BinaryOperationExpr{
		Op: op,
	}
	colVals := make([]ast.ExprNode, len(vals))
	for i, v := range vals {
		expr, err := mysqlValueExpr(v)
		if err != nil {
			return nil, err
		}
		colVals[i] = expr
	}
	if len(vals) > 1 {
		colNames := make([]ast.ExprNode, len(vals))
		for i := range vals {
			colNames[i] = mysqlColumnField(cols[i])
		}
		cmpExpr.L = &ast.RowExpr{Values: colNames}
		cmpExpr.R = &ast.RowExpr{Values: colVals}
	} else {
		cmpExpr.L = mysqlColumnField(cols[0])
		cmpExpr.R = colVals[0]
	}
	return cmpExpr, nil
}

func mysqlColumnField(name tree.Name) *ast.ColumnNameExpr {
	return &ast.ColumnNameExpr{
		Name: &ast.ColumnName{
			Name: model.NewCIStr(string(name)),
		},
	}
}

func pgDatums(vals []any) (tree.Datums, error) {
	datums := make(tree.Datums, len(vals))
	for i, v := range vals {
		d, err := pgDatum(v)
		if err != nil {
			return nil, err
		}
		datums[i] = d
	}
	return datums, nil
}

func pgDatum(v any) (tree.Datum, error) {
	switch v := v.(type) {
	case nil:
		return tree.DNull, nil
	case bool:
		return tree.MakeDBool(tree.DBool(v)), nil
	case int64:
		return tree.NewDInt(tree.DInt(v)), nil
	case float64:
		return tree.NewDFloat(tree.DFloat(v)), nil
	case string:
		return tree.NewDString(v), nil
	case []byte:
		return tree.NewDBytes(tree.DBytes(v)), nil
	case *apd.Decimal:
		dd := &tree.DDecimal{}
		dd.Decimal.Set(v)
		return dd, nil
	case time.Time:
		return tree.MakeDTimestamp(v, time.Microsecond)
	}
	return nil, errors.Newf("unsupported cursor value %v (%T)", v, v)
}

func mysqlValueExpr(v any) (ast.ExprNode, error) {
	switch v := v.(type) {
	case nil:
		return ast.NewValueExpr(nil, "", ""), nil
	case bool:
		if v {
			return ast.NewValueExpr(int64(1), "", ""), nil
		}
		return ast.NewValueExpr(int64(0), "", ""), nil
	case int64, float64, string, []byte:
		return ast.NewValueExpr(v, "", ""), nil
	case *apd.Decimal:
		return ast.NewValueExpr(v.String(), "", ""), nil
	case time.Time:
		return ast.NewValueExpr(v.Format("2006-01-02 15:04:05.999999"), "", ""), nil
	}
	return nil, errors.Newf("unsupported cursor value %v (%T)", v, v)
}
