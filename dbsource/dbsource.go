// Package dbsource materializes database tables into frames so they validate
// through the frame engine. Column metadata comes from the database catalog,
// rows stream in through rowscan, and declared index levels are lifted out of
// the scanned columns into the frame index.
package dbsource

import (
	"context"
	"strings"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5"
	"github.com/lib/pq/oid"

	"github.com/tablevet/tablevet/dbconn"
	"github.com/tablevet/tablevet/dbtable"
	"github.com/tablevet/tablevet/dtype"
)

// Column is an observed table column.
type Column struct {
	Name    tree.Name
	OID     oid.Oid
	NotNull bool
}

// LookupTable resolves a table name against the database catalog.
func LookupTable(ctx context.Context, conn dbconn.Conn, tbl dbtable.Name) (dbtable.DBTable, error) {
	switch conn := conn.(type) {
	case *dbconn.PGConn:
		var tableOID oid.Oid
		if err := conn.QueryRow(
			ctx,
			`SELECT pg_class.oid
FROM pg_class
JOIN pg_namespace ON (pg_class.relnamespace = pg_namespace.oid)
WHERE relkind = 'r' AND pg_namespace.nspname = $1 AND pg_class.relname = $2`,
			string(tbl.Schema),
			string(tbl.Table),
		).Scan(&tableOID); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return dbtable.DBTable{}, errors.Newf("table %s does not exist", tbl)
			}
			return dbtable.DBTable{}, errors.Wrap(err, "error looking up table")
		}
		return dbtable.DBTable{Name: tbl, OID: tableOID}, nil
	case *dbconn.MySQLConn:
		// MySQL tables have no OID; existence surfaces through the column
		// metadata query.
		return dbtable.DBTable{Name: tbl}, nil
	}
	return dbtable.DBTable{}, errors.Newf("connection %T not supported", conn)
}

// Columns returns the observed columns of the table in table order.
func Columns(ctx context.Context, conn dbconn.Conn, table dbtable.DBTable) ([]Column, error) {
	var ret []Column

	switch conn := conn.(type) {
	case *dbconn.PGConn:
		rows, err := conn.Query(
			ctx,
			`SELECT attname, atttypid, attnotnull FROM pg_attribute
WHERE attrelid = $1 AND attnum > 0 AND NOT attisdropped
ORDER BY attnum`,
			table.OID,
		)
		if err != nil {
			return ret, err
		}
		defer rows.Close()

		for rows.Next() {
			var cm Column
			if err := rows.Scan(&cm.Name, &cm.OID, &cm.NotNull); err != nil {
				return ret, errors.Wrap(err, "error decoding column metadata")
			}
			ret = append(ret, cm)
		}
		if err := rows.Err(); err != nil {
			return ret, errors.Wrap(err, "error collecting column metadata")
		}
	case *dbconn.MySQLConn:
		rows, err := conn.QueryContext(
			ctx,
			`SELECT
column_name, data_type, is_nullable
FROM information_schema.columns
WHERE table_schema = database() AND table_name = ?
ORDER BY ordinal_position`,
			string(table.Table),
		)
		if err != nil {
			return ret, err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var cn string
			var dt string
			var isNullable string
			if err := rows.Scan(&cn, &dt, &isNullable); err != nil {
				return ret, errors.Wrap(err, "error decoding column metadata")
			}
			ret = append(ret, Column{
				Name:    tree.Name(strings.ToLower(cn)),
				OID:     mysqlTypeOID(dt),
				NotNull: isNullable == "NO",
			})
		}
		if err := rows.Err(); err != nil {
			return ret, errors.Wrap(err, "error collecting column metadata")
		}
	default:
		return nil, errors.Newf("connection %T not supported", conn)
	}
	if len(ret) == 0 {
		return nil, errors.Newf("table %s has no columns; does it exist?", table.Name)
	}
	return ret, nil
}

func getPrimaryKey(ctx context.Context, conn dbconn.Conn, table dbtable.DBTable) ([]tree.Name, error) {
	var ret []tree.Name

	switch conn := conn.(type) {
	case *dbconn.PGConn:
		rows, err := conn.Query(
			ctx,
			`
select
    a.attname as column_name
from
    pg_class t
    join pg_attribute a on a.attrelid = t.oid
    join pg_index ix    on t.oid = ix.indrelid AND a.attnum = ANY(ix.indkey)
    join pg_class i     on i.oid = ix.indexrelid
where
    t.oid = $1 AND indisprimary;
`,
			table.OID,
		)
		if err != nil {
			return ret, err
		}
		defer rows.Close()

		for rows.Next() {
			var c tree.Name
			if err := rows.Scan(&c); err != nil {
				return ret, errors.Wrap(err, "error decoding column name")
			}
			ret = append(ret, c)
		}
		if err := rows.Err(); err != nil {
			return ret, errors.Wrap(err, "error collecting primary key")
		}
	case *dbconn.MySQLConn:
		rows, err := conn.QueryContext(
			ctx,
			`SELECT k.column_name
FROM information_schema.table_constraints t
JOIN information_schema.key_column_usage k
USING(constraint_name,table_schema,table_name)
WHERE t.constraint_type = 'PRIMARY KEY'
  AND t.table_schema = database()
  AND t.table_name = ?
  ORDER BY k.ordinal_position`,
			string(table.Table),
		)
		if err != nil {
			return ret, err
		}
		defer func() { _ = rows.Close() }()

		for rows.Next() {
			var c string
			if err := rows.Scan(&c); err != nil {
				return ret, errors.Wrap(err, "error decoding column name")
			}
			ret = append(ret, tree.Name(strings.ToLower(c)))
		}
		if err := rows.Err(); err != nil {
			return ret, errors.Wrap(err, "error collecting primary key")
		}
	}
	return ret, nil
}

// mysqlTypeOID maps an information_schema data_type onto the closest pg type
// OID. Unknown types map to 0 and scan untyped.
func mysqlTypeOID(dataType string) oid.Oid {
	switch dataType {
	case "integer", "int", "mediumint":
		return oid.T_int4
	case "smallint", "tinyint":
		return oid.T_int2
	case "bigint":
		return oid.T_int8
	case "decimal", "numeric":
		return oid.T_numeric
	case "float":
		return oid.T_float4
	case "double":
		return oid.T_float8
	case "bit":
		return oid.T_varbit
	case "date":
		return oid.T_date
	case "datetime":
		return oid.T_timestamp
	case "timestamp":
		return oid.T_timestamptz
	case "time":
		return oid.T_time
	case "char":
		return oid.T_bpchar
	case "varchar":
		return oid.T_varchar
	case "binary", "varbinary":
		return oid.T_bytea
	case "blob", "text", "tinytext", "mediumtext", "longtext", "enum":
		return oid.T_text
	case "json":
		return oid.T_jsonb
	}
	return 0
}

// dtypeForOID maps a column type OID onto the data type its values scan as.
// Types outside the model scan untyped.
func dtypeForOID(o oid.Oid) dtype.DataType {
	switch o {
	case oid.T_bool:
		return dtype.Bool
	case oid.T_int2, oid.T_int4, oid.T_int8:
		return dtype.Int64
	case oid.T_float4, oid.T_float8:
		return dtype.Float64
	case oid.T_numeric:
		return dtype.DataType{Kind: dtype.KindDecimal}
	case oid.T_date:
		return dtype.Date
	case oid.T_timestamp, oid.T_timestamptz:
		return dtype.Timestamp
	case oid.T_text, oid.T_varchar, oid.T_bpchar, oid.T_name, oid.T_uuid:
		return dtype.String
	case oid.T_bytea:
		return dtype.Bytes
	}
	return dtype.DataType{}
}
