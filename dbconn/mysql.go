package dbconn

import (
	"context"
	"database/sql"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/cockroachdb/errors"
	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgtype"
)

type MySQLConn struct {
	id      ID
	connStr string
	*sql.DB
	database tree.Name
	typeMap  *pgtype.Map
}

var _ Conn = (*MySQLConn)(nil)

func ConnectMySQL(ctx context.Context, id ID, connStr string) (*MySQLConn, error) {
	cfg, err := parseMySQLConn(connStr)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	m := pgtype.NewMap()
	return &MySQLConn{id: id, connStr: connStr, DB: db, typeMap: m, database: tree.Name(cfg.DBName)}, nil
}

// parseMySQLConn accepts either a go-sql-driver DSN or a mysql:// URL.
func parseMySQLConn(connStr string) (*mysql.Config, error) {
	byProtocol := strings.SplitN(connStr, "://", 2)
	if cfg, err := mysql.ParseDSN(byProtocol[len(byProtocol)-1]); err == nil {
		return cfg, nil
	}
	u, err := url.Parse(connStr)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing conn str %q", connStr)
	}
	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.DBName = strings.TrimPrefix(u.EscapedPath(), "/")
	if err := parseMySQLParams(cfg, u.Query()); err != nil {
		return nil, errors.Wrapf(err, "error parsing conn str %q", connStr)
	}
	return cfg, nil
}

func parseMySQLParams(cfg *mysql.Config, params url.Values) error {
	for k, vals := range params {
		v := vals[0]
		var err error
		switch k {
		case "parseTime":
			cfg.ParseTime, err = parseMySQLBool(v)
		case "interpolateParams":
			cfg.InterpolateParams, err = parseMySQLBool(v)
		case "multiStatements":
			cfg.MultiStatements, err = parseMySQLBool(v)
		case "collation":
			cfg.Collation = v
		case "tls":
			cfg.TLSConfig = v
		case "timeout":
			cfg.Timeout, err = time.ParseDuration(v)
		case "readTimeout":
			cfg.ReadTimeout, err = time.ParseDuration(v)
		case "writeTimeout":
			cfg.WriteTimeout, err = time.ParseDuration(v)
		case "loc":
			cfg.Loc, err = time.LoadLocation(v)
		default:
			// Remaining params pass through as session variables.
			if cfg.Params == nil {
				cfg.Params = map[string]string{}
			}
			cfg.Params[k] = v
		}
		if err != nil {
			return errors.Wrapf(err, "invalid value for parameter %q", k)
		}
	}
	return nil
}

func parseMySQLBool(v string) (bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.Newf("invalid bool value: %s", v)
	}
	return b, nil
}

func (c *MySQLConn) ID() ID {
	return c.id
}

func (c *MySQLConn) Close(ctx context.Context) error {
	return c.DB.Close()
}

func (c *MySQLConn) Clone(ctx context.Context) (Conn, error) {
	ret, err := ConnectMySQL(ctx, c.id, c.connStr)
	if err != nil {
		return nil, err
	}
	ret.typeMap = c.typeMap
	return ret, nil
}

func (c *MySQLConn) TypeMap() *pgtype.Map {
	return c.typeMap
}

func (c *MySQLConn) Database() tree.Name {
	return c.database
}

func (c *MySQLConn) IsCockroach() bool {
	return false
}

func (c *MySQLConn) ConnStr() string {
	return c.connStr
}

func (c *MySQLConn) Dialect() string {
	return "MySQL"
}
