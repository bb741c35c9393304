// Package dbtable names database tables.
package dbtable

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/cockroachdb-parser/pkg/sql/sem/tree"
	"github.com/cockroachdb/errors"
	"github.com/lib/pq/oid"
)

type Name struct {
	Schema tree.Name
	Table  tree.Name
}

// ParseName splits a qualified "schema.table" name, defaulting the schema
// when unqualified.
func ParseName(s string, defaultSchema string) (Name, error) {
	parts := strings.Split(s, ".")
	switch len(parts) {
	case 1:
		return Name{Schema: tree.Name(defaultSchema), Table: tree.Name(parts[0])}, nil
	case 2:
		return Name{Schema: tree.Name(parts[0]), Table: tree.Name(parts[1])}, nil
	}
	return Name{}, errors.Newf("invalid table name %q", s)
}

func (n Name) MakeTableName() tree.TableName {
	return tree.MakeTableNameFromPrefix(tree.ObjectNamePrefix{
		SchemaName:     n.Schema,
		ExplicitSchema: true,
	}, n.Table)
}

func (n Name) NewTableName() *tree.TableName {
	tn := n.MakeTableName()
	return &tn
}

func (n Name) SafeString() string {
	return fmt.Sprintf("%s.%s", n.Schema, n.Table)
}

func (n Name) String() string {
	return fmt.Sprintf("%s.%s", n.Schema, n.Table)
}

// DBTable is a table object with the OID reported by the database.
type DBTable struct {
	Name
	OID oid.Oid
}

func (tm DBTable) Compare(o DBTable) int {
	if c := strings.Compare(strings.ToLower(string(tm.Schema)), strings.ToLower(string(o.Schema))); c != 0 {
		return c
	}
	return strings.Compare(strings.ToLower(string(tm.Table)), strings.ToLower(string(o.Table)))
}

func (tm DBTable) Less(o DBTable) bool {
	return tm.Compare(o) < 0
}

func (tm DBTable) String() string {
	return fmt.Sprintf("%s.%s", tm.Schema, tm.Table)
}
