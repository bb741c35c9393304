package model

import (
	"testing"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/stretchr/testify/require"

	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

type orderModel struct {
	Config `tablevet:"name=orders,strict=filter,ordered,coerce"`

	ID     int64        `tablevet:"id,unique,report_duplicates=exclude_first,check=greater_than(0)"`
	Name   string       `tablevet:"name,nullable,title=Customer name"`
	Amount *apd.Decimal `tablevet:"amount,dtype=decimal(10,2),coerce"`
	Score  *float64     `tablevet:"score"`
	Email  string       `tablevet:"email,required=false"`
	Qty    int64        `tablevet:"qty,default=0"`
	Tags   any          `tablevet:"tags"`
	Region string       `tablevet:",index"`
	TS     time.Time    `tablevet:"ts,index,nullable"`
}

func TestBuild(t *testing.T) {
	got, err := Build[orderModel]()
	require.NoError(t, err)

	want, err := schema.NewTable(
		[]schema.Column{
			{Name: "id", DType: dtype.Int64, Unique: true, ReportDuplicates: schema.ExcludeFirst,
				Checks: []check.Check{check.GreaterThan(int64(0))}},
			{Name: "name", DType: dtype.String, Nullable: true},
			{Name: "amount", DType: dtype.MakeDecimal(10, 2), Coerce: true},
			{Name: "score", DType: dtype.Float64, Nullable: true},
			{Name: "email", DType: dtype.String, Optional: true},
			{Name: "qty", DType: dtype.Int64, Default: int64(0)},
			{Name: "tags"},
		},
		schema.WithName("orders"),
		schema.WithStrict(schema.Filter),
		schema.WithOrdered(true),
		schema.WithCoerce(true),
		schema.WithIndex(schema.MultiIndex{Indexes: []schema.Index{
			{Name: "Region", DType: dtype.String},
			{Name: "ts", DType: dtype.Timestamp, Nullable: true},
		}}),
	)
	require.NoError(t, err)
	require.True(t, want.Equal(got), "built schema differs:\ngot  %s\nwant %s", got, want)

	name, ok := got.Column("name")
	require.True(t, ok)
	require.Equal(t, "Customer name", name.Title)
}

func TestBuildFieldNameDefaults(t *testing.T) {
	type m struct {
		Plain   string
		Renamed string `tablevet:"renamed"`
		Kept    string `tablevet:",unique"`
		Skipped string `tablevet:"-"`
	}
	got, err := Build[m]()
	require.NoError(t, err)
	require.Equal(t, []string{"Plain", "renamed", "Kept"}, got.ColumnNames())
	kept, _ := got.Column("Kept")
	require.True(t, kept.Unique)
}

func TestBuildCheckArguments(t *testing.T) {
	type m struct {
		Status string  `tablevet:"status,check=isin(open|closed)"`
		Ratio  float64 `tablevet:"ratio,check=in_range(0|1.5)"`
	}
	got, err := Build[m]()
	require.NoError(t, err)

	status, _ := got.Column("status")
	require.Equal(t, `isin("open", "closed")`, status.Checks[0].Describe())
	ratio, _ := got.Column("ratio")
	require.Equal(t, check.NameInRange, ratio.Checks[0].Name())
	require.Equal(t, []any{int64(0), 1.5}, ratio.Checks[0].Args())
}

type baseModel struct {
	Config `tablevet:"name=base,strict"`

	ID      int64     `tablevet:"id,unique"`
	Created time.Time `tablevet:"created"`
}

type derivedModel struct {
	baseModel
	Config `tablevet:"name=derived"`

	Created *time.Time `tablevet:"created,nullable"`
	Note    string     `tablevet:"note"`
}

func TestBuildInheritance(t *testing.T) {
	got, err := Build[derivedModel]()
	require.NoError(t, err)

	// The outer struct renames the table and overrides created in place;
	// options the outer config does not mention are inherited.
	require.Equal(t, "derived", got.Name())
	require.Equal(t, schema.EnforceStrict, got.Strict())
	require.Equal(t, []string{"id", "created", "note"}, got.ColumnNames())
	created, _ := got.Column("created")
	require.True(t, created.Nullable)
}

func TestBuildSingleIndex(t *testing.T) {
	type m struct {
		ID  int64   `tablevet:"id,index,unique"`
		Val float64 `tablevet:"val"`
	}
	got, err := Build[m]()
	require.NoError(t, err)
	idx, ok := got.Index().(schema.Index)
	require.True(t, ok, "expected a single-level index, got %T", got.Index())
	require.Equal(t, "id", idx.Name)
	require.True(t, idx.Unique)
}

func TestBuildErrors(t *testing.T) {
	assertInit := func(t *testing.T, err error, contains string) {
		t.Helper()
		require.Error(t, err)
		require.Contains(t, err.Error(), contains)
		require.True(t, schemaerr.IsInit(err), "expected a schema definition error, got %v", err)
	}

	t.Run("not a struct", func(t *testing.T) {
		_, err := Build[int]()
		assertInit(t, err, "model type int is not a struct")
	})
	t.Run("unknown option", func(t *testing.T) {
		type m struct {
			ID int64 `tablevet:"id,wat"`
		}
		_, err := Build[m]()
		assertInit(t, err, `field "ID": unknown tag option "wat"`)
	})
	t.Run("invalid dtype", func(t *testing.T) {
		type m struct {
			ID int64 `tablevet:"id,dtype=int32"`
		}
		_, err := Build[m]()
		assertInit(t, err, `field "ID": invalid dtype`)
	})
	t.Run("dtype conflicts with field type", func(t *testing.T) {
		type m struct {
			ID string `tablevet:"id,dtype=int64"`
		}
		_, err := Build[m]()
		assertInit(t, err, "dtype int64 conflicts with Go type string")
	})
	t.Run("underivable field type", func(t *testing.T) {
		type m struct {
			Blob map[string]int `tablevet:"blob"`
		}
		_, err := Build[m]()
		assertInit(t, err, "cannot derive a dtype from Go type map[string]int")
	})
	t.Run("malformed check", func(t *testing.T) {
		type m struct {
			ID int64 `tablevet:"id,check=gt(0"`
		}
		_, err := Build[m]()
		assertInit(t, err, `malformed check "gt(0"`)
	})
	t.Run("unknown check", func(t *testing.T) {
		type m struct {
			ID int64 `tablevet:"id,check=frobnicate(1)"`
		}
		_, err := Build[m]()
		assertInit(t, err, `unknown check "frobnicate"`)
	})
	t.Run("bad required value", func(t *testing.T) {
		type m struct {
			ID int64 `tablevet:"id,required=maybe"`
		}
		_, err := Build[m]()
		assertInit(t, err, "required must be true or false")
	})
	t.Run("column option on an index field", func(t *testing.T) {
		type m struct {
			ID int64 `tablevet:"id,index,default=0"`
		}
		_, err := Build[m]()
		assertInit(t, err, `option "default" does not apply to index fields`)
	})
	t.Run("config must be embedded", func(t *testing.T) {
		type m struct {
			Cfg Config `tablevet:"name=x"`
			ID  int64  `tablevet:"id"`
		}
		_, err := Build[m]()
		assertInit(t, err, `field "Cfg": model.Config must be embedded`)
	})
	t.Run("bad config option", func(t *testing.T) {
		type m struct {
			Config `tablevet:"sloppy"`
			ID     int64 `tablevet:"id"`
		}
		_, err := Build[m]()
		assertInit(t, err, `model config: unknown option "sloppy"`)
	})
	t.Run("duplicate column name", func(t *testing.T) {
		type m struct {
			A int64 `tablevet:"id"`
			B int64 `tablevet:"id"`
		}
		_, err := Build[m]()
		assertInit(t, err, `column "id" declared twice`)
	})
}

func TestMustBuildPanics(t *testing.T) {
	require.Panics(t, func() { MustBuild[int]() })
}
