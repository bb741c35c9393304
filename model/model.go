// Package model derives table schemas from Go struct types. Each exported
// field declares one column (or index level) through its `tablevet` tag, and
// table-level options ride on an embedded Config field:
//
//	type Order struct {
//		model.Config `tablevet:"name=orders,strict=filter,ordered"`
//
//		ID     int64        `tablevet:"id,unique,check=greater_than(0)"`
//		Name   string       `tablevet:"name,nullable"`
//		Amount *apd.Decimal `tablevet:"amount,dtype=decimal(10,2),coerce"`
//		Region string       `tablevet:",index"`
//	}
//
//	var orderSchema = model.MustBuild[Order]()
//
// The first comma-separated tag item names the column; leave it empty to
// keep the Go field name. Field types pick the dtype (pointers mark the
// column nullable), and a dtype= item refines or overrides it. Embedding
// one model struct inside another inherits its fields; the outer struct's
// declarations win on name collisions.
package model

import (
	"reflect"
	"time"

	"github.com/cockroachdb/apd/v3"

	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

// Config carries table-level options on its tag. It must be embedded.
type Config struct{}

var (
	configType     = reflect.TypeOf(Config{})
	timeType       = reflect.TypeOf(time.Time{})
	decimalType    = reflect.TypeOf(apd.Decimal{})
	decimalPtrType = reflect.TypeOf((*apd.Decimal)(nil))
	bytesType      = reflect.TypeOf([]byte(nil))
)

// Build derives a table schema from T's fields. Malformed tags, unknown
// options, and dtype conflicts surface as schema definition errors naming
// the offending field.
func Build[T any]() (*schema.Table, error) {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if rt.Kind() != reflect.Struct {
		return nil, schemaerr.NewInit("model type %s is not a struct", rt)
	}
	var c collector
	c.byName = map[string]int{}
	if err := c.walk(rt, 0); err != nil {
		return nil, err
	}
	return resolve(c.specs, c.configTags)
}

// MustBuild is Build for package-level schema variables; it panics on a bad
// model definition.
func MustBuild[T any]() *schema.Table {
	t, err := Build[T]()
	if err != nil {
		panic(err)
	}
	return t
}

type collector struct {
	specs      []fieldSpec
	byName     map[string]int
	configTags []string
}

// walk collects field specs depth-first. Embedded model structs contribute
// their fields at the embed position; a shallower field with the same Go
// name replaces a deeper one in place, following Go's own promotion rules.
func (c *collector) walk(rt reflect.Type, depth int) error {
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		tag, tagged := f.Tag.Lookup(tagKey)
		if f.Type == configType {
			if !f.Anonymous {
				return schemaerr.NewInit("field %q: model.Config must be embedded", f.Name)
			}
			c.configTags = append(c.configTags, tag)
			continue
		}
		if f.Anonymous && !tagged && f.Type.Kind() == reflect.Struct &&
			f.Type != timeType && f.Type != decimalType {
			if err := c.walk(f.Type, depth+1); err != nil {
				return err
			}
			continue
		}
		if f.PkgPath != "" || tag == "-" {
			continue
		}
		spec, err := parseFieldTag(f.Name, f.Type, tag)
		if err != nil {
			return err
		}
		spec.depth = depth
		if j, ok := c.byName[f.Name]; ok {
			switch {
			case c.specs[j].depth == depth:
				return schemaerr.NewInit("field %q declared twice", f.Name)
			case c.specs[j].depth < depth:
				// The shallower declaration already won.
			default:
				c.specs[j] = spec
			}
			continue
		}
		c.byName[f.Name] = len(c.specs)
		c.specs = append(c.specs, spec)
	}
	return nil
}

func resolve(specs []fieldSpec, configTags []string) (*schema.Table, error) {
	var cols []schema.Column
	var levels []schema.Index
	for _, sp := range specs {
		dt, nullable, err := resolveDType(sp)
		if err != nil {
			return nil, err
		}
		checks, err := resolveChecks(sp)
		if err != nil {
			return nil, err
		}
		if sp.index {
			if opt := sp.columnOnlyOption(); opt != "" {
				return nil, schemaerr.NewInit("field %q: option %q does not apply to index fields", sp.goName, opt)
			}
			levels = append(levels, schema.Index{
				Name:             sp.name,
				DType:            dt,
				Checks:           checks,
				Nullable:         nullable || sp.nullable,
				Unique:           sp.unique,
				ReportDuplicates: sp.reportDuplicates,
				Coerce:           sp.coerce,
				Title:            sp.title,
				Description:      sp.description,
			})
			continue
		}
		cols = append(cols, schema.Column{
			Name:             sp.name,
			DType:            dt,
			Checks:           checks,
			Nullable:         nullable || sp.nullable,
			Unique:           sp.unique,
			ReportDuplicates: sp.reportDuplicates,
			Coerce:           sp.coerce,
			Optional:         sp.optional,
			Regex:            sp.regex,
			Title:            sp.title,
			Description:      sp.description,
			Default:          sp.defaultVal,
			Metadata:         nil,
			DropInvalidRows:  sp.dropInvalidRows,
		})
	}

	var opts []schema.TableOpt
	for _, tag := range configTags {
		o, err := parseConfigTag(tag)
		if err != nil {
			return nil, err
		}
		opts = append(opts, o...)
	}
	switch len(levels) {
	case 0:
	case 1:
		opts = append(opts, schema.WithIndex(levels[0]))
	default:
		opts = append(opts, schema.WithIndex(schema.MultiIndex{Indexes: levels}))
	}
	return schema.NewTable(cols, opts...)
}

func resolveChecks(sp fieldSpec) ([]check.Check, error) {
	if len(sp.checks) == 0 {
		return nil, nil
	}
	checks := make([]check.Check, 0, len(sp.checks))
	for _, cs := range sp.checks {
		ck, err := check.FromArgs(cs.name, cs.args)
		if err != nil {
			return nil, schemaerr.WrapInitf(err, "field %q", sp.goName)
		}
		checks = append(checks, ck)
	}
	return checks, nil
}

// resolveDType reconciles the field's Go type with its dtype= tag. The Go
// type decides when no tag is present; a tag must agree with the Go type
// where the Go type pins one down.
func resolveDType(sp fieldSpec) (dtype.DataType, bool, error) {
	derived, nullable, known := dtypeForGoType(sp.goType)
	if sp.dtypeLit == "" {
		if !known {
			return dtype.DataType{}, false, schemaerr.NewInit(
				"field %q: cannot derive a dtype from Go type %s; add a dtype= tag", sp.goName, sp.goType)
		}
		return derived, nullable, nil
	}
	declared, err := dtype.Parse(sp.dtypeLit)
	if err != nil {
		return dtype.DataType{}, false, schemaerr.WrapInitf(err, "field %q: invalid dtype", sp.goName)
	}
	if known && !compatibleDType(derived, declared) {
		return dtype.DataType{}, false, schemaerr.NewInit(
			"field %q: dtype %s conflicts with Go type %s", sp.goName, sp.dtypeLit, sp.goType)
	}
	return declared, nullable, nil
}

// dtypeForGoType maps a Go field type onto the dtype vocabulary. Pointer
// fields mark the column nullable. The empty interface stays the wildcard
// type, and unrepresentable types report !known so the caller can demand an
// explicit tag.
func dtypeForGoType(t reflect.Type) (dt dtype.DataType, nullable, known bool) {
	switch t {
	case timeType:
		return dtype.Timestamp, false, true
	case decimalType, decimalPtrType:
		return dtype.DataType{Kind: dtype.KindDecimal}, false, true
	case bytesType:
		return dtype.Bytes, false, true
	}
	switch t.Kind() {
	case reflect.Pointer:
		dt, _, known = dtypeForGoType(t.Elem())
		return dt, true, known
	case reflect.Bool:
		return dtype.Bool, false, true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return dtype.Int64, false, true
	case reflect.Float32, reflect.Float64:
		return dtype.Float64, false, true
	case reflect.String:
		return dtype.String, false, true
	case reflect.Interface:
		if t.NumMethod() == 0 {
			return dtype.DataType{}, false, true
		}
	}
	return dtype.DataType{}, false, false
}

func compatibleDType(derived, declared dtype.DataType) bool {
	if derived.IsAny() {
		return true
	}
	if derived.Kind == dtype.KindTimestamp && declared.Kind == dtype.KindDate {
		// time.Time fields hold either.
		return true
	}
	return derived.Kind == declared.Kind
}
