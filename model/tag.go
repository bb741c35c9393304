package model

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

const tagKey = "tablevet"

type fieldSpec struct {
	goName string
	goType reflect.Type
	depth  int

	name             string
	dtypeLit         string
	checks           []checkSpec
	nullable         bool
	unique           bool
	coerce           bool
	regex            bool
	index            bool
	optional         bool
	hasRequired      bool
	reportDuplicates schema.DuplicateMode
	defaultVal       any
	hasDefault       bool
	dropInvalidRows  bool
	title            string
	description      string
}

type checkSpec struct {
	name string
	args []any
}

// columnOnlyOption names the first option set on this spec that has no
// meaning on an index level.
func (sp fieldSpec) columnOnlyOption() string {
	switch {
	case sp.regex:
		return "regex"
	case sp.hasRequired:
		return "required"
	case sp.hasDefault:
		return "default"
	case sp.dropInvalidRows:
		return "drop_invalid_rows"
	}
	return ""
}

// parseFieldTag reads one field's tag. The first item names the column when
// it carries no "="; every later item is a flag or key=value option.
func parseFieldTag(goName string, goType reflect.Type, tag string) (fieldSpec, error) {
	sp := fieldSpec{goName: goName, goType: goType, name: goName}
	if tag == "" {
		return sp, nil
	}
	items := strings.Split(tag, ",")
	start := 0
	if !strings.Contains(items[0], "=") {
		if n := strings.TrimSpace(items[0]); n != "" {
			sp.name = n
		}
		start = 1
	}
	for _, item := range items[start:] {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, val, hasVal := strings.Cut(item, "=")
		switch key {
		case "nullable", "unique", "coerce", "regex", "index", "drop_invalid_rows":
			if hasVal {
				return fieldSpec{}, schemaerr.NewInit("field %q: option %q takes no value", goName, key)
			}
			switch key {
			case "nullable":
				sp.nullable = true
			case "unique":
				sp.unique = true
			case "coerce":
				sp.coerce = true
			case "regex":
				sp.regex = true
			case "index":
				sp.index = true
			case "drop_invalid_rows":
				sp.dropInvalidRows = true
			}
		case "dtype":
			if !hasVal || val == "" {
				return fieldSpec{}, schemaerr.NewInit("field %q: dtype needs a value", goName)
			}
			sp.dtypeLit = val
		case "required":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return fieldSpec{}, schemaerr.NewInit("field %q: required must be true or false, got %q", goName, val)
			}
			sp.optional = !b
			sp.hasRequired = true
		case "check":
			cs, err := parseCheckSpec(val)
			if err != nil {
				return fieldSpec{}, schemaerr.WrapInitf(err, "field %q", goName)
			}
			sp.checks = append(sp.checks, cs)
		case "report_duplicates":
			m, err := schema.ParseDuplicateMode(val)
			if err != nil {
				return fieldSpec{}, schemaerr.WrapInitf(err, "field %q", goName)
			}
			sp.reportDuplicates = m
		case "default":
			sp.defaultVal = parseTagScalar(val)
			sp.hasDefault = true
		case "title":
			sp.title = val
		case "description":
			sp.description = val
		default:
			return fieldSpec{}, schemaerr.NewInit("field %q: unknown tag option %q", goName, key)
		}
	}
	return sp, nil
}

// parseConfigTag reads the embedded Config field's tag into table options.
func parseConfigTag(tag string) ([]schema.TableOpt, error) {
	if tag == "" {
		return nil, nil
	}
	var opts []schema.TableOpt
	for _, item := range strings.Split(tag, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key, val, hasVal := strings.Cut(item, "=")
		switch key {
		case "ordered", "coerce", "add_missing_columns", "drop_invalid_rows", "unique_column_names":
			if hasVal {
				return nil, schemaerr.NewInit("model config: option %q takes no value", key)
			}
			switch key {
			case "ordered":
				opts = append(opts, schema.WithOrdered(true))
			case "coerce":
				opts = append(opts, schema.WithCoerce(true))
			case "add_missing_columns":
				opts = append(opts, schema.WithAddMissingColumns(true))
			case "drop_invalid_rows":
				opts = append(opts, schema.WithDropInvalidRows(true))
			case "unique_column_names":
				opts = append(opts, schema.WithUniqueColumnNames(true))
			}
		case "strict":
			if !hasVal {
				opts = append(opts, schema.WithStrict(schema.EnforceStrict))
				continue
			}
			s, err := schema.ParseStrictness(val)
			if err != nil {
				return nil, schemaerr.WrapInit(err, "model config")
			}
			opts = append(opts, schema.WithStrict(s))
		case "report_duplicates":
			m, err := schema.ParseDuplicateMode(val)
			if err != nil {
				return nil, schemaerr.WrapInit(err, "model config")
			}
			opts = append(opts, schema.WithReportDuplicates(m))
		case "name":
			opts = append(opts, schema.WithName(val))
		case "title":
			opts = append(opts, schema.WithTitle(val))
		case "description":
			opts = append(opts, schema.WithDescription(val))
		default:
			return nil, schemaerr.NewInit("model config: unknown option %q", key)
		}
	}
	return opts, nil
}

// parseCheckSpec reads check=name(arg|arg|...). Arguments parse as int,
// float, or bool when they can, and stay strings otherwise.
func parseCheckSpec(val string) (checkSpec, error) {
	if val == "" {
		return checkSpec{}, schemaerr.NewInit("check needs a value")
	}
	open := strings.Index(val, "(")
	if open < 0 {
		return checkSpec{name: val}, nil
	}
	if !strings.HasSuffix(val, ")") || open == 0 {
		return checkSpec{}, schemaerr.NewInit("malformed check %q; expected name(arg|arg)", val)
	}
	cs := checkSpec{name: val[:open]}
	inner := strings.TrimSpace(val[open+1 : len(val)-1])
	if inner == "" {
		return cs, nil
	}
	for _, tok := range strings.Split(inner, "|") {
		cs.args = append(cs.args, parseTagScalar(strings.TrimSpace(tok)))
	}
	return cs, nil
}

func parseTagScalar(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
