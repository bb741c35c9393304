package schemaio

import (
	"fmt"

	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

// Decode builds a table schema from its document form. Unknown dtypes,
// check names, and option values surface as schema definition errors naming
// the offending field.
func Decode(doc *Document) (*schema.Table, error) {
	if doc.SchemaType != "" && doc.SchemaType != DocSchemaType {
		return nil, schemaerr.NewInit("unsupported schema_type %q; expected %q", doc.SchemaType, DocSchemaType)
	}
	if doc.Version != "" && doc.Version != DocVersion {
		return nil, schemaerr.NewInit("unsupported schema document version %q; expected %q", doc.Version, DocVersion)
	}

	cols := make([]schema.Column, 0, len(doc.Columns))
	for _, cd := range doc.Columns {
		col, err := buildColumn(cd)
		if err != nil {
			return nil, err
		}
		cols = append(cols, col)
	}

	var opts []schema.TableOpt
	if doc.Name != "" {
		opts = append(opts, schema.WithName(doc.Name))
	}
	if doc.Title != "" {
		opts = append(opts, schema.WithTitle(doc.Title))
	}
	if doc.Description != "" {
		opts = append(opts, schema.WithDescription(doc.Description))
	}
	if len(doc.Checks) > 0 {
		checks, err := buildChecks(doc.Checks, "table checks")
		if err != nil {
			return nil, err
		}
		opts = append(opts, schema.WithChecks(checks...))
	}
	if doc.DType != "" {
		dt, err := dtype.Parse(doc.DType)
		if err != nil {
			return nil, schemaerr.WrapInit(err, "table dtype")
		}
		opts = append(opts, schema.WithDType(dt))
	}
	if doc.Coerce {
		opts = append(opts, schema.WithCoerce(true))
	}
	if doc.Strict.Value != schema.NotStrict {
		opts = append(opts, schema.WithStrict(doc.Strict.Value))
	}
	if doc.Ordered {
		opts = append(opts, schema.WithOrdered(true))
	}
	if len(doc.Unique) > 0 {
		opts = append(opts, schema.WithUniqueSets(doc.Unique...))
	}
	if doc.ReportDuplicates != "" {
		m, err := schema.ParseDuplicateMode(doc.ReportDuplicates)
		if err != nil {
			return nil, schemaerr.WrapInit(err, "report_duplicates")
		}
		opts = append(opts, schema.WithReportDuplicates(m))
	}
	if doc.UniqueColumnNames {
		opts = append(opts, schema.WithUniqueColumnNames(true))
	}
	if doc.AddMissingColumns {
		opts = append(opts, schema.WithAddMissingColumns(true))
	}
	if doc.DropInvalidRows {
		opts = append(opts, schema.WithDropInvalidRows(true))
	}
	if len(doc.Metadata) > 0 {
		opts = append(opts, schema.WithMetadata(doc.Metadata))
	}

	if len(doc.Index) > 0 {
		idx, err := buildIndex(doc)
		if err != nil {
			return nil, err
		}
		opts = append(opts, schema.WithIndex(idx))
	} else if doc.IndexName != "" || doc.IndexUnordered || doc.IndexCoerce || len(doc.IndexUnique) > 0 {
		return nil, schemaerr.NewInit("index options set without index levels")
	}

	return schema.NewTable(cols, opts...)
}

func buildColumn(cd ColumnDoc) (schema.Column, error) {
	where := fmt.Sprintf("column %q", cd.Name)
	col := schema.Column{
		Name:            cd.Name,
		Nullable:        cd.Nullable,
		Unique:          cd.Unique,
		Coerce:          cd.Coerce,
		Regex:           cd.Regex,
		Title:           cd.Title,
		Description:     cd.Description,
		Default:         normalizeScalar(cd.Default),
		Metadata:        cd.Metadata,
		DropInvalidRows: cd.DropInvalidRows,
	}
	if cd.DType != "" {
		dt, err := dtype.Parse(cd.DType)
		if err != nil {
			return schema.Column{}, schemaerr.WrapInitf(err, "%s: invalid dtype", where)
		}
		col.DType = dt
	}
	if cd.Required != nil {
		col.Optional = !*cd.Required
	}
	if cd.ReportDuplicates != "" {
		m, err := schema.ParseDuplicateMode(cd.ReportDuplicates)
		if err != nil {
			return schema.Column{}, schemaerr.WrapInitf(err, "%s", where)
		}
		col.ReportDuplicates = m
	}
	checks, err := buildChecks(cd.Checks, where)
	if err != nil {
		return schema.Column{}, err
	}
	col.Checks = checks
	return col, nil
}

func buildIndex(doc *Document) (schema.IndexSchema, error) {
	levels := make([]schema.Index, 0, len(doc.Index))
	for i, id := range doc.Index {
		lvl, err := buildIndexLevel(id, i)
		if err != nil {
			return nil, err
		}
		levels = append(levels, lvl)
	}
	multi := len(levels) > 1 ||
		doc.IndexName != "" || doc.IndexUnordered || doc.IndexCoerce || len(doc.IndexUnique) > 0
	if !multi {
		return levels[0], nil
	}
	return schema.MultiIndex{
		Indexes:   levels,
		Name:      doc.IndexName,
		Unordered: doc.IndexUnordered,
		Coerce:    doc.IndexCoerce,
		Unique:    doc.IndexUnique,
	}, nil
}

func buildIndexLevel(id IndexDoc, pos int) (schema.Index, error) {
	where := fmt.Sprintf("index level %d", pos)
	lvl := schema.Index{
		Name:        id.Name,
		Nullable:    id.Nullable,
		Unique:      id.Unique,
		Coerce:      id.Coerce,
		Title:       id.Title,
		Description: id.Description,
	}
	if id.DType != "" {
		dt, err := dtype.Parse(id.DType)
		if err != nil {
			return schema.Index{}, schemaerr.WrapInitf(err, "%s: invalid dtype", where)
		}
		lvl.DType = dt
	}
	if id.ReportDuplicates != "" {
		m, err := schema.ParseDuplicateMode(id.ReportDuplicates)
		if err != nil {
			return schema.Index{}, schemaerr.WrapInitf(err, "%s", where)
		}
		lvl.ReportDuplicates = m
	}
	checks, err := buildChecks(id.Checks, where)
	if err != nil {
		return schema.Index{}, err
	}
	lvl.Checks = checks
	return lvl, nil
}

func buildChecks(docs []CheckDoc, where string) ([]check.Check, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	checks := make([]check.Check, 0, len(docs))
	for _, cd := range docs {
		ck, err := buildCheck(cd)
		if err != nil {
			return nil, schemaerr.WrapInitf(err, "%s", where)
		}
		checks = append(checks, ck)
	}
	return checks, nil
}

func buildCheck(cd CheckDoc) (check.Check, error) {
	var opts []check.Option
	if cd.Error != "" {
		opts = append(opts, check.WithError(cd.Error))
	}
	if len(cd.Groupby) > 0 {
		opts = append(opts, check.WithGroupby(cd.Groupby...))
	}
	if cd.IgnoreNulls {
		opts = append(opts, check.WithIgnoreNulls(true))
	}
	if cd.MaxFailureCases > 0 {
		opts = append(opts, check.WithMaxFailureCases(cd.MaxFailureCases))
	}
	if cd.Title != "" {
		opts = append(opts, check.WithTitle(cd.Title))
	}
	if cd.Description != "" {
		opts = append(opts, check.WithDescription(cd.Description))
	}
	return check.FromArgs(cd.Name, cd.Args, opts...)
}

// normalizeScalar widens machine-width document values to the native
// representations the engines expect.
func normalizeScalar(v any) any {
	switch v := v.(type) {
	case int:
		return int64(v)
	case int32:
		return int64(v)
	case float32:
		return float64(v)
	}
	return v
}
