package schemaio

import (
	"fmt"
	"time"

	"github.com/cockroachdb/apd/v3"
	"github.com/cockroachdb/errors"

	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

// ErrCustomCheck reports a schema whose checks cannot be expressed in a
// document because they carry inline predicates.
var ErrCustomCheck = errors.New("cannot serialize custom check")

// Encode renders the schema in its document form.
func Encode(t *schema.Table) (*Document, error) {
	doc := &Document{
		SchemaType:        DocSchemaType,
		Version:           DocVersion,
		Name:              t.Name(),
		Title:             t.Title(),
		Description:       t.Description(),
		Strict:            Strict{Value: t.Strict()},
		Coerce:            t.Coerce(),
		Ordered:           t.Ordered(),
		Unique:            t.UniqueSets(),
		UniqueColumnNames: t.UniqueColumnNames(),
		AddMissingColumns: t.AddMissingColumns(),
		DropInvalidRows:   t.DropInvalidRows(),
		Metadata:          t.Metadata(),
	}
	if !t.DType().IsAny() {
		doc.DType = t.DType().String()
	}
	if t.ReportDuplicates() != schema.ReportAll {
		doc.ReportDuplicates = t.ReportDuplicates().String()
	}
	checks, err := encodeChecks(t.Checks(), "table checks")
	if err != nil {
		return nil, err
	}
	doc.Checks = checks
	for _, col := range t.Columns() {
		cd, err := encodeColumn(col)
		if err != nil {
			return nil, err
		}
		doc.Columns = append(doc.Columns, cd)
	}
	if t.Index() != nil {
		if err := encodeIndex(doc, t.Index()); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func encodeColumn(col schema.Column) (ColumnDoc, error) {
	cd := ColumnDoc{
		Name:            col.Name,
		Nullable:        col.Nullable,
		Unique:          col.Unique,
		Coerce:          col.Coerce,
		Regex:           col.Regex,
		Title:           col.Title,
		Description:     col.Description,
		Default:         encodeArg(col.Default),
		Metadata:        col.Metadata,
		DropInvalidRows: col.DropInvalidRows,
	}
	if !col.DType.IsAny() {
		cd.DType = col.DType.String()
	}
	if col.Optional {
		required := false
		cd.Required = &required
	}
	if col.ReportDuplicates != schema.ReportAll {
		cd.ReportDuplicates = col.ReportDuplicates.String()
	}
	checks, err := encodeChecks(col.Checks, fmt.Sprintf("column %q", col.Name))
	if err != nil {
		return ColumnDoc{}, err
	}
	cd.Checks = checks
	return cd, nil
}

func encodeIndex(doc *Document, idx schema.IndexSchema) error {
	for i, lvl := range idx.Levels() {
		id, err := encodeIndexLevel(lvl, i)
		if err != nil {
			return err
		}
		doc.Index = append(doc.Index, id)
	}
	if mi, ok := idx.(schema.MultiIndex); ok {
		doc.IndexName = mi.Name
		doc.IndexUnordered = mi.Unordered
		doc.IndexCoerce = mi.Coerce
		doc.IndexUnique = mi.Unique
	}
	return nil
}

func encodeIndexLevel(lvl schema.Index, pos int) (IndexDoc, error) {
	id := IndexDoc{
		Name:        lvl.Name,
		Nullable:    lvl.Nullable,
		Unique:      lvl.Unique,
		Coerce:      lvl.Coerce,
		Title:       lvl.Title,
		Description: lvl.Description,
	}
	if !lvl.DType.IsAny() {
		id.DType = lvl.DType.String()
	}
	if lvl.ReportDuplicates != schema.ReportAll {
		id.ReportDuplicates = lvl.ReportDuplicates.String()
	}
	where := fmt.Sprintf("index level %d", pos)
	if lvl.Name != "" {
		where = fmt.Sprintf("index level %q", lvl.Name)
	}
	checks, err := encodeChecks(lvl.Checks, where)
	if err != nil {
		return IndexDoc{}, err
	}
	id.Checks = checks
	return id, nil
}

func encodeChecks(checks []check.Check, where string) ([]CheckDoc, error) {
	if len(checks) == 0 {
		return nil, nil
	}
	docs := make([]CheckDoc, 0, len(checks))
	for _, ck := range checks {
		cd, err := encodeCheck(ck)
		if err != nil {
			return nil, schemaerr.WrapInitf(err, "%s", where)
		}
		docs = append(docs, cd)
	}
	return docs, nil
}

func encodeCheck(ck check.Check) (CheckDoc, error) {
	if ck.IsCustom() || !check.IsBuiltin(ck.Name()) {
		return CheckDoc{}, errors.Wrapf(ErrCustomCheck, "%q", ck.Name())
	}
	return CheckDoc{
		Name:            ck.Name(),
		Args:            encodeArgs(ck.Args()),
		Error:           ck.ErrorMessage(),
		Groupby:         ck.Groupby(),
		IgnoreNulls:     ck.IgnoreNulls(),
		MaxFailureCases: ck.MaxFailureCases(),
		Title:           ck.Title(),
		Description:     ck.Description(),
	}, nil
}

func encodeArgs(args []any) []any {
	if len(args) == 0 {
		return nil
	}
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = encodeArg(a)
	}
	return out
}

// encodeArg renders values with no document representation as text.
func encodeArg(v any) any {
	switch v := v.(type) {
	case *apd.Decimal:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	}
	return v
}
