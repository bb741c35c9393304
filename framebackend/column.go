package framebackend

import (
	"context"
	"fmt"

	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/frame"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

// columnBackend applies a single schema.Column declaration to frames,
// outside of any table schema.
type columnBackend struct{}

var _ backend.Backend = columnBackend{}

func (columnBackend) Validate(ctx context.Context, component, container any, opts backend.Options) (any, error) {
	decl := component.(schema.Column)
	f := container.(*frame.Frame)
	if decl.DropInvalidRows && !opts.Lazy {
		return nil, schemaerr.NewInit("drop_invalid_rows requires lazy validation")
	}
	r := newRun(ctx, nil, decl.Name, f, opts)
	out, err := r.validateColumn(decl)
	observeRun(f.NumRows(), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (columnBackend) CoerceDType(ctx context.Context, component, container any) (any, error) {
	decl := component.(schema.Column)
	f := container.(*frame.Frame)
	r := newRun(ctx, nil, decl.Name, f, backend.Options{Lazy: true})
	spec := standaloneFieldSpec(decl)
	if !spec.dt.IsAny() {
		for _, inst := range resolveOne(decl, r.data) {
			if _, err := r.coerceField(fieldRef{pos: inst.pos}, spec); err != nil {
				return nil, err
			}
		}
	}
	if err := r.coll.Finish(); err != nil {
		return nil, err
	}
	return r.data, nil
}

// validateColumn runs the per-field stages over every observed column the
// declaration resolves to.
func (r *run) validateColumn(decl schema.Column) (*frame.Frame, error) {
	instances := resolveOne(decl, r.data)
	if len(instances) == 0 && decl.Required() {
		msg := fmt.Sprintf("column %q not in table", decl.Name)
		if decl.Regex {
			msg = fmt.Sprintf("no column matches pattern %q", decl.Name)
		}
		if err := r.collect(&schemaerr.Error{
			Context:   schemaerr.ContextColumn,
			Column:    decl.Name,
			Reason:    schemaerr.ReasonMissingColumn,
			Stage:     schemaerr.StageSchema,
			ColumnOrd: -1,
			CheckOrd:  -1,
			Result: schemaerr.CheckResult{
				Check:        "column_in_table",
				CheckIndex:   -1,
				Reason:       schemaerr.ReasonMissingColumn,
				Message:      msg,
				FailureCases: []schemaerr.FailureCase{{Index: -1, Value: decl.Name}},
			},
		}); err != nil {
			return nil, err
		}
	}
	spec := standaloneFieldSpec(decl)
	for _, inst := range instances {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		ref := fieldRef{pos: inst.pos}
		s := spec
		s.label = inst.label
		if err := r.fillDefault(ref, s); err != nil {
			return nil, err
		}
		if !s.dt.IsAny() {
			if s.coerce {
				ok, err := r.coerceField(ref, s)
				if err != nil {
					return nil, err
				}
				if !ok {
					continue
				}
			} else if err := r.typecheckField(ref, s); err != nil {
				return nil, err
			}
		}
		if err := r.checkNullable(ref, s); err != nil {
			return nil, err
		}
		if err := r.runFieldChecks(ref, s); err != nil {
			return nil, err
		}
		if err := r.checkFieldUnique(ref, s); err != nil {
			return nil, err
		}
	}
	return r.finish()
}

// resolveOne matches a standalone declaration against the container labels.
func resolveOne(decl schema.Column, f *frame.Frame) []resolvedColumn {
	var instances []resolvedColumn
	if decl.Regex {
		re := decl.Pattern()
		for pos, label := range f.Labels() {
			if re.MatchString(label) {
				instances = append(instances, resolvedColumn{decl: decl, label: label, pos: pos})
			}
		}
		return instances
	}
	for pos, label := range f.Labels() {
		if label == decl.Name {
			instances = append(instances, resolvedColumn{decl: decl, label: label, pos: pos})
		}
	}
	return instances
}

// standaloneFieldSpec derives the stage knobs for a column validated on its
// own; with no enclosing table, only the declaration's own flags apply.
func standaloneFieldSpec(decl schema.Column) fieldSpec {
	return fieldSpec{
		label:            decl.Name,
		dt:               decl.DType,
		coerce:           decl.Coerce || decl.DType.AutoCoerce,
		nullable:         decl.Nullable,
		unique:           decl.Unique,
		reportDuplicates: decl.ReportDuplicates,
		checks:           decl.Checks,
		def:              decl.Default,
		dropInvalid:      decl.DropInvalidRows,
		context:          schemaerr.ContextColumn,
		columnOrd:        0,
	}
}
