package framebackend

import (
	"context"
	"fmt"
	"strings"

	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/frame"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

// indexBackend applies Index and MultiIndex declarations to frames.
type indexBackend struct{}

var _ backend.Backend = indexBackend{}

func (indexBackend) Validate(ctx context.Context, component, container any, opts backend.Options) (any, error) {
	isch := component.(schema.IndexSchema)
	f := container.(*frame.Frame)
	r := newRun(ctx, nil, indexSchemaName(isch), f, opts)
	out, err := r.runIndexOnly(isch)
	observeRun(f.NumRows(), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (indexBackend) CoerceDType(ctx context.Context, component, container any) (any, error) {
	isch := component.(schema.IndexSchema)
	f := container.(*frame.Frame)
	r := newRun(ctx, nil, indexSchemaName(isch), f, backend.Options{Lazy: true})
	if ix := r.data.Index(); ix != nil {
		for _, rl := range resolveIndexLevels(isch, ix) {
			if rl.levelPos < 0 || rl.decl.DType.IsAny() {
				continue
			}
			spec := r.indexFieldSpec(rl, false, false)
			if _, err := r.coerceField(fieldRef{pos: rl.levelPos, index: true}, spec); err != nil {
				return nil, err
			}
		}
	}
	if err := r.coll.Finish(); err != nil {
		return nil, err
	}
	return r.data, nil
}

func (r *run) runIndexOnly(isch schema.IndexSchema) (*frame.Frame, error) {
	if err := r.validateIndexSchema(isch, false, false); err != nil {
		return nil, err
	}
	return r.finish()
}

func indexSchemaName(isch schema.IndexSchema) string {
	switch s := isch.(type) {
	case schema.Index:
		return s.Name
	case schema.MultiIndex:
		return s.Name
	}
	return ""
}

// resolvedLevel binds one declared index level to an observed level.
type resolvedLevel struct {
	decl schema.Index
	// levelPos is the observed level position; -1 when the level is absent.
	levelPos int
	label    string
}

// resolveIndexLevels matches declared levels against the observed index:
// by position for ordered declarations, by name for unordered multiindexes.
// A named declaration whose positional counterpart carries a different name
// counts as absent.
func resolveIndexLevels(isch schema.IndexSchema, ix *frame.IndexData) []resolvedLevel {
	decls := isch.Levels()
	mi, isMulti := isch.(schema.MultiIndex)
	out := make([]resolvedLevel, len(decls))
	for i, decl := range decls {
		label := decl.Name
		if label == "" {
			if isMulti {
				label = fmt.Sprintf("level_%d", i)
			} else {
				label = "index"
			}
		}
		out[i] = resolvedLevel{decl: decl, levelPos: -1, label: label}
		if isMulti && mi.Unordered {
			for pos := 0; pos < ix.NumLevels(); pos++ {
				if ix.Level(pos).Name() == decl.Name {
					out[i].levelPos = pos
					break
				}
			}
			continue
		}
		if i < ix.NumLevels() {
			if decl.Name != "" && ix.Level(i).Name() != decl.Name {
				continue
			}
			out[i].levelPos = i
		}
	}
	return out
}

// indexFieldSpec derives the stage knobs for one index level. Index levels
// carry no default and report under the index stage.
func (r *run) indexFieldSpec(rl resolvedLevel, parentCoerce, dropInvalid bool) fieldSpec {
	decl := rl.decl
	return fieldSpec{
		label:            rl.label,
		dt:               decl.DType,
		coerce:           parentCoerce || decl.Coerce || decl.DType.AutoCoerce,
		nullable:         decl.Nullable,
		unique:           decl.Unique,
		reportDuplicates: decl.ReportDuplicates,
		checks:           decl.Checks,
		dropInvalid:      dropInvalid,
		context:          schemaerr.ContextIndex,
		columnOrd:        -1,
	}
}

// validateIndexSchema runs the declared index schema against the container
// index: presence, per-level dtype, nullability, checks, and uniqueness,
// then the multiindex joint-uniqueness sets.
func (r *run) validateIndexSchema(isch schema.IndexSchema, parentCoerce, dropInvalid bool) error {
	ix := r.data.Index()
	if ix == nil || ix.NumLevels() == 0 {
		return r.collect(&schemaerr.Error{
			Context:   schemaerr.ContextIndex,
			Column:    "index",
			Reason:    schemaerr.ReasonMissingIndex,
			Stage:     schemaerr.StageIndex,
			ColumnOrd: -1,
			CheckOrd:  -1,
			Result: schemaerr.CheckResult{
				Check:      "index_present",
				CheckIndex: -1,
				Reason:     schemaerr.ReasonMissingIndex,
				Message:    "table has no index",
			},
		})
	}
	if mi, ok := isch.(schema.MultiIndex); ok {
		parentCoerce = parentCoerce || mi.Coerce
	}
	for _, rl := range resolveIndexLevels(isch, ix) {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		if rl.levelPos < 0 {
			e := &schemaerr.Error{
				Context:   schemaerr.ContextIndex,
				Column:    rl.label,
				Reason:    schemaerr.ReasonMissingIndex,
				Stage:     schemaerr.StageIndex,
				ColumnOrd: -1,
				CheckOrd:  -1,
				Result: schemaerr.CheckResult{
					Check:        "index_level_present",
					CheckIndex:   -1,
					Reason:       schemaerr.ReasonMissingIndex,
					Message:      fmt.Sprintf("index level %q not in table", rl.label),
					FailureCases: []schemaerr.FailureCase{{Index: -1, Value: rl.label}},
				},
			}
			if err := r.collect(e); err != nil {
				return err
			}
			continue
		}
		spec := r.indexFieldSpec(rl, parentCoerce, dropInvalid)
		ref := fieldRef{pos: rl.levelPos, index: true}
		if !spec.dt.IsAny() {
			if spec.coerce {
				ok, err := r.coerceField(ref, spec)
				if err != nil {
					return err
				}
				if !ok {
					continue
				}
			} else if err := r.typecheckField(ref, spec); err != nil {
				return err
			}
		}
		if err := r.checkNullable(ref, spec); err != nil {
			return err
		}
		if err := r.runFieldChecks(ref, spec); err != nil {
			return err
		}
		if err := r.checkFieldUnique(ref, spec); err != nil {
			return err
		}
	}
	if mi, ok := isch.(schema.MultiIndex); ok && len(mi.Unique) > 0 {
		return r.checkIndexJointUnique(mi, dropInvalid)
	}
	return nil
}

// checkIndexJointUnique enforces the multiindex unique level set. Rereads
// the index from the working frame so coerced level values are seen.
func (r *run) checkIndexJointUnique(mi schema.MultiIndex, dropInvalid bool) error {
	ix := r.data.Index()
	cols := make([]*frame.Column, 0, len(mi.Unique))
	for _, name := range mi.Unique {
		var found *frame.Column
		for pos := 0; pos < ix.NumLevels(); pos++ {
			if ix.Level(pos).Name() == name {
				found = ix.Level(pos)
				break
			}
		}
		if found == nil {
			// Absent levels were already reported; the set cannot run.
			return nil
		}
		cols = append(cols, found)
	}
	flagged := flagDuplicates(r.rows(), func(row int) string {
		parts := make([]string, len(cols))
		for i, col := range cols {
			parts[i] = dtype.GroupKey(col.Value(row))
		}
		return strings.Join(parts, "\x1f")
	}, schema.ReportAll)
	if len(flagged) == 0 {
		return nil
	}
	cases := make([]schemaerr.FailureCase, len(flagged))
	for i, row := range flagged {
		cases[i] = schemaerr.FailureCase{Index: row, Value: renderTuple(cols, row)}
	}
	return r.collectOrDrop(dropInvalid, &schemaerr.Error{
		Context:   schemaerr.ContextIndex,
		Column:    strings.Join(mi.Unique, ", "),
		Reason:    schemaerr.ReasonDuplicates,
		Stage:     schemaerr.StageIndex,
		ColumnOrd: -1,
		CheckOrd:  -1,
		Result: schemaerr.CheckResult{
			Check:           "multiple_fields_uniqueness",
			CheckIndex:      -1,
			Reason:          schemaerr.ReasonDuplicates,
			Message:         fmt.Sprintf("index levels %s are not jointly unique", strings.Join(mi.Unique, ", ")),
			FailureCases:    cases,
			FailedPositions: flagged,
		},
	})
}
