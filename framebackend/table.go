package framebackend

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/frame"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

// tableBackend applies *schema.Table declarations to frames.
type tableBackend struct{}

var _ backend.Backend = tableBackend{}

func (tableBackend) Validate(ctx context.Context, component, container any, opts backend.Options) (any, error) {
	sch := component.(*schema.Table)
	f := container.(*frame.Frame)
	r := newRun(ctx, sch, sch.Name(), f, opts)
	out, err := r.validateTable()
	observeRun(f.NumRows(), err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (tableBackend) CoerceDType(ctx context.Context, component, container any) (any, error) {
	sch := component.(*schema.Table)
	f := container.(*frame.Frame)
	r := newRun(ctx, sch, sch.Name(), f, backend.Options{Lazy: true})
	instances, _, _ := resolveColumns(sch, r.data)
	for _, inst := range instances {
		spec := r.tableFieldSpec(inst)
		if spec.dt.IsAny() {
			continue
		}
		if _, err := r.coerceField(fieldRef{pos: inst.pos}, spec); err != nil {
			return nil, err
		}
	}
	if isch := sch.Index(); isch != nil && r.data.Index() != nil {
		for _, rl := range resolveIndexLevels(isch, r.data.Index()) {
			if rl.levelPos < 0 || rl.decl.DType.IsAny() {
				continue
			}
			spec := r.indexFieldSpec(rl, sch.Coerce(), false)
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

// validateTable runs the full pipeline: structural alignment, coercion,
// index schema, per-column checks, table-level checks, uniqueness, and
// aggregation.
func (r *run) validateTable() (*frame.Frame, error) {
	if err := r.checkLabelsUnique(); err != nil {
		return nil, err
	}
	instances, err := r.alignColumns()
	if err != nil {
		return nil, err
	}
	fatal, err := r.conformColumns(instances)
	if err != nil {
		return nil, err
	}
	if isch := r.schema.Index(); isch != nil {
		if err := r.validateIndexSchema(isch, r.schema.Coerce(), r.schema.DropInvalidRows()); err != nil {
			return nil, err
		}
	}
	if err := r.runColumnStages(instances, fatal); err != nil {
		return nil, err
	}
	if err := r.runTableChecks(); err != nil {
		return nil, err
	}
	if err := r.runUniquenessChecks(instances, fatal); err != nil {
		return nil, err
	}
	return r.finish()
}

// resolvedColumn binds one column declaration to one observed column.
type resolvedColumn struct {
	decl    schema.Column
	declOrd int
	label   string
	pos     int
}

// resolveColumns maps declarations onto observed labels: literal names
// claim every matching label first, then regex declarations claim whatever
// still matches, in container order. The returned missing list holds the
// declaration positions that matched nothing.
func resolveColumns(sch *schema.Table, f *frame.Frame) (instances []resolvedColumn, missing []int, claimed []bool) {
	labels := f.Labels()
	claimed = make([]bool, len(labels))
	cols := sch.Columns()
	for ord, decl := range cols {
		if decl.Regex {
			continue
		}
		found := false
		for pos, label := range labels {
			if claimed[pos] || label != decl.Name {
				continue
			}
			claimed[pos] = true
			found = true
			instances = append(instances, resolvedColumn{decl: decl, declOrd: ord, label: label, pos: pos})
		}
		if !found {
			missing = append(missing, ord)
		}
	}
	for ord, decl := range cols {
		if !decl.Regex {
			continue
		}
		re := decl.Pattern()
		found := false
		for pos, label := range labels {
			if claimed[pos] || !re.MatchString(label) {
				continue
			}
			claimed[pos] = true
			found = true
			instances = append(instances, resolvedColumn{decl: decl, declOrd: ord, label: label, pos: pos})
		}
		if !found {
			missing = append(missing, ord)
		}
	}
	sort.Ints(missing)
	return instances, missing, claimed
}

func (r *run) tableFieldSpec(rc resolvedColumn) fieldSpec {
	return fieldSpec{
		label:            rc.label,
		dt:               r.schema.EffectiveDType(rc.decl),
		coerce:           r.schema.EffectiveCoerce(rc.decl),
		nullable:         rc.decl.Nullable,
		unique:           rc.decl.Unique,
		reportDuplicates: rc.decl.ReportDuplicates,
		checks:           rc.decl.Checks,
		def:              rc.decl.Default,
		dropInvalid:      rc.decl.DropInvalidRows || r.schema.DropInvalidRows(),
		context:          schemaerr.ContextColumn,
		columnOrd:        rc.declOrd,
	}
}

// checkLabelsUnique rejects containers with duplicated column labels when
// the schema demands unique names.
func (r *run) checkLabelsUnique() error {
	if !r.schema.UniqueColumnNames() {
		return nil
	}
	seen := map[string]bool{}
	var dups []schemaerr.FailureCase
	for _, label := range r.data.Labels() {
		if seen[label] {
			dups = append(dups, schemaerr.FailureCase{Index: -1, Value: label})
		}
		seen[label] = true
	}
	if len(dups) == 0 {
		return nil
	}
	return r.collect(&schemaerr.Error{
		Context:   schemaerr.ContextTable,
		Reason:    schemaerr.ReasonDuplicateColumnLabels,
		Stage:     schemaerr.StageSchema,
		ColumnOrd: -1,
		CheckOrd:  -1,
		Result: schemaerr.CheckResult{
			Check:        "column_labels_unique",
			CheckIndex:   -1,
			Reason:       schemaerr.ReasonDuplicateColumnLabels,
			Message:      "table column labels are not unique",
			FailureCases: dups,
		},
	})
}

// alignColumns resolves declarations against the observed labels and
// applies the structural options: missing columns, add_missing_columns,
// strictness, and ordering. The container is re-resolved after every
// structural mutation so the returned instances carry final positions.
func (r *run) alignColumns() ([]resolvedColumn, error) {
	sch := r.schema
	cols := sch.Columns()
	instances, missing, claimed := resolveColumns(sch, r.data)

	added := false
	for _, ord := range missing {
		decl := cols[ord]
		if sch.AddMissingColumns() && !decl.Regex {
			if err := r.insertMissingColumn(ord, decl); err != nil {
				return nil, err
			}
			added = true
			continue
		}
		if !decl.Required() {
			continue
		}
		msg := fmt.Sprintf("column %q not in table", decl.Name)
		if decl.Regex {
			msg = fmt.Sprintf("no column matches pattern %q", decl.Name)
		}
		e := &schemaerr.Error{
			Context:   schemaerr.ContextTable,
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
		}
		if err := r.collect(e); err != nil {
			return nil, err
		}
	}
	if added {
		instances, _, claimed = resolveColumns(sch, r.data)
	}

	switch sch.Strict() {
	case schema.EnforceStrict:
		for pos, label := range r.data.Labels() {
			if claimed[pos] {
				continue
			}
			e := &schemaerr.Error{
				Context:   schemaerr.ContextTable,
				Column:    label,
				Reason:    schemaerr.ReasonExtraColumn,
				Stage:     schemaerr.StageSchema,
				ColumnOrd: -1,
				CheckOrd:  -1,
				Result: schemaerr.CheckResult{
					Check:        "column_in_schema",
					CheckIndex:   -1,
					Reason:       schemaerr.ReasonExtraColumn,
					Message:      fmt.Sprintf("column %q not declared in schema", label),
					FailureCases: []schemaerr.FailureCase{{Index: -1, Value: label}},
				},
			}
			if err := r.collect(e); err != nil {
				return nil, err
			}
		}
	case schema.Filter:
		keep := make([]int, 0, len(claimed))
		for pos, c := range claimed {
			if c {
				keep = append(keep, pos)
			}
		}
		if len(keep) != r.data.NumColumns() {
			r.ensureOwned()
			r.data.RetainColumns(keep)
			instances, _, _ = resolveColumns(sch, r.data)
		}
	}

	if err := r.checkOrdered(instances); err != nil {
		return nil, err
	}
	return instances, nil
}

// insertMissingColumn adds a declared-but-absent column filled with its
// default, or nulls for nullable declarations, at its declared position.
// Declarations with neither cannot be materialized and fail instead.
func (r *run) insertMissingColumn(ord int, decl schema.Column) error {
	dt := r.schema.EffectiveDType(decl)
	if decl.Default == nil && !decl.Nullable {
		return r.collect(&schemaerr.Error{
			Context:   schemaerr.ContextTable,
			Column:    decl.Name,
			Reason:    schemaerr.ReasonMissingDefault,
			Stage:     schemaerr.StageSchema,
			ColumnOrd: -1,
			CheckOrd:  -1,
			Result: schemaerr.CheckResult{
				Check:        "add_missing_columns",
				CheckIndex:   -1,
				Reason:       schemaerr.ReasonMissingDefault,
				Message:      fmt.Sprintf("column %q cannot be added without a default", decl.Name),
				FailureCases: []schemaerr.FailureCase{{Index: -1, Value: decl.Name}},
			},
		})
	}
	var fill any
	if decl.Default != nil {
		fill = decl.Default
		if !dt.IsAny() {
			cv, err := dt.Coerce(decl.Default)
			if err != nil {
				return r.collect(&schemaerr.Error{
					Context:   schemaerr.ContextTable,
					Column:    decl.Name,
					Reason:    schemaerr.ReasonCoercionError,
					Stage:     schemaerr.StageSchema,
					ColumnOrd: -1,
					CheckOrd:  -1,
					Result: schemaerr.CheckResult{
						Check:        "add_missing_columns",
						CheckIndex:   -1,
						Reason:       schemaerr.ReasonCoercionError,
						Message:      err.Error(),
						FailureCases: []schemaerr.FailureCase{{Index: -1, Value: decl.Default}},
					},
				})
			}
			fill = cv
		}
	}
	n := r.data.NumRows()
	vals := make([]any, n)
	if fill != nil {
		for i := range vals {
			vals[i] = fill
		}
	}
	r.ensureOwned()
	pos := ord
	if pos > r.data.NumColumns() {
		pos = r.data.NumColumns()
	}
	return r.data.InsertColumnAt(pos, frame.NewColumn(decl.Name, dt, vals))
}

// checkOrdered verifies the resolved columns appear in declaration order.
func (r *run) checkOrdered(instances []resolvedColumn) error {
	if !r.schema.Ordered() {
		return nil
	}
	byPos := make([]resolvedColumn, len(instances))
	copy(byPos, instances)
	sort.Slice(byPos, func(i, j int) bool { return byPos[i].pos < byPos[j].pos })
	maxOrd := -1
	for _, inst := range byPos {
		if inst.declOrd < maxOrd {
			e := &schemaerr.Error{
				Context:   schemaerr.ContextTable,
				Column:    inst.label,
				Reason:    schemaerr.ReasonWrongColumnOrder,
				Stage:     schemaerr.StageSchema,
				ColumnOrd: -1,
				CheckOrd:  -1,
				Result: schemaerr.CheckResult{
					Check:        "column_ordered",
					CheckIndex:   -1,
					Reason:       schemaerr.ReasonWrongColumnOrder,
					Message:      fmt.Sprintf("column %q out of order", inst.label),
					FailureCases: []schemaerr.FailureCase{{Index: -1, Value: inst.label}},
				},
			}
			if err := r.collect(e); err != nil {
				return err
			}
			continue
		}
		maxOrd = inst.declOrd
	}
	return nil
}

// conformColumns runs the dtype stage over every resolved column: default
// fill, then coercion or a native type check. Columns whose coercion failed
// are excluded from the later stages.
func (r *run) conformColumns(instances []resolvedColumn) (map[int]bool, error) {
	fatal := map[int]bool{}
	for i, inst := range instances {
		if err := r.ctx.Err(); err != nil {
			return nil, err
		}
		spec := r.tableFieldSpec(inst)
		ref := fieldRef{pos: inst.pos}
		if err := r.fillDefault(ref, spec); err != nil {
			return nil, err
		}
		if spec.dt.IsAny() {
			continue
		}
		if spec.coerce {
			ok, err := r.coerceField(ref, spec)
			if err != nil {
				return nil, err
			}
			if !ok {
				fatal[i] = true
			}
		} else if err := r.typecheckField(ref, spec); err != nil {
			return nil, err
		}
	}
	return fatal, nil
}

// runColumnStages applies nullability and the declared checks per column,
// in declaration order.
func (r *run) runColumnStages(instances []resolvedColumn, fatal map[int]bool) error {
	for i, inst := range instances {
		if fatal[i] {
			continue
		}
		if err := r.ctx.Err(); err != nil {
			return err
		}
		spec := r.tableFieldSpec(inst)
		ref := fieldRef{pos: inst.pos}
		if err := r.checkNullable(ref, spec); err != nil {
			return err
		}
		if err := r.runFieldChecks(ref, spec); err != nil {
			return err
		}
	}
	return nil
}

// runTableChecks runs the table-level checks: custom table predicates see
// the windowed frame; columnar checks broadcast over every container
// column.
func (r *run) runTableChecks() error {
	for ord, ck := range r.schema.Checks() {
		if err := r.ctx.Err(); err != nil {
			return err
		}
		var err error
		if ck.IsTableLevel() {
			err = r.runTableCheck(ord, ck)
		} else {
			err = r.broadcastCheck(ord, ck)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *run) runTableCheck(ord int, ck check.Check) error {
	rows := r.rows()
	view := r.data
	if r.window != nil {
		view = r.data.SelectRows(r.window)
	}
	out := schemaerr.CheckResult{
		Passed:     true,
		Check:      ck.Describe(),
		CheckIndex: ord,
		Reason:     schemaerr.ReasonCheckError,
	}
	var res check.Result
	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				out.Passed = false
				out.Panic = p
			}
		}()
		res, err = ck.RunTable(view)
	}()
	if out.Panic == nil {
		switch {
		case err != nil:
			out.Passed = false
			out.Message = err.Error()
		case res.Passed:
			return nil
		default:
			out.Passed = false
			out.Message = ck.ErrorMessage()
			if out.Message == "" {
				out.Message = res.Msg
			}
			if res.Mask != nil {
				out.Mask = res.Mask
				max := ck.MaxFailureCases()
				for i := 0; i < len(res.Mask) && i < len(rows); i++ {
					if res.Mask[i] {
						continue
					}
					row := rows[i]
					out.FailedPositions = append(out.FailedPositions, row)
					if max == 0 || len(out.FailureCases) < max {
						out.FailureCases = append(out.FailureCases, schemaerr.FailureCase{Index: row, Value: r.renderRow(row)})
					}
				}
			}
		}
	}
	return r.collectOrDrop(r.schema.DropInvalidRows(), &schemaerr.Error{
		Context:   schemaerr.ContextTable,
		Reason:    schemaerr.ReasonCheckError,
		Stage:     schemaerr.StageTableChecks,
		ColumnOrd: -1,
		CheckOrd:  ord,
		Result:    out,
	})
}

// broadcastCheck applies a columnar check attached at table level to every
// container column, skipping the columns the check groups by.
func (r *run) broadcastCheck(ord int, ck check.Check) error {
	skip := map[string]bool{}
	for _, name := range ck.Groupby() {
		skip[name] = true
	}
	groups := []rowGroup{{rows: r.rows()}}
	if len(ck.Groupby()) > 0 {
		var err error
		groups, err = r.groupRows(ck.Groupby(), r.rows())
		if err != nil {
			return r.collect(&schemaerr.Error{
				Context:   schemaerr.ContextTable,
				Reason:    schemaerr.ReasonCheckError,
				Stage:     schemaerr.StageTableChecks,
				ColumnOrd: -1,
				CheckOrd:  ord,
				Result: schemaerr.CheckResult{
					Check:      ck.Describe(),
					CheckIndex: ord,
					Reason:     schemaerr.ReasonCheckError,
					Message:    err.Error(),
				},
			})
		}
	}
	for pos := 0; pos < r.data.NumColumns(); pos++ {
		col := r.data.ColAt(pos)
		if skip[col.Name()] {
			continue
		}
		for _, g := range groups {
			res := applyColumnCheck(ck, col, g.rows)
			if res.Passed {
				continue
			}
			res.CheckIndex = ord
			if g.key != "" {
				if res.Message != "" {
					res.Message = fmt.Sprintf("group %s: %s", g.key, res.Message)
				} else {
					res.Message = fmt.Sprintf("group %s", g.key)
				}
			}
			e := &schemaerr.Error{
				Context:   schemaerr.ContextTable,
				Column:    col.Name(),
				Reason:    res.Reason,
				Stage:     schemaerr.StageTableChecks,
				ColumnOrd: -1,
				CheckOrd:  ord,
				Result:    res,
			}
			if err := r.collectOrDrop(r.schema.DropInvalidRows(), e); err != nil {
				return err
			}
		}
	}
	return nil
}

// renderRow renders one row for table-level failure cases, in container
// column order.
func (r *run) renderRow(row int) string {
	parts := make([]string, r.data.NumColumns())
	for i := range parts {
		col := r.data.ColAt(i)
		parts[i] = fmt.Sprintf("%s=%s", col.Name(), dtype.Format(col.Value(row)))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// runUniquenessChecks applies per-column uniqueness and the jointly-unique
// column sets.
func (r *run) runUniquenessChecks(instances []resolvedColumn, fatal map[int]bool) error {
	for i, inst := range instances {
		if fatal[i] {
			continue
		}
		if err := r.checkFieldUnique(fieldRef{pos: inst.pos}, r.tableFieldSpec(inst)); err != nil {
			return err
		}
	}
	for ord, set := range r.schema.UniqueSets() {
		if err := r.checkJointUnique(ord, set); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) checkJointUnique(ord int, set []string) error {
	cols := make([]*frame.Column, 0, len(set))
	for _, name := range set {
		col, ok := r.data.Col(name)
		if !ok {
			// Absent columns were already reported; the set cannot run.
			return nil
		}
		cols = append(cols, col)
	}
	flagged := flagDuplicates(r.rows(), func(row int) string {
		parts := make([]string, len(cols))
		for i, col := range cols {
			parts[i] = dtype.GroupKey(col.Value(row))
		}
		return strings.Join(parts, "\x1f")
	}, r.schema.ReportDuplicates())
	if len(flagged) == 0 {
		return nil
	}
	cases := make([]schemaerr.FailureCase, len(flagged))
	for i, row := range flagged {
		cases[i] = schemaerr.FailureCase{Index: row, Value: renderTuple(cols, row)}
	}
	return r.collectOrDrop(r.schema.DropInvalidRows(), &schemaerr.Error{
		Context:   schemaerr.ContextTable,
		Column:    strings.Join(set, ", "),
		Reason:    schemaerr.ReasonDuplicates,
		Stage:     schemaerr.StageUniqueness,
		ColumnOrd: -1,
		CheckOrd:  ord,
		Result: schemaerr.CheckResult{
			Check:           "multiple_fields_uniqueness",
			CheckIndex:      -1,
			Reason:          schemaerr.ReasonDuplicates,
			Message:         fmt.Sprintf("columns %s are not jointly unique", strings.Join(set, ", ")),
			FailureCases:    cases,
			FailedPositions: flagged,
		},
	})
}

func renderTuple(cols []*frame.Column, row int) string {
	if len(cols) == 1 {
		return dtype.Format(cols[0].Value(row))
	}
	parts := make([]string, len(cols))
	for i, col := range cols {
		parts[i] = dtype.Format(col.Value(row))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
