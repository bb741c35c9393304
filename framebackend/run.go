package framebackend

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/frame"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
)

// run carries the state of one validation pass over a frame. The working
// frame starts as the input and is cloned on the first mutation unless the
// caller opted into in-place writes.
type run struct {
	ctx    context.Context
	schema *schema.Table
	input  *frame.Frame
	data   *frame.Frame
	opts   backend.Options
	coll   *schemaerr.Collector
	// window holds the validated row positions; nil means every row.
	window []int
	// drop accumulates row positions removed at aggregation time.
	drop  map[int]bool
	owned bool
}

func newRun(ctx context.Context, sch *schema.Table, name string, f *frame.Frame, opts backend.Options) *run {
	return &run{
		ctx:    ctx,
		schema: sch,
		input:  f,
		data:   f,
		opts:   opts,
		coll:   schemaerr.NewCollector(opts.Lazy, name),
		window: windowPositions(f.NumRows(), opts),
		drop:   map[int]bool{},
	}
}

// windowPositions computes the validated row window from the head, tail,
// and sample options, de-duplicated by position and ascending. Nil means no
// restriction.
func windowPositions(n int, opts backend.Options) []int {
	if opts.Head == 0 && opts.Tail == 0 && opts.Sample == 0 {
		return nil
	}
	take := make([]bool, n)
	head := opts.Head
	if head > n {
		head = n
	}
	for i := 0; i < head; i++ {
		take[i] = true
	}
	tail := opts.Tail
	if tail > n {
		tail = n
	}
	for i := n - tail; i < n; i++ {
		take[i] = true
	}
	if opts.Sample > 0 {
		k := opts.Sample
		if k > n {
			k = n
		}
		rng := rand.New(rand.NewSource(int64(opts.SampleSeed)))
		for _, p := range rng.Perm(n)[:k] {
			take[p] = true
		}
	}
	positions := make([]int, 0, n)
	for i, t := range take {
		if t {
			positions = append(positions, i)
		}
	}
	return positions
}

// rows returns the validated row positions, materializing the full range
// when no window is set.
func (r *run) rows() []int {
	if r.window != nil {
		return r.window
	}
	all := make([]int, r.data.NumRows())
	for i := range all {
		all[i] = i
	}
	return all
}

// ensureOwned makes the working frame safe to mutate.
func (r *run) ensureOwned() {
	if r.owned || r.opts.InPlace {
		return
	}
	r.data = r.data.Clone()
	r.owned = true
}

// collect registers a failure, stamping the offending container onto it.
func (r *run) collect(e *schemaerr.Error) error {
	e.Data = r.input
	return r.coll.Collect(e)
}

// collectOrDrop registers a failure, or converts its row positions into
// pending row drops when the component drops invalid rows.
func (r *run) collectOrDrop(drop bool, e *schemaerr.Error) error {
	if drop && len(e.Result.FailedPositions) > 0 {
		for _, p := range e.Result.FailedPositions {
			r.drop[p] = true
		}
		return nil
	}
	return r.collect(e)
}

// applyDrops removes the pending dropped rows, producing a fresh frame.
func (r *run) applyDrops() {
	if len(r.drop) == 0 {
		return
	}
	n := r.data.NumRows()
	keep := make([]int, 0, n-len(r.drop))
	for i := 0; i < n; i++ {
		if !r.drop[i] {
			keep = append(keep, i)
		}
	}
	r.data = r.data.SelectRows(keep)
}

// finish aggregates the run: row drops first, then the lazy report.
func (r *run) finish() (*frame.Frame, error) {
	r.applyDrops()
	if err := r.coll.Finish(); err != nil {
		return nil, err
	}
	return r.data, nil
}

// fieldRef locates one validated column: a frame column by position, or an
// index level. Refs stay valid across clone-on-write since positions are
// preserved.
type fieldRef struct {
	pos   int
	index bool
}

func (r *run) fieldCol(ref fieldRef) *frame.Column {
	if ref.index {
		return r.data.Index().Level(ref.pos)
	}
	return r.data.ColAt(ref.pos)
}

func (r *run) setFieldCol(ref fieldRef, col *frame.Column) {
	r.ensureOwned()
	if ref.index {
		r.data.Index().SetLevel(ref.pos, col)
	} else {
		r.data.ReplaceColumnAt(ref.pos, col)
	}
}

// fieldSpec is the union of the knobs a column or index level declares,
// resolved against one observed column.
type fieldSpec struct {
	label            string
	dt               dtype.DataType
	coerce           bool
	nullable         bool
	unique           bool
	reportDuplicates schema.DuplicateMode
	checks           []check.Check
	def              any
	dropInvalid      bool
	context          schemaerr.ContextKind
	columnOrd        int
}

// stage maps a pipeline stage onto the one index failures report under:
// index levels validate recursively inside the index stage.
func (spec fieldSpec) stage(def schemaerr.Stage) schemaerr.Stage {
	if spec.context == schemaerr.ContextIndex {
		return schemaerr.StageIndex
	}
	return def
}

// fillDefault replaces null cells with the declared default, coerced to the
// field's type when one is declared.
func (r *run) fillDefault(ref fieldRef, spec fieldSpec) error {
	if spec.def == nil {
		return nil
	}
	col := r.fieldCol(ref)
	hasNull := false
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			hasNull = true
			break
		}
	}
	if !hasNull {
		return nil
	}
	fill := spec.def
	if !spec.dt.IsAny() {
		cv, err := spec.dt.Coerce(spec.def)
		if err != nil {
			return r.collect(&schemaerr.Error{
				Context:   spec.context,
				Column:    spec.label,
				Reason:    schemaerr.ReasonCoercionError,
				Stage:     spec.stage(schemaerr.StageCoerce),
				ColumnOrd: spec.columnOrd,
				CheckOrd:  -1,
				Result: schemaerr.CheckResult{
					Check:        fmt.Sprintf("default(%v)", spec.def),
					CheckIndex:   -1,
					Reason:       schemaerr.ReasonCoercionError,
					Message:      err.Error(),
					FailureCases: []schemaerr.FailureCase{{Index: -1, Value: spec.def}},
				},
			})
		}
		fill = cv
	}
	r.ensureOwned()
	col = r.fieldCol(ref)
	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			col.Set(i, fill)
		}
	}
	return nil
}

// coerceField converts every cell of the column to the declared type,
// writing the typed column back. A cell that cannot convert fails the whole
// column: the remaining per-column stages are skipped unless failing rows
// are being dropped, in which case the convertible cells are kept and the
// offenders become nulls destined for removal.
func (r *run) coerceField(ref fieldRef, spec fieldSpec) (ok bool, err error) {
	col := r.fieldCol(ref)
	needs := false
	for i := 0; i < col.Len(); i++ {
		if v := col.Value(i); v != nil && !spec.dt.Check(v) {
			needs = true
			break
		}
	}
	if !needs {
		return true, nil
	}
	n := col.Len()
	newVals := make([]any, n)
	var cases []schemaerr.FailureCase
	var failed []int
	var firstErr error
	for i := 0; i < n; i++ {
		v := col.Value(i)
		if v == nil {
			continue
		}
		cv, cerr := spec.dt.Coerce(v)
		if cerr != nil {
			if firstErr == nil {
				firstErr = cerr
			}
			cases = append(cases, schemaerr.FailureCase{Index: i, Value: v})
			failed = append(failed, i)
			continue
		}
		newVals[i] = cv
	}
	if len(failed) > 0 {
		e := &schemaerr.Error{
			Context:   spec.context,
			Column:    spec.label,
			Reason:    schemaerr.ReasonCoercionError,
			Stage:     spec.stage(schemaerr.StageCoerce),
			ColumnOrd: spec.columnOrd,
			CheckOrd:  -1,
			Result: schemaerr.CheckResult{
				Check:           fmt.Sprintf("coerce_dtype(%s)", spec.dt),
				CheckIndex:      -1,
				Reason:          schemaerr.ReasonCoercionError,
				Message:         firstErr.Error(),
				FailureCases:    cases,
				FailedPositions: failed,
			},
		}
		if err := r.collectOrDrop(spec.dropInvalid, e); err != nil {
			return false, err
		}
		if !spec.dropInvalid {
			return false, nil
		}
	}
	r.setFieldCol(ref, frame.NewColumn(col.Name(), spec.dt, newVals))
	return true, nil
}

// typecheckField verifies every windowed cell already has the declared
// native type. Unlike a coercion failure this does not abort the column.
func (r *run) typecheckField(ref fieldRef, spec fieldSpec) error {
	col := r.fieldCol(ref)
	var cases []schemaerr.FailureCase
	var failed []int
	for _, row := range r.rows() {
		if v := col.Value(row); v != nil && !spec.dt.Check(v) {
			cases = append(cases, schemaerr.FailureCase{Index: row, Value: v})
			failed = append(failed, row)
		}
	}
	if len(cases) == 0 {
		return nil
	}
	return r.collectOrDrop(spec.dropInvalid, &schemaerr.Error{
		Context:   spec.context,
		Column:    spec.label,
		Reason:    schemaerr.ReasonWrongDType,
		Stage:     spec.stage(schemaerr.StageCoerce),
		ColumnOrd: spec.columnOrd,
		CheckOrd:  -1,
		Result: schemaerr.CheckResult{
			Check:           fmt.Sprintf("dtype(%s)", spec.dt),
			CheckIndex:      -1,
			Reason:          schemaerr.ReasonWrongDType,
			Message:         fmt.Sprintf("expected %s", spec.dt),
			FailureCases:    cases,
			FailedPositions: failed,
		},
	})
}

// checkNullable reports null cells in non-nullable fields.
func (r *run) checkNullable(ref fieldRef, spec fieldSpec) error {
	if spec.nullable {
		return nil
	}
	col := r.fieldCol(ref)
	var cases []schemaerr.FailureCase
	var failed []int
	for _, row := range r.rows() {
		if col.IsNull(row) {
			cases = append(cases, schemaerr.FailureCase{Index: row, Value: nil})
			failed = append(failed, row)
		}
	}
	if len(cases) == 0 {
		return nil
	}
	return r.collectOrDrop(spec.dropInvalid, &schemaerr.Error{
		Context:   spec.context,
		Column:    spec.label,
		Reason:    schemaerr.ReasonNullableViolation,
		Stage:     spec.stage(schemaerr.StageColumnChecks),
		ColumnOrd: spec.columnOrd,
		CheckOrd:  -1,
		Result: schemaerr.CheckResult{
			Check:           "not_nullable",
			CheckIndex:      -1,
			Reason:          schemaerr.ReasonNullableViolation,
			Message:         "non-nullable column contains null values",
			FailureCases:    cases,
			FailedPositions: failed,
		},
	})
}

// runFieldChecks applies the declared checks in order.
func (r *run) runFieldChecks(ref fieldRef, spec fieldSpec) error {
	for ord, ck := range spec.checks {
		if err := r.runColumnCheck(ref, spec, ord, ck); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) runColumnCheck(ref fieldRef, spec fieldSpec, ord int, ck check.Check) error {
	col := r.fieldCol(ref)
	groups := []rowGroup{{rows: r.rows()}}
	if len(ck.Groupby()) > 0 {
		var err error
		groups, err = r.groupRows(ck.Groupby(), r.rows())
		if err != nil {
			return r.collect(&schemaerr.Error{
				Context:   spec.context,
				Column:    spec.label,
				Reason:    schemaerr.ReasonCheckError,
				Stage:     spec.stage(schemaerr.StageColumnChecks),
				ColumnOrd: spec.columnOrd,
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
			Context:   spec.context,
			Column:    spec.label,
			Reason:    res.Reason,
			Stage:     spec.stage(schemaerr.StageColumnChecks),
			ColumnOrd: spec.columnOrd,
			CheckOrd:  ord,
			Result:    res,
		}
		if err := r.collectOrDrop(spec.dropInvalid, e); err != nil {
			return err
		}
	}
	return nil
}

// applyColumnCheck runs one check over the given rows of a column,
// converting the predicate outcome, a returned error, or a panic into one
// CheckResult. Rows with null cells are excluded first unless the check
// opted into seeing them.
func applyColumnCheck(ck check.Check, col *frame.Column, rows []int) schemaerr.CheckResult {
	out := schemaerr.CheckResult{
		Passed:     true,
		Check:      ck.Describe(),
		CheckIndex: -1,
		Reason:     schemaerr.ReasonCheckError,
	}
	if ck.IgnoreNulls() {
		kept := make([]int, 0, len(rows))
		for _, row := range rows {
			if !col.IsNull(row) {
				kept = append(kept, row)
			}
		}
		rows = kept
	}
	view := col.View(rows)
	var res check.Result
	var err error
	func() {
		defer func() {
			if p := recover(); p != nil {
				out.Passed = false
				out.Panic = p
			}
		}()
		if ck.IsCustom() {
			res, err = ck.RunColumn(view)
		} else {
			var impl check.Impl
			impl, err = check.ResolveImpl(ck.Name(), columnViewType)
			if err == nil {
				res, err = impl(view, ck.Args())
			}
		}
	}()
	if out.Panic != nil {
		return out
	}
	if err != nil {
		out.Passed = false
		out.Message = err.Error()
		return out
	}
	if res.Passed {
		return out
	}
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
				out.FailureCases = append(out.FailureCases, schemaerr.FailureCase{Index: row, Value: col.Value(row)})
			}
		}
	}
	return out
}

// checkFieldUnique reports duplicated values within the window, flagging
// duplicate-group members per the field's reporting mode.
func (r *run) checkFieldUnique(ref fieldRef, spec fieldSpec) error {
	if !spec.unique {
		return nil
	}
	col := r.fieldCol(ref)
	flagged := flagDuplicates(r.rows(), func(row int) string {
		return dtype.GroupKey(col.Value(row))
	}, spec.reportDuplicates)
	if len(flagged) == 0 {
		return nil
	}
	cases := make([]schemaerr.FailureCase, len(flagged))
	for i, row := range flagged {
		cases[i] = schemaerr.FailureCase{Index: row, Value: col.Value(row)}
	}
	return r.collectOrDrop(spec.dropInvalid, &schemaerr.Error{
		Context:   spec.context,
		Column:    spec.label,
		Reason:    schemaerr.ReasonDuplicates,
		Stage:     spec.stage(schemaerr.StageUniqueness),
		ColumnOrd: spec.columnOrd,
		CheckOrd:  -1,
		Result: schemaerr.CheckResult{
			Check:           "field_uniqueness",
			CheckIndex:      -1,
			Reason:          schemaerr.ReasonDuplicates,
			Message:         "column values are not unique",
			FailureCases:    cases,
			FailedPositions: flagged,
		},
	})
}

// flagDuplicates groups the rows by key and flags duplicate-group members
// per mode, ascending.
func flagDuplicates(rows []int, keyAt func(row int) string, mode schema.DuplicateMode) []int {
	groups := map[string][]int{}
	var order []string
	for _, row := range rows {
		k := keyAt(row)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], row)
	}
	var flagged []int
	for _, k := range order {
		g := groups[k]
		if len(g) < 2 {
			continue
		}
		switch mode {
		case schema.ExcludeFirst:
			flagged = append(flagged, g[1:]...)
		case schema.ExcludeLast:
			flagged = append(flagged, g[:len(g)-1]...)
		default:
			flagged = append(flagged, g...)
		}
	}
	sort.Ints(flagged)
	return flagged
}

type rowGroup struct {
	// key is the rendered group key; empty for the implicit whole-column
	// group.
	key  string
	rows []int
}

// groupRows splits the row positions by the values of the named columns,
// in first-appearance order. Rows with a null group key are excluded, the
// way grouping engines drop null keys.
func (r *run) groupRows(names []string, base []int) ([]rowGroup, error) {
	cols := make([]*frame.Column, len(names))
	for i, name := range names {
		col, ok := r.data.Col(name)
		if !ok {
			return nil, errors.Newf("groupby column %q not in table", name)
		}
		cols[i] = col
	}
	idx := map[string]int{}
	var groups []rowGroup
	for _, row := range base {
		raw, disp, ok := groupKeyAt(cols, row)
		if !ok {
			continue
		}
		gi, seen := idx[raw]
		if !seen {
			gi = len(groups)
			idx[raw] = gi
			groups = append(groups, rowGroup{key: disp})
		}
		groups[gi].rows = append(groups[gi].rows, row)
	}
	return groups, nil
}

func groupKeyAt(cols []*frame.Column, row int) (raw, display string, ok bool) {
	rawParts := make([]string, len(cols))
	dispParts := make([]string, len(cols))
	for i, col := range cols {
		v := col.Value(row)
		if v == nil {
			return "", "", false
		}
		rawParts[i] = dtype.GroupKey(v)
		dispParts[i] = dtype.Format(v)
	}
	display = dispParts[0]
	if len(dispParts) > 1 {
		display = "(" + strings.Join(dispParts, ", ") + ")"
	}
	return strings.Join(rawParts, "\x1f"), display, true
}
