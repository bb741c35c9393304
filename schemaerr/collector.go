package schemaerr

import "sort"

// Collector aggregates validation failures according to the active policy.
// Eager collectors abort the pipeline by handing the first failure back;
// lazy collectors record everything and assemble one Errors at the end.
type Collector struct {
	lazy   bool
	schema string
	errs   []*Error
	seq    int
}

// NewCollector returns a collector for one validation run.
func NewCollector(lazy bool, schemaName string) *Collector {
	return &Collector{lazy: lazy, schema: schemaName}
}

// Lazy reports whether the collector accumulates failures.
func (c *Collector) Lazy() bool {
	return c.lazy
}

// Collect registers a failure. In eager mode the failure is returned and the
// caller must stop; in lazy mode nil is returned and the caller continues.
func (c *Collector) Collect(e *Error) error {
	if e.Schema == "" {
		e.Schema = c.schema
	}
	e.seq = c.seq
	c.seq++
	if !c.lazy {
		return e
	}
	c.errs = append(c.errs, e)
	return nil
}

// HasErrors reports whether any failure has been collected.
func (c *Collector) HasErrors() bool {
	return len(c.errs) > 0
}

// Finish returns nil when nothing failed, otherwise the aggregated Errors
// in deterministic report order.
func (c *Collector) Finish() error {
	if len(c.errs) == 0 {
		return nil
	}
	sorted := make([]*Error, len(c.errs))
	copy(sorted, c.errs)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.ColumnOrd != b.ColumnOrd {
			return a.ColumnOrd < b.ColumnOrd
		}
		if a.Stage != b.Stage {
			return a.Stage < b.Stage
		}
		if a.CheckOrd != b.CheckOrd {
			return a.CheckOrd < b.CheckOrd
		}
		return a.seq < b.seq
	})
	return &Errors{Schema: c.schema, errs: sorted}
}
