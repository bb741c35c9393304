// Package partbackend validates partitioned frames. The table schema fans
// out across the partitions through the frame engine, one worker per CPU up
// to the partition count, and the per-partition reports merge into a single
// view of the whole table with row positions shifted by partition offset.
package partbackend

import (
	"context"
	"reflect"
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/frame"
	// Each partition is validated by the frame engine.
	_ "github.com/tablevet/tablevet/framebackend"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaerr"
	"golang.org/x/sync/errgroup"
)

func init() {
	backend.Register(
		reflect.TypeOf((*schema.Table)(nil)),
		reflect.TypeOf((*frame.Partitioned)(nil)),
		partBackend{},
	)
}

type partBackend struct{}

// partResult holds one partition's outcome. Exactly one field is set
// unless the partition never ran.
type partResult struct {
	out     *frame.Frame
	failure error
}

// Validate applies the table schema to every partition and merges the
// outcomes. Row windows and sampling apply within each partition. Lazy runs
// report every partition's failures with row positions shifted to the whole
// table; eager runs surface one failing partition's error.
func (partBackend) Validate(
	ctx context.Context, component, container any, opts backend.Options,
) (any, error) {
	sch := component.(*schema.Table)
	p := container.(*frame.Partitioned)
	engine, err := backend.Resolve(component, p.Part(0))
	if err != nil {
		return nil, err
	}
	results := make([]partResult, p.NumParts())
	waitErr := forEachPart(ctx, p, opts.Lazy, results, func(ctx context.Context, i int) (any, error) {
		return engine.Validate(ctx, component, p.Part(i), opts)
	})
	if opts.Lazy {
		if waitErr != nil {
			return nil, waitErr
		}
		if err := mergeReports(sch.Name(), p, results); err != nil {
			return nil, err
		}
	} else {
		offsets := p.Offsets()
		for i := range results {
			if results[i].failure == nil {
				continue
			}
			var single *schemaerr.Error
			if errors.As(results[i].failure, &single) {
				return nil, shifted(single, offsets[i], p)
			}
			return nil, results[i].failure
		}
		if waitErr != nil {
			return nil, waitErr
		}
	}
	out, err := assemble(p, results)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CoerceDType coerces every partition and merges coercion failures into one
// report with row positions shifted to the whole table.
func (partBackend) CoerceDType(ctx context.Context, component, container any) (any, error) {
	sch := component.(*schema.Table)
	p := container.(*frame.Partitioned)
	engine, err := backend.Resolve(component, p.Part(0))
	if err != nil {
		return nil, err
	}
	results := make([]partResult, p.NumParts())
	waitErr := forEachPart(ctx, p, true, results, func(ctx context.Context, i int) (any, error) {
		return engine.CoerceDType(ctx, component, p.Part(i))
	})
	if waitErr != nil {
		return nil, waitErr
	}
	if err := mergeReports(sch.Name(), p, results); err != nil {
		return nil, err
	}
	out, err := assemble(p, results)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// forEachPart runs fn over every partition through a bounded worker pool.
// Validation failures land in results; any other error aborts the pool. An
// eager validation failure aborts the pool too, leaving later partitions
// unprocessed.
func forEachPart(
	ctx context.Context,
	p *frame.Partitioned,
	lazy bool,
	results []partResult,
	fn func(ctx context.Context, i int) (any, error),
) error {
	numWorkers := runtime.NumCPU()
	if numWorkers > p.NumParts() {
		numWorkers = p.NumParts()
	}
	g, gctx := errgroup.WithContext(ctx)
	workQueue := make(chan int)
	for it := 0; it < numWorkers; it++ {
		g.Go(func() error {
			partitionsRunning.Inc()
			defer partitionsRunning.Dec()
			for {
				i, ok := <-workQueue
				if !ok {
					return nil
				}
				out, err := fn(gctx, i)
				partitionsProcessed.Inc()
				if err != nil {
					if !isValidationFailure(err) {
						return err
					}
					results[i].failure = err
					if !lazy {
						return err
					}
					continue
				}
				results[i].out = out.(*frame.Frame)
			}
		})
	}
feed:
	for i := 0; i < p.NumParts(); i++ {
		select {
		case workQueue <- i:
		case <-gctx.Done():
			break feed
		}
	}
	close(workQueue)
	if err := g.Wait(); err != nil {
		return err
	}
	// The feed aborts without a worker error when the parent context ends
	// before every partition is handed out.
	return ctx.Err()
}

func isValidationFailure(err error) bool {
	var single *schemaerr.Error
	var many *schemaerr.Errors
	return errors.As(err, &single) || errors.As(err, &many)
}

// mergeReports folds the per-partition failure reports into one, shifting
// row positions by each partition's starting offset. Schema-stage failures
// derive from the labels every partition shares, so they are kept from the
// first failing partition only.
func mergeReports(name string, p *frame.Partitioned, results []partResult) error {
	coll := schemaerr.NewCollector(true, name)
	offsets := p.Offsets()
	schemaFrom := -1
	for i := range results {
		failure := results[i].failure
		if failure == nil {
			continue
		}
		var many *schemaerr.Errors
		if !errors.As(failure, &many) {
			return failure
		}
		for _, e := range many.Errors() {
			if e.Stage == schemaerr.StageSchema {
				if schemaFrom < 0 {
					schemaFrom = i
				}
				if i != schemaFrom {
					continue
				}
			}
			_ = coll.Collect(shifted(e, offsets[i], p))
		}
	}
	return coll.Finish()
}

// shifted copies e with row positions moved from partition-local to global.
func shifted(e *schemaerr.Error, offset int, data any) *schemaerr.Error {
	out := *e
	out.Data = data
	// The mask is aligned with the partition's validated window, which has
	// no meaning at the table level.
	out.Result.Mask = nil
	if len(e.Result.FailedPositions) > 0 {
		positions := make([]int, len(e.Result.FailedPositions))
		for i, pos := range e.Result.FailedPositions {
			positions[i] = pos + offset
		}
		out.Result.FailedPositions = positions
	}
	if len(e.Result.FailureCases) > 0 {
		cases := make([]schemaerr.FailureCase, len(e.Result.FailureCases))
		for i, c := range e.Result.FailureCases {
			if c.Index >= 0 {
				c.Index += offset
			}
			cases[i] = c
		}
		out.Result.FailureCases = cases
	}
	return &out
}

// assemble rebuilds the partitioned container, preserving the input when no
// partition changed.
func assemble(p *frame.Partitioned, results []partResult) (*frame.Partitioned, error) {
	changed := false
	outs := make([]*frame.Frame, p.NumParts())
	for i := range outs {
		outs[i] = results[i].out
		if outs[i] != p.Part(i) {
			changed = true
		}
	}
	if !changed {
		return p, nil
	}
	return frame.NewPartitioned(outs...)
}
