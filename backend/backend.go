// Package backend decouples schema declarations from the containers they
// validate. Engines register a Backend per (schema component type, container
// type) pair; validation entry points resolve the pair at run time.
package backend

import "context"

// Backend validates one kind of schema component against one kind of data
// container.
type Backend interface {
	// Validate applies the component schema to the container and returns
	// the validated (possibly coerced, filtered, or row-dropped)
	// container.
	Validate(ctx context.Context, component, container any, opts Options) (any, error)
	// CoerceDType applies only type coercion.
	CoerceDType(ctx context.Context, component, container any) (any, error)
}

// Options carries the per-run validation settings.
type Options struct {
	// Head, Tail, and Sample restrict validation to a window of rows.
	// Overlapping selections are deduplicated by position. Zero means
	// no restriction.
	Head   int
	Tail   int
	Sample int
	// SampleSeed makes sampling deterministic.
	SampleSeed uint64
	// Lazy collects every failure into one aggregate error instead of
	// stopping at the first.
	Lazy bool
	// InPlace lets the backend mutate the given container when coercion
	// or filtering must write, instead of copying first.
	InPlace bool
}

// Option configures one validation run.
type Option func(*Options)

// WithHead validates only the first n rows.
func WithHead(n int) Option {
	return func(o *Options) { o.Head = n }
}

// WithTail validates only the last n rows.
func WithTail(n int) Option {
	return func(o *Options) { o.Tail = n }
}

// WithSample adds n randomly chosen rows to the validated window. The seed
// makes the choice deterministic.
func WithSample(n int, seed uint64) Option {
	return func(o *Options) {
		o.Sample = n
		o.SampleSeed = seed
	}
}

// WithLazy collects every failure instead of stopping at the first.
func WithLazy() Option {
	return func(o *Options) { o.Lazy = true }
}

// WithInPlace permits mutating the input container.
func WithInPlace() Option {
	return func(o *Options) { o.InPlace = true }
}

// MakeOptions folds a list of options into an Options value.
func MakeOptions(opts ...Option) Options {
	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
