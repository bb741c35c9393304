package check

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
)

var (
	catalogOnce sync.Once
	byCanonical map[string]*builtinSpec
	byAlias     map[string]string
)

func catalog() map[string]*builtinSpec {
	catalogOnce.Do(func() {
		byCanonical = make(map[string]*builtinSpec, len(builtinSpecs))
		byAlias = map[string]string{}
		for _, spec := range builtinSpecs {
			byCanonical[spec.name] = spec
			for _, alias := range spec.aliases {
				byAlias[alias] = spec.name
			}
		}
	})
	return byCanonical
}

// Canonical resolves a builtin check name or alias to its canonical name.
func Canonical(name string) (string, bool) {
	specs := catalog()
	if _, ok := specs[name]; ok {
		return name, true
	}
	if canonical, ok := byAlias[name]; ok {
		return canonical, true
	}
	return "", false
}

// IsBuiltin reports whether name refers to a builtin check, by canonical
// name or alias.
func IsBuiltin(name string) bool {
	_, ok := Canonical(name)
	return ok
}

// FromArgs constructs a builtin check from its serialized name and argument
// list. Used by the schema document reader and the struct-tag model.
func FromArgs(name string, args []any, opts ...Option) (Check, error) {
	canonical, ok := Canonical(name)
	if !ok {
		return Check{}, errors.Newf("unknown check %q", name)
	}
	spec := catalog()[canonical]
	if spec.validate != nil {
		if err := spec.validate(args); err != nil {
			return Check{}, err
		}
	}
	return spec.factory(args, opts...)
}

// ValidateDefinition verifies a check declaration is well formed: custom
// checks must carry a predicate, builtin checks must have valid arguments.
// Schema construction runs this for every attached check.
func ValidateDefinition(c Check) error {
	if c.IsCustom() {
		if c.name == "" {
			return errors.New("custom check has no name")
		}
		return nil
	}
	if c.name == "" {
		return errors.New("check has no name; use a builtin constructor or check.New")
	}
	canonical, ok := Canonical(c.name)
	if !ok {
		return errors.Newf("unknown check %q", c.name)
	}
	if spec := catalog()[canonical]; spec.validate != nil {
		return spec.validate(c.args)
	}
	return nil
}

// Impl is a predicate body registered by a backend for its column view
// type. The view passed at run time may be a group or window slice, so
// bodies must only rely on the ColumnView interface.
type Impl func(view ColumnView, args []any) (Result, error)

type implKey struct {
	name string
	view reflect.Type
}

var (
	implMu sync.RWMutex
	impls  = map[implKey]Impl{}
)

// RegisterImpl installs a predicate body for (check name, view type).
// Backends call this from init; registering the same pair twice panics.
func RegisterImpl(name string, viewType reflect.Type, impl Impl) {
	canonical, ok := Canonical(name)
	if !ok {
		canonical = name
	}
	key := implKey{name: canonical, view: viewType}
	implMu.Lock()
	defer implMu.Unlock()
	if _, ok := impls[key]; ok {
		panic(errors.AssertionFailedf("duplicate check impl for %s on %s", canonical, viewType))
	}
	impls[key] = impl
}

// ResolveImpl finds the predicate body registered for (check name, view
// type), resolving aliases. A miss is an error naming the check.
func ResolveImpl(name string, viewType reflect.Type) (Impl, error) {
	canonical, ok := Canonical(name)
	if !ok {
		canonical = name
	}
	implMu.RLock()
	defer implMu.RUnlock()
	if impl, ok := impls[implKey{name: canonical, view: viewType}]; ok {
		return impl, nil
	}
	return nil, errors.Newf("no implementation of check %q registered for %s", name, viewType)
}
