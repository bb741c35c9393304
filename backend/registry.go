package backend

import (
	"reflect"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

type registryKey struct {
	component reflect.Type
	container reflect.Type
}

var (
	mu       sync.RWMutex
	registry = map[registryKey]Backend{}
)

// Register installs a backend for a (component type, container type) pair.
// Registrations may use interface types for the container; concrete
// containers resolve to them by assignability. Engines call this from init;
// registering a pair twice panics.
func Register(component, container reflect.Type, b Backend) {
	key := registryKey{component: component, container: container}
	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[key]; ok {
		panic(errors.AssertionFailedf(
			"backend already registered for component %s against container %s", component, container,
		))
	}
	registry[key] = b
}

// Resolve finds the backend registered for the given component and
// container values. The lookup tries the exact container type first, then
// any registration whose container is an interface the value implements,
// in a deterministic order. A miss is an immediate error naming both types.
func Resolve(component, container any) (Backend, error) {
	compType := reflect.TypeOf(component)
	contType := reflect.TypeOf(container)
	mu.RLock()
	defer mu.RUnlock()
	if b, ok := registry[registryKey{component: compType, container: contType}]; ok {
		return b, nil
	}
	var candidates []registryKey
	for key := range registry {
		if key.component != compType {
			continue
		}
		if key.container.Kind() == reflect.Interface && contType != nil && contType.Implements(key.container) {
			candidates = append(candidates, key)
		}
	}
	if len(candidates) > 0 {
		sort.Slice(candidates, func(i, j int) bool {
			return candidates[i].container.String() < candidates[j].container.String()
		})
		return registry[candidates[0]], nil
	}
	return nil, errors.Newf(
		"no validation backend registered for schema component %T against container %T",
		component, container,
	)
}

// testingReset clears the registry. Only tests use this.
func testingReset() {
	mu.Lock()
	defer mu.Unlock()
	registry = map[registryKey]Backend{}
}
