// Package framebackend is the in-process validation engine for frames. It
// registers the backends that apply table, column, and index schemas to
// *frame.Frame containers, plus the builtin predicate bodies for frame
// columns. Importing the package is enough to wire it up:
//
//	import _ "github.com/tablevet/tablevet/framebackend"
package framebackend

import (
	"reflect"

	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/frame"
	"github.com/tablevet/tablevet/schema"
)

// columnViewType keys the builtin predicate bodies in the check registry.
// Window and group slices over a column resolve through the same key.
var columnViewType = reflect.TypeOf((*frame.Column)(nil))

func init() {
	frameType := reflect.TypeOf((*frame.Frame)(nil))
	backend.Register(reflect.TypeOf((*schema.Table)(nil)), frameType, tableBackend{})
	backend.Register(reflect.TypeOf(schema.Column{}), frameType, columnBackend{})
	backend.Register(reflect.TypeOf(schema.Index{}), frameType, indexBackend{})
	backend.Register(reflect.TypeOf(schema.MultiIndex{}), frameType, indexBackend{})
	registerFrameChecks()
}
