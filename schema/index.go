package schema

import (
	"context"
	"fmt"

	"github.com/tablevet/tablevet/backend"
	"github.com/tablevet/tablevet/check"
	"github.com/tablevet/tablevet/dtype"
	"github.com/tablevet/tablevet/schemaerr"
)

// IndexSchema is implemented by Index and MultiIndex, the two shapes a table
// index declaration can take.
type IndexSchema interface {
	// Levels returns the declared index levels in order.
	Levels() []Index
	isIndexSchema()
}

// Index declares expectations for a single index level. Unlike columns,
// index levels are positional: they carry no required/regex/default knobs.
type Index struct {
	// Name is optional; unnamed levels are matched by position.
	Name             string
	DType            dtype.DataType
	Checks           []check.Check
	Nullable         bool
	Unique           bool
	ReportDuplicates DuplicateMode
	Coerce           bool
	Title            string
	Description      string
}

var _ IndexSchema = Index{}

// Levels implements IndexSchema.
func (ix Index) Levels() []Index { return []Index{ix} }

func (ix Index) isIndexSchema() {}

func (ix Index) validateDef() error {
	for _, ck := range ix.Checks {
		if ck.IsTableLevel() {
			return schemaerr.NewInit("index %q cannot carry table-level check %q", ix.Name, ck.Name())
		}
		if err := check.ValidateDefinition(ck); err != nil {
			return schemaerr.WrapInitf(err, "index %q", ix.Name)
		}
	}
	return nil
}

// Validate applies this index schema alone to a container.
func (ix Index) Validate(ctx context.Context, data any, opts ...backend.Option) (any, error) {
	if err := ix.validateDef(); err != nil {
		return nil, err
	}
	b, err := backend.Resolve(ix, data)
	if err != nil {
		return nil, err
	}
	return b.Validate(ctx, ix, data, backend.MakeOptions(opts...))
}

// MultiIndex declares expectations for a multi-level index.
type MultiIndex struct {
	Indexes []Index
	Name    string
	// Unordered matches observed levels by name instead of position, and
	// therefore requires every level to be named.
	Unordered bool
	// Coerce cascades to every level.
	Coerce bool
	// Unique lists level names that must be jointly unique.
	Unique []string
}

var _ IndexSchema = MultiIndex{}

// Levels implements IndexSchema.
func (mi MultiIndex) Levels() []Index { return mi.Indexes }

func (mi MultiIndex) isIndexSchema() {}

func (mi MultiIndex) validateDef() error {
	if len(mi.Indexes) == 0 {
		return schemaerr.NewInit("multiindex declares no levels")
	}
	for i, ix := range mi.Indexes {
		if mi.Unordered && ix.Name == "" {
			return schemaerr.NewInit("unordered multiindex requires named levels; level %d has no name", i)
		}
		if err := ix.validateDef(); err != nil {
			return err
		}
	}
	for _, name := range mi.Unique {
		if !mi.hasLevel(name) {
			return schemaerr.NewInit("multiindex unique set references unknown level %q", name)
		}
	}
	return nil
}

func (mi MultiIndex) hasLevel(name string) bool {
	for _, ix := range mi.Indexes {
		if ix.Name == name {
			return true
		}
	}
	return false
}

// LevelKeys returns the lookup key for each level: its name when set,
// otherwise its position.
func (mi MultiIndex) LevelKeys() []string {
	keys := make([]string, len(mi.Indexes))
	for i, ix := range mi.Indexes {
		if ix.Name == "" {
			keys[i] = fmt.Sprint(i)
		} else {
			keys[i] = ix.Name
		}
	}
	return keys
}

// Validate applies this multiindex schema alone to a container.
func (mi MultiIndex) Validate(ctx context.Context, data any, opts ...backend.Option) (any, error) {
	if err := mi.validateDef(); err != nil {
		return nil, err
	}
	b, err := backend.Resolve(mi, data)
	if err != nil {
		return nil, err
	}
	return b.Validate(ctx, mi, data, backend.MakeOptions(opts...))
}
