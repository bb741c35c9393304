package cmdutil

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/tablevet/tablevet/blobsource"
	"github.com/tablevet/tablevet/schema"
	"github.com/tablevet/tablevet/schemaio"
)

// LoadSchema reads a schema document from a local path or blob URL,
// decoding as JSON when the path has a .json extension and YAML otherwise.
func LoadSchema(ctx context.Context, logger zerolog.Logger, target string) (*schema.Table, error) {
	src, err := blobsource.For(ctx, logger, target)
	if err != nil {
		return nil, err
	}
	r, err := src.Open(ctx, target)
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	tbl, err := decodeSchema(target, r)
	if err != nil {
		return nil, errors.Wrapf(err, "error loading schema from %s", target)
	}
	return tbl, nil
}

func decodeSchema(target string, r io.Reader) (*schema.Table, error) {
	if strings.EqualFold(filepath.Ext(target), ".json") {
		return schemaio.FromJSON(r)
	}
	return schemaio.FromYAML(r)
}
