package blobsource

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type localStore struct {
	logger zerolog.Logger
}

func NewLocalStore(logger zerolog.Logger) *localStore {
	return &localStore{logger: logger}
}

func (s *localStore) Open(ctx context.Context, target string) (io.ReadCloser, error) {
	obj, err := parseTarget(target)
	if err != nil {
		return nil, err
	}
	if obj.scheme != "" && obj.scheme != "file" {
		return nil, errors.Newf("target %q is not a local path", target)
	}
	s.logger.Debug().Str("path", obj.path).Msgf("opening file")
	f, err := os.Open(obj.path)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening %s", obj.path)
	}
	return f, nil
}

func (s *localStore) Put(ctx context.Context, target string, r io.Reader) error {
	obj, err := parseTarget(target)
	if err != nil {
		return err
	}
	if obj.scheme != "" && obj.scheme != "file" {
		return errors.Newf("target %q is not a local path", target)
	}
	if err := os.MkdirAll(filepath.Dir(obj.path), os.ModePerm); err != nil {
		return errors.Wrapf(err, "error creating directory for %s", obj.path)
	}
	s.logger.Debug().Str("path", obj.path).Msgf("creating file")
	f, err := os.Create(obj.path)
	if err != nil {
		return errors.Wrapf(err, "error creating %s", obj.path)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "error writing %s", obj.path)
	}
	return errors.Wrapf(f.Close(), "error closing %s", obj.path)
}
