package blobsource

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type gcpStore struct {
	logger zerolog.Logger
	client *storage.Client
}

func NewGCPStore(logger zerolog.Logger, client *storage.Client) *gcpStore {
	return &gcpStore{
		logger: logger,
		client: client,
	}
}

func (s *gcpStore) Open(ctx context.Context, target string) (io.ReadCloser, error) {
	obj, err := parseTarget(target)
	if err != nil {
		return nil, err
	}
	if obj.scheme != "gs" {
		return nil, errors.Newf("target %q is not a gs URL", target)
	}
	s.logger.Debug().Str("bucket", obj.bucket).Str("key", obj.key).Msgf("opening object")
	r, err := s.client.Bucket(obj.bucket).Object(obj.key).NewReader(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "error opening gs://%s/%s", obj.bucket, obj.key)
	}
	return r, nil
}

func (s *gcpStore) Put(ctx context.Context, target string, r io.Reader) error {
	obj, err := parseTarget(target)
	if err != nil {
		return err
	}
	if obj.scheme != "gs" {
		return errors.Newf("target %q is not a gs URL", target)
	}
	s.logger.Debug().Str("bucket", obj.bucket).Str("key", obj.key).Msgf("uploading object")
	w := s.client.Bucket(obj.bucket).Object(obj.key).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrapf(err, "error uploading gs://%s/%s", obj.bucket, obj.key)
	}
	return errors.Wrapf(w.Close(), "error uploading gs://%s/%s", obj.bucket, obj.key)
}
