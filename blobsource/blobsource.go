// Package blobsource reads and writes data files by URL. Local paths,
// file://, s3://, and gs:// targets are supported; the CLI uses it to
// validate files living in object storage without staging them by hand,
// and to store validated output next to them.
package blobsource

import (
	"context"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
)

// Source fetches the bytes behind a target URL.
type Source interface {
	// Open returns the content stream for target. The caller closes it.
	Open(ctx context.Context, target string) (io.ReadCloser, error)
}

// Sink stores a byte stream at a target URL.
type Sink interface {
	// Put writes the contents of r to target, replacing any existing
	// object.
	Put(ctx context.Context, target string, r io.Reader) error
}

// store is what every backing implementation provides. Sources and sinks
// differ only in the credential scope they are built with.
type store interface {
	Source
	Sink
}

// For picks a source for target by its URL scheme, building the cloud
// client the scheme needs.
func For(ctx context.Context, logger zerolog.Logger, target string) (Source, error) {
	s, err := storeFor(ctx, logger, target, storage.ScopeReadOnly)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SinkFor picks a sink for target by its URL scheme, building the cloud
// client the scheme needs.
func SinkFor(ctx context.Context, logger zerolog.Logger, target string) (Sink, error) {
	s, err := storeFor(ctx, logger, target, storage.ScopeReadWrite)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// storeFor builds the store for target's scheme. gcsScope is the OAuth
// scope probed before a GCS client is built.
func storeFor(
	ctx context.Context, logger zerolog.Logger, target string, gcsScope string,
) (store, error) {
	obj, err := parseTarget(target)
	if err != nil {
		return nil, err
	}
	switch obj.scheme {
	case "", "file":
		return NewLocalStore(logger), nil
	case "s3":
		sess, err := session.NewSession()
		if err != nil {
			return nil, errors.Wrap(err, "error starting AWS session")
		}
		return NewS3Store(logger, sess), nil
	case "gs":
		if _, err := google.FindDefaultCredentials(ctx, gcsScope); err != nil {
			return nil, errors.Wrap(err, "error finding GCP credentials")
		}
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "error creating GCS client")
		}
		return NewGCPStore(logger, client), nil
	}
	return nil, errors.Newf("unsupported target scheme %q", obj.scheme)
}

type object struct {
	scheme string
	bucket string
	key    string
	path   string
}

// parseTarget splits a target into its scheme and location. Anything
// without a scheme is a local path.
func parseTarget(target string) (object, error) {
	if !strings.Contains(target, "://") {
		if target == "" {
			return object{}, errors.New("empty target")
		}
		return object{path: target}, nil
	}
	u, err := url.Parse(target)
	if err != nil {
		return object{}, errors.Wrapf(err, "error parsing target %q", target)
	}
	switch u.Scheme {
	case "file":
		return object{scheme: "file", path: u.Path}, nil
	case "s3", "gs":
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" || key == "" {
			return object{}, errors.Newf("target %q needs a bucket and an object key", target)
		}
		return object{scheme: u.Scheme, bucket: u.Host, key: key}, nil
	}
	return object{}, errors.Newf("unsupported target scheme %q", u.Scheme)
}
