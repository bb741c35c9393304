package blobsource

import (
	"bytes"
	"context"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

type s3Store struct {
	logger  zerolog.Logger
	session *session.Session
}

func NewS3Store(logger zerolog.Logger, session *session.Session) *s3Store {
	return &s3Store{
		logger:  logger,
		session: session,
	}
}

func (s *s3Store) Open(ctx context.Context, target string) (io.ReadCloser, error) {
	obj, err := parseTarget(target)
	if err != nil {
		return nil, err
	}
	if obj.scheme != "s3" {
		return nil, errors.Newf("target %q is not an s3 URL", target)
	}
	s.logger.Debug().Str("bucket", obj.bucket).Str("key", obj.key).Msgf("downloading object")
	buf := aws.NewWriteAtBuffer(nil)
	n, err := s3manager.NewDownloader(s.session).DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(obj.bucket),
		Key:    aws.String(obj.key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "error downloading s3://%s/%s", obj.bucket, obj.key)
	}
	s.logger.Debug().Int64("bytes", n).Msgf("object downloaded")
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}

func (s *s3Store) Put(ctx context.Context, target string, r io.Reader) error {
	obj, err := parseTarget(target)
	if err != nil {
		return err
	}
	if obj.scheme != "s3" {
		return errors.Newf("target %q is not an s3 URL", target)
	}
	s.logger.Debug().Str("bucket", obj.bucket).Str("key", obj.key).Msgf("uploading object")
	if _, err := s3manager.NewUploader(s.session).UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket: aws.String(obj.bucket),
		Key:    aws.String(obj.key),
		Body:   r,
	}); err != nil {
		return errors.Wrapf(err, "error uploading s3://%s/%s", obj.bucket, obj.key)
	}
	return nil
}
