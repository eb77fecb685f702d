package s3

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/couchcryptid/weather-s3-etl/internal/domain"
)

const contentTypeCSV = "text/csv"

// PutObjectAPI is the slice of the S3 client the loader uses.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures the bucket and, for S3-compatible stores, the endpoint.
type Options struct {
	Bucket       string
	Endpoint     string
	UsePathStyle bool
}

// Loader writes CSV objects to a single bucket. Credentials are supplied per
// call from the run's secret bundle. It implements pipeline.ObjectStore.
type Loader struct {
	client PutObjectAPI
	bucket string
	logger *slog.Logger
}

// NewLoader creates a Loader with an S3 client built from cfg.
func NewLoader(cfg aws.Config, opts Options, logger *slog.Logger) *Loader {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.UsePathStyle
	})
	return NewLoaderWithClient(client, opts.Bucket, logger)
}

// NewLoaderWithClient creates a Loader around an existing client.
func NewLoaderWithClient(client PutObjectAPI, bucket string, logger *slog.Logger) *Loader {
	return &Loader{client: client, bucket: bucket, logger: logger}
}

// Put writes body under key with a single PutObject call. Any failure wraps
// domain.ErrLoad; nothing is retried.
func (l *Loader) Put(ctx context.Context, key string, body []byte, creds domain.StorageCredentials) error {
	_, err := l.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(l.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentTypeCSV),
	}, withStaticCredentials(creds))
	if err != nil {
		return fmt.Errorf("%w: put s3://%s/%s: %w", domain.ErrLoad, l.bucket, key, err)
	}

	l.logger.Info("object written", "bucket", l.bucket, "key", key, "bytes", len(body))
	return nil
}

func withStaticCredentials(creds domain.StorageCredentials) func(*s3.Options) {
	return func(o *s3.Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")
	}
}
