// Package s3 provides an S3-backed benchmark backend storing one object per
// record.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/gezibash/dbbench/internal/backend"
	"github.com/gezibash/dbbench/internal/dataset"
)

const (
	KeyBucket          = "bucket"
	KeyRegion          = "region"
	KeyEndpoint        = "endpoint"
	KeyPrefix          = "prefix"
	KeyAccessKeyID     = "access_key_id"
	KeySecretAccessKey = "secret_access_key"
	KeyForcePathStyle  = "force_path_style"
	KeyConcurrency     = "concurrency"
)

func init() {
	backend.Register("s3", NewFactory, Defaults)
}

// Defaults returns the default configuration for the S3 backend.
func Defaults() backend.Config {
	return backend.Config{
		KeyRegion:          "us-east-1",
		KeyEndpoint:        "",
		KeyPrefix:          "test/",
		KeyAccessKeyID:     "",
		KeySecretAccessKey: "",
		KeyForcePathStyle:  "false",
		KeyConcurrency:     "16",
	}
}

// NewFactory creates an S3 client and verifies the bucket is reachable. A
// missing bucket is created by Setup.
func NewFactory(ctx context.Context, cfg backend.Config) (backend.Backend, error) {
	bucket := cfg.String(KeyBucket, "")
	if bucket == "" {
		return nil, backend.NewConfigError("s3", KeyBucket, "cannot be empty")
	}

	region := cfg.String(KeyRegion, "us-east-1")
	endpoint := cfg.String(KeyEndpoint, "")
	prefix := cfg.String(KeyPrefix, "test/")
	accessKeyID := cfg.String(KeyAccessKeyID, "")
	secretAccessKey := cfg.String(KeySecretAccessKey, "")

	forcePathStyle, err := cfg.Bool("s3", KeyForcePathStyle, false)
	if err != nil {
		return nil, err
	}
	concurrency, err := cfg.PositiveInt("s3", KeyConcurrency, 16)
	if err != nil {
		return nil, err
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if accessKeyID != "" && secretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKeyID, secretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, backend.NewConfigErrorWithCause("s3", "", "failed to load AWS config", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = forcePathStyle
	})

	if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil && !isNotFound(err) {
		return nil, backend.NewConfigErrorWithCause("s3", KeyBucket, "bucket not accessible", err)
	}

	slog.Info("s3 backend initialized", "bucket", bucket, "region", region, "prefix", prefix, "concurrency", concurrency)
	return &Backend{client: client, bucket: bucket, region: region, prefix: prefix, concurrency: concurrency}, nil
}

// Backend stores each record as "<prefix><user id>.json".
type Backend struct {
	client      *s3.Client
	bucket      string
	region      string
	prefix      string
	concurrency int
	closed      atomic.Bool
}

func (b *Backend) key(id uuid.UUID) string {
	return b.prefix + id.String() + ".json"
}

// Setup creates the bucket. A bucket this account already owns is fine.
func (b *Backend) Setup(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	in := &s3.CreateBucketInput{Bucket: aws.String(b.bucket)}
	// us-east-1 rejects an explicit location constraint.
	if b.region != "" && b.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.region),
		}
	}
	_, err := b.client.CreateBucket(ctx, in)
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("s3 setup: create bucket %s: %w", b.bucket, err)
	}
	return nil
}

func (b *Backend) WriteOne(ctx context.Context, rec *dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	if err := b.put(ctx, rec); err != nil {
		return fmt.Errorf("s3 write one: %w", err)
	}
	return nil
}

// WriteMany uploads records with at most concurrency PUTs in flight.
func (b *Backend) WriteMany(ctx context.Context, recs []*dataset.Record) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for _, rec := range recs {
		g.Go(func() error {
			return b.put(gctx, rec)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("s3 write many: %w", err)
	}
	return nil
}

func (b *Backend) put(ctx context.Context, rec *dataset.Record) error {
	data, err := backend.MarshalRecord(rec)
	if err != nil {
		return err
	}
	_, err = b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.bucket),
		Key:         aws.String(b.key(rec.UserID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	return err
}

func (b *Backend) ReadOne(ctx context.Context, id uuid.UUID) (*dataset.Record, error) {
	if b.closed.Load() {
		return nil, backend.ErrClosed
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.key(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("s3 read one: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("s3 read one: %w", err)
	}
	return backend.UnmarshalRecord(data)
}

// Clean lists the prefix and removes it one DeleteObjects call per page.
func (b *Backend) Clean(ctx context.Context) error {
	if b.closed.Load() {
		return backend.ErrClosed
	}
	pages := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(b.prefix),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3 clean: list: %w", err)
		}
		if len(page.Contents) == 0 {
			continue
		}
		objects := make([]types.ObjectIdentifier, len(page.Contents))
		for i, obj := range page.Contents {
			objects[i] = types.ObjectIdentifier{Key: obj.Key}
		}
		out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(b.bucket),
			Delete: &types.Delete{Objects: objects, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return fmt.Errorf("s3 clean: delete: %w", err)
		}
		if len(out.Errors) > 0 {
			e := out.Errors[0]
			return fmt.Errorf("s3 clean: delete %s: %s", aws.ToString(e.Key), aws.ToString(e.Message))
		}
	}
	return nil
}

// Close is a no-op; the S3 SDK client needs no cleanup.
func (b *Backend) Close() error {
	b.closed.Store(true)
	return nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	if errors.As(err, &notFound) {
		return true
	}
	var respErr interface{ HTTPStatusCode() int }
	return errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404
}
