package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3Driver talks to any S3-compatible endpoint (MinIO in the lab setup).
type S3Driver struct {
	client *s3.Client
	logger *zap.Logger
}

// S3Options configures the S3 client.
type S3Options struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	PathStyle bool
}

// NewS3Driver creates an S3 storage driver.
func NewS3Driver(opts S3Options, logger *zap.Logger) (*S3Driver, error) {
	if opts.AccessKey == "" || opts.SecretKey == "" {
		return nil, fmt.Errorf("s3 driver: access and secret keys are required")
	}
	region := opts.Region
	if region == "" {
		region = "us-east-1"
	}

	clientOpts := s3.Options{
		Region: region,
		Credentials: credentials.NewStaticCredentialsProvider(
			opts.AccessKey,
			opts.SecretKey,
			"",
		),
		UsePathStyle: opts.PathStyle,
	}
	if opts.Endpoint != "" {
		clientOpts.BaseEndpoint = aws.String(opts.Endpoint)
	}

	return &S3Driver{
		client: s3.New(clientOpts),
		logger: logger,
	}, nil
}

// Name returns the driver name.
func (d *S3Driver) Name() string { return "s3" }

// Put stores an object.
func (d *S3Driver) Put(ctx context.Context, bucket, key string, data io.Reader, size int64) error {
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          data,
		ContentLength: aws.Int64(size),
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", bucket, key, err)
	}

	d.logger.Debug("stored object",
		zap.String("bucket", bucket),
		zap.String("key", key),
		zap.Int64("size", size))
	return nil
}

// Get retrieves an object.
func (d *S3Driver) Get(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	result, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object %s/%s: %w", bucket, key, err)
	}
	return result.Body, nil
}

// Delete removes an object. S3 delete is idempotent; deleting a key that
// is already gone succeeds.
func (d *S3Driver) Delete(ctx context.Context, bucket, key string) error {
	_, err := d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("delete object %s/%s: %w", bucket, key, err)
	}
	return nil
}

// List lists object keys under a prefix.
func (d *S3Driver) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	result, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("list objects %s/%s: %w", bucket, prefix, err)
	}

	keys := make([]string, 0, len(result.Contents))
	for _, obj := range result.Contents {
		if obj.Key != nil {
			keys = append(keys, *obj.Key)
		}
	}
	return keys, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (d *S3Driver) EnsureBucket(ctx context.Context, bucket string) error {
	_, err := d.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(bucket),
	})
	if err == nil {
		return nil
	}

	_, err = d.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	d.logger.Info("created bucket", zap.String("bucket", bucket))
	return nil
}
