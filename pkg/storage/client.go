package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/fly-io/update-agent/pkg/artifact"
	"github.com/fly-io/update-agent/pkg/errors"
	"github.com/fly-io/update-agent/pkg/security"
)

// objectAPI is the subset of the S3 client the artifact source uses
type objectAPI interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	s3.ListObjectsV2APIClient
}

// Client fetches update artifacts from an S3 bucket
type Client struct {
	api       objectAPI
	bucket    string
	validator *security.Validator
}

// NewClient creates a new S3 client for anonymous access
func NewClient(ctx context.Context, bucket, region string, validator *security.Validator) (*Client, error) {
	slog.Info("s3_client_init", "bucket", bucket, "region", region)

	// Load AWS config with anonymous credentials
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		config.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	slog.Info("s3_client_created", "bucket", bucket)

	return newClient(s3.NewFromConfig(cfg), bucket, validator), nil
}

func newClient(api objectAPI, bucket string, validator *security.Validator) *Client {
	return &Client{api: api, bucket: bucket, validator: validator}
}

// Fetch downloads an artifact object into memory
func (c *Client) Fetch(ctx context.Context, key string) ([]byte, error) {
	if err := c.validator.ValidateKey(key); err != nil {
		return nil, err
	}

	slog.Info("s3_download_start", "bucket", c.bucket, "s3_key", key)

	result, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			slog.Error("s3_object_not_found", "s3_key", key)
			return nil, fmt.Errorf("%w: s3://%s/%s", artifact.ErrNotFound, c.bucket, key)
		}
		slog.Error("s3_get_object_failed", "s3_key", key, "error", err)
		return nil, errors.Wrap(err, "failed to get object from S3")
	}
	defer result.Body.Close()

	if result.ContentLength != nil {
		if err := c.validator.ValidateSize(*result.ContentLength); err != nil {
			return nil, err
		}
	}

	data, err := io.ReadAll(io.LimitReader(result.Body, c.validator.MaxSize()+1))
	if err != nil {
		slog.Error("s3_download_failed", "s3_key", key, "error", err)
		return nil, errors.Wrap(err, "failed to download artifact")
	}
	if err := c.validator.ValidateSize(int64(len(data))); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		slog.Error("s3_object_empty", "s3_key", key)
		return nil, fmt.Errorf("%w: s3://%s/%s", artifact.ErrEmpty, c.bucket, key)
	}

	slog.Info("s3_download_complete", "s3_key", key, "size_bytes", len(data))
	return data, nil
}

// ListObjects lists all objects in the bucket with a given prefix
func (c *Client) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	slog.Info("s3_list_start", "bucket", c.bucket, "prefix", prefix)

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(c.bucket),
		Prefix: aws.String(prefix),
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.api, input)

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			slog.Error("s3_list_failed", "prefix", prefix, "error", err)
			return nil, errors.Wrap(err, "failed to list objects")
		}

		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
	}

	slog.Info("s3_list_complete", "prefix", prefix, "object_count", len(keys))

	return keys, nil
}

// Exists checks if an object exists in S3
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})

	if err != nil {
		if isNotFound(err) {
			slog.Info("s3_object_not_found", "s3_key", key)
			return false, nil
		}
		slog.Error("s3_head_object_failed", "s3_key", key, "error", err)
		return false, errors.Wrap(err, "failed to check object existence")
	}

	slog.Info("s3_object_exists", "s3_key", key)
	return true, nil
}

func isNotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}
