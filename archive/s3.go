package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/copperline-io/ferry/iox"
	"github.com/copperline-io/ferry/types"
)

// S3Config holds configuration for the S3 archive backend.
type S3Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, uses default chain if empty).
	Region string
	// Endpoint is a custom S3 endpoint URL for S3-compatible providers
	// (e.g. Cloudflare R2, MinIO). Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not subdomain).
	// Required by most S3-compatible providers (R2, MinIO, etc.).
	UsePathStyle bool
}

// Validate checks that required S3 configuration is present.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("S3 bucket is required")
	}
	return nil
}

// ParseS3Path parses a path in format "bucket/prefix" or "bucket".
func ParseS3Path(p string) (bucket, prefix string) {
	parts := strings.SplitN(p, "/", 2)
	bucket = parts[0]
	if len(parts) > 1 {
		prefix = parts[1]
	}
	return bucket, prefix
}

// s3Putter is the slice of the S3 API the archiver uses. Tests inject a
// recorder.
type s3Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, opts ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3 is an Archiver uploading artifacts to an S3 bucket.
// Uses the AWS SDK default credential chain (env vars, shared config, IAM role).
type S3 struct {
	client s3Putter
	config S3Config
}

// NewS3 creates an S3 archiver.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsConfig, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	return &S3{
		client: s3.NewFromConfig(awsConfig, s3Opts...),
		config: cfg,
	}, nil
}

// newS3WithClient is the test constructor.
func newS3WithClient(client s3Putter, cfg S3Config) *S3 {
	return &S3{client: client, config: cfg}
}

// Store implements Archiver.
func (a *S3) Store(ctx context.Context, meta *types.RunMeta, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open artifact %s: %w", filePath, err)
	}
	defer iox.DiscardClose(f)

	key := Key(meta, filePath)
	if a.config.Prefix != "" {
		key = path.Join(a.config.Prefix, key)
	}

	contentType := "text/csv"
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &a.config.Bucket,
		Key:         &key,
		Body:        f,
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s to s3://%s/%s: %w", filePath, a.config.Bucket, key, err)
	}
	return fmt.Sprintf("s3://%s/%s", a.config.Bucket, key), nil
}

// Close implements Archiver.
func (a *S3) Close() error { return nil }

var _ Archiver = (*S3)(nil)
