package storage

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Adapter uploads snapshots to an S3-compatible bucket using the AWS SDK
// v2 managed uploader, so a single-part PutObject vs. multipart split is
// handled for us regardless of JPEG size.
type S3Adapter struct {
	bucket      string
	prefix      string
	client      *s3.Client
	deleteLocal bool
}

// NewS3 builds an S3Adapter, resolving credentials and region from the
// default AWS SDK credential chain (environment, shared config, instance
// role) with cfg.S3Region as an override.
func NewS3(ctx context.Context, cfg Config) (*S3Adapter, error) {
	if cfg.S3Bucket == "" {
		return nil, fmt.Errorf("storage: s3 mode requires a bucket")
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.S3Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.S3Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage: loading AWS config: %w", err)
	}

	return &S3Adapter{
		bucket:      cfg.S3Bucket,
		prefix:      cfg.S3Prefix,
		client:      s3.NewFromConfig(awsCfg),
		deleteLocal: cfg.DeleteLocal,
	}, nil
}

func (a *S3Adapter) Name() string { return "s3" }

func (a *S3Adapter) Store(ctx context.Context, obj Object) (Result, error) {
	f, err := os.Open(obj.LocalPath)
	if err != nil {
		return Result{}, fmt.Errorf("storage: open %s: %w", obj.LocalPath, err)
	}
	defer f.Close()

	key := objectKey(a.prefix, obj)
	uploader := manager.NewUploader(a.client)
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      &a.bucket,
		Key:         &key,
		Body:        f,
		ContentType: strPtr("image/jpeg"),
	}); err != nil {
		return Result{}, fmt.Errorf("storage: s3 upload: %w", err)
	}

	return Result{
		Storage:     a.Name(),
		StoredURI:   fmt.Sprintf("s3://%s/%s", a.bucket, key),
		DeleteLocal: a.deleteLocal,
	}, nil
}

func strPtr(s string) *string { return &s }
