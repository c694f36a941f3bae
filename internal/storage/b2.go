package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Backblaze/blazer/b2"
)

// B2Adapter uploads snapshots to a Backblaze B2 bucket.
type B2Adapter struct {
	bucketName  string
	prefix      string
	bucket      *b2.Bucket
	deleteLocal bool
}

// NewB2 builds a B2Adapter, authenticating with an account ID and
// application key.
func NewB2(ctx context.Context, cfg Config) (*B2Adapter, error) {
	if cfg.B2Bucket == "" {
		return nil, fmt.Errorf("storage: b2 mode requires a bucket")
	}
	client, err := b2.NewClient(ctx, cfg.B2AccountID, cfg.B2AppKey)
	if err != nil {
		return nil, fmt.Errorf("storage: b2 client: %w", err)
	}
	bucket, err := client.Bucket(ctx, cfg.B2Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: b2 bucket %q: %w", cfg.B2Bucket, err)
	}
	return &B2Adapter{bucketName: cfg.B2Bucket, prefix: cfg.B2Prefix, bucket: bucket, deleteLocal: cfg.DeleteLocal}, nil
}

func (a *B2Adapter) Name() string { return "b2" }

func (a *B2Adapter) Store(ctx context.Context, obj Object) (Result, error) {
	f, err := os.Open(obj.LocalPath)
	if err != nil {
		return Result{}, fmt.Errorf("storage: open %s: %w", obj.LocalPath, err)
	}
	defer f.Close()

	key := objectKey(a.prefix, obj)
	w := a.bucket.Object(key).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return Result{}, fmt.Errorf("storage: b2 write: %w", err)
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("storage: b2 close: %w", err)
	}

	return Result{
		Storage:     a.Name(),
		StoredURI:   fmt.Sprintf("b2://%s/%s", a.bucketName, key),
		DeleteLocal: a.deleteLocal,
	}, nil
}
