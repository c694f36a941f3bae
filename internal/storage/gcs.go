package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	gcstorage "cloud.google.com/go/storage"
)

// GCSAdapter uploads snapshots to a Google Cloud Storage bucket.
type GCSAdapter struct {
	bucket      string
	prefix      string
	client      *gcstorage.Client
	deleteLocal bool
}

// NewGCS builds a GCSAdapter using application-default credentials.
func NewGCS(ctx context.Context, cfg Config) (*GCSAdapter, error) {
	if cfg.GCSBucket == "" {
		return nil, fmt.Errorf("storage: gcs mode requires a bucket")
	}
	client, err := gcstorage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: gcs client: %w", err)
	}
	return &GCSAdapter{bucket: cfg.GCSBucket, prefix: cfg.GCSPrefix, client: client, deleteLocal: cfg.DeleteLocal}, nil
}

func (a *GCSAdapter) Name() string { return "gcs" }

func (a *GCSAdapter) Store(ctx context.Context, obj Object) (Result, error) {
	f, err := os.Open(obj.LocalPath)
	if err != nil {
		return Result{}, fmt.Errorf("storage: open %s: %w", obj.LocalPath, err)
	}
	defer f.Close()

	key := objectKey(a.prefix, obj)
	w := a.client.Bucket(a.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "image/jpeg"

	if _, err := io.Copy(w, f); err != nil {
		w.Close()
		return Result{}, fmt.Errorf("storage: gcs write: %w", err)
	}
	if err := w.Close(); err != nil {
		return Result{}, fmt.Errorf("storage: gcs close: %w", err)
	}

	return Result{
		Storage:     a.Name(),
		StoredURI:   fmt.Sprintf("gs://%s/%s", a.bucket, key),
		DeleteLocal: a.deleteLocal,
	}, nil
}
