// Package storage defines the pluggable snapshot storage backend contract
// and the STORAGE_MODE-selected adapters that implement it.
package storage

import (
	"context"
	"fmt"
	"time"
)

// Object is a captured snapshot file awaiting persistence.
type Object struct {
	LocalPath  string
	DeviceID   string
	PayloadID  string
	CapturedAt time.Time
	Day        string // YYYY-MM-DD, device-timezone-adjusted upstream
}

// Result is the outcome of a successful Store call.
type Result struct {
	Storage     string
	StoredURI   string
	DeleteLocal bool
}

// Adapter persists a captured Object to a storage backend. Implementations
// must not delete the local file themselves — DeleteLocal on the returned
// Result tells the caller whether it is safe to do so.
type Adapter interface {
	Name() string
	Store(ctx context.Context, obj Object) (Result, error)
}

// Config selects and parameterizes a storage Adapter via STORAGE_MODE and
// its mode-specific settings.
type Config struct {
	Mode        string // local | s3 | gcs | azblob | b2
	DeleteLocal bool

	LocalDir string

	S3Bucket string
	S3Prefix string
	S3Region string

	GCSBucket string
	GCSPrefix string

	AzureContainer   string
	AzurePrefix      string
	AzureAccountName string
	AzureAccountKey  string

	B2Bucket    string
	B2Prefix    string
	B2AccountID string
	B2AppKey    string
}

// New builds the Adapter selected by cfg.Mode.
func New(ctx context.Context, cfg Config) (Adapter, error) {
	switch cfg.Mode {
	case "", "local":
		return NewLocal(cfg.LocalDir, cfg.DeleteLocal), nil
	case "s3":
		return NewS3(ctx, cfg)
	case "gcs":
		return NewGCS(ctx, cfg)
	case "azblob":
		return NewAzblob(cfg)
	case "b2":
		return NewB2(ctx, cfg)
	default:
		return nil, fmt.Errorf("storage: unknown STORAGE_MODE %q", cfg.Mode)
	}
}

func objectKey(prefix string, obj Object) string {
	key := obj.Day + "/" + obj.DeviceID + "/" + obj.PayloadID + ".jpg"
	if prefix != "" {
		return prefix + "/" + key
	}
	return key
}
