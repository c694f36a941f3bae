package storage

import (
	"context"
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// AzblobAdapter uploads snapshots to an Azure Blob Storage container.
type AzblobAdapter struct {
	container   string
	prefix      string
	client      *azblob.Client
	deleteLocal bool
}

// NewAzblob builds an AzblobAdapter from a shared-key account credential.
func NewAzblob(cfg Config) (*AzblobAdapter, error) {
	if cfg.AzureContainer == "" {
		return nil, fmt.Errorf("storage: azblob mode requires a container")
	}
	if cfg.AzureAccountName == "" || cfg.AzureAccountKey == "" {
		return nil, fmt.Errorf("storage: azblob mode requires account name and key")
	}

	cred, err := azblob.NewSharedKeyCredential(cfg.AzureAccountName, cfg.AzureAccountKey)
	if err != nil {
		return nil, fmt.Errorf("storage: azblob credential: %w", err)
	}
	serviceURL := fmt.Sprintf("https://%s.blob.core.windows.net/", cfg.AzureAccountName)
	client, err := azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: azblob client: %w", err)
	}

	return &AzblobAdapter{container: cfg.AzureContainer, prefix: cfg.AzurePrefix, client: client, deleteLocal: cfg.DeleteLocal}, nil
}

func (a *AzblobAdapter) Name() string { return "azblob" }

func (a *AzblobAdapter) Store(ctx context.Context, obj Object) (Result, error) {
	f, err := os.Open(obj.LocalPath)
	if err != nil {
		return Result{}, fmt.Errorf("storage: open %s: %w", obj.LocalPath, err)
	}
	defer f.Close()

	key := objectKey(a.prefix, obj)
	if _, err := a.client.UploadFile(ctx, a.container, key, f, nil); err != nil {
		return Result{}, fmt.Errorf("storage: azblob upload: %w", err)
	}

	return Result{
		Storage:     a.Name(),
		StoredURI:   fmt.Sprintf("azblob://%s/%s", a.container, key),
		DeleteLocal: a.deleteLocal,
	}, nil
}
