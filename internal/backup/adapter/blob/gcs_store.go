package blob

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"

	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore implements repository.BlobStore on a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
	logger logger.Logger
}

// NewGCSStore creates a client for bucket. An empty credentialsFile falls
// back to application default credentials.
func NewGCSStore(ctx context.Context, bucket, credentialsFile string, log logger.Logger) (*GCSStore, error) {
	if bucket == "" {
		return nil, errors.NewValidationError("gcs bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &GCSStore{client: client, bucket: bucket, logger: log.WithComponent("gcs_blob_store")}, nil
}

// Close releases the underlying client.
func (g *GCSStore) Close() error {
	return g.client.Close()
}

func (g *GCSStore) Put(ctx context.Context, path string, data []byte, opts repository.PutOptions) (string, error) {
	w := g.client.Bucket(g.bucket).Object(path).NewWriter(ctx)
	w.ContentType = opts.ContentType
	w.ContentDisposition = opts.ContentDisposition
	w.CacheControl = "no-cache, no-store, must-revalidate"

	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write gs://%s/%s: %w", g.bucket, path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer for gs://%s/%s: %w", g.bucket, path, err)
	}
	g.logger.WithContext(ctx).Debugf("Uploaded gs://%s/%s (%d bytes)", g.bucket, path, len(data))
	return (&url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + g.bucket + "/" + path}).String(), nil
}

func (g *GCSStore) Get(ctx context.Context, path string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, g.translate(path, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", g.bucket, path, err)
	}
	return data, nil
}

func (g *GCSStore) Delete(ctx context.Context, path string) error {
	if err := g.client.Bucket(g.bucket).Object(path).Delete(ctx); err != nil {
		return g.translate(path, err)
	}
	return nil
}

func (g *GCSStore) translate(path string, err error) error {
	if stderrors.Is(err, storage.ErrObjectNotExist) {
		return fmt.Errorf("gs://%s/%s: %w", g.bucket, path, errors.ErrBlobNotFound)
	}
	return fmt.Errorf("gs://%s/%s: %w", g.bucket, path, err)
}
