package blob

import (
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"
)

// LocalStore implements repository.BlobStore on a local directory.
type LocalStore struct {
	root          string
	publicBaseURL string
	logger        logger.Logger
}

// NewLocalStore stores blobs under root. When publicBaseURL is set, Put
// returns publicBaseURL/<path>; otherwise a file:// URL.
func NewLocalStore(root, publicBaseURL string, log logger.Logger) (*LocalStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve blob directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &LocalStore{
		root:          abs,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        log.WithComponent("local_blob_store"),
	}, nil
}

// resolve maps a slash path inside the store to a file path, refusing
// paths that escape root.
func (l *LocalStore) resolve(path string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(strings.TrimLeft(path, "/")))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", errors.NewValidationError("invalid blob path").WithDetail("path", path)
	}
	return filepath.Join(l.root, clean), nil
}

func (l *LocalStore) Put(ctx context.Context, path string, data []byte, opts repository.PutOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest, err := l.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write backup file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to move backup file into place: %w", err)
	}

	l.logger.WithContext(ctx).Debugf("Stored %s (%d bytes)", dest, len(data))
	if l.publicBaseURL != "" {
		return l.publicBaseURL + "/" + strings.TrimLeft(path, "/"), nil
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(dest)}).String(), nil
}

func (l *LocalStore) Get(ctx context.Context, path string) ([]byte, error) {
	src, err := l.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(src)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, errors.ErrBlobNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup file: %w", err)
	}
	return data, nil
}

func (l *LocalStore) Delete(ctx context.Context, path string) error {
	target, err := l.resolve(path)
	if err != nil {
		return err
	}
	err = os.Remove(target)
	if stderrors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, errors.ErrBlobNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to delete backup file: %w", err)
	}
	return nil
}
