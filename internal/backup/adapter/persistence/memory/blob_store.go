package memory

import (
	"context"
	"sync"

	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/errors"
)

type storedBlob struct {
	data []byte
	opts repository.PutOptions
}

// BlobStore keeps blobs in memory and hands out memory:// URLs.
type BlobStore struct {
	mu          sync.Mutex
	blobs       map[string]storedBlob
	putFailures int
	putErr      error
	deleteErr   error
	putAttempts int
}

func NewBlobStore() *BlobStore {
	return &BlobStore{blobs: make(map[string]storedBlob)}
}

// FailNextPuts makes the next n Put calls return err.
func (b *BlobStore) FailNextPuts(n int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putFailures, b.putErr = n, err
}

// FailDeletes makes Delete return err until cleared with nil.
func (b *BlobStore) FailDeletes(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deleteErr = err
}

func (b *BlobStore) Put(ctx context.Context, path string, data []byte, opts repository.PutOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.putAttempts++
	if b.putFailures > 0 {
		b.putFailures--
		return "", b.putErr
	}
	b.blobs[path] = storedBlob{data: append([]byte(nil), data...), opts: opts}
	return "memory://" + path, nil
}

func (b *BlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	blob, ok := b.blobs[path]
	if !ok {
		return nil, errors.ErrBlobNotFound
	}
	return append([]byte(nil), blob.data...), nil
}

func (b *BlobStore) Delete(ctx context.Context, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	if _, ok := b.blobs[path]; !ok {
		return errors.ErrBlobNotFound
	}
	delete(b.blobs, path)
	return nil
}

// Options returns the PutOptions stored with path.
func (b *BlobStore) Options(path string) (repository.PutOptions, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	blob, ok := b.blobs[path]
	return blob.opts, ok
}

// Len returns the number of stored blobs.
func (b *BlobStore) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

// PutAttempts counts every Put call, failed ones included.
func (b *BlobStore) PutAttempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.putAttempts
}
