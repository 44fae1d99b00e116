package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/errors"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ repository.BlobStore = (*LocalStore)(nil)
	_ repository.BlobStore = (*S3Store)(nil)
	_ repository.BlobStore = (*GCSStore)(nil)
)

func TestLocalStore_PutGetDelete(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", nil)
	require.NoError(t, err)
	ctx := context.Background()

	url, err := store.Put(ctx, "backups/backup_1.json", []byte(`{"a":1}`), repository.PutOptions{ContentType: "application/json"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "file://"))
	assert.True(t, strings.HasSuffix(url, "/backups/backup_1.json"))

	data, err := store.Get(ctx, "backups/backup_1.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	require.NoError(t, store.Delete(ctx, "backups/backup_1.json"))
	_, err = store.Get(ctx, "backups/backup_1.json")
	assert.ErrorIs(t, err, errors.ErrBlobNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "backups/backup_1.json"), errors.ErrBlobNotFound)
}

func TestLocalStore_PublicBaseURL(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "https://files.example.test/", nil)
	require.NoError(t, err)

	url, err := store.Put(context.Background(), "backups/b.json", []byte("{}"), repository.PutOptions{})
	require.NoError(t, err)
	assert.Equal(t, "https://files.example.test/backups/b.json", url)
}

func TestLocalStore_RejectsEscapingPaths(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "", nil)
	require.NoError(t, err)

	_, err = store.Put(context.Background(), "../outside.json", []byte("{}"), repository.PutOptions{})
	assert.True(t, errors.IsValidation(err))
}

type fakeS3 struct {
	s3iface.S3API
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}}
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	f.objects[*in.Key] = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	if _, ok := f.objects[*in.Key]; !ok {
		return nil, awserr.New("NotFound", "not found", nil)
	}
	return &s3.HeadObjectOutput{}, nil
}

func (f *fakeS3) DeleteObjectWithContext(ctx aws.Context, in *s3.DeleteObjectInput, _ ...request.Option) (*s3.DeleteObjectOutput, error) {
	delete(f.objects, *in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestS3Store_RoundTripAndNotFound(t *testing.T) {
	fake := newFakeS3()
	store := NewS3StoreWithClient(fake, "console-backups", 0, nil)
	ctx := context.Background()

	url, err := store.Put(ctx, "backups/b.json", []byte("{}"), repository.PutOptions{
		ContentType:        "application/json",
		ContentDisposition: `attachment; filename="b.json"`,
	})
	require.NoError(t, err)
	assert.Equal(t, "s3://console-backups/backups/b.json", url)
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "application/json", aws.StringValue(fake.puts[0].ContentType))
	assert.Equal(t, `attachment; filename="b.json"`, aws.StringValue(fake.puts[0].ContentDisposition))

	data, err := store.Get(ctx, "backups/b.json")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(data))

	require.NoError(t, store.Delete(ctx, "backups/b.json"))
	_, err = store.Get(ctx, "backups/b.json")
	assert.ErrorIs(t, err, errors.ErrBlobNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "backups/b.json"), errors.ErrBlobNotFound)
}

func TestIsS3NotFound(t *testing.T) {
	assert.True(t, isS3NotFound(awserr.New(s3.ErrCodeNoSuchKey, "x", nil)))
	assert.True(t, isS3NotFound(fmt.Errorf("wrapped: %w", awserr.New("NotFound", "x", nil))))
	assert.False(t, isS3NotFound(awserr.New("AccessDenied", "x", nil)))
	assert.False(t, isS3NotFound(fmt.Errorf("plain")))
}
