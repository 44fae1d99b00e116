// Package blob holds the BlobStore backends snapshots are uploaded to.
package blob

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"transit-console/internal/backup/domain/repository"
	"transit-console/internal/shared/errors"
	"transit-console/internal/shared/logger"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// S3Config configures an S3 or S3-compatible bucket.
type S3Config struct {
	Bucket     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	PresignTTL time.Duration
}

// S3Store implements repository.BlobStore on S3. Put returns a presigned
// download URL when PresignTTL is set.
type S3Store struct {
	client     s3iface.S3API
	bucket     string
	presignTTL time.Duration
	logger     logger.Logger
}

// NewS3Store opens a session for cfg.
func NewS3Store(cfg S3Config, log logger.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.NewValidationError("s3 bucket is required")
	}
	awsConfig := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}
	// S3-compatible storage (MinIO, Spaces, ...)
	if cfg.Endpoint != "" {
		awsConfig.Endpoint = aws.String(cfg.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}
	return NewS3StoreWithClient(s3.New(sess), cfg.Bucket, cfg.PresignTTL, log), nil
}

// NewS3StoreWithClient wraps an existing client.
func NewS3StoreWithClient(client s3iface.S3API, bucket string, presignTTL time.Duration, log logger.Logger) *S3Store {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &S3Store{
		client:     client,
		bucket:     bucket,
		presignTTL: presignTTL,
		logger:     log.WithComponent("s3_blob_store"),
	}
}

func (s *S3Store) Put(ctx context.Context, path string, data []byte, opts repository.PutOptions) (string, error) {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(path),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		StorageClass:  aws.String(s3.StorageClassStandard),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ContentDisposition != "" {
		input.ContentDisposition = aws.String(opts.ContentDisposition)
	}
	if _, err := s.client.PutObjectWithContext(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, path, err)
	}
	s.logger.WithContext(ctx).Debugf("Uploaded s3://%s/%s (%d bytes)", s.bucket, path, len(data))
	return s.url(path)
}

func (s *S3Store) url(path string) (string, error) {
	if s.presignTTL <= 0 {
		return fmt.Sprintf("s3://%s/%s", s.bucket, path), nil
	}
	req, _ := s.client.GetObjectRequest(&s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	signed, err := req.Presign(s.presignTTL)
	if err != nil {
		return "", fmt.Errorf("failed to presign s3://%s/%s: %w", s.bucket, path, err)
	}
	return signed, nil
}

func (s *S3Store) Get(ctx context.Context, path string) ([]byte, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return nil, s.translate(path, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read s3://%s/%s: %w", s.bucket, path, err)
	}
	return data, nil
}

// Delete checks for the object first since S3 deletes are silent on
// missing keys.
func (s *S3Store) Delete(ctx context.Context, path string) error {
	_, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return s.translate(path, err)
	}
	_, err = s.client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(path),
	})
	if err != nil {
		return s.translate(path, err)
	}
	return nil
}

func (s *S3Store) translate(path string, err error) error {
	if isS3NotFound(err) {
		return fmt.Errorf("s3://%s/%s: %w", s.bucket, path, errors.ErrBlobNotFound)
	}
	return fmt.Errorf("s3://%s/%s: %w", s.bucket, path, err)
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if !stderrors.As(err, &aerr) {
		return false
	}
	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, "NotFound":
		return true
	}
	return false
}
