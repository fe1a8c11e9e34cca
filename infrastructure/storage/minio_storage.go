package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var (
	ErrBucketCreationFailed = errors.New("failed to create storage bucket")
	ErrUploadFailed         = errors.New("failed to upload video")
	ErrDeleteFailed         = errors.New("failed to delete video")
	ErrURLGenerationFailed  = errors.New("failed to generate signed URL")
)

// MinIOStorage keeps video objects in an S3-compatible bucket. The bucket is
// checked lazily on first write so startup does not depend on the store.
type MinIOStorage struct {
	client     *minio.Client
	bucketName string

	bucketMu sync.Mutex
	bucketOK   bool
}

// NewMinIOStorage builds the client. Setting region lets presigning work
// without a bucket-location round trip.
func NewMinIOStorage(endpoint, accessKey, secretKey, bucketName, region string, useSSL bool) (*MinIOStorage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &MinIOStorage{client: client, bucketName: bucketName}, nil
}

func (s *MinIOStorage) ensureBucketExists(ctx context.Context) error {
	s.bucketMu.Lock()
	defer s.bucketMu.Unlock()
	if s.bucketOK {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("%w: check bucket existence: %v", ErrBucketCreationFailed, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("%w: create bucket: %v", ErrBucketCreationFailed, err)
		}
	}
	s.bucketOK = true
	return nil
}

func (s *MinIOStorage) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if err := s.ensureBucketExists(ctx); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucketName, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			"Uploaded-At": time.Now().UTC().Format(time.RFC3339),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return nil
}

// SignedURL returns a presigned GET URL. Vendors such as Instagram fetch the
// video themselves, so the URL must not require any other credential.
func (s *MinIOStorage) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%w: empty object key", ErrURLGenerationFailed)
	}
	u, err := s.client.PresignedGetObject(ctx, s.bucketName, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrURLGenerationFailed, err)
	}
	return u.String(), nil
}

func (s *MinIOStorage) Remove(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucketName, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}
