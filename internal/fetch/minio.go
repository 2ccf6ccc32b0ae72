package fetch

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
)

// MinioStore adapts a MinIO client to the ObjectStore interface.
type MinioStore struct {
	client *minio.Client
}

// NewMinioStore wraps the given client.
func NewMinioStore(client *minio.Client) *MinioStore {
	return &MinioStore{client: client}
}

func (s *MinioStore) PresignedGet(ctx context.Context, bucket, object string, expiry time.Duration) (string, error) {
	signed, err := s.client.PresignedGetObject(ctx, bucket, object, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}

	return signed.String(), nil
}

func (s *MinioStore) Download(ctx context.Context, bucket, object string) (io.ReadCloser, error) {
	obj, err := s.client.GetObject(ctx, bucket, object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}

	// GetObject is lazy; a stat forces the first request so missing objects
	// fail here instead of at read time.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, fmt.Errorf("stat object: %w", err)
	}

	return obj, nil
}
