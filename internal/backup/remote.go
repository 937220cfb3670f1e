package backup

import (
	"context"
	"fmt"
	"path"

	"github.com/minio/minio-go/v6"

	"kagent/internal/config"
)

// Remote is an object store that mirrors local archives.
type Remote interface {
	Upload(ctx context.Context, key, file string) error
	Download(ctx context.Context, key, file string) error
	Remove(ctx context.Context, key string) error
}

const remotePrefix = "kagent-backups"

func remoteKey(archive string) string {
	return path.Join(remotePrefix, archive)
}

// S3 stores archives in an S3-compatible bucket.
type S3 struct {
	client *minio.Client
	bucket string
}

func NewS3(cfg config.ObjectStorage) (*S3, error) {
	c, err := minio.NewWithRegion(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.UseSSL, cfg.Region)
	if err != nil {
		return nil, fmt.Errorf("unable to initialize S3 client: %w", err)
	}
	return &S3{client: c, bucket: cfg.Bucket}, nil
}

func (s *S3) Upload(ctx context.Context, key, file string) error {
	_, err := s.client.FPutObjectWithContext(ctx, s.bucket, key, file, minio.PutObjectOptions{
		ContentType: "application/gzip",
	})
	if err != nil {
		return fmt.Errorf("unable to upload %s to S3: %w", key, err)
	}
	return nil
}

func (s *S3) Download(ctx context.Context, key, file string) error {
	if err := s.client.FGetObjectWithContext(ctx, s.bucket, key, file, minio.GetObjectOptions{}); err != nil {
		return fmt.Errorf("unable to download %s from S3: %w", key, err)
	}
	return nil
}

func (s *S3) Remove(_ context.Context, key string) error {
	if err := s.client.RemoveObject(s.bucket, key); err != nil {
		return fmt.Errorf("unable to remove %s from S3: %w", key, err)
	}
	return nil
}
