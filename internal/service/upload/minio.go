package upload

import (
	"bytes"
	"context"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/sahaay-health/sahaay/backend/internal/config"
	"github.com/sahaay-health/sahaay/backend/pkg/log"
)

// MinIOStore writes uploads to an object storage bucket.
type MinIOStore struct {
	client *minio.Client
	bucket string
}

// NewMinIOStore connects to MinIO and makes sure the bucket exists.
func NewMinIOStore(ctx context.Context, cfg config.MinIOConfig) (*MinIOStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.BucketName, err)
	}
	if !exists {
		log.Infof("bucket %q does not exist, creating", cfg.BucketName)
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.BucketName, err)
		}
	}

	return &MinIOStore{client: client, bucket: cfg.BucketName}, nil
}

// Put uploads data as <sessionID>/<uuid><ext>.
func (s *MinIOStore) Put(ctx context.Context, sessionID, filename string, data []byte) (string, error) {
	key, err := ObjectKey(sessionID, filename)
	if err != nil {
		return "", err
	}
	ext, _ := Extension(filename)

	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: allowedExtensions[ext],
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return key, nil
}

// NewStore picks the backend named in cfg.
func NewStore(ctx context.Context, cfg config.UploadConfig) (Store, error) {
	switch cfg.Backend {
	case config.BackendMinIO:
		return NewMinIOStore(ctx, cfg.MinIO)
	case config.BackendLocal, "":
		return NewLocalStore(cfg.Dir), nil
	default:
		return nil, fmt.Errorf("%w: unknown upload backend %q", config.ErrConfiguration, cfg.Backend)
	}
}
