package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/mkaykisiz/Geku/internal/config"
)

// ObjectStore is the contract the rest of the system relies on: put returns
// an opaque location, delete takes one back.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, location string) error
}

type objectAPI interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

// Bucket stores objects in one S3-compatible bucket. Locations are the
// public URL of the object.
type Bucket struct {
	api       objectAPI
	bucket    string
	publicURL string
}

func NewBucket(cfg config.Config) (*Bucket, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKeyID, cfg.S3SecretAccessKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return newBucket(client, cfg.S3Bucket, cfg.S3PublicURL), nil
}

func newBucket(api objectAPI, bucket, publicURL string) *Bucket {
	if publicURL != "" && !strings.HasSuffix(publicURL, "/") {
		publicURL += "/"
	}
	return &Bucket{api: api, bucket: bucket, publicURL: publicURL}
}

func (b *Bucket) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	_, err := b.api.PutObject(ctx, b.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	return b.publicURL + key, nil
}

func (b *Bucket) Delete(ctx context.Context, location string) error {
	key, ok := b.keyOf(location)
	if !ok {
		return fmt.Errorf("delete %s: location is outside bucket %s", location, b.bucket)
	}
	if err := b.api.RemoveObject(ctx, b.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (b *Bucket) keyOf(location string) (string, bool) {
	if !strings.HasPrefix(location, b.publicURL) {
		return "", false
	}
	key := strings.TrimPrefix(location, b.publicURL)
	return key, key != ""
}
