// Package drive stores client documents in an S3-compatible bucket, one
// folder per submission reference.
package drive

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/taxlakay/taxdrop/internal/config"
)

// Drive wraps MinIO/S3 interactions for uploaded documents.
type Drive struct {
	client *minio.Client
	bucket string
	region string
}

// New creates a MinIO client from the Config.
func New(cfg *config.Config) (*Drive, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: cfg.S3UseSSL,
		Region: cfg.S3Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Drive{
		client: client,
		bucket: cfg.DriveBucket,
		region: cfg.S3Region,
	}, nil
}

// EnsureBucket makes sure the document bucket exists before use.
func (d *Drive) EnsureBucket(ctx context.Context) error {
	exists, err := d.client.BucketExists(ctx, d.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", d.bucket, err)
	}
	if !exists {
		if err := d.client.MakeBucket(ctx, d.bucket, minio.MakeBucketOptions{Region: d.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", d.bucket, err)
		}
	}
	return nil
}

// ObjectKey builds the per-reference folder path for one file name.
func ObjectKey(ref, name string) string {
	return fmt.Sprintf("clients/%s/%s", ref, name)
}

// Upload stores one document.
func (d *Drive) Upload(ctx context.Context, objectKey string, reader io.Reader, size int64, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	if _, err := d.client.PutObject(ctx, d.bucket, objectKey, reader, size, opts); err != nil {
		return fmt.Errorf("upload object: %w", err)
	}
	return nil
}

// Download fetches the stored document bytes, used by the worker when
// attaching files to the owner email.
func (d *Drive) Download(ctx context.Context, objectKey string) ([]byte, error) {
	obj, err := d.client.GetObject(ctx, d.bucket, objectKey, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}
	return buf, nil
}

// PresignURL returns a signed GET URL for a stored document so the owner
// email can link to the originals without making the bucket public.
func (d *Drive) PresignURL(ctx context.Context, objectKey string, ttl time.Duration) (string, error) {
	u, err := d.client.PresignedGetObject(ctx, d.bucket, objectKey, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign object: %w", err)
	}
	return u.String(), nil
}
