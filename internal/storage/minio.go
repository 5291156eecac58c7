package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/riaaa16/ai-consultant/internal/config"
)

// BackupPrefix is the object key prefix for mirrored backups.
const BackupPrefix = "backups/"

// objectStore is the subset of *minio.Client the mirror uses.
type objectStore interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error)
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

// MinIOMirror copies content backups to an S3-compatible bucket so they
// survive loss of the content host.
type MinIOMirror struct {
	client objectStore
	bucket string
}

// NewMinIOMirror connects to MinIO and ensures the bucket exists.
func NewMinIOMirror(cfg config.MinIOConfig) (*MinIOMirror, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("minio config missing")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio new: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mc.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
		exist, xerr := mc.BucketExists(ctx, cfg.Bucket)
		if xerr != nil || !exist {
			return nil, fmt.Errorf("minio bucket ensure: %w", err)
		}
	}
	return &MinIOMirror{client: mc, bucket: cfg.Bucket}, nil
}

func key(name string) string { return BackupPrefix + path.Base(name) }

// Put stores one backup under BackupPrefix.
func (m *MinIOMirror) Put(ctx context.Context, name string, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, key(name), bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("minio put %s: %w", name, err)
	}
	return nil
}

// Get returns a ReadCloser for a mirrored backup.
func (m *MinIOMirror) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		return nil, err
	}
	return obj, nil
}

// List returns mirrored backup names starting with prefix.
func (m *MinIOMirror) List(ctx context.Context, prefix string) ([]string, error) {
	out := []string{}
	for info := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Prefix: BackupPrefix + prefix}) {
		if info.Err != nil {
			return nil, info.Err
		}
		out = append(out, path.Base(info.Key))
	}
	return out, nil
}
