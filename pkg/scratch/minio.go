package scratch

import (
	"context"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
)

type minioStore struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewMinio returns a Store backed by an S3-compatible bucket, so any worker
// instance can resume a transfer another instance staged before crashing.
func NewMinio(ctx context.Context, client *minio.Client, bucket, prefix string) (Store, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, err
		}
	}
	return &minioStore{
		client: client,
		bucket: bucket,
		prefix: prefix,
	}, nil
}

func (m *minioStore) object(name string) string {
	return path.Join(m.prefix, path.Base(name))
}

func (m *minioStore) Save(ctx context.Context, name string, r io.Reader) (int64, error) {
	info, err := m.client.PutObject(ctx, m.bucket, m.object(name), r, -1, minio.PutObjectOptions{
		ContentType: "video/mp4",
	})
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

func (m *minioStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.object(name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	// GetObject is lazy; surface missing objects here instead of mid-upload.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, err
	}
	return obj, nil
}

func (m *minioStore) Remove(ctx context.Context, name string) error {
	return m.client.RemoveObject(ctx, m.bucket, m.object(name), minio.RemoveObjectOptions{})
}
