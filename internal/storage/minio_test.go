package storage

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/require"

	"github.com/riaaa16/ai-consultant/internal/config"
)

type fakeStore struct {
	objects map[string][]byte
	ctype   string
	err     error
}

func (f *fakeStore) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	if f.err != nil {
		return minio.UploadInfo{}, f.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	if int64(len(data)) != size {
		return minio.UploadInfo{}, errors.New("size mismatch")
	}
	f.objects[bucket+"/"+key] = data
	f.ctype = opts.ContentType
	return minio.UploadInfo{Bucket: bucket, Key: key, Size: size}, nil
}

func (f *fakeStore) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (*minio.Object, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeStore) ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo {
	ch := make(chan minio.ObjectInfo, len(f.objects))
	for k := range f.objects {
		ch <- minio.ObjectInfo{Key: k[len(bucket)+1:]}
	}
	close(ch)
	return ch
}

func TestMirrorPutUsesBackupPrefix(t *testing.T) {
	fs := &fakeStore{objects: map[string][]byte{}}
	m := &MinIOMirror{client: fs, bucket: "content"}

	require.NoError(t, m.Put(context.Background(), "site.json.20240101T000000Z.bak", []byte(`{"a":1}`)))
	require.Equal(t, []byte(`{"a":1}`), fs.objects["content/backups/site.json.20240101T000000Z.bak"])
	require.Equal(t, "application/json", fs.ctype)

	names, err := m.List(context.Background(), "site.json.")
	require.NoError(t, err)
	require.Equal(t, []string{"site.json.20240101T000000Z.bak"}, names)
}

func TestMirrorPutStripsDirectories(t *testing.T) {
	fs := &fakeStore{objects: map[string][]byte{}}
	m := &MinIOMirror{client: fs, bucket: "b"}
	require.NoError(t, m.Put(context.Background(), "../../etc/site.json.bak", []byte("x")))
	require.Contains(t, fs.objects, "b/backups/site.json.bak")
}

func TestMirrorPutError(t *testing.T) {
	m := &MinIOMirror{client: &fakeStore{err: errors.New("offline")}, bucket: "b"}
	err := m.Put(context.Background(), "site.json.x.bak", []byte("x"))
	require.ErrorContains(t, err, "offline")
}

func TestNewMinIOMirrorRequiresEndpoint(t *testing.T) {
	_, err := NewMinIOMirror(config.MinIOConfig{})
	require.Error(t, err)
}
