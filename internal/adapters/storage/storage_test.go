package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berez-app/berez/backend/pkg/config"
)

func TestLocalStore_PutDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads/")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, "a.jpg", strings.NewReader("jpeg"), 4, "image/jpeg"))
	data, err := os.ReadFile(filepath.Join(dir, "a.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, "/uploads/a.jpg", store.URLFor("a.jpg"))

	// keys are never overwritten
	assert.Error(t, store.Put(ctx, "a.jpg", strings.NewReader("x"), 1, "image/jpeg"))

	require.NoError(t, store.Delete(ctx, "a.jpg"))
	_, err = os.Stat(filepath.Join(dir, "a.jpg"))
	assert.True(t, errors.Is(err, os.ErrNotExist))
	require.NoError(t, store.Delete(ctx, "a.jpg"))
}

func TestLocalStore_RejectsTraversalAndShortWrites(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	store, err := NewLocalStore(dir, "/uploads")
	require.NoError(t, err)

	assert.Error(t, store.Put(ctx, "../evil.jpg", strings.NewReader("x"), 1, ""))
	assert.Error(t, store.Put(ctx, "sub/evil.jpg", strings.NewReader("x"), 1, ""))

	assert.Error(t, store.Put(ctx, "short.jpg", strings.NewReader("abc"), 10, ""))
	_, err = os.Stat(filepath.Join(dir, "short.jpg"))
	assert.True(t, errors.Is(err, os.ErrNotExist), "partial file is removed")
}

type fakeS3 struct {
	puts    map[string][]byte
	deleted []string
	failPut bool
}

func (f *fakeS3) Upload(ctx context.Context, in *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	if f.failPut {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	if f.puts == nil {
		f.puts = map[string][]byte{}
	}
	f.puts[*in.Bucket+"/"+*in.Key] = data
	return &manager.UploadOutput{}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.deleted = append(f.deleted, *in.Bucket+"/"+*in.Key)
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.example/" + *in.Bucket + "/" + *in.Key + "?sig"}, nil
}

func (f *fakeS3) Download(ctx context.Context, w io.WriterAt, in *s3.GetObjectInput, _ ...func(*manager.Downloader)) (int64, error) {
	data, ok := f.puts[*in.Bucket+"/"+*in.Key]
	if !ok {
		return 0, &types.NoSuchKey{}
	}
	n, err := w.WriteAt(data, 0)
	return int64(n), err
}

func TestS3Store(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	store := &S3Store{bucket: "photos", prefix: "p/", presignTTL: time.Minute, uploader: fake, deleter: fake, presigner: fake}

	require.NoError(t, store.Put(ctx, "x.png", bytes.NewReader([]byte("png")), 3, "image/png"))
	assert.Equal(t, []byte("png"), fake.puts["photos/p/x.png"])

	require.NoError(t, store.Delete(ctx, "x.png"))
	assert.Equal(t, []string{"photos/p/x.png"}, fake.deleted)

	assert.Equal(t, "https://s3.example/photos/p/x.png?sig", store.URLFor("x.png"))

	fake.failPut = true
	assert.Error(t, store.Put(ctx, "y.png", bytes.NewReader([]byte("png")), 3, "image/png"))
}

func TestSnapshot_RestoreAndPersist(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{}
	local := filepath.Join(t.TempDir(), "fountains.db")
	snap := &Snapshot{bucket: "db", key: "fountains.db", localPath: local, downloader: fake, uploader: fake}

	restored, err := snap.Restore(ctx)
	require.NoError(t, err)
	assert.False(t, restored)

	require.NoError(t, os.WriteFile(local, []byte("sqlite"), 0o644))
	require.NoError(t, snap.Persist(ctx))
	require.NoError(t, os.Remove(local))

	restored, err = snap.Restore(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", string(data))
}

type fakeCloudinary struct {
	uploaded  []string
	destroyed []string
}

func (f *fakeCloudinary) Upload(ctx context.Context, file interface{}, params uploader.UploadParams) (*uploader.UploadResult, error) {
	f.uploaded = append(f.uploaded, params.PublicID)
	return &uploader.UploadResult{PublicID: params.PublicID}, nil
}

func (f *fakeCloudinary) Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error) {
	f.destroyed = append(f.destroyed, params.PublicID)
	return &uploader.DestroyResult{Result: "ok"}, nil
}

func TestCloudinaryStore(t *testing.T) {
	ctx := context.Background()
	fake := &fakeCloudinary{}
	store := &CloudinaryStore{upload: fake, cloudName: "demo", folder: "fountains"}

	require.NoError(t, store.Put(ctx, "abc.jpg", strings.NewReader("x"), 1, "image/jpeg"))
	require.NoError(t, store.Delete(ctx, "abc.jpg"))

	assert.Equal(t, []string{"fountains/abc"}, fake.uploaded)
	assert.Equal(t, []string{"fountains/abc"}, fake.destroyed)
	assert.Equal(t, "https://res.cloudinary.com/demo/image/upload/fountains/abc.jpg", store.URLFor("abc.jpg"))
}

func TestNewBlobStore(t *testing.T) {
	ctx := context.Background()

	store, err := NewBlobStore(ctx, &config.StorageConfig{Driver: "local", LocalDir: t.TempDir(), PublicBaseURL: "/uploads"})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)

	_, err = NewBlobStore(ctx, &config.StorageConfig{Driver: "ftp"})
	assert.Error(t, err)

	_, err = NewBlobStore(ctx, &config.StorageConfig{Driver: "cloudinary"})
	assert.Error(t, err)
}
