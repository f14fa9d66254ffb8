package accounts

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMinio struct {
	buckets map[string]bool
	objects map[string][]byte
	removed []string
}

func newFakeMinio(buckets ...string) *fakeMinio {
	f := &fakeMinio{
		buckets: map[string]bool{},
		objects: map[string][]byte{},
	}
	for _, b := range buckets {
		f.buckets[b] = true
	}
	return f
}

func (f *fakeMinio) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return f.buckets[bucketName], nil
}

func (f *fakeMinio) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	f.buckets[bucketName] = true
	return nil
}

func (f *fakeMinio) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return minio.UploadInfo{}, err
	}
	f.objects[bucketName+"/"+objectName] = data
	return minio.UploadInfo{Bucket: bucketName, Key: objectName, Size: objectSize}, nil
}

func (f *fakeMinio) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	delete(f.objects, bucketName+"/"+objectName)
	f.removed = append(f.removed, objectName)
	return nil
}

func TestMinioImageStoreCreatesMissingBucket(t *testing.T) {
	ctx := context.Background()
	api := newFakeMinio()

	_, err := newMinioImageStore(ctx, api, "avatars", "https://cdn.example.com")
	require.NoError(t, err)
	assert.True(t, api.buckets["avatars"])
}

func TestMinioImageStoreUpload(t *testing.T) {
	ctx := context.Background()
	api := newFakeMinio("avatars")

	store, err := newMinioImageStore(ctx, api, "avatars", "https://cdn.example.com/")
	require.NoError(t, err)

	ownerID := uuid.New()
	url, err := store.Upload(ctx, ownerID, "image/png", bytes.NewReader([]byte("png-bytes")), 9)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/avatars/avatars/"+ownerID.String()+"/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)
	assert.Len(t, api.objects, 1)
}

func TestMinioImageStoreUploadRejectsOversize(t *testing.T) {
	ctx := context.Background()
	api := newFakeMinio("avatars")

	store, err := newMinioImageStore(ctx, api, "avatars", "https://cdn.example.com")
	require.NoError(t, err)

	_, err = store.Upload(ctx, uuid.New(), "image/png", bytes.NewReader(nil), MaxProfilePictureBytes+1)
	require.Error(t, err)
	assert.Empty(t, api.objects)
}

func TestMinioImageStoreUploadRejectsUnknownContentType(t *testing.T) {
	ctx := context.Background()
	api := newFakeMinio("avatars")

	store, err := newMinioImageStore(ctx, api, "avatars", "https://cdn.example.com")
	require.NoError(t, err)

	_, err = store.Upload(ctx, uuid.New(), "application/pdf", bytes.NewReader([]byte("%PDF")), 4)
	require.Error(t, err)
}

func TestMinioImageStoreDelete(t *testing.T) {
	ctx := context.Background()
	api := newFakeMinio("avatars")

	store, err := newMinioImageStore(ctx, api, "avatars", "https://cdn.example.com")
	require.NoError(t, err)

	ownerID := uuid.New()
	url, err := store.Upload(ctx, ownerID, "image/jpeg", bytes.NewReader([]byte("jpg")), 3)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, url))
	assert.Empty(t, api.objects)

	// foreign URLs are ignored
	require.NoError(t, store.Delete(ctx, "https://elsewhere.example.com/avatars/x.png"))
}
