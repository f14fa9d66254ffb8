package accounts

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	errors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

// MaxProfilePictureBytes caps profile picture uploads.
const MaxProfilePictureBytes = 5 << 20

// ImageStore persists profile pictures and returns public URLs for them.
type ImageStore interface {
	Upload(ctx context.Context, ownerID uuid.UUID, contentType string, body io.Reader, size int64) (string, error)
	Delete(ctx context.Context, url string) error
}

// minioAPI narrows *minio.Client so tests can swap a fake in.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error
}

type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}

func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}

func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}

func (w minioClientWrapper) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return w.c.RemoveObject(ctx, bucketName, objectName, opts)
}

// MinioImageStore keeps profile pictures in an object storage bucket.
type MinioImageStore struct {
	api       minioAPI
	bucket    string
	publicURL string
}

// NewMinioImageStore creates the bucket when missing. publicURL is the base
// under which objects are reachable, e.g. https://cdn.example.com.
func NewMinioImageStore(ctx context.Context, client *minio.Client, bucket, publicURL string) (*MinioImageStore, error) {
	return newMinioImageStore(ctx, minioClientWrapper{c: client}, bucket, publicURL)
}

func newMinioImageStore(ctx context.Context, api minioAPI, bucket, publicURL string) (*MinioImageStore, error) {
	s := &MinioImageStore{
		api:       api,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}

	exists, err := api.BucketExists(ctx, bucket)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "failed to check bucket existence")
	}

	if !exists {
		if err := api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, errors.Wrap(err, errors.CategoryOperation, "failed to create bucket")
		}
	}

	return s, nil
}

func (s *MinioImageStore) Upload(ctx context.Context, ownerID uuid.UUID, contentType string, body io.Reader, size int64) (string, error) {
	if size > MaxProfilePictureBytes {
		return "", errors.New("profile picture exceeds size limit", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{"max_bytes": MaxProfilePictureBytes})
	}

	ext := extensionFor(contentType)
	if ext == "" {
		return "", errors.New("unsupported image content type", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{"content_type": contentType})
	}

	key := fmt.Sprintf("avatars/%s/%s%s", ownerID.String(), uuid.NewString(), ext)

	_, err := s.api.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.CategoryOperation, "failed to upload profile picture")
	}

	return fmt.Sprintf("%s/%s/%s", s.publicURL, s.bucket, key), nil
}

// Delete removes the object behind a URL previously returned by Upload.
// URLs that do not point at this store are ignored.
func (s *MinioImageStore) Delete(ctx context.Context, url string) error {
	prefix := s.publicURL + "/" + s.bucket + "/"
	if !strings.HasPrefix(url, prefix) {
		return nil
	}

	key := strings.TrimPrefix(url, prefix)
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.CategoryOperation, "failed to delete profile picture").
			WithMetadata(map[string]any{"key": path.Base(key)})
	}

	return nil
}

func extensionFor(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
