// Package storage persists capsule photos in the Firebase Storage bucket.
package storage

import (
	"context"
	"fmt"
	"strings"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// BlobStore uploads and deletes opaque photo blobs. Paths are bucket-relative
// object names; Upload returns a public download URL that is stored on the
// capsule record.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte) (string, error)
	Delete(ctx context.Context, url string) error
	DeleteAll(ctx context.Context, prefix string) error
}

// FirebaseBlobStore implements BlobStore on the app's default Firebase
// Storage bucket.
type FirebaseBlobStore struct {
	bucket     *gcs.BucketHandle
	bucketName string
}

// NewFirebaseBlobStore creates a FirebaseBlobStore for the given bucket.
func NewFirebaseBlobStore(bucket *gcs.BucketHandle, bucketName string) *FirebaseBlobStore {
	return &FirebaseBlobStore{bucket: bucket, bucketName: bucketName}
}

func (s *FirebaseBlobStore) urlPrefix() string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/", s.bucketName)
}

// Upload writes data to the given object path and returns its download URL.
func (s *FirebaseBlobStore) Upload(ctx context.Context, path string, data []byte) (string, error) {
	w := s.bucket.Object(path).NewWriter(ctx)
	w.ContentType = "image/jpeg"
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("uploading %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("uploading %s: %w", path, err)
	}
	return s.urlPrefix() + path, nil
}

// Delete removes the object behind a previously returned download URL.
func (s *FirebaseBlobStore) Delete(ctx context.Context, url string) error {
	path := strings.TrimPrefix(url, s.urlPrefix())
	if path == url {
		return fmt.Errorf("url %q does not belong to bucket %s", url, s.bucketName)
	}
	return s.bucket.Object(path).Delete(ctx)
}

// DeleteAll removes every object under the given path prefix. The first
// error is returned after the iteration finishes.
func (s *FirebaseBlobStore) DeleteAll(ctx context.Context, prefix string) error {
	it := s.bucket.Objects(ctx, &gcs.Query{Prefix: prefix})
	var firstErr error
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return err
		}
		if err := s.bucket.Object(attrs.Name).Delete(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
