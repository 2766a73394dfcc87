package blob

import (
	"bytes"
	"context"
	"fmt"

	"google.golang.org/api/option"
	storage "google.golang.org/api/storage/v1"
)

// GCSStore uploads blobs to a Google Cloud Storage bucket using application
// default credentials. Objects are addressed as <folder>/<name> and exposed
// through the public storage.googleapis.com URL.
type GCSStore struct {
	bucket  string
	objects *storage.ObjectsService
}

// NewGCSStore builds a store bound to the given bucket.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket must not be empty")
	}
	svc, err := storage.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage service: %w", err)
	}
	return &GCSStore{bucket: bucket, objects: svc.Objects}, nil
}

// Save uploads the buffer and returns its public URL.
func (s *GCSStore) Save(ctx context.Context, data []byte, folder, name string) (string, error) {
	object := fmt.Sprintf("%s/%s", folder, name)
	_, err := s.objects.
		Insert(s.bucket, &storage.Object{Name: object, ContentType: "image/jpeg"}).
		Media(bytes.NewReader(data)).
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("upload object %s: %w", object, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object), nil
}

var _ Store = (*GCSStore)(nil)
