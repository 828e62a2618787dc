package gcs

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	"mathsnap-backend/internal/shared/storage/object"
	"mathsnap-backend/internal/shared/util"
)

// Store implements object.Store using Google Cloud Storage.
type Store struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
}

// New creates a new GCS-backed object store using application default credentials.
func New(ctx context.Context, bucket, prefix string) (object.Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket is required")
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}

	return &Store{
		bucket: client.Bucket(bucket),
		name:   bucket,
		prefix: strings.Trim(strings.TrimSpace(prefix), "/"),
	}, nil
}

// Save uploads the reader contents to GCS under the given folder.
func (s *Store) Save(ctx context.Context, folder string, fileName string, r io.Reader) (string, error) {
	sanitizedName, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}

	storageKey := path.Join(folder, sanitizedName)
	objectName := s.objectName(storageKey)

	writer := s.bucket.Object(objectName).NewWriter(ctx)
	writer.ContentType = "image/jpeg"

	if _, err := io.Copy(writer, r); err != nil {
		_ = writer.Close()
		return "", fmt.Errorf("write gcs object %s: %w", objectName, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize gcs object %s: %w", objectName, err)
	}

	return storageKey, nil
}

// Open downloads a stored object for reading.
func (s *Store) Open(ctx context.Context, id string) (io.ReadCloser, error) {
	reader, err := s.bucket.Object(s.objectName(id)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("read gcs object %s: %w", s.objectName(id), err)
	}
	return reader, nil
}

// Link returns the gs:// reference recorded in the ledger row.
func (s *Store) Link(id string) string {
	return fmt.Sprintf("gs://%s/%s", s.name, s.objectName(id))
}

func (s *Store) objectName(key string) string {
	key = strings.TrimLeft(key, "/")
	if s.prefix == "" {
		return key
	}
	return s.prefix + "/" + key
}

var _ object.Store = (*Store)(nil)
