package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore stores images as public-read objects in a Google Cloud Storage
// bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore opens a GCS client. Credentials come from ADC (Cloud Run service
// account / GOOGLE_APPLICATION_CREDENTIALS); set GCS_CREDENTIALS_JSON to pass
// explicit JSON locally.
func NewGCSStore(ctx context.Context) (*GCSStore, error) {
	bucket := os.Getenv("GCS_BUCKET")
	if bucket == "" {
		return nil, errors.New("GCS_BUCKET is required")
	}

	var opts []option.ClientOption
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(credJSON)))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

func (s *GCSStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	wc := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	wc.ContentType = contentType
	wc.Metadata = map[string]string{
		"x-goog-acl": "public-read",
	}
	if _, err := wc.Write(data); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key), nil
}

func (s *GCSStore) Delete(ctx context.Context, url string) error {
	key, ok := s.objectKey(url)
	if !ok {
		log.Printf("storage: skipping delete of foreign url %s", url)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	err := s.client.Bucket(s.bucket).Object(key).Delete(ctx)
	if err == storage.ErrObjectNotExist {
		return nil
	}
	return err
}

// objectKey extracts the object key from a URL previously returned by Upload.
func (s *GCSStore) objectKey(url string) (string, bool) {
	prefix := fmt.Sprintf("https://storage.googleapis.com/%s/", s.bucket)
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}
