package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes images to the local filesystem. Development fallback when
// GCS is not configured; files are served under baseURL by the router.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		dir = "./uploads"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalStore{dir: dir, baseURL: "/uploads/"}, nil
}

// Dir returns the directory files are written to, for the static file route.
func (s *LocalStore) Dir() string { return s.dir }

func (s *LocalStore) Upload(ctx context.Context, key, contentType string, data []byte) (string, error) {
	// Keys contain slashes (users/<id>/...); flatten for a single-level dir.
	name := strings.ReplaceAll(key, "/", "_")
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0644); err != nil {
		return "", fmt.Errorf("upload %s: %w", key, err)
	}
	return s.baseURL + name, nil
}

func (s *LocalStore) Delete(ctx context.Context, url string) error {
	if !strings.HasPrefix(url, s.baseURL) {
		return nil
	}
	name := strings.TrimPrefix(url, s.baseURL)
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
