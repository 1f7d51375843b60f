// Package archive keeps exported report files, in a Cloud Storage bucket in
// production or a local directory otherwise.
package archive

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
)

// Object describes a stored file.
type Object struct {
	Name string `json:"name"`
	URL  string `json:"url"`
	Size int64  `json:"size"`
}

type Store interface {
	Put(ctx context.Context, name, contentType string, data []byte) (Object, error)
}

// cleanName rejects names that could escape the archive root.
func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid archive object name %q", name)
	}
	return name, nil
}

// LocalStore writes files under Dir and serves them from URLPrefix.
type LocalStore struct {
	Dir       string
	URLPrefix string
}

func NewLocalStore(dir string) *LocalStore {
	if dir == "" {
		dir = "./reports"
	}
	return &LocalStore{Dir: dir, URLPrefix: "/reports"}
}

func (s *LocalStore) Put(_ context.Context, name, _ string, data []byte) (Object, error) {
	name, err := cleanName(name)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return Object{}, fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.Dir, name), data, 0o644); err != nil {
		return Object{}, fmt.Errorf("write archive file: %w", err)
	}
	return Object{Name: name, URL: s.URLPrefix + "/" + url.PathEscape(name), Size: int64(len(data))}, nil
}

// GCSStore writes objects to a Cloud Storage bucket under an optional prefix.
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSStore uses application default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix string) (*GCSStore, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("report bucket required")
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSStore{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

func (s *GCSStore) objectName(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + "/" + name
}

func (s *GCSStore) Put(ctx context.Context, name, contentType string, data []byte) (Object, error) {
	name, err := cleanName(name)
	if err != nil {
		return Object{}, err
	}
	objName := s.objectName(name)
	w := s.client.Bucket(s.bucket).Object(objName).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return Object{}, fmt.Errorf("upload %s: %w", objName, err)
	}
	if err := w.Close(); err != nil {
		return Object{}, fmt.Errorf("finalize %s: %w", objName, err)
	}
	return Object{
		Name: objName,
		URL:  fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objName),
		Size: int64(len(data)),
	}, nil
}

func (s *GCSStore) Close() error {
	return s.client.Close()
}
