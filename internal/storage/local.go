package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Local stores images in a directory on disk. The server mounts that
// directory under baseURL (MEDIA_URL), so key "recipes/x.png" is served at
// baseURL + "recipes/x.png".
type Local struct {
	dir     string
	baseURL string
}

var _ Store = (*Local)(nil)

// NewLocal creates dir if needed. baseURL gets a trailing slash if missing.
func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: creating media dir: %w", err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	return &Local{dir: dir, baseURL: baseURL}, nil
}

// Dir is the root directory, for mounting a file server.
func (l *Local) Dir() string {
	return l.dir
}

func (l *Local) Save(_ context.Context, key string, data []byte, _ string) (string, error) {
	path := filepath.Join(l.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("storage: creating %s: %w", filepath.Dir(key), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: writing %s: %w", key, err)
	}
	return l.baseURL + key, nil
}

func (l *Local) Delete(_ context.Context, url string) error {
	key, ok := strings.CutPrefix(url, l.baseURL)
	if !ok || key == "" || strings.Contains(key, "..") {
		return nil
	}
	err := os.Remove(filepath.Join(l.dir, filepath.FromSlash(key)))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("storage: removing %s: %w", key, err)
	}
	return nil
}
