package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage keeps objects on disk under Dir and serves them below PublicURL.
type LocalStorage struct {
	dir       string
	publicURL string
}

func NewLocalStorage(dir, publicURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &LocalStorage{dir: dir, publicURL: strings.TrimSuffix(publicURL, "/")}, nil
}

// Dir is the root directory, for mounting a static file route.
func (s *LocalStorage) Dir() string {
	return s.dir
}

func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	key, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	target := s.path(key)
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return "", err
	}

	// Write to a temp file first so readers never see a partial object.
	tmp, err := os.CreateTemp(filepath.Dir(target), ".upload-*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	reader := r
	if size > 0 {
		reader = io.LimitReader(r, size+1)
	}
	written, err := io.Copy(tmp, reader)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", err
	}
	if size > 0 && written > size {
		return "", ErrFileTooLarge
	}

	if err := os.Rename(tmp.Name(), target); err != nil {
		return "", err
	}
	return s.URL(key), nil
}

func (s *LocalStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	key, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return f, err
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	key, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (s *LocalStorage) URL(key string) string {
	return s.publicURL + "/" + key
}

func (s *LocalStorage) path(key string) string {
	return filepath.Join(s.dir, filepath.FromSlash(key))
}
