package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FilesystemStore keeps blobs as files under a single directory.
type FilesystemStore struct {
	dir string
}

// NewFilesystemStore creates the upload directory if needed.
func NewFilesystemStore(dir string) (*FilesystemStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FilesystemStore{dir: dir}, nil
}

// resolve keeps paths inside the storage directory. Storage paths are
// generated names, never caller input, but the check costs nothing.
func (s *FilesystemStore) resolve(path string) (string, error) {
	clean := filepath.Clean(path)
	if strings.Contains(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid storage path %q", path)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *FilesystemStore) Save(ctx context.Context, path string, r io.Reader) (int64, error) {
	full, err := s.resolve(path)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return 0, fmt.Errorf("create blob directory: %w", err)
	}

	f, err := os.Create(full)
	if err != nil {
		return 0, fmt.Errorf("create blob: %w", err)
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		os.Remove(full)
		return 0, fmt.Errorf("write blob: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(full)
		return 0, fmt.Errorf("close blob: %w", err)
	}

	return n, nil
}

func (s *FilesystemStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := s.resolve(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		return nil, fmt.Errorf("open blob: %w", err)
	}

	return f, nil
}

func (s *FilesystemStore) Exists(ctx context.Context, path string) (bool, error) {
	full, err := s.resolve(path)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(full)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat blob: %w", err)
}

func (s *FilesystemStore) Remove(ctx context.Context, path string) error {
	full, err := s.resolve(path)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove blob: %w", err)
	}

	return nil
}
