package filesystem

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/flarexio/docrag/blob"
)

func NewBlobStore(basePath string) (blob.Store, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}

	return &blobStore{basePath}, nil
}

type blobStore struct {
	basePath string
}

func (s *blobStore) fullPath(path string) (string, error) {
	if !filepath.IsLocal(path) {
		return "", blob.ErrInvalidPath
	}

	return filepath.Join(s.basePath, path), nil
}

func (s *blobStore) Put(ctx context.Context, path string, data []byte) error {
	fullPath, err := s.fullPath(path)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(fullPath), os.ModePerm); err != nil {
		return err
	}

	return os.WriteFile(fullPath, data, 0o644)
}

func (s *blobStore) Get(ctx context.Context, path string) ([]byte, error) {
	fullPath, err := s.fullPath(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, blob.ErrNotFound
		}

		return nil, err
	}

	return data, nil
}

func (s *blobStore) Delete(ctx context.Context, path string) (bool, error) {
	fullPath, err := s.fullPath(path)
	if err != nil {
		return false, err
	}

	if err := os.Remove(fullPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, err
	}

	return true, nil
}

func (s *blobStore) Type() string {
	return "local"
}
