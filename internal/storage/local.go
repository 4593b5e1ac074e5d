package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
)

// LocalStore serves objects from disk. Relative keys resolve under Root for
// writes and against the working directory for reads.
type LocalStore struct {
	Root string
}

// NewLocalStore creates a filesystem store writing under root
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{Root: root}
}

// Head stats the file. The ETag is the SHA-256 of the content so it changes
// whenever the bytes do.
func (s *LocalStore) Head(ctx context.Context, _, key string) (ObjectInfo, error) {
	info, err := os.Stat(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ObjectInfo{}, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
	}
	if info.IsDir() {
		return ObjectInfo{}, fmt.Errorf("%s is a directory", key)
	}

	data, err := s.Get(ctx, "", key)
	if err != nil {
		return ObjectInfo{}, err
	}
	sum := sha256.Sum256(data)

	return ObjectInfo{
		Size:        info.Size(),
		ETag:        hex.EncodeToString(sum[:]),
		ContentType: mime.TypeByExtension(filepath.Ext(key)),
	}, nil
}

// Get reads the whole file
func (s *LocalStore) Get(_ context.Context, _, key string) ([]byte, error) {
	data, err := os.ReadFile(key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// Put writes data atomically under Root and returns the file path
func (s *LocalStore) Put(_ context.Context, _, key string, data []byte, _ string) (string, error) {
	path := filepath.Join(s.Root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("rename %s: %w", path, err)
	}
	return path, nil
}
