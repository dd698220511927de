package disk

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/george-bobby/app-opencats-sub001/internal/storage"
)

// Storage implements storage.Storage on a local directory using the sharded
// Active Storage disk layout.
type Storage struct {
	root string
}

// New creates a disk storage rooted at root.
func New(root string) *Storage {
	return &Storage{root: root}
}

// PathForKey returns the absolute file path for key.
func (s *Storage) PathForKey(key string) (string, error) {
	rel, err := storage.RelativePath(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, rel), nil
}

// Upload streams input.Data to the key's path. Bytes go to a temporary file
// that is renamed into place once fully written.
func (s *Storage) Upload(ctx context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	path, err := s.PathForKey(input.Key)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create shard directory: %w", err)
	}

	tmp := path + ".part"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create blob file: %w", err)
	}

	size, sum, err := storage.Copy(f, contextReader{ctx: ctx, r: input.Data})
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("write blob %s: %w", input.Key, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return nil, fmt.Errorf("finalize blob %s: %w", input.Key, err)
	}

	return &storage.UploadResult{
		Key:      input.Key,
		Path:     path,
		ByteSize: size,
		Checksum: sum,
	}, nil
}

// Delete removes the blob file for key. A missing file is not an error.
func (s *Storage) Delete(_ context.Context, key string) error {
	path, err := s.PathForKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", key, err)
	}
	return nil
}
