package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/george-bobby/app-opencats-sub001/internal/storage"
)

// fileEntry stores an uploaded blob in memory.
type fileEntry struct {
	ContentType string
	Data        []byte
}

// Storage implements storage.Storage using an in-memory map. It is used for
// dry runs and tests.
type Storage struct {
	mu    sync.RWMutex
	files map[string]*fileEntry
}

// New creates a new in-memory storage instance.
func New() *Storage {
	return &Storage{files: make(map[string]*fileEntry)}
}

// Upload reads the blob into memory.
func (s *Storage) Upload(_ context.Context, input *storage.UploadInput) (*storage.UploadResult, error) {
	rel, err := storage.RelativePath(input.Key)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	size, sum, err := storage.Copy(&buf, input.Data)
	if err != nil {
		return nil, fmt.Errorf("write blob %s: %w", input.Key, err)
	}

	s.mu.Lock()
	s.files[input.Key] = &fileEntry{ContentType: input.ContentType, Data: buf.Bytes()}
	s.mu.Unlock()

	return &storage.UploadResult{Key: input.Key, Path: rel, ByteSize: size, Checksum: sum}, nil
}

// Delete removes a blob from memory.
func (s *Storage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.files[key]; !exists {
		return fmt.Errorf("file not found: %s", key)
	}
	delete(s.files, key)
	return nil
}

// Get returns a copy of the stored bytes.
func (s *Storage) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.files[key]
	if !ok {
		return nil, false
	}
	return bytes.Clone(e.Data), true
}

// Len returns the number of stored blobs.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
