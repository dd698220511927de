package storage

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
)

// ChunkSize is the buffer size used when streaming bytes into storage.
const ChunkSize = 8192

// Storage defines the interface for blob storage operations.
type Storage interface {
	// Upload streams a blob under its key and returns its size and checksum.
	Upload(ctx context.Context, input *UploadInput) (*UploadResult, error)

	// Delete removes a blob by its key.
	Delete(ctx context.Context, key string) error
}

// UploadInput holds the parameters for uploading a blob.
type UploadInput struct {
	Key         string
	ContentType string
	Data        io.Reader
}

// UploadResult holds the result of a successful upload.
type UploadResult struct {
	Key      string
	Path     string
	ByteSize int64
	// Checksum is the base64 encoding of the raw MD5 digest.
	Checksum string
}

// GenerateKey returns a random 32 character hex key (128 bits of entropy).
// Keys are not checked against existing blobs.
func GenerateKey() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("generate storage key: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}

// RelativePath returns the sharded location of key: key[0:2]/key[2:4]/key.
func RelativePath(key string) (string, error) {
	if len(key) < 4 {
		return "", fmt.Errorf("storage key too short: %q", key)
	}
	return filepath.Join(key[0:2], key[2:4], key), nil
}

// Copy streams src into dst in ChunkSize chunks while computing the MD5
// digest. It returns the byte count and the base64 checksum.
func Copy(dst io.Writer, src io.Reader) (int64, string, error) {
	digest := md5.New()
	buf := make([]byte, ChunkSize)
	n, err := io.CopyBuffer(io.MultiWriter(dst, digest), src, buf)
	if err != nil {
		return n, "", err
	}
	return n, base64.StdEncoding.EncodeToString(digest.Sum(nil)), nil
}

// Checksum returns the base64 MD5 checksum of r.
func Checksum(r io.Reader) (string, error) {
	_, sum, err := Copy(io.Discard, r)
	return sum, err
}
