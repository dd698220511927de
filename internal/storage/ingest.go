package storage

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/pkg/httpclient"
)

// Fetcher performs the HTTP GET for an image URL.
type Fetcher interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// StoredFile describes a downloaded blob.
type StoredFile struct {
	Key         string
	Filename    string
	ContentType string
	ByteSize    int64
	Checksum    string
}

// Ingestor downloads remote files straight into a Storage.
type Ingestor struct {
	store   Storage
	fetcher Fetcher
}

// NewIngestor creates an Ingestor.
func NewIngestor(store Storage, fetcher Fetcher) *Ingestor {
	return &Ingestor{store: store, fetcher: fetcher}
}

// Store returns the underlying storage.
func (i *Ingestor) Store() Storage {
	return i.store
}

// DownloadAndStore streams the body of rawURL into storage under key. HTTP
// and storage errors are returned as is; the caller owns the retry policy.
func (i *Ingestor) DownloadAndStore(ctx context.Context, rawURL, key string) (*StoredFile, error) {
	resp, err := i.fetcher.Get(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	if err := httpclient.CheckResponse(resp); err != nil {
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	contentType := ContentType(resp.Header.Get("Content-Type"))
	res, err := i.store.Upload(ctx, &UploadInput{Key: key, ContentType: contentType, Data: resp.Body})
	if err != nil {
		return nil, err
	}

	return &StoredFile{
		Key:         key,
		Filename:    FilenameFromURL(rawURL, key, contentType),
		ContentType: contentType,
		ByteSize:    res.ByteSize,
		Checksum:    res.Checksum,
	}, nil
}

// ContentType normalizes a Content-Type header, defaulting to image/jpeg
// when it is absent or not an image type.
func ContentType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil || !strings.HasPrefix(mt, "image/") {
		return domain.DefaultContentType
	}
	return mt
}

// FilenameFromURL returns the last path segment of rawURL. When it has no
// extension the name is synthesized from key and the content type.
func FilenameFromURL(rawURL, key, contentType string) string {
	name := ""
	if u, err := url.Parse(rawURL); err == nil {
		name = path.Base(u.Path)
	}
	if name == "." || name == "/" || !strings.Contains(name, ".") {
		return key + "." + extensionFor(contentType)
	}
	return name
}

func extensionFor(contentType string) string {
	if strings.Contains(contentType, "jpeg") {
		return "jpg"
	}
	if i := strings.LastIndex(contentType, "/"); i >= 0 && i < len(contentType)-1 {
		return contentType[i+1:]
	}
	return "jpg"
}
