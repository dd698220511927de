package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/george-bobby/app-opencats-sub001/internal/domain"
	"github.com/george-bobby/app-opencats-sub001/internal/repository"
)

type imageView struct{ *Store }

func (v imageView) WithinTx(_ context.Context, fn func(repository.ImageRepository) error) error {
	return fn(v)
}

// FindProductID prefers an id match over a slug match.
func (s *Store) FindProductID(_ context.Context, id int64, slug string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; ok {
		return id, true, nil
	}
	pid, ok := s.slugs[slug]
	return pid, ok, nil
}

func (s *Store) ListVariants(_ context.Context, productID int64) ([]domain.VariantRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.VariantRef
	for _, v := range s.variants {
		if v.ProductID == productID {
			out = append(out, v.VariantRef)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) InsertBlob(_ context.Context, b *domain.Blob) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.blobs {
		if existing.Key == b.Key {
			return 0, fmt.Errorf("insert blob %s: duplicate key value violates unique constraint", b.Key)
		}
	}
	id, err := s.assign(TableBlobs, 0, nil)
	if err != nil {
		return 0, fmt.Errorf("insert blob %s: %w", b.Key, err)
	}
	row := *b
	row.ID = id
	s.blobs[id] = row
	return id, nil
}

func (s *Store) InsertAsset(_ context.Context, a *domain.Asset) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.assign(TableAssets, 0, nil)
	if err != nil {
		return 0, fmt.Errorf("insert asset: %w", err)
	}
	row := *a
	row.ID = id
	s.assets[id] = row
	return id, nil
}

func (s *Store) InsertAttachment(_ context.Context, a *domain.Attachment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.assets[a.RecordID]; !ok {
		return 0, fmt.Errorf("insert attachment: asset %d does not exist", a.RecordID)
	}
	if _, ok := s.blobs[a.BlobID]; !ok {
		return 0, fmt.Errorf("insert attachment: blob %d does not exist", a.BlobID)
	}
	id, err := s.assign(TableAttachments, 0, nil)
	if err != nil {
		return 0, fmt.Errorf("insert attachment: %w", err)
	}
	row := *a
	row.ID = id
	s.attachments[id] = row
	return id, nil
}

// Blobs returns every stored blob ordered by id.
func (s *Store) Blobs() []domain.Blob {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Blob, 0, len(s.blobs))
	for _, id := range keysOf(s.blobs) {
		out = append(out, s.blobs[id])
	}
	return out
}

// Assets returns every stored asset ordered by id.
func (s *Store) Assets() []domain.Asset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Asset, 0, len(s.assets))
	for _, id := range keysOf(s.assets) {
		out = append(out, s.assets[id])
	}
	return out
}

// Attachments returns every stored attachment ordered by id.
func (s *Store) Attachments() []domain.Attachment {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Attachment, 0, len(s.attachments))
	for _, id := range keysOf(s.attachments) {
		out = append(out, s.attachments[id])
	}
	return out
}
