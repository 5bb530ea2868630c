package store

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"imagestudio/internal/domain"
)

// Gallery is the persistent, newest-first log of generated artifacts.
type Gallery struct {
	mu      sync.Mutex
	storage Storage
	logger  zerolog.Logger
	entries []domain.GalleryEntry
	loaded  bool
}

// NewGallery wires the gallery to its storage backend.
func NewGallery(storage Storage, logger zerolog.Logger) *Gallery {
	return &Gallery{storage: storage, logger: logger}
}

func (g *Gallery) load(ctx context.Context) error {
	if g.loaded {
		return nil
	}
	data, err := g.storage.Load(ctx, KeyGallery)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		var entries []domain.GalleryEntry
		if err := json.Unmarshal(data, &entries); err != nil {
			g.logger.Warn().Err(err).Msg("gallery snapshot unreadable, starting empty")
		} else {
			g.entries = entries
		}
	}
	g.loaded = true
	return nil
}

func (g *Gallery) persist(ctx context.Context) error {
	data, err := json.Marshal(g.entries)
	if err != nil {
		return err
	}
	return g.storage.Save(ctx, KeyGallery, data)
}

// List returns the gallery, newest first.
func (g *Gallery) List(ctx context.Context) ([]domain.GalleryEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.load(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.GalleryEntry, len(g.entries))
	copy(out, g.entries)
	return out, nil
}

// Get returns the entry with the given id.
func (g *Gallery) Get(ctx context.Context, id string) (domain.GalleryEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.load(ctx); err != nil {
		return domain.GalleryEntry{}, err
	}
	for _, e := range g.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return domain.GalleryEntry{}, domain.NewError(domain.ErrorNotFound, "gallery entry not found", nil)
}

// Append prepends a new entry so the gallery stays newest-first.
func (g *Gallery) Append(ctx context.Context, result domain.GenerationResult) (domain.GalleryEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.load(ctx); err != nil {
		return domain.GalleryEntry{}, err
	}
	entry := domain.GalleryEntry{
		ID:        uuid.NewString(),
		Kind:      result.Kind(),
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	g.entries = append([]domain.GalleryEntry{entry}, g.entries...)
	if err := g.persist(ctx); err != nil {
		g.entries = g.entries[1:]
		return domain.GalleryEntry{}, err
	}
	return entry, nil
}

// ReplaceOrAppend upgrades in place: when an existing entry's image bytes
// equal source, the entry keeps its id and position and only its result is
// replaced. Without a match the result is appended as a new entry.
func (g *Gallery) ReplaceOrAppend(ctx context.Context, source []byte, result domain.GenerationResult) (domain.GalleryEntry, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.load(ctx); err != nil {
		return domain.GalleryEntry{}, err
	}
	for i, existing := range g.entries {
		if !bytes.Equal(existing.Result.ImageData, source) {
			continue
		}
		updated := existing
		updated.Kind = result.Kind()
		updated.Result = result
		g.entries[i] = updated
		if err := g.persist(ctx); err != nil {
			g.entries[i] = existing
			return domain.GalleryEntry{}, err
		}
		return updated, nil
	}

	entry := domain.GalleryEntry{
		ID:        uuid.NewString(),
		Kind:      result.Kind(),
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}
	g.entries = append([]domain.GalleryEntry{entry}, g.entries...)
	if err := g.persist(ctx); err != nil {
		g.entries = g.entries[1:]
		return domain.GalleryEntry{}, err
	}
	return entry, nil
}
