// Package store persists characters, gallery entries and provider
// credentials. Collections are loaded whole, mutated in memory and written
// back synchronously, so every mutation survives a process restart.
package store

import "context"

// Storage keys. One key per collection.
const (
	KeyCharacters  = "characters.json"
	KeyGallery     = "gallery.json"
	KeyCredentials = "credentials.json"
)

// Storage is the persistence seam the stores write through. Load returns
// (nil, nil) when the key has never been saved.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
}
