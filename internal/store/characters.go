package store

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"imagestudio/internal/domain"
)

// Characters is the persistent roster of saved characters. Mutations are
// written through to storage before they return.
type Characters struct {
	mu      sync.Mutex
	storage Storage
	logger  zerolog.Logger
	items   []domain.Character
	loaded  bool
}

// NewCharacters wires the roster to its storage backend.
func NewCharacters(storage Storage, logger zerolog.Logger) *Characters {
	return &Characters{storage: storage, logger: logger}
}

func (c *Characters) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	data, err := c.storage.Load(ctx, KeyCharacters)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		var items []domain.Character
		if err := json.Unmarshal(data, &items); err != nil {
			// A corrupt snapshot must not brick the roster. Start empty; the
			// next save overwrites it.
			c.logger.Warn().Err(err).Msg("characters snapshot unreadable, starting empty")
		} else {
			c.items = items
		}
	}
	c.loaded = true
	return nil
}

func (c *Characters) persist(ctx context.Context) error {
	data, err := json.Marshal(c.items)
	if err != nil {
		return err
	}
	return c.storage.Save(ctx, KeyCharacters, data)
}

// List returns every saved character, oldest first.
func (c *Characters) List(ctx context.Context) ([]domain.Character, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return nil, err
	}
	out := make([]domain.Character, len(c.items))
	copy(out, c.items)
	return out, nil
}

// Get returns the character with the given id.
func (c *Characters) Get(ctx context.Context, id string) (domain.Character, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return domain.Character{}, err
	}
	for _, ch := range c.items {
		if ch.ID == id {
			return ch, nil
		}
	}
	return domain.Character{}, domain.NewError(domain.ErrorNotFound, "character not found", nil)
}

// Create validates the character, assigns it a fresh id and persists it.
func (c *Characters) Create(ctx context.Context, ch domain.Character) (domain.Character, error) {
	if err := ch.Validate(); err != nil {
		return domain.Character{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return domain.Character{}, err
	}
	ch.ID = uuid.NewString()
	c.items = append(c.items, ch)
	if err := c.persist(ctx); err != nil {
		c.items = c.items[:len(c.items)-1]
		return domain.Character{}, err
	}
	return ch, nil
}

// Update replaces the stored character with the same id. A missing id is a
// not-found error, never an implicit create.
func (c *Characters) Update(ctx context.Context, ch domain.Character) (domain.Character, error) {
	if err := ch.Validate(); err != nil {
		return domain.Character{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return domain.Character{}, err
	}
	for i, existing := range c.items {
		if existing.ID != ch.ID {
			continue
		}
		c.items[i] = ch
		if err := c.persist(ctx); err != nil {
			c.items[i] = existing
			return domain.Character{}, err
		}
		return ch, nil
	}
	return domain.Character{}, domain.NewError(domain.ErrorNotFound, "character not found", nil)
}

// Delete removes the character with the given id. Deleting an unknown id is
// a no-op. Callers are responsible for cascading the removal into live
// sessions.
func (c *Characters) Delete(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return err
	}
	for i, existing := range c.items {
		if existing.ID != id {
			continue
		}
		retained := make([]domain.Character, 0, len(c.items)-1)
		retained = append(retained, c.items[:i]...)
		retained = append(retained, c.items[i+1:]...)
		previous := c.items
		c.items = retained
		if err := c.persist(ctx); err != nil {
			c.items = previous
			return err
		}
		return nil
	}
	return nil
}
