package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"imagestudio/internal/domain"
)

// Provider names for stored credentials.
const (
	ProviderGemini = "gemini"
)

type credentialState struct {
	Tokens          map[string]string `json:"tokens"`
	VideoAuthorized bool              `json:"video_authorized"`
}

// Credentials holds provider API keys and the video authorization flag. The
// flag starts optimistic and flips off when the provider rejects a video
// call, so the next submit is blocked up front instead of failing late.
type Credentials struct {
	mu      sync.Mutex
	storage Storage
	logger  zerolog.Logger
	state   credentialState
	loaded  bool
}

// NewCredentials wires the credential store to its storage backend.
func NewCredentials(storage Storage, logger zerolog.Logger) *Credentials {
	return &Credentials{storage: storage, logger: logger}
}

func (c *Credentials) load(ctx context.Context) error {
	if c.loaded {
		return nil
	}
	c.state = credentialState{Tokens: map[string]string{}}
	data, err := c.storage.Load(ctx, KeyCredentials)
	if err != nil {
		return err
	}
	if len(data) > 0 {
		var state credentialState
		if err := json.Unmarshal(data, &state); err != nil {
			c.logger.Warn().Err(err).Msg("credentials snapshot unreadable, starting empty")
		} else {
			if state.Tokens == nil {
				state.Tokens = map[string]string{}
			}
			c.state = state
		}
	}
	c.loaded = true
	return nil
}

func (c *Credentials) persist(ctx context.Context) error {
	data, err := json.Marshal(c.state)
	if err != nil {
		return err
	}
	return c.storage.Save(ctx, KeyCredentials, data)
}

// Token returns the stored key for provider, or "" when none is set.
func (c *Credentials) Token(ctx context.Context, provider string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return "", err
	}
	return c.state.Tokens[provider], nil
}

// GeminiAPIKey returns the stored Gemini key.
func (c *Credentials) GeminiAPIKey(ctx context.Context) (string, error) {
	return c.Token(ctx, ProviderGemini)
}

// SetToken stores a provider key. Setting a fresh key re-arms video
// authorization so the user gets one clean attempt with it.
func (c *Credentials) SetToken(ctx context.Context, provider, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.NewError(domain.ErrorValidation, "api key is required", nil)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return err
	}
	prevToken, hadToken := c.state.Tokens[provider]
	prevAuthorized := c.state.VideoAuthorized
	c.state.Tokens[provider] = token
	c.state.VideoAuthorized = true
	if err := c.persist(ctx); err != nil {
		if hadToken {
			c.state.Tokens[provider] = prevToken
		} else {
			delete(c.state.Tokens, provider)
		}
		c.state.VideoAuthorized = prevAuthorized
		return err
	}
	return nil
}

// VideoAuthorized reports whether video generation is currently believed to
// be authorized for the stored credentials.
func (c *Credentials) VideoAuthorized(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return false, err
	}
	return c.state.VideoAuthorized && c.state.Tokens[ProviderGemini] != "", nil
}

// RevokeVideoAuthorization flips the flag off after the provider rejected a
// video call with an authorization-class error.
func (c *Credentials) RevokeVideoAuthorization(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.load(ctx); err != nil {
		return err
	}
	if !c.state.VideoAuthorized {
		return nil
	}
	c.state.VideoAuthorized = false
	if err := c.persist(ctx); err != nil {
		c.state.VideoAuthorized = true
		return err
	}
	c.logger.Warn().Msg("video authorization revoked after provider rejection")
	return nil
}
