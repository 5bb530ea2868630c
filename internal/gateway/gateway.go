// Package gateway is the single seam to the external generation capability.
// It turns composed prompt material into one multi-part provider call,
// extracts the result, and normalizes failures into the domain taxonomy.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"imagestudio/internal/domain"
	"imagestudio/internal/prompt"
	"imagestudio/internal/providers/genai"
)

// ContentClient is the narrow provider surface the gateway drives.
type ContentClient interface {
	GenerateContent(ctx context.Context, parts []genai.Part) ([]genai.ResponsePart, error)
	StartVideoGeneration(ctx context.Context, req genai.VideoRequest) (string, error)
	PollVideoOperation(ctx context.Context, name string) (*genai.VideoOperation, error)
}

// DefaultSafetySuffix hardens a retried prompt after a failed first attempt.
const DefaultSafetySuffix = "Avoid sensitive, explicit or unsafe content."

// Config tunes the retry/fallback policy and the video polling task.
// Retries is 0 (single attempt, failures surface immediately) or 1 (one
// retry with the safety suffix appended). The default is 0.
type Config struct {
	Retries         int
	SafetySuffix    string
	PollInterval    time.Duration
	PollMaxAttempts int
}

func (c Config) withDefaults() Config {
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Retries > 1 {
		c.Retries = 1
	}
	if c.SafetySuffix == "" {
		c.SafetySuffix = DefaultSafetySuffix
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 10 * time.Second
	}
	if c.PollMaxAttempts <= 0 {
		c.PollMaxAttempts = 60
	}
	return c
}

// Gateway exposes the five generation operations plus async video.
type Gateway struct {
	client ContentClient
	cfg    Config
	logger zerolog.Logger
}

// New constructs a gateway around the provider client.
func New(client ContentClient, cfg Config, logger zerolog.Logger) *Gateway {
	return &Gateway{client: client, cfg: cfg.withDefaults(), logger: logger}
}

// EditImage applies the user's instruction to the target image, optionally
// anchored to a character and an additional element image.
func (g *Gateway) EditImage(ctx context.Context, req prompt.EditRequest) (*domain.GenerationResult, error) {
	return g.run(ctx, prompt.ComposeEdit(req))
}

// GenerateImage produces a fresh image from text, optionally anchored to a
// character.
func (g *Gateway) GenerateImage(ctx context.Context, req prompt.GenerateRequest) (*domain.GenerationResult, error) {
	return g.run(ctx, prompt.ComposeGenerate(req))
}

// UpscaleImage re-renders the target at higher fidelity without changing it.
func (g *Gateway) UpscaleImage(ctx context.Context, target domain.ImageBlob) (*domain.GenerationResult, error) {
	return g.run(ctx, prompt.ComposeUpscale(target))
}

// GenerateCharacterPortrait produces a canonical portrait from a description
// and up to five reference images.
func (g *Gateway) GenerateCharacterPortrait(ctx context.Context, description string, references []domain.ImageBlob) (*domain.GenerationResult, error) {
	return g.run(ctx, prompt.ComposeCharacterPortrait(description, references))
}

// GenerateOutfit re-dresses the character while preserving identity.
func (g *Gateway) GenerateOutfit(ctx context.Context, character domain.Character, outfitPrompt string, faithfulness int) (*domain.GenerationResult, error) {
	return g.run(ctx, prompt.ComposeOutfit(character, outfitPrompt, faithfulness))
}

// GenerateVideo starts a long-running video generation and polls the
// operation handle until it completes, the attempt budget runs out, or the
// context is cancelled. The returned result carries the playable reference;
// thumbnail derivation is the caller's concern.
func (g *Gateway) GenerateVideo(ctx context.Context, userPrompt string, seed *domain.ImageBlob, aspectRatio string) (*domain.GenerationResult, error) {
	composed := prompt.ComposeVideo(userPrompt, seed, aspectRatio)

	req := genai.VideoRequest{
		Prompt:      strings.TrimSpace(composed.Instruction + "\n" + composed.UserPrompt),
		AspectRatio: prompt.NormalizeAspectRatio(aspectRatio),
	}
	if seed != nil && !seed.Empty() {
		req.Image = seed.Data
		req.ImageMIME = seed.MIMEType
	}

	operation, err := g.client.StartVideoGeneration(ctx, req)
	if err != nil {
		return nil, Classify(err)
	}

	g.logger.Info().
		Str("operation", operation).
		Dur("interval", g.cfg.PollInterval).
		Int("max_attempts", g.cfg.PollMaxAttempts).
		Msg("gateway: polling video operation")

	for attempt := 1; attempt <= g.cfg.PollMaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, domain.NewError(domain.ErrorTransient, "video generation cancelled", ctx.Err())
		case <-time.After(g.cfg.PollInterval):
		}

		op, err := g.client.PollVideoOperation(ctx, operation)
		if err != nil {
			return nil, Classify(err)
		}
		if !op.Done {
			continue
		}
		if op.VideoURI == "" {
			return nil, domain.NewError(domain.ErrorUnknown, "video operation finished without a playable reference", nil)
		}
		return &domain.GenerationResult{VideoRef: op.VideoURI}, nil
	}

	return nil, domain.NewError(domain.ErrorTransient,
		fmt.Sprintf("video generation did not finish within %d poll attempts", g.cfg.PollMaxAttempts), nil)
}

// run submits one composed request, applying the configured retry policy
// when the first attempt yields no image.
func (g *Gateway) run(ctx context.Context, composed prompt.Composed) (*domain.GenerationResult, error) {
	result, err := g.attempt(ctx, composed)
	if err == nil {
		return result, nil
	}

	if g.cfg.Retries == 0 {
		return nil, Classify(err)
	}

	g.logger.Warn().Err(err).Msg("gateway: first attempt failed, retrying with hardened prompt")

	hardened := composed
	hardened.UserPrompt = strings.TrimSpace(composed.UserPrompt + " " + g.cfg.SafetySuffix)
	result, retryErr := g.attempt(ctx, hardened)
	if retryErr == nil {
		return result, nil
	}
	return nil, domain.NewError(domain.ErrorContentPolicy,
		"generation failed twice; a safety or content block is the likely cause", retryErr)
}

// attempt makes exactly one provider call: images in composed order, then the
// instruction text, then the raw user prompt as the final part. A response
// with no binary part is a failure, never a partial success.
func (g *Gateway) attempt(ctx context.Context, composed prompt.Composed) (*domain.GenerationResult, error) {
	parts := make([]genai.Part, 0, len(composed.Images)+2)
	for _, img := range composed.Images {
		parts = append(parts, genai.Part{Data: img.Blob.Data, MIMEType: img.Blob.MIMEType})
	}
	if strings.TrimSpace(composed.Instruction) != "" {
		parts = append(parts, genai.Part{Text: composed.Instruction})
	}
	if strings.TrimSpace(composed.UserPrompt) != "" {
		parts = append(parts, genai.Part{Text: composed.UserPrompt})
	}

	response, err := g.client.GenerateContent(ctx, parts)
	if err != nil {
		return nil, err
	}

	result := &domain.GenerationResult{}
	for _, part := range response {
		if len(part.Data) > 0 && result.ImageData == nil {
			result.ImageData = part.Data
			result.MIMEType = part.MIMEType
			continue
		}
		if part.Text != "" && result.NarrativeText == "" {
			result.NarrativeText = part.Text
		}
	}
	if len(result.ImageData) == 0 {
		return nil, fmt.Errorf("response contained no image part")
	}
	if result.MIMEType == "" {
		result.MIMEType = domain.DefaultImageMIME
	}
	return result, nil
}
