// Package genai is a lightweight facade over the Gemini REST API. It is the
// only package that speaks the provider's wire format; callers deal in
// ordered parts and normalized results.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"imagestudio/internal/infra"
)

// Options controls how the client is configured.
type Options struct {
	APIKey     string
	BaseURL    string
	ImageModel string
	VideoModel string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client submits multi-part payloads to the Gemini API and decodes the
// heterogeneous response shapes into flat part lists.
type Client struct {
	mu         sync.RWMutex
	apiKey     string
	baseURL    string
	imageModel string
	videoModel string
	httpClient *http.Client
	logger     *infra.Logger
}

// Part is one ordered request part: text or inline binary, never both.
type Part struct {
	Text     string
	Data     []byte
	MIMEType string
}

// ResponsePart is one normalized part extracted from a provider response.
type ResponsePart struct {
	Text     string
	Data     []byte
	MIMEType string
	FileURI  string
}

// VideoRequest describes a long-running video generation.
type VideoRequest struct {
	Prompt      string
	Image       []byte
	ImageMIME   string
	AspectRatio string
}

// VideoOperation is the polled state of a long-running video generation.
type VideoOperation struct {
	Name     string
	Done     bool
	VideoURI string
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
	FileData   *geminiFileData   `json:"fileData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiFileData struct {
	MimeType string `json:"mimeType,omitempty"`
	FileURI  string `json:"fileUri,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiPromptFeedback struct {
	BlockReason string `json:"blockReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate     `json:"candidates"`
	PromptFeedback *geminiPromptFeedback `json:"promptFeedback,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Status  string `json:"status,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

type veoInstance struct {
	Prompt string    `json:"prompt"`
	Image  *veoImage `json:"image,omitempty"`
}

type veoImage struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded,omitempty"`
	MimeType           string `json:"mimeType,omitempty"`
}

type veoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type veoPredictRequest struct {
	Instances  []veoInstance  `json:"instances"`
	Parameters *veoParameters `json:"parameters,omitempty"`
}

type veoOperationResponse struct {
	Name     string `json:"name"`
	Done     bool   `json:"done"`
	Response *struct {
		GenerateVideoResponse *struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
	Error *struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error,omitempty"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may pass a
// nil HTTP client; a reusable one with a conservative timeout is created.
func NewClient(opts Options) (*Client, error) {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}

	imageModel := opts.ImageModel
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image"
	}
	videoModel := opts.VideoModel
	if videoModel == "" {
		videoModel = "veo-3.0-generate-001"
	}

	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}

	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		baseURL:    baseURL,
		imageModel: imageModel,
		videoModel: videoModel,
		httpClient: client,
		logger:     logger,
	}, nil
}

// SetAPIKey swaps the credential used for subsequent calls. The credential
// re-selection flow calls this when the user stores a new key.
func (c *Client) SetAPIKey(key string) {
	c.mu.Lock()
	c.apiKey = strings.TrimSpace(key)
	c.mu.Unlock()
}

// HasAPIKey reports whether a credential is currently configured.
func (c *Client) HasAPIKey() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey != ""
}

func (c *Client) key() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiKey
}

// ImageModel returns the configured image model identifier.
func (c *Client) ImageModel() string {
	return c.imageModel
}

// GenerateContent submits the parts in order and returns every text and
// binary part of the first candidate. Part order is preserved end to end so
// positional references in the instruction text stay correct.
func (c *Client) GenerateContent(ctx context.Context, parts []Part) ([]ResponsePart, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no parts to submit")
	}

	wire := make([]geminiPart, 0, len(parts))
	for _, p := range parts {
		if len(p.Data) > 0 {
			wire = append(wire, geminiPart{InlineData: &geminiInlineData{
				MimeType: p.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(p.Data),
			}})
			continue
		}
		if strings.TrimSpace(p.Text) != "" {
			wire = append(wire, geminiPart{Text: p.Text})
		}
	}

	payload := geminiGenerateContentRequest{
		Contents:         []geminiContent{{Role: "user", Parts: wire}},
		GenerationConfig: &geminiGenerationConfig{ResponseModalities: []string{"IMAGE", "TEXT"}},
	}

	var response geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.imageModel))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &response); err != nil {
		return nil, err
	}

	if response.PromptFeedback != nil && response.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("prompt blocked for safety: %s", response.PromptFeedback.BlockReason)
	}

	var out []ResponsePart
	for _, candidate := range response.Candidates {
		reason := strings.ToUpper(candidate.FinishReason)
		if strings.Contains(reason, "SAFETY") || reason == "PROHIBITED_CONTENT" {
			return nil, fmt.Errorf("candidate stopped for safety: %s", candidate.FinishReason)
		}
		for _, part := range candidate.Content.Parts {
			decoded, err := decodePart(part)
			if err != nil {
				return nil, err
			}
			out = append(out, decoded)
		}
		// Only the first candidate carries the result.
		break
	}

	c.logger.Debug().
		Str("model", c.imageModel).
		Int("request_parts", len(wire)).
		Int("response_parts", len(out)).
		Msg("genai: generateContent completed")

	return out, nil
}

// StartVideoGeneration kicks off a long-running video job and returns the
// operation name to poll.
func (c *Client) StartVideoGeneration(ctx context.Context, req VideoRequest) (string, error) {
	instance := veoInstance{Prompt: req.Prompt}
	if len(req.Image) > 0 {
		instance.Image = &veoImage{
			BytesBase64Encoded: base64.StdEncoding.EncodeToString(req.Image),
			MimeType:           req.ImageMIME,
		}
	}
	payload := veoPredictRequest{
		Instances:  []veoInstance{instance},
		Parameters: &veoParameters{AspectRatio: req.AspectRatio},
	}

	var response veoOperationResponse
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.videoModel))
	if err := c.invoke(ctx, http.MethodPost, path, payload, &response); err != nil {
		return "", err
	}
	if response.Name == "" {
		return "", fmt.Errorf("no operation handle returned")
	}

	c.logger.Debug().
		Str("model", c.videoModel).
		Str("operation", response.Name).
		Msg("genai: video generation started")

	return response.Name, nil
}

// PollVideoOperation fetches the current state of a video operation.
func (c *Client) PollVideoOperation(ctx context.Context, name string) (*VideoOperation, error) {
	var response veoOperationResponse
	path := "/" + strings.TrimLeft(name, "/")
	if err := c.invoke(ctx, http.MethodGet, path, nil, &response); err != nil {
		return nil, err
	}
	if response.Error != nil && response.Error.Message != "" {
		return nil, fmt.Errorf("video operation failed: %s", response.Error.Message)
	}

	op := &VideoOperation{Name: name, Done: response.Done}
	if response.Done {
		if response.Response == nil || response.Response.GenerateVideoResponse == nil ||
			len(response.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
			return nil, fmt.Errorf("video operation finished without a sample")
		}
		op.VideoURI = response.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI
	}
	return op, nil
}

// DownloadFile fetches a provider-hosted asset and returns its bytes and
// content type. Relative URIs are resolved against the API base URL.
func (c *Client) DownloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	if key := c.key(); key != "" {
		q := req.URL.Query()
		q.Set("key", key)
		req.URL.RawQuery = q.Encode()
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(resp.Body)
		return nil, "", fmt.Errorf("download file status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read file: %w", err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

func (c *Client) invoke(ctx context.Context, method, path string, payload any, out any) error {
	endpoint := c.baseURL + path
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if key := c.key(); key != "" {
		q := req.URL.Query()
		q.Set("key", key)
		req.URL.RawQuery = q.Encode()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("invoke gemini: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr geminiErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("gemini status %d %s: %s", resp.StatusCode, apiErr.Error.Status, apiErr.Error.Message)
		}
		data, _ := io.ReadAll(resp.Body)
		if len(data) > 0 {
			return fmt.Errorf("gemini status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode gemini response: %w", err)
	}
	return nil
}

func decodePart(part geminiPart) (ResponsePart, error) {
	if part.InlineData != nil && part.InlineData.Data != "" {
		data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return ResponsePart{}, fmt.Errorf("decode inline data: %w", err)
		}
		return ResponsePart{Data: data, MIMEType: part.InlineData.MimeType}, nil
	}
	if part.FileData != nil && part.FileData.FileURI != "" {
		return ResponsePart{FileURI: part.FileData.FileURI, MIMEType: part.FileData.MimeType}, nil
	}
	return ResponsePart{Text: part.Text}, nil
}
