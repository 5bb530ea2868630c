package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"imagestudio/internal/domain"
	"imagestudio/internal/prompt"
	"imagestudio/internal/providers/genai"
)

type stubClient struct {
	calls     [][]genai.Part
	responses [][]genai.ResponsePart
	errs      []error

	videoOps   []*genai.VideoOperation
	videoErr   error
	startErr   error
	pollCalls  int
	startCalls int
}

func (s *stubClient) GenerateContent(ctx context.Context, parts []genai.Part) ([]genai.ResponsePart, error) {
	s.calls = append(s.calls, parts)
	idx := len(s.calls) - 1
	var err error
	if idx < len(s.errs) {
		err = s.errs[idx]
	}
	var resp []genai.ResponsePart
	if idx < len(s.responses) {
		resp = s.responses[idx]
	}
	return resp, err
}

func (s *stubClient) StartVideoGeneration(ctx context.Context, req genai.VideoRequest) (string, error) {
	s.startCalls++
	if s.startErr != nil {
		return "", s.startErr
	}
	return "operations/test", nil
}

func (s *stubClient) PollVideoOperation(ctx context.Context, name string) (*genai.VideoOperation, error) {
	if s.videoErr != nil {
		return nil, s.videoErr
	}
	if s.pollCalls >= len(s.videoOps) {
		return &genai.VideoOperation{Name: name}, nil
	}
	op := s.videoOps[s.pollCalls]
	s.pollCalls++
	return op, nil
}

func imagePart(data string) []genai.ResponsePart {
	return []genai.ResponsePart{
		{Data: []byte(data), MIMEType: "image/png"},
		{Text: "here you go"},
	}
}

func newGateway(client ContentClient, cfg Config) *Gateway {
	return New(client, cfg, zerolog.Nop())
}

func TestEditImageSubmitsPartsInComposedOrder(t *testing.T) {
	ref := domain.ImageBlob{Data: []byte("ref"), MIMEType: "image/png"}
	add := domain.ImageBlob{Data: []byte("add"), MIMEType: "image/png"}
	character := &domain.Character{ID: "c", Name: "Mira", Description: "d", ReferenceImage: &ref}

	client := &stubClient{responses: [][]genai.ResponsePart{imagePart("out")}}
	g := newGateway(client, Config{})

	result, err := g.EditImage(context.Background(), prompt.EditRequest{
		UserPrompt:      "make it rain",
		Target:          domain.ImageBlob{Data: []byte("target"), MIMEType: "image/jpeg"},
		Character:       character,
		Faithfulness:    70,
		AdditionalImage: &add,
	})
	if err != nil {
		t.Fatalf("EditImage error: %v", err)
	}
	if string(result.ImageData) != "out" {
		t.Fatalf("image mismatch: %q", result.ImageData)
	}
	if result.NarrativeText != "here you go" {
		t.Fatalf("narrative mismatch: %q", result.NarrativeText)
	}

	parts := client.calls[0]
	if len(parts) != 5 {
		t.Fatalf("expected 5 parts (3 images, instruction, user prompt), got %d", len(parts))
	}
	if string(parts[0].Data) != "ref" || string(parts[1].Data) != "add" || string(parts[2].Data) != "target" {
		t.Fatal("image parts out of order")
	}
	if !strings.Contains(parts[3].Text, "IMAGE #1") {
		t.Fatalf("instruction must precede the user prompt: %q", parts[3].Text)
	}
	if parts[4].Text != "make it rain" {
		t.Fatalf("raw user prompt must be the final part: %q", parts[4].Text)
	}
}

func TestNoImagePartIsFailureNotPartialSuccess(t *testing.T) {
	client := &stubClient{responses: [][]genai.ResponsePart{{{Text: "sorry, cannot help"}}}}
	g := newGateway(client, Config{})

	_, err := g.GenerateImage(context.Background(), prompt.GenerateRequest{UserPrompt: "a cat"})
	if err == nil {
		t.Fatal("expected failure when no binary part is present")
	}
	if domain.KindOf(err) != domain.ErrorUnknown {
		t.Fatalf("expected unknown kind, got %s", domain.KindOf(err))
	}
}

func TestPolicyBNoAutomaticRetry(t *testing.T) {
	client := &stubClient{errs: []error{errors.New("candidate stopped for safety: SAFETY")}}
	g := newGateway(client, Config{Retries: 0})

	_, err := g.GenerateImage(context.Background(), prompt.GenerateRequest{UserPrompt: "x"})
	if len(client.calls) != 1 {
		t.Fatalf("policy B must make exactly one attempt, made %d", len(client.calls))
	}
	if domain.KindOf(err) != domain.ErrorContentPolicy {
		t.Fatalf("expected content policy kind, got %s", domain.KindOf(err))
	}
}

func TestPolicyARetriesOnceWithSafetySuffix(t *testing.T) {
	client := &stubClient{
		errs:      []error{errors.New("response contained no image part"), nil},
		responses: [][]genai.ResponsePart{nil, imagePart("retried")},
	}
	g := newGateway(client, Config{Retries: 1, SafetySuffix: "Keep it family friendly."})

	result, err := g.GenerateImage(context.Background(), prompt.GenerateRequest{UserPrompt: "a dragon"})
	if err != nil {
		t.Fatalf("retry should have succeeded: %v", err)
	}
	if string(result.ImageData) != "retried" {
		t.Fatalf("unexpected image: %q", result.ImageData)
	}
	if len(client.calls) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(client.calls))
	}
	last := client.calls[1][len(client.calls[1])-1]
	if !strings.HasSuffix(last.Text, "Keep it family friendly.") {
		t.Fatalf("retry prompt missing safety suffix: %q", last.Text)
	}
}

func TestPolicyATerminalErrorNamesSafetyBlock(t *testing.T) {
	client := &stubClient{errs: []error{errors.New("no luck"), errors.New("still no luck")}}
	g := newGateway(client, Config{Retries: 1})

	_, err := g.GenerateImage(context.Background(), prompt.GenerateRequest{UserPrompt: "x"})
	if domain.KindOf(err) != domain.ErrorContentPolicy {
		t.Fatalf("expected content policy kind, got %s", domain.KindOf(err))
	}
	if !strings.Contains(err.Error(), "safety") {
		t.Fatalf("terminal error must name safety block as likely cause: %v", err)
	}
}

func TestClassifyTable(t *testing.T) {
	cases := []struct {
		message string
		want    domain.ErrorKind
	}{
		{"gemini status 503 UNAVAILABLE: The model is overloaded", domain.ErrorTransient},
		{"invoke gemini: dial tcp: connection refused", domain.ErrorTransient},
		{"context deadline exceeded", domain.ErrorTransient},
		{"prompt blocked for safety: SAFETY", domain.ErrorContentPolicy},
		{"candidate stopped for safety: PROHIBITED_CONTENT", domain.ErrorContentPolicy},
		{"video operation failed: Requested entity was not found.", domain.ErrorAuthorization},
		{"gemini status 400 INVALID_ARGUMENT: API key not valid", domain.ErrorAuthorization},
		{"something entirely novel", domain.ErrorUnknown},
	}
	for _, tc := range cases {
		got := domain.KindOf(Classify(fmt.Errorf("%s", tc.message)))
		if got != tc.want {
			t.Fatalf("Classify(%q) = %s, want %s", tc.message, got, tc.want)
		}
	}
}

func TestClassifyTransientPassesMessageVerbatim(t *testing.T) {
	err := Classify(errors.New("connection reset by peer"))
	var tagged *domain.Error
	if !errors.As(err, &tagged) {
		t.Fatalf("expected tagged error, got %v", err)
	}
	if tagged.Message != "connection reset by peer" {
		t.Fatalf("transient message must pass through verbatim: %q", tagged.Message)
	}
}

func TestClassifyKeepsTaggedErrors(t *testing.T) {
	original := domain.NewError(domain.ErrorValidation, "prompt is empty", nil)
	if got := Classify(original); got != original {
		t.Fatalf("tagged errors must pass through untouched, got %v", got)
	}
}

func TestGenerateVideoPollsUntilDone(t *testing.T) {
	client := &stubClient{videoOps: []*genai.VideoOperation{
		{Name: "operations/test"},
		{Name: "operations/test"},
		{Name: "operations/test", Done: true, VideoURI: "https://example.com/v.mp4"},
	}}
	g := newGateway(client, Config{PollInterval: time.Millisecond, PollMaxAttempts: 10})

	result, err := g.GenerateVideo(context.Background(), "waves", nil, "16:9")
	if err != nil {
		t.Fatalf("GenerateVideo error: %v", err)
	}
	if result.VideoRef != "https://example.com/v.mp4" {
		t.Fatalf("video ref mismatch: %q", result.VideoRef)
	}
	if client.pollCalls != 3 {
		t.Fatalf("expected 3 polls, got %d", client.pollCalls)
	}
}

func TestGenerateVideoBoundedPolling(t *testing.T) {
	client := &stubClient{}
	g := newGateway(client, Config{PollInterval: time.Millisecond, PollMaxAttempts: 3})

	_, err := g.GenerateVideo(context.Background(), "endless", nil, "16:9")
	if domain.KindOf(err) != domain.ErrorTransient {
		t.Fatalf("exhausted polling should surface as transient, got %v", err)
	}
}

func TestGenerateVideoEntityNotFoundIsAuthorization(t *testing.T) {
	client := &stubClient{videoErr: errors.New("video operation failed: Requested entity was not found.")}
	g := newGateway(client, Config{PollInterval: time.Millisecond, PollMaxAttempts: 3})

	_, err := g.GenerateVideo(context.Background(), "waves", nil, "16:9")
	if domain.KindOf(err) != domain.ErrorAuthorization {
		t.Fatalf("expected authorization kind, got %v", err)
	}
}

func TestGenerateVideoCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := &stubClient{}
	g := newGateway(client, Config{PollInterval: time.Hour, PollMaxAttempts: 3})

	_, err := g.GenerateVideo(ctx, "waves", nil, "16:9")
	if domain.KindOf(err) != domain.ErrorTransient {
		t.Fatalf("cancellation should surface as transient, got %v", err)
	}
}
