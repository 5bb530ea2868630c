// Package handlers exposes the editing core over a JSON HTTP API.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"imagestudio/internal/domain"
	"imagestudio/internal/infra"
	"imagestudio/internal/middleware"
	"imagestudio/internal/prompt"
	"imagestudio/internal/session"
	"imagestudio/internal/store"
)

// GenerationGateway is the slice of the gateway the handlers drive. The
// concrete gateway satisfies it; tests substitute a stub.
type GenerationGateway interface {
	EditImage(ctx context.Context, req prompt.EditRequest) (*domain.GenerationResult, error)
	GenerateImage(ctx context.Context, req prompt.GenerateRequest) (*domain.GenerationResult, error)
	UpscaleImage(ctx context.Context, target domain.ImageBlob) (*domain.GenerationResult, error)
	GenerateCharacterPortrait(ctx context.Context, description string, references []domain.ImageBlob) (*domain.GenerationResult, error)
	GenerateOutfit(ctx context.Context, character domain.Character, outfitPrompt string, faithfulness int) (*domain.GenerationResult, error)
	GenerateVideo(ctx context.Context, userPrompt string, seed *domain.ImageBlob, aspectRatio string) (*domain.GenerationResult, error)
}

// Thumbnailer derives a poster still for a finished video.
type Thumbnailer interface {
	Thumbnail(ctx context.Context, ref string) (domain.ImageBlob, error)
}

// KeySink receives credential updates so the live provider client picks up a
// new key without a restart.
type KeySink interface {
	SetAPIKey(key string)
	HasAPIKey() bool
}

type App struct {
	Logger      zerolog.Logger
	Config      *infra.Config
	Sessions    *session.Registry
	Characters  *store.Characters
	Gallery     *store.Gallery
	Credentials *store.Credentials
	Gateway     GenerationGateway
	Thumbnailer Thumbnailer
	KeySink     KeySink
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]any{
		"error":   errCode,
		"message": message,
	})
}

func (a *App) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return false
	}
	return true
}

// domainError maps a tagged error onto an HTTP response, attaching the
// localized explanation for the request locale.
func (a *App) domainError(w http.ResponseWriter, r *http.Request, err error) {
	kind := domain.KindOf(err)
	status := statusForKind(kind)
	locale := middleware.LocaleFromContext(r.Context())
	a.json(w, status, map[string]any{
		"error":       string(kind),
		"message":     err.Error(),
		"explanation": explainKind(kind, locale),
	})
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.ErrorValidation, domain.ErrorRead:
		return http.StatusBadRequest
	case domain.ErrorNotFound:
		return http.StatusNotFound
	case domain.ErrorAuthorization:
		return http.StatusUnauthorized
	case domain.ErrorContentPolicy:
		return http.StatusUnprocessableEntity
	case domain.ErrorTransient:
		return http.StatusServiceUnavailable
	case domain.ErrorDecode:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Localized, user-facing explanations per error kind.
var explanations = map[string]map[domain.ErrorKind]string{
	"en": {
		domain.ErrorRead:          "The uploaded file could not be read.",
		domain.ErrorDecode:        "The generated media could not be decoded.",
		domain.ErrorTransient:     "The service is busy. Try again in a moment.",
		domain.ErrorContentPolicy: "The request was declined by the content policy. Adjust the prompt or the images.",
		domain.ErrorAuthorization: "The configured API key was rejected.",
		domain.ErrorNotFound:      "The requested item does not exist.",
		domain.ErrorValidation:    "The request is incomplete or invalid.",
		domain.ErrorUnknown:       "Something went wrong. Try again.",
	},
	"id": {
		domain.ErrorRead:          "Berkas yang diunggah tidak dapat dibaca.",
		domain.ErrorDecode:        "Media yang dihasilkan tidak dapat didekode.",
		domain.ErrorTransient:     "Layanan sedang sibuk. Coba lagi sebentar lagi.",
		domain.ErrorContentPolicy: "Permintaan ditolak oleh kebijakan konten. Sesuaikan prompt atau gambarnya.",
		domain.ErrorAuthorization: "Kunci API yang dikonfigurasi ditolak.",
		domain.ErrorNotFound:      "Item yang diminta tidak ditemukan.",
		domain.ErrorValidation:    "Permintaan tidak lengkap atau tidak valid.",
		domain.ErrorUnknown:       "Terjadi kesalahan. Coba lagi.",
	},
}

func explainKind(kind domain.ErrorKind, locale string) string {
	table, ok := explanations[locale]
	if !ok {
		table = explanations["en"]
	}
	if msg, ok := table[kind]; ok {
		return msg
	}
	return table[domain.ErrorUnknown]
}
