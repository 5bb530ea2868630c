package handlers

import (
	"net/http"
	"strings"

	"imagestudio/internal/store"
)

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

// CredentialsStatus reports whether a key is configured and whether video
// generation is currently believed to be authorized.
func (a *App) CredentialsStatus(w http.ResponseWriter, r *http.Request) {
	key, err := a.Credentials.GeminiAPIKey(r.Context())
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	authorized, err := a.Credentials.VideoAuthorized(r.Context())
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"configured":       key != "",
		"video_authorized": authorized,
	})
}

// CredentialsSet stores a new provider key and hands it to the live client,
// so the change takes effect without a restart.
func (a *App) CredentialsSet(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if !a.decode(w, r, &req) {
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if err := a.Credentials.SetToken(r.Context(), store.ProviderGemini, key); err != nil {
		a.domainError(w, r, err)
		return
	}
	if a.KeySink != nil {
		a.KeySink.SetAPIKey(key)
	}
	a.json(w, http.StatusOK, map[string]any{
		"configured":       true,
		"video_authorized": true,
	})
}
