package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"imagestudio/internal/domain"
	"imagestudio/internal/prompt"
	"imagestudio/internal/session"
	"imagestudio/internal/transcode"
)

// statusTickInterval is how often the in-flight status message rotates.
const statusTickInterval = 5 * time.Second

type imagePayload struct {
	Data     string `json:"data"`
	MIMEType string `json:"mime_type"`
}

type sessionPatchRequest struct {
	PromptText          *string       `json:"prompt_text,omitempty"`
	Faithfulness        *int          `json:"faithfulness,omitempty"`
	AspectRatio         *string       `json:"aspect_ratio,omitempty"`
	Style               *string       `json:"style,omitempty"`
	Exclusions          *[]string     `json:"exclusions,omitempty"`
	SelectedCharacterID *string       `json:"selected_character_id,omitempty"`
	WorkingImage        *imagePayload `json:"working_image,omitempty"`
	AdditionalImage     *imagePayload `json:"additional_image,omitempty"`
	ClearWorkingImage   bool          `json:"clear_working_image,omitempty"`
	ClearAdditional     bool          `json:"clear_additional_image,omitempty"`
}

type submitRequest struct {
	WithSeed bool `json:"with_seed"`
}

type sessionView struct {
	ID                  string        `json:"id"`
	Mode                session.Mode  `json:"mode"`
	Phase               session.Phase `json:"phase"`
	PromptText          string        `json:"prompt_text"`
	Faithfulness        int           `json:"faithfulness"`
	AspectRatio         string        `json:"aspect_ratio"`
	Style               string        `json:"style,omitempty"`
	Exclusions          []string      `json:"exclusions,omitempty"`
	SelectedCharacterID string        `json:"selected_character_id,omitempty"`
	HasWorkingImage     bool          `json:"has_working_image"`
	HasAdditionalImage  bool          `json:"has_additional_image"`
	StatusMessage       string        `json:"status_message,omitempty"`
	Result              *resultView   `json:"result,omitempty"`
	Error               *errorView    `json:"error,omitempty"`
}

type errorView struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type resultView struct {
	Image         *transcode.Payload `json:"image,omitempty"`
	NarrativeText string             `json:"narrative_text,omitempty"`
	VideoRef      string             `json:"video_ref,omitempty"`
}

func (a *App) sessionView(id string, s session.State) sessionView {
	view := sessionView{
		ID:                  id,
		Mode:                s.Mode,
		Phase:               s.Phase,
		PromptText:          s.PromptText,
		Faithfulness:        s.Faithfulness,
		AspectRatio:         s.AspectRatio,
		Style:               s.Style,
		Exclusions:          s.Exclusions,
		SelectedCharacterID: s.SelectedCharacterID,
		HasWorkingImage:     s.WorkingImage != nil && !s.WorkingImage.Empty(),
		HasAdditionalImage:  s.AdditionalImage != nil && !s.AdditionalImage.Empty(),
	}
	if s.Phase == session.PhaseSubmitting {
		view.StatusMessage = session.StatusMessage(s)
	}
	if s.CurrentResult != nil {
		rv := &resultView{
			NarrativeText: s.CurrentResult.NarrativeText,
			VideoRef:      s.CurrentResult.VideoRef,
		}
		if len(s.CurrentResult.ImageData) > 0 {
			if payload, err := transcode.Encode(s.CurrentResult.ImageData, s.CurrentResult.MIMEType); err == nil {
				rv.Image = &payload
			}
		}
		view.Result = rv
	}
	if s.ErrorState != nil {
		view.Error = &errorView{
			Error:   string(s.ErrorState.Kind),
			Message: s.ErrorState.Message,
		}
	}
	return view
}

func (a *App) SessionCreate(w http.ResponseWriter, r *http.Request) {
	id, state := a.Sessions.Create()
	a.json(w, http.StatusCreated, a.sessionView(id, state))
}

func (a *App) SessionGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := a.Sessions.Get(id)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionView(id, state))
}

func (a *App) SessionPatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req sessionPatchRequest
	if !a.decode(w, r, &req) {
		return
	}

	var workingImage, additionalImage *domain.ImageBlob
	if req.WorkingImage != nil {
		blob, err := transcode.Decode(req.WorkingImage.Data, req.WorkingImage.MIMEType)
		if err != nil {
			a.domainError(w, r, err)
			return
		}
		workingImage = &blob
	}
	if req.AdditionalImage != nil {
		blob, err := transcode.Decode(req.AdditionalImage.Data, req.AdditionalImage.MIMEType)
		if err != nil {
			a.domainError(w, r, err)
			return
		}
		additionalImage = &blob
	}

	state, err := a.Sessions.Mutate(id, func(s *session.State) {
		if req.PromptText != nil {
			s.PromptText = *req.PromptText
		}
		if req.Faithfulness != nil {
			s.Faithfulness = *req.Faithfulness
		}
		if req.AspectRatio != nil {
			s.AspectRatio = prompt.NormalizeAspectRatio(*req.AspectRatio)
		}
		if req.Style != nil {
			s.Style = *req.Style
		}
		if req.Exclusions != nil {
			s.Exclusions = *req.Exclusions
		}
		if req.SelectedCharacterID != nil {
			s.SelectedCharacterID = *req.SelectedCharacterID
		}
		if workingImage != nil {
			s.WorkingImage = workingImage
		} else if req.ClearWorkingImage {
			s.WorkingImage = nil
		}
		if additionalImage != nil {
			s.AdditionalImage = additionalImage
		} else if req.ClearAdditional {
			s.AdditionalImage = nil
		}
	})
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionView(id, state))
}

func (a *App) SessionSwitchMode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req struct {
		Mode session.Mode `json:"mode"`
	}
	if !a.decode(w, r, &req) {
		return
	}
	switch req.Mode {
	case session.ModeEdit, session.ModeGenerate, session.ModeVideo:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unknown mode")
		return
	}
	state, _, err := a.Sessions.Apply(id, session.Event{Type: session.EventSwitchMode, Mode: req.Mode})
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.sessionView(id, state))
}

// SessionSubmit runs one full generation round trip: validate through the
// state machine, call the gateway for the session's mode, then settle. The
// call is synchronous; a ticker rotates the status message while it runs.
func (a *App) SessionSubmit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req submitRequest
	if r.ContentLength > 0 && !a.decode(w, r, &req) {
		return
	}

	// Video authorization is re-read from the credential store so a revoked
	// key blocks the submit up front.
	authorized, err := a.Credentials.VideoAuthorized(r.Context())
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if _, err := a.Sessions.Mutate(id, func(s *session.State) {
		s.VideoAuthorized = authorized
	}); err != nil {
		a.domainError(w, r, err)
		return
	}

	state, effects, err := a.Sessions.Apply(id, session.Event{Type: session.EventSubmit, WithSeed: req.WithSeed})
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if !hasEffect(effects, session.EffectCallGateway) {
		a.json(w, http.StatusOK, a.sessionView(id, state))
		return
	}

	stopTicker := a.startStatusTicker(id)
	result, genErr := a.generate(r.Context(), state, req.WithSeed)
	stopTicker()

	if genErr != nil {
		a.settleError(id, genErr)
		final, _ := a.Sessions.Get(id)
		a.json(w, statusForKind(domain.KindOf(genErr)), a.sessionView(id, final))
		return
	}

	final, effects, err := a.Sessions.Apply(id, session.Event{Type: session.EventSettleSuccess, Result: result})
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if hasEffect(effects, session.EffectAppendGallery) {
		if _, err := a.Gallery.Append(r.Context(), *result); err != nil {
			a.Logger.Error().Err(err).Msg("append gallery entry")
		}
	}
	a.json(w, http.StatusOK, a.sessionView(id, final))
}

// generate runs the gateway operation for the session's mode.
func (a *App) generate(ctx context.Context, s session.State, withSeed bool) (*domain.GenerationResult, error) {
	character, err := a.resolveCharacter(ctx, s.SelectedCharacterID)
	if err != nil {
		return nil, err
	}

	switch s.Mode {
	case session.ModeEdit:
		return a.Gateway.EditImage(ctx, prompt.EditRequest{
			UserPrompt:      s.PromptText,
			Target:          *s.WorkingImage,
			Character:       character,
			Faithfulness:    s.Faithfulness,
			AdditionalImage: s.AdditionalImage,
			Style:           s.Style,
			Exclusions:      s.Exclusions,
		})

	case session.ModeGenerate:
		return a.Gateway.GenerateImage(ctx, prompt.GenerateRequest{
			UserPrompt:   s.PromptText,
			AspectRatio:  s.AspectRatio,
			Character:    character,
			Faithfulness: s.Faithfulness,
			Style:        s.Style,
			Exclusions:   s.Exclusions,
		})

	case session.ModeVideo:
		var seed *domain.ImageBlob
		if withSeed {
			seed = s.WorkingImage
		}
		result, err := a.Gateway.GenerateVideo(ctx, s.PromptText, seed, s.AspectRatio)
		if err != nil {
			if domain.KindOf(err) == domain.ErrorAuthorization {
				if revokeErr := a.Credentials.RevokeVideoAuthorization(ctx); revokeErr != nil {
					a.Logger.Error().Err(revokeErr).Msg("revoke video authorization")
				}
			}
			return nil, err
		}
		// Derive the gallery poster. A video without a thumbnail is still a
		// success; the decode failure is logged and the result ships bare.
		if a.Thumbnailer != nil {
			poster, thumbErr := a.Thumbnailer.Thumbnail(ctx, result.VideoRef)
			if thumbErr != nil {
				a.Logger.Warn().Err(thumbErr).Msg("derive video thumbnail")
			} else {
				result.ImageData = poster.Data
				result.MIMEType = poster.MIMEType
			}
		}
		return result, nil

	default:
		return nil, domain.NewError(domain.ErrorValidation, "unknown session mode", nil)
	}
}

func (a *App) resolveCharacter(ctx context.Context, id string) (*domain.Character, error) {
	if id == "" {
		return nil, nil
	}
	character, err := a.Characters.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &character, nil
}

func (a *App) settleError(id string, genErr error) {
	var tagged *domain.Error
	if !errors.As(genErr, &tagged) {
		tagged = domain.NewError(domain.KindOf(genErr), genErr.Error(), genErr)
	}
	if _, _, err := a.Sessions.Apply(id, session.Event{Type: session.EventSettleError, Err: tagged}); err != nil {
		a.Logger.Error().Err(err).Msg("settle session error")
	}
}

// startStatusTicker rotates the status message every tick until stopped.
func (a *App) startStatusTicker(id string) func() {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(statusTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if _, _, err := a.Sessions.Apply(id, session.Event{Type: session.EventStatusTick}); err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

func hasEffect(effects []session.Effect, effect session.Effect) bool {
	for _, e := range effects {
		if e == effect {
			return true
		}
	}
	return false
}
