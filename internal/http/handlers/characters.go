package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"imagestudio/internal/domain"
	"imagestudio/internal/session"
	"imagestudio/internal/transcode"
)

// Portrait generation accepts at most this many reference images.
const maxPortraitReferences = 5

type characterRequest struct {
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	ReferenceImage *imagePayload `json:"reference_image,omitempty"`
}

type characterView struct {
	ID             string             `json:"id"`
	Name           string             `json:"name"`
	Description    string             `json:"description"`
	ReferenceImage *transcode.Payload `json:"reference_image,omitempty"`
}

func viewCharacter(ch domain.Character) characterView {
	view := characterView{ID: ch.ID, Name: ch.Name, Description: ch.Description}
	if ch.CanAnchor() {
		if payload, err := transcode.Encode(ch.ReferenceImage.Data, ch.ReferenceImage.MIMEType); err == nil {
			view.ReferenceImage = &payload
		}
	}
	return view
}

func (a *App) characterFromRequest(w http.ResponseWriter, r *http.Request, req characterRequest) (domain.Character, bool) {
	ch := domain.Character{Name: req.Name, Description: req.Description}
	if req.ReferenceImage != nil {
		blob, err := transcode.Decode(req.ReferenceImage.Data, req.ReferenceImage.MIMEType)
		if err != nil {
			a.domainError(w, r, err)
			return domain.Character{}, false
		}
		ch.ReferenceImage = &blob
	}
	return ch, true
}

func (a *App) CharactersList(w http.ResponseWriter, r *http.Request) {
	list, err := a.Characters.List(r.Context())
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	views := make([]characterView, 0, len(list))
	for _, ch := range list {
		views = append(views, viewCharacter(ch))
	}
	a.json(w, http.StatusOK, views)
}

func (a *App) CharacterCreate(w http.ResponseWriter, r *http.Request) {
	var req characterRequest
	if !a.decode(w, r, &req) {
		return
	}
	ch, ok := a.characterFromRequest(w, r, req)
	if !ok {
		return
	}
	created, err := a.Characters.Create(r.Context(), ch)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusCreated, viewCharacter(created))
}

func (a *App) CharacterUpdate(w http.ResponseWriter, r *http.Request) {
	var req characterRequest
	if !a.decode(w, r, &req) {
		return
	}
	ch, ok := a.characterFromRequest(w, r, req)
	if !ok {
		return
	}
	ch.ID = chi.URLParam(r, "id")
	updated, err := a.Characters.Update(r.Context(), ch)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, viewCharacter(updated))
}

// CharacterDelete removes the character and cascades into every live
// session, clearing a matching selection.
func (a *App) CharacterDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Characters.Delete(r.Context(), id); err != nil {
		a.domainError(w, r, err)
		return
	}
	a.Sessions.Broadcast(session.Event{Type: session.EventCharacterDeleted, CharacterID: id})
	w.WriteHeader(http.StatusNoContent)
}

type portraitRequest struct {
	Description string         `json:"description"`
	References  []imagePayload `json:"references,omitempty"`
}

// CharacterPortrait generates a canonical portrait from a free-form
// description and optional reference images. The description travels to the
// provider verbatim, whatever language it is written in.
func (a *App) CharacterPortrait(w http.ResponseWriter, r *http.Request) {
	var req portraitRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Description == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "description is required")
		return
	}
	if len(req.References) > maxPortraitReferences {
		a.error(w, http.StatusBadRequest, "bad_request", "too many reference images")
		return
	}

	references := make([]domain.ImageBlob, 0, len(req.References))
	for _, ref := range req.References {
		blob, err := transcode.Decode(ref.Data, ref.MIMEType)
		if err != nil {
			a.domainError(w, r, err)
			return
		}
		references = append(references, blob)
	}

	result, err := a.Gateway.GenerateCharacterPortrait(r.Context(), req.Description, references)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	payload, err := transcode.Encode(result.ImageData, result.MIMEType)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"image":          payload,
		"narrative_text": result.NarrativeText,
	})
}

type outfitRequest struct {
	Prompt       string `json:"prompt"`
	Faithfulness int    `json:"faithfulness"`
}

// CharacterOutfit re-dresses the character while preserving identity. The
// result lands in the gallery like any other generation.
func (a *App) CharacterOutfit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req outfitRequest
	if !a.decode(w, r, &req) {
		return
	}
	if req.Prompt == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "prompt is required")
		return
	}

	character, err := a.Characters.Get(r.Context(), id)
	if err != nil {
		a.domainError(w, r, err)
		return
	}

	result, err := a.Gateway.GenerateOutfit(r.Context(), character, req.Prompt, req.Faithfulness)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	entry, err := a.Gallery.Append(r.Context(), *result)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.galleryEntryView(entry))
}
