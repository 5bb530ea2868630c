package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"imagestudio/internal/domain"
	"imagestudio/internal/transcode"
	"imagestudio/pkg/zip"
)

type galleryEntryView struct {
	ID        string             `json:"id"`
	Kind      domain.AssetKind   `json:"kind"`
	Image     *transcode.Payload `json:"image,omitempty"`
	Narrative string             `json:"narrative_text,omitempty"`
	VideoRef  string             `json:"video_ref,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

func (a *App) galleryEntryView(entry domain.GalleryEntry) galleryEntryView {
	view := galleryEntryView{
		ID:        entry.ID,
		Kind:      entry.Kind,
		Narrative: entry.Result.NarrativeText,
		VideoRef:  entry.Result.VideoRef,
		CreatedAt: entry.CreatedAt,
	}
	if len(entry.Result.ImageData) > 0 {
		if payload, err := transcode.Encode(entry.Result.ImageData, entry.Result.MIMEType); err == nil {
			view.Image = &payload
		}
	}
	return view
}

func (a *App) GalleryList(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Gallery.List(r.Context())
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	views := make([]galleryEntryView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, a.galleryEntryView(entry))
	}
	a.json(w, http.StatusOK, views)
}

func (a *App) GalleryGet(w http.ResponseWriter, r *http.Request) {
	entry, err := a.Gallery.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.galleryEntryView(entry))
}

// GalleryUpscale re-renders an entry's image at higher fidelity. When the
// source entry still exists it is upgraded in place, keeping its id and
// position; otherwise the upscale lands as a fresh entry.
func (a *App) GalleryUpscale(w http.ResponseWriter, r *http.Request) {
	entry, err := a.Gallery.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	if len(entry.Result.ImageData) == 0 {
		a.error(w, http.StatusBadRequest, "bad_request", "entry has no image to upscale")
		return
	}

	source := entry.Result.Image()
	result, err := a.Gateway.UpscaleImage(r.Context(), source)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	upgraded, err := a.Gallery.ReplaceOrAppend(r.Context(), source.Data, *result)
	if err != nil {
		a.domainError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, a.galleryEntryView(upgraded))
}

// GalleryDownload streams the whole gallery as a zip archive.
func (a *App) GalleryDownload(w http.ResponseWriter, r *http.Request) {
	entries, err := a.Gallery.List(r.Context())
	if err != nil {
		a.domainError(w, r, err)
		return
	}

	assets := make([]zip.Asset, 0, len(entries))
	for i, entry := range entries {
		if len(entry.Result.ImageData) == 0 {
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("%03d-%s%s", i+1, entry.ID, extensionFor(entry.Result.MIMEType)),
			MIME:     entry.Result.MIMEType,
			Data:     entry.Result.ImageData,
		})
	}
	if len(assets) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "gallery has no downloadable entries")
		return
	}

	archive := zip.ArchiveAssets(assets)
	if archive == nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="gallery.zip"`)
	_, _ = w.Write(archive)
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
