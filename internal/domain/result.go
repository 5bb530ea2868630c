package domain

import "time"

// AssetKind enumerates gallery artifact types.
type AssetKind string

const (
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
)

// DefaultImageMIME is assumed whenever the provider omits a MIME type.
const DefaultImageMIME = "image/png"

// ImageBlob is a raw binary image plus its declared MIME type.
type ImageBlob struct {
	Data     []byte `json:"data"`
	MIMEType string `json:"mime_type"`
}

// Empty reports whether the blob carries no bytes.
func (b ImageBlob) Empty() bool {
	return len(b.Data) == 0
}

// GenerationResult is the output of any generation or edit call. For video
// results ImageData holds the derived thumbnail still.
type GenerationResult struct {
	ImageData     []byte `json:"image_data,omitempty"`
	MIMEType      string `json:"mime_type,omitempty"`
	NarrativeText string `json:"narrative_text,omitempty"`
	VideoRef      string `json:"video_ref,omitempty"`
}

// Settled reports whether the result satisfies the settled-result invariant:
// it carries image bytes or a video reference, never neither.
func (r GenerationResult) Settled() bool {
	return len(r.ImageData) > 0 || r.VideoRef != ""
}

// Image returns the result image as a blob, defaulting the MIME type.
func (r GenerationResult) Image() ImageBlob {
	mime := r.MIMEType
	if mime == "" {
		mime = DefaultImageMIME
	}
	return ImageBlob{Data: r.ImageData, MIMEType: mime}
}

// Kind derives the gallery kind for the result.
func (r GenerationResult) Kind() AssetKind {
	if r.VideoRef != "" {
		return AssetKindVideo
	}
	return AssetKindImage
}

// GalleryEntry is one persisted artifact in the newest-first gallery log.
type GalleryEntry struct {
	ID        string           `json:"id"`
	Kind      AssetKind        `json:"kind"`
	Result    GenerationResult `json:"result"`
	CreatedAt time.Time        `json:"created_at"`
}
