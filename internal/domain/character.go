package domain

import "strings"

// Character is a named, reusable visual identity that anchors future
// generations for consistency. The description is injected verbatim into
// composed prompts and may be written in any language.
type Character struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description"`
	ReferenceImage *ImageBlob `json:"reference_image,omitempty"`
}

// CanAnchor reports whether the character can anchor image-to-image flows.
// Without a reference image only the description-only fallback applies.
func (c Character) CanAnchor() bool {
	return c.ReferenceImage != nil && !c.ReferenceImage.Empty()
}

// Validate checks the creation/update invariants.
func (c Character) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return NewError(ErrorValidation, "character name is required", nil)
	}
	return nil
}
