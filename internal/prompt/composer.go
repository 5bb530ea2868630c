// Package prompt builds the instruction text and ordered image parts sent to
// the generation capability. Composition is pure: no I/O happens here.
package prompt

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"imagestudio/internal/domain"
)

// ImageRole tags the positional purpose of one submitted image.
type ImageRole string

const (
	RoleCharacterReference ImageRole = "reference"
	RoleElement            ImageRole = "element"
	RoleTarget             ImageRole = "target"
)

// ImagePart is one image submitted to the provider, in label order.
type ImagePart struct {
	Role ImageRole
	Blob domain.ImageBlob
}

// Composed is the full prompt material for one gateway call. Images are
// ordered exactly as the role labels in Instruction describe them; the
// gateway must submit them in this order or the provider's positional
// references become incorrect.
type Composed struct {
	Instruction string
	UserPrompt  string
	Images      []ImagePart
}

// AspectRatios is the enumerated set accepted by the session.
var AspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

// DefaultAspectRatio is applied when the session supplies none.
const DefaultAspectRatio = "1:1"

// NormalizeAspectRatio sanitizes free-form input into a supported ratio.
func NormalizeAspectRatio(aspect string) string {
	aspect = strings.TrimSpace(aspect)
	for _, known := range AspectRatios {
		if aspect == known {
			return known
		}
	}
	return DefaultAspectRatio
}

// Faithfulness bands. Boundaries are inclusive on the upper end of each band,
// so 20 maps to the loosest directive and 100 to the strictest.
const (
	directiveLoose = "Treat the character reference as loose inspiration only; reinterpreting features, style and mood is welcome."
	directiveSoft  = "Keep a general resemblance to the character reference while allowing noticeable creative liberties."
	directiveFirm  = "Maintain a clear likeness to the character reference; face, hair and build must stay recognizable."
	directiveClose = "Match the character reference closely; preserve facial structure, hair, skin tone and signature details."
	directiveExact = "Match the character reference exactly; identity preservation is critical and every distinguishing feature must be reproduced."
)

// FaithfulnessDirective maps a 0-100 faithfulness value to one of five fixed
// directives.
func FaithfulnessDirective(v int) string {
	switch {
	case v <= 20:
		return directiveLoose
	case v <= 40:
		return directiveSoft
	case v <= 60:
		return directiveFirm
	case v <= 80:
		return directiveClose
	default:
		return directiveExact
	}
}

// EditRequest carries the context for an edit composition.
type EditRequest struct {
	UserPrompt      string
	Target          domain.ImageBlob
	Character       *domain.Character
	Faithfulness    int
	AdditionalImage *domain.ImageBlob
	Style           string
	Exclusions      []string
}

// GenerateRequest carries the context for a text-to-image composition.
type GenerateRequest struct {
	UserPrompt   string
	AspectRatio  string
	Character    *domain.Character
	Faithfulness int
	Style        string
	Exclusions   []string
}

// ComposeEdit builds the instruction for editing a target image, optionally
// anchored to a character reference and an additional element image.
func ComposeEdit(req EditRequest) Composed {
	var images []ImagePart
	var lines []string

	if req.Character != nil && req.Character.CanAnchor() {
		images = append(images, ImagePart{Role: RoleCharacterReference, Blob: *req.Character.ReferenceImage})
	}
	if req.AdditionalImage != nil && !req.AdditionalImage.Empty() {
		images = append(images, ImagePart{Role: RoleElement, Blob: *req.AdditionalImage})
	}
	images = append(images, ImagePart{Role: RoleTarget, Blob: req.Target})

	lines = append(lines, roleLabels(images, req.Character)...)
	if req.Character != nil {
		if req.Character.CanAnchor() {
			lines = append(lines, FaithfulnessDirective(req.Faithfulness))
		} else {
			// Description-only fallback when the character has no portrait.
			lines = append(lines, fmt.Sprintf("Render the character %q from this description: %s", req.Character.Name, strings.TrimSpace(req.Character.Description)))
			lines = append(lines, FaithfulnessDirective(req.Faithfulness))
		}
	}
	lines = append(lines, "Apply the user's instruction to the TARGET image only; keep everything the instruction does not mention unchanged.")

	return Composed{
		Instruction: strings.Join(lines, "\n"),
		UserPrompt:  withQualifiers(req.UserPrompt, req.Style, req.Exclusions),
		Images:      images,
	}
}

// ComposeGenerate builds the instruction for a from-scratch generation.
func ComposeGenerate(req GenerateRequest) Composed {
	var images []ImagePart
	var lines []string

	if req.Character != nil && req.Character.CanAnchor() {
		images = append(images, ImagePart{Role: RoleCharacterReference, Blob: *req.Character.ReferenceImage})
		lines = append(lines, roleLabels(images, req.Character)...)
		lines = append(lines, FaithfulnessDirective(req.Faithfulness))
	} else if req.Character != nil {
		lines = append(lines, fmt.Sprintf("Include the character %q described as: %s", req.Character.Name, strings.TrimSpace(req.Character.Description)))
		lines = append(lines, FaithfulnessDirective(req.Faithfulness))
	}
	lines = append(lines, fmt.Sprintf("Generate a single high quality image at aspect ratio %s.", NormalizeAspectRatio(req.AspectRatio)))

	return Composed{
		Instruction: strings.Join(lines, "\n"),
		UserPrompt:  withQualifiers(req.UserPrompt, req.Style, req.Exclusions),
		Images:      images,
	}
}

// ComposeUpscale builds the instruction for a fidelity-preserving upscale.
func ComposeUpscale(target domain.ImageBlob) Composed {
	return Composed{
		Instruction: "IMAGE #1 is the TARGET image.\nUpscale the TARGET image to a higher resolution. Preserve the content, composition, colors and style exactly; only add realistic detail and sharpness. Do not alter, add or remove any element.",
		UserPrompt:  "",
		Images:      []ImagePart{{Role: RoleTarget, Blob: target}},
	}
}

// ComposeCharacterPortrait builds the instruction for a reusable character
// portrait from a free-text description and up to five reference images.
func ComposeCharacterPortrait(description string, references []domain.ImageBlob) Composed {
	var images []ImagePart
	var lines []string
	for _, ref := range references {
		if ref.Empty() {
			continue
		}
		// Labels number the submitted parts, not the caller's slice, so
		// skipped empties never desync the positional references.
		images = append(images, ImagePart{Role: RoleCharacterReference, Blob: ref})
		lines = append(lines, fmt.Sprintf("IMAGE #%d is a REFERENCE photo of the person to portray.", len(images)))
	}
	if len(images) > 0 {
		lines = append(lines, "Combine the references into one coherent identity; they show the same person.")
	}
	lines = append(lines, "Create a neutral, front-facing studio portrait on a plain background, chest-up framing, even lighting. The portrait must work as a canonical reference for future generations.")

	return Composed{
		Instruction: strings.Join(lines, "\n"),
		UserPrompt:  strings.TrimSpace(description),
		Images:      images,
	}
}

// ComposeOutfit builds the instruction for re-dressing a character while
// keeping their identity.
func ComposeOutfit(character domain.Character, outfitPrompt string, faithfulness int) Composed {
	var images []ImagePart
	var lines []string
	if character.CanAnchor() {
		images = append(images, ImagePart{Role: RoleCharacterReference, Blob: *character.ReferenceImage})
		lines = append(lines, fmt.Sprintf("IMAGE #1 is the REFERENCE portrait of the character %q.", character.Name))
	} else {
		lines = append(lines, fmt.Sprintf("The character %q is described as: %s", character.Name, strings.TrimSpace(character.Description)))
	}
	lines = append(lines, FaithfulnessDirective(faithfulness))
	lines = append(lines, "Show the character wearing the outfit described by the user. Change only the clothing; keep face, hair, body and pose identity intact.")

	return Composed{
		Instruction: strings.Join(lines, "\n"),
		UserPrompt:  strings.TrimSpace(outfitPrompt),
		Images:      images,
	}
}

// ComposeVideo builds the prompt material for a video generation, optionally
// seeded with a starting frame.
func ComposeVideo(userPrompt string, seed *domain.ImageBlob, aspectRatio string) Composed {
	var images []ImagePart
	var lines []string
	if seed != nil && !seed.Empty() {
		images = append(images, ImagePart{Role: RoleTarget, Blob: *seed})
		lines = append(lines, "IMAGE #1 is the SEED frame; the video must start from it.")
	}
	lines = append(lines, fmt.Sprintf("Generate a short video at aspect ratio %s.", NormalizeAspectRatio(aspectRatio)))

	return Composed{
		Instruction: strings.Join(lines, "\n"),
		UserPrompt:  strings.TrimSpace(userPrompt),
		Images:      images,
	}
}

// roleLabels numbers each image part and names its purpose. Labels follow the
// fixed order reference, element, target.
func roleLabels(images []ImagePart, character *domain.Character) []string {
	labels := make([]string, 0, len(images))
	for i, part := range images {
		n := i + 1
		switch part.Role {
		case RoleCharacterReference:
			name := ""
			if character != nil {
				name = character.Name
			}
			label := fmt.Sprintf("IMAGE #%d is the REFERENCE image for the character %q.", n, name)
			if character != nil && strings.TrimSpace(character.Description) != "" {
				label += " " + strings.TrimSpace(character.Description)
			}
			labels = append(labels, label)
		case RoleElement:
			labels = append(labels, fmt.Sprintf("IMAGE #%d is an ELEMENT image; incorporate its subject where the instruction calls for it.", n))
		case RoleTarget:
			labels = append(labels, fmt.Sprintf("IMAGE #%d is the TARGET image to edit.", n))
		}
	}
	return labels
}

// withQualifiers appends style and negative-content qualifiers after the user
// text. They are never prepended so user intent remains the primary context.
func withQualifiers(userPrompt, style string, exclusions []string) string {
	out := strings.TrimSpace(userPrompt)
	if style = strings.TrimSpace(style); style != "" {
		c := cases.Title(language.Und)
		out += fmt.Sprintf(" In the artistic style of %s.", c.String(style))
	}
	cleaned := make([]string, 0, len(exclusions))
	for _, ex := range exclusions {
		if ex = strings.TrimSpace(ex); ex != "" {
			cleaned = append(cleaned, ex)
		}
	}
	if len(cleaned) > 0 {
		out += fmt.Sprintf(" Do not include: %s.", strings.Join(cleaned, ", "))
	}
	return strings.TrimSpace(out)
}
