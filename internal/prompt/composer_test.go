package prompt

import (
	"strings"
	"testing"

	"imagestudio/internal/domain"
)

func blob(b byte) domain.ImageBlob {
	return domain.ImageBlob{Data: []byte{b}, MIMEType: "image/png"}
}

func testCharacter(withPortrait bool) *domain.Character {
	c := &domain.Character{ID: "c1", Name: "Mira", Description: "red hair, green coat"}
	if withPortrait {
		ref := blob(1)
		c.ReferenceImage = &ref
	}
	return c
}

func TestFaithfulnessBanding(t *testing.T) {
	cases := []struct {
		value int
		want  string
	}{
		{0, directiveLoose},
		{20, directiveLoose},
		{21, directiveSoft},
		{40, directiveSoft},
		{41, directiveFirm},
		{60, directiveFirm},
		{61, directiveClose},
		{80, directiveClose},
		{81, directiveExact},
		{100, directiveExact},
	}
	for _, tc := range cases {
		if got := FaithfulnessDirective(tc.value); got != tc.want {
			t.Fatalf("FaithfulnessDirective(%d) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestFaithfulnessOnlyFiveDirectives(t *testing.T) {
	seen := map[string]struct{}{}
	for v := 0; v <= 100; v++ {
		seen[FaithfulnessDirective(v)] = struct{}{}
	}
	if len(seen) != 5 {
		t.Fatalf("expected exactly 5 distinct directives, got %d", len(seen))
	}
}

func TestComposeEditImageOrdering(t *testing.T) {
	additional := blob(2)
	target := blob(3)

	cases := []struct {
		name       string
		character  *domain.Character
		additional *domain.ImageBlob
		wantRoles  []ImageRole
	}{
		{"all present", testCharacter(true), &additional, []ImageRole{RoleCharacterReference, RoleElement, RoleTarget}},
		{"no additional", testCharacter(true), nil, []ImageRole{RoleCharacterReference, RoleTarget}},
		{"no character", nil, &additional, []ImageRole{RoleElement, RoleTarget}},
		{"target only", nil, nil, []ImageRole{RoleTarget}},
		{"character without portrait", testCharacter(false), nil, []ImageRole{RoleTarget}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			composed := ComposeEdit(EditRequest{
				UserPrompt:      "make it rain",
				Target:          target,
				Character:       tc.character,
				Faithfulness:    75,
				AdditionalImage: tc.additional,
			})
			if len(composed.Images) != len(tc.wantRoles) {
				t.Fatalf("image count mismatch: got %d want %d", len(composed.Images), len(tc.wantRoles))
			}
			for i, role := range tc.wantRoles {
				if composed.Images[i].Role != role {
					t.Fatalf("image %d role mismatch: got %s want %s", i, composed.Images[i].Role, role)
				}
			}
			// The last image is always the target.
			if composed.Images[len(composed.Images)-1].Role != RoleTarget {
				t.Fatal("target image must come last")
			}
		})
	}
}

func TestComposeEditRoleLabelsMatchOrder(t *testing.T) {
	additional := blob(2)
	composed := ComposeEdit(EditRequest{
		UserPrompt:      "swap the sky",
		Target:          blob(3),
		Character:       testCharacter(true),
		Faithfulness:    50,
		AdditionalImage: &additional,
	})

	lines := strings.Split(composed.Instruction, "\n")
	if !strings.HasPrefix(lines[0], "IMAGE #1 is the REFERENCE") {
		t.Fatalf("line 0 = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "IMAGE #2 is an ELEMENT") {
		t.Fatalf("line 1 = %q", lines[1])
	}
	if !strings.HasPrefix(lines[2], "IMAGE #3 is the TARGET") {
		t.Fatalf("line 2 = %q", lines[2])
	}
	if !strings.Contains(lines[0], `"Mira"`) {
		t.Fatalf("reference label missing character name: %q", lines[0])
	}
	if !strings.Contains(lines[0], "red hair, green coat") {
		t.Fatalf("reference label missing description: %q", lines[0])
	}
}

func TestQualifiersAppendedNeverPrepended(t *testing.T) {
	composed := ComposeGenerate(GenerateRequest{
		UserPrompt:  "a lighthouse at dusk",
		AspectRatio: "16:9",
		Style:       "oil painting",
		Exclusions:  []string{"text", "watermarks"},
	})
	if !strings.HasPrefix(composed.UserPrompt, "a lighthouse at dusk") {
		t.Fatalf("user text must lead the prompt: %q", composed.UserPrompt)
	}
	if !strings.Contains(composed.UserPrompt, "Oil Painting") {
		t.Fatalf("style qualifier missing: %q", composed.UserPrompt)
	}
	if !strings.HasSuffix(composed.UserPrompt, "Do not include: text, watermarks.") {
		t.Fatalf("exclusions must trail the prompt: %q", composed.UserPrompt)
	}
}

func TestComposeGenerateDescriptionFallback(t *testing.T) {
	composed := ComposeGenerate(GenerateRequest{
		UserPrompt:   "at the beach",
		Character:    testCharacter(false),
		Faithfulness: 90,
	})
	if len(composed.Images) != 0 {
		t.Fatalf("description-only character must not add image parts, got %d", len(composed.Images))
	}
	if !strings.Contains(composed.Instruction, "red hair, green coat") {
		t.Fatalf("instruction missing character description: %q", composed.Instruction)
	}
	if !strings.Contains(composed.Instruction, directiveExact) {
		t.Fatal("instruction missing faithfulness directive")
	}
}

func TestComposeUpscaleSingleTarget(t *testing.T) {
	composed := ComposeUpscale(blob(9))
	if len(composed.Images) != 1 || composed.Images[0].Role != RoleTarget {
		t.Fatalf("upscale must carry exactly the target image: %#v", composed.Images)
	}
	if composed.UserPrompt != "" {
		t.Fatalf("upscale carries no user prompt, got %q", composed.UserPrompt)
	}
	if !strings.Contains(composed.Instruction, "Do not alter") {
		t.Fatalf("upscale instruction must forbid content changes: %q", composed.Instruction)
	}
}

func TestComposeCharacterPortraitNumbersReferences(t *testing.T) {
	refs := []domain.ImageBlob{blob(1), blob(2), blob(3)}
	composed := ComposeCharacterPortrait("tall, freckles", refs)
	if len(composed.Images) != 3 {
		t.Fatalf("expected 3 reference parts, got %d", len(composed.Images))
	}
	for i := 1; i <= 3; i++ {
		label := "IMAGE #" + string(rune('0'+i))
		if !strings.Contains(composed.Instruction, label) {
			t.Fatalf("instruction missing %s: %q", label, composed.Instruction)
		}
	}
	if composed.UserPrompt != "tall, freckles" {
		t.Fatalf("description must pass through verbatim, got %q", composed.UserPrompt)
	}
}

func TestComposeCharacterPortraitSkippedEmptyKeepsNumberingAligned(t *testing.T) {
	refs := []domain.ImageBlob{{}, blob(2)}
	composed := ComposeCharacterPortrait("desc", refs)
	if len(composed.Images) != 1 {
		t.Fatalf("expected the empty reference to be skipped, got %d parts", len(composed.Images))
	}
	if !strings.Contains(composed.Instruction, "IMAGE #1 is a REFERENCE") {
		t.Fatalf("the only submitted image must be labeled IMAGE #1: %q", composed.Instruction)
	}
	if strings.Contains(composed.Instruction, "IMAGE #2") {
		t.Fatalf("no label may point past the submitted parts: %q", composed.Instruction)
	}
}

func TestComposeVideoSeedFirst(t *testing.T) {
	seed := blob(7)
	composed := ComposeVideo("waves rolling in", &seed, "9:16")
	if len(composed.Images) != 1 {
		t.Fatalf("expected the seed frame as the only image part, got %d", len(composed.Images))
	}
	if !strings.Contains(composed.Instruction, "SEED frame") {
		t.Fatalf("instruction missing seed label: %q", composed.Instruction)
	}
	if !strings.Contains(composed.Instruction, "9:16") {
		t.Fatalf("instruction missing aspect ratio: %q", composed.Instruction)
	}
}

func TestNormalizeAspectRatio(t *testing.T) {
	cases := map[string]string{
		"1:1":     "1:1",
		"16:9":    "16:9",
		" 9:16 ":  "9:16",
		"banana":  "1:1",
		"":        "1:1",
		"1000:13": "1:1",
	}
	for in, want := range cases {
		if got := NormalizeAspectRatio(in); got != want {
			t.Fatalf("NormalizeAspectRatio(%q) = %q, want %q", in, got, want)
		}
	}
}
