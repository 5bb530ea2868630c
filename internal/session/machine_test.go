package session

import (
	"testing"

	"imagestudio/internal/domain"
)

func imageBlob(b byte) *domain.ImageBlob {
	return &domain.ImageBlob{Data: []byte{b}, MIMEType: "image/png"}
}

func submittableEdit() State {
	s := NewState()
	s.Mode = ModeEdit
	s.PromptText = "make it rain"
	s.WorkingImage = imageBlob(1)
	return s
}

func TestSubmitRejectedOnEmptyPrompt(t *testing.T) {
	s := NewState()
	s.Mode = ModeGenerate

	next, effects, err := Transition(s, Event{Type: EventSubmit})
	if domain.KindOf(err) != domain.ErrorValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(effects) != 0 {
		t.Fatal("a rejected submit must not produce effects")
	}
	if next.Phase != PhaseIdle {
		t.Fatalf("rejected submit must not change state, phase = %s", next.Phase)
	}
}

func TestSubmitRejectedWithoutWorkingImageInEditMode(t *testing.T) {
	s := NewState()
	s.Mode = ModeEdit
	s.PromptText = "brighten it"

	_, _, err := Transition(s, Event{Type: EventSubmit})
	if domain.KindOf(err) != domain.ErrorValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestSubmitRejectedForSeededVideoWithoutSeed(t *testing.T) {
	s := NewState()
	s.Mode = ModeVideo
	s.PromptText = "animate this"
	s.VideoAuthorized = true

	_, _, err := Transition(s, Event{Type: EventSubmit, WithSeed: true})
	if domain.KindOf(err) != domain.ErrorValidation {
		t.Fatalf("expected validation error, got %v", err)
	}

	// Without a seed requirement the same session submits fine.
	_, effects, err := Transition(s, Event{Type: EventSubmit})
	if err != nil {
		t.Fatalf("unseeded video submit should pass validation: %v", err)
	}
	if len(effects) != 1 || effects[0] != EffectCallGateway {
		t.Fatalf("expected gateway effect, got %v", effects)
	}
}

func TestSubmitRejectedForUnauthorizedVideo(t *testing.T) {
	s := NewState()
	s.Mode = ModeVideo
	s.PromptText = "a storm"

	_, _, err := Transition(s, Event{Type: EventSubmit})
	if domain.KindOf(err) != domain.ErrorAuthorization {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestSubmitRejectedWhileInFlight(t *testing.T) {
	s := submittableEdit()
	s, _, err := Transition(s, Event{Type: EventSubmit})
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	_, _, err = Transition(s, Event{Type: EventSubmit})
	if domain.KindOf(err) != domain.ErrorValidation {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}
}

func TestChainedEditingOnSuccess(t *testing.T) {
	s := submittableEdit()
	s.SelectedCharacterID = "char-1"
	s.AspectRatio = "16:9"

	s, _, err := Transition(s, Event{Type: EventSubmit})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	result := &domain.GenerationResult{ImageData: []byte("new"), MIMEType: "image/png"}
	s, effects, err := Transition(s, Event{Type: EventSettleSuccess, Result: result})
	if err != nil {
		t.Fatalf("settle failed: %v", err)
	}
	if len(effects) != 1 || effects[0] != EffectAppendGallery {
		t.Fatalf("expected gallery append effect, got %v", effects)
	}
	if s.Phase != PhaseSuccess {
		t.Fatalf("phase = %s", s.Phase)
	}
	if string(s.WorkingImage.Data) != "new" {
		t.Fatal("working image must become the new result for chained editing")
	}
	if s.PromptText != "" {
		t.Fatal("prompt text must reset after a successful edit")
	}
	if s.Mode != ModeEdit || s.SelectedCharacterID != "char-1" || s.AspectRatio != "16:9" {
		t.Fatal("mode, character selection and aspect ratio must be preserved")
	}
}

func TestGenerateModeDoesNotChainWorkingImage(t *testing.T) {
	s := NewState()
	s.Mode = ModeGenerate
	s.PromptText = "a cat"

	s, _, _ = Transition(s, Event{Type: EventSubmit})
	result := &domain.GenerationResult{ImageData: []byte("cat"), MIMEType: "image/png"}
	s, _, _ = Transition(s, Event{Type: EventSettleSuccess, Result: result})

	if s.WorkingImage != nil {
		t.Fatal("generate mode must not set a working image")
	}
	if s.PromptText != "a cat" {
		t.Fatal("generate mode keeps the prompt text")
	}
}

func TestErrorSettleIsNonDestructive(t *testing.T) {
	s := submittableEdit()
	before := s

	s, _, _ = Transition(s, Event{Type: EventSubmit})
	s, effects, err := Transition(s, Event{
		Type: EventSettleError,
		Err:  domain.NewError(domain.ErrorTransient, "connection reset", nil),
	})
	if err != nil {
		t.Fatalf("settle error event failed: %v", err)
	}
	if len(effects) != 0 {
		t.Fatalf("error settle must not produce effects, got %v", effects)
	}
	if s.Phase != PhaseError {
		t.Fatalf("phase = %s", s.Phase)
	}
	if s.WorkingImage != before.WorkingImage {
		t.Fatal("working image must survive a failed attempt")
	}
	if s.CurrentResult != before.CurrentResult {
		t.Fatal("current result must survive a failed attempt")
	}
	if s.PromptText != before.PromptText {
		t.Fatal("prompt text must survive a failed attempt so the user can retry")
	}
	if s.ErrorState == nil || s.ErrorState.Kind != domain.ErrorTransient {
		t.Fatalf("error state missing: %+v", s.ErrorState)
	}
}

func TestModeSwitchClearsResultAndReleasesImages(t *testing.T) {
	s := submittableEdit()
	s.CurrentResult = &domain.GenerationResult{ImageData: []byte("r")}
	s.ErrorState = domain.NewError(domain.ErrorUnknown, "old", nil)
	s.SelectedCharacterID = "char-1"
	s.AdditionalImage = imageBlob(2)

	s, _, _ = Transition(s, Event{Type: EventSwitchMode, Mode: ModeGenerate})

	if s.CurrentResult != nil || s.ErrorState != nil {
		t.Fatal("mode switch must clear result and error state")
	}
	if s.WorkingImage != nil || s.AdditionalImage != nil {
		t.Fatal("leaving edit mode must release working images")
	}
	if s.SelectedCharacterID != "char-1" {
		t.Fatal("mode switch must keep the character selection")
	}
}

func TestModeSwitchWithinImagePairKeepsWorkingImage(t *testing.T) {
	s := submittableEdit()
	s.AdditionalImage = imageBlob(2)

	s, _, _ = Transition(s, Event{Type: EventSwitchMode, Mode: ModeVideo})
	if s.WorkingImage == nil {
		t.Fatal("edit to video must keep the working image as the video seed")
	}
	if s.AdditionalImage == nil {
		t.Fatal("edit to video must keep the additional image")
	}

	s, _, _ = Transition(s, Event{Type: EventSwitchMode, Mode: ModeEdit})
	if s.WorkingImage == nil {
		t.Fatal("video back to edit must keep the working image")
	}

	s, _, _ = Transition(s, Event{Type: EventSwitchMode, Mode: ModeGenerate})
	if s.WorkingImage != nil || s.AdditionalImage != nil {
		t.Fatal("leaving the edit/video pair must release the images")
	}
}

func TestModeSwitchFromGenerateKeepsNothingToRelease(t *testing.T) {
	s := NewState()
	s.Mode = ModeGenerate
	s, _, _ = Transition(s, Event{Type: EventSwitchMode, Mode: ModeEdit})
	if s.Mode != ModeEdit || s.Phase != PhaseIdle {
		t.Fatalf("unexpected state after switch: %s/%s", s.Mode, s.Phase)
	}
}

func TestStatusTickOnlyAdvancesWhileSubmitting(t *testing.T) {
	s := submittableEdit()

	idle, _, _ := Transition(s, Event{Type: EventStatusTick})
	if idle.StatusIndex != 0 {
		t.Fatal("ticks outside submitting must be ignored")
	}

	s, _, _ = Transition(s, Event{Type: EventSubmit})
	first := StatusMessage(s)
	s, _, _ = Transition(s, Event{Type: EventStatusTick})
	if s.StatusIndex != 1 {
		t.Fatalf("status index = %d, want 1", s.StatusIndex)
	}
	if StatusMessage(s) == first {
		t.Fatal("status message should rotate")
	}

	// The index wraps and never affects correctness.
	for i := 0; i < 17; i++ {
		s, _, _ = Transition(s, Event{Type: EventStatusTick})
	}
	if s.StatusIndex < 0 || s.StatusIndex >= len(statusMessages) {
		t.Fatalf("status index out of range: %d", s.StatusIndex)
	}
}

func TestCharacterDeletionCascadesSelection(t *testing.T) {
	s := NewState()
	s.SelectedCharacterID = "char-1"

	s, _, _ = Transition(s, Event{Type: EventCharacterDeleted, CharacterID: "char-2"})
	if s.SelectedCharacterID != "char-1" {
		t.Fatal("deleting a non-selected character must leave the selection untouched")
	}

	s, _, _ = Transition(s, Event{Type: EventCharacterDeleted, CharacterID: "char-1"})
	if s.SelectedCharacterID != "" {
		t.Fatal("deleting the selected character must clear the selection")
	}
}

func TestRegistryLifecycle(t *testing.T) {
	reg := NewRegistry()
	id, state := reg.Create()
	if state.Mode != ModeGenerate {
		t.Fatalf("default mode = %s", state.Mode)
	}

	if _, err := reg.Get("nope"); domain.KindOf(err) != domain.ErrorNotFound {
		t.Fatalf("expected not found, got %v", err)
	}

	_, err := reg.Mutate(id, func(s *State) {
		s.PromptText = "a cat"
	})
	if err != nil {
		t.Fatalf("Mutate error: %v", err)
	}

	next, effects, err := reg.Apply(id, Event{Type: EventSubmit})
	if err != nil {
		t.Fatalf("Apply error: %v", err)
	}
	if next.Phase != PhaseSubmitting || len(effects) != 1 {
		t.Fatalf("unexpected apply outcome: %s %v", next.Phase, effects)
	}

	// Broadcast reaches every session.
	id2, _ := reg.Create()
	_, _ = reg.Mutate(id2, func(s *State) { s.SelectedCharacterID = "char-9" })
	reg.Broadcast(Event{Type: EventCharacterDeleted, CharacterID: "char-9"})
	got, _ := reg.Get(id2)
	if got.SelectedCharacterID != "" {
		t.Fatal("broadcast must cascade the deletion to every session")
	}
}
