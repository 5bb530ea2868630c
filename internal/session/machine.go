// Package session holds the working state of one editing flow and the pure
// transition function that drives it. The machine never performs I/O; it
// returns effects for the caller to execute.
package session

import (
	"imagestudio/internal/domain"
	"imagestudio/internal/prompt"
)

// Mode is the active workflow of a session.
type Mode string

const (
	ModeEdit     Mode = "edit"
	ModeGenerate Mode = "generate"
	ModeVideo    Mode = "video"
)

// Phase tracks where the session is in the submit lifecycle.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
	PhaseError      Phase = "error"
)

// State is the full working session. It lives in memory only and is never
// persisted.
type State struct {
	Mode                Mode
	Phase               Phase
	PromptText          string
	WorkingImage        *domain.ImageBlob
	AdditionalImage     *domain.ImageBlob
	SelectedCharacterID string
	Faithfulness        int
	AspectRatio         string
	Style               string
	Exclusions          []string
	CurrentResult       *domain.GenerationResult
	ErrorState          *domain.Error
	StatusIndex         int
	VideoAuthorized     bool
}

// NewState returns the defaults a session starts with.
func NewState() State {
	return State{
		Mode:         ModeGenerate,
		Phase:        PhaseIdle,
		Faithfulness: 80,
		AspectRatio:  prompt.DefaultAspectRatio,
	}
}

// EventType enumerates the machine inputs.
type EventType string

const (
	EventSubmit           EventType = "submit"
	EventSettleSuccess    EventType = "settle_success"
	EventSettleError      EventType = "settle_error"
	EventSwitchMode       EventType = "switch_mode"
	EventStatusTick       EventType = "status_tick"
	EventCharacterDeleted EventType = "character_deleted"
)

// Event is one machine input. Only the fields relevant to the type are set.
type Event struct {
	Type EventType

	// EventSubmit
	WithSeed bool

	// EventSettleSuccess
	Result *domain.GenerationResult

	// EventSettleError
	Err *domain.Error

	// EventSwitchMode
	Mode Mode

	// EventCharacterDeleted
	CharacterID string
}

// Effect names a side effect the caller must execute after a transition.
type Effect string

const (
	// EffectCallGateway instructs the caller to run the generation and feed
	// the outcome back as a settle event.
	EffectCallGateway Effect = "call_gateway"
	// EffectAppendGallery instructs the caller to append CurrentResult to the
	// gallery store.
	EffectAppendGallery Effect = "append_gallery"
)

// Rotating status messages shown while a submission is in flight. The index
// advances on a fixed timer and carries no semantic weight.
var statusMessages = []string{
	"Warming up the canvas...",
	"Sketching the composition...",
	"Rendering details...",
	"Almost there...",
}

// StatusMessage returns the feedback line for the current status index.
func StatusMessage(s State) string {
	if len(statusMessages) == 0 {
		return ""
	}
	return statusMessages[s.StatusIndex%len(statusMessages)]
}

// Transition applies one event to the state. It returns the next state, the
// effects the caller must run, and a validation error when a submit is
// rejected. A rejected submit leaves the state untouched.
func Transition(s State, ev Event) (State, []Effect, error) {
	switch ev.Type {
	case EventSubmit:
		if err := validateSubmit(s, ev); err != nil {
			return s, nil, err
		}
		next := s
		next.Phase = PhaseSubmitting
		next.StatusIndex = 0
		next.ErrorState = nil
		return next, []Effect{EffectCallGateway}, nil

	case EventSettleSuccess:
		next := s
		next.Phase = PhaseSuccess
		next.CurrentResult = ev.Result
		next.ErrorState = nil
		// Chained editing: the next submission edits the latest output, and a
		// fresh instruction is required per step.
		if s.Mode == ModeEdit && ev.Result != nil && len(ev.Result.ImageData) > 0 {
			img := ev.Result.Image()
			next.WorkingImage = &img
			next.PromptText = ""
		}
		return next, []Effect{EffectAppendGallery}, nil

	case EventSettleError:
		// Failed attempts are non-destructive: working image, result and
		// prompt text survive untouched.
		next := s
		next.Phase = PhaseError
		next.ErrorState = ev.Err
		return next, nil, nil

	case EventSwitchMode:
		next := s
		// The working image survives inside the edit/video pair, so an edit
		// result can seed a video without a re-upload. It is released only
		// when the session leaves the pair entirely.
		wasImageMode := s.Mode == ModeEdit || s.Mode == ModeVideo
		staysImageMode := ev.Mode == ModeEdit || ev.Mode == ModeVideo
		next.Mode = ev.Mode
		next.Phase = PhaseIdle
		next.CurrentResult = nil
		next.ErrorState = nil
		if wasImageMode && !staysImageMode {
			next.WorkingImage = nil
			next.AdditionalImage = nil
		}
		return next, nil, nil

	case EventStatusTick:
		if s.Phase != PhaseSubmitting {
			return s, nil, nil
		}
		next := s
		next.StatusIndex = (s.StatusIndex + 1) % len(statusMessages)
		return next, nil, nil

	case EventCharacterDeleted:
		if s.SelectedCharacterID != ev.CharacterID {
			return s, nil, nil
		}
		next := s
		next.SelectedCharacterID = ""
		return next, nil, nil

	default:
		return s, nil, nil
	}
}

func validateSubmit(s State, ev Event) error {
	if s.Phase == PhaseSubmitting {
		return domain.NewError(domain.ErrorValidation, "a submission is already in flight", nil)
	}
	if s.PromptText == "" {
		return domain.NewError(domain.ErrorValidation, "prompt text is required", nil)
	}
	needsImage := s.Mode == ModeEdit || (s.Mode == ModeVideo && ev.WithSeed)
	if needsImage && (s.WorkingImage == nil || s.WorkingImage.Empty()) {
		return domain.NewError(domain.ErrorValidation, "a working image is required for this mode", nil)
	}
	if s.Mode == ModeVideo && !s.VideoAuthorized {
		return domain.NewError(domain.ErrorAuthorization, "video generation requires an authorized credential", nil)
	}
	return nil
}
