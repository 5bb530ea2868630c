package session

import (
	"sync"

	"github.com/google/uuid"

	"imagestudio/internal/domain"
)

// Registry tracks the live sessions of the process, keyed by an opaque id.
// Sessions are memory-only; a restart starts everyone from defaults.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]State
}

// NewRegistry constructs an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]State)}
}

// Create mints a new session with default state and returns its id.
func (r *Registry) Create() (string, State) {
	id := uuid.NewString()
	state := NewState()
	r.mu.Lock()
	r.sessions[id] = state
	r.mu.Unlock()
	return id, state
}

// Get returns the session state for id.
func (r *Registry) Get(id string) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[id]
	if !ok {
		return State{}, domain.NewError(domain.ErrorNotFound, "session not found", nil)
	}
	return state, nil
}

// Apply runs one event through the transition function and stores the next
// state. The returned effects are the caller's to execute.
func (r *Registry) Apply(id string, ev Event) (State, []Effect, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[id]
	if !ok {
		return State{}, nil, domain.NewError(domain.ErrorNotFound, "session not found", nil)
	}
	next, effects, err := Transition(state, ev)
	if err != nil {
		return state, nil, err
	}
	r.sessions[id] = next
	return next, effects, nil
}

// Mutate edits session fields outside the transition function (prompt text,
// images, faithfulness and similar user inputs). The mutation must not touch
// the phase; submissions go through Apply.
func (r *Registry) Mutate(id string, fn func(*State)) (State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	state, ok := r.sessions[id]
	if !ok {
		return State{}, domain.NewError(domain.ErrorNotFound, "session not found", nil)
	}
	fn(&state)
	r.sessions[id] = state
	return state, nil
}

// Broadcast applies the event to every session. Used for cross-cutting
// notifications such as character deletion cascades.
func (r *Registry) Broadcast(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, state := range r.sessions {
		next, _, err := Transition(state, ev)
		if err == nil {
			r.sessions[id] = next
		}
	}
}
