// Package statemachine provides a small thread-safe finite state machine
// used to model protocols with explicit, bounded life cycles.
package statemachine

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidTransition is returned when a transition is registered with
	// empty states or event.
	ErrInvalidTransition = errors.New("invalid transition: from, to, and event are required")
	// ErrNoTransition is returned by Fire when the current state has no
	// transition for the event.
	ErrNoTransition = errors.New("no transition available")
)

// State names a state. Event names a trigger.
type State string

type Event string

// Action runs side effects during a transition. Returning an error aborts
// the transition and leaves the machine in its current state.
type Action func(ctx context.Context, from, to State, event Event) error

type transition struct {
	to      State
	actions []Action
}

// Machine is a thread-safe finite state machine with O(1) transition lookup.
type Machine struct {
	mu      sync.RWMutex
	initial State
	current State
	// transitions[from][event]
	transitions map[State]map[Event]transition
}

// New creates a Machine starting in the initial state.
func New(initial State) *Machine {
	return &Machine{
		initial:     initial,
		current:     initial,
		transitions: make(map[State]map[Event]transition),
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// AddTransition registers a state change triggered by an event, with optional
// actions executed before the state flips.
func (m *Machine) AddTransition(from, to State, event Event, actions ...Action) error {
	if from == "" || to == "" || event == "" {
		return ErrInvalidTransition
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transitions[from]; !ok {
		m.transitions[from] = make(map[Event]transition)
	}
	m.transitions[from][event] = transition{to: to, actions: actions}
	return nil
}

// Fire applies an event. Actions run before the state change; any action
// error aborts the transition.
func (m *Machine) Fire(ctx context.Context, event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.transitions[m.current][event]
	if !ok {
		return fmt.Errorf("%w: from %q on %q", ErrNoTransition, m.current, event)
	}

	for _, action := range t.actions {
		if action == nil {
			continue
		}
		if err := action(ctx, m.current, t.to, event); err != nil {
			return fmt.Errorf("transition action failed: %w", err)
		}
	}

	m.current = t.to
	return nil
}

// CanFire reports whether the current state has a transition for the event.
func (m *Machine) CanFire(event Event) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.transitions[m.current][event]
	return ok
}

// Reset returns the machine to its initial state.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}
