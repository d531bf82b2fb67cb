// Package completion implements the cross-window checkout completion
// protocol. Checkout runs in a second browsing context, so the success or
// cancel signal has to be relayed back to the initiating page: as a typed
// message when an opener relationship exists, or encoded in redirect query
// parameters when it does not. The initiating side is modeled as an explicit
// finite state machine with a bounded wait and a polling fallback, so a
// window closed without ever posting can never hang the flow.
package completion

import (
	"net/url"

	"github.com/aulcerts/entitlement/pkg/statemachine"
)

// MessageType identifies a cross-window completion message.
type MessageType string

const (
	MessageSuccess MessageType = "payment-success"
	MessageCancel  MessageType = "payment-cancel"
)

// Message is the typed payload a completion page posts to its opener.
type Message struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"sessionId,omitempty"`
}

// Result classifies how a checkout flow ended.
type Result string

const (
	ResultSuccess  Result = "success"
	ResultCancel   Result = "cancel"
	ResultTimedOut Result = "timed-out"
)

// Outcome is the resolved end of one checkout flow. SessionID is set only on
// success arriving via message or query parameters; a success resolved by
// polling has none.
type Outcome struct {
	Result    Result
	SessionID string
}

// Flow states.
const (
	StateIdle            statemachine.State = "idle"
	StateAwaiting        statemachine.State = "awaiting-completion"
	StateResolvedSuccess statemachine.State = "resolved-success"
	StateResolvedCancel  statemachine.State = "resolved-cancel"
	StateTimedOut        statemachine.State = "timed-out"
)

// Flow events.
const (
	EventOpen           statemachine.Event = "open"
	EventMessageSuccess statemachine.Event = "message-success"
	EventMessageCancel  statemachine.Event = "message-cancel"
	EventTimeout        statemachine.Event = "timeout"
)

// NewFlow builds the completion state machine:
//
//	idle -> awaiting-completion -> {resolved-success, resolved-cancel, timed-out}
//
// Resolved states are terminal; a late message after timeout has no
// transition and is rejected.
func NewFlow() *statemachine.Machine {
	m := statemachine.New(StateIdle)
	// Registration only fails on empty names.
	_ = m.AddTransition(StateIdle, StateAwaiting, EventOpen)
	_ = m.AddTransition(StateAwaiting, StateResolvedSuccess, EventMessageSuccess)
	_ = m.AddTransition(StateAwaiting, StateResolvedCancel, EventMessageCancel)
	_ = m.AddTransition(StateAwaiting, StateTimedOut, EventTimeout)
	return m
}

// ResolveFromQuery maps load-time query parameters to an outcome for the
// no-opener path, where the completion page redirected instead of posting.
// The second return is false when the query carries no outcome.
func ResolveFromQuery(q url.Values) (Outcome, bool) {
	switch {
	case q.Get("success") == "true":
		return Outcome{Result: ResultSuccess, SessionID: q.Get("session_id")}, true
	case q.Get("canceled") == "true":
		return Outcome{Result: ResultCancel}, true
	default:
		return Outcome{}, false
	}
}
