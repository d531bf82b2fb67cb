package completion

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aulcerts/entitlement/pkg/statemachine"
)

// StatusFunc fetches the authoritative entitled flag, typically via the
// profile endpoint. Used by the polling fallback when no message arrives.
type StatusFunc func(ctx context.Context) (entitled bool, err error)

// ErrNotAwaiting is returned when Await is called on a waiter whose flow is
// not in the idle state.
var ErrNotAwaiting = errors.New("completion flow already started")

// Waiter resolves one checkout flow on the initiating side. It consumes
// completion messages with a bounded wait; if the checkout window closes
// without posting, or the wait expires, it falls back to polling the
// entitlement status instead of blocking forever.
type Waiter struct {
	flow     *statemachine.Machine
	status   StatusFunc
	messages chan Message
	closed   chan struct{}

	waitTimeout  time.Duration
	pollInterval time.Duration
	pollTimeout  time.Duration

	log *slog.Logger
}

// WaiterOption configures a Waiter.
type WaiterOption func(*Waiter)

// WithWaitTimeout bounds how long Await listens for a message before
// falling back to polling.
func WithWaitTimeout(d time.Duration) WaiterOption {
	return func(w *Waiter) {
		if d > 0 {
			w.waitTimeout = d
		}
	}
}

// WithPolling sets the fallback poll interval and overall poll budget.
func WithPolling(interval, timeout time.Duration) WaiterOption {
	return func(w *Waiter) {
		if interval > 0 {
			w.pollInterval = interval
		}
		if timeout > 0 {
			w.pollTimeout = timeout
		}
	}
}

// WithLogger supplies a logger. Nil keeps the default.
func WithLogger(log *slog.Logger) WaiterOption {
	return func(w *Waiter) {
		if log != nil {
			w.log = log
		}
	}
}

// NewWaiter creates a Waiter around an authoritative status fetch.
func NewWaiter(status StatusFunc, opts ...WaiterOption) *Waiter {
	w := &Waiter{
		flow:         NewFlow(),
		status:       status,
		messages:     make(chan Message, 1),
		closed:       make(chan struct{}),
		waitTimeout:  2 * time.Minute,
		pollInterval: 2 * time.Second,
		pollTimeout:  30 * time.Second,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State exposes the current flow state.
func (w *Waiter) State() statemachine.State {
	return w.flow.Current()
}

// Deliver hands a completion message to the waiter. Messages beyond the
// first are dropped; the flow resolves once.
func (w *Waiter) Deliver(msg Message) {
	select {
	case w.messages <- msg:
	default:
	}
}

// WindowClosed signals that the checkout window went away without posting.
// Safe to call once.
func (w *Waiter) WindowClosed() {
	close(w.closed)
}

// Await opens the flow and blocks until it resolves: a message arrives, the
// window closes and polling settles it, or the wait budget runs out. The
// returned outcome is always a terminal state; Await never blocks
// indefinitely.
func (w *Waiter) Await(ctx context.Context) (Outcome, error) {
	if err := w.flow.Fire(ctx, EventOpen); err != nil {
		return Outcome{}, ErrNotAwaiting
	}

	timer := time.NewTimer(w.waitTimeout)
	defer timer.Stop()

	select {
	case msg := <-w.messages:
		return w.resolveMessage(ctx, msg)

	case <-w.closed:
		// Window closed without a message: the user may still have paid.
		// Reconcile against the store instead of assuming cancellation.
		return w.pollForResolution(ctx)

	case <-timer.C:
		return w.pollForResolution(ctx)

	case <-ctx.Done():
		_ = w.flow.Fire(context.WithoutCancel(ctx), EventTimeout)
		return Outcome{Result: ResultTimedOut}, ctx.Err()
	}
}

func (w *Waiter) resolveMessage(ctx context.Context, msg Message) (Outcome, error) {
	switch msg.Type {
	case MessageSuccess:
		if err := w.flow.Fire(ctx, EventMessageSuccess); err != nil {
			return Outcome{}, err
		}
		return Outcome{Result: ResultSuccess, SessionID: msg.SessionID}, nil
	case MessageCancel:
		if err := w.flow.Fire(ctx, EventMessageCancel); err != nil {
			return Outcome{}, err
		}
		return Outcome{Result: ResultCancel}, nil
	default:
		// Unknown message type: treat like a missing signal and poll.
		w.log.Warn("unknown completion message type", slog.String("type", string(msg.Type)))
		return w.pollForResolution(ctx)
	}
}

// pollForResolution polls the authoritative status until it reports
// entitled, the poll budget runs out, or the context ends.
func (w *Waiter) pollForResolution(ctx context.Context) (Outcome, error) {
	pollCtx, cancel := context.WithTimeout(ctx, w.pollTimeout)
	defer cancel()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		entitled, err := w.status(pollCtx)
		if err != nil {
			w.log.Debug("entitlement poll failed", slog.Any("error", err))
		} else if entitled {
			if err := w.flow.Fire(ctx, EventMessageSuccess); err != nil {
				return Outcome{}, err
			}
			return Outcome{Result: ResultSuccess}, nil
		}

		select {
		case <-pollCtx.Done():
			if err := w.flow.Fire(context.WithoutCancel(ctx), EventTimeout); err != nil {
				return Outcome{}, err
			}
			return Outcome{Result: ResultTimedOut}, nil
		case <-ticker.C:
		}
	}
}
