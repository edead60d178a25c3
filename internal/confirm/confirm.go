// Package confirm implements the confirmation prompt that guards every
// destructive moderation action.
//
// A prompt renders a preview with a confirm and a cancel action, then waits
// for exactly one of: the owner confirming, the owner cancelling, or the
// confirmation window closing. The first of these to claim the prompt wins;
// everything after it is ignored, so the guarded action runs at most once
// even when the transport redelivers a click.
package confirm

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gavel/internal/metrics"
	"gavel/internal/render"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultTimeout is the confirmation window
const DefaultTimeout = 30 * time.Second

// State is the lifecycle of a single prompt
type State int32

const (
	StatePreviewing State = iota
	StateConfirmed
	StateCancelled
	StateTimedOut
)

func (s State) String() string {
	switch s {
	case StatePreviewing:
		return "previewing"
	case StateConfirmed:
		return "confirmed"
	case StateCancelled:
		return "cancelled"
	case StateTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Event is a user clicking one of a prompt's actions
type Event struct {
	ActorID  string
	ActionID string
}

// Subscription describes which action events a prompt wants delivered
type Subscription struct {
	// ActorID filters out events from anyone else
	ActorID   string
	ActionIDs []string
	// Max is the number of accepted events after which delivery stops
	Max int
}

// Gateway is the reply surface of one command invocation
type Gateway interface {
	// Reply sends the initial response to the invocation
	Reply(ctx context.Context, msg render.Message, actions []render.Action) error

	// EditReply replaces the initial response
	EditReply(ctx context.Context, msg render.Message, actions []render.Action) error

	// OnUserAction subscribes to clicks on the given actions. The returned
	// stop function ends the subscription and is safe to call more than once.
	OnUserAction(ctx context.Context, sub Subscription) (<-chan Event, func(), error)
}

// Request is a single confirmation round-trip
type Request struct {
	// Owner is the only actor whose responses are accepted
	Owner        string
	Preview      render.Message
	ConfirmLabel string
	CancelLabel  string

	// OnConfirm runs the guarded action and returns what to show afterwards.
	// It handles its own failures.
	OnConfirm func(ctx context.Context) render.Message
}

// Prompt presents confirmation requests
type Prompt struct {
	timeout time.Duration
	newID   func() string
	after   func(time.Duration) (<-chan time.Time, func() bool)
}

// Option configures a Prompt
type Option func(*Prompt)

// WithTimeout sets the confirmation window
func WithTimeout(d time.Duration) Option {
	return func(p *Prompt) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithIDs replaces the action ID generator
func WithIDs(fn func() string) Option {
	return func(p *Prompt) {
		p.newID = fn
	}
}

// WithTimer replaces the timer used for the confirmation window
func WithTimer(after func(time.Duration) (<-chan time.Time, func() bool)) Option {
	return func(p *Prompt) {
		p.after = after
	}
}

// NewPrompt creates a Prompt
func NewPrompt(opts ...Option) *Prompt {
	p := &Prompt{
		timeout: DefaultTimeout,
		newID:   uuid.NewString,
		after: func(d time.Duration) (<-chan time.Time, func() bool) {
			t := time.NewTimer(d)
			return t.C, t.Stop
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Timeout returns the confirmation window
func (p *Prompt) Timeout() time.Duration {
	return p.timeout
}

// pending is the single in-flight confirmation of one invocation
type pending struct {
	confirmID string
	cancelID  string
	owner     string
	deadline  time.Time
	state     atomic.Int32
}

// claim moves the prompt out of Previewing. Only the first caller wins.
func (p *pending) claim(to State) bool {
	return p.state.CompareAndSwap(int32(StatePreviewing), int32(to))
}

func (p *pending) current() State {
	return State(p.state.Load())
}

// Present renders the preview and blocks until the prompt reaches a
// terminal state. The returned error is non-nil only when the preview
// could not be shown or ctx ended before anyone responded.
func (p *Prompt) Present(ctx context.Context, gw Gateway, req Request) (State, error) {
	if req.OnConfirm == nil {
		return StatePreviewing, errors.New("confirm: OnConfirm is required")
	}

	id := p.newID()
	pend := &pending{
		confirmID: "confirm:" + id,
		cancelID:  "cancel:" + id,
		owner:     req.Owner,
		deadline:  time.Now().Add(p.timeout),
	}

	events, stop, err := gw.OnUserAction(ctx, Subscription{
		ActorID:   pend.owner,
		ActionIDs: []string{pend.confirmID, pend.cancelID},
		Max:       1,
	})
	if err != nil {
		return StatePreviewing, fmt.Errorf("subscribe to prompt actions: %w", err)
	}
	defer stop()

	if err := gw.Reply(ctx, req.Preview, p.actions(pend, req, false)); err != nil {
		return StatePreviewing, fmt.Errorf("render preview: %w", err)
	}

	metrics.ConfirmationsPending.Inc()
	defer metrics.ConfirmationsPending.Dec()

	expired, stopTimer := p.after(time.Until(pend.deadline))
	defer stopTimer()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				// Subscription ended without an accepted response; only the
				// timer can settle the prompt now.
				events = nil
				continue
			}
			if ev.ActorID != pend.owner {
				continue
			}

			switch ev.ActionID {
			case pend.cancelID:
				if !pend.claim(StateCancelled) {
					continue
				}
				stop()
				p.finish(ctx, gw, render.Cancelled(), nil, StateCancelled)
				return StateCancelled, nil

			case pend.confirmID:
				if !pend.claim(StateConfirmed) {
					continue
				}
				stop()
				result := req.OnConfirm(ctx)
				p.finish(ctx, gw, result, nil, StateConfirmed)
				return StateConfirmed, nil
			}

		case <-expired:
			if !pend.claim(StateTimedOut) {
				return pend.current(), nil
			}
			stop()
			p.finish(ctx, gw, render.Expired(p.timeout), p.actions(pend, req, true), StateTimedOut)
			return StateTimedOut, nil

		case <-ctx.Done():
			if !pend.claim(StateTimedOut) {
				return pend.current(), nil
			}
			stop()
			// The invocation context is gone; render on a detached one so the
			// prompt doesn't stay clickable.
			p.finish(context.WithoutCancel(ctx), gw, render.Expired(p.timeout), p.actions(pend, req, true), StateTimedOut)
			return StateTimedOut, ctx.Err()
		}
	}
}

// finish renders the terminal result. Render failures are logged and
// swallowed: the reply may already have been dismissed or deleted.
func (p *Prompt) finish(ctx context.Context, gw Gateway, msg render.Message, actions []render.Action, state State) {
	metrics.ConfirmationsTotal.WithLabelValues(state.String()).Inc()
	if err := gw.EditReply(ctx, msg, actions); err != nil {
		log.Debug().Err(err).Str("state", state.String()).Msg("confirm: could not render final prompt state")
	}
}

func (p *Prompt) actions(pend *pending, req Request, disabled bool) []render.Action {
	confirmLabel := req.ConfirmLabel
	if confirmLabel == "" {
		confirmLabel = "Confirm"
	}
	cancelLabel := req.CancelLabel
	if cancelLabel == "" {
		cancelLabel = "Cancel"
	}
	return []render.Action{
		{ID: pend.confirmID, Label: confirmLabel, Style: render.StyleDanger, Disabled: disabled},
		{ID: pend.cancelID, Label: cancelLabel, Style: render.StyleSecondary, Disabled: disabled},
	}
}
