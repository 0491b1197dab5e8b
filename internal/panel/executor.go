package panel

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mkefalas/sigmalink/internal/logging"
	"github.com/mkefalas/sigmalink/internal/transcript"
)

// ErrActionPending is returned when an action arrives while another is
// still in flight on the same client. Overlapping actions on one session
// are never interleaved; the caller retries once the pending one resolves.
var ErrActionPending = errors.New("another panel action is already in flight")

// DefaultVerifyDelay is how long the panel gets to apply a command before
// the verification fetch. Arming runs an exit-delay countdown internally,
// so the state change is not instantaneous.
const DefaultVerifyDelay = 5 * time.Second

// Result reports the outcome of an executed action.
type Result struct {
	Action   Action
	Success  bool
	Attempts int

	// FinalState is the alarm state observed by the last verification
	// fetch, when one completed.
	FinalState transcript.AlarmState

	Err error
}

// Executor runs verified actions against one client. A bare SendCommand
// only proves the panel returned 200; panels silently ignore commands (for
// example arming with an open zone), so the executor re-reads the state
// after a delay and only reports success when the panel actually moved.
//
// At most one action is in flight per executor; concurrent requests are
// rejected with ErrActionPending. While an action runs, the executor holds
// the client's operation lock, so polling on the same session defers rather
// than interleaving cookies mid-command.
type Executor struct {
	client      *Client
	policy      Policy
	verifyDelay time.Duration

	pending atomic.Bool
}

// NewExecutor creates an executor with the given action retry policy and
// post-command verification delay. Zero values fall back to defaults.
func NewExecutor(client *Client, policy Policy, verifyDelay time.Duration) *Executor {
	if policy.MaxAttempts == 0 {
		policy = DefaultActionPolicy
	}
	if verifyDelay == 0 {
		verifyDelay = DefaultVerifyDelay
	}
	return &Executor{client: client, policy: policy, verifyDelay: verifyDelay}
}

// Execute runs the action to a verified conclusion. Each attempt sends the
// command, waits the verification delay, re-reads the panel state, and
// compares against the action's expected state; a mismatch counts as a
// failed attempt. The panel already being in the desired state short-
// circuits without sending anything.
func (e *Executor) Execute(ctx context.Context, action Action) Result {
	if !action.Valid() {
		return Result{Action: action, Err: NewConfigError(fmt.Sprintf("unknown action %q", action))}
	}
	if !e.pending.CompareAndSwap(false, true) {
		return Result{Action: action, Err: ErrActionPending}
	}
	defer e.pending.Store(false)

	// Hold the operation lock for the whole command-and-verify window.
	e.client.mu.Lock()
	defer e.client.mu.Unlock()

	expected := action.ExpectedState()
	result := Result{Action: action}

	attempt := e.policy.Start()
	for attempt.Next(ctx) {
		result.Attempts = attempt.Number()

		state, err := e.attemptAction(ctx, action, expected)
		if state != "" {
			result.FinalState = state
		}
		logging.LogActionAttempt(e.client.BaseURL(), action.String(), attempt.Number(), err)
		if err == nil {
			attempt.Succeed()
			result.Success = true
			return result
		}

		if IsAuthError(err) {
			// Force a fresh handshake before the next attempt.
			e.client.session.Invalidate(ctx)
		}
		attempt.Fail(err)
	}

	result.Err = attempt.Err()
	return result
}

// attemptAction performs one command-and-verify cycle. Returns the observed
// final state (empty until a verification fetch completes) and the attempt
// error, nil on verified success.
func (e *Executor) attemptAction(ctx context.Context, action Action, expected transcript.AlarmState) (transcript.AlarmState, error) {
	current, err := e.client.fetchStatus(ctx)
	if err != nil {
		return "", err
	}
	if current.State == expected {
		// Nothing to do; the panel is already where the caller wants it.
		return current.State, nil
	}

	if err := e.client.sendCommand(ctx, action); err != nil {
		return "", err
	}

	if err := sleepCtx(ctx, e.verifyDelay); err != nil {
		return "", err
	}

	verified, err := e.client.fetchStatus(ctx)
	if err != nil {
		return "", err
	}
	if verified.State != expected {
		return verified.State, NewVerificationError(fmt.Sprintf(
			"after %s expected state %s, panel reports %s", action, expected, verified.State))
	}
	return verified.State, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
