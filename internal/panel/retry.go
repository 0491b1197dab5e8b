package panel

import (
	"context"
	"math"
	"time"
)

// Policy describes one retry class: how many attempts, and how the delay
// between them grows. Separate instances govern transport calls, HTML
// parsing, full fetch cycles, and action commands; they never share state.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the delay before the second attempt.
	BackoffBase time.Duration

	// Multiplier scales the delay for each further attempt:
	// delay(n) = BackoffBase * Multiplier^(n-1).
	Multiplier float64

	// MaxDelay caps the computed delay. Zero means uncapped.
	MaxDelay time.Duration
}

// Default policies. Bases and attempt counts mirror the panel's observed
// tolerances: its embedded server recovers from overload within a second or
// two, and hammering it faster just extends the outage.
var (
	DefaultTransportPolicy = Policy{MaxAttempts: 5, BackoffBase: 500 * time.Millisecond, Multiplier: 2, MaxDelay: 30 * time.Second}
	DefaultParsePolicy     = Policy{MaxAttempts: 3, BackoffBase: 500 * time.Millisecond, Multiplier: 2, MaxDelay: 30 * time.Second}
	DefaultFetchPolicy     = Policy{MaxAttempts: 3, BackoffBase: 500 * time.Millisecond, Multiplier: 2, MaxDelay: 30 * time.Second}
	DefaultActionPolicy    = Policy{MaxAttempts: 5, BackoffBase: 2 * time.Second, Multiplier: 2, MaxDelay: 30 * time.Second}
)

// Delay returns the pause before attempt n+1, i.e. after the n-th attempt
// has failed. Delay(0) is zero: the first attempt starts immediately.
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	d := time.Duration(float64(p.BackoffBase) * math.Pow(p.Multiplier, float64(n-1)))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// AttemptState tracks where a retry sequence stands.
type AttemptState int

const (
	AttemptIdle AttemptState = iota
	Attempting
	AttemptSucceeded
	AttemptExhausted
)

// Attempt is the explicit state machine driving one retry sequence:
// Idle -> Attempting(n) -> Succeeded | Exhausted. Callers loop on Next,
// record failures with Fail, and mark completion with Succeed.
//
//	a := policy.Start()
//	for a.Next(ctx) {
//	    err := op()
//	    if err == nil {
//	        a.Succeed()
//	        break
//	    }
//	    a.Fail(err)
//	}
type Attempt struct {
	policy  Policy
	n       int
	state   AttemptState
	lastErr error
}

// Start returns a fresh attempt sequence in the Idle state.
func (p Policy) Start() *Attempt {
	return &Attempt{policy: p}
}

// Next advances the machine to the next attempt, sleeping the backoff delay
// first for every attempt after the first. It returns false once the policy
// is exhausted, the sequence has succeeded, or the context is cancelled.
func (a *Attempt) Next(ctx context.Context) bool {
	if a.state == AttemptSucceeded || a.state == AttemptExhausted {
		return false
	}
	if a.n >= a.policy.MaxAttempts {
		a.state = AttemptExhausted
		return false
	}

	if d := a.policy.Delay(a.n); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			a.state = AttemptExhausted
			a.lastErr = ctx.Err()
			return false
		case <-timer.C:
		}
	}

	a.n++
	a.state = Attempting
	return true
}

// Succeed marks the sequence complete.
func (a *Attempt) Succeed() { a.state = AttemptSucceeded }

// Fail records the failure of the current attempt.
func (a *Attempt) Fail(err error) { a.lastErr = err }

// Abort records err and stops the sequence without further attempts. Used
// when an attempt fails with an error that retrying cannot fix.
func (a *Attempt) Abort(err error) {
	a.lastErr = err
	a.state = AttemptExhausted
}

// State returns the current machine state.
func (a *Attempt) State() AttemptState { return a.state }

// Number returns the 1-based index of the current attempt.
func (a *Attempt) Number() int { return a.n }

// Err returns the most recently recorded failure, or the context error if
// the sequence was cancelled mid-backoff.
func (a *Attempt) Err() error { return a.lastErr }
