// Package poll drives periodic status reads against one panel and turns
// their outcomes into an availability signal.
//
// Each cycle runs the client's full fetch sequence under its own retry
// policy, layered above the transport-level retries inside the client. A
// consecutive-failure counter feeds the availability policy: crossing the
// threshold announces unavailable exactly once, and the next good cycle
// announces available again. Subscribers receive snapshots and the two
// transition events, nothing else.
package poll

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mkefalas/sigmalink/internal/logging"
	"github.com/mkefalas/sigmalink/internal/panel"
	"github.com/mkefalas/sigmalink/internal/transcript"
)

const (
	// DefaultInterval is the poll period when the caller does not set one.
	DefaultInterval = 10 * time.Second

	// MinInterval is the floor; the panel's embedded server starts shedding
	// requests when polled faster. Intervals below it are rejected, never
	// clamped.
	MinInterval = 5 * time.Second

	// DefaultThreshold is how many consecutive failed cycles mark the panel
	// unavailable.
	DefaultThreshold = 1
)

// Update is one event published to subscribers: either a successful cycle
// (Snapshot set, Available true) or an availability transition to false
// (Snapshot nil, Err carrying the last cycle failure).
type Update struct {
	Snapshot  *transcript.Snapshot
	Available bool
	Err       error
}

// Options tune a Coordinator. Zero values fall back to defaults.
type Options struct {
	// Interval between poll cycles. Must be at least MinInterval.
	Interval time.Duration

	// FetchPolicy retries the whole fetch cycle (session + pages + parse).
	FetchPolicy panel.Policy

	// Threshold is consecutive failed cycles before the panel is reported
	// unavailable.
	Threshold int
}

// Coordinator polls one client on a timer and fans snapshots out to
// subscribers. Create with New, start with Start, and always Stop; after
// Stop returns no further cycle fires and the session has been released.
type Coordinator struct {
	client      *panel.Client
	interval    time.Duration
	fetchPolicy panel.Policy
	threshold   int

	mu        sync.Mutex
	subs      []chan Update
	available bool
	failures  int
	last      *transcript.Snapshot

	stopOnce sync.Once
	cancel   context.CancelFunc
	done     chan struct{}
}

// New validates options and builds a coordinator. An interval below
// MinInterval or a non-positive threshold is a configuration error; neither
// is ever silently adjusted.
func New(client *panel.Client, opts Options) (*Coordinator, error) {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	if interval < MinInterval {
		return nil, panel.NewConfigError(fmt.Sprintf(
			"poll interval %s is below the %s floor", interval, MinInterval))
	}

	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}
	if threshold < 0 {
		return nil, panel.NewConfigError(fmt.Sprintf(
			"unavailable threshold %d must be positive", threshold))
	}

	policy := opts.FetchPolicy
	if policy.MaxAttempts == 0 {
		policy = panel.DefaultFetchPolicy
	}

	return &Coordinator{
		client:      client,
		interval:    interval,
		fetchPolicy: policy,
		threshold:   threshold,
		available:   true,
		done:        make(chan struct{}),
	}, nil
}

// Subscribe registers a new update channel. Delivery is best-effort: a
// subscriber that falls behind misses intermediate updates and catches up
// on the next cycle. Subscribe before Start to observe every cycle.
func (c *Coordinator) Subscribe() <-chan Update {
	ch := make(chan Update, 8)
	c.mu.Lock()
	c.subs = append(c.subs, ch)
	c.mu.Unlock()
	return ch
}

// Available reports the current availability verdict.
func (c *Coordinator) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

// LastSnapshot returns the most recent successful snapshot, nil before the
// first good cycle.
func (c *Coordinator) LastSnapshot() *transcript.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Start launches the poll loop: one cycle immediately, then one per
// interval. It returns right away; use Stop to shut the loop down.
func (c *Coordinator) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.run(ctx)
}

// Stop cancels the poll loop, waits for any in-flight cycle to finish, and
// releases the panel session. No cycle fires after Stop returns. Safe to
// call more than once.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()
		<-c.done

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		c.client.Session().Invalidate(ctx)
	})
}

func (c *Coordinator) run(ctx context.Context) {
	defer close(c.done)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	c.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.cycle(ctx)
		}
	}
}

// cycle runs one fetch under the fetch-cycle policy and applies the
// availability policy to its outcome.
func (c *Coordinator) cycle(ctx context.Context) {
	snapshot, err := c.fetch(ctx)
	if ctx.Err() != nil {
		// Shutdown mid-cycle is not a panel failure.
		return
	}
	if err != nil {
		c.recordFailure(err)
		return
	}
	c.recordSuccess(snapshot)
}

// fetch retries the client's whole fetch sequence. Retryable faults get
// further attempts; auth and config failures abort, because repeating the
// same cycle cannot fix them.
func (c *Coordinator) fetch(ctx context.Context) (*transcript.Snapshot, error) {
	var snapshot *transcript.Snapshot

	attempt := c.fetchPolicy.Start()
	for attempt.Next(ctx) {
		snap, err := c.client.FetchStatus(ctx)
		if err == nil {
			attempt.Succeed()
			snapshot = snap
			break
		}
		if !panel.IsRetryable(err) {
			attempt.Abort(err)
			break
		}
		attempt.Fail(err)
	}
	if err := attempt.Err(); snapshot == nil && err != nil {
		return nil, err
	}
	if snapshot == nil {
		return nil, panel.NewNetworkError("fetch cycle produced no snapshot", nil)
	}
	return snapshot, nil
}

func (c *Coordinator) recordSuccess(snapshot *transcript.Snapshot) {
	c.mu.Lock()
	c.failures = 0
	c.last = snapshot
	c.available = true
	subs := append([]chan Update(nil), c.subs...)
	c.mu.Unlock()

	logging.LogPollCycle(c.client.BaseURL(), true, 0)
	publish(subs, Update{Snapshot: snapshot, Available: true})
}

func (c *Coordinator) recordFailure(err error) {
	c.mu.Lock()
	c.failures++
	failures := c.failures
	crossed := c.available && failures >= c.threshold
	if crossed {
		c.available = false
	}
	subs := append([]chan Update(nil), c.subs...)
	c.mu.Unlock()

	logging.LogPollCycle(c.client.BaseURL(), false, failures)
	if crossed {
		// Announced once per crossing; further failed cycles stay silent
		// until the next success flips availability back.
		publish(subs, Update{Available: false, Err: err})
	}
}

func publish(subs []chan Update, u Update) {
	for _, ch := range subs {
		select {
		case ch <- u:
		default:
		}
	}
}
