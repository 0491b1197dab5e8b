// Package panel implements the client engine for Sigma alarm panels.
//
// The panel exposes no API, only an HTML web interface meant for a human
// browser, with a proprietary token-keyed password obfuscation, a single
// session per credential set, and an embedded server that drops sessions and
// truncates pages unpredictably. This package reproduces the browser's
// behavior faithfully enough that the panel cannot tell the difference, and
// absorbs the server's moods behind typed errors and explicit retry
// policies.
//
// A Client owns one authenticated session (via its SessionManager) and the
// two operations everything else builds on: FetchStatus and SendCommand.
// Executor layers command retry and post-command verification on top.
// Polling lives in the poll package.
package panel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mkefalas/sigmalink/internal/transcript"
)

// Options tune a Client. Zero-value fields fall back to defaults.
type Options struct {
	TransportPolicy Policy
	ParsePolicy     Policy
	RequestTimeout  time.Duration
}

// Client reads panel state and issues control commands over one shared
// session. Safe for concurrent use; operations serialize on an internal
// lock so an in-flight action is never interleaved with a poll on the same
// session cookie.
type Client struct {
	transport *Transport
	session   *SessionManager

	parsePolicy Policy

	// mu serializes all panel operations. Executor holds it across an
	// entire command-and-verify window.
	mu sync.Mutex
}

// NewClient creates a client for the panel at baseURL
// (e.g., "http://192.168.1.50:5053").
func NewClient(baseURL string, creds Credentials, opts *Options) *Client {
	transportPolicy := DefaultTransportPolicy
	parsePolicy := DefaultParsePolicy
	timeout := DefaultRequestTimeout
	if opts != nil {
		if opts.TransportPolicy.MaxAttempts > 0 {
			transportPolicy = opts.TransportPolicy
		}
		if opts.ParsePolicy.MaxAttempts > 0 {
			parsePolicy = opts.ParsePolicy
		}
		if opts.RequestTimeout > 0 {
			timeout = opts.RequestTimeout
		}
	}

	transport := NewTransport(baseURL)
	transport.Policy = transportPolicy
	transport.HTTPClient.Timeout = timeout

	return &Client{
		transport:   transport,
		session:     NewSessionManager(transport, creds, parsePolicy),
		parsePolicy: parsePolicy,
	}
}

// BaseURL returns the panel's base URL.
func (c *Client) BaseURL() string { return c.transport.BaseURL }

// Session exposes the session manager, mainly so owners can invalidate on
// shutdown.
func (c *Client) Session() *SessionManager { return c.session }

// FetchStatus reads the panel's current state: partition status, battery,
// AC power, and the zones table, merged into one immutable Snapshot. If the
// panel has repudiated the session mid-sequence, the session is invalidated
// and the whole sequence retried exactly once.
func (c *Client) FetchStatus(ctx context.Context) (*transcript.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetchStatus(ctx)
}

// SendCommand issues an arm/disarm command. Success means the panel
// returned 200 without bouncing to the login form; it says nothing about
// whether the panel actually obeyed. Use Executor for verified actions.
func (c *Client) SendCommand(ctx context.Context, action Action) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sendCommand(ctx, action)
}

// fetchStatus is FetchStatus without the lock; executor calls it while
// already holding the operation lock.
func (c *Client) fetchStatus(ctx context.Context) (*transcript.Snapshot, error) {
	session, err := c.session.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}

	snapshot, err := c.fetchOnce(ctx, session)
	if !IsAuthError(err) {
		return snapshot, err
	}

	// Stale cookie: the panel dropped the session behind our back. Rebuild
	// it and retry the sequence exactly once.
	c.session.Invalidate(ctx)
	session, err = c.session.EnsureSession(ctx)
	if err != nil {
		return nil, err
	}
	return c.fetchOnce(ctx, session)
}

// sendCommand is SendCommand without the lock.
func (c *Client) sendCommand(ctx context.Context, action Action) error {
	if !action.Valid() {
		return NewConfigError(fmt.Sprintf("unknown action %q", action))
	}

	session, err := c.session.EnsureSession(ctx)
	if err != nil {
		return err
	}

	resp, err := c.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   action.Endpoint(),
		Cookie: session.Cookie,
	})
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return NewHTTPError(resp.Status, fmt.Sprintf("command %s returned %d", action, resp.Status))
	}
	if transcript.ContainsLoginForm(resp.Body) {
		return NewAuthError(fmt.Sprintf("session repudiated while sending %s", action))
	}
	return nil
}

// fetchOnce runs one full status sequence against an established session:
// navigate to the panel page, select the partition, parse status, then fetch
// and parse the zones table. Parse failures re-fetch the page under the
// HTML-parse policy; the panel's server truncates pages often enough that
// this matters.
func (c *Client) fetchOnce(ctx context.Context, session Session) (*transcript.Snapshot, error) {
	var status *transcript.PartitionStatus
	var partitionBody string

	err := c.withParseRetry(ctx, func() error {
		body, err := c.selectPartition(ctx, session)
		if err != nil {
			return err
		}
		parsed, err := transcript.ParseStatus(body)
		if err != nil {
			return wrapError(err, "parsing partition status")
		}
		partitionBody = body
		status = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	var zones []transcript.Zone
	zonesPath := transcript.ZonesPath(partitionBody)

	err = c.withParseRetry(ctx, func() error {
		body, err := c.fetchPage(ctx, session, zonesPath, "part.cgi")
		if err != nil {
			return err
		}
		parsed, err := transcript.ParseZones(body)
		if err != nil {
			return wrapError(err, "parsing zones table")
		}
		if len(parsed) == 0 {
			return NewParseError("zones table is empty", nil)
		}
		zones = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &transcript.Snapshot{
		State:         status.State,
		ZonesBypassed: status.ZonesBypassed,
		Zones:         zones,
		BatteryVolt:   status.BatteryVolt,
		ACPower:       status.ACPower,
		CapturedAt:    time.Now(),
	}, nil
}

// selectPartition navigates panel.html and posts the partition selection,
// returning the partition page. Single-partition panels only: always part1.
func (c *Client) selectPartition(ctx context.Context, session Session) (string, error) {
	if _, err := c.fetchPage(ctx, session, "panel.html", ""); err != nil {
		return "", err
	}

	resp, err := c.transport.Do(ctx, Request{
		Method:  http.MethodPost,
		Path:    "part.cgi",
		Form:    url.Values{"part": {"part1"}, "Submit": {"code"}},
		Cookie:  session.Cookie,
		Referer: "panel.html",
	})
	if err != nil {
		return "", err
	}
	if resp.Status != http.StatusOK {
		return "", NewHTTPError(resp.Status, "selecting partition")
	}
	if transcript.ContainsLoginForm(resp.Body) {
		return "", NewAuthError("session repudiated while selecting partition")
	}
	return resp.Body, nil
}

// fetchPage GETs a panel page under the session, mapping login bounces to
// auth errors.
func (c *Client) fetchPage(ctx context.Context, session Session, path, referer string) (string, error) {
	resp, err := c.transport.Do(ctx, Request{
		Method:  http.MethodGet,
		Path:    path,
		Cookie:  session.Cookie,
		Referer: referer,
	})
	if err != nil {
		return "", err
	}
	if resp.Status != http.StatusOK {
		return "", NewHTTPError(resp.Status, "fetching "+path)
	}
	if transcript.ContainsLoginForm(resp.Body) {
		return "", NewAuthError("session repudiated while fetching " + path)
	}
	return resp.Body, nil
}

// withParseRetry runs fn under the HTML-parse retry policy. Only parse
// failures are retried here; transport and auth errors abort so the caller
// can react.
func (c *Client) withParseRetry(ctx context.Context, fn func() error) error {
	attempt := c.parsePolicy.Start()
	for attempt.Next(ctx) {
		err := fn()
		if err == nil {
			attempt.Succeed()
			return nil
		}
		if !IsParseError(err) {
			attempt.Abort(err)
			break
		}
		attempt.Fail(err)
	}
	return attempt.Err()
}
