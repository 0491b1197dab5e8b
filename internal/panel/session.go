package panel

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/mkefalas/sigmalink/internal/cipher"
	"github.com/mkefalas/sigmalink/internal/logging"
	"github.com/mkefalas/sigmalink/internal/transcript"
)

// Session is an authenticated context against the panel, identified by the
// cookie the panel set during the login handshake. The panel permits one
// active session per credential set and drops it whenever it pleases, so a
// Session is only ever a belief, not a guarantee.
type Session struct {
	Cookie        *http.Cookie
	EstablishedAt time.Time
}

// SessionState tracks the login lifecycle.
type SessionState int

const (
	SessionNone SessionState = iota
	SessionLoggingIn
	SessionActive
)

// SessionManager owns the single session for one panel. It performs the
// login handshake, hands the session to callers, and re-authenticates after
// invalidation. All panel operations for a given panel share one manager;
// independent panels get independent managers.
type SessionManager struct {
	transport   *Transport
	creds       Credentials
	parsePolicy Policy

	// mu serializes the handshake: it is held for the whole login, so
	// concurrent EnsureSession callers block and then reuse the outcome
	// rather than fetching their own tokens.
	mu      sync.Mutex
	state   SessionState
	session Session
}

// NewSessionManager creates a manager for the panel behind transport.
func NewSessionManager(transport *Transport, creds Credentials, parsePolicy Policy) *SessionManager {
	return &SessionManager{
		transport:   transport,
		creds:       creds,
		parsePolicy: parsePolicy,
	}
}

// EnsureSession returns the active session, performing the login handshake
// first if there is none. At most one handshake is ever in flight.
func (m *SessionManager) EnsureSession(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == SessionActive {
		return m.session, nil
	}

	m.state = SessionLoggingIn
	session, err := m.login(ctx)
	if err != nil {
		m.state = SessionNone
		return Session{}, err
	}

	m.state = SessionActive
	m.session = session
	logging.LogSessionEvent(m.transport.BaseURL, "login")
	return session, nil
}

// Invalidate drops the session so the next EnsureSession re-authenticates.
// It makes a best-effort attempt to release the server side too; the panel
// only allows one session per user, and an orphaned one blocks re-login
// until it times out.
func (m *SessionManager) Invalidate(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == SessionActive && m.session.Cookie != nil {
		_, _ = m.transport.Do(ctx, Request{
			Method: http.MethodGet,
			Path:   "done.html",
			Cookie: m.session.Cookie,
		})
	}

	if m.state != SessionNone {
		logging.LogSessionEvent(m.transport.BaseURL, "invalidated")
	}
	m.state = SessionNone
	m.session = Session{}
}

// State returns the current lifecycle state.
func (m *SessionManager) State() SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// login runs the full handshake: the login form, then the panel's user-code
// page. Each attempt fetches a fresh page because the gen_input token is
// one-time; a parse failure burns the token and the retry must get another.
func (m *SessionManager) login(ctx context.Context) (Session, error) {
	var session Session

	attempt := m.parsePolicy.Start()
	for attempt.Next(ctx) {
		s, err := m.loginOnce(ctx)
		if err == nil {
			attempt.Succeed()
			session = s
			break
		}
		if !IsRetryable(err) {
			attempt.Abort(err)
			break
		}
		attempt.Fail(err)
	}

	if attempt.State() != AttemptSucceeded {
		return Session{}, attempt.Err()
	}
	return session, nil
}

// loginOnce performs a single full handshake attempt.
func (m *SessionManager) loginOnce(ctx context.Context) (Session, error) {
	// Stage 1: login form.
	cookie, err := m.submitTokenForm(ctx, "login.html", "login.html", nil, url.Values{
		"username": {m.creds.Username},
		"Submit":   {"Apply"},
	})
	if err != nil {
		return Session{}, err
	}

	// Stage 2: user code. The panel asks for the code again on its own page
	// with a fresh token, submitted to the ucode endpoint.
	cookie2, err := m.submitTokenForm(ctx, "user.html", "ucode", cookie, url.Values{
		"Submit": {"code"},
	})
	if err != nil {
		return Session{}, err
	}
	if cookie2 != nil {
		cookie = cookie2
	}

	if cookie == nil {
		return Session{}, NewAuthError("panel did not set a session cookie")
	}

	return Session{Cookie: cookie, EstablishedAt: time.Now()}, nil
}

// submitTokenForm fetches tokenPage, consumes its one-time token to encode
// the password, and posts the form (plus password, gen_input) to postPath.
// Returns the session cookie from whichever response carried one.
func (m *SessionManager) submitTokenForm(ctx context.Context, tokenPage, postPath string, cookie *http.Cookie, form url.Values) (*http.Cookie, error) {
	pageResp, err := m.transport.Do(ctx, Request{
		Method: http.MethodGet,
		Path:   tokenPage,
		Cookie: cookie,
	})
	if err != nil {
		return nil, err
	}
	if pageResp.Status != http.StatusOK {
		return nil, NewHTTPError(pageResp.Status, "fetching "+tokenPage)
	}
	if c := firstCookie(pageResp); c != nil {
		cookie = c
	}

	token, err := transcript.ExtractToken(pageResp.Body)
	if err != nil {
		return nil, wrapError(err, "extracting login token from "+tokenPage)
	}

	encoded, genValue := cipher.Encode(m.creds.Password, token)
	form.Set("password", encoded)
	form.Set(transcript.TokenField, genValue)

	postResp, err := m.transport.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   postPath,
		Form:   form,
		Cookie: cookie,
	})
	if err != nil {
		return nil, err
	}
	switch {
	case postResp.Status == http.StatusUnauthorized || postResp.Status == http.StatusForbidden:
		return nil, NewAuthError("panel rejected credentials")
	case postResp.Status != http.StatusOK:
		return nil, NewHTTPError(postResp.Status, "submitting "+postPath)
	case transcript.ContainsLoginForm(postResp.Body):
		// The panel re-renders the login form instead of failing the request.
		return nil, NewAuthError("panel rejected credentials")
	}

	if c := firstCookie(postResp); c != nil {
		cookie = c
	}
	return cookie, nil
}

func firstCookie(resp *Response) *http.Cookie {
	if len(resp.Cookies) == 0 {
		return nil
	}
	return resp.Cookies[0]
}
