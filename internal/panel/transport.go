package panel

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mkefalas/sigmalink/internal/logging"
)

// DefaultRequestTimeout bounds every single HTTP exchange with the panel.
// The panel's embedded server either answers within a couple of seconds or
// not at all, so a short timeout converts hangs into retryable failures.
const DefaultRequestTimeout = 5 * time.Second

// Request describes one HTTP exchange with the panel.
type Request struct {
	Method string
	Path   string // relative to the base URL, no leading slash required

	// Form is the urlencoded POST body, nil for GETs.
	Form url.Values

	// Cookie is the session cookie to present, if any. The transport keeps
	// no jar; session state belongs to the session manager.
	Cookie *http.Cookie

	// Referer is set on requests the panel validates the navigation chain
	// for (part.cgi and the zones page reject referer-less requests).
	Referer string
}

// Response is the outcome of a completed exchange. Statuses below 500 are
// returned as data, not errors: the caller decides what a 4xx or a login
// bounce means for its session.
type Response struct {
	Status  int
	Body    string
	Cookies []*http.Cookie
}

// Transport executes HTTP requests against the panel with the transport
// retry policy: network failures and 5xx responses are retried with
// exponential backoff, everything else is returned immediately. It holds no
// state between calls.
type Transport struct {
	BaseURL    string
	HTTPClient *http.Client
	Policy     Policy
}

// NewTransport creates a transport for the panel at baseURL
// (e.g., "http://192.168.1.50:5053").
func NewTransport(baseURL string) *Transport {
	return &Transport{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultRequestTimeout},
		Policy:     DefaultTransportPolicy,
	}
}

// Do executes the request under the transport retry policy.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	attempt := t.Policy.Start()
	for attempt.Next(ctx) {
		resp, err := t.doOnce(ctx, req)
		if err != nil {
			if !IsRetryable(err) {
				attempt.Abort(err)
				break
			}
			logging.Debug("panel request failed, will retry",
				zap.String("path", req.Path),
				zap.Int("attempt", attempt.Number()),
				zap.Error(err),
			)
			attempt.Fail(err)
			continue
		}
		if resp.Status >= 500 {
			logging.Debug("panel server error, will retry",
				zap.String("path", req.Path),
				zap.Int("status", resp.Status),
				zap.Int("attempt", attempt.Number()),
			)
			attempt.Fail(NewHTTPError(resp.Status, fmt.Sprintf("panel returned %d for %s", resp.Status, req.Path)))
			continue
		}
		attempt.Succeed()
		return resp, nil
	}
	return nil, attempt.Err()
}

// doOnce performs a single exchange without retry bookkeeping.
func (t *Transport) doOnce(ctx context.Context, req Request) (*Response, error) {
	u := t.BaseURL + "/" + strings.TrimLeft(req.Path, "/")

	var body io.Reader
	if req.Form != nil {
		body = strings.NewReader(req.Form.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, body)
	if err != nil {
		return nil, NewNetworkError("failed to build request", err)
	}
	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.Cookie != nil {
		httpReq.AddCookie(req.Cookie)
	}
	if req.Referer != "" {
		httpReq.Header.Set("Referer", t.BaseURL+"/"+strings.TrimLeft(req.Referer, "/"))
	}

	httpResp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("request to %s failed", req.Path), err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("reading response from %s failed", req.Path), err)
	}

	return &Response{
		Status:  httpResp.StatusCode,
		Body:    string(respBody),
		Cookies: httpResp.Cookies(),
	}, nil
}
