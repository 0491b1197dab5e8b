package panel

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"
	"syscall"

	"github.com/mkefalas/sigmalink/internal/transcript"
)

// ErrorType categorizes failures talking to the panel.
type ErrorType int

const (
	// ErrTypeNetwork is a transport-level failure (refused, unreachable, timeout)
	ErrTypeNetwork ErrorType = iota
	// ErrTypeAuth means the panel rejected credentials or repudiated the session
	ErrTypeAuth
	// ErrTypeHTTP is a non-200 response outside the auth cases
	ErrTypeHTTP
	// ErrTypeParse means the panel's markup did not have the expected shape
	ErrTypeParse
	// ErrTypeVerification means a command returned 200 but the panel did not
	// end up in the expected state
	ErrTypeVerification
	// ErrTypeConfig is an invalid setting rejected before any panel traffic
	ErrTypeConfig
)

// String returns a human-readable name for the error type.
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeAuth:
		return "Authentication Error"
	case ErrTypeHTTP:
		return "HTTP Error"
	case ErrTypeParse:
		return "Parse Error"
	case ErrTypeVerification:
		return "Verification Error"
	case ErrTypeConfig:
		return "Configuration Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// PanelError is the error type for all panel communication failures.
type PanelError struct {
	Type       ErrorType
	Message    string
	StatusCode int   // HTTP status code when applicable
	Err        error // underlying error, if any
	Retryable  bool
}

// Error implements the error interface.
func (e *PanelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for error chain inspection.
func (e *PanelError) Unwrap() error { return e.Err }

// NewNetworkError wraps a transport failure. Timeouts, refused connections,
// and unreachable hosts are all retryable; only DNS failures are not, since
// retrying a bad hostname never helps.
func NewNetworkError(message string, err error) *PanelError {
	retryable := true

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		retryable = false
		message = fmt.Sprintf("%s (DNS resolution failed for %s)", message, dnsErr.Name)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch {
		case errors.Is(opErr.Err, syscall.ECONNREFUSED):
			message += " (panel refused connection)"
		case errors.Is(opErr.Err, syscall.EHOSTUNREACH):
			message += " (panel unreachable)"
		}
	}

	if os.IsTimeout(err) {
		message += " (timed out)"
	}

	return &PanelError{Type: ErrTypeNetwork, Message: message, Err: err, Retryable: retryable}
}

// NewAuthError reports rejected credentials or a repudiated session. Not
// retryable at the transport level; the session layer decides whether a
// re-login is worth attempting.
func NewAuthError(message string) *PanelError {
	return &PanelError{Type: ErrTypeAuth, Message: message, Retryable: false}
}

// NewHTTPError reports an unexpected status code. Server errors are
// retryable, client errors are not.
func NewHTTPError(statusCode int, message string) *PanelError {
	return &PanelError{
		Type:       ErrTypeHTTP,
		Message:    message,
		StatusCode: statusCode,
		Retryable:  statusCode >= 500,
	}
}

// NewParseError wraps a markup-shape mismatch. Parse failures are retryable:
// the panel's tiny embedded server sometimes emits truncated pages under
// load, and the next fetch usually succeeds.
func NewParseError(message string, err error) *PanelError {
	return &PanelError{Type: ErrTypeParse, Message: message, Err: err, Retryable: true}
}

// NewVerificationError reports a post-command state mismatch.
func NewVerificationError(message string) *PanelError {
	return &PanelError{Type: ErrTypeVerification, Message: message, Retryable: false}
}

// NewConfigError reports an invalid setting.
func NewConfigError(message string) *PanelError {
	return &PanelError{Type: ErrTypeConfig, Message: message, Retryable: false}
}

// wrapError normalizes any error into a PanelError, mapping transcript parse
// failures to the parse type.
func wrapError(err error, message string) *PanelError {
	var pe *PanelError
	if errors.As(err, &pe) {
		return pe
	}
	var te *transcript.ParseError
	if errors.As(err, &te) {
		return NewParseError(message, err)
	}
	return NewNetworkError(message, err)
}

// IsAuthError reports whether err is an authentication failure.
func IsAuthError(err error) bool {
	var pe *PanelError
	return errors.As(err, &pe) && pe.Type == ErrTypeAuth
}

// IsParseError reports whether err is a markup parse failure.
func IsParseError(err error) bool {
	var pe *PanelError
	return errors.As(err, &pe) && pe.Type == ErrTypeParse
}

// IsVerificationError reports whether err is a post-command state mismatch.
func IsVerificationError(err error) bool {
	var pe *PanelError
	return errors.As(err, &pe) && pe.Type == ErrTypeVerification
}

// IsConfigError reports whether err is a configuration rejection.
func IsConfigError(err error) bool {
	var pe *PanelError
	return errors.As(err, &pe) && pe.Type == ErrTypeConfig
}

// IsRetryable reports whether the operation that produced err is worth
// retrying as-is, without invalidating the session first.
func IsRetryable(err error) bool {
	var pe *PanelError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// TroubleshootingHint returns user-facing advice for an error, used by the
// CLI when an operation fails outright.
func TroubleshootingHint(err error) string {
	var pe *PanelError
	if !errors.As(err, &pe) {
		return "An unexpected error occurred. Please try again."
	}

	switch pe.Type {
	case ErrTypeNetwork:
		return strings.Join([]string{
			"Could not reach the panel.",
			"  • Check that the panel is powered and on the network",
			"  • Verify the host and port (panels listen on 5053)",
			"  • The panel web server is single-threaded; close any browser session",
		}, "\n")
	case ErrTypeAuth:
		return strings.Join([]string{
			"The panel rejected the login.",
			"  • Check the username and user code",
			"  • The panel allows one session per user; wait a minute and retry",
		}, "\n")
	case ErrTypeParse:
		return "The panel returned an unexpected page. This usually clears on retry; persistent failures suggest an untested firmware version."
	case ErrTypeVerification:
		return "The panel accepted the command but did not change state. Check for open zones preventing arming."
	case ErrTypeConfig:
		return pe.Message
	default:
		return pe.Message
	}
}
