package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mkefalas/sigmalink/internal/panel"
	"github.com/mkefalas/sigmalink/internal/poll"
)

// DefaultPort is the panel's web interface port.
const DefaultPort = 5053

// Registry is the entire configuration file.
type Registry struct {
	Version int               `yaml:"version"`
	Panels  map[string]*Panel `yaml:"panels,omitempty"` // keyed by user-chosen name
	Tuning  *Tuning           `yaml:"tuning,omitempty"`
}

// Panel is one registered alarm panel. Credentials are deliberately absent:
// only the username is stored, the password is prompted or taken from the
// environment.
type Panel struct {
	Host     string    `yaml:"host"`
	Port     int       `yaml:"port,omitempty"` // defaults to 5053
	Username string    `yaml:"username"`
	LastSeen time.Time `yaml:"last_seen,omitempty"`

	// Tuning overrides the registry-wide tuning for this panel.
	Tuning *Tuning `yaml:"tuning,omitempty"`
}

// Tuning holds the polling and retry knobs. Zero fields mean "use the
// default"; validation rejects out-of-range values instead of adjusting
// them.
type Tuning struct {
	PollInterval time.Duration `yaml:"poll_interval,omitempty"` // default 10s, floor 5s

	HTTPRetries   int           `yaml:"http_retries,omitempty"`   // default 5
	ParseRetries  int           `yaml:"parse_retries,omitempty"`  // default 3
	FetchRetries  int           `yaml:"fetch_retries,omitempty"`  // default 3
	ActionRetries int           `yaml:"action_retries,omitempty"` // default 5
	BackoffBase   time.Duration `yaml:"backoff_base,omitempty"`   // default 500ms

	ActionDelayBase   time.Duration `yaml:"action_delay_base,omitempty"`   // default 2s
	ActionVerifyDelay time.Duration `yaml:"action_verify_delay,omitempty"` // default 5s

	// UnavailableAfter is how many consecutive failed poll cycles mark the
	// panel unavailable. Default 1.
	UnavailableAfter int `yaml:"unavailable_after,omitempty"`
}

// NewRegistry returns an empty registry with defaults.
func NewRegistry() *Registry {
	return &Registry{
		Version: 1,
		Panels:  map[string]*Panel{},
	}
}

// Validate checks every panel and tuning block. The first violation is
// returned as a config error.
func (r *Registry) Validate() error {
	for name, p := range r.Panels {
		if err := p.Validate(); err != nil {
			return panel.NewConfigError(fmt.Sprintf("panel %q: %v", name, err))
		}
	}
	if r.Tuning != nil {
		if err := r.Tuning.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the panel entry itself; tuning overrides are validated
// separately by Registry.Validate via TuningFor.
func (p *Panel) Validate() error {
	if strings.TrimSpace(p.Host) == "" {
		return fmt.Errorf("host is required")
	}
	if p.Port < 0 || p.Port > 65535 {
		return fmt.Errorf("port %d out of range", p.Port)
	}
	if strings.TrimSpace(p.Username) == "" {
		return fmt.Errorf("username is required")
	}
	if p.Tuning != nil {
		if err := p.Tuning.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate rejects out-of-range tuning. Values are never clamped: a poll
// interval under the floor is the user's mistake to fix, not ours to hide.
func (t *Tuning) Validate() error {
	if t.PollInterval != 0 && t.PollInterval < poll.MinInterval {
		return panel.NewConfigError(fmt.Sprintf(
			"poll_interval %s is below the %s floor", t.PollInterval, poll.MinInterval))
	}
	for _, v := range []struct {
		name  string
		value int
	}{
		{"http_retries", t.HTTPRetries},
		{"parse_retries", t.ParseRetries},
		{"fetch_retries", t.FetchRetries},
		{"action_retries", t.ActionRetries},
		{"unavailable_after", t.UnavailableAfter},
	} {
		if v.value < 0 {
			return panel.NewConfigError(fmt.Sprintf("%s must not be negative", v.name))
		}
	}
	for _, v := range []struct {
		name  string
		value time.Duration
	}{
		{"backoff_base", t.BackoffBase},
		{"action_delay_base", t.ActionDelayBase},
		{"action_verify_delay", t.ActionVerifyDelay},
	} {
		if v.value < 0 {
			return panel.NewConfigError(fmt.Sprintf("%s must not be negative", v.name))
		}
	}
	return nil
}

// BaseURL builds the panel's base URL. Schemes and trailing slashes a user
// pasted into the host field are stripped; the panel speaks plain HTTP on
// its fixed port.
func (p *Panel) BaseURL() string {
	host := strings.TrimSpace(p.Host)
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimRight(host, "/")
	// A pasted host:port wins over the configured port.
	if _, _, err := net.SplitHostPort(host); err == nil {
		return "http://" + host
	}
	port := p.Port
	if port == 0 {
		port = DefaultPort
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// TuningFor resolves the effective tuning for a named panel: the panel's
// own override when present, otherwise the registry-wide block, otherwise
// all defaults.
func (r *Registry) TuningFor(name string) *Tuning {
	if p, ok := r.Panels[name]; ok && p.Tuning != nil {
		return p.Tuning
	}
	if r.Tuning != nil {
		return r.Tuning
	}
	return &Tuning{}
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v == 0 {
		return def
	}
	return v
}

// ClientOptions maps the tuning onto panel client options.
func (t *Tuning) ClientOptions() *panel.Options {
	base := orDuration(t.BackoffBase, 500*time.Millisecond)
	return &panel.Options{
		TransportPolicy: panel.Policy{
			MaxAttempts: orInt(t.HTTPRetries, panel.DefaultTransportPolicy.MaxAttempts),
			BackoffBase: base,
			Multiplier:  panel.DefaultTransportPolicy.Multiplier,
			MaxDelay:    panel.DefaultTransportPolicy.MaxDelay,
		},
		ParsePolicy: panel.Policy{
			MaxAttempts: orInt(t.ParseRetries, panel.DefaultParsePolicy.MaxAttempts),
			BackoffBase: base,
			Multiplier:  panel.DefaultParsePolicy.Multiplier,
			MaxDelay:    panel.DefaultParsePolicy.MaxDelay,
		},
	}
}

// PollOptions maps the tuning onto coordinator options.
func (t *Tuning) PollOptions() poll.Options {
	return poll.Options{
		Interval: orDuration(t.PollInterval, poll.DefaultInterval),
		FetchPolicy: panel.Policy{
			MaxAttempts: orInt(t.FetchRetries, panel.DefaultFetchPolicy.MaxAttempts),
			BackoffBase: orDuration(t.BackoffBase, panel.DefaultFetchPolicy.BackoffBase),
			Multiplier:  panel.DefaultFetchPolicy.Multiplier,
			MaxDelay:    panel.DefaultFetchPolicy.MaxDelay,
		},
		Threshold: orInt(t.UnavailableAfter, poll.DefaultThreshold),
	}
}

// ActionPolicy maps the tuning onto the executor's retry policy.
func (t *Tuning) ActionPolicy() panel.Policy {
	return panel.Policy{
		MaxAttempts: orInt(t.ActionRetries, panel.DefaultActionPolicy.MaxAttempts),
		BackoffBase: orDuration(t.ActionDelayBase, panel.DefaultActionPolicy.BackoffBase),
		Multiplier:  panel.DefaultActionPolicy.Multiplier,
		MaxDelay:    panel.DefaultActionPolicy.MaxDelay,
	}
}

// VerifyDelay returns the post-command verification delay.
func (t *Tuning) VerifyDelay() time.Duration {
	return orDuration(t.ActionVerifyDelay, panel.DefaultVerifyDelay)
}
