package panel

import (
	"time"

	"github.com/mkefalas/sigmalink/internal/panel/paneltest"
)

// fastOptions returns client options with millisecond backoffs so tests
// exercising retries do not stall the suite.
func fastOptions() *Options {
	return &Options{
		TransportPolicy: Policy{MaxAttempts: 3, BackoffBase: 5 * time.Millisecond, Multiplier: 2},
		ParsePolicy:     Policy{MaxAttempts: 3, BackoffBase: 5 * time.Millisecond, Multiplier: 2},
	}
}

func newTestClient(url string) *Client {
	creds := Credentials{Username: paneltest.Username, Password: paneltest.Password}
	return NewClient(url, creds, fastOptions())
}
