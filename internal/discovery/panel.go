package discovery

import (
	"fmt"
	"time"
)

// Panel is a confirmed alarm panel found on the network.
type Panel struct {
	// Hostname is the mDNS hostname when discovery came from a browse,
	// empty for a direct probe.
	Hostname string

	// IP is the address the probe succeeded against.
	IP string

	// Port is the panel's web interface port.
	Port int

	// DiscoveredAt is when the probe confirmed the panel.
	DiscoveredAt time.Time
}

// String returns a human-readable description.
func (p *Panel) String() string {
	if p.Hostname != "" {
		return fmt.Sprintf("Sigma panel at %s:%d (%s)", p.IP, p.Port, p.Hostname)
	}
	return fmt.Sprintf("Sigma panel at %s:%d", p.IP, p.Port)
}

// BaseURL returns the panel's HTTP base URL.
func (p *Panel) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", p.IP, p.Port)
}
