package discovery

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/mkefalas/sigmalink/internal/logging"
	"github.com/mkefalas/sigmalink/internal/transcript"
)

const (
	// ServiceType is the mDNS service type browsed for candidates. Sigma
	// panels register no service of their own; any host that shows up on
	// the LAN is worth one probe.
	ServiceType = "_http._tcp"

	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."

	// PanelPort is the fixed port of the panel's web interface.
	PanelPort = 5053

	// DefaultScanTimeout bounds a whole browse-and-probe pass.
	DefaultScanTimeout = 10 * time.Second

	// probeTimeout bounds a single candidate probe.
	probeTimeout = 2 * time.Second
)

// Scanner discovers panels by browsing mDNS and probing candidates.
type Scanner struct {
	// Timeout is the maximum time for one Scan call.
	Timeout time.Duration

	// Port overrides PanelPort, mainly for tests.
	Port int
}

// NewScanner returns a scanner with default settings.
func NewScanner() *Scanner {
	return &Scanner{Timeout: DefaultScanTimeout, Port: PanelPort}
}

// Scan browses the local network and returns every address that answered
// the probe with a panel login page. Duplicate addresses collapse to one
// entry.
func (s *Scanner) Scan(ctx context.Context) ([]*Panel, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)

	if err := resolver.Browse(ctx, ServiceType, ServiceDomain, entries); err != nil {
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	// zeroconf closes entries once ctx expires, which ends the probe loop.
	return s.probeEntries(ctx, entries), nil
}

// probeEntries drains entries, probing every unseen candidate address
// concurrently, and returns the panels that answered. It returns only
// after the channel is closed and every in-flight probe has finished;
// probes are never started after the final wait begins.
func (s *Scanner) probeEntries(ctx context.Context, entries <-chan *zeroconf.ServiceEntry) []*Panel {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		seen   = map[string]bool{}
		panels []*Panel
	)

	for entry := range entries {
		for _, candidate := range s.candidates(entry) {
			if seen[candidate.IP] {
				continue
			}
			seen[candidate.IP] = true

			wg.Add(1)
			go func(c *Panel) {
				defer wg.Done()
				if !Probe(ctx, c.BaseURL()) {
					return
				}
				c.DiscoveredAt = time.Now()
				logging.Debug("panel probe succeeded",
					zap.String("ip", c.IP),
					zap.String("hostname", c.Hostname),
				)
				mu.Lock()
				panels = append(panels, c)
				mu.Unlock()
			}(candidate)
		}
	}
	wg.Wait()

	return panels
}

// candidates turns one service entry into probe candidates, one per
// address, always on the panel port regardless of the advertised one.
func (s *Scanner) candidates(entry *zeroconf.ServiceEntry) []*Panel {
	port := s.Port
	if port == 0 {
		port = PanelPort
	}

	var out []*Panel
	add := func(ip net.IP) {
		out = append(out, &Panel{
			Hostname: strings.TrimSuffix(entry.HostName, "."),
			IP:       ip.String(),
			Port:     port,
		})
	}
	for _, ip := range entry.AddrIPv4 {
		add(ip)
	}
	if len(out) == 0 {
		for _, ip := range entry.AddrIPv6 {
			add(ip)
		}
	}
	return out
}

// Probe reports whether baseURL serves the panel login page. It is cheap
// and anonymous: one GET of the login page, no token consumed beyond the
// page render.
func Probe(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + "/login.html"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return false
	}
	return transcript.ContainsLoginForm(string(body))
}

// ProbeHost probes a bare host (name or IP) on the panel port.
func ProbeHost(ctx context.Context, host string, port int) (*Panel, bool) {
	if port == 0 {
		port = PanelPort
	}
	base := "http://" + net.JoinHostPort(host, strconv.Itoa(port))
	if !Probe(ctx, base) {
		return nil, false
	}
	return &Panel{IP: host, Port: port, DiscoveredAt: time.Now()}, true
}
