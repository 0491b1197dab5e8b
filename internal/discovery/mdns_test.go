package discovery

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"
)

const loginPage = `<html><body><form>
<input type="hidden" name="gen_input" value="abcdef0123456789">
<input type="text" name="username">
</form></body></html>`

func TestProbeRecognizesPanel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/login.html" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(loginPage))
	}))
	defer srv.Close()

	if !Probe(context.Background(), srv.URL) {
		t.Error("Probe should recognize a host serving the panel login page")
	}
}

func TestProbeRejectsOrdinaryWebServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>hello</body></html>"))
	}))
	defer srv.Close()

	if Probe(context.Background(), srv.URL) {
		t.Error("Probe should reject a host without the login token field")
	}
}

func TestProbeRejectsDeadHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead := srv.URL
	srv.Close()

	if Probe(context.Background(), dead) {
		t.Error("Probe should fail against a closed port")
	}
}

func TestProbeHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(loginPage))
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	p, ok := ProbeHost(context.Background(), host, port)
	if !ok {
		t.Fatal("ProbeHost failed against a live panel")
	}
	if p.IP != host || p.Port != port {
		t.Errorf("panel = %+v, want %s:%d", p, host, port)
	}
	if p.DiscoveredAt.IsZero() {
		t.Error("DiscoveredAt not set")
	}
}

func TestCandidates(t *testing.T) {
	s := &Scanner{Port: 5053}

	tests := []struct {
		name   string
		entry  *zeroconf.ServiceEntry
		wantN  int
		wantIP string
	}{
		{
			name: "IPv4 preferred",
			entry: &zeroconf.ServiceEntry{
				HostName: "router.local.",
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantN:  1,
			wantIP: "192.168.1.1",
		},
		{
			name: "IPv6 fallback",
			entry: &zeroconf.ServiceEntry{
				HostName: "printer.local.",
				AddrIPv6: []net.IP{net.ParseIP("fe80::2")},
			},
			wantN:  1,
			wantIP: "fe80::2",
		},
		{
			name:  "no addresses",
			entry: &zeroconf.ServiceEntry{HostName: "ghost.local."},
			wantN: 0,
		},
		{
			name: "multiple IPv4",
			entry: &zeroconf.ServiceEntry{
				HostName: "nas.local.",
				AddrIPv4: []net.IP{net.ParseIP("10.0.0.2"), net.ParseIP("10.0.0.3")},
			},
			wantN:  2,
			wantIP: "10.0.0.2",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := s.candidates(tc.entry)
			if len(got) != tc.wantN {
				t.Fatalf("candidates = %d, want %d", len(got), tc.wantN)
			}
			if tc.wantN == 0 {
				return
			}
			if got[0].IP != tc.wantIP {
				t.Errorf("IP = %s, want %s", got[0].IP, tc.wantIP)
			}
			if got[0].Port != 5053 {
				t.Errorf("port = %d, want 5053 regardless of advertised port", got[0].Port)
			}
			if got[0].Hostname != tc.entry.HostName[:len(tc.entry.HostName)-1] {
				t.Errorf("hostname = %q, want trailing dot stripped", got[0].Hostname)
			}
		})
	}
}

func TestPanelString(t *testing.T) {
	withHost := &Panel{Hostname: "alarm.local", IP: "192.168.1.50", Port: 5053}
	if got := withHost.String(); got != "Sigma panel at 192.168.1.50:5053 (alarm.local)" {
		t.Errorf("String() = %q", got)
	}
	bare := &Panel{IP: "192.168.1.50", Port: 5053}
	if got := bare.String(); got != "Sigma panel at 192.168.1.50:5053" {
		t.Errorf("String() = %q", got)
	}
	if got := bare.BaseURL(); got != "http://192.168.1.50:5053" {
		t.Errorf("BaseURL() = %q", got)
	}
}

func testEntryFor(t *testing.T, srv *httptest.Server) (*Scanner, *zeroconf.ServiceEntry) {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(portStr)

	entry := &zeroconf.ServiceEntry{
		HostName: "sigma.local.",
		AddrIPv4: []net.IP{net.ParseIP(host)},
	}
	return &Scanner{Port: port}, entry
}

func TestProbeEntriesFindsPanel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(loginPage))
	}))
	defer srv.Close()

	s, entry := testEntryFor(t, srv)

	entries := make(chan *zeroconf.ServiceEntry, 3)
	// Same address twice; it must be probed and reported once.
	entries <- entry
	entries <- entry
	close(entries)

	panels := s.probeEntries(context.Background(), entries)
	if len(panels) != 1 {
		t.Fatalf("got %d panels, want 1", len(panels))
	}
	if panels[0].DiscoveredAt.IsZero() {
		t.Error("DiscoveredAt not set")
	}
}

func TestProbeEntriesDrainsAfterCancellation(t *testing.T) {
	// The browse channel can still deliver entries after the scan context
	// expires; the loop must drain them to completion instead of racing
	// new probes against the final wait.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(loginPage))
	}))
	defer srv.Close()

	s, entry := testEntryFor(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entries := make(chan *zeroconf.ServiceEntry, 1)
	done := make(chan []*Panel)
	go func() { done <- s.probeEntries(ctx, entries) }()

	entries <- entry
	close(entries)

	select {
	case panels := <-done:
		if len(panels) != 0 {
			t.Errorf("got %d panels from cancelled probes, want 0", len(panels))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("probeEntries did not return after the channel closed")
	}
}
