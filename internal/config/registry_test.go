package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/mkefalas/sigmalink/internal/panel"
	"github.com/mkefalas/sigmalink/internal/poll"
)

func TestConfigDir(t *testing.T) {
	dir, err := ConfigDir()
	if err != nil {
		t.Fatalf("ConfigDir() error = %v", err)
	}
	if !strings.Contains(dir, "sigmalink") {
		t.Errorf("ConfigDir() = %v, should contain 'sigmalink'", dir)
	}
	if runtime.GOOS != "windows" && !strings.Contains(dir, ".config") && os.Getenv("XDG_CONFIG_HOME") == "" {
		t.Errorf("Unix config dir should contain '.config', got: %v", dir)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	reg := NewRegistry()
	reg.Panels["home"] = &Panel{
		Host:     "192.168.1.50",
		Username: "admin",
	}
	reg.Tuning = &Tuning{PollInterval: 30 * time.Second, UnavailableAfter: 3}

	if err := reg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom failed: %v", err)
	}
	p := loaded.Panels["home"]
	if p == nil || p.Host != "192.168.1.50" || p.Username != "admin" {
		t.Errorf("loaded panel = %+v", p)
	}
	if loaded.Tuning.PollInterval != 30*time.Second {
		t.Errorf("poll interval = %v, want 30s", loaded.Tuning.PollInterval)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(strings.ToLower(string(data)), "password") &&
		!strings.Contains(string(data), "SIGMALINK_PASSWORD") {
		t.Error("config file must never carry a password field")
	}
}

func TestLoadMissingFileYieldsEmptyRegistry(t *testing.T) {
	reg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadFrom of missing file: %v", err)
	}
	if reg.Version != 1 || len(reg.Panels) != 0 {
		t.Errorf("registry = %+v, want empty v1", reg)
	}
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("version: 9\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected error for unknown version")
	}
}

func TestValidateRejectsSubFloorInterval(t *testing.T) {
	tuning := &Tuning{PollInterval: 2 * time.Second}
	err := tuning.Validate()
	if err == nil {
		t.Fatal("expected error for 2s poll interval")
	}
	if !panel.IsConfigError(err) {
		t.Errorf("error = %v, want config error", err)
	}
}

func TestValidateRejectsPanelWithoutHost(t *testing.T) {
	reg := NewRegistry()
	reg.Panels["bad"] = &Panel{Username: "admin"}
	if err := reg.Validate(); err == nil {
		t.Fatal("expected error for panel without host")
	}
}

func TestSaveRejectsInvalidRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	reg := NewRegistry()
	reg.Tuning = &Tuning{PollInterval: time.Second}
	if err := reg.SaveTo(path); err == nil {
		t.Fatal("expected save to reject sub-floor interval")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("invalid registry was still written to disk")
	}
}

func TestPanelBaseURL(t *testing.T) {
	tests := []struct {
		host string
		port int
		want string
	}{
		{"192.168.1.50", 0, "http://192.168.1.50:5053"},
		{"192.168.1.50", 8080, "http://192.168.1.50:8080"},
		{"http://192.168.1.50/", 0, "http://192.168.1.50:5053"},
		{"https://alarm.local", 0, "http://alarm.local:5053"},
		{"192.168.1.50:5053", 0, "http://192.168.1.50:5053"},
		{" alarm.local ", 0, "http://alarm.local:5053"},
	}
	for _, tc := range tests {
		p := &Panel{Host: tc.host, Port: tc.port}
		if got := p.BaseURL(); got != tc.want {
			t.Errorf("BaseURL(%q, %d) = %q, want %q", tc.host, tc.port, got, tc.want)
		}
	}
}

func TestTuningDefaultsFlowThrough(t *testing.T) {
	var tuning Tuning

	opts := tuning.ClientOptions()
	if opts.TransportPolicy.MaxAttempts != 5 {
		t.Errorf("transport attempts = %d, want 5", opts.TransportPolicy.MaxAttempts)
	}
	if opts.ParsePolicy.MaxAttempts != 3 {
		t.Errorf("parse attempts = %d, want 3", opts.ParsePolicy.MaxAttempts)
	}

	pollOpts := tuning.PollOptions()
	if pollOpts.Interval != poll.DefaultInterval {
		t.Errorf("interval = %v, want %v", pollOpts.Interval, poll.DefaultInterval)
	}
	if pollOpts.Threshold != poll.DefaultThreshold {
		t.Errorf("threshold = %d, want %d", pollOpts.Threshold, poll.DefaultThreshold)
	}

	action := tuning.ActionPolicy()
	if action.MaxAttempts != 5 || action.BackoffBase != 2*time.Second {
		t.Errorf("action policy = %+v", action)
	}
	if tuning.VerifyDelay() != panel.DefaultVerifyDelay {
		t.Errorf("verify delay = %v, want %v", tuning.VerifyDelay(), panel.DefaultVerifyDelay)
	}
}

func TestTuningForResolvesOverrides(t *testing.T) {
	reg := NewRegistry()
	reg.Tuning = &Tuning{PollInterval: 20 * time.Second}
	reg.Panels["a"] = &Panel{Host: "h", Username: "u"}
	reg.Panels["b"] = &Panel{Host: "h", Username: "u", Tuning: &Tuning{PollInterval: 60 * time.Second}}

	if got := reg.TuningFor("a").PollInterval; got != 20*time.Second {
		t.Errorf("panel a interval = %v, want registry-wide 20s", got)
	}
	if got := reg.TuningFor("b").PollInterval; got != 60*time.Second {
		t.Errorf("panel b interval = %v, want override 60s", got)
	}
	if got := reg.TuningFor("missing").PollInterval; got != 20*time.Second {
		t.Errorf("missing panel interval = %v, want registry-wide 20s", got)
	}
}
