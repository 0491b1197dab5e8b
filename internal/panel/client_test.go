package panel

import (
	"context"
	"testing"

	"github.com/mkefalas/sigmalink/internal/panel/paneltest"
	"github.com/mkefalas/sigmalink/internal/transcript"
)

func TestFetchStatus(t *testing.T) {
	p := paneltest.New()
	srv := p.Server()
	defer srv.Close()

	client := newTestClient(srv.URL)
	snap, err := client.FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("FetchStatus failed: %v", err)
	}

	if snap.State != transcript.StateDisarmed {
		t.Errorf("state = %v, want disarmed", snap.State)
	}
	if snap.BatteryVolt != 13.5 {
		t.Errorf("battery = %v, want 13.5", snap.BatteryVolt)
	}
	if !snap.ACPower {
		t.Error("ACPower = false, want true")
	}
	if len(snap.Zones) != 2 {
		t.Fatalf("zones = %d, want 2", len(snap.Zones))
	}
	if snap.Zones[0].Name != "Front Door" || snap.Zones[0].Open {
		t.Errorf("zone[0] = %+v, want closed Front Door", snap.Zones[0])
	}
	if snap.Zones[1].Name != "Window" || !snap.Zones[1].Open || !snap.Zones[1].Bypassed {
		t.Errorf("zone[1] = %+v, want open bypassed Window", snap.Zones[1])
	}
	if snap.CapturedAt.IsZero() {
		t.Error("CapturedAt not set")
	}
}

func TestFetchStatusZoneOrderStableAcrossPolls(t *testing.T) {
	p := paneltest.New()
	srv := p.Server()
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx := context.Background()

	first, err := client.FetchStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	second, err := client.FetchStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first.Zones {
		if first.Zones[i].ID != second.Zones[i].ID {
			t.Fatalf("zone order changed between polls at index %d", i)
		}
	}
}

func TestFetchStatusRecoversFromDroppedSession(t *testing.T) {
	p := paneltest.New()
	srv := p.Server()
	defer srv.Close()

	client := newTestClient(srv.URL)
	ctx := context.Background()

	if _, err := client.FetchStatus(ctx); err != nil {
		t.Fatal(err)
	}

	// Panel forgets the session; next poll must re-login once and succeed.
	p.DropSessions()

	if _, err := client.FetchStatus(ctx); err != nil {
		t.Fatalf("FetchStatus after session drop failed: %v", err)
	}
	if p.LoginCount() != 2 {
		t.Errorf("login POSTs = %d, want 2 (one re-login)", p.LoginCount())
	}
}

func TestFetchStatusRetriesTruncatedMarkup(t *testing.T) {
	p := paneltest.New()
	p.FailStatus(2) // two truncated partition pages, then a good one
	srv := p.Server()
	defer srv.Close()

	client := newTestClient(srv.URL)
	snap, err := client.FetchStatus(context.Background())
	if err != nil {
		t.Fatalf("FetchStatus should have outlasted truncated pages: %v", err)
	}
	if snap.State != transcript.StateDisarmed {
		t.Errorf("state = %v, want disarmed", snap.State)
	}
	if p.StatusCount() != 3 {
		t.Errorf("partition fetches = %d, want 3", p.StatusCount())
	}
}

func TestFetchStatusParseRetryExhaustion(t *testing.T) {
	p := paneltest.New()
	p.FailStatus(99) // never recovers
	srv := p.Server()
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.FetchStatus(context.Background())
	if err == nil {
		t.Fatal("expected parse failure")
	}
	if !IsParseError(err) {
		t.Errorf("error = %v, want parse error", err)
	}
}

func TestSendCommand(t *testing.T) {
	p := paneltest.New()
	srv := p.Server()
	defer srv.Close()

	client := newTestClient(srv.URL)
	if err := client.SendCommand(context.Background(), ActionArmAway); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}

	if state := p.State(); state != paneltest.RawArmedAway {
		t.Errorf("panel state = %q, want %q", state, paneltest.RawArmedAway)
	}
}

func TestSendCommandInvalidAction(t *testing.T) {
	p := paneltest.New()
	srv := p.Server()
	defer srv.Close()

	client := newTestClient(srv.URL)
	err := client.SendCommand(context.Background(), Action("self_destruct"))
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	if !IsConfigError(err) {
		t.Errorf("error = %v, want config error", err)
	}
}

func TestActionEndpoints(t *testing.T) {
	tests := []struct {
		action   Action
		endpoint string
		expected transcript.AlarmState
	}{
		{ActionArmAway, "arm.html", transcript.StateArmedAway},
		{ActionArmStay, "stay.html", transcript.StateArmedStay},
		{ActionDisarm, "disarm.html", transcript.StateDisarmed},
	}
	for _, tc := range tests {
		if got := tc.action.Endpoint(); got != tc.endpoint {
			t.Errorf("%s endpoint = %q, want %q", tc.action, got, tc.endpoint)
		}
		if got := tc.action.ExpectedState(); got != tc.expected {
			t.Errorf("%s expected state = %v, want %v", tc.action, got, tc.expected)
		}
	}
}
