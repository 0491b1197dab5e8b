package transcript

import "testing"

const sampleLoginHTML = `<!DOCTYPE html>
<html>
<body>
<form>
    <input type="hidden" name="gen_input" value="abcdefghijklmnop">
    <input type="text" name="username">
    <input type="password" name="password">
</form>
</body>
</html>`

const samplePartitionHTML = `<!DOCTYPE html>
<html>
<body>
<p><span>Τμήμα 1:</span> <span>AΦOΠΛIΣMENO</span></p>
<div>Μπαταρία: 13.5 Volt</div>
<div>Παροχή 230V: ΝΑΙ</div>
<a href="zones.html">Κατάσταση ζωνών</a>
</body>
</html>`

const samplePartitionArmedHTML = `<!DOCTYPE html>
<html>
<body>
<p><span>Τμήμα 1:</span> <span>OΠΛIΣMENO ME ZΩNEΣ BYPASS</span></p>
<div>Μπαταρία: 12.8 Volt</div>
<div>Παροχή 230V: OXI</div>
</body>
</html>`

const sampleZonesHTML = `<!DOCTYPE html>
<html>
<body>
<table class="normaltable">
    <tr><th>Zone</th><th>Description</th><th>Status</th><th>Bypass</th></tr>
    <tr><td>1</td><td>Front Door</td><td>κλειστή</td><td>OXI</td></tr>
    <tr><td>2</td><td>Back Door</td><td>ανοικτή</td><td>OXI</td></tr>
    <tr><td>3</td><td>Window</td><td>κλειστή</td><td>ΝΑΙ</td></tr>
</table>
</body>
</html>`

func TestExtractToken(t *testing.T) {
	token, err := ExtractToken(sampleLoginHTML)
	if err != nil {
		t.Fatalf("ExtractToken failed: %v", err)
	}
	if token != "abcdefghijklmnop" {
		t.Errorf("token = %q, want abcdefghijklmnop", token)
	}
}

func TestExtractTokenMissing(t *testing.T) {
	_, err := ExtractToken(`<html><body><form></form></body></html>`)
	if err == nil {
		t.Fatal("expected error for page without token field")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Errorf("error type = %T, want *ParseError", err)
	}
}

func TestContainsLoginForm(t *testing.T) {
	if !ContainsLoginForm(sampleLoginHTML) {
		t.Error("login page not detected")
	}
	if ContainsLoginForm(samplePartitionHTML) {
		t.Error("partition page misdetected as login form")
	}
}

func TestParseStatusDisarmed(t *testing.T) {
	status, err := ParseStatus(samplePartitionHTML)
	if err != nil {
		t.Fatalf("ParseStatus failed: %v", err)
	}
	if status.State != StateDisarmed {
		t.Errorf("state = %v, want %v", status.State, StateDisarmed)
	}
	if status.ZonesBypassed {
		t.Error("ZonesBypassed = true for disarmed panel")
	}
	if status.BatteryVolt != 13.5 {
		t.Errorf("battery = %v, want 13.5", status.BatteryVolt)
	}
	if !status.ACPower {
		t.Error("ACPower = false, want true")
	}
}

func TestParseStatusArmedWithBypass(t *testing.T) {
	status, err := ParseStatus(samplePartitionArmedHTML)
	if err != nil {
		t.Fatalf("ParseStatus failed: %v", err)
	}
	if status.State != StateArmedAway {
		t.Errorf("state = %v, want %v", status.State, StateArmedAway)
	}
	if !status.ZonesBypassed {
		t.Error("ZonesBypassed = false, want true")
	}
	if status.ACPower {
		t.Error("ACPower = true, want false")
	}
}

func TestParseStatusMissingFields(t *testing.T) {
	cases := map[string]string{
		"no status":  `<html><body><div>Μπαταρία: 13.5 Volt</div><div>Παροχή 230V: ΝΑΙ</div></body></html>`,
		"no battery": `<html><body><p><span>Τμήμα 1:</span> <span>AΦOΠΛIΣMENO</span></p><div>Παροχή 230V: ΝΑΙ</div></body></html>`,
		"no ac":      `<html><body><p><span>Τμήμα 1:</span> <span>AΦOΠΛIΣMENO</span></p><div>Μπαταρία: 13.5 Volt</div></body></html>`,
	}
	for name, html := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseStatus(html); err == nil {
				t.Error("expected parse error")
			}
		})
	}
}

func TestAlarmStateFromRaw(t *testing.T) {
	tests := []struct {
		raw      string
		state    AlarmState
		bypassed bool
	}{
		{"AΦOΠΛIΣMENO", StateDisarmed, false},
		{"OΠΛIΣMENO", StateArmedAway, false},
		{"OΠΛIΣMENO ME ZΩNEΣ BYPASS", StateArmedAway, true},
		{"ΠEPIMETPIKH OΠΛIΣH", StateArmedStay, false},
		{"ΠEPIMETPIKH OΠΛIΣH ME ZΩNEΣ BYPASS", StateArmedStay, true},
		{"SOMETHING ELSE", StateUnknown, false},
	}
	for _, tc := range tests {
		state, bypassed := AlarmStateFromRaw(tc.raw)
		if state != tc.state || bypassed != tc.bypassed {
			t.Errorf("AlarmStateFromRaw(%q) = (%v, %v), want (%v, %v)",
				tc.raw, state, bypassed, tc.state, tc.bypassed)
		}
	}
}

func TestZonesPath(t *testing.T) {
	if got := ZonesPath(samplePartitionHTML); got != "zones.html" {
		t.Errorf("ZonesPath = %q, want zones.html", got)
	}
	// Missing link falls back
	if got := ZonesPath(samplePartitionArmedHTML); got != "zones.html" {
		t.Errorf("ZonesPath fallback = %q, want zones.html", got)
	}
	// Custom link is honored
	html := `<html><body><a href="/zones2.html">ζωνών</a></body></html>`
	if got := ZonesPath(html); got != "zones2.html" {
		t.Errorf("ZonesPath custom = %q, want zones2.html", got)
	}
}

func TestParseZones(t *testing.T) {
	zones, err := ParseZones(sampleZonesHTML)
	if err != nil {
		t.Fatalf("ParseZones failed: %v", err)
	}
	want := []Zone{
		{ID: "1", Name: "Front Door", Open: false, Bypassed: false},
		{ID: "2", Name: "Back Door", Open: true, Bypassed: false},
		{ID: "3", Name: "Window", Open: false, Bypassed: true},
	}
	if len(zones) != len(want) {
		t.Fatalf("zone count = %d, want %d", len(zones), len(want))
	}
	for i, z := range zones {
		if z != want[i] {
			t.Errorf("zone[%d] = %+v, want %+v", i, z, want[i])
		}
	}
}

func TestParseZonesOrderStable(t *testing.T) {
	first, err := ParseZones(sampleZonesHTML)
	if err != nil {
		t.Fatal(err)
	}
	second, err := ParseZones(sampleZonesHTML)
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("zone order unstable at index %d", i)
		}
	}
}

func TestParseZonesMissingTable(t *testing.T) {
	_, err := ParseZones(`<html><body><p>no zones here</p></body></html>`)
	if err == nil {
		t.Fatal("expected parse error for missing zones table")
	}
}

func TestParseYesNo(t *testing.T) {
	tests := []struct {
		in    string
		value bool
		ok    bool
	}{
		{"ΝΑΙ", true, true},
		{"NAI", true, true},
		{"OXI", false, true},
		{"  yes  ", true, true},
		{"No", false, true},
		{"TRUE", true, true},
		{"maybe", false, false},
		{"", false, false},
	}
	for _, tc := range tests {
		value, ok := ParseYesNo(tc.in)
		if value != tc.value || ok != tc.ok {
			t.Errorf("ParseYesNo(%q) = (%v, %v), want (%v, %v)", tc.in, value, ok, tc.value, tc.ok)
		}
	}
}
