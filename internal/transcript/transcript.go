// Package transcript parses the Sigma panel's HTML pages into structured
// values. The panel has no API; every fact about it is scraped from markup
// meant for a human browser, and the markup drifts slightly between firmware
// builds. All of that fragility is contained here: the rest of the system
// only ever sees tokens and Snapshot values.
//
// The package performs no I/O and no retries. Callers decide how often to
// re-fetch and re-parse.
package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// TokenField is the name of the hidden input carrying the one-time login
// token on the login and PIN pages.
const TokenField = "gen_input"

// The panel reports status in Greek. Several of these strings mix Latin
// lookalike characters into Greek words exactly as the firmware emits them,
// so they must not be "corrected".
var alarmStates = []struct {
	raw      string
	state    AlarmState
	bypassed bool
}{
	{"AΦOΠΛIΣMENO", StateDisarmed, false},
	{"OΠΛIΣMENO ME ZΩNEΣ BYPASS", StateArmedAway, true},
	{"ΠEPIMETPIKH OΠΛIΣH ME ZΩNEΣ BYPASS", StateArmedStay, true},
	{"ΠEPIMETPIKH OΠΛIΣH", StateArmedStay, false},
	{"OΠΛIΣMENO", StateArmedAway, false},
}

var (
	batteryRe   = regexp.MustCompile(`(\d+\.?\d*)\s*Volt`)
	acPowerRe   = regexp.MustCompile(`(?i)Παροχή\s*230V:\s*(ΝΑΙ|NAI|OXI|Yes|No)`)
	zonesLinkRe = regexp.MustCompile(`(?i)ζωνών`)
)

// ParseError reports that a required field could not be located in the
// panel's markup. It usually means a truncated response or firmware drift.
type ParseError struct {
	Field string
	Cause error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("panel markup: cannot locate %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("panel markup: cannot locate %s", e.Field)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// ExtractToken pulls the one-time gen_input token from a login or PIN page.
func ExtractToken(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", &ParseError{Field: "login page", Cause: err}
	}

	token, ok := doc.Find(`input[name="` + TokenField + `"]`).First().Attr("value")
	if !ok || token == "" {
		return "", &ParseError{Field: "gen_input token"}
	}
	return token, nil
}

// ContainsLoginForm reports whether the page carries the login token field.
// A status or command response containing it means the panel has repudiated
// the session and bounced us back to the login screen.
func ContainsLoginForm(html string) bool {
	return strings.Contains(html, `name="`+TokenField+`"`) ||
		strings.Contains(html, `name='`+TokenField+`'`)
}

// ParseStatus extracts the partition arming state, battery voltage, and AC
// power flag from the partition page. The arming state lives in the second
// span of the first paragraph; battery and AC are regex matches over the
// page text because their surrounding markup varies between firmwares.
func ParseStatus(html string) (*PartitionStatus, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{Field: "partition page", Cause: err}
	}

	rawState := strings.TrimSpace(doc.Find("p").First().Find("span").Eq(1).Text())
	if rawState == "" {
		return nil, &ParseError{Field: "alarm status"}
	}

	text := doc.Text()

	battery := batteryRe.FindStringSubmatch(text)
	if battery == nil {
		return nil, &ParseError{Field: "battery voltage"}
	}
	volts, err := strconv.ParseFloat(battery[1], 64)
	if err != nil {
		return nil, &ParseError{Field: "battery voltage", Cause: err}
	}

	ac := acPowerRe.FindStringSubmatch(text)
	if ac == nil {
		return nil, &ParseError{Field: "AC power"}
	}
	acPower, ok := ParseYesNo(ac[1])
	if !ok {
		return nil, &ParseError{Field: "AC power"}
	}

	state, bypassed := AlarmStateFromRaw(rawState)

	return &PartitionStatus{
		State:         state,
		ZonesBypassed: bypassed,
		BatteryVolt:   volts,
		ACPower:       acPower,
	}, nil
}

// AlarmStateFromRaw maps the panel's Greek status vocabulary to an
// AlarmState plus the bypassed-zones flag. Unrecognized vocabulary maps to
// StateUnknown rather than failing; the caller decides whether that is
// acceptable for its purpose.
func AlarmStateFromRaw(raw string) (AlarmState, bool) {
	raw = strings.TrimSpace(raw)
	for _, m := range alarmStates {
		if raw == m.raw {
			return m.state, m.bypassed
		}
	}
	return StateUnknown, false
}

// ZonesPath returns the relative URL of the zones page, read from the link
// the partition page renders. Falls back to zones.html when the link is
// missing, which older firmwares omit.
func ZonesPath(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "zones.html"
	}

	path := "zones.html"
	doc.Find("a").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if zonesLinkRe.MatchString(sel.Text()) {
			if href, ok := sel.Attr("href"); ok && href != "" {
				path = href
				return false
			}
		}
		return true
	})
	return strings.TrimPrefix(path, "/")
}

// ParseZones extracts the zone table from the zones page. Rows keep the
// panel's order. Rows with fewer than four cells are skipped; the table
// itself being absent is a parse failure.
func ParseZones(html string) ([]Zone, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, &ParseError{Field: "zones page", Cause: err}
	}

	table := doc.Find("table.normaltable").First()
	if table.Length() == 0 {
		return nil, &ParseError{Field: "zones table"}
	}

	var zones []Zone
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 {
			// header row
			return
		}
		cells := row.Find("td")
		if cells.Length() < 4 {
			return
		}
		open, _ := ParseOpenClosed(cells.Eq(2).Text())
		bypassed, _ := ParseYesNo(cells.Eq(3).Text())
		zones = append(zones, Zone{
			ID:       strings.TrimSpace(cells.Eq(0).Text()),
			Name:     strings.TrimSpace(cells.Eq(1).Text()),
			Open:     open,
			Bypassed: bypassed,
		})
	})

	return zones, nil
}

// ParseYesNo converts the panel's Greek/English yes-no vocabulary. The Greek
// "ΝΑΙ" appears both in true Greek letters and as the Latin lookalike "NAI".
func ParseYesNo(val string) (value, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(val)) {
	case "ΝΑΙ", "NAI", "YES", "TRUE":
		return true, true
	case "OXI", "ΟΧΙ", "NO", "FALSE":
		return false, true
	}
	return false, false
}

// ParseOpenClosed converts a zone status cell. Open means the contact is
// currently violated.
func ParseOpenClosed(val string) (open, ok bool) {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "ανοικτή", "open":
		return true, true
	case "κλειστή", "closed":
		return false, true
	}
	return false, false
}
