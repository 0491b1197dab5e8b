// Package paneltest provides an in-memory Sigma panel for tests: the
// token-keyed login handshake, one cookie session, partition navigation,
// the zones table, and the command endpoints, plus knobs for the failure
// modes real panels exhibit (server errors, truncated markup, repudiated
// sessions, silently ignored commands).
package paneltest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/mkefalas/sigmalink/internal/cipher"
)

// Credentials every fake panel accepts.
const (
	Username = "admin"
	Password = "1234"
)

// Raw status strings as the panel firmware emits them.
const (
	RawDisarmed  = "AΦOΠΛIΣMENO"
	RawArmedAway = "OΠΛIΣMENO"
	RawArmedStay = "ΠEPIMETPIKH OΠΛIΣH"
)

// Panel simulates the panel's web interface. Zero value is not usable;
// construct with New.
type Panel struct {
	mu sync.Mutex

	tokenSeq  int
	lastToken string

	cookieSeq int
	sessions  map[string]bool

	rawState string

	loginCount   int
	statusCount  int
	commandCount int

	failNextStatus int
	serverErrNext  int
	ignoreCommands bool
	dropSessions   bool
}

// New returns a disarmed panel with no sessions.
func New() *Panel {
	return &Panel{
		sessions: map[string]bool{},
		rawState: RawDisarmed,
	}
}

// Server starts an httptest server backed by the panel. The caller closes it.
func (p *Panel) Server() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(p.handle))
}

// LoginCount reports POST /login.html attempts seen.
func (p *Panel) LoginCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loginCount
}

// StatusCount reports partition pages served.
func (p *Panel) StatusCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.statusCount
}

// CommandCount reports arm/stay/disarm requests seen.
func (p *Panel) CommandCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.commandCount
}

// State returns the raw partition state string currently reported.
func (p *Panel) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rawState
}

// SetState forces the raw partition state string.
func (p *Panel) SetState(raw string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rawState = raw
}

// FailStatus makes the next n partition pages come back truncated.
func (p *Panel) FailStatus(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNextStatus = n
}

// FailServer makes the next n requests (any path) reply 500.
func (p *Panel) FailServer(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.serverErrNext = n
}

// IgnoreCommands makes arm/stay/disarm return 200 without changing state.
func (p *Panel) IgnoreCommands(ignore bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ignoreCommands = ignore
}

// DropSessions invalidates every cookie on the next request, simulating the
// panel repudiating the session behind the client's back.
func (p *Panel) DropSessions() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dropSessions = true
}

func (p *Panel) loginPage() string {
	p.tokenSeq++
	p.lastToken = fmt.Sprintf("tok%013d", p.tokenSeq)
	return fmt.Sprintf(`<html><body><form>
<input type="hidden" name="gen_input" value="%s">
<input type="text" name="username">
<input type="password" name="password">
</form></body></html>`, p.lastToken)
}

func (p *Panel) partitionPage() string {
	return fmt.Sprintf(`<html><body>
<p><span>Τμήμα 1:</span> <span>%s</span></p>
<div>Μπαταρία: 13.5 Volt</div>
<div>Παροχή 230V: ΝΑΙ</div>
<a href="zones.html">Κατάσταση ζωνών</a>
</body></html>`, p.rawState)
}

const zonesPage = `<html><body><table class="normaltable">
<tr><th>Zone</th><th>Description</th><th>Status</th><th>Bypass</th></tr>
<tr><td>1</td><td>Front Door</td><td>κλειστή</td><td>OXI</td></tr>
<tr><td>2</td><td>Window</td><td>ανοικτή</td><td>ΝΑΙ</td></tr>
</table></body></html>`

func (p *Panel) authed(r *http.Request) bool {
	c, err := r.Cookie("SID")
	if err != nil {
		return false
	}
	return p.sessions[c.Value]
}

func (p *Panel) newSession(w http.ResponseWriter) {
	p.cookieSeq++
	val := fmt.Sprintf("sid%06d", p.cookieSeq)
	p.sessions[val] = true
	http.SetCookie(w, &http.Cookie{Name: "SID", Value: val})
}

func (p *Panel) handle(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.serverErrNext > 0 {
		p.serverErrNext--
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if p.dropSessions {
		p.sessions = map[string]bool{}
		p.dropSessions = false
	}

	switch r.URL.Path {
	case "/login.html":
		if r.Method == http.MethodGet {
			fmt.Fprint(w, p.loginPage())
			return
		}
		p.loginCount++
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		wantHex, wantGen := cipher.Encode(Password, p.lastToken)
		p.lastToken = "" // one-time
		if r.PostForm.Get("username") != Username ||
			r.PostForm.Get("password") != wantHex ||
			r.PostForm.Get("gen_input") != wantGen {
			// Real panels re-render the login form on bad credentials.
			fmt.Fprint(w, p.loginPage())
			return
		}
		p.newSession(w)
		fmt.Fprint(w, `<html><body>Main menu</body></html>`)

	case "/user.html":
		fmt.Fprint(w, p.loginPage())

	case "/ucode":
		if err := r.ParseForm(); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		wantHex, _ := cipher.Encode(Password, p.lastToken)
		p.lastToken = ""
		if r.PostForm.Get("password") != wantHex {
			fmt.Fprint(w, p.loginPage())
			return
		}
		fmt.Fprint(w, `<html><body>Code accepted</body></html>`)

	case "/panel.html":
		if !p.authed(r) {
			fmt.Fprint(w, p.loginPage())
			return
		}
		fmt.Fprint(w, `<html><body><a href="part.cgi">Τμήμα 1</a></body></html>`)

	case "/part.cgi":
		if !p.authed(r) {
			fmt.Fprint(w, p.loginPage())
			return
		}
		p.statusCount++
		if p.failNextStatus > 0 {
			p.failNextStatus--
			fmt.Fprint(w, `<html><body><p>truncat`)
			return
		}
		fmt.Fprint(w, p.partitionPage())

	case "/zones.html":
		if !p.authed(r) {
			fmt.Fprint(w, p.loginPage())
			return
		}
		fmt.Fprint(w, zonesPage)

	case "/arm.html", "/stay.html", "/disarm.html":
		if !p.authed(r) {
			fmt.Fprint(w, p.loginPage())
			return
		}
		p.commandCount++
		if !p.ignoreCommands {
			switch r.URL.Path {
			case "/arm.html":
				p.rawState = RawArmedAway
			case "/stay.html":
				p.rawState = RawArmedStay
			case "/disarm.html":
				p.rawState = RawDisarmed
			}
		}
		fmt.Fprint(w, `<html><body>OK</body></html>`)

	case "/done.html":
		if c, err := r.Cookie("SID"); err == nil {
			delete(p.sessions, c.Value)
		}
		fmt.Fprint(w, `<html><body>Bye</body></html>`)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}
