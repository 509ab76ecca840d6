// CLAUDE:SUMMARY Authenticated browser session: login, verify, ensure (single-flight re-login), logout, serialized navigation.
// Package session owns the authenticated browser session against the
// listing portal.
//
// State machine:
//
//	Unauthenticated -> Authenticating -> Authenticated -> Expired | Invalidated -> Authenticating
//
// Downstream code never touches the page directly: it goes through
// Handle.Do, which re-validates the session and serialises navigation.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hazyhaar/rfpwatch/browser"
	"github.com/hazyhaar/rfpwatch/retry"
	"github.com/hazyhaar/rfpwatch/rfp"
)

// State is the session lifecycle state.
type State string

const (
	Unauthenticated State = "unauthenticated"
	Authenticating  State = "authenticating"
	Authenticated   State = "authenticated"
	Expired         State = "expired"
	Invalidated     State = "invalidated"
)

// Config configures the session manager. Selectors are configuration so a
// portal redesign is a config change.
type Config struct {
	LoginURL  string `yaml:"login_url"`
	VerifyURL string `yaml:"verify_url"` // page to load when verifying from a blank tab; default LoginURL
	LogoutURL string `yaml:"logout_url"`

	Username string `yaml:"username"`
	Password string `yaml:"password"`

	UsernameSelector string `yaml:"username_selector"`
	PasswordSelector string `yaml:"password_selector"`
	SubmitSelector   string `yaml:"submit_selector"`

	// SuccessSelectors appear only when logged in (logout link, account menu).
	SuccessSelectors []string `yaml:"success_selectors"`
	// ErrorSelectors appear when the portal rejects the credentials.
	ErrorSelectors []string `yaml:"error_selectors"`
	// LoginFormSelectors identify the login form; seeing one means logged out.
	LoginFormSelectors []string `yaml:"login_form_selectors"`
	// LoginMarkers are matched case-insensitively against URL path segments
	// and contained in the page title.
	LoginMarkers []string `yaml:"login_markers"`

	// Budget is how long a login is trusted before re-validation. Default: 30m.
	Budget time.Duration `yaml:"budget"`
	// LoginTimeout bounds the wait for a success or error marker. Default: 90s.
	LoginTimeout time.Duration `yaml:"login_timeout"`
	// MaxNavAttempts bounds navigation retries to the login page. Default: 3.
	MaxNavAttempts int `yaml:"max_nav_attempts"`
	// NavBackoff is the delay before the first navigation retry. Default: 1s.
	NavBackoff time.Duration `yaml:"nav_backoff"`

	Logger *slog.Logger `yaml:"-"`
}

func (c *Config) defaults() {
	if c.VerifyURL == "" {
		c.VerifyURL = c.LoginURL
	}
	if c.UsernameSelector == "" {
		c.UsernameSelector = `input[name="username"]`
	}
	if c.PasswordSelector == "" {
		c.PasswordSelector = `input[type="password"]`
	}
	if c.SubmitSelector == "" {
		c.SubmitSelector = `button[type="submit"]`
	}
	if len(c.SuccessSelectors) == 0 {
		c.SuccessSelectors = []string{`a[href*="logout"]`, `.user-menu`, `#account-menu`}
	}
	if len(c.ErrorSelectors) == 0 {
		c.ErrorSelectors = []string{`.login-error`, `.alert-danger`, `.error-message`}
	}
	if len(c.LoginFormSelectors) == 0 {
		c.LoginFormSelectors = []string{`form#login`, `form[action*="login"]`, `input[type="password"]`}
	}
	if len(c.LoginMarkers) == 0 {
		c.LoginMarkers = []string{"login", "log in", "sign in", "signin"}
	}
	if c.Budget <= 0 {
		c.Budget = 30 * time.Minute
	}
	if c.LoginTimeout <= 0 {
		c.LoginTimeout = 90 * time.Second
	}
	if c.MaxNavAttempts <= 0 {
		c.MaxNavAttempts = 3
	}
	if c.NavBackoff <= 0 {
		c.NavBackoff = time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager holds the authenticated page. One Manager per run.
type Manager struct {
	cfg  Config
	page browser.Page
	now  func() time.Time

	// navMu serialises navigation: one page load in flight at a time.
	navMu sync.Mutex
	group singleflight.Group

	mu        sync.Mutex
	state     State
	loginTime time.Time
	logins    int
}

// New creates a Manager over page.
func New(page browser.Page, cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg, page: page, now: time.Now, state: Unauthenticated}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Snapshot returns the session as a data record.
func (m *Manager) Snapshot() rfp.AuthSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := rfp.AuthSession{Authenticated: m.state == Authenticated, Budget: m.cfg.Budget}
	if !m.loginTime.IsZero() {
		t := m.loginTime
		s.LoginTime = &t
	}
	return s
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	if s == Authenticated {
		m.loginTime = m.now()
		m.logins++
	}
	m.mu.Unlock()
	if prev != s {
		m.cfg.Logger.Debug("session: state", "from", prev, "to", s)
	}
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRejected
	outcomeIndeterminate
)

// Login authenticates from scratch. Rejected credentials are fatal and not
// retried. An indeterminate outcome that Verify cannot confirm is retried
// once; a second indeterminate outcome is fatal.
func (m *Manager) Login(ctx context.Context) (rfp.AuthSession, error) {
	m.navMu.Lock()
	defer m.navMu.Unlock()
	return m.loginLocked(ctx)
}

func (m *Manager) loginLocked(ctx context.Context) (rfp.AuthSession, error) {
	log := m.cfg.Logger
	m.setState(Authenticating)
	start := m.now()

	for attempt := 1; attempt <= 2; attempt++ {
		out, err := m.submitLocked(ctx)
		if err != nil {
			m.setState(Unauthenticated)
			return rfp.AuthSession{}, err
		}

		switch out {
		case outcomeSuccess:
			m.setState(Authenticated)
			log.Info("session: login succeeded", "attempt", attempt,
				"duration_ms", m.now().Sub(start).Milliseconds())
			return m.Snapshot(), nil

		case outcomeRejected:
			m.setState(Unauthenticated)
			log.Error("session: credentials rejected")
			return rfp.AuthSession{}, rfp.E(rfp.KindAuth, "session.login", rfp.ErrCredentialsRejected)

		case outcomeIndeterminate:
			if m.verifyLocked(ctx) {
				m.setState(Authenticated)
				log.Info("session: login confirmed by verify", "attempt", attempt)
				return m.Snapshot(), nil
			}
			if ctx.Err() != nil {
				m.setState(Unauthenticated)
				return rfp.AuthSession{}, rfp.E(rfp.KindAuth, "session.login", ctx.Err())
			}
			log.Warn("session: login outcome indeterminate", "attempt", attempt)
		}
	}

	m.setState(Unauthenticated)
	return rfp.AuthSession{}, rfp.E(rfp.KindAuth, "session.login", rfp.ErrAuthIndeterminate)
}

// submitLocked loads the login page, fills the form, submits and waits for
// a success or error marker.
func (m *Manager) submitLocked(ctx context.Context) (outcome, error) {
	if m.cfg.LoginURL == "" {
		return 0, rfp.E(rfp.KindAuth, "session.login", errors.New("no login url configured"))
	}

	nav := retry.Policy{
		Name:        "session: navigate login page",
		MaxAttempts: m.cfg.MaxNavAttempts,
		Backoff:     m.cfg.NavBackoff,
		Logger:      m.cfg.Logger,
	}
	err := retry.Do(ctx, nav, func(ctx context.Context) error {
		return m.page.Navigate(ctx, m.cfg.LoginURL)
	})
	if err != nil {
		return 0, rfp.E(rfp.KindNavigation, "session.login", err)
	}

	if err := m.page.Fill(ctx, m.cfg.UsernameSelector, m.cfg.Username); err != nil {
		return 0, rfp.E(rfp.KindNavigation, "session.login", fmt.Errorf("fill username: %w", err))
	}
	if err := m.page.Fill(ctx, m.cfg.PasswordSelector, m.cfg.Password); err != nil {
		return 0, rfp.E(rfp.KindNavigation, "session.login", fmt.Errorf("fill password: %w", err))
	}
	if err := m.page.Click(ctx, m.cfg.SubmitSelector); err != nil {
		return 0, rfp.E(rfp.KindNavigation, "session.login", fmt.Errorf("submit: %w", err))
	}

	wctx, cancel := context.WithTimeout(ctx, m.cfg.LoginTimeout)
	defer cancel()

	markers := make([]string, 0, len(m.cfg.SuccessSelectors)+len(m.cfg.ErrorSelectors))
	markers = append(markers, m.cfg.SuccessSelectors...)
	markers = append(markers, m.cfg.ErrorSelectors...)

	matched, err := m.page.WaitAny(wctx, markers)
	if err != nil {
		if ctx.Err() != nil {
			return 0, rfp.E(rfp.KindAuth, "session.login", ctx.Err())
		}
		return outcomeIndeterminate, nil
	}
	for _, sel := range m.cfg.ErrorSelectors {
		if sel == matched {
			return outcomeRejected, nil
		}
	}
	return outcomeSuccess, nil
}

// Verify checks whether the current page is still logged in. Positive
// markers win; otherwise a login URL, login title or visible login form
// means logged out. No signal either way counts as logged in.
func (m *Manager) Verify(ctx context.Context) bool {
	m.navMu.Lock()
	defer m.navMu.Unlock()
	return m.verifyLocked(ctx)
}

func (m *Manager) verifyLocked(ctx context.Context) bool {
	log := m.cfg.Logger

	u, err := m.page.URL(ctx)
	if err != nil {
		log.Warn("session: verify url", "error", err)
		return false
	}
	if u == "" || u == "about:blank" {
		if m.cfg.VerifyURL == "" {
			return false
		}
		if err := m.page.Navigate(ctx, m.cfg.VerifyURL); err != nil {
			log.Warn("session: verify navigate", "url", m.cfg.VerifyURL, "error", err)
			return false
		}
		u, _ = m.page.URL(ctx)
	}

	for _, sel := range m.cfg.SuccessSelectors {
		if ok, err := m.page.Has(ctx, sel); err == nil && ok {
			return true
		}
	}

	if loginPath(u, m.cfg.LoginMarkers) {
		return false
	}
	if title, err := m.page.Title(ctx); err == nil && containsAny(title, m.cfg.LoginMarkers) {
		return false
	}
	for _, sel := range m.cfg.LoginFormSelectors {
		if ok, err := m.page.Has(ctx, sel); err == nil && ok {
			return false
		}
	}
	return true
}

// loginPath reports whether a whole path segment of rawURL is a marker:
// /account/sign-in and /login.aspx match, /opp/login-portal-upgrade does not.
func loginPath(rawURL string, markers []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	sep := strings.NewReplacer("-", " ", "_", " ")
	for _, seg := range strings.Split(strings.ToLower(u.Path), "/") {
		seg = sep.Replace(strings.TrimSuffix(seg, path.Ext(seg)))
		for _, mk := range markers {
			if mk = strings.ToLower(strings.TrimSpace(mk)); mk != "" && seg == mk {
				return true
			}
		}
	}
	return false
}

func containsAny(s string, markers []string) bool {
	s = strings.ToLower(s)
	for _, mk := range markers {
		if mk != "" && strings.Contains(s, strings.ToLower(mk)) {
			return true
		}
	}
	return false
}

// valid reports whether the session can be used as is, moving the state
// to Expired or Invalidated when it cannot.
func (m *Manager) valid(ctx context.Context) bool {
	m.mu.Lock()
	state, loginTime := m.state, m.loginTime
	m.mu.Unlock()

	if state != Authenticated {
		return false
	}
	if m.now().Sub(loginTime) >= m.cfg.Budget {
		m.setState(Expired)
		m.cfg.Logger.Info("session: budget elapsed", "budget", m.cfg.Budget)
		return false
	}
	if !m.Verify(ctx) {
		m.setState(Invalidated)
		m.cfg.Logger.Warn("session: verify failed, session invalidated")
		return false
	}
	return true
}

// EnsureAuthenticated returns a Handle on a valid session, logging in again
// when needed. Concurrent callers share a single login.
func (m *Manager) EnsureAuthenticated(ctx context.Context) (*Handle, error) {
	if m.valid(ctx) {
		return &Handle{m: m}, nil
	}
	_, err, shared := m.group.Do("login", func() (any, error) {
		if m.valid(ctx) {
			return nil, nil
		}
		return m.Login(ctx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.cfg.Logger.Debug("session: shared login result")
	}
	return &Handle{m: m}, nil
}

// Logout leaves the portal. The state is Unauthenticated afterwards even
// if the logout page fails to load.
func (m *Manager) Logout(ctx context.Context) error {
	m.navMu.Lock()
	defer m.navMu.Unlock()
	defer m.setState(Unauthenticated)

	if m.cfg.LogoutURL == "" {
		return nil
	}
	if err := m.page.Navigate(ctx, m.cfg.LogoutURL); err != nil {
		return rfp.E(rfp.KindNavigation, "session.logout", err)
	}
	m.cfg.Logger.Info("session: logged out")
	return nil
}

// Logins returns how many successful logins this Manager performed.
func (m *Manager) Logins() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.logins
}

// Invalidate marks the session unusable; the next EnsureAuthenticated logs in.
func (m *Manager) Invalidate() {
	m.setState(Invalidated)
}
