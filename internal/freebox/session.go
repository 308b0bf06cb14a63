package freebox

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // The router's login protocol mandates HMAC-SHA1
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// AuthorizationStatus is the approval state of a pending registration,
// as reported by the authorization tracking endpoint.
type AuthorizationStatus string

// Authorization states. Granted is the only state from which login
// should be attempted.
const (
	AuthorizationUnknown AuthorizationStatus = "unknown"
	AuthorizationPending AuthorizationStatus = "pending"
	AuthorizationTimeout AuthorizationStatus = "timeout"
	AuthorizationGranted AuthorizationStatus = "granted"
	AuthorizationDenied  AuthorizationStatus = "denied"
)

// AppIdentity identifies this application to the router during
// registration and login.
type AppIdentity struct {
	ID         string
	Name       string
	Version    string
	DeviceName string
}

// Session is the in-memory state issued by a successful login. It is
// never persisted: a process restart, a logout or a detected
// invalid-session error all destroy it. A non-empty token means the last
// login or session check succeeded — best-effort fresh, not a guarantee;
// any call can discover it stale.
type Session struct {
	Token       string
	Challenge   string
	Permissions map[string]bool
}

// Authenticator implements the registration and login state machine on
// top of the credential store and the transport, and owns the session
// token lifecycle.
//
// States: Unregistered -> PendingApproval -> Registered -> Authenticated.
//
// Field access is mutex-guarded for memory safety, but two Login calls
// racing each other are not mutually excluded: the second to finish wins
// and the session fields reflect that attempt. Known gap, matching the
// protocol's lack of any per-login ordering guarantee.
type Authenticator struct {
	store     *CredentialStore
	transport *Transport
	app       AppIdentity

	// timeout bounds authentication traffic; the adaptive policies apply
	// to data operations only.
	timeout time.Duration

	mu        sync.RWMutex
	session   *Session
	challenge string // cached from authorization polling, never used for login
}

// Wire payloads for the login endpoints.
type registerRequest struct {
	AppID      string `json:"app_id"`
	AppName    string `json:"app_name"`
	AppVersion string `json:"app_version"`
	DeviceName string `json:"device_name"`
}

type registerResult struct {
	AppToken string `json:"app_token"`
	TrackID  int    `json:"track_id"`
}

type trackResult struct {
	Status    string `json:"status"`
	Challenge string `json:"challenge"`
}

type loginRequest struct {
	AppID      string `json:"app_id"`
	AppVersion string `json:"app_version"`
	Password   string `json:"password"`
}

type sessionResult struct {
	SessionToken string          `json:"session_token"`
	Challenge    string          `json:"challenge"`
	Permissions  map[string]bool `json:"permissions"`
}

type loginStatusResult struct {
	LoggedIn  bool   `json:"logged_in"`
	Challenge string `json:"challenge"`
}

// NewAuthenticator creates an authenticator over the given store and
// transport.
func NewAuthenticator(store *CredentialStore, transport *Transport, app AppIdentity) *Authenticator {
	return &Authenticator{
		store:     store,
		transport: transport,
		app:       app,
		timeout:   DefaultTimeout,
	}
}

// Register requests a new app token from the router. Valid from both the
// unregistered and registered states (re-registration replaces the old
// token).
//
// The returned token is persisted immediately, before the user has
// approved the request on the router's front panel: approval can take
// minutes and the token must survive a restart in between. The returned
// track id is polled with TrackAuthorization.
func (a *Authenticator) Register(ctx context.Context) (int, error) {
	env := a.transport.Send(ctx, http.MethodPost, "/login/authorize/", registerRequest{
		AppID:      a.app.ID,
		AppName:    a.app.Name,
		AppVersion: a.app.Version,
		DeviceName: a.app.DeviceName,
	}, false, a.timeout)
	if !env.Success {
		return 0, fmt.Errorf("%w: %s", ErrRegistrationFailed, envelopeMessage(env))
	}

	var res registerResult
	if err := env.DecodeResult(&res); err != nil {
		return 0, fmt.Errorf("%w: decoding response: %v", ErrRegistrationFailed, err)
	}

	if err := a.store.Save(res.AppToken); err != nil {
		return 0, fmt.Errorf("persisting app token: %w", err)
	}
	return res.TrackID, nil
}

// TrackAuthorization polls the approval status of a pending registration.
// A challenge present in the response is cached, though login always
// fetches its own fresh one.
func (a *Authenticator) TrackAuthorization(ctx context.Context, trackID int) (AuthorizationStatus, error) {
	env := a.transport.Send(ctx, http.MethodGet, fmt.Sprintf("/login/authorize/%d", trackID), nil, false, a.timeout)
	if !env.Success {
		return AuthorizationUnknown, fmt.Errorf("tracking authorization %d: %s", trackID, envelopeMessage(env))
	}

	var res trackResult
	if err := env.DecodeResult(&res); err != nil {
		return AuthorizationUnknown, fmt.Errorf("tracking authorization %d: decoding response: %w", trackID, err)
	}

	if res.Challenge != "" {
		a.mu.Lock()
		a.challenge = res.Challenge
		a.mu.Unlock()
	}

	switch status := AuthorizationStatus(res.Status); status {
	case AuthorizationPending, AuthorizationTimeout, AuthorizationGranted, AuthorizationDenied:
		return status, nil
	default:
		return AuthorizationUnknown, nil
	}
}

// Login performs the challenge-response handshake and stores the session.
//
// It fails fast with ErrNoCredential — zero network calls — when no app
// token is stored. A fresh challenge is always fetched first; the one
// cached during authorization polling may predate a router reboot and is
// never reused. The password is the lowercase hex HMAC-SHA1 of the
// challenge keyed by the app token.
func (a *Authenticator) Login(ctx context.Context) error {
	token := a.store.AppToken()
	if token == "" {
		return ErrNoCredential
	}

	env := a.transport.Send(ctx, http.MethodGet, "/login/", nil, false, a.timeout)
	if !env.Success {
		return fmt.Errorf("%w: %s", ErrChallengeFetch, envelopeMessage(env))
	}
	var status loginStatusResult
	if err := env.DecodeResult(&status); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrChallengeFetch, err)
	}

	env = a.transport.Send(ctx, http.MethodPost, "/login/session/", loginRequest{
		AppID:      a.app.ID,
		AppVersion: a.app.Version,
		Password:   computePassword(token, status.Challenge),
	}, false, a.timeout)
	if !env.Success {
		return fmt.Errorf("%w: %s", ErrLoginFailed, envelopeMessage(env))
	}

	var res sessionResult
	if err := env.DecodeResult(&res); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrLoginFailed, err)
	}

	a.mu.Lock()
	a.session = &Session{
		Token:       res.SessionToken,
		Challenge:   res.Challenge,
		Permissions: res.Permissions,
	}
	a.mu.Unlock()
	return nil
}

// Logout ends the session on the router and clears it locally. No-op
// without a session. The local session is cleared even when the network
// call fails: a token the caller believes is gone must never linger.
func (a *Authenticator) Logout(ctx context.Context) {
	if !a.IsAuthenticated() {
		return
	}
	a.transport.Send(ctx, http.MethodPost, "/login/logout/", nil, true, a.timeout)
	a.ClearSession()
}

// CheckSession verifies the held session against the router.
//
// Returns false with zero I/O when no session is held. Otherwise it
// queries the login status endpoint authenticated (the endpoint accepts
// both modes; authenticated, logged_in reports on the presented token)
// and clears the session on any failure, any session-flavoured error or
// logged_in false.
func (a *Authenticator) CheckSession(ctx context.Context) bool {
	if !a.IsAuthenticated() {
		return false
	}

	env := a.transport.Send(ctx, http.MethodGet, "/login/", nil, true, a.timeout)
	if !env.Success {
		a.ClearSession()
		return false
	}

	var res loginStatusResult
	if err := env.DecodeResult(&res); err != nil || !res.LoggedIn {
		a.ClearSession()
		return false
	}
	return true
}

// IsRegistered reports whether an app token is stored. No I/O.
func (a *Authenticator) IsRegistered() bool {
	return a.store.AppToken() != ""
}

// IsAuthenticated reports whether a session is held. No I/O; the session
// may still turn out stale on the next call.
func (a *Authenticator) IsAuthenticated() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.session != nil && a.session.Token != ""
}

// SessionToken returns the current session token, or "" when no session
// is held. Wired into the transport as its TokenFunc.
func (a *Authenticator) SessionToken() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return ""
	}
	return a.session.Token
}

// Permissions returns a copy of the permissions granted at login, or nil
// when no session is held.
func (a *Authenticator) Permissions() map[string]bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.session == nil {
		return nil
	}
	perms := make(map[string]bool, len(a.session.Permissions))
	for k, v := range a.session.Permissions {
		perms[k] = v
	}
	return perms
}

// ClearSession drops the in-memory session. The client facade calls this
// when a response reports the session expired.
func (a *Authenticator) ClearSession() {
	a.mu.Lock()
	a.session = nil
	a.mu.Unlock()
}

// computePassword derives the login password: lowercase hex HMAC-SHA1 of
// the challenge keyed by the app token.
func computePassword(appToken, challenge string) string {
	mac := hmac.New(sha1.New, []byte(appToken))
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}

// envelopeMessage picks the error text for a failed envelope: the
// server-supplied message first, then the error code, then a generic
// fallback.
func envelopeMessage(env Envelope) string {
	switch {
	case env.Message != "":
		return env.Message
	case env.ErrorCode != "":
		return env.ErrorCode
	default:
		return "request rejected by router"
	}
}
