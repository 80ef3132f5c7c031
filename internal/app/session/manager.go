/*
Package session owns the authenticated identity and its persisted token.

It exposes login, registration, logout, profile refresh, and session restoration on
startup. All network-facing operations catch transport errors and degrade to either a
user-visible error result or (login only) the developer fallback credential pair;
none of them panic or fail past their own boundary.
*/
package session

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/proedition/mucompanion/internal/app/store"
	"github.com/proedition/mucompanion/internal/app/user"
	"github.com/proedition/mucompanion/internal/pkg/apix"
	"github.com/proedition/mucompanion/internal/pkg/errs"
	"github.com/proedition/mucompanion/internal/pkg/logx"
)

const (
	// devUsername and devPassword form the offline developer credential pair.
	// The fallback is config-gated and never active outside development builds.
	devUsername = "test"
	devPassword = "test"

	// devToken is the canned session token issued by the developer fallback.
	devToken = "mock-token-123"
)

// Manager owns the authenticated identity and its persisted token.
// The identity is present if and only if a session token is held.
type Manager struct {
	store       store.Store
	httpClient  *http.Client
	apiURL      string
	devFallback bool

	mu            sync.RWMutex
	identity      *user.Identity
	token         string
	authenticated bool

	logger zerolog.Logger
}

// loginResponse mirrors the backend's credential-exchange response body.
type loginResponse struct {
	Token string        `json:"token"`
	User  user.Identity `json:"user"`
}

// registerResponse mirrors the backend's registration confirmation body.
type registerResponse struct {
	Message string `json:"message"`
}

// NewManager constructs a session Manager backed by the given store and HTTP client.
// serverURL is the backend base URL (without the /api suffix). devFallback enables
// the offline test/test credential pair.
func NewManager(st store.Store, httpClient *http.Client, serverURL string, devFallback bool) *Manager {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &Manager{
		store:       st,
		httpClient:  httpClient,
		apiURL:      serverURL + "/api",
		devFallback: devFallback,
		logger:      logx.Logger().With().Str("component", "session").Logger(),
	}
}

// Restore reads the persisted token and identity at process start.
// If both are present the session is marked authenticated; otherwise it stays
// unauthenticated. Restore never fails fatally: any read or parse error is
// treated as "no session" and logged.
func (m *Manager) Restore() bool {
	token, hasToken, err := m.store.Get(store.KeyAuthToken)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to read persisted token. Starting unauthenticated.")
		return false
	}

	rawIdentity, hasIdentity, err := m.store.Get(store.KeyUserData)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Failed to read persisted identity. Starting unauthenticated.")
		return false
	}

	if !hasToken || !hasIdentity {
		return false
	}

	var identity user.Identity
	if err := json.Unmarshal([]byte(rawIdentity), &identity); err != nil {
		m.logger.Warn().Err(err).Msg("Persisted identity is corrupt. Starting unauthenticated.")
		return false
	}

	m.mu.Lock()
	m.identity = &identity
	m.token = token
	m.authenticated = true
	m.mu.Unlock()

	m.logger.Info().Str("username", identity.Username).Msg("Session restored from persisted state.")
	return true
}

// Login exchanges the credentials for a session token and identity.
// On success the token and identity are persisted and the session is marked
// authenticated. On remote rejection the server-supplied message is returned.
// On transport failure the developer fallback credential pair is consulted
// when enabled; otherwise a generic connection error is returned.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errs.NewError(errs.ErrMissingCredentials)
	}

	var result loginResponse
	apiErr := apix.Do(ctx, m.httpClient, apix.Request{
		Method: http.MethodPost,
		URL:    m.apiURL + "/login",
		Body: map[string]string{
			"username": username,
			"password": password,
		},
	}, &result)

	if apiErr == nil {
		m.establish(result.Token, result.User)
		m.logger.Info().Str("username", result.User.Username).Msg("Login succeeded.")
		return nil
	}

	if apiErr.Code == errs.ErrConnectionFailed {
		if m.devFallback && username == devUsername && password == devPassword {
			identity := devIdentity()
			m.establish(devToken, identity)
			m.logger.Warn().Msg("Backend unreachable. Developer fallback session established.")
			return nil
		}

		m.logger.Warn().Str("username", username).Msg("Login failed: backend unreachable.")
		return errs.NewError(errs.ErrConnectionFailed)
	}

	m.logger.Warn().Str("username", username).Str("reason", apiErr.Message).Msg("Login rejected by backend.")
	return apiErr
}

// Register creates a new account. A password/confirmation mismatch fails locally
// before any network call. Success returns the backend's confirmation message but
// does not establish a session; the caller must still log in.
func (m *Manager) Register(ctx context.Context, username, email, password, confirmPassword string) (string, error) {
	if password != confirmPassword {
		return "", errs.NewError(errs.ErrPasswordMismatch)
	}

	var result registerResponse
	apiErr := apix.Do(ctx, m.httpClient, apix.Request{
		Method: http.MethodPost,
		URL:    m.apiURL + "/register",
		Body: map[string]string{
			"username": username,
			"email":    email,
			"password": password,
		},
	}, &result)

	if apiErr != nil {
		if apiErr.Code == errs.ErrConnectionFailed {
			m.logger.Warn().Str("username", username).Msg("Registration failed: backend unreachable.")
			return "", errs.NewError(errs.ErrConnectionFailed)
		}

		m.logger.Warn().Str("username", username).Str("reason", apiErr.Message).Msg("Registration rejected by backend.")
		return "", apiErr
	}

	message := result.Message
	if message == "" {
		message = "Account created successfully."
	}

	m.logger.Info().Str("username", username).Msg("Registration succeeded.")
	return message, nil
}

// Logout clears the persisted token and identity and marks the session
// unauthenticated. It is best-effort: storage failures are logged, not surfaced.
func (m *Manager) Logout() {
	if err := m.store.Delete(store.KeyAuthToken); err != nil {
		m.logger.Error().Err(err).Msg("Failed to erase persisted token during logout.")
	}
	if err := m.store.Delete(store.KeyUserData); err != nil {
		m.logger.Error().Err(err).Msg("Failed to erase persisted identity during logout.")
	}

	m.mu.Lock()
	m.identity = nil
	m.token = ""
	m.authenticated = false
	m.mu.Unlock()

	m.logger.Info().Msg("Logged out.")
}

// UpdateUser overwrites the persisted and in-memory identity.
func (m *Manager) UpdateUser(identity user.Identity) error {
	if err := m.persistIdentity(identity); err != nil {
		return err
	}

	m.mu.Lock()
	m.identity = &identity
	m.mu.Unlock()

	return nil
}

// RefreshUserData re-fetches the canonical profile from the backend using the
// held token and persists the response. It silently no-ops when no token is held.
func (m *Manager) RefreshUserData(ctx context.Context) error {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	if token == "" {
		return nil
	}

	var identity user.Identity
	apiErr := apix.Do(ctx, m.httpClient, apix.Request{
		Method: http.MethodGet,
		URL:    m.apiURL + "/user/profile",
		Bearer: token,
	}, &identity)

	if apiErr != nil {
		m.logger.Warn().Str("reason", apiErr.Message).Msg("Profile refresh failed.")
		return apiErr
	}

	return m.UpdateUser(identity)
}

// Identity returns a copy of the current identity, or nil when unauthenticated.
func (m *Manager) Identity() *user.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.identity == nil {
		return nil
	}

	identity := *m.identity
	identity.Characters = append([]user.Character(nil), m.identity.Characters...)
	return &identity
}

// Token returns the held session token, or the empty string when unauthenticated.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

// IsAuthenticated reports whether a session is currently established.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authenticated
}

// establish persists and installs a fresh token/identity pair.
// Storage failures are logged; the in-memory session is still established.
func (m *Manager) establish(token string, identity user.Identity) {
	if err := m.store.Set(store.KeyAuthToken, token); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist session token.")
	}
	if err := m.persistIdentity(identity); err != nil {
		m.logger.Error().Err(err).Msg("Failed to persist identity.")
	}

	m.mu.Lock()
	m.identity = &identity
	m.token = token
	m.authenticated = true
	m.mu.Unlock()
}

// persistIdentity serializes the identity into the store.
func (m *Manager) persistIdentity(identity user.Identity) error {
	raw, err := json.Marshal(identity)
	if err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	if err := m.store.Set(store.KeyUserData, string(raw)); err != nil {
		return errs.NewError(errs.ErrUnknown, err)
	}

	return nil
}

// devIdentity synthesizes the canned identity used by the developer fallback.
func devIdentity() user.Identity {
	return user.Identity{
		ID:       1,
		Username: devUsername,
		Email:    "test@proedition.com",
		VIPLevel: 1,
		Characters: []user.Character{
			{ID: 1, Name: "DarkKnight", Level: 400, Class: user.ClassDarkKnight},
			{ID: 2, Name: "DarkWizard", Level: 380, Class: user.ClassDarkWizard},
		},
		LastLogin: time.Now().UTC().Format(time.RFC3339),
	}
}
