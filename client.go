package authkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/fynlo/authkit/internal/backend"
	"github.com/fynlo/authkit/permissions"
	"github.com/fynlo/authkit/store"
	"github.com/fynlo/authkit/token"
)

// Client is the session authority. It owns the secure token store: every
// other component reads the token through Client accessors so presence and
// expiry are decided in exactly one place. All methods are safe for
// concurrent use once Build returns.
type Client struct {
	cfg     Config
	api     *backend.Client
	secure  store.Store
	legacy  store.Store
	idents  store.Store
	bus     *Bus
	metrics *Metrics
	perms   *permissions.Cache
	logger  *slog.Logger

	initMu      sync.Mutex
	initialized atomic.Bool

	mu        sync.Mutex
	tok       string
	user      *User
	lastKnown *User
}

// Initialize hydrates the session from storage: it migrates any legacy
// plaintext token into the secure store (at most once per process), loads the
// stored token and user id, and mints a device id on first run. Idempotent
// and safe to call concurrently; a second caller waits for the first and does
// not re-run migration.
func (c *Client) Initialize(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()
	if c.initialized.Load() {
		return nil
	}

	store.Migrate(ctx, c.logger, c.legacy, c.secure, store.KeyAuthToken)

	raw, ok, err := c.secure.Get(ctx, store.KeyAuthToken)
	if err != nil {
		// Hydration is best-effort: an unreachable store means no session,
		// not a failed process start.
		c.logger.Warn("token hydration failed", "error", err)
	} else if ok {
		c.mu.Lock()
		c.tok = token.StripBearer(raw)
		c.mu.Unlock()
	}

	if userID, ok, err := c.idents.Get(ctx, store.KeyUserID); err == nil && ok && userID != "" {
		c.mu.Lock()
		c.lastKnown = &User{ID: userID}
		c.mu.Unlock()
	}

	if _, ok, err := c.idents.Get(ctx, store.KeyDeviceID); err == nil && !ok {
		if err := c.idents.Set(ctx, store.KeyDeviceID, uuid.NewString()); err != nil {
			c.logger.Warn("device id write failed", "error", err)
		}
	}

	c.initialized.Store(true)
	return nil
}

// Initialized reports whether Initialize has completed.
func (c *Client) Initialized() bool {
	return c.initialized.Load()
}

// Token returns the stored session token, or empty when none is stored or
// the stored token is already expired. The store is re-read every call so an
// externally deleted token is noticed immediately.
func (c *Client) Token(ctx context.Context) (string, error) {
	if !c.initialized.Load() {
		return "", ErrNotInitialized
	}
	raw, ok, err := c.secure.Get(ctx, store.KeyAuthToken)
	if err != nil {
		return "", err
	}
	if !ok || raw == "" {
		return "", nil
	}
	tok := token.StripBearer(raw)
	if token.IsExpired(tok) {
		return "", nil
	}
	return tok, nil
}

// DeviceID returns the per-install identifier minted on first Initialize.
func (c *Client) DeviceID(ctx context.Context) (string, error) {
	if !c.initialized.Load() {
		return "", ErrNotInitialized
	}
	id, _, err := c.idents.Get(ctx, store.KeyDeviceID)
	return id, err
}

// SetPushToken records the notification push token under the identifier
// store. Cleared on logout.
func (c *Client) SetPushToken(ctx context.Context, value string) error {
	return c.idents.Set(ctx, store.KeyPushToken, value)
}

// CurrentUser returns the authenticated user, lazily fetched. An expired
// token resolves to a silent local logout and a nil user, never an error. A
// transient 401 on the fetch — one not explained by local expiry — returns
// the last-known user instead of logging out.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	if !c.initialized.Load() {
		return nil, ErrNotInitialized
	}

	c.mu.Lock()
	if c.user != nil {
		user := *c.user
		c.mu.Unlock()
		return &user, nil
	}
	tok := c.tok
	c.mu.Unlock()

	if tok == "" {
		return nil, nil
	}
	if token.IsExpired(tok) {
		c.logoutLocally(ctx)
		return nil, nil
	}

	c.metrics.Inc(MetricUserFetch)
	raw, rotated, err := c.api.Me(ctx, tok)
	if err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Status == 401 {
			if token.IsExpired(tok) {
				c.logoutLocally(ctx)
				return nil, nil
			}
			c.mu.Lock()
			last := c.lastKnown
			c.mu.Unlock()
			return last, nil
		}
		c.metrics.Inc(MetricUserFetchFailure)
		return nil, liftError(err)
	}

	if rotated != "" {
		if err := c.adoptToken(ctx, rotated); err != nil {
			c.logger.Warn("rotated token rejected", "error", err)
		}
	}

	user := userFromBackend(raw)
	c.mu.Lock()
	c.user = user
	c.lastKnown = user
	c.mu.Unlock()
	return user, nil
}

// IsAuthenticated reports whether a valid session token is stored. The
// secure store is always re-read — in-memory state alone is never trusted, so
// external token deletion is caught on the next poll. Expiry resolves to a
// silent local logout. When authenticated and no user is cached yet, the user
// is fetched opportunistically; that fetch failing does not change the
// answer.
func (c *Client) IsAuthenticated(ctx context.Context) (bool, error) {
	if !c.initialized.Load() {
		return false, ErrNotInitialized
	}

	raw, ok, err := c.secure.Get(ctx, store.KeyAuthToken)
	if err != nil {
		return false, err
	}
	if !ok || raw == "" {
		c.mu.Lock()
		c.tok = ""
		c.user = nil
		c.mu.Unlock()
		return false, nil
	}

	tok := token.StripBearer(raw)
	if token.IsExpired(tok) {
		c.logoutLocally(ctx)
		return false, nil
	}

	c.mu.Lock()
	c.tok = tok
	needUser := c.user == nil
	c.mu.Unlock()

	if needUser {
		c.metrics.Inc(MetricUserFetch)
		if raw, _, err := c.api.Me(ctx, tok); err == nil {
			user := userFromBackend(raw)
			c.mu.Lock()
			c.user = user
			c.lastKnown = user
			c.mu.Unlock()
		} else {
			// Token validity, not user-fetch success, is authoritative.
			c.metrics.Inc(MetricUserFetchFailure)
			c.logger.Debug("opportunistic user fetch failed", "error", err)
		}
	}
	return true, nil
}

// Logout ends the session. The server notification is best-effort: it is
// skipped when the token is already expired and a network failure never
// blocks the local teardown. Local storage and memory are always cleared.
func (c *Client) Logout(ctx context.Context) error {
	if !c.initialized.Load() {
		return ErrNotInitialized
	}

	tok := c.currentToken(ctx)
	if tok != "" && !token.IsExpired(tok) {
		if err := c.api.Logout(ctx, tok); err != nil {
			c.logger.Warn("server logout notification failed", "error", err)
		}
	}

	c.clearSession(ctx)
	c.metrics.Inc(MetricLogout)
	c.bus.Publish(TopicAuthChanged, false)
	c.bus.Publish(TopicAuthLogout, true)
	return nil
}

// RefreshToken tries to obtain a rotated token: first the refresh endpoint,
// then probing /users/me for a rotation header. Returns the adopted token, or
// empty when the backend declined to rotate — which is a no-op, not a
// failure, and never a substitute for expiry-driven logout.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	if !c.initialized.Load() {
		return "", ErrNotInitialized
	}
	tok := c.currentToken(ctx)
	if tok == "" {
		return "", ErrNotAuthenticated
	}

	rotated, err := c.api.Refresh(ctx, tok)
	if err != nil {
		c.logger.Debug("refresh endpoint unavailable, probing for rotation", "error", err)
	}
	if rotated == "" {
		if _, probed, err := c.api.Me(ctx, tok); err == nil {
			rotated = probed
		}
	}
	if rotated == "" {
		return "", nil
	}

	if err := c.adoptToken(ctx, rotated); err != nil {
		return "", err
	}
	c.metrics.Inc(MetricTokenRefreshed)
	return token.StripBearer(rotated), nil
}

// TwoFactorStatus reports whether TOTP is enabled for the account.
func (c *Client) TwoFactorStatus(ctx context.Context) (bool, error) {
	tok, err := c.requireToken(ctx)
	if err != nil {
		return false, err
	}
	enabled, err := c.api.TwoFactorStatus(ctx, tok)
	return enabled, liftError(err)
}

// ValidateOTP checks a TOTP code against the authenticated account.
func (c *Client) ValidateOTP(ctx context.Context, code string) (bool, error) {
	tok, err := c.requireToken(ctx)
	if err != nil {
		return false, err
	}
	ok, err := c.api.ValidateOTP(ctx, tok, NormalizeAnswer(code))
	return ok, liftError(err)
}

// NotifyTwoFactorSetupComplete broadcasts that two-factor enrollment
// finished, for screens observing the setup flow.
func (c *Client) NotifyTwoFactorSetupComplete() {
	c.bus.Publish(TopicTwoFactorSetup, true)
}

// Permissions is the stale-while-revalidate permission cache bound to this
// session.
func (c *Client) Permissions() *permissions.Cache {
	return c.perms
}

// Subscribe registers for authentication events; no topics means all topics.
// Callers must Cancel the subscription when done.
func (c *Client) Subscribe(topics ...Topic) *Subscription {
	return c.bus.Subscribe(topics...)
}

// EventsDropped reports how many events were lost to full subscriber
// buffers.
func (c *Client) EventsDropped() uint64 {
	return c.bus.Dropped()
}

// MetricsSnapshot copies the counter registry.
func (c *Client) MetricsSnapshot() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Close shuts down the event bus. The client must not be used afterwards.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.bus.Close()
}

// currentToken prefers the in-memory token and falls back to the store.
func (c *Client) currentToken(ctx context.Context) string {
	c.mu.Lock()
	tok := c.tok
	c.mu.Unlock()
	if tok != "" {
		return tok
	}
	raw, ok, err := c.secure.Get(ctx, store.KeyAuthToken)
	if err != nil || !ok {
		return ""
	}
	return token.StripBearer(raw)
}

func (c *Client) requireToken(ctx context.Context) (string, error) {
	if !c.initialized.Load() {
		return "", ErrNotInitialized
	}
	tok := c.currentToken(ctx)
	if tok == "" {
		return "", ErrNotAuthenticated
	}
	return tok, nil
}

// adoptToken validates and persists a replacement token, then installs it in
// memory. Late arrival is safe: re-applying an already adopted token is
// idempotent.
func (c *Client) adoptToken(ctx context.Context, raw string) error {
	tok := token.StripBearer(raw)
	if !token.ValidShape(tok) {
		return ErrInvalidToken
	}
	if err := c.secure.Set(ctx, store.KeyAuthToken, tok); err != nil {
		return fmt.Errorf("persist token: %w", err)
	}
	c.mu.Lock()
	c.tok = tok
	c.mu.Unlock()
	return nil
}

// logoutLocally tears the session down without notifying the server. Used
// when local expiry is detected; per policy expiry is never surfaced as an
// error, only as an authentication-state transition.
func (c *Client) logoutLocally(ctx context.Context) {
	c.clearSession(ctx)
	c.metrics.Inc(MetricTokenExpired)
	c.bus.Publish(TopicAuthChanged, false)
	c.bus.Publish(TopicAuthLogout, true)
}

// clearSession removes every stored session key and resets memory. Failures
// are logged and ignored: local logout must always succeed.
func (c *Client) clearSession(ctx context.Context) {
	for _, pair := range []struct {
		s   store.Store
		key string
	}{
		{c.secure, store.KeyAuthToken},
		{c.idents, store.KeyUserID},
		{c.idents, store.KeyPushToken},
	} {
		if err := pair.s.Delete(ctx, pair.key); err != nil {
			c.logger.Warn("session key delete failed", "key", pair.key, "error", err)
		}
	}

	c.mu.Lock()
	c.tok = ""
	c.user = nil
	c.lastKnown = nil
	c.mu.Unlock()

	c.perms.Invalidate(ctx)
}

// fetchPermissionNames is the permission cache's authoritative fetcher.
func (c *Client) fetchPermissionNames(ctx context.Context) ([]string, error) {
	tok := c.currentToken(ctx)
	if tok == "" {
		return nil, ErrNotAuthenticated
	}
	c.metrics.Inc(MetricPermissionRefresh)
	user, _, err := c.api.Me(ctx, tok)
	if err != nil {
		c.metrics.Inc(MetricPermissionRefreshFailure)
		return nil, err
	}
	return permissions.NormalizeRecords(user.Role.Permissions), nil
}
