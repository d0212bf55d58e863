package session

import (
	"context"
	"sync"

	apperrors "github.com/edukite/go-edukite-client/internal/errors"
	"github.com/edukite/go-edukite-client/internal/obs"
	"github.com/edukite/go-edukite-client/tokenstore"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Refresher exchanges a refresh token for a new session at the backend.
// The request dispatcher binds itself as the Refresher at construction.
type Refresher interface {
	RefreshSession(ctx context.Context, refreshToken, tenantID string) (*AuthResponse, error)
}

// Observer is notified of session transitions. Observers are injected at
// construction or subscribed explicitly; multiple observers may coexist.
type Observer interface {
	// OnRefresh fires after a successful silent renewal.
	OnRefresh(auth *AuthResponse)

	// OnUnauthorized fires exactly once per failed refresh, after the
	// session has been cleared.
	OnUnauthorized()
}

// Manager holds the in-memory session: the access token (never persisted),
// the refresh token mirror, the active tenant id, and the renewal timer.
// At most one renewal timer is armed at any time. Managers are independent
// instances; tests can create as many as they need without global leakage.
type Manager struct {
	lock         sync.Mutex
	accessToken  string
	refreshToken string
	tenantID     string
	renewal      Timer

	store     tokenstore.Store
	refresher Refresher
	observers []Observer
	clock     Clock
	log       zerolog.Logger

	refreshGroup singleflight.Group
}

// ManagerOption modifies a Manager at construction.
type ManagerOption func(*Manager)

// WithClock sets the scheduler clock (virtual time in tests).
func WithClock(clock Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = clock
	}
}

// WithLogger sets the session logger. The default logger is a nop.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log.With().Str("component", "session").Logger()
	}
}

// WithObserver subscribes an observer at construction.
func WithObserver(o Observer) ManagerOption {
	return func(m *Manager) {
		m.observers = append(m.observers, o)
	}
}

// NewManager creates a session manager backed by the given token store.
func NewManager(store tokenstore.Store, options ...ManagerOption) (*Manager, error) {
	if store == nil {
		return nil, errors.New("[NewManager] token store is required")
	}

	m := &Manager{
		store: store,
		clock: SystemClock(),
		log:   zerolog.Nop(),
	}
	for _, opt := range options {
		opt(m)
	}
	return m, nil
}

// BindRefresher attaches the refresh transport. Called once during client
// construction; the manager and dispatcher reference each other, so the
// refresher cannot be a constructor argument.
func (m *Manager) BindRefresher(r Refresher) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.refresher = r
}

// Subscribe adds an observer after construction.
func (m *Manager) Subscribe(o Observer) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.observers = append(m.observers, o)
}

// AccessToken returns the current in-memory access token, or "".
func (m *Manager) AccessToken() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.accessToken
}

// RefreshToken returns the current in-memory refresh token, or "".
func (m *Manager) RefreshToken() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.refreshToken
}

// TenantID returns the active tenant id, or "".
func (m *Manager) TenantID() string {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.tenantID
}

// Initialise installs a session from an auth response: sets the in-memory
// tokens and tenant (an invalid tenant id is discarded rather than stored),
// optionally persists the refresh token and tenant id, and arms the renewal
// timer from the advertised TTL.
func (m *Manager) Initialise(auth *AuthResponse, persist bool) error {
	if auth == nil {
		return errors.New("[Initialise] nil auth response")
	}

	tenantID := auth.User.TenantID
	if tenantID != "" && !tokenstore.ValidTenantID(tenantID) {
		m.log.Warn().Str("tenant", tenantID).Msg("discarding invalid tenant id")
		tenantID = ""
	}

	m.lock.Lock()
	m.stopRenewalLocked()
	m.accessToken = auth.AccessToken
	m.refreshToken = auth.RefreshToken
	m.tenantID = tenantID
	m.lock.Unlock()

	if persist {
		if err := m.persist(auth.RefreshToken, tenantID); err != nil {
			return errors.Wrap(err, "[Initialise] persist")
		}
	}

	m.armRenewal(auth.ExpiresIn)
	return nil
}

func (m *Manager) persist(refreshToken, tenantID string) error {
	if refreshToken != "" && !tokenstore.ValidTokenFormat(refreshToken) {
		m.log.Warn().Msg("refresh token failed format validation, not persisting")
		refreshToken = ""
	}
	if err := m.store.StoreRefreshToken(refreshToken); err != nil {
		return errors.Wrap(err, "store refresh token")
	}
	if err := m.store.StoreTenantID(tenantID); err != nil {
		return errors.Wrap(err, "store tenant id")
	}
	return nil
}

// HydrateFromStorage loads the persisted refresh token and tenant id into
// memory on cold start. Invalid persisted values are purged by the store as
// a side effect of the read. Hydration is idempotent and write-free for
// valid state.
func (m *Manager) HydrateFromStorage() error {
	refreshToken, err := m.store.RefreshToken()
	if err != nil {
		return errors.Wrap(err, "[HydrateFromStorage] read refresh token")
	}
	tenantID, err := m.store.TenantID()
	if err != nil {
		return errors.Wrap(err, "[HydrateFromStorage] read tenant id")
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	m.refreshToken = refreshToken
	m.tenantID = tenantID
	return nil
}

// SetTenant validates and switches the active tenant. Tokens are untouched.
// Invalid input is rejected and prior state is left unchanged.
func (m *Manager) SetTenant(id string) error {
	if !tokenstore.ValidTenantID(id) {
		return errors.Wrapf(apperrors.ErrInvalidTenantID, "[SetTenant] %q", id)
	}

	m.lock.Lock()
	m.tenantID = id
	m.lock.Unlock()

	if err := m.store.StoreTenantID(id); err != nil {
		return errors.Wrap(err, "[SetTenant] persist tenant id")
	}
	return nil
}

// Clear atomically destroys the session: the in-memory tokens and tenant,
// the renewal timer, and the persisted entries all go together. No
// partial-session state is observable to callers.
func (m *Manager) Clear() error {
	m.lock.Lock()
	m.stopRenewalLocked()
	m.accessToken = ""
	m.refreshToken = ""
	m.tenantID = ""
	m.lock.Unlock()

	if err := m.store.ClearAll(); err != nil {
		return errors.Wrap(err, "[Clear] purge persisted tokens")
	}
	return nil
}

// Invalidate clears the session and notifies the unauthorized observers.
// Used by the dispatcher when a reauthenticated retry is still rejected.
func (m *Manager) Invalidate() error {
	err := m.Clear()
	m.notifyUnauthorized()
	return err
}

// Refresh performs the silent renewal flow. Concurrent callers share one
// in-flight refresh. A nil response with a nil error means "no session":
// either no refresh token is held, or the renewal was rejected and the
// session has been cleared (with the unauthorized observers notified once).
func (m *Manager) Refresh(ctx context.Context) (*AuthResponse, error) {
	v, err, _ := m.refreshGroup.Do("refresh", func() (interface{}, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*AuthResponse), nil
}

func (m *Manager) doRefresh(ctx context.Context) (*AuthResponse, error) {
	m.lock.Lock()
	refreshToken := m.refreshToken
	tenantID := m.tenantID
	refresher := m.refresher
	m.lock.Unlock()

	if refreshToken == "" {
		obs.ObserveRefresh("no_session")
		return nil, nil
	}
	if refresher == nil {
		return nil, errors.New("[Refresh] no refresher bound")
	}

	auth, err := refresher.RefreshSession(ctx, refreshToken, tenantID)
	if err != nil || auth == nil || auth.AccessToken == "" {
		m.log.Debug().Err(err).Msg("refresh rejected, clearing session")
		obs.ObserveRefresh("failure")
		if clearErr := m.Invalidate(); clearErr != nil {
			m.log.Warn().Err(clearErr).Msg("session clear after failed refresh")
		}
		return nil, nil
	}

	if err := m.Initialise(auth, true); err != nil {
		return nil, errors.Wrap(err, "[Refresh] initialise from response")
	}
	obs.ObserveRefresh("success")
	m.notifyRefresh(auth)
	return auth, nil
}

func (m *Manager) notifyRefresh(auth *AuthResponse) {
	m.lock.Lock()
	observers := append([]Observer(nil), m.observers...)
	m.lock.Unlock()
	for _, o := range observers {
		o.OnRefresh(auth)
	}
}

func (m *Manager) notifyUnauthorized() {
	m.lock.Lock()
	observers := append([]Observer(nil), m.observers...)
	m.lock.Unlock()
	for _, o := range observers {
		o.OnUnauthorized()
	}
}

// armRenewal parses the TTL and schedules the silent renewal. An
// unparseable TTL leaves the session usable but unscheduled.
func (m *Manager) armRenewal(expiresIn string) {
	ttl, err := ParseTTL(expiresIn)
	if err != nil {
		m.log.Warn().Str("expiresIn", expiresIn).Msg("unparseable token ttl, renewal not scheduled")
		return
	}
	delay := RenewalDelay(ttl)

	m.lock.Lock()
	defer m.lock.Unlock()
	m.stopRenewalLocked()
	m.renewal = m.clock.AfterFunc(delay, m.renewalFired)
	m.log.Debug().Dur("delay", delay).Msg("renewal scheduled")
}

// renewalFired runs inside the timer callback. Failures are already handled
// terminally by the refresh flow, so they are swallowed here.
func (m *Manager) renewalFired() {
	if _, err := m.Refresh(context.Background()); err != nil {
		m.log.Debug().Err(err).Msg("scheduled renewal")
	}
}

func (m *Manager) stopRenewalLocked() {
	if m.renewal != nil {
		m.renewal.Stop()
		m.renewal = nil
	}
}
