package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/edukite/go-edukite-client/session"
	"github.com/edukite/go-edukite-client/tokenstore/storefakes"
)

const (
	testAccessToken  = "eyJhbGc.eyJzdWI.signature"
	testRefreshToken = "4f2a9c81b7d64e50a3c18f29e6b07d41"
	newRefreshToken  = "9b1e5d72a8c34f60b2d49e07c5a18f63"
)

// fakeClock implements session.Clock with manually advanced time.
type fakeClock struct {
	mu        sync.Mutex
	now       time.Time
	timers    []*fakeTimer
	lastDelay time.Duration
	armed     int
}

type fakeTimer struct {
	deadline time.Time
	f        func()
	stopped  bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 9, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) session.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	c.lastDelay = d
	c.armed++
	return t
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

// Advance moves the clock forward and fires due, unstopped timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.deadline.After(c.now) {
			t.stopped = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) activeTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped {
			n++
		}
	}
	return n
}

// fakeRefresher implements session.Refresher.
type fakeRefresher struct {
	mu      sync.Mutex
	calls   int
	respond func() (*session.AuthResponse, error)
	block   chan struct{}
}

func (r *fakeRefresher) RefreshSession(_ context.Context, _, _ string) (*session.AuthResponse, error) {
	r.mu.Lock()
	r.calls++
	block := r.block
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	return r.respond()
}

func (r *fakeRefresher) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// fakeObserver counts notifications.
type fakeObserver struct {
	mu           sync.Mutex
	refreshed    int
	unauthorized int
}

func (o *fakeObserver) OnRefresh(_ *session.AuthResponse) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.refreshed++
}

func (o *fakeObserver) OnUnauthorized() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.unauthorized++
}

func (o *fakeObserver) counts() (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.refreshed, o.unauthorized
}

func authResponse(expiresIn string) *session.AuthResponse {
	return &session.AuthResponse{
		AccessToken:  testAccessToken,
		RefreshToken: testRefreshToken,
		ExpiresIn:    expiresIn,
		User: session.AuthUser{
			ID:         "user-1",
			Email:      "student@school.example",
			Role:       session.RoleStudent,
			TenantID:   "tenant_alpha",
			IsVerified: true,
			Status:     session.StatusActive,
		},
	}
}

func newTestManager(t *testing.T, opts ...session.ManagerOption) (*session.Manager, *storefakes.FakeStore) {
	t.Helper()
	store := storefakes.NewFakeStore()
	m, err := session.NewManager(store, opts...)
	require.NoError(t, err)
	return m, store
}

func TestManager_Initialise(t *testing.T) {
	t.Run("sets memory, persists and arms the scheduler", func(t *testing.T) {
		clock := newFakeClock()
		m, store := newTestManager(t, session.WithClock(clock))

		require.NoError(t, m.Initialise(authResponse("900s"), true))

		require.Equal(t, testAccessToken, m.AccessToken())
		require.Equal(t, testRefreshToken, m.RefreshToken())
		require.Equal(t, "tenant_alpha", m.TenantID())

		persisted, err := store.RefreshToken()
		require.NoError(t, err)
		require.Equal(t, testRefreshToken, persisted)

		// 900s TTL: renew 60s before expiry, not at 75% of lifetime.
		require.Equal(t, 840*time.Second, clock.lastDelay)
	})

	t.Run("persist false leaves storage untouched", func(t *testing.T) {
		clock := newFakeClock()
		m, store := newTestManager(t, session.WithClock(clock))

		require.NoError(t, m.Initialise(authResponse("900s"), false))
		require.Equal(t, testAccessToken, m.AccessToken())
		require.Zero(t, store.WriteCount)
	})

	t.Run("invalid tenant id is discarded", func(t *testing.T) {
		clock := newFakeClock()
		m, _ := newTestManager(t, session.WithClock(clock))

		auth := authResponse("900s")
		auth.User.TenantID = "tenant alpha!"
		require.NoError(t, m.Initialise(auth, true))
		require.Empty(t, m.TenantID())
	})

	t.Run("re-initialising cancels the prior timer", func(t *testing.T) {
		clock := newFakeClock()
		m, _ := newTestManager(t, session.WithClock(clock))

		require.NoError(t, m.Initialise(authResponse("900s"), true))
		require.NoError(t, m.Initialise(authResponse("900s"), true))
		require.Equal(t, 1, clock.activeTimers())
	})

	t.Run("unparseable ttl leaves renewal unscheduled", func(t *testing.T) {
		clock := newFakeClock()
		m, _ := newTestManager(t, session.WithClock(clock))

		require.NoError(t, m.Initialise(authResponse("soon"), true))
		require.Zero(t, clock.armed)
	})
}

func TestManager_SetTenant(t *testing.T) {
	t.Run("valid tenant persists", func(t *testing.T) {
		m, store := newTestManager(t)

		require.NoError(t, m.SetTenant("tenant_alpha"))
		require.Equal(t, "tenant_alpha", m.TenantID())

		persisted, err := store.TenantID()
		require.NoError(t, err)
		require.Equal(t, "tenant_alpha", persisted)
	})

	t.Run("invalid tenant rejected, prior state untouched", func(t *testing.T) {
		m, store := newTestManager(t)
		require.NoError(t, m.SetTenant("tenant_alpha"))

		err := m.SetTenant("tenant alpha!")
		require.Error(t, err)
		require.Equal(t, "tenant_alpha", m.TenantID())

		persisted, err := store.TenantID()
		require.NoError(t, err)
		require.Equal(t, "tenant_alpha", persisted)
	})
}

func TestManager_HydrateFromStorage(t *testing.T) {
	t.Run("loads persisted state", func(t *testing.T) {
		m, store := newTestManager(t)
		store.Seed(testRefreshToken, "tenant_alpha")

		require.NoError(t, m.HydrateFromStorage())
		require.Equal(t, testRefreshToken, m.RefreshToken())
		require.Equal(t, "tenant_alpha", m.TenantID())
		require.Empty(t, m.AccessToken())
	})

	t.Run("is idempotent and write free", func(t *testing.T) {
		m, store := newTestManager(t)
		store.Seed(testRefreshToken, "tenant_alpha")

		require.NoError(t, m.HydrateFromStorage())
		require.NoError(t, m.HydrateFromStorage())

		require.Equal(t, testRefreshToken, m.RefreshToken())
		require.Equal(t, "tenant_alpha", m.TenantID())
		require.Zero(t, store.WriteCount)
	})

	t.Run("purges invalid persisted tenant", func(t *testing.T) {
		m, store := newTestManager(t)
		store.Seed(testRefreshToken, "tenant alpha!")

		require.NoError(t, m.HydrateFromStorage())
		require.Empty(t, m.TenantID())

		persisted, err := store.TenantID()
		require.NoError(t, err)
		require.Empty(t, persisted)
	})
}

func TestManager_Clear(t *testing.T) {
	clock := newFakeClock()
	m, store := newTestManager(t, session.WithClock(clock))
	require.NoError(t, m.Initialise(authResponse("900s"), true))

	require.NoError(t, m.Clear())

	require.Empty(t, m.AccessToken())
	require.Empty(t, m.RefreshToken())
	require.Empty(t, m.TenantID())
	require.Zero(t, clock.activeTimers())

	persisted, err := store.RefreshToken()
	require.NoError(t, err)
	require.Empty(t, persisted)
}

func TestManager_Refresh(t *testing.T) {
	t.Run("success reinitialises and notifies observers", func(t *testing.T) {
		clock := newFakeClock()
		observer := &fakeObserver{}
		m, _ := newTestManager(t, session.WithClock(clock), session.WithObserver(observer))

		renewed := authResponse("900s")
		renewed.RefreshToken = newRefreshToken
		refresher := &fakeRefresher{respond: func() (*session.AuthResponse, error) {
			return renewed, nil
		}}
		m.BindRefresher(refresher)
		require.NoError(t, m.Initialise(authResponse("900s"), true))

		auth, err := m.Refresh(context.Background())
		require.NoError(t, err)
		require.NotNil(t, auth)
		require.Equal(t, newRefreshToken, m.RefreshToken())

		refreshed, unauthorized := observer.counts()
		require.Equal(t, 1, refreshed)
		require.Zero(t, unauthorized)
	})

	t.Run("failure clears session and fires unauthorized exactly once", func(t *testing.T) {
		clock := newFakeClock()
		observer := &fakeObserver{}
		m, store := newTestManager(t, session.WithClock(clock), session.WithObserver(observer))

		refresher := &fakeRefresher{respond: func() (*session.AuthResponse, error) {
			return nil, context.DeadlineExceeded
		}}
		m.BindRefresher(refresher)
		require.NoError(t, m.Initialise(authResponse("900s"), true))

		auth, err := m.Refresh(context.Background())
		require.NoError(t, err)
		require.Nil(t, auth)

		require.Empty(t, m.AccessToken())
		require.Empty(t, m.RefreshToken())
		require.Empty(t, m.TenantID())

		persisted, err := store.RefreshToken()
		require.NoError(t, err)
		require.Empty(t, persisted)

		_, unauthorized := observer.counts()
		require.Equal(t, 1, unauthorized)
	})

	t.Run("no refresh token short circuits to no session", func(t *testing.T) {
		observer := &fakeObserver{}
		m, _ := newTestManager(t, session.WithObserver(observer))
		m.BindRefresher(&fakeRefresher{respond: func() (*session.AuthResponse, error) {
			t.Fatal("refresher must not be called without a refresh token")
			return nil, nil
		}})

		auth, err := m.Refresh(context.Background())
		require.NoError(t, err)
		require.Nil(t, auth)

		_, unauthorized := observer.counts()
		require.Zero(t, unauthorized)
	})

	t.Run("concurrent refreshes share one flight", func(t *testing.T) {
		clock := newFakeClock()
		m, _ := newTestManager(t, session.WithClock(clock))

		block := make(chan struct{})
		refresher := &fakeRefresher{
			block: block,
			respond: func() (*session.AuthResponse, error) {
				return authResponse("900s"), nil
			},
		}
		m.BindRefresher(refresher)
		require.NoError(t, m.Initialise(authResponse("900s"), true))

		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = m.Refresh(context.Background())
			}()
		}
		// Let all callers queue up behind the in-flight refresh.
		time.Sleep(50 * time.Millisecond)
		close(block)
		wg.Wait()

		require.Equal(t, 1, refresher.callCount())
	})
}

func TestManager_ScheduledRenewal(t *testing.T) {
	// Login with a 60s TTL arms the scheduler at 45s (75% rule dominates for
	// sub-minute tokens); advancing virtual time triggers the refresh without
	// any caller action.
	clock := newFakeClock()
	observer := &fakeObserver{}
	m, _ := newTestManager(t, session.WithClock(clock), session.WithObserver(observer))

	renewed := authResponse("60s")
	renewed.RefreshToken = newRefreshToken
	refresher := &fakeRefresher{respond: func() (*session.AuthResponse, error) {
		return renewed, nil
	}}
	m.BindRefresher(refresher)

	require.NoError(t, m.Initialise(authResponse("60s"), true))
	require.Equal(t, 45*time.Second, clock.lastDelay)
	require.Zero(t, refresher.callCount())

	clock.Advance(45 * time.Second)

	require.Equal(t, 1, refresher.callCount())
	require.Equal(t, newRefreshToken, m.RefreshToken())
	refreshed, _ := observer.counts()
	require.Equal(t, 1, refreshed)
	// The renewal re-armed the scheduler for the next cycle.
	require.Equal(t, 1, clock.activeTimers())
}

func TestManager_Subscribe(t *testing.T) {
	m, _ := newTestManager(t)
	first := &fakeObserver{}
	second := &fakeObserver{}
	m.Subscribe(first)
	m.Subscribe(second)

	refresher := &fakeRefresher{respond: func() (*session.AuthResponse, error) {
		return nil, context.DeadlineExceeded
	}}
	m.BindRefresher(refresher)
	require.NoError(t, m.Initialise(authResponse("900s"), true))

	_, err := m.Refresh(context.Background())
	require.NoError(t, err)

	_, firstUnauthorized := first.counts()
	_, secondUnauthorized := second.counts()
	require.Equal(t, 1, firstUnauthorized)
	require.Equal(t, 1, secondUnauthorized)
}

func TestManager_Introspect(t *testing.T) {
	t.Run("extracts claims from the access token", func(t *testing.T) {
		raw, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.MapClaims{
			"sub":    "user-1",
			"email":  "teacher@school.example",
			"role":   "teacher",
			"tenant": "tenant_alpha",
			"iat":    float64(1_756_710_000),
			"exp":    float64(1_756_710_900),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		m, _ := newTestManager(t)
		auth := authResponse("900s")
		auth.AccessToken = raw
		require.NoError(t, m.Initialise(auth, false))

		claims, err := m.Introspect()
		require.NoError(t, err)
		require.Equal(t, "user-1", claims.Subject)
		require.Equal(t, session.RoleTeacher, claims.Role)
		require.Equal(t, "tenant_alpha", claims.TenantID)
		require.True(t, claims.Expired(time.Unix(1_756_711_000, 0)))
		require.False(t, claims.Expired(time.Unix(1_756_710_500, 0)))
	})

	t.Run("no token held", func(t *testing.T) {
		m, _ := newTestManager(t)
		_, err := m.Introspect()
		require.Error(t, err)
	})
}

func TestAuthUser_StatusDefault(t *testing.T) {
	t.Run("absent status defaults to active", func(t *testing.T) {
		var u session.AuthUser
		require.NoError(t, u.UnmarshalJSON([]byte(`{"id":"u1","email":"a@b.c","role":"student"}`)))
		require.Equal(t, session.StatusActive, u.Status)
	})

	t.Run("explicit status preserved", func(t *testing.T) {
		var u session.AuthUser
		require.NoError(t, u.UnmarshalJSON([]byte(`{"id":"u1","status":"suspended"}`)))
		require.Equal(t, session.StatusSuspended, u.Status)
	})
}
